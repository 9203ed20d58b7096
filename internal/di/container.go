package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/api/internal/payments"
	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/platform/config"
	"github.com/eventpass/api/internal/platform/observability"
	"github.com/eventpass/api/internal/platform/storage"
	"github.com/eventpass/api/internal/repositories"
	"github.com/eventpass/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders        services.OrderService
	Ambassadors   services.AmbassadorService
	Auth          services.AuthService
	Events        services.EventService
	Catalog       services.CatalogService
	Content       services.ContentService
	Notifications services.NotificationService
	System        services.SystemService
}

// Infrastructure carries the external clients built by the command before the container.
// Nil members disable the features that need them.
type Infrastructure struct {
	Logger    *zap.Logger
	Publisher services.NotificationPublisher
	Posters   *storage.PosterStore
	Payments  *payments.Registry
	Tokens    *auth.TokenManager
	Catalog   services.NotificationCatalog
	Build     services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services
	base := infra.Logger
	if base == nil {
		base = zap.NewNop()
	}
	logger := observability.EventLogger(base)

	var tokens services.TokenIssuer
	if infra.Tokens != nil {
		issuer, err := services.NewTokenIssuer(infra.Tokens)
		if err != nil {
			return Services{}, fmt.Errorf("build token issuer: %w", err)
		}
		tokens = issuer
	}

	if infra.Publisher != nil {
		notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
			Publisher:      infra.Publisher,
			Catalog:        infra.Catalog,
			Ambassadors:    reg.Ambassadors(),
			PublishTimeout: cfg.PubSub.PublishTimeout,
			Clock:          time.Now,
			Logger:         logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build notification service: %w", err)
		}
		svc.Notifications = notificationSvc
	}

	ambassadorSvc, err := services.NewAmbassadorService(services.AmbassadorServiceDeps{
		Ambassadors: reg.Ambassadors(),
		Orders:      reg.Orders(),
		Tokens:      tokens,
		SessionTTL:  cfg.Auth.AmbassadorTokenTTL,
		Logger:      logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build ambassador service: %w", err)
	}
	svc.Ambassadors = ambassadorSvc

	if tokens != nil {
		authSvc, err := services.NewAuthService(services.AuthServiceDeps{
			Admins: reg.Admins(),
			Tokens: tokens,
			TTL:    cfg.Auth.AdminTokenTTL,
			Logger: logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build auth service: %w", err)
		}
		svc.Auth = authSvc
	}

	orderDeps := services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Logs:          reg.OrderLogs(),
		Ambassadors:   reg.Ambassadors(),
		Events:        reg.Events(),
		UnitOfWork:    reg,
		Notifications: svc.Notifications,
		Clock:         time.Now,
		Logger:        logger,
	}
	if infra.Payments != nil {
		orderDeps.Payments = paymentStatusMapper{registry: infra.Payments}
	}
	orderSvc, err := services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	eventDeps := services.EventServiceDeps{
		Events: reg.Events(),
		Clock:  time.Now,
		Logger: logger,
	}
	if infra.Posters != nil {
		eventDeps.Posters = posterStorage{store: infra.Posters}
	}
	eventSvc, err := services.NewEventService(eventDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build event service: %w", err)
	}
	svc.Events = eventSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		PaymentOptions: reg.PaymentOptions(),
		Ambassadors:    ambassadorSvc,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	contentSvc, err := services.NewContentService(services.ContentServiceDeps{
		Content: reg.SiteContent(),
		Clock:   time.Now,
		Logger:  logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build content service: %w", err)
	}
	svc.Content = contentSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := infra.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			Health: healthRepo,
			Clock:  time.Now,
			Build:  build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// paymentStatusMapper adapts the gateway registry to the order service.
type paymentStatusMapper struct {
	registry *payments.Registry
}

func (m paymentStatusMapper) MapStatus(gateway, rawStatus string) (services.PaymentOutcome, error) {
	status, err := m.registry.MapStatus(gateway, rawStatus)
	if err != nil {
		return "", err
	}
	return services.PaymentOutcome(status), nil
}

// posterStorage adapts the GCS poster store to the event service.
type posterStorage struct {
	store *storage.PosterStore
}

func (p posterStorage) IssuePosterUpload(ctx context.Context, eventID, fileName, contentType string) (services.PosterUpload, error) {
	upload, err := p.store.IssueUpload(ctx, eventID, fileName, contentType)
	if err != nil {
		return services.PosterUpload{}, err
	}
	return services.PosterUpload{
		UploadID:  upload.UploadID,
		URL:       upload.URL,
		Method:    upload.Method,
		Headers:   upload.Headers,
		ExpiresAt: upload.ExpiresAt,
	}, nil
}

func (p posterStorage) PublishPoster(ctx context.Context, eventID, uploadID, fileName string) (string, error) {
	url, err := p.store.Publish(ctx, eventID, uploadID, fileName)
	if errors.Is(err, storage.ErrUploadNotFound) || errors.Is(err, storage.ErrContentTypeDenied) {
		return "", fmt.Errorf("%w: %v", services.ErrEventInvalidInput, err)
	}
	return url, err
}
