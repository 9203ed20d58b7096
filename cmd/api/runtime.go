package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/eventpass/api/internal/di"
	"github.com/eventpass/api/internal/handlers"
	"github.com/eventpass/api/internal/payments"
	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/platform/config"
	"github.com/eventpass/api/internal/platform/idempotency"
	"github.com/eventpass/api/internal/platform/jobs"
	"github.com/eventpass/api/internal/platform/observability"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	platformstorage "github.com/eventpass/api/internal/platform/storage"
	"github.com/eventpass/api/internal/repositories"
	repopg "github.com/eventpass/api/internal/repositories/postgres"
	"github.com/eventpass/api/internal/services"
)

const meterName = "github.com/eventpass/api"

// runtime holds the HTTP router and the clients that must be closed on shutdown.
type runtime struct {
	Router      chi.Router
	Idempotency *idempotency.PostgresStore

	closers []func(context.Context) error
	logger  *zap.Logger
}

func (r *runtime) Close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			r.logger.Warn("close error", zap.Error(err))
		}
	}
}

func buildRuntime(ctx context.Context, logger *zap.Logger, cfg config.Config, build services.BuildInfo) (*runtime, error) {
	rt := &runtime{logger: logger}
	meter := otel.Meter(meterName)

	provider := ppostgres.NewProvider(cfg.Database)
	rt.closers = append(rt.closers, provider.Close)

	pubsubClient, topic, err := newNotificationTopic(ctx, cfg.PubSub)
	if err != nil {
		logger.Warn("notifications disabled: pubsub unavailable", zap.Error(err))
	}
	if pubsubClient != nil {
		rt.closers = append(rt.closers, func(context.Context) error {
			topic.Stop()
			return pubsubClient.Close()
		})
	}

	var gcs *cloudstorage.Client
	if strings.TrimSpace(cfg.Storage.PostersBucket) != "" {
		var opts []option.ClientOption
		if cfg.Storage.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Storage.CredentialsFile))
		}
		gcs, err = cloudstorage.NewClient(ctx, opts...)
		if err != nil {
			logger.Warn("poster uploads disabled: storage client unavailable", zap.Error(err))
			gcs = nil
		} else {
			rt.closers = append(rt.closers, func(context.Context) error { return gcs.Close() })
		}
	}

	health, err := repositories.NewDependencyHealthRepository(dependencyChecks(cfg, provider, topic, gcs))
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	registry, err := repopg.NewRegistry(provider, health)
	if err != nil {
		return nil, fmt.Errorf("build repositories: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("build token manager: %w", err)
	}

	infra := di.Infrastructure{
		Logger:   logger,
		Payments: payments.DefaultRegistry(),
		Tokens:   tokens,
		Build:    build,
	}
	if topic != nil {
		publisher, err := jobs.NewPubSubNotificationPublisher(topic)
		if err != nil {
			return nil, fmt.Errorf("build notification publisher: %w", err)
		}
		infra.Publisher = publisher
	}
	if catalog, err := services.LoadNotificationCatalog(cfg.Notifications.TemplatesFile); err != nil {
		logger.Warn("notification templates not loaded", zap.String("path", cfg.Notifications.TemplatesFile), zap.Error(err))
	} else {
		infra.Catalog = catalog
	}
	if gcs != nil {
		posters, err := newPosterStore(cfg.Storage, gcs)
		if err != nil {
			logger.Warn("poster uploads disabled", zap.Error(err))
		} else {
			infra.Posters = posters
		}
	}

	container, err := di.NewContainer(ctx, cfg, registry, infra)
	if err != nil {
		return nil, fmt.Errorf("build container: %w", err)
	}

	idempotencyStore, err := idempotency.NewPostgresStore(provider)
	if err != nil {
		return nil, fmt.Errorf("build idempotency store: %w", err)
	}
	rt.Idempotency = idempotencyStore

	authMetrics, err := auth.NewOTelMetrics(meter)
	if err != nil {
		logger.Warn("auth metrics disabled", zap.Error(err))
		authMetrics = nil
	}
	authenticator := auth.NewAuthenticator(tokens,
		auth.WithCookieName(cfg.Auth.CookieName),
		auth.WithMetrics(authMetrics),
	)

	rt.Router = newRouter(logger, cfg, build, container.Services, authenticator, idempotencyStore, authMetrics)
	return rt, nil
}

func newRouter(logger *zap.Logger, cfg config.Config, build services.BuildInfo, svc di.Services, authenticator *auth.Authenticator, store idempotency.Store, authMetrics auth.MetricsRecorder) chi.Router {
	httpLogger := logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.ClientIPMiddleware,
		observability.TraceMiddleware(),
		observability.InjectLoggerMiddleware(httpLogger),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(cfg.PubSub.ProjectID),
		handlers.CORS(cfg.Server.AllowedOrigins),
		handlers.RateLimitByIP(handlers.NewRateLimiter(cfg.RateLimits.DefaultPerMinute, time.Minute, nil), "default"),
		idempotency.Middleware(store,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithLogger(logger.Named("idempotency")),
			idempotency.WithScope(authenticator.Subject),
			idempotency.WithOptionalKey(),
		),
	}

	loginLimiter := handlers.NewRateLimiter(cfg.RateLimits.LoginPerMinute, time.Minute, nil)
	orderHandlers := handlers.NewOrderHandlers(svc.Orders)
	ambassadorHandlers := handlers.NewAmbassadorHandlers(svc.Ambassadors, handlers.WithAmbassadorLoginLimiter(loginLimiter))
	eventHandlers := handlers.NewEventHandlers(svc.Events)
	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	contentHandlers := handlers.NewContentHandlers(svc.Content)
	notificationHandlers := handlers.NewNotificationHandlers(svc.Notifications)
	adminAuthHandlers := handlers.NewAdminAuthHandlers(svc.Auth, handlers.CookieSettings{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	})
	webhookHandlers := handlers.NewPaymentWebhookHandlers(svc.Orders, payments.DefaultRegistry())

	routes := handlers.RouterConfig{
		RequestTimeout: cfg.Server.WriteTimeout,
		Middlewares:    middlewares,
		Health:         handlers.NewHealthHandlers(svc.System, build),
		Public: []handlers.RouteRegistrar{
			orderHandlers.PublicRoutes,
			ambassadorHandlers.PublicRoutes,
			eventHandlers.PublicRoutes,
			catalogHandlers.Routes,
			contentHandlers.PublicRoutes,
		},
		Ambassador: func(r chi.Router) {
			r.Use(authenticator.RequireAmbassador())
			orderHandlers.AmbassadorRoutes(r)
			ambassadorHandlers.PortalRoutes(r)
		},
		Admin: func(r chi.Router) {
			r.Group(func(session chi.Router) {
				session.Use(handlers.RateLimitByIP(loginLimiter, "admin-login"))
				adminAuthHandlers.SessionRoutes(session)
			})
			r.Group(func(admin chi.Router) {
				admin.Use(authenticator.RequireAdmin())
				adminAuthHandlers.Routes(admin)
				orderHandlers.AdminRoutes(admin)
				eventHandlers.AdminRoutes(admin)
				contentHandlers.AdminRoutes(admin)
				notificationHandlers.AdminRoutes(admin)
			})
		},
		Webhooks: webhookHandlers.Routes,
	}
	if verify := webhookSignatures(logger.Named("auth"), cfg, authMetrics); verify != nil {
		routes.WebhookMiddlewares = append(routes.WebhookMiddlewares, verify)
	}
	return handlers.NewRouter(routes)
}

// webhookSignatures verifies gateway callbacks with the secret configured for the gateway path segment.
func webhookSignatures(logger *zap.Logger, cfg config.Config, metrics auth.MetricsRecorder) func(http.Handler) http.Handler {
	hmacCfg := cfg.Security.HMAC
	verifier, err := auth.NewWebhookVerifier(auth.WebhookConfig{
		Secrets:         hmacCfg.Secrets,
		SignatureHeader: hmacCfg.SignatureHeader,
		TimestampHeader: hmacCfg.TimestampHeader,
		NonceHeader:     hmacCfg.NonceHeader,
		ClockSkew:       hmacCfg.ClockSkew,
		NonceTTL:        hmacCfg.NonceTTL,
	}, handlers.GatewayFromPath, auth.WithWebhookLogger(logger), auth.WithWebhookMetrics(metrics))
	if err != nil {
		logger.Warn("payment webhooks accept unsigned callbacks", zap.Error(err))
		return nil
	}
	logger.Info("payment webhook signatures enforced", zap.Strings("gateways", verifier.Gateways()))
	return verifier.Middleware
}

func newNotificationTopic(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, *pubsub.Topic, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" || strings.TrimSpace(cfg.NotificationsTopic) == "" {
		return nil, nil, errors.New("pubsub project and notifications topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	return client, client.Topic(cfg.NotificationsTopic), nil
}

func newPosterStore(cfg config.StorageConfig, gcs *cloudstorage.Client) (*platformstorage.PosterStore, error) {
	signerKey := strings.TrimSpace(cfg.SignerKey)
	if signerKey == "" {
		return nil, errors.New("storage signer key is required")
	}
	account, err := platformstorage.ParseServiceAccount([]byte(signerKey))
	if err != nil {
		return nil, fmt.Errorf("parse storage signer key: %w", err)
	}
	bucket, err := platformstorage.NewGCSBucket(gcs, cfg.PostersBucket)
	if err != nil {
		return nil, err
	}
	return platformstorage.NewPosterStore(account, bucket, platformstorage.PosterStoreConfig{
		Bucket:        cfg.PostersBucket,
		PublicBaseURL: cfg.PublicBaseURL,
		UploadTTL:     cfg.UploadURLTTL,
		MaxBytes:      cfg.MaxPosterBytes,
	})
}

func dependencyChecks(cfg config.Config, provider *ppostgres.Provider, topic *pubsub.Topic, gcs *cloudstorage.Client) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:     "postgres",
		Critical: true,
		Timeout:  2 * time.Second,
		Check:    provider.Ping,
	}}
	if topic != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	}
	if gcs != nil {
		bucket := cfg.Storage.PostersBucket
		checks = append(checks, repositories.DependencyCheck{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, err := gcs.Bucket(bucket).Attrs(ctx)
				return err
			},
		})
	}
	return checks
}

func requiredSecretNames(env map[string]string) []string {
	required := []string{"Database.DSN", "Auth.JWTSecret"}
	if strings.TrimSpace(env["API_STORAGE_POSTERS_BUCKET"]) != "" {
		required = append(required, "Storage.SignerKey")
	}
	for _, entry := range strings.Split(env["API_SECURITY_HMAC_SECRETS"], ",") {
		key, _, ok := strings.Cut(entry, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			continue
		}
		required = append(required, fmt.Sprintf("Security.HMAC.Secrets[%s]", key))
	}
	return required
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
