package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/eventpass/api/internal/notify"
	"github.com/eventpass/api/internal/platform/config"
	"github.com/eventpass/api/internal/platform/jobs"
	"github.com/eventpass/api/internal/platform/observability"
	"github.com/eventpass/api/internal/platform/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}
	baseLogger, err := observability.NewLogger(observability.LoggerOptions{
		Level:  envValues["API_LOG_LEVEL"],
		Format: envValues["API_LOG_FORMAT"],
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("notifier")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcherFromEnv(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	dispatcher := newDispatcher(logger, cfg.Notifications)
	if dispatcher.SMS == nil && dispatcher.Email == nil {
		logger.Fatal("no notification channel configured")
	}

	if strings.TrimSpace(cfg.PubSub.ProjectID) == "" || strings.TrimSpace(cfg.PubSub.NotificationsSubscription) == "" {
		logger.Fatal("pubsub project and notifications subscription are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	consumer, err := jobs.NewNotificationConsumer(
		client.Subscription(cfg.PubSub.NotificationsSubscription),
		dispatcher,
		observability.EventLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to initialise notification consumer", zap.Error(err))
	}

	logger.Info("notifier consuming", zap.String("subscription", cfg.PubSub.NotificationsSubscription))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notification consumer stopped", zap.Error(err))
		return
	}
	logger.Info("notifier stopped")
}

func newDispatcher(logger *zap.Logger, cfg config.NotificationConfig) notify.Dispatcher {
	var dispatcher notify.Dispatcher
	if strings.TrimSpace(cfg.SMSGatewayURL) != "" {
		sms, err := notify.NewSMSClient(notify.SMSConfig{
			URL:    cfg.SMSGatewayURL,
			APIKey: cfg.SMSGatewayKey,
			Sender: cfg.SMSSender,
		}, nil)
		if err != nil {
			logger.Warn("sms channel disabled", zap.Error(err))
		} else {
			dispatcher.SMS = sms
		}
	}
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		mailer, err := notify.NewEmailSender(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			logger.Warn("email channel disabled", zap.Error(err))
		} else {
			dispatcher.Email = mailer
		}
	}
	return dispatcher
}
