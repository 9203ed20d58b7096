package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eventpass/api/internal/platform/config"
	"github.com/eventpass/api/internal/platform/observability"
	"github.com/eventpass/api/internal/platform/secrets"
)

const (
	drainTimeout   = 10 * time.Second
	closeTimeout   = 5 * time.Second
	purgeRunBudget = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "eventpass api:", err)
		os.Exit(1)
	}
}

func run() error {
	startedAt := time.Now().UTC()

	env, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	root, err := observability.NewLogger(observability.LoggerOptions{
		Level:  env["API_LOG_LEVEL"],
		Format: env["API_LOG_FORMAT"],
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = root.Sync() }()

	logger := root.Named("api")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcherFromEnv(ctx, logger, env)
	if err != nil {
		return fmt.Errorf("init secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(env)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := buildRuntime(ctx, logger, cfg, buildInfoFromEnv(env, cfg, startedAt))
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		rt.Close(closeCtx)
	}()

	if runsOnLambda(env) {
		logger.Info("eventpass api starting in lambda mode")
		adapter := httpadapter.New(rt.Router)
		lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
		return nil
	}
	return serve(ctx, logger, cfg, rt)
}

// serve runs the HTTP server and the idempotency purger until ctx is cancelled,
// then drains in-flight requests.
func serve(ctx context.Context, logger *zap.Logger, cfg config.Config, rt *runtime) error {
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      rt.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	httpLogger := logger.Named("http").With(zap.String("addr", server.Addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpLogger.Info("eventpass api listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down; draining requests")
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return server.Shutdown(drainCtx)
	})
	if cfg.Idempotency.CleanupInterval > 0 {
		g.Go(func() error {
			purgeExpiredKeys(gctx, logger.Named("idempotency"), rt.Idempotency, cfg.Idempotency)
			return nil
		})
	}
	return g.Wait()
}

type expiredKeyPurger interface {
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

func purgeExpiredKeys(ctx context.Context, logger *zap.Logger, store expiredKeyPurger, cfg config.IdempotencyConfig) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, purgeRunBudget)
			n, err := store.Purge(runCtx, now.UTC(), cfg.CleanupBatchSize)
			cancel()
			switch {
			case err != nil:
				logger.Error("idempotency purge failed", zap.Error(err))
			case n > 0:
				logger.Info("idempotency keys purged", zap.Int("count", n))
			}
		}
	}
}

func runsOnLambda(env map[string]string) bool {
	return strings.EqualFold(strings.TrimSpace(env["API_RUNTIME"]), "lambda") ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
