package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/api/internal/platform/config"
	"github.com/eventpass/api/internal/platform/observability"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/platform/secrets"
	repopg "github.com/eventpass/api/internal/repositories/postgres"
)

func main() {
	rollback := flag.Bool("rollback", false, "revert the last applied migration group")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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
	logger := baseLogger.Named("migrate")

	fetcher, err := secrets.NewFetcherFromEnv(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer fetcher.Close() //nolint:errcheck

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets("Database.DSN"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := ppostgres.NewProvider(cfg.Database)
	defer func() {
		if err := provider.Close(context.Background()); err != nil {
			logger.Warn("postgres close error", zap.Error(err))
		}
	}()
	db, err := provider.DB(ctx)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	run, action := repopg.Migrate, "migrate"
	if *rollback {
		run, action = repopg.Rollback, "rollback"
	}
	result, err := run(ctx, db)
	if err != nil {
		logger.Fatal(action+" failed", zap.Error(err))
	}
	if result.Group == "" {
		logger.Info(action + ": nothing to do")
		return
	}
	logger.Info(action+" complete", zap.String("group", result.Group), zap.Strings("migrations", result.Applied))
}
