package secrets

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultFallbackFile = ".secrets.local"

// NewFetcherFromEnv builds a Fetcher from the API_SECRET_* environment values shared by every command.
func NewFetcherFromEnv(ctx context.Context, logger *zap.Logger, env map[string]string) (*Fetcher, error) {
	lookup := func(key string) string { return strings.TrimSpace(env[key]) }

	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = defaultFallbackFile
	}
	opts := []Option{
		WithLogger(logger.Named("secrets")),
		WithProject(lookup("API_SECRET_PROJECT_ID")),
		WithFallbackFile(fallbackPath),
	}
	if credentials := lookup("API_STORAGE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return NewFetcher(ctx, opts...)
}
