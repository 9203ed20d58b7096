package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func baseEnv() map[string]string {
	return map[string]string{
		"API_DATABASE_URL":    "postgres://eventpass:pw@localhost:5432/eventpass?sslmode=disable",
		"API_AUTH_JWT_SECRET": testJWTSecret,
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != defaultRequestTimeout {
		t.Errorf("unexpected request timeout: %s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.MaxOpenConns != defaultDBMaxOpenConns {
		t.Errorf("unexpected max open conns: %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Auth.CookieName != "admin_token" || !cfg.Auth.CookieSecure {
		t.Errorf("unexpected cookie defaults: %+v", cfg.Auth)
	}
	if cfg.Auth.AdminTokenTTL != 12*time.Hour {
		t.Errorf("unexpected admin token ttl: %s", cfg.Auth.AdminTokenTTL)
	}
	if cfg.RateLimits.LoginPerMinute != defaultRateLimitLogin {
		t.Errorf("unexpected login rate limit: %d", cfg.RateLimits.LoginPerMinute)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Security.Environment)
	}
	if cfg.Security.HMAC.SignatureHeader != defaultHMACSignatureHeader {
		t.Errorf("unexpected signature header %s", cfg.Security.HMAC.SignatureHeader)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader || cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected idempotency defaults: %+v", cfg.Idempotency)
	}
	if cfg.Notifications.SMTPPort != 587 {
		t.Errorf("unexpected smtp port: %d", cfg.Notifications.SMTPPort)
	}
	if cfg.PubSub.PublishTimeout != 5*time.Second {
		t.Errorf("unexpected publish timeout: %s", cfg.PubSub.PublishTimeout)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                   "9090",
		"API_SERVER_ALLOWED_ORIGINS":        "https://eventpass.tn, https://admin.eventpass.tn",
		"API_DATABASE_URL":                  "secret://db/dsn",
		"API_DATABASE_MAX_OPEN_CONNS":       "20",
		"API_DATABASE_DEBUG":                "yes",
		"API_AUTH_JWT_SECRET":               "sm://auth/jwt",
		"API_AUTH_ADMIN_TOKEN_TTL":          "2h",
		"API_AUTH_COOKIE_SECURE":            "false",
		"API_STORAGE_POSTERS_BUCKET":        "eventpass-posters",
		"API_STORAGE_SIGNER_KEY":            "secret://storage/signer",
		"API_NOTIFICATIONS_SMS_GATEWAY_KEY": "secret://sms/key",
		"API_SECURITY_ENVIRONMENT":          "PROD",
		"API_SECURITY_HMAC_SECRETS":         "ClicToPay=secret://hmac/clictopay,flouci=flouci-secret",
		"API_IDEMPOTENCY_CLEANUP_BATCH":     "500",
	}
	secrets := map[string]string{
		"secret://db/dsn":         "postgres://prod",
		"secret://auth/jwt":       testJWTSecret,
		"secret://storage/signer": `{"client_email":"signer@example.com"}`,
		"secret://sms/key":        "sms-key",
		"secret://hmac/clictopay": "ctp-secret",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver),
		WithRequiredSecrets("Auth.JWTSecret", "Security.HMAC.Secrets[clictopay]"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Database.DSN != "postgres://prod" || cfg.Database.MaxOpenConns != 20 || !cfg.Database.Debug {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Auth.JWTSecret != testJWTSecret || cfg.Auth.AdminTokenTTL != 2*time.Hour || cfg.Auth.CookieSecure {
		t.Errorf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Storage.SignerKey == "" || cfg.Storage.PostersBucket != "eventpass-posters" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Notifications.SMSGatewayKey != "sms-key" {
		t.Errorf("unexpected sms key %q", cfg.Notifications.SMSGatewayKey)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Security.Environment)
	}
	if cfg.Security.HMAC.Secrets["clictopay"] != "ctp-secret" || cfg.Security.HMAC.Secrets["flouci"] != "flouci-secret" {
		t.Errorf("unexpected hmac secrets: %v", cfg.Security.HMAC.Secrets)
	}
	if cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected cleanup batch: %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadValidationError(t *testing.T) {
	env := map[string]string{"API_AUTH_JWT_SECRET": "short"}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if !strings.Contains(fields, "Database.DSN") || !strings.Contains(fields, "Auth.JWTSecret") {
		t.Fatalf("unexpected invalid fields: %s", fields)
	}
}

func TestLoadSecretResolverMissing(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_JWT_SECRET"] = "secret://auth/jwt"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://auth/jwt" {
		t.Fatalf("unexpected ref %s", secretErr.Ref)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("Notifications.SMSGatewayKey"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Notifications.SMSGatewayKey" {
		t.Fatalf("unexpected missing names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || strings.Contains(redacted[0], "SMS") {
		t.Fatalf("expected redacted names, got %v", redacted)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# local overrides",
		"export API_DATABASE_URL=\"postgres://local\"",
		"API_AUTH_JWT_SECRET=" + testJWTSecret,
		"API_SERVER_PORT=7000",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "7001"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.DSN != "postgres://local" {
		t.Errorf("expected dsn from .env, got %s", cfg.Database.DSN)
	}
	if cfg.Server.Port != "7001" {
		t.Errorf("expected explicit map to win over .env, got %s", cfg.Server.Port)
	}
}

func TestLoadReportsMalformedValues(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_READ_TIMEOUT"] = "fifteen"
	env["API_SECURITY_HMAC_SECRETS"] = "flouci"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if !strings.Contains(fields, "API_SERVER_READ_TIMEOUT") || !strings.Contains(fields, "API_SECURITY_HMAC_SECRETS") {
		t.Fatalf("unexpected invalid fields: %s", fields)
	}
}

func TestDotEnvRejectsLineWithoutAssignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("API_SERVER_PORT\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if _, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv()); err == nil {
		t.Fatalf("expected parse error")
	}
}
