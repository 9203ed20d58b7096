package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 25 * time.Second
	defaultDBMaxOpenConns       = 10
	defaultDBMaxIdleConns       = 5
	defaultDBConnMaxLifetime    = 30 * time.Minute
	defaultDBDialTimeout        = 5 * time.Second
	defaultDBTxTimeout          = 10 * time.Second
	defaultJWTIssuer            = "eventpass"
	defaultAdminTokenTTL        = 12 * time.Hour
	defaultAmbassadorTokenTTL   = 7 * 24 * time.Hour
	defaultAdminCookieName      = "admin_token"
	defaultPosterUploadTTL      = 15 * time.Minute
	defaultPosterMaxBytes       = 5 << 20
	defaultTemplatesFile        = "config/notifications.yaml"
	defaultSMTPPort             = 587
	defaultPublishTimeout       = 5 * time.Second
	defaultRateLimitLogin       = 10
	defaultRateLimitDefault     = 120
	defaultSecurityEnvironment  = "local"
	defaultHMACSignatureHeader  = "X-Signature"
	defaultHMACTimestampHeader  = "X-Signature-Timestamp"
	defaultHMACNonceHeader      = "X-Signature-Nonce"
	defaultHMACClockSkew        = 5 * time.Minute
	defaultHMACNonceTTL         = 5 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	minJWTSecretLength          = 32
	defaultLogLevel             = "info"
	defaultLogFormat            = "json"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Storage       StorageConfig
	PubSub        PubSubConfig
	Notifications NotificationConfig
	RateLimits    RateLimitConfig
	Security      SecurityConfig
	Idempotency   IdempotencyConfig
	Logging       LoggingConfig
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string
	Format string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	TxTimeout       time.Duration
	Debug           bool
}

// AuthConfig configures dashboard and ambassador session tokens.
type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	AdminTokenTTL      time.Duration
	AmbassadorTokenTTL time.Duration
	CookieName         string
	CookieDomain       string
	CookieSecure       bool
}

// StorageConfig configures event poster uploads.
type StorageConfig struct {
	PostersBucket   string
	SignerKey       string
	PublicBaseURL   string
	UploadURLTTL    time.Duration
	MaxPosterBytes  int64
	CredentialsFile string
}

// PubSubConfig configures the notification job transport.
type PubSubConfig struct {
	ProjectID                 string
	NotificationsTopic        string
	NotificationsSubscription string
	EmulatorHost              string
	PublishTimeout            time.Duration
}

// NotificationConfig configures template rendering and delivery gateways.
type NotificationConfig struct {
	TemplatesFile string
	SMSGatewayURL string
	SMSGatewayKey string
	SMSSender     string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	LoginPerMinute   int
	DefaultPerMinute int
}

// SecurityConfig groups environment and webhook authentication settings.
type SecurityConfig struct {
	Environment string
	HMAC        HMACConfig
}

// HMACConfig captures payment gateway webhook signing expectations. Secrets are keyed by gateway.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := collect(opts)

	values, err := options.environment()
	if err != nil {
		return Config{}, err
	}
	env := &envReader{values: values}

	cfg := Config{
		Server: ServerConfig{
			Port:           env.String("API_SERVER_PORT", defaultPort),
			ReadTimeout:    env.Duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   env.Duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    env.Duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: env.Duration("API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			AllowedOrigins: env.List("API_SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			DSN:             env.String("API_DATABASE_URL", ""),
			MaxOpenConns:    env.Int("API_DATABASE_MAX_OPEN_CONNS", defaultDBMaxOpenConns),
			MaxIdleConns:    env.Int("API_DATABASE_MAX_IDLE_CONNS", defaultDBMaxIdleConns),
			ConnMaxLifetime: env.Duration("API_DATABASE_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime),
			DialTimeout:     env.Duration("API_DATABASE_DIAL_TIMEOUT", defaultDBDialTimeout),
			TxTimeout:       env.Duration("API_DATABASE_TX_TIMEOUT", defaultDBTxTimeout),
			Debug:           env.Bool("API_DATABASE_DEBUG", false),
		},
		Auth: AuthConfig{
			JWTSecret:          env.String("API_AUTH_JWT_SECRET", ""),
			Issuer:             env.String("API_AUTH_ISSUER", defaultJWTIssuer),
			AdminTokenTTL:      env.Duration("API_AUTH_ADMIN_TOKEN_TTL", defaultAdminTokenTTL),
			AmbassadorTokenTTL: env.Duration("API_AUTH_AMBASSADOR_TOKEN_TTL", defaultAmbassadorTokenTTL),
			CookieName:         env.String("API_AUTH_COOKIE_NAME", defaultAdminCookieName),
			CookieDomain:       env.String("API_AUTH_COOKIE_DOMAIN", ""),
			CookieSecure:       env.Bool("API_AUTH_COOKIE_SECURE", true),
		},
		Storage: StorageConfig{
			PostersBucket:   env.String("API_STORAGE_POSTERS_BUCKET", ""),
			SignerKey:       env.String("API_STORAGE_SIGNER_KEY", ""),
			PublicBaseURL:   env.String("API_STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
			UploadURLTTL:    env.Duration("API_STORAGE_UPLOAD_URL_TTL", defaultPosterUploadTTL),
			MaxPosterBytes:  int64(env.Int("API_STORAGE_MAX_POSTER_BYTES", defaultPosterMaxBytes)),
			CredentialsFile: env.String("API_STORAGE_CREDENTIALS_FILE", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:                 env.String("API_PUBSUB_PROJECT_ID", ""),
			NotificationsTopic:        env.String("API_PUBSUB_NOTIFICATIONS_TOPIC", "order-notifications"),
			NotificationsSubscription: env.String("API_PUBSUB_NOTIFICATIONS_SUBSCRIPTION", "order-notifications-worker"),
			EmulatorHost:              env.String("PUBSUB_EMULATOR_HOST", ""),
			PublishTimeout:            env.Duration("API_PUBSUB_PUBLISH_TIMEOUT", defaultPublishTimeout),
		},
		Notifications: NotificationConfig{
			TemplatesFile: env.String("API_NOTIFICATIONS_TEMPLATES_FILE", defaultTemplatesFile),
			SMSGatewayURL: env.String("API_NOTIFICATIONS_SMS_GATEWAY_URL", ""),
			SMSGatewayKey: env.String("API_NOTIFICATIONS_SMS_GATEWAY_KEY", ""),
			SMSSender:     env.String("API_NOTIFICATIONS_SMS_SENDER", ""),
			SMTPHost:      env.String("API_NOTIFICATIONS_SMTP_HOST", ""),
			SMTPPort:      env.Int("API_NOTIFICATIONS_SMTP_PORT", defaultSMTPPort),
			SMTPUsername:  env.String("API_NOTIFICATIONS_SMTP_USERNAME", ""),
			SMTPPassword:  env.String("API_NOTIFICATIONS_SMTP_PASSWORD", ""),
			EmailFrom:     env.String("API_NOTIFICATIONS_EMAIL_FROM", ""),
		},
		RateLimits: RateLimitConfig{
			LoginPerMinute:   env.Int("API_RATELIMIT_LOGIN_PER_MIN", defaultRateLimitLogin),
			DefaultPerMinute: env.Int("API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.String("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			HMAC: HMACConfig{
				Secrets:         env.Pairs("API_SECURITY_HMAC_SECRETS"),
				SignatureHeader: env.String("API_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: env.String("API_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				NonceHeader:     env.String("API_SECURITY_HMAC_HEADER_NONCE", defaultHMACNonceHeader),
				ClockSkew:       env.Duration("API_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
				NonceTTL:        env.Duration("API_SECURITY_HMAC_NONCE_TTL", defaultHMACNonceTTL),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.String("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.Duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.Duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.Int("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(env.String("API_LOG_LEVEL", defaultLogLevel)),
			Format: strings.ToLower(env.String("API_LOG_FORMAT", defaultLogFormat)),
		},
	}

	book := &secretBook{resolver: options.resolver, values: map[string]string{}}
	for gateway, value := range cfg.Security.HMAC.Secrets {
		if err := book.resolve(ctx, "Security.HMAC.Secrets["+gateway+"]", &value); err != nil {
			return Config{}, err
		}
		cfg.Security.HMAC.Secrets[gateway] = value
	}
	for name, field := range map[string]*string{
		"Database.DSN":                &cfg.Database.DSN,
		"Auth.JWTSecret":              &cfg.Auth.JWTSecret,
		"Storage.SignerKey":           &cfg.Storage.SignerKey,
		"Notifications.SMSGatewayKey": &cfg.Notifications.SMSGatewayKey,
		"Notifications.SMTPPassword":  &cfg.Notifications.SMTPPassword,
	} {
		if err := book.resolve(ctx, name, field); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg, env.malformed); err != nil {
		return Config{}, err
	}

	if missing := book.missing(options.required); missing != nil {
		if options.panicOnMissing {
			fmt.Fprintf(os.Stderr, "%v\n", missing)
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config, malformed []string) error {
	invalid := slices.Clone(malformed)

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		invalid = append(invalid, "Database.DSN")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		invalid = append(invalid, "Database.MaxOpenConns")
	}
	if len(cfg.Auth.JWTSecret) < minJWTSecretLength {
		invalid = append(invalid, "Auth.JWTSecret")
	}
	if cfg.Auth.AdminTokenTTL <= 0 {
		invalid = append(invalid, "Auth.AdminTokenTTL")
	}
	if cfg.Auth.AmbassadorTokenTTL <= 0 {
		invalid = append(invalid, "Auth.AmbassadorTokenTTL")
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		invalid = append(invalid, "Auth.CookieName")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}
	if cfg.RateLimits.LoginPerMinute <= 0 {
		invalid = append(invalid, "RateLimits.LoginPerMinute")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		invalid = append(invalid, "Logging.Format")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
