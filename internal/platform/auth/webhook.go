package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoWebhookSecrets is returned when no gateway has a signing secret.
var ErrNoWebhookSecrets = errors.New("auth: no webhook signing secrets configured")

// WebhookConfig holds the per-gateway secrets and the signature header names.
type WebhookConfig struct {
	// Secrets maps a lower-case gateway name to its shared signing secret.
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// GatewayResolver extracts the gateway name a callback is addressed to.
type GatewayResolver func(*http.Request) (string, bool)

// WebhookVerifier checks the HMAC signature on payment gateway callbacks.
//
// The signature is HMAC-SHA256 over "timestamp.nonce.body", sent hex or base64 encoded.
// Timestamps are unix seconds or RFC 3339.
type WebhookVerifier struct {
	secrets map[string][]byte
	cfg     WebhookConfig
	gateway GatewayResolver
	seen    *nonceCache
	logger  *zap.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// WebhookOption adjusts a WebhookVerifier.
type WebhookOption func(*WebhookVerifier)

// WithWebhookLogger logs rejected callbacks at warn level.
func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(v *WebhookVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithWebhookMetrics records each verification under kind "webhook".
func WithWebhookMetrics(metrics MetricsRecorder) WebhookOption {
	return func(v *WebhookVerifier) { v.metrics = metrics }
}

// WithWebhookClock overrides time.Now.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(v *WebhookVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewWebhookVerifier drops blank secrets and fails when none remain.
func NewWebhookVerifier(cfg WebhookConfig, gateway GatewayResolver, opts ...WebhookOption) (*WebhookVerifier, error) {
	if gateway == nil {
		return nil, errors.New("auth: webhook gateway resolver is required")
	}
	secrets := make(map[string][]byte, len(cfg.Secrets))
	for name, secret := range cfg.Secrets {
		if secret = strings.TrimSpace(secret); secret != "" {
			secrets[strings.ToLower(strings.TrimSpace(name))] = []byte(secret)
		}
	}
	if len(secrets) == 0 {
		return nil, ErrNoWebhookSecrets
	}
	cfg.Secrets = nil
	cfg.SignatureHeader = firstNonBlank(cfg.SignatureHeader, "X-Signature")
	cfg.TimestampHeader = firstNonBlank(cfg.TimestampHeader, "X-Signature-Timestamp")
	cfg.NonceHeader = firstNonBlank(cfg.NonceHeader, "X-Signature-Nonce")
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 5 * time.Minute
	}
	if cfg.NonceTTL < 2*cfg.ClockSkew {
		cfg.NonceTTL = 2 * cfg.ClockSkew
	}

	v := &WebhookVerifier{
		secrets: secrets,
		cfg:     cfg,
		gateway: gateway,
		seen:    &nonceCache{expires: map[string]time.Time{}},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Gateways lists the gateways that have a secret.
func (v *WebhookVerifier) Gateways() []string {
	names := make([]string, 0, len(v.secrets))
	for name := range v.secrets {
		names = append(names, name)
	}
	return names
}

type rejection struct {
	status int
	code   string
}

var (
	rejectUnknownGateway = rejection{http.StatusNotFound, "unknown_gateway"}
	rejectMissingHeaders = rejection{http.StatusUnauthorized, "signature_missing"}
	rejectStale          = rejection{http.StatusUnauthorized, "signature_expired"}
	rejectBadSignature   = rejection{http.StatusUnauthorized, "signature_invalid"}
	rejectReplay         = rejection{http.StatusConflict, "signature_replayed"}
	rejectUnreadable     = rejection{http.StatusBadRequest, "invalid_body"}
)

// Middleware admits a callback only after its signature checks out. The body is
// restored for the next handler.
func (v *WebhookVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := v.now()
		gateway, rej := v.check(r)
		if rej != nil {
			v.logger.Warn("webhook rejected",
				zap.String("gateway", gateway),
				zap.String("reason", rej.code),
				zap.String("path", r.URL.Path),
			)
			v.record(r.Context(), false, rej.code, started)
			respondAuthError(w, rej.status, rej.code, "webhook signature rejected")
			return
		}
		v.record(r.Context(), true, "ok", started)
		next.ServeHTTP(w, r)
	})
}

func (v *WebhookVerifier) check(r *http.Request) (string, *rejection) {
	name, ok := v.gateway(r)
	name = strings.ToLower(strings.TrimSpace(name))
	secret, known := v.secrets[name]
	if !ok || !known {
		return name, &rejectUnknownGateway
	}

	sig := strings.TrimSpace(r.Header.Get(v.cfg.SignatureHeader))
	stamp := strings.TrimSpace(r.Header.Get(v.cfg.TimestampHeader))
	nonce := strings.TrimSpace(r.Header.Get(v.cfg.NonceHeader))
	if sig == "" || stamp == "" || nonce == "" {
		return name, &rejectMissingHeaders
	}
	sentAt, err := parseWebhookTime(stamp)
	if err != nil {
		return name, &rejectMissingHeaders
	}
	now := v.now()
	if d := now.Sub(sentAt); d > v.cfg.ClockSkew || d < -v.cfg.ClockSkew {
		return name, &rejectStale
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return name, &rejectUnreadable
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !validSignature(secret, sig, WebhookPayload(stamp, nonce, body)) {
		return name, &rejectBadSignature
	}
	if !v.seen.add(name+"/"+nonce, now, now.Add(v.cfg.NonceTTL)) {
		return name, &rejectReplay
	}
	return name, nil
}

func (v *WebhookVerifier) record(ctx context.Context, ok bool, reason string, started time.Time) {
	if v.metrics != nil {
		v.metrics.RecordVerification(ctx, "webhook", ok, reason, v.now().Sub(started))
	}
}

// WebhookPayload is the byte string a gateway signs.
func WebhookPayload(timestamp, nonce string, body []byte) []byte {
	payload := make([]byte, 0, len(timestamp)+len(nonce)+len(body)+2)
	payload = append(payload, timestamp...)
	payload = append(payload, '.')
	payload = append(payload, nonce...)
	payload = append(payload, '.')
	return append(payload, body...)
}

// SignWebhook returns the hex HMAC-SHA256 of payload, as a gateway would send it.
func SignWebhook(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret []byte, sent string, payload []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	want := mac.Sum(nil)
	if got, err := hex.DecodeString(sent); err == nil && hmac.Equal(got, want) {
		return true
	}
	got, err := base64.StdEncoding.DecodeString(sent)
	return err == nil && hmac.Equal(got, want)
}

func parseWebhookTime(value string) (time.Time, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, value)
}

func firstNonBlank(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

// nonceCache remembers nonces until they expire.
type nonceCache struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func (c *nonceCache) add(key string, now, until time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, exp := range c.expires {
		if !now.Before(exp) {
			delete(c.expires, k)
		}
	}
	if _, dup := c.expires[key]; dup {
		return false
	}
	c.expires[key] = until
	return true
}
