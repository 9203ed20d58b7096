package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/api/internal/platform/httpx"
)

const (
	// ReplayHeader marks responses served from a stored key.
	ReplayHeader = "Idempotent-Replayed"
	maxKeyLength = 255
	maxBodyBytes = 1 << 20
)

type options struct {
	header   string
	ttl      time.Duration
	optional bool
	now      func() time.Time
	scope    func(*http.Request) string
	logger   *zap.Logger
}

// Option adjusts the middleware.
type Option func(*options)

// WithHeader sets the request header carrying the key.
func WithHeader(name string) Option {
	return func(o *options) {
		if name = strings.TrimSpace(name); name != "" {
			o.header = name
		}
	}
}

// WithTTL sets how long keys and their responses are kept.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithOptionalKey lets mutating requests without a key through unguarded.
func WithOptionalKey() Option {
	return func(o *options) { o.optional = true }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithScope namespaces keys by caller. An empty scope is shared by all anonymous callers.
func WithScope(scope func(*http.Request) string) Option {
	return func(o *options) {
		if scope != nil {
			o.scope = scope
		}
	}
}

// WithLogger reports store failures that do not change the response.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Middleware makes POST, PUT, PATCH and DELETE requests safe to retry under the same key.
// The first request runs; later ones with the same key and payload get the stored response.
// Responses with a 5xx status are not stored so the client can retry them.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	o := options{
		header: "Idempotency-Key",
		ttl:    DefaultTTL,
		now:    time.Now,
		scope:  func(*http.Request) string { return "" },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			var err error
			key := strings.TrimSpace(r.Header.Get(o.header))
			switch {
			case key == "" && o.optional:
				next.ServeHTTP(w, r)
				return
			case key == "":
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", o.header+" header is required", http.StatusBadRequest))
				return
			case len(key) > maxKeyLength:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", o.header+" is too long", http.StatusBadRequest))
				return
			}

			var body []byte
			if r.Body != nil {
				body, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
				_ = r.Body.Close()
			}
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read request body", http.StatusBadRequest))
				return
			}
			if len(body) > maxBodyBytes {
				httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body is too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scoped := o.scope(r) + "\x00" + key
			fingerprint := digest([]byte(r.Method), []byte(r.URL.Path), body)

			outcome, entry, err := store.Claim(ctx, scoped, fingerprint, o.now().UTC(), o.ttl)
			switch {
			case errors.Is(err, ErrKeyReused):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "key was already used for a different request", http.StatusUnprocessableEntity))
				return
			case err != nil:
				o.logger.Error("idempotency claim failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to check the idempotency key", http.StatusServiceUnavailable))
				return
			case outcome == Replay:
				replay(w, entry.Response)
				return
			case outcome == InFlight:
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this key is still running", http.StatusConflict))
				return
			}

			capture := &captureWriter{header: http.Header{}}
			finished := false
			defer func() {
				if !finished {
					o.abandon(store, scoped, fingerprint)
				}
			}()
			next.ServeHTTP(capture, r)
			finished = true

			resp := capture.response()
			if resp.Status >= http.StatusInternalServerError {
				o.abandon(store, scoped, fingerprint)
			} else if err := store.Complete(context.WithoutCancel(ctx), scoped, fingerprint, resp, o.now().UTC(), o.ttl); err != nil {
				// The handler already committed its side effects; report them rather than fail the call.
				o.logger.Error("idempotency response not stored", zap.Error(err), zap.String("path", r.URL.Path))
				o.abandon(store, scoped, fingerprint)
			}
			capture.flushTo(w)
		})
	}
}

func (o options) abandon(store Store, key, fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Abandon(ctx, key, fingerprint); err != nil {
		o.logger.Warn("idempotency key not released", zap.Error(err))
	}
}

func replay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Header {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(ReplayHeader, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// captureWriter buffers the handler's response until it has been stored.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.WriteHeader(http.StatusOK)
	return c.body.Write(p)
}

func (c *captureWriter) response() Response {
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return Response{Status: status, Header: c.header.Clone(), Body: bytes.Clone(c.body.Bytes())}
}

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for name, values := range c.header {
		w.Header()[name] = values
	}
	resp := c.response()
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
