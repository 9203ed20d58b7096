package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventpass/api/internal/platform/httpx"
	"github.com/eventpass/api/internal/platform/requestctx"
)

// InjectLoggerMiddleware stores the process logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// ClientIPMiddleware records the caller address. It must run after chi's RealIP.
func ClientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := strings.TrimSpace(r.RemoteAddr)
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithClientIP(r.Context(), host)))
	})
}

// RequestLoggerMiddleware writes one access line per request and tags the
// active span with the matched route. projectID links lines to Cloud Trace.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx).With(accessFields(r, projectID)...)
			r = r.WithContext(requestctx.WithLogger(ctx, logger))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				if p := recover(); p != nil {
					status = http.StatusInternalServerError
					defer panic(p)
				}
				route := SanitizeRoute(matchedRoute(r))
				annotateSpan(trace.SpanFromContext(r.Context()), route, status)
				logger.Log(levelFor(status), "request completed",
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(began)),
					zap.Int("bytes", ww.BytesWritten()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func accessFields(r *http.Request, projectID string) []zap.Field {
	ctx := r.Context()
	traceID := requestctx.TraceID(ctx)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("method", SanitizeMethod(r.Method)),
		zap.String("trace_id", traceID),
	}
	if projectID != "" && traceID != "" {
		fields = append(fields, zap.String("logging.googleapis.com/trace", "projects/"+projectID+"/traces/"+traceID))
	}
	if ip := requestctx.ClientIP(ctx); ip != "" {
		fields = append(fields, zap.String("remote_ip", sanitizeString(ip, 64)))
	}
	return fields
}

func annotateSpan(span trace.Span, route string, status int) {
	span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// RecoveryMiddleware turns handler panics into a JSON 500. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				switch p {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(p)
				}
				ctx := r.Context()
				logger := fallback
				if requestctx.HasLogger(ctx) {
					logger = requestctx.Logger(ctx)
				}
				logger.Error("panic recovered", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func matchedRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
