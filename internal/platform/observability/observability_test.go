package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eventpass/api/internal/platform/requestctx"
)

func TestEventLoggerMasksContactFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logEvent := EventLogger(zap.New(core))

	logEvent(context.Background(), "notification.publish.failed", map[string]any{
		"recipient": "sami@example.com",
		"phone":     "+21698123456",
		"orderId":   "ord-1",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s***@example.com", fields["recipient"])
	assert.Equal(t, "*********456", fields["phone"])
	assert.Equal(t, "ord-1", fields["orderId"])
	assert.Equal(t, "notification.publish.failed", fields["event"])
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)
	logEvent := EventLogger(zap.New(baseCore))

	ctx := requestctx.WithLogger(context.Background(), zap.New(reqCore))
	logEvent(ctx, "order.created", nil)

	assert.Zero(t, baseLogs.Len())
	assert.Equal(t, 1, reqLogs.Len())
}

func TestRequestLoggerRecordsRouteAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), TraceMiddleware(), RequestLoggerMiddleware("demo-project"))
	router.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/orders/{orderID}", fields["route"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal_server_error")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestClientIPMiddlewareStripsPort(t *testing.T) {
	var got string
	handler := ClientIPMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestctx.ClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "197.1.2.3:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "197.1.2.3", got)
}

func TestMaskHelpers(t *testing.T) {
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "*****678", MaskPhone("12345678"))
	assert.Equal(t, "a**@b.tn", MaskEmail("abc@b.tn"))
}
