// Package requestctx carries the per-request logger, trace and caller address
// set by the edge middlewares.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type valuesKey struct{}

var nop = zap.NewNop()

// TraceInfo is the W3C trace context of the current request.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// values is stored by value; every With* call stores an updated copy.
type values struct {
	logger   *zap.Logger
	trace    TraceInfo
	hasTrace bool
	clientIP string
}

func load(ctx context.Context) values {
	if ctx == nil {
		return values{}
	}
	v, _ := ctx.Value(valuesKey{}).(values)
	return v
}

func store(ctx context.Context, update func(*values)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	v := load(ctx)
	update(&v)
	return context.WithValue(ctx, valuesKey{}, v)
}

// WithLogger stores the request-scoped logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return store(ctx, func(v *values) { v.logger = logger })
}

// Logger returns the request logger, or a no-op logger when none was set.
func Logger(ctx context.Context) *zap.Logger {
	if l := load(ctx).logger; l != nil {
		return l
	}
	return nop
}

// HasLogger reports whether a request logger was set.
func HasLogger(ctx context.Context) bool {
	return load(ctx).logger != nil
}

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return store(ctx, func(v *values) { v.trace, v.hasTrace = info, true })
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	v := load(ctx)
	return v.trace, v.hasTrace
}

// TraceID is "" outside a traced request.
func TraceID(ctx context.Context) string {
	return load(ctx).trace.TraceID
}

// WithClientIP records the caller address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return store(ctx, func(v *values) { v.clientIP = ip })
}

func ClientIP(ctx context.Context) string {
	return load(ctx).clientIP
}
