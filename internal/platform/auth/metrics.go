package auth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder receives one call per session or webhook verification.
// kind is "session" or "webhook"; reason is empty on success.
type MetricsRecorder interface {
	RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration)
}

type otelVerificationMetrics struct {
	count   metric.Int64Counter
	latency metric.Float64Histogram
}

// NewOTelMetrics exports auth.verification.count and auth.verification.latency
// (milliseconds) on meter.
func NewOTelMetrics(meter metric.Meter) (MetricsRecorder, error) {
	m := &otelVerificationMetrics{}
	var err error
	if m.count, err = meter.Int64Counter("auth.verification.count",
		metric.WithDescription("Verification attempts by kind and outcome")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("auth.verification.latency",
		metric.WithDescription("Time spent verifying a request"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelVerificationMetrics) RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration) {
	set := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
		attribute.String("reason", reason),
	))
	m.count.Add(ctx, 1, set)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, set)
}
