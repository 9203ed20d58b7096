package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/eventpass/api/internal/services"
)

// ErrPermanent marks a delivery failure that a retry cannot fix. Such messages are acked.
var ErrPermanent = errors.New("jobs: permanent delivery failure")

// Deliverer sends one notification job to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, job services.NotificationJob) error
}

// ConsumerLogger receives delivery outcomes.
type ConsumerLogger func(ctx context.Context, event string, fields map[string]any)

// NotificationConsumer pulls notification jobs from a subscription and delivers them.
type NotificationConsumer struct {
	sub       *pubsub.Subscription
	deliverer Deliverer
	logger    ConsumerLogger
}

// NewNotificationConsumer wires a subscription to a deliverer.
func NewNotificationConsumer(sub *pubsub.Subscription, deliverer Deliverer, logger ConsumerLogger) (*NotificationConsumer, error) {
	if sub == nil {
		return nil, errors.New("notification consumer: subscription is required")
	}
	if deliverer == nil {
		return nil, errors.New("notification consumer: deliverer is required")
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &NotificationConsumer{sub: sub, deliverer: deliverer, logger: logger}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (c *NotificationConsumer) Run(ctx context.Context) error {
	err := c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("notification consumer: receive: %w", err)
	}
	return nil
}

// handle reports whether the message should be acked. Undecodable payloads and permanent
// failures are acked so they are not redelivered forever.
func (c *NotificationConsumer) handle(ctx context.Context, data []byte) bool {
	var job services.NotificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		c.logger(ctx, "notification.decode.failed", map[string]any{"error": err.Error()})
		return true
	}
	fields := map[string]any{
		"jobId":    job.JobID,
		"channel":  string(job.Channel),
		"template": job.Template,
		"orderId":  job.OrderID,
	}
	if err := c.deliverer.Deliver(ctx, job); err != nil {
		fields["error"] = err.Error()
		if errors.Is(err, ErrPermanent) {
			c.logger(ctx, "notification.dropped", fields)
			return true
		}
		c.logger(ctx, "notification.retry", fields)
		return false
	}
	c.logger(ctx, "notification.delivered", fields)
	return true
}
