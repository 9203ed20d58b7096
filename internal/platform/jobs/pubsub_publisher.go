package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/eventpass/api/internal/services"
)

// ErrUndeliverableJob rejects a job the consumer could never deliver, before it reaches the topic.
var ErrUndeliverableJob = errors.New("jobs: undeliverable notification job")

// PubSubNotificationPublisher queues order and broadcast notifications on a Pub/Sub topic.
// The recipient travels only in the payload; attributes carry routing metadata for filters.
type PubSubNotificationPublisher struct {
	topic *pubsub.Topic
}

var _ services.NotificationPublisher = (*PubSubNotificationPublisher)(nil)

func NewPubSubNotificationPublisher(topic *pubsub.Topic) (*PubSubNotificationPublisher, error) {
	if topic == nil {
		return nil, errors.New("notification publisher: topic is required")
	}
	return &PubSubNotificationPublisher{topic: topic}, nil
}

// PublishNotification returns the server-assigned message id once the topic accepted the job.
func (p *PubSubNotificationPublisher) PublishNotification(ctx context.Context, job services.NotificationJob) (string, error) {
	if strings.TrimSpace(job.Recipient) == "" {
		return "", fmt.Errorf("%w: job %s has no recipient", ErrUndeliverableJob, job.JobID)
	}
	switch job.Channel {
	case services.NotificationChannelSMS, services.NotificationChannelEmail:
	default:
		return "", fmt.Errorf("%w: job %s has channel %q", ErrUndeliverableJob, job.JobID, job.Channel)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("notification publisher: encode job %s: %w", job.JobID, err)
	}
	id, err := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: jobAttributes(job),
	}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("notification publisher: %s job %s for order %q: %w", job.Channel, job.JobID, job.OrderID, err)
	}
	return id, nil
}

func jobAttributes(job services.NotificationJob) map[string]string {
	attrs := map[string]string{"channel": string(job.Channel)}
	for key, value := range map[string]string{
		"jobId":    job.JobID,
		"template": job.Template,
		"orderId":  job.OrderID,
	} {
		if value = strings.TrimSpace(value); value != "" {
			attrs[key] = value
		}
	}
	if !job.QueuedAt.IsZero() {
		attrs["queuedAt"] = job.QueuedAt.UTC().Format(time.RFC3339)
	}
	return attrs
}
