package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eventpass/api/internal/services"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPubSubNotificationPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	publisher, err := NewPubSubNotificationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubNotificationPublisher: %v", err)
	}

	job := services.NotificationJob{
		JobID:     "01J0000000000000000000000",
		Channel:   services.NotificationChannelSMS,
		Template:  string(services.NotifyOrderPlaced),
		Recipient: "+21655000000",
		Body:      "Merci Sami",
		OrderID:   "ord-1",
		QueuedAt:  time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	if _, err := publisher.PublishNotification(ctx, job); err != nil {
		t.Fatalf("PublishNotification: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload services.NotificationJob
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Recipient != job.Recipient || payload.Body != job.Body || !payload.QueuedAt.Equal(job.QueuedAt) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["channel"] != "sms" || attrs["orderId"] != "ord-1" || attrs["template"] != "order.placed" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if _, ok := attrs["recipient"]; ok {
		t.Fatal("recipient must not be exposed as an attribute")
	}
	if attrs["queuedAt"] != "2025-05-06T09:00:00Z" {
		t.Fatalf("unexpected queuedAt attribute %q", attrs["queuedAt"])
	}
}

func TestPubSubNotificationPublisherRejectsUndeliverableJobs(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	publisher, err := NewPubSubNotificationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubNotificationPublisher: %v", err)
	}

	jobs := map[string]services.NotificationJob{
		"no recipient":    {JobID: "job-1", Channel: services.NotificationChannelSMS, Body: "hi"},
		"unknown channel": {JobID: "job-2", Channel: "fax", Recipient: "+21655000000", Body: "hi"},
	}
	for name, job := range jobs {
		t.Run(name, func(t *testing.T) {
			if _, err := publisher.PublishNotification(ctx, job); !errors.Is(err, ErrUndeliverableJob) {
				t.Fatalf("expected undeliverable job error, got %v", err)
			}
		})
	}
	if n := len(srv.Messages()); n != 0 {
		t.Fatalf("expected nothing published, got %d messages", n)
	}
}

func TestNewPubSubNotificationPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubNotificationPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}

type flakyDeliverer struct {
	mu       sync.Mutex
	attempts int
	failures int
	done     chan services.NotificationJob
}

func (d *flakyDeliverer) Deliver(_ context.Context, job services.NotificationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failures {
		return errors.New("gateway timeout")
	}
	d.done <- job
	return nil
}

func TestNotificationConsumerRedeliversAfterNack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	client, _ := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	sub, err := client.CreateSubscription(ctx, "notifier", pubsub.SubscriptionConfig{Topic: topic})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	publisher, err := NewPubSubNotificationPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubNotificationPublisher: %v", err)
	}

	deliverer := &flakyDeliverer{failures: 1, done: make(chan services.NotificationJob, 1)}
	consumer, err := NewNotificationConsumer(sub, deliverer, nil)
	if err != nil {
		t.Fatalf("NewNotificationConsumer: %v", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(runCtx) }()

	if _, err := publisher.PublishNotification(ctx, services.NotificationJob{JobID: "job-1", Channel: services.NotificationChannelSMS, Recipient: "+216", Body: "hi"}); err != nil {
		t.Fatalf("PublishNotification: %v", err)
	}

	select {
	case job := <-deliverer.done:
		if job.JobID != "job-1" {
			t.Fatalf("unexpected job %+v", job)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for redelivery")
	}
	stop()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if deliverer.attempts < 2 {
		t.Fatalf("expected a retry after nack, got %d attempts", deliverer.attempts)
	}
}

type funcDeliverer func(context.Context, services.NotificationJob) error

func (f funcDeliverer) Deliver(ctx context.Context, job services.NotificationJob) error {
	return f(ctx, job)
}

func TestNotificationConsumerAckDecisions(t *testing.T) {
	var events []string
	logger := func(_ context.Context, event string, _ map[string]any) { events = append(events, event) }
	payload, _ := json.Marshal(services.NotificationJob{JobID: "job-1"})

	cases := []struct {
		name  string
		data  []byte
		err   error
		ack   bool
		event string
	}{
		{"delivered", payload, nil, true, "notification.delivered"},
		{"transient", payload, errors.New("timeout"), false, "notification.retry"},
		{"permanent", payload, ErrPermanent, true, "notification.dropped"},
		{"garbage", []byte("{"), nil, true, "notification.decode.failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events = nil
			c := &NotificationConsumer{
				deliverer: funcDeliverer(func(context.Context, services.NotificationJob) error { return tc.err }),
				logger:    logger,
			}
			if got := c.handle(context.Background(), tc.data); got != tc.ack {
				t.Fatalf("expected ack=%v, got %v", tc.ack, got)
			}
			if len(events) != 1 || events[0] != tc.event {
				t.Fatalf("expected event %s, got %v", tc.event, events)
			}
		})
	}
}
