package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
)

const testCatalogYAML = `
default_lang: fr
orders:
  order.placed:
    customer:
      sms:
        body:
          fr: "Merci {name}, commande {order_number}: {quantity} x {pass_type}, total {total} DT."
          en: "Thanks {name}, order {order_number}: {quantity} x {pass_type}, total {total} TND."
      email:
        subject:
          fr: "Commande {order_number}"
        body:
          fr: "Bonjour {name}"
  order.assigned:
    ambassador:
      sms:
        body:
          fr: "{ambassador_name}: nouvelle commande {order_number} a {ville}, client {phone}."
`

type capturePublisher struct {
	jobs []NotificationJob
	err  error
}

func (p *capturePublisher) PublishNotification(_ context.Context, job NotificationJob) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "msg-" + strconv.Itoa(len(p.jobs)), nil
}

func newNotificationService(t *testing.T, publisher *capturePublisher) NotificationService {
	t.Helper()
	catalog, err := ParseNotificationCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("ParseNotificationCatalog: %v", err)
	}
	seq := 0
	svc, err := NewNotificationService(NotificationServiceDeps{
		Publisher: publisher,
		Catalog:   catalog,
		Ambassadors: &stubAmbassadorRepo{ambassadors: []domain.Ambassador{
			{ID: "amb-1", FullName: "Amira", Phone: "+21620000001"},
		}},
		Clock: func() time.Time { return time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			seq++
			return "job-" + strconv.Itoa(seq)
		},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	return svc
}

func TestNotificationServiceNotifyOrderPlaced(t *testing.T) {
	publisher := &capturePublisher{}
	svc := newNotificationService(t, publisher)

	order := Order{
		ID:          "ord-1",
		OrderNumber: valuePtr(int64(42)),
		UserName:    "Sami",
		UserPhone:   "+21655000000",
		UserEmail:   "sami@example.tn",
		Quantity:    2,
		PassType:    "Standard",
		TotalPrice:  decimal.NewFromInt(100),
	}
	svc.NotifyOrder(context.Background(), order, NotifyOrderPlaced)

	if len(publisher.jobs) != 2 {
		t.Fatalf("expected sms and email jobs, got %d", len(publisher.jobs))
	}
	byChannel := map[NotificationChannel]NotificationJob{}
	for _, job := range publisher.jobs {
		byChannel[job.Channel] = job
	}
	sms := byChannel[NotificationChannelSMS]
	if sms.Recipient != "+21655000000" || sms.Body != "Merci Sami, commande 42: 2 x Standard, total 100.00 DT." {
		t.Fatalf("unexpected sms job %+v", sms)
	}
	email := byChannel[NotificationChannelEmail]
	if email.Recipient != "sami@example.tn" || email.Subject != "Commande 42" {
		t.Fatalf("unexpected email job %+v", email)
	}
	if sms.Template != string(NotifyOrderPlaced) || sms.OrderID != "ord-1" {
		t.Fatalf("unexpected job metadata %+v", sms)
	}
}

func TestNotificationServiceNotifiesAmbassador(t *testing.T) {
	publisher := &capturePublisher{}
	svc := newNotificationService(t, publisher)

	svc.NotifyOrder(context.Background(), Order{ID: "ord-2", OrderNumber: valuePtr(int64(7)), AmbassadorID: "amb-1", Ville: "Ariana", UserPhone: "+21698000000"}, NotifyOrderAssigned)

	if len(publisher.jobs) != 1 {
		t.Fatalf("expected one ambassador job, got %d", len(publisher.jobs))
	}
	job := publisher.jobs[0]
	if job.Recipient != "+21620000001" || job.Body != "Amira: nouvelle commande 7 a Ariana, client +21698000000." {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestNotificationServiceSkipsUnknownEventsAndSwallowsErrors(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("pubsub down")}
	svc := newNotificationService(t, publisher)

	svc.NotifyOrder(context.Background(), Order{ID: "ord-1", UserPhone: "+216"}, NotifyOrderPlaced)
	svc.NotifyOrder(context.Background(), Order{ID: "ord-1"}, NotifyOrderCompleted)
}

type deadlinePublisher struct {
	deadlines []time.Duration
	cancelled []bool
}

func (p *deadlinePublisher) PublishNotification(ctx context.Context, _ NotificationJob) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return "", errors.New("publish without deadline")
	}
	p.deadlines = append(p.deadlines, time.Until(deadline))
	p.cancelled = append(p.cancelled, ctx.Err() != nil)
	return "msg", nil
}

func TestNotificationServiceNotifyOrderUsesOwnTimeout(t *testing.T) {
	catalog, err := ParseNotificationCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("ParseNotificationCatalog: %v", err)
	}
	publisher := &deadlinePublisher{}
	svc, err := NewNotificationService(NotificationServiceDeps{
		Publisher:      publisher,
		Catalog:        catalog,
		PublishTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	// The request that placed the order is already gone.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.NotifyOrder(ctx, Order{ID: "ord-1", UserPhone: "+21655000000"}, NotifyOrderPlaced)

	if len(publisher.deadlines) != 1 {
		t.Fatalf("expected one publish, got %d", len(publisher.deadlines))
	}
	if d := publisher.deadlines[0]; d <= 0 || d > 2*time.Second {
		t.Fatalf("expected a deadline within the publish timeout, got %s", d)
	}
	if publisher.cancelled[0] {
		t.Fatal("expected publish context to survive the cancelled request")
	}
}

func TestNotificationServiceBroadcastSMS(t *testing.T) {
	publisher := &capturePublisher{}
	svc := newNotificationService(t, publisher)

	result, err := svc.BroadcastSMS(context.Background(), BroadcastSMSCommand{
		Phones:  []string{"+21611111111", " ", "+21611111111", "+21622222222"},
		Message: "Doors open at 20:00",
	})
	if err != nil {
		t.Fatalf("BroadcastSMS: %v", err)
	}
	if result.Queued != 2 || result.Skipped != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := svc.BroadcastSMS(context.Background(), BroadcastSMSCommand{Phones: []string{"+216"}}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected message to be required, got %v", err)
	}
	tooMany := make([]string, maxBroadcastRecipients+1)
	if _, err := svc.BroadcastSMS(context.Background(), BroadcastSMSCommand{Phones: tooMany, Message: "x"}); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected recipient limit, got %v", err)
	}

	publisher.err = errors.New("pubsub down")
	if _, err := svc.BroadcastSMS(context.Background(), BroadcastSMSCommand{Phones: []string{"+21633333333"}, Message: "x"}); !errors.Is(err, ErrNotificationUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestParseNotificationCatalogValidates(t *testing.T) {
	cases := map[string]string{
		"unknown channel": "orders:\n  order.placed:\n    customer:\n      fax:\n        body:\n          fr: x\n",
		"missing body":    "orders:\n  order.placed:\n    customer:\n      sms: {}\n",
		"email subject":   "orders:\n  order.placed:\n    customer:\n      email:\n        body:\n          fr: x\n",
		"not yaml":        "orders: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseNotificationCatalog([]byte(doc)); !errors.Is(err, ErrNotificationInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}
