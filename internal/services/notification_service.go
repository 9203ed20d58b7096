package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/textutil"
)

const (
	maxBroadcastRecipients = 500
	defaultPublishTimeout  = 5 * time.Second
)

var (
	// ErrNotificationInvalidInput signals a malformed broadcast or template catalogue.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationUnavailable indicates the transport rejected every job.
	ErrNotificationUnavailable = errors.New("notification: transport unavailable")
)

// NotificationTemplate is one localised message for a channel.
type NotificationTemplate struct {
	Subject map[string]string `yaml:"subject"`
	Body    map[string]string `yaml:"body"`
}

// NotificationTemplateSet groups the channel templates for one order event.
type NotificationTemplateSet struct {
	Customer   map[NotificationChannel]NotificationTemplate `yaml:"customer"`
	Ambassador map[NotificationChannel]NotificationTemplate `yaml:"ambassador"`
}

// NotificationCatalog maps order events to their templates.
type NotificationCatalog struct {
	DefaultLang string                                        `yaml:"default_lang"`
	Orders      map[OrderNotification]NotificationTemplateSet `yaml:"orders"`
}

// ParseNotificationCatalog decodes a YAML template catalogue.
func ParseNotificationCatalog(data []byte) (NotificationCatalog, error) {
	var catalog NotificationCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return NotificationCatalog{}, fmt.Errorf("%w: decode templates: %v", ErrNotificationInvalidInput, err)
	}
	catalog.DefaultLang = domain.NormalizeLang(catalog.DefaultLang)
	for event, set := range catalog.Orders {
		for channel, tmpl := range set.Customer {
			if err := validateTemplate(channel, tmpl); err != nil {
				return NotificationCatalog{}, fmt.Errorf("%w: %s customer %s: %v", ErrNotificationInvalidInput, event, channel, err)
			}
		}
		for channel, tmpl := range set.Ambassador {
			if err := validateTemplate(channel, tmpl); err != nil {
				return NotificationCatalog{}, fmt.Errorf("%w: %s ambassador %s: %v", ErrNotificationInvalidInput, event, channel, err)
			}
		}
	}
	return catalog, nil
}

// LoadNotificationCatalog reads and parses a catalogue file.
func LoadNotificationCatalog(path string) (NotificationCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NotificationCatalog{}, fmt.Errorf("notification: read templates: %w", err)
	}
	return ParseNotificationCatalog(data)
}

func validateTemplate(channel NotificationChannel, tmpl NotificationTemplate) error {
	switch channel {
	case NotificationChannelSMS, NotificationChannelEmail:
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
	if len(tmpl.Body) == 0 {
		return errors.New("body is required")
	}
	if channel == NotificationChannelEmail && len(tmpl.Subject) == 0 {
		return errors.New("email subject is required")
	}
	return nil
}

// NotificationServiceDeps bundles collaborators required to construct the notification service.
type NotificationServiceDeps struct {
	Publisher   NotificationPublisher
	Catalog     NotificationCatalog
	Ambassadors AmbassadorLookup
	// PublishTimeout bounds order notifications, which outlive the request that triggered them.
	PublishTimeout time.Duration
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

// AmbassadorLookup resolves the assigned ambassador for ambassador-facing messages.
type AmbassadorLookup interface {
	FindByID(ctx context.Context, ambassadorID string) (domain.Ambassador, error)
}

type notificationService struct {
	publisher      NotificationPublisher
	catalog        NotificationCatalog
	ambassadors    AmbassadorLookup
	publishTimeout time.Duration
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService wires dependencies into the notification service.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Publisher == nil {
		return nil, errors.New("notification service: publisher is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}
	catalog := deps.Catalog
	if catalog.DefaultLang == "" {
		catalog.DefaultLang = "fr"
	}
	timeout := deps.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &notificationService{
		publisher:      deps.Publisher,
		catalog:        catalog,
		ambassadors:    deps.Ambassadors,
		publishTimeout: timeout,
		clock:          func() time.Time { return clock().UTC() },
		newID:          idGen,
		logger:         logger,
	}, nil
}

// NotifyOrder renders and publishes the jobs for an order event. Publishing is detached from
// the caller's cancellation and bounded by the publish timeout. Failures are logged only.
func (s *notificationService) NotifyOrder(ctx context.Context, order Order, event OrderNotification) {
	set, ok := s.catalog.Orders[event]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	values := orderTemplateValues(order)

	for channel, tmpl := range set.Customer {
		recipient := order.UserPhone
		if channel == NotificationChannelEmail {
			recipient = order.UserEmail
		}
		s.publish(ctx, event, channel, recipient, tmpl, values, order.ID)
	}

	if len(set.Ambassador) == 0 || order.AmbassadorID == "" || s.ambassadors == nil {
		return
	}
	ambassador, err := s.ambassadors.FindByID(ctx, order.AmbassadorID)
	if err != nil {
		s.logger(ctx, "notification.ambassador.lookup.failed", map[string]any{
			"orderId":      order.ID,
			"ambassadorId": order.AmbassadorID,
			"error":        err.Error(),
		})
		return
	}
	values["ambassador_name"] = ambassador.FullName
	for channel, tmpl := range set.Ambassador {
		recipient := ambassador.Phone
		if channel == NotificationChannelEmail {
			recipient = ambassador.Email
		}
		s.publish(ctx, event, channel, recipient, tmpl, values, order.ID)
	}
}

func (s *notificationService) BroadcastSMS(ctx context.Context, cmd BroadcastSMSCommand) (BroadcastResult, error) {
	message := strings.TrimSpace(cmd.Message)
	if message == "" {
		return BroadcastResult{}, fmt.Errorf("%w: message is required", ErrNotificationInvalidInput)
	}
	if len(cmd.Phones) == 0 {
		return BroadcastResult{}, fmt.Errorf("%w: at least one phone number is required", ErrNotificationInvalidInput)
	}
	if len(cmd.Phones) > maxBroadcastRecipients {
		return BroadcastResult{}, fmt.Errorf("%w: at most %d recipients per broadcast", ErrNotificationInvalidInput, maxBroadcastRecipients)
	}

	var result BroadcastResult
	seen := make(map[string]struct{}, len(cmd.Phones))
	for _, phone := range cmd.Phones {
		phone = textutil.NormalizePhone(phone)
		if phone == "" {
			result.Skipped++
			continue
		}
		if _, dup := seen[phone]; dup {
			result.Skipped++
			continue
		}
		seen[phone] = struct{}{}

		job := NotificationJob{
			JobID:     s.newID(),
			Channel:   NotificationChannelSMS,
			Template:  "broadcast",
			Recipient: phone,
			Body:      message,
			QueuedAt:  s.clock(),
		}
		if _, err := s.publisher.PublishNotification(ctx, job); err != nil {
			result.Failed++
			s.logger(ctx, "notification.broadcast.publish.failed", map[string]any{"jobId": job.JobID, "error": err.Error()})
			continue
		}
		result.Queued++
	}
	s.logger(ctx, "notification.broadcast", map[string]any{
		"actorId": strings.TrimSpace(cmd.ActorID),
		"queued":  result.Queued,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
	if result.Queued == 0 && result.Failed > 0 {
		return result, ErrNotificationUnavailable
	}
	return result, nil
}

func (s *notificationService) publish(ctx context.Context, event OrderNotification, channel NotificationChannel, recipient string, tmpl NotificationTemplate, values map[string]string, orderID string) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return
	}
	job := NotificationJob{
		JobID:     s.newID(),
		Channel:   channel,
		Template:  string(event),
		Recipient: recipient,
		Subject:   renderTemplate(s.localised(tmpl.Subject), values),
		Body:      renderTemplate(s.localised(tmpl.Body), values),
		OrderID:   orderID,
		QueuedAt:  s.clock(),
	}
	if _, err := s.publisher.PublishNotification(ctx, job); err != nil {
		s.logger(ctx, "notification.publish.failed", map[string]any{
			"jobId":    job.JobID,
			"orderId":  orderID,
			"template": job.Template,
			"channel":  string(channel),
			"error":    err.Error(),
		})
	}
}

func (s *notificationService) localised(values map[string]string) string {
	if v, ok := values[s.catalog.DefaultLang]; ok {
		return v
	}
	if v, ok := values["en"]; ok {
		return v
	}
	return values["fr"]
}

func orderTemplateValues(order Order) map[string]string {
	number := ""
	if order.OrderNumber != nil {
		number = strconv.FormatInt(*order.OrderNumber, 10)
	}
	return map[string]string{
		"order_id":     order.ID,
		"order_number": number,
		"name":         order.UserName,
		"phone":        order.UserPhone,
		"city":         order.City,
		"ville":        order.Ville,
		"quantity":     strconv.Itoa(order.Quantity),
		"pass_type":    order.PassType,
		"total":        order.TotalPrice.StringFixed(2),
		"reason":       order.CancellationReason,
	}
}

// renderTemplate substitutes {placeholder} tokens; unknown tokens are left as written.
func renderTemplate(text string, values map[string]string) string {
	if text == "" || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
