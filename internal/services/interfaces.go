package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderPass          = domain.OrderPass
	OrderLog           = domain.OrderLog
	OrderStatus        = domain.OrderStatus
	Ambassador         = domain.Ambassador
	Event              = domain.Event
	EventPass          = domain.EventPass
	Admin              = domain.Admin
	PaymentOption      = domain.PaymentOption
	SiteContent        = domain.SiteContent
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService orchestrates order creation and the admin lifecycle.
type OrderService interface {
	CreateCODOrder(ctx context.Context, cmd CreateCODOrderCommand) (Order, error)
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	ListAmbassadorOrders(ctx context.Context, ambassadorID string, pager Pagination) (domain.CursorPage[Order], error)
	AcceptOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error)
	CompleteOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error)
	CancelOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error)
	RefundOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error)
	ReassignOrder(ctx context.Context, cmd ReassignOrderCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	ApplyPaymentResult(ctx context.Context, cmd PaymentResultCommand) (Order, error)
	FetchAmbassadorSalesData(ctx context.Context) (AmbassadorSalesData, error)
}

// AmbassadorService answers ambassador availability, portal login and earnings.
type AmbassadorService interface {
	GetActiveAmbassadorsByLocation(ctx context.Context, city, ville string) ([]Ambassador, error)
	HasActiveAmbassadors(ctx context.Context, city, ville string) (bool, error)
	Login(ctx context.Context, cmd AmbassadorLoginCommand) (Session, error)
	Income(ctx context.Context, ambassadorID string) (AmbassadorIncome, error)
}

// AuthService authenticates dashboard operators.
type AuthService interface {
	AdminLogin(ctx context.Context, cmd AdminLoginCommand) (Session, error)
	CurrentAdmin(ctx context.Context, adminID string) (Admin, error)
}

// EventService manages the public event catalogue.
type EventService interface {
	ListPublished(ctx context.Context) ([]Event, error)
	GetEvent(ctx context.Context, eventID string) (Event, error)
	CreateEvent(ctx context.Context, cmd UpsertEventCommand) (Event, error)
	UpdateEvent(ctx context.Context, cmd UpsertEventCommand) (Event, error)
	IssuePosterUpload(ctx context.Context, cmd PosterUploadCommand) (PosterUpload, error)
	PublishPoster(ctx context.Context, cmd PublishPosterCommand) (Event, error)
}

// CatalogService exposes checkout payment options.
type CatalogService interface {
	ListPaymentOptions(ctx context.Context, location AmbassadorLocation) ([]PaymentOptionView, error)
}

// ContentService renders and edits site content blocks.
type ContentService interface {
	GetContent(ctx context.Context, key, lang string) (RenderedContent, error)
	UpsertContent(ctx context.Context, cmd UpsertContentCommand) (RenderedContent, error)
}

// NotificationService turns order transitions and broadcasts into notification jobs.
type NotificationService interface {
	NotifyOrder(ctx context.Context, order Order, event OrderNotification)
	BroadcastSMS(ctx context.Context, cmd BroadcastSMSCommand) (BroadcastResult, error)
}

// SystemService exposes operational metadata for health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// NotificationPublisher enqueues notification jobs on the delivery transport.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, job NotificationJob) (string, error)
}

// TokenIssuer signs session tokens for authenticated principals.
type TokenIssuer interface {
	IssueSession(subject SessionSubject, ttl time.Duration) (string, time.Time, error)
}

// PosterStorage issues signed poster uploads and publishes them.
type PosterStorage interface {
	IssuePosterUpload(ctx context.Context, eventID, fileName, contentType string) (PosterUpload, error)
	PublishPoster(ctx context.Context, eventID, uploadID, fileName string) (string, error)
}

// PaymentStatusMapper resolves a raw gateway status into a payment outcome.
type PaymentStatusMapper interface {
	MapStatus(gateway, rawStatus string) (PaymentOutcome, error)
}

// PaymentOutcome is the normalised result of a gateway status.
type PaymentOutcome string

const (
	PaymentOutcomePending PaymentOutcome = "pending"
	PaymentOutcomePaid    PaymentOutcome = "paid"
	PaymentOutcomeFailed  PaymentOutcome = "failed"
)

// OrderListFilter narrows admin order listings.
type OrderListFilter = repositories.OrderListFilter

// Customer carries the buyer contact and location fields.
type Customer struct {
	Name  string
	Phone string
	Email string
	City  string
	Ville string
}

// PassSelection is one selected pass line at checkout.
type PassSelection struct {
	PassID   string
	PassName string
	Quantity int
	Price    decimal.Decimal
}

// CreateCODOrderCommand is the legacy cash-on-delivery checkout.
type CreateCODOrderCommand struct {
	Passes     []PassSelection
	TotalPrice decimal.Decimal
	Customer   Customer
	EventID    string
}

// CreateOrderCommand is the unified checkout across payment methods.
type CreateOrderCommand struct {
	EventID       string
	Passes        []PassSelection
	TotalPrice    decimal.Decimal
	Customer      Customer
	PaymentMethod domain.PaymentMethod
	AmbassadorID  string
}

// AdminOrderCommand identifies an admin lifecycle action on an order.
type AdminOrderCommand struct {
	OrderID  string
	ActorID  string
	Reason   string
	Metadata map[string]any
}

// ReassignOrderCommand moves a cash order to another ambassador.
type ReassignOrderCommand struct {
	OrderID      string
	AmbassadorID string
	ActorID      string
}

// UpdateOrderStatusCommand drives the generic admin status updater.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  domain.OrderStatus
	ActorID string
	Reason  string
}

// PaymentResultCommand carries a verified gateway webhook.
type PaymentResultCommand struct {
	OrderID   string
	Gateway   string
	RawStatus string
	Reference string
}

// AmbassadorSalesData joins ambassador-sourced orders with their sellers and recent logs.
type AmbassadorSalesData struct {
	Ambassadors []Ambassador
	Orders      []AmbassadorSale
	Logs        []OrderLog
}

// AmbassadorSale is an order annotated with the resolved ambassador display name.
type AmbassadorSale struct {
	Order
	AmbassadorName string
}

// AmbassadorLocation identifies a customer location for ambassador matching.
type AmbassadorLocation struct {
	City  string
	Ville string
}

// AmbassadorLoginCommand carries portal credentials.
type AmbassadorLoginCommand struct {
	Phone    string
	Password string
}

// AdminLoginCommand carries dashboard credentials.
type AdminLoginCommand struct {
	Email    string
	Password string
}

// SessionSubject is the principal encoded into a session token.
type SessionSubject struct {
	ID    string
	Email string
	Role  string
}

// Session is an issued session token.
type Session struct {
	Subject   SessionSubject
	Token     string
	ExpiresAt time.Time
}

// AmbassadorIncome summarises an ambassador's commission.
type AmbassadorIncome struct {
	AmbassadorID string
	TicketsSold  int
	Income       int
}

// UpsertEventCommand creates or replaces an event and its passes.
type UpsertEventCommand struct {
	EventID     string
	Name        string
	Description string
	Venue       string
	City        string
	Date        time.Time
	Published   bool
	Passes      []EventPassInput
}

// EventPassInput is one pass tier in an event upsert.
type EventPassInput struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// PosterUploadCommand requests a signed poster upload URL.
type PosterUploadCommand struct {
	EventID     string
	FileName    string
	ContentType string
}

// PosterUpload is a signed upload target.
type PosterUpload struct {
	UploadID  string
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// PublishPosterCommand promotes a completed upload to the event poster.
type PublishPosterCommand struct {
	EventID  string
	UploadID string
	FileName string
}

// PaymentOptionView is a payment option annotated with availability.
type PaymentOptionView struct {
	PaymentOption
	Available bool
}

// RenderedContent is a site content block with sanitised HTML.
type RenderedContent struct {
	SiteContent
	HTML string
}

// UpsertContentCommand edits a site content block.
type UpsertContentCommand struct {
	Key     string
	Lang    string
	Title   string
	Body    string
	ActorID string
}

// OrderNotification names the order event a notification is sent for.
type OrderNotification string

const (
	NotifyOrderPlaced    OrderNotification = "order.placed"
	NotifyOrderAssigned  OrderNotification = "order.assigned"
	NotifyOrderAccepted  OrderNotification = "order.accepted"
	NotifyOrderCompleted OrderNotification = "order.completed"
	NotifyOrderCancelled OrderNotification = "order.cancelled"
	NotifyOrderPaid      OrderNotification = "order.paid"
)

// NotificationChannel selects the delivery gateway for a job.
type NotificationChannel string

const (
	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelEmail NotificationChannel = "email"
)

// NotificationJob is the message published to the notification transport.
type NotificationJob struct {
	JobID     string              `json:"jobId"`
	Channel   NotificationChannel `json:"channel"`
	Template  string              `json:"template"`
	Recipient string              `json:"recipient"`
	Subject   string              `json:"subject,omitempty"`
	Body      string              `json:"body"`
	OrderID   string              `json:"orderId,omitempty"`
	QueuedAt  time.Time           `json:"queuedAt"`
}

// BroadcastSMSCommand sends one message to many phone numbers.
type BroadcastSMSCommand struct {
	Phones  []string
	Message string
	ActorID string
}

// BroadcastResult reports how many jobs were queued.
type BroadcastResult struct {
	Queued  int
	Skipped int
	Failed  int
}
