package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Order is a single customer purchase of one or more passes.
type Order struct {
	ID                 string
	OrderNumber        *int64
	Source             OrderSource
	UserName           string
	UserPhone          string
	UserEmail          string
	City               string
	Ville              string
	AmbassadorID       string
	EventID            string
	PassType           string
	Quantity           int
	TotalPrice         decimal.Decimal
	PaymentMethod      PaymentMethod
	Status             OrderStatus
	PaymentStatus      string
	PaymentGateway     string
	PaymentReference   string
	CancellationReason string
	CancelledBy        ActorType
	Notes              map[string]any
	Passes             []OrderPass
	AssignedAt         *time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderPass snapshots one pass line of an order at the price paid.
type OrderPass struct {
	ID       string
	OrderID  string
	PassID   string
	PassType string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal returns price × quantity for the line.
func (p OrderPass) Subtotal() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Ambassador is an approved reseller who handles cash orders in their area.
type Ambassador struct {
	ID             string
	FullName       string
	Phone          string
	Email          string
	City           string
	Ville          string
	PasswordHash   string `json:"-"`
	Status         AmbassadorApproval
	CommissionRate decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderLog is an append-only audit record of an order state change.
type OrderLog struct {
	ID              string
	OrderID         string
	Action          OrderLogAction
	PerformedBy     string
	PerformedByType ActorType
	Details         map[string]any
	CreatedAt       time.Time
}

// Event is a ticketed event published on the public site.
type Event struct {
	ID          string
	Name        string
	Description string
	Venue       string
	City        string
	Date        time.Time
	PosterURL   string
	Published   bool
	Passes      []EventPass
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventPass is a ticket tier offered for an event.
type EventPass struct {
	ID          string
	EventID     string
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
}

// Admin is a dashboard operator.
type Admin struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string `json:"-"`
	Active       bool
	CreatedAt    time.Time
}

// PaymentOption is an admin-configured payment mode shown at checkout.
type PaymentOption struct {
	Type        PaymentOptionType
	Enabled     bool
	Label       string
	Description string
	ExternalURL string
	UpdatedAt   time.Time
}

// SiteContent is a keyed markdown block editable from the dashboard.
type SiteContent struct {
	Key       string
	Lang      string
	Title     string
	Body      string
	UpdatedAt time.Time
	UpdatedBy string
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
