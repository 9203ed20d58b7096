package repositories

import (
	"context"
	"time"

	domain "github.com/eventpass/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderLogs() OrderLogRepository
	Ambassadors() AmbassadorRepository
	Events() EventRepository
	Admins() AdminRepository
	PaymentOptions() PaymentOptionRepository
	SiteContent() SiteContentRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders and their pass lines.
type OrderRepository interface {
	// Insert stores the order together with its pass lines and returns it with store-assigned fields.
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListBySources(ctx context.Context, sources []domain.OrderSource) ([]domain.Order, error)
	// UpdateStatus applies the update only while the order is still in update.From.
	// A status mismatch yields a conflict error.
	UpdateStatus(ctx context.Context, update OrderStatusUpdate) (domain.Order, error)
	// SumTickets totals order quantity for an ambassador across the given statuses.
	SumTickets(ctx context.Context, ambassadorID string, statuses []domain.OrderStatus) (int, error)
}

// OrderListFilter narrows admin and ambassador order listings.
type OrderListFilter struct {
	Statuses      []domain.OrderStatus
	PaymentMethod domain.PaymentMethod
	AmbassadorID  string
	EventID       string
	Pagination    domain.Pagination
}

// OrderStatusUpdate describes a conditional status change. Nil pointers leave columns untouched.
// When FromAmbassadorID is set the row must also still be assigned to it ("" means unassigned).
type OrderStatusUpdate struct {
	OrderID            string
	From               domain.OrderStatus
	FromAmbassadorID   *string
	To                 domain.OrderStatus
	UpdatedAt          time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	AssignedAt         *time.Time
	CancellationReason *string
	CancelledBy        *domain.ActorType
	AmbassadorID       *string
	PaymentStatus      *string
	PaymentGateway     *string
	PaymentReference   *string
}

// OrderLogRepository appends and reads order audit entries.
type OrderLogRepository interface {
	Append(ctx context.Context, entry domain.OrderLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.OrderLog, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderLog, error)
}

// AmbassadorRepository reads ambassador records.
type AmbassadorRepository interface {
	FindByID(ctx context.Context, ambassadorID string) (domain.Ambassador, error)
	FindByPhone(ctx context.Context, phone string) (domain.Ambassador, error)
	ListApproved(ctx context.Context, filter AmbassadorLocationFilter) ([]domain.Ambassador, error)
	ExistsApproved(ctx context.Context, filter AmbassadorLocationFilter) (bool, error)
}

// AmbassadorLocationFilter matches ambassadors on exact city and optional ville.
// A zero filter matches every approved ambassador.
type AmbassadorLocationFilter struct {
	City  string
	Ville string
}

// EventRepository persists events and their passes.
type EventRepository interface {
	ListPublished(ctx context.Context) ([]domain.Event, error)
	FindByID(ctx context.Context, eventID string) (domain.Event, error)
	FindPasses(ctx context.Context, eventID string, passIDs []string) ([]domain.EventPass, error)
	Insert(ctx context.Context, event domain.Event) error
	Update(ctx context.Context, event domain.Event) error
	UpdatePoster(ctx context.Context, eventID, posterURL string, updatedAt time.Time) error
}

// AdminRepository reads dashboard operators.
type AdminRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Admin, error)
	FindByID(ctx context.Context, adminID string) (domain.Admin, error)
}

// PaymentOptionRepository reads checkout payment options.
type PaymentOptionRepository interface {
	List(ctx context.Context) ([]domain.PaymentOption, error)
}

// SiteContentRepository stores editable site content blocks.
type SiteContentRepository interface {
	Get(ctx context.Context, key, lang string) (domain.SiteContent, error)
	Upsert(ctx context.Context, content domain.SiteContent) error
}

// HealthRepository aggregates dependency health checks for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
