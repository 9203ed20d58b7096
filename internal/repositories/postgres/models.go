package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	domain "github.com/eventpass/api/internal/domain"
)

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                 string          `bun:"id,pk"`
	OrderNumber        int64           `bun:"order_number,nullzero"`
	Source             string          `bun:"source,notnull"`
	UserName           string          `bun:"user_name,notnull"`
	UserPhone          string          `bun:"user_phone,notnull"`
	UserEmail          string          `bun:"user_email,nullzero"`
	City               string          `bun:"city,notnull"`
	Ville              string          `bun:"ville,nullzero"`
	AmbassadorID       string          `bun:"ambassador_id,nullzero"`
	EventID            string          `bun:"event_id,nullzero"`
	PassType           string          `bun:"pass_type,notnull"`
	Quantity           int             `bun:"quantity,notnull"`
	TotalPrice         decimal.Decimal `bun:"total_price,type:numeric(10,2),notnull"`
	PaymentMethod      string          `bun:"payment_method,notnull"`
	Status             string          `bun:"status,notnull"`
	PaymentStatus      string          `bun:"payment_status,nullzero"`
	PaymentGateway     string          `bun:"payment_gateway,nullzero"`
	PaymentReference   string          `bun:"payment_reference,nullzero"`
	CancellationReason string          `bun:"cancellation_reason,nullzero"`
	CancelledBy        string          `bun:"cancelled_by,nullzero"`
	Notes              map[string]any  `bun:"notes,type:jsonb,nullzero"`
	AssignedAt         *time.Time      `bun:"assigned_at"`
	AcceptedAt         *time.Time      `bun:"accepted_at"`
	CompletedAt        *time.Time      `bun:"completed_at"`
	CancelledAt        *time.Time      `bun:"cancelled_at"`
	CreatedAt          time.Time       `bun:"created_at,notnull"`
	UpdatedAt          time.Time       `bun:"updated_at,notnull"`

	Passes []*orderPassRow `bun:"rel:has-many,join:id=order_id"`
}

type orderPassRow struct {
	bun.BaseModel `bun:"table:order_passes,alias:op"`

	ID       string          `bun:"id,pk"`
	OrderID  string          `bun:"order_id,notnull"`
	PassID   string          `bun:"pass_id,nullzero"`
	PassType string          `bun:"pass_type,notnull"`
	Quantity int             `bun:"quantity,notnull"`
	Price    decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
}

func newOrderRow(order domain.Order) *orderRow {
	row := &orderRow{
		ID:                 order.ID,
		Source:             string(order.Source),
		UserName:           order.UserName,
		UserPhone:          order.UserPhone,
		UserEmail:          order.UserEmail,
		City:               order.City,
		Ville:              order.Ville,
		AmbassadorID:       order.AmbassadorID,
		EventID:            order.EventID,
		PassType:           order.PassType,
		Quantity:           order.Quantity,
		TotalPrice:         order.TotalPrice,
		PaymentMethod:      string(order.PaymentMethod),
		Status:             string(order.Status),
		PaymentStatus:      order.PaymentStatus,
		PaymentGateway:     order.PaymentGateway,
		PaymentReference:   order.PaymentReference,
		CancellationReason: order.CancellationReason,
		CancelledBy:        string(order.CancelledBy),
		Notes:              order.Notes,
		AssignedAt:         utcPtr(order.AssignedAt),
		AcceptedAt:         utcPtr(order.AcceptedAt),
		CompletedAt:        utcPtr(order.CompletedAt),
		CancelledAt:        utcPtr(order.CancelledAt),
		CreatedAt:          order.CreatedAt.UTC(),
		UpdatedAt:          order.UpdatedAt.UTC(),
	}
	for _, pass := range order.Passes {
		row.Passes = append(row.Passes, &orderPassRow{
			ID:       pass.ID,
			OrderID:  order.ID,
			PassID:   pass.PassID,
			PassType: pass.PassType,
			Quantity: pass.Quantity,
			Price:    pass.Price,
		})
	}
	return row
}

func (r *orderRow) toDomain() domain.Order {
	order := domain.Order{
		ID:                 r.ID,
		Source:             domain.OrderSource(r.Source),
		UserName:           r.UserName,
		UserPhone:          r.UserPhone,
		UserEmail:          r.UserEmail,
		City:               r.City,
		Ville:              r.Ville,
		AmbassadorID:       r.AmbassadorID,
		EventID:            r.EventID,
		PassType:           r.PassType,
		Quantity:           r.Quantity,
		TotalPrice:         r.TotalPrice,
		PaymentMethod:      domain.PaymentMethod(r.PaymentMethod),
		Status:             domain.OrderStatus(r.Status),
		PaymentStatus:      r.PaymentStatus,
		PaymentGateway:     r.PaymentGateway,
		PaymentReference:   r.PaymentReference,
		CancellationReason: r.CancellationReason,
		CancelledBy:        domain.ActorType(r.CancelledBy),
		Notes:              r.Notes,
		AssignedAt:         r.AssignedAt,
		AcceptedAt:         r.AcceptedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.OrderNumber > 0 {
		number := r.OrderNumber
		order.OrderNumber = &number
	}
	for _, pass := range r.Passes {
		order.Passes = append(order.Passes, domain.OrderPass{
			ID:       pass.ID,
			OrderID:  pass.OrderID,
			PassID:   pass.PassID,
			PassType: pass.PassType,
			Quantity: pass.Quantity,
			Price:    pass.Price,
		})
	}
	return order
}

type orderLogRow struct {
	bun.BaseModel `bun:"table:order_logs,alias:ol"`

	ID              string         `bun:"id,pk"`
	OrderID         string         `bun:"order_id,notnull"`
	Action          string         `bun:"action,notnull"`
	PerformedBy     string         `bun:"performed_by,nullzero"`
	PerformedByType string         `bun:"performed_by_type,notnull"`
	Details         map[string]any `bun:"details,type:jsonb,nullzero"`
	CreatedAt       time.Time      `bun:"created_at,notnull"`
}

func (r *orderLogRow) toDomain() domain.OrderLog {
	return domain.OrderLog{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Action:          domain.OrderLogAction(r.Action),
		PerformedBy:     r.PerformedBy,
		PerformedByType: domain.ActorType(r.PerformedByType),
		Details:         r.Details,
		CreatedAt:       r.CreatedAt,
	}
}

type ambassadorRow struct {
	bun.BaseModel `bun:"table:ambassadors,alias:a"`

	ID             string          `bun:"id,pk"`
	FullName       string          `bun:"full_name,notnull"`
	Phone          string          `bun:"phone,notnull"`
	Email          string          `bun:"email,nullzero"`
	City           string          `bun:"city,notnull"`
	Ville          string          `bun:"ville,nullzero"`
	Password       string          `bun:"password,notnull"`
	Status         string          `bun:"status,notnull"`
	CommissionRate decimal.Decimal `bun:"commission_rate,type:numeric(5,2)"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull"`
}

func (r *ambassadorRow) toDomain() domain.Ambassador {
	return domain.Ambassador{
		ID:             r.ID,
		FullName:       r.FullName,
		Phone:          r.Phone,
		Email:          r.Email,
		City:           r.City,
		Ville:          r.Ville,
		PasswordHash:   r.Password,
		Status:         domain.AmbassadorApproval(r.Status),
		CommissionRate: r.CommissionRate,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type eventRow struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,nullzero"`
	Venue       string    `bun:"venue,nullzero"`
	City        string    `bun:"city,nullzero"`
	Date        time.Time `bun:"date,notnull"`
	PosterURL   string    `bun:"poster_url,nullzero"`
	Published   bool      `bun:"published,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`

	Passes []*eventPassRow `bun:"rel:has-many,join:id=event_id"`
}

type eventPassRow struct {
	bun.BaseModel `bun:"table:event_passes,alias:ep"`

	ID          string          `bun:"id,pk"`
	EventID     string          `bun:"event_id,notnull"`
	Name        string          `bun:"name,notnull"`
	Description string          `bun:"description,nullzero"`
	Price       decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Active      bool            `bun:"active,notnull"`
}

func newEventRow(event domain.Event) *eventRow {
	row := &eventRow{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Venue:       event.Venue,
		City:        event.City,
		Date:        event.Date.UTC(),
		PosterURL:   event.PosterURL,
		Published:   event.Published,
		CreatedAt:   event.CreatedAt.UTC(),
		UpdatedAt:   event.UpdatedAt.UTC(),
	}
	for _, pass := range event.Passes {
		row.Passes = append(row.Passes, newEventPassRow(event.ID, pass))
	}
	return row
}

func newEventPassRow(eventID string, pass domain.EventPass) *eventPassRow {
	return &eventPassRow{
		ID:          pass.ID,
		EventID:     eventID,
		Name:        pass.Name,
		Description: pass.Description,
		Price:       pass.Price,
		Active:      pass.Active,
	}
}

func (r *eventRow) toDomain() domain.Event {
	event := domain.Event{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Venue:       r.Venue,
		City:        r.City,
		Date:        r.Date,
		PosterURL:   r.PosterURL,
		Published:   r.Published,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, pass := range r.Passes {
		event.Passes = append(event.Passes, pass.toDomain())
	}
	return event
}

func (r *eventPassRow) toDomain() domain.EventPass {
	return domain.EventPass{
		ID:          r.ID,
		EventID:     r.EventID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Active:      r.Active,
	}
}

type adminRow struct {
	bun.BaseModel `bun:"table:admins,alias:ad"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull"`
	Name      string    `bun:"name,notnull"`
	Role      string    `bun:"role,notnull"`
	Password  string    `bun:"password,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r *adminRow) toDomain() domain.Admin {
	return domain.Admin{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Role:         r.Role,
		PasswordHash: r.Password,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
	}
}

type paymentOptionRow struct {
	bun.BaseModel `bun:"table:payment_options,alias:po"`

	OptionType  string    `bun:"option_type,pk"`
	Enabled     bool      `bun:"enabled,notnull"`
	Label       string    `bun:"label,nullzero"`
	Description string    `bun:"description,nullzero"`
	ExternalURL string    `bun:"external_url,nullzero"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r *paymentOptionRow) toDomain() domain.PaymentOption {
	return domain.PaymentOption{
		Type:        domain.PaymentOptionType(r.OptionType),
		Enabled:     r.Enabled,
		Label:       r.Label,
		Description: r.Description,
		ExternalURL: r.ExternalURL,
		UpdatedAt:   r.UpdatedAt,
	}
}

type siteContentRow struct {
	bun.BaseModel `bun:"table:site_content,alias:sc"`

	Key       string    `bun:"key,pk"`
	Lang      string    `bun:"lang,pk"`
	Title     string    `bun:"title,nullzero"`
	Body      string    `bun:"body,notnull"`
	UpdatedBy string    `bun:"updated_by,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (r *siteContentRow) toDomain() domain.SiteContent {
	return domain.SiteContent{
		Key:       r.Key,
		Lang:      r.Lang,
		Title:     r.Title,
		Body:      r.Body,
		UpdatedBy: r.UpdatedBy,
		UpdatedAt: r.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
