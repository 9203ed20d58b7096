package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/pagination"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// OrderRepository persists orders and their pass lines in Postgres.
type OrderRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Postgres-backed order repository.
func NewOrderRepository(provider *ppostgres.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires postgres provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert stores the order and its pass lines atomically.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	row := newOrderRow(order)

	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		conn, err := r.provider.Conn(ctx)
		if err != nil {
			return err
		}
		if _, err := conn.NewInsert().Model(row).Returning("order_number").Exec(ctx); err != nil {
			return err
		}
		if len(row.Passes) == 0 {
			return nil
		}
		_, err = conn.NewInsert().Model(&row.Passes).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.insert", err)
	}
	return row.toDomain(), nil
}

// FindByID loads an order with its pass lines.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	row := new(orderRow)
	err = conn.NewSelect().Model(row).Relation("Passes").Where("o.id = ?", id).Scan(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.get", err)
	}
	return row.toDomain(), nil
}

// List returns orders newest first using keyset pagination on (created_at, id).
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.Clamp(filter.Pagination.PageSize)

	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	var rows []*orderRow
	query := conn.NewSelect().Model(&rows).Relation("Passes")
	if len(filter.Statuses) > 0 {
		query = query.Where("o.status IN (?)", bun.In(statusStrings(filter.Statuses)))
	}
	if filter.PaymentMethod != "" {
		query = query.Where("o.payment_method = ?", string(filter.PaymentMethod))
	}
	if id := strings.TrimSpace(filter.AmbassadorID); id != "" {
		query = query.Where("o.ambassador_id = ?", id)
	}
	if id := strings.TrimSpace(filter.EventID); id != "" {
		query = query.Where("o.event_id = ?", id)
	}
	if !cursor.IsZero() {
		query = query.Where("(o.created_at, o.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	err = query.OrderExpr("o.created_at DESC, o.id DESC").Limit(size + 1).Scan(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{}
	if len(rows) > size {
		rows = rows[:size]
		last := rows[len(rows)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	page.Items = make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		page.Items = append(page.Items, row.toDomain())
	}
	return page, nil
}

// ListBySources returns every order created through one of the given sources.
func (r *OrderRepository) ListBySources(ctx context.Context, sources []domain.OrderSource) ([]domain.Order, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(sources))
	for _, source := range sources {
		values = append(values, string(source))
	}

	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*orderRow
	err = conn.NewSelect().Model(&rows).
		Where("o.source IN (?)", bun.In(values)).
		OrderExpr("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("orders.list_by_sources", err)
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	return orders, nil
}

// UpdateStatus moves the order from update.From to update.To in a single conditional statement.
func (r *OrderRepository) UpdateStatus(ctx context.Context, update repositories.OrderStatusUpdate) (domain.Order, error) {
	id := strings.TrimSpace(update.OrderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	query := conn.NewUpdate().Table("orders").
		Set("status = ?", string(update.To)).
		Set("updated_at = ?", update.UpdatedAt.UTC())
	if update.AcceptedAt != nil {
		query = query.Set("accepted_at = ?", update.AcceptedAt.UTC())
	}
	if update.CompletedAt != nil {
		query = query.Set("completed_at = ?", update.CompletedAt.UTC())
	}
	if update.CancelledAt != nil {
		query = query.Set("cancelled_at = ?", update.CancelledAt.UTC())
	}
	if update.AssignedAt != nil {
		query = query.Set("assigned_at = ?", update.AssignedAt.UTC())
	}
	if update.CancellationReason != nil {
		query = query.Set("cancellation_reason = ?", *update.CancellationReason)
	}
	if update.CancelledBy != nil {
		query = query.Set("cancelled_by = ?", string(*update.CancelledBy))
	}
	if update.AmbassadorID != nil {
		query = query.Set("ambassador_id = ?", *update.AmbassadorID)
	}
	if update.PaymentStatus != nil {
		query = query.Set("payment_status = ?", *update.PaymentStatus)
	}
	if update.PaymentGateway != nil {
		query = query.Set("payment_gateway = ?", *update.PaymentGateway)
	}
	if update.PaymentReference != nil {
		query = query.Set("payment_reference = ?", *update.PaymentReference)
	}

	query = query.Where("id = ?", id).Where("status = ?", string(update.From))
	if prev := update.FromAmbassadorID; prev != nil {
		if *prev == "" {
			query = query.Where("ambassador_id IS NULL")
		} else {
			query = query.Where("ambassador_id = ?", *prev)
		}
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.update_status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.update_status", err)
	}
	if affected == 0 {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if current.Status == update.From && update.FromAmbassadorID != nil {
			return domain.Order{}, ppostgres.WrapError("orders.update_status",
				fmt.Errorf("%w: order %s was reassigned to %q", ppostgres.ErrStaleStatus, id, current.AmbassadorID))
		}
		return domain.Order{}, ppostgres.WrapError("orders.update_status",
			fmt.Errorf("%w: order %s is %s, expected %s", ppostgres.ErrStaleStatus, id, current.Status, update.From))
	}
	return r.FindByID(ctx, id)
}

// SumTickets totals quantity across the ambassador's orders in the given statuses.
func (r *OrderRepository) SumTickets(ctx context.Context, ambassadorID string, statuses []domain.OrderStatus) (int, error) {
	id := strings.TrimSpace(ambassadorID)
	if id == "" {
		return 0, errors.New("order repository: ambassador id is required")
	}
	if len(statuses) == 0 {
		return 0, nil
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	err = conn.NewSelect().Model((*orderRow)(nil)).
		ColumnExpr("COALESCE(SUM(o.quantity), 0)").
		Where("o.ambassador_id = ?", id).
		Where("o.status IN (?)", bun.In(statusStrings(statuses))).
		Scan(ctx, &total)
	if err != nil {
		return 0, ppostgres.WrapError("orders.sum_tickets", err)
	}
	return total, nil
}
