package postgres

import (
	"context"
	"errors"
	"strings"

	domain "github.com/eventpass/api/internal/domain"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

const defaultRecentLogLimit = 100

// OrderLogRepository appends order audit entries.
type OrderLogRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.OrderLogRepository = (*OrderLogRepository)(nil)

// NewOrderLogRepository constructs a Postgres-backed order log repository.
func NewOrderLogRepository(provider *ppostgres.Provider) (*OrderLogRepository, error) {
	if provider == nil {
		return nil, errors.New("order log repository requires postgres provider")
	}
	return &OrderLogRepository{provider: provider}, nil
}

func (r *OrderLogRepository) Append(ctx context.Context, entry domain.OrderLog) error {
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.OrderID) == "" {
		return errors.New("order log repository: id and order id are required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return err
	}
	row := &orderLogRow{
		ID:              entry.ID,
		OrderID:         entry.OrderID,
		Action:          string(entry.Action),
		PerformedBy:     entry.PerformedBy,
		PerformedByType: string(entry.PerformedByType),
		Details:         entry.Details,
		CreatedAt:       entry.CreatedAt.UTC(),
	}
	if _, err := conn.NewInsert().Model(row).Exec(ctx); err != nil {
		return ppostgres.WrapError("order_logs.append", err)
	}
	return nil
}

// ListRecent returns the latest entries across all orders.
func (r *OrderLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.OrderLog, error) {
	if limit <= 0 {
		limit = defaultRecentLogLimit
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*orderLogRow
	err = conn.NewSelect().Model(&rows).OrderExpr("ol.created_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("order_logs.list_recent", err)
	}
	return logsToDomain(rows), nil
}

// ListByOrder returns the order's history oldest first.
func (r *OrderLogRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderLog, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("order log repository: order id is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*orderLogRow
	err = conn.NewSelect().Model(&rows).Where("ol.order_id = ?", id).OrderExpr("ol.created_at ASC").Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("order_logs.list_by_order", err)
	}
	return logsToDomain(rows), nil
}

func logsToDomain(rows []*orderLogRow) []domain.OrderLog {
	logs := make([]domain.OrderLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toDomain())
	}
	return logs
}
