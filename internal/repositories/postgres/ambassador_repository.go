package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	domain "github.com/eventpass/api/internal/domain"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// AmbassadorRepository reads ambassadors from Postgres.
type AmbassadorRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.AmbassadorRepository = (*AmbassadorRepository)(nil)

// NewAmbassadorRepository constructs a Postgres-backed ambassador repository.
func NewAmbassadorRepository(provider *ppostgres.Provider) (*AmbassadorRepository, error) {
	if provider == nil {
		return nil, errors.New("ambassador repository requires postgres provider")
	}
	return &AmbassadorRepository{provider: provider}, nil
}

func (r *AmbassadorRepository) FindByID(ctx context.Context, ambassadorID string) (domain.Ambassador, error) {
	id := strings.TrimSpace(ambassadorID)
	if id == "" {
		return domain.Ambassador{}, errors.New("ambassador repository: id is required")
	}
	return r.findOne(ctx, "ambassadors.get", "a.id = ?", id)
}

func (r *AmbassadorRepository) FindByPhone(ctx context.Context, phone string) (domain.Ambassador, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Ambassador{}, errors.New("ambassador repository: phone is required")
	}
	return r.findOne(ctx, "ambassadors.get_by_phone", "a.phone = ?", phone)
}

// ListApproved returns approved ambassadors matching the exact city and, when set, ville.
func (r *AmbassadorRepository) ListApproved(ctx context.Context, filter repositories.AmbassadorLocationFilter) ([]domain.Ambassador, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*ambassadorRow
	err = applyLocation(conn.NewSelect().Model(&rows), filter).
		OrderExpr("a.full_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("ambassadors.list_approved", err)
	}
	out := make([]domain.Ambassador, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ExistsApproved reports whether at least one approved ambassador matches the location.
func (r *AmbassadorRepository) ExistsApproved(ctx context.Context, filter repositories.AmbassadorLocationFilter) (bool, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return false, err
	}
	exists, err := applyLocation(conn.NewSelect().Model((*ambassadorRow)(nil)), filter).Exists(ctx)
	if err != nil {
		return false, ppostgres.WrapError("ambassadors.exists_approved", err)
	}
	return exists, nil
}

func (r *AmbassadorRepository) findOne(ctx context.Context, op, where string, arg any) (domain.Ambassador, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.Ambassador{}, err
	}
	row := new(ambassadorRow)
	if err := conn.NewSelect().Model(row).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return domain.Ambassador{}, ppostgres.WrapError(op, err)
	}
	return row.toDomain(), nil
}

func applyLocation(query *bun.SelectQuery, filter repositories.AmbassadorLocationFilter) *bun.SelectQuery {
	query = query.Where("a.status = ?", string(domain.AmbassadorApprovalApproved))
	if filter.City != "" {
		query = query.Where("a.city = ?", filter.City)
	}
	if filter.Ville != "" {
		query = query.Where("a.ville = ?", filter.Ville)
	}
	return query
}
