package postgres

import (
	"context"
	"errors"
	"strings"

	domain "github.com/eventpass/api/internal/domain"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// AdminRepository reads dashboard operators.
type AdminRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.AdminRepository = (*AdminRepository)(nil)

// NewAdminRepository constructs a Postgres-backed admin repository.
func NewAdminRepository(provider *ppostgres.Provider) (*AdminRepository, error) {
	if provider == nil {
		return nil, errors.New("admin repository requires postgres provider")
	}
	return &AdminRepository{provider: provider}, nil
}

// FindByEmail matches the email case-insensitively.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Admin{}, errors.New("admin repository: email is required")
	}
	return r.findOne(ctx, "admins.get_by_email", "lower(ad.email) = ?", email)
}

func (r *AdminRepository) FindByID(ctx context.Context, adminID string) (domain.Admin, error) {
	id := strings.TrimSpace(adminID)
	if id == "" {
		return domain.Admin{}, errors.New("admin repository: id is required")
	}
	return r.findOne(ctx, "admins.get", "ad.id = ?", id)
}

func (r *AdminRepository) findOne(ctx context.Context, op, where string, arg any) (domain.Admin, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.Admin{}, err
	}
	row := new(adminRow)
	if err := conn.NewSelect().Model(row).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return domain.Admin{}, ppostgres.WrapError(op, err)
	}
	return row.toDomain(), nil
}
