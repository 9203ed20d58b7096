package postgres

import (
	"context"
	"errors"
	"strings"

	domain "github.com/eventpass/api/internal/domain"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// PaymentOptionRepository reads checkout payment options.
type PaymentOptionRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.PaymentOptionRepository = (*PaymentOptionRepository)(nil)

// NewPaymentOptionRepository constructs a Postgres-backed payment option repository.
func NewPaymentOptionRepository(provider *ppostgres.Provider) (*PaymentOptionRepository, error) {
	if provider == nil {
		return nil, errors.New("payment option repository requires postgres provider")
	}
	return &PaymentOptionRepository{provider: provider}, nil
}

func (r *PaymentOptionRepository) List(ctx context.Context) ([]domain.PaymentOption, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*paymentOptionRow
	if err := conn.NewSelect().Model(&rows).OrderExpr("po.option_type ASC").Scan(ctx); err != nil {
		return nil, ppostgres.WrapError("payment_options.list", err)
	}
	options := make([]domain.PaymentOption, 0, len(rows))
	for _, row := range rows {
		options = append(options, row.toDomain())
	}
	return options, nil
}

// SiteContentRepository stores keyed content blocks per language.
type SiteContentRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.SiteContentRepository = (*SiteContentRepository)(nil)

// NewSiteContentRepository constructs a Postgres-backed site content repository.
func NewSiteContentRepository(provider *ppostgres.Provider) (*SiteContentRepository, error) {
	if provider == nil {
		return nil, errors.New("site content repository requires postgres provider")
	}
	return &SiteContentRepository{provider: provider}, nil
}

func (r *SiteContentRepository) Get(ctx context.Context, key, lang string) (domain.SiteContent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.SiteContent{}, errors.New("site content repository: key is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.SiteContent{}, err
	}
	row := new(siteContentRow)
	err = conn.NewSelect().Model(row).
		Where("sc.key = ?", key).
		Where("sc.lang = ?", lang).
		Scan(ctx)
	if err != nil {
		return domain.SiteContent{}, ppostgres.WrapError("site_content.get", err)
	}
	return row.toDomain(), nil
}

func (r *SiteContentRepository) Upsert(ctx context.Context, content domain.SiteContent) error {
	if strings.TrimSpace(content.Key) == "" || strings.TrimSpace(content.Lang) == "" {
		return errors.New("site content repository: key and lang are required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return err
	}
	row := &siteContentRow{
		Key:       content.Key,
		Lang:      content.Lang,
		Title:     content.Title,
		Body:      content.Body,
		UpdatedBy: content.UpdatedBy,
		UpdatedAt: content.UpdatedAt.UTC(),
	}
	_, err = conn.NewInsert().Model(row).
		On("CONFLICT (key, lang) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("body = EXCLUDED.body").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return ppostgres.WrapError("site_content.upsert", err)
}
