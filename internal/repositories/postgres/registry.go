package postgres

import (
	"context"
	"errors"
	"fmt"

	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// Registry implements repositories.Registry on top of a shared Postgres provider.
type Registry struct {
	provider *ppostgres.Provider

	orders         *OrderRepository
	orderLogs      *OrderLogRepository
	ambassadors    *AmbassadorRepository
	events         *EventRepository
	admins         *AdminRepository
	paymentOptions *PaymentOptionRepository
	siteContent    *SiteContentRepository
	health         repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository against the provider. health may be nil.
func NewRegistry(provider *ppostgres.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("postgres registry requires provider")
	}
	reg := &Registry{provider: provider, health: health}

	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if reg.orderLogs, err = NewOrderLogRepository(provider); err != nil {
		return nil, fmt.Errorf("build order log repository: %w", err)
	}
	if reg.ambassadors, err = NewAmbassadorRepository(provider); err != nil {
		return nil, fmt.Errorf("build ambassador repository: %w", err)
	}
	if reg.events, err = NewEventRepository(provider); err != nil {
		return nil, fmt.Errorf("build event repository: %w", err)
	}
	if reg.admins, err = NewAdminRepository(provider); err != nil {
		return nil, fmt.Errorf("build admin repository: %w", err)
	}
	if reg.paymentOptions, err = NewPaymentOptionRepository(provider); err != nil {
		return nil, fmt.Errorf("build payment option repository: %w", err)
	}
	if reg.siteContent, err = NewSiteContentRepository(provider); err != nil {
		return nil, fmt.Errorf("build site content repository: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository                 { return r.orders }
func (r *Registry) OrderLogs() repositories.OrderLogRepository           { return r.orderLogs }
func (r *Registry) Ambassadors() repositories.AmbassadorRepository       { return r.ambassadors }
func (r *Registry) Events() repositories.EventRepository                 { return r.events }
func (r *Registry) Admins() repositories.AdminRepository                 { return r.admins }
func (r *Registry) PaymentOptions() repositories.PaymentOptionRepository { return r.paymentOptions }
func (r *Registry) SiteContent() repositories.SiteContentRepository      { return r.siteContent }
func (r *Registry) Health() repositories.HealthRepository                { return r.health }

// RunInTx delegates to the provider so repository calls made with the returned context join the transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}
