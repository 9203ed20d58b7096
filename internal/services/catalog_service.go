package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/repositories"
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	PaymentOptions repositories.PaymentOptionRepository
	Ambassadors    AmbassadorService
}

type catalogService struct {
	options     repositories.PaymentOptionRepository
	ambassadors AmbassadorService
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires dependencies into the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.PaymentOptions == nil {
		return nil, errors.New("catalog service: payment option repository is required")
	}
	if deps.Ambassadors == nil {
		return nil, errors.New("catalog service: ambassador service is required")
	}
	return &catalogService{options: deps.PaymentOptions, ambassadors: deps.Ambassadors}, nil
}

// ListPaymentOptions returns the enabled options. The ambassador cash option is only available
// when the location is known and covered by at least one ambassador.
func (s *catalogService) ListPaymentOptions(ctx context.Context, location AmbassadorLocation) ([]PaymentOptionView, error) {
	options, err := s.options.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentOptionView, 0, len(options))
	for _, option := range options {
		if !option.Enabled {
			continue
		}
		view := PaymentOptionView{PaymentOption: option, Available: true}
		if option.Type == domain.PaymentOptionAmbassadorCash {
			view.Available = false
			if strings.TrimSpace(location.City) != "" {
				ok, err := s.ambassadors.HasActiveAmbassadors(ctx, location.City, location.Ville)
				if err != nil {
					return nil, err
				}
				view.Available = ok
			}
		}
		views = append(views, view)
	}
	return views, nil
}
