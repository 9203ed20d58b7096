package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/services"
)

// CatalogHandlers exposes checkout payment options.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the public catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	r.Get("/payment-options", h.listPaymentOptions)
}

type paymentOptionPayload struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	Available   bool   `json:"available"`
}

func (h *CatalogHandlers) listPaymentOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	query := r.URL.Query()
	views, err := h.catalog.ListPaymentOptions(ctx, services.AmbassadorLocation{City: query.Get("city"), Ville: query.Get("ville")})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]paymentOptionPayload, 0, len(views))
	for _, view := range views {
		items = append(items, paymentOptionPayload{
			Type:        string(view.Type),
			Label:       view.Label,
			Description: view.Description,
			ExternalURL: view.ExternalURL,
			Available:   view.Available,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}
