package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/services"
)

// AmbassadorHandlers serves ambassador discovery, portal login and earnings.
type AmbassadorHandlers struct {
	ambassadors  services.AmbassadorService
	loginLimiter RateLimiter
}

// AmbassadorHandlersOption customises ambassador handlers.
type AmbassadorHandlersOption func(*AmbassadorHandlers)

// WithAmbassadorLoginLimiter throttles POST /ambassadors/login per client IP.
func WithAmbassadorLoginLimiter(l RateLimiter) AmbassadorHandlersOption {
	return func(h *AmbassadorHandlers) {
		h.loginLimiter = l
	}
}

// NewAmbassadorHandlers constructs ambassador handlers.
func NewAmbassadorHandlers(ambassadors services.AmbassadorService, opts ...AmbassadorHandlersOption) *AmbassadorHandlers {
	h := &AmbassadorHandlers{ambassadors: ambassadors}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// PublicRoutes registers the location lookup and portal login.
func (h *AmbassadorHandlers) PublicRoutes(r chi.Router) {
	r.Get("/ambassadors", h.listByLocation)
	r.With(RateLimitByIP(h.loginLimiter, "ambassador-login")).Post("/ambassadors/login", h.login)
}

// PortalRoutes registers ambassador-only endpoints. Callers mount it behind ambassador auth.
func (h *AmbassadorHandlers) PortalRoutes(r chi.Router) {
	r.Get("/income", h.income)
}

type ambassadorLoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ambassadorListResponse struct {
	Items []ambassadorPayload `json:"items"`
}

// listByLocation returns approved ambassadors for the location in random order.
func (h *AmbassadorHandlers) listByLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ambassadors == nil {
		writeServiceUnavailable(ctx, w, "ambassador")
		return
	}
	query := r.URL.Query()
	ambassadors, err := h.ambassadors.GetActiveAmbassadorsByLocation(ctx, query.Get("city"), query.Get("ville"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := ambassadorListResponse{Items: make([]ambassadorPayload, 0, len(ambassadors))}
	for _, a := range ambassadors {
		payload := buildAmbassadorPayload(a)
		payload.Status = ""
		resp.Items = append(resp.Items, payload)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AmbassadorHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ambassadors == nil {
		writeServiceUnavailable(ctx, w, "ambassador")
		return
	}
	var req ambassadorLoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	session, err := h.ambassadors.Login(ctx, services.AmbassadorLoginCommand{Phone: req.Phone, Password: req.Password})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"token": session.Token,
		"ambassador": sessionPayload{
			ID:        session.Subject.ID,
			Email:     session.Subject.Email,
			Role:      session.Subject.Role,
			ExpiresAt: formatTime(session.ExpiresAt),
		},
	})
}

func (h *AmbassadorHandlers) income(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ambassadors == nil {
		writeServiceUnavailable(ctx, w, "ambassador")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	income, err := h.ambassadors.Income(ctx, identity.ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"ambassador_id": income.AmbassadorID,
		"tickets_sold":  income.TicketsSold,
		"income":        income.Income,
	})
}
