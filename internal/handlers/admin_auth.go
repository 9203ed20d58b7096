package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/services"
)

// CookieSettings controls the admin session cookie.
type CookieSettings struct {
	Name   string
	Domain string
	Secure bool
}

// AdminAuthHandlers serves dashboard login, logout and session verification.
type AdminAuthHandlers struct {
	auth   services.AuthService
	cookie CookieSettings
}

// NewAdminAuthHandlers constructs admin auth handlers.
func NewAdminAuthHandlers(authService services.AuthService, cookie CookieSettings) *AdminAuthHandlers {
	if cookie.Name == "" {
		cookie.Name = "eventpass_session"
	}
	return &AdminAuthHandlers{auth: authService, cookie: cookie}
}

// SessionRoutes registers login and logout. They must stay outside the admin auth guard.
func (h *AdminAuthHandlers) SessionRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

// Routes registers endpoints that require an admin session.
func (h *AdminAuthHandlers) Routes(r chi.Router) {
	r.Get("/verify", h.verify)
}

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (h *AdminAuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		writeServiceUnavailable(ctx, w, "auth")
		return
	}
	var req adminLoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	session, err := h.auth.AdminLogin(ctx, services.AdminLoginCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	http.SetCookie(w, auth.SessionCookie(h.cookie.Name, session.Token, session.ExpiresAt, h.cookie.Domain, h.cookie.Secure))
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"admin": sessionPayload{
			ID:        session.Subject.ID,
			Email:     session.Subject.Email,
			Role:      session.Subject.Role,
			ExpiresAt: formatTime(session.ExpiresAt),
		},
	})
}

func (h *AdminAuthHandlers) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, auth.ExpiredSessionCookie(h.cookie.Name, h.cookie.Domain, h.cookie.Secure))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminAuthHandlers) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.auth == nil {
		writeServiceUnavailable(ctx, w, "auth")
		return
	}
	admin, err := h.auth.CurrentAdmin(ctx, identity.ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"admin": sessionPayload{
			ID:    admin.ID,
			Email: admin.Email,
			Name:  admin.Name,
			Role:  admin.Role,
		},
	})
}
