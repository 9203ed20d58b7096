package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/platform/httpx"
	"github.com/eventpass/api/internal/services"
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

// decodeJSONBody decodes and validates the request body, writing the 400 itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if herr := httpx.DecodeJSON(r, dst); herr != nil {
		httpx.WriteError(r.Context(), w, *herr)
		return false
	}
	return true
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

// requireIdentity returns the authenticated principal or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.ID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// requestLang picks the label language from ?lang or Accept-Language.
func requestLang(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return domain.NormalizeLang(lang)
	}
	return domain.NormalizeLang(r.Header.Get("Accept-Language"))
}

type errorMapping struct {
	target error
	code   string
	status int
	expose bool
}

var serviceErrorMappings = []errorMapping{
	{services.ErrOrderInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrOrderNotFound, "order_not_found", http.StatusNotFound, false},
	{services.ErrOrderInvalidState, "order_invalid_state", http.StatusConflict, true},
	{services.ErrOrderConflict, "order_conflict", http.StatusConflict, false},
	{services.ErrOrderUnavailable, "order_unavailable", http.StatusServiceUnavailable, false},
	{services.ErrAmbassadorInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrAmbassadorNotFound, "ambassador_not_found", http.StatusNotFound, false},
	{services.ErrAmbassadorPending, "ambassador_pending", http.StatusForbidden, false},
	{services.ErrAmbassadorRejected, "ambassador_rejected", http.StatusForbidden, false},
	{services.ErrAmbassadorUnavailable, "ambassador_unavailable", http.StatusServiceUnavailable, false},
	{services.ErrAuthInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrAuthInvalidCredentials, "invalid_credentials", http.StatusUnauthorized, false},
	{services.ErrAuthAccountDisabled, "account_disabled", http.StatusForbidden, false},
	{services.ErrAuthUnavailable, "auth_unavailable", http.StatusServiceUnavailable, false},
	{services.ErrEventInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrEventNotFound, "event_not_found", http.StatusNotFound, false},
	{services.ErrEventStorageUnavailable, "storage_unavailable", http.StatusServiceUnavailable, false},
	{services.ErrContentInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrContentNotFound, "content_not_found", http.StatusNotFound, false},
	{services.ErrNotificationInvalidInput, "invalid_request", http.StatusBadRequest, true},
	{services.ErrNotificationUnavailable, "notifications_unavailable", http.StatusServiceUnavailable, false},
}

// writeServiceError maps service sentinels onto the error envelope. Unknown
// errors become a 500 without the underlying message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	for _, m := range serviceErrorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := http.StatusText(m.status)
		if m.expose {
			message = err.Error()
		} else if m.status < http.StatusInternalServerError {
			message = m.target.Error()
		}
		httpx.WriteError(ctx, w, httpx.NewError(m.code, message, m.status))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
