package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/services"
)

// NotificationHandlers exposes admin SMS broadcasts.
type NotificationHandlers struct {
	notifications services.NotificationService
}

// NewNotificationHandlers constructs notification handlers.
func NewNotificationHandlers(notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

// AdminRoutes registers broadcast endpoints.
func (h *NotificationHandlers) AdminRoutes(r chi.Router) {
	r.Post("/notifications/sms", h.broadcastSMS)
}

type broadcastSMSRequest struct {
	Phones  []string `json:"phones" validate:"required,min=1,max=500"`
	Message string   `json:"message" validate:"required,max=480"`
}

func (h *NotificationHandlers) broadcastSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		writeServiceUnavailable(ctx, w, "notification")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req broadcastSMSRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	result, err := h.notifications.BroadcastSMS(ctx, services.BroadcastSMSCommand{
		Phones:  req.Phones,
		Message: req.Message,
		ActorID: identity.ID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]any{
		"queued":  result.Queued,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
}
