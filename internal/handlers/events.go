package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/eventpass/api/internal/services"
)

// EventHandlers serves the public event catalogue and its admin maintenance.
type EventHandlers struct {
	events services.EventService
}

// NewEventHandlers constructs event handlers.
func NewEventHandlers(events services.EventService) *EventHandlers {
	return &EventHandlers{events: events}
}

// PublicRoutes registers published event reads.
func (h *EventHandlers) PublicRoutes(r chi.Router) {
	r.Get("/events", h.listEvents)
	r.Get("/events/{eventID}", h.getEvent)
}

// AdminRoutes registers event writes and poster uploads.
func (h *EventHandlers) AdminRoutes(r chi.Router) {
	r.Post("/events", h.createEvent)
	r.Put("/events/{eventID}", h.updateEvent)
	r.Post("/events/{eventID}/poster-upload-url", h.issuePosterUpload)
	r.Post("/events/{eventID}/poster", h.publishPoster)
}

type eventPassRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active"`
}

type upsertEventRequest struct {
	Name        string             `json:"name" validate:"required,max=200"`
	Description string             `json:"description"`
	Venue       string             `json:"venue"`
	City        string             `json:"city"`
	Date        time.Time          `json:"date" validate:"required"`
	Published   bool               `json:"published"`
	Passes      []eventPassRequest `json:"passes" validate:"dive"`
}

type posterUploadRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
}

type publishPosterRequest struct {
	UploadID string `json:"upload_id" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

type eventPayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Venue       string             `json:"venue,omitempty"`
	City        string             `json:"city,omitempty"`
	Date        string             `json:"date"`
	PosterURL   string             `json:"poster_url,omitempty"`
	Published   bool               `json:"published"`
	Passes      []eventPassPayload `json:"passes"`
}

type eventPassPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Active      bool   `json:"active"`
}

func (h *EventHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	events, err := h.events.ListPublished(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]eventPayload, 0, len(events))
	for _, event := range events {
		items = append(items, buildEventPayload(event))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *EventHandlers) getEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	event, err := h.events.GetEvent(ctx, chi.URLParam(r, "eventID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"event": buildEventPayload(event)})
}

func (h *EventHandlers) createEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	var req upsertEventRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	event, err := h.events.CreateEvent(ctx, req.toCommand(""))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"event": buildEventPayload(event)})
}

func (h *EventHandlers) updateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	var req upsertEventRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	event, err := h.events.UpdateEvent(ctx, req.toCommand(chi.URLParam(r, "eventID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"event": buildEventPayload(event)})
}

func (h *EventHandlers) issuePosterUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	var req posterUploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	upload, err := h.events.IssuePosterUpload(ctx, services.PosterUploadCommand{
		EventID:     chi.URLParam(r, "eventID"),
		FileName:    req.FileName,
		ContentType: req.ContentType,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"upload_id":  upload.UploadID,
		"url":        upload.URL,
		"method":     upload.Method,
		"headers":    upload.Headers,
		"expires_at": formatTime(upload.ExpiresAt),
	})
}

func (h *EventHandlers) publishPoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		writeServiceUnavailable(ctx, w, "event")
		return
	}
	var req publishPosterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	event, err := h.events.PublishPoster(ctx, services.PublishPosterCommand{
		EventID:  chi.URLParam(r, "eventID"),
		UploadID: req.UploadID,
		FileName: req.FileName,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"event": buildEventPayload(event)})
}

func (req upsertEventRequest) toCommand(eventID string) services.UpsertEventCommand {
	cmd := services.UpsertEventCommand{
		EventID:     eventID,
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		City:        req.City,
		Date:        req.Date,
		Published:   req.Published,
		Passes:      make([]services.EventPassInput, 0, len(req.Passes)),
	}
	for _, pass := range req.Passes {
		active := true
		if pass.Active != nil {
			active = *pass.Active
		}
		cmd.Passes = append(cmd.Passes, services.EventPassInput{
			ID:          pass.ID,
			Name:        pass.Name,
			Description: pass.Description,
			Price:       pass.Price,
			Active:      active,
		})
	}
	return cmd
}

func buildEventPayload(event services.Event) eventPayload {
	payload := eventPayload{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Venue:       event.Venue,
		City:        event.City,
		Date:        formatTime(event.Date),
		PosterURL:   event.PosterURL,
		Published:   event.Published,
		Passes:      make([]eventPassPayload, 0, len(event.Passes)),
	}
	for _, pass := range event.Passes {
		payload.Passes = append(payload.Passes, eventPassPayload{
			ID:          pass.ID,
			Name:        pass.Name,
			Description: pass.Description,
			Price:       pass.Price.StringFixed(2),
			Active:      pass.Active,
		})
	}
	return payload
}
