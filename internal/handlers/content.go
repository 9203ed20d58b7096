package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/services"
)

// ContentHandlers serves editable site content blocks.
type ContentHandlers struct {
	content services.ContentService
}

// NewContentHandlers constructs content handlers.
func NewContentHandlers(content services.ContentService) *ContentHandlers {
	return &ContentHandlers{content: content}
}

// PublicRoutes registers content reads.
func (h *ContentHandlers) PublicRoutes(r chi.Router) {
	r.Get("/content/{key}", h.getContent)
}

// AdminRoutes registers content edits.
func (h *ContentHandlers) AdminRoutes(r chi.Router) {
	r.Put("/content/{key}", h.upsertContent)
}

type upsertContentRequest struct {
	Lang  string `json:"lang" validate:"omitempty,oneof=en fr"`
	Title string `json:"title" validate:"max=200"`
	Body  string `json:"body" validate:"required"`
}

type contentPayload struct {
	Key       string `json:"key"`
	Lang      string `json:"lang"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	HTML      string `json:"html"`
	UpdatedAt string `json:"updated_at,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

func (h *ContentHandlers) getContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		writeServiceUnavailable(ctx, w, "content")
		return
	}
	rendered, err := h.content.GetContent(ctx, chi.URLParam(r, "key"), requestLang(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"content": buildContentPayload(rendered)})
}

func (h *ContentHandlers) upsertContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		writeServiceUnavailable(ctx, w, "content")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req upsertContentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	lang := req.Lang
	if lang == "" {
		lang = requestLang(r)
	}
	rendered, err := h.content.UpsertContent(ctx, services.UpsertContentCommand{
		Key:     chi.URLParam(r, "key"),
		Lang:    lang,
		Title:   req.Title,
		Body:    req.Body,
		ActorID: identity.ID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"content": buildContentPayload(rendered)})
}

func buildContentPayload(c services.RenderedContent) contentPayload {
	return contentPayload{
		Key:       c.Key,
		Lang:      c.Lang,
		Title:     c.Title,
		Body:      c.Body,
		HTML:      c.HTML,
		UpdatedAt: formatTime(c.UpdatedAt),
		UpdatedBy: c.UpdatedBy,
	}
}
