package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/eventpass/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
)

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Error is the client-facing failure body. Details are merged into the top
// level of the JSON object and never override the reserved keys.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func NewError(code, message string, status int) Error {
	return Error{
		Code:    clip(code, maxCodeLen),
		Message: clip(message, maxMessageLen),
		Status:  status,
	}
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e Error) WithDetails(details map[string]any) Error {
	if len(details) > 0 {
		e.Details = maps.Clone(details)
	}
	return e
}

func (e Error) statusCode() int {
	if e.Status < 400 || e.Status > 599 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func (e Error) body(ctx context.Context) map[string]any {
	body := maps.Clone(e.Details)
	if body == nil {
		body = make(map[string]any, 5)
	}
	body["error"] = e.Code
	body["message"] = e.Message
	body["status"] = e.statusCode()
	delete(body, "request_id")
	delete(body, "trace_id")
	if id := clip(middleware.GetReqID(ctx), maxCodeLen); id != "" {
		body["request_id"] = id
	}
	if id := clip(requestctx.TraceID(ctx), 64); id != "" {
		body["trace_id"] = id
	}
	return body
}

// WriteError renders err with the request and trace ids from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.statusCode())
	_ = json.NewEncoder(w).Encode(err.body(ctx))
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(flatten.Replace(s))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
