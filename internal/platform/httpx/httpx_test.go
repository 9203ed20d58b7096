package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/api/internal/platform/requestctx"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Lines    []struct {
		Quantity int `json:"quantity" validate:"min=1"`
	} `json:"lines" validate:"dive"`
}

func TestWriteErrorIncludesTraceAndDetails(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc123"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("order_conflict", "order changed\nconcurrently", http.StatusConflict).
		WithDetails(map[string]any{"orderId": "ord-1"}))

	require.Equal(t, http.StatusConflict, rr.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "order_conflict", payload["error"])
	assert.Equal(t, "order changed concurrently", payload["message"])
	assert.Equal(t, "abc123", payload["trace_id"])
	assert.Equal(t, "ord-1", payload["orderId"])
}

func TestDecodeJSON(t *testing.T) {
	tests := map[string]struct {
		body    string
		wantErr bool
		fields  map[string]any
	}{
		"valid": {
			body: `{"email":"ops@eventpass.tn","password":"secret","lines":[{"quantity":1}]}`,
		},
		"empty body": {
			body:    ``,
			wantErr: true,
		},
		"unknown field": {
			body:    `{"email":"ops@eventpass.tn","password":"x","role":"admin"}`,
			wantErr: true,
		},
		"validation": {
			body:    `{"email":"nope","lines":[{"quantity":0}]}`,
			wantErr: true,
			fields: map[string]any{
				"email":             "must be a valid email address",
				"password":          "is required",
				"lines[0].quantity": "must be at least 1",
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst loginBody
			herr := DecodeJSON(req, &dst)
			if !tc.wantErr {
				require.Nil(t, herr)
				assert.Equal(t, "ops@eventpass.tn", dst.Email)
				return
			}
			require.NotNil(t, herr)
			assert.Equal(t, http.StatusBadRequest, herr.Status)
			if tc.fields != nil {
				assert.Equal(t, tc.fields, map[string]any(toAny(herr.Details["fields"])))
			}
		})
	}
}

func toAny(v any) map[string]any {
	out := map[string]any{}
	if fields, ok := v.(map[string]string); ok {
		for k, val := range fields {
			out[k] = val
		}
	}
	return out
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"id": "evt-1"})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"id":"evt-1"}`, rr.Body.String())
}

func TestWriteErrorKeepsReservedKeys(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, Error{Code: "boom", Details: map[string]any{"error": "spoofed", "trace_id": "x"}})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "boom", payload["error"])
	assert.NotContains(t, payload, "trace_id")
}
