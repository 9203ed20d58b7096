package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/api/internal/payments"
	"github.com/eventpass/api/internal/platform/httpx"
	"github.com/eventpass/api/internal/services"
)

const maxWebhookBody = 64 << 10

// CallbackParser decodes a gateway notification body.
type CallbackParser interface {
	ParseCallback(gateway string, body []byte) (payments.Callback, error)
}

// PaymentWebhookHandlers applies gateway callbacks to orders. Signature checks happen in middleware.
type PaymentWebhookHandlers struct {
	orders   services.OrderService
	parser   CallbackParser
	gateways []string
}

// NewPaymentWebhookHandlers constructs webhook handlers for the named gateways.
func NewPaymentWebhookHandlers(orders services.OrderService, parser CallbackParser, gateways ...string) *PaymentWebhookHandlers {
	if len(gateways) == 0 {
		gateways = []string{payments.GatewayClicToPay, payments.GatewayFlouci}
	}
	return &PaymentWebhookHandlers{orders: orders, parser: parser, gateways: gateways}
}

// Routes registers one POST endpoint per gateway.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	for _, name := range h.gateways {
		r.Post("/"+name, h.handle(name))
	}
}

// GatewayFromPath resolves the HMAC secret name from the last path segment.
func GatewayFromPath(r *http.Request) (string, bool) {
	path := r.URL.Path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			name := path[i+1:]
			return name, name != ""
		}
	}
	return "", false
}

func (h *PaymentWebhookHandlers) handle(gateway string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.orders == nil || h.parser == nil {
			writeServiceUnavailable(ctx, w, "payment")
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read body", http.StatusBadRequest))
			return
		}
		callback, err := h.parser.ParseCallback(gateway, body)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, payments.ErrUnsupportedGateway) {
				status = http.StatusNotFound
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_callback", err.Error(), status))
			return
		}
		order, err := h.orders.ApplyPaymentResult(ctx, services.PaymentResultCommand{
			OrderID:   callback.OrderID,
			Gateway:   gateway,
			RawStatus: callback.RawStatus,
			Reference: callback.Reference,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"order_id": order.ID,
			"status":   string(order.Status),
		})
	}
}
