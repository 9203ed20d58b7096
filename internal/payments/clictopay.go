package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GatewayClicToPay is the registry key of the ClicToPay (SMT) gateway.
const GatewayClicToPay = "clictopay"

// ClicToPay maps the numeric OrderStatus reported by getOrderStatusExtended.
type ClicToPay struct{}

type clicToPayCallback struct {
	OrderNumber string          `json:"orderNumber"`
	OrderID     string          `json:"orderId"`
	OrderStatus json.RawMessage `json:"OrderStatus"`
}

// MapStatus follows the OrderStatus codes: 0 registered, 1 pre-authorised, 2 deposited, 3 reversed, 4 refunded,
// 5 ACS authorisation, 6 declined.
func (ClicToPay) MapStatus(raw string) (Status, error) {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: clictopay %q", ErrUnknownStatus, raw)
	}
	switch code {
	case 0, 1, 5:
		return StatusPending, nil
	case 2:
		return StatusPaid, nil
	case 3, 4, 6:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: clictopay %d", ErrUnknownStatus, code)
	}
}

// ParseCallback reads orderNumber as our order id. OrderStatus may be a number or a string.
func (ClicToPay) ParseCallback(body []byte) (Callback, error) {
	var payload clicToPayCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	orderID := strings.TrimSpace(payload.OrderNumber)
	status := strings.Trim(strings.TrimSpace(string(payload.OrderStatus)), `"`)
	if orderID == "" || status == "" {
		return Callback{}, fmt.Errorf("%w: orderNumber and OrderStatus are required", ErrInvalidCallback)
	}
	return Callback{OrderID: orderID, RawStatus: status, Reference: strings.TrimSpace(payload.OrderID)}, nil
}
