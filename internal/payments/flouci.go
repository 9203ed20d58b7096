package payments

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GatewayFlouci is the registry key of the Flouci wallet gateway.
const GatewayFlouci = "flouci"

// Flouci maps the status string returned by the Flouci verify endpoint.
type Flouci struct{}

type flouciCallback struct {
	PaymentID           string `json:"payment_id"`
	DeveloperTrackingID string `json:"developer_tracking_id"`
	Status              string `json:"status"`
}

func (Flouci) MapStatus(raw string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return StatusPending, nil
	case "SUCCESS":
		return StatusPaid, nil
	case "FAILURE", "EXPIRED":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: flouci %q", ErrUnknownStatus, raw)
	}
}

// ParseCallback reads developer_tracking_id as our order id.
func (Flouci) ParseCallback(body []byte) (Callback, error) {
	var payload flouciCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	orderID := strings.TrimSpace(payload.DeveloperTrackingID)
	status := strings.TrimSpace(payload.Status)
	if orderID == "" || status == "" {
		return Callback{}, fmt.Errorf("%w: developer_tracking_id and status are required", ErrInvalidCallback)
	}
	return Callback{OrderID: orderID, RawStatus: status, Reference: strings.TrimSpace(payload.PaymentID)}, nil
}
