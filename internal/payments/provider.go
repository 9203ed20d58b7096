package payments

import (
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusPaid indicates the gateway reports the payment as captured.
	StatusPaid Status = "paid"
	// StatusFailed indicates the gateway reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

var (
	// ErrUnsupportedGateway is returned when the registry cannot locate a gateway.
	ErrUnsupportedGateway = errors.New("payments: unsupported gateway")
	// ErrUnknownStatus is returned for raw statuses a gateway does not document.
	ErrUnknownStatus = errors.New("payments: unknown gateway status")
	// ErrInvalidCallback is returned when a callback payload cannot be decoded.
	ErrInvalidCallback = errors.New("payments: invalid callback payload")
)

// Callback is a decoded gateway notification.
type Callback struct {
	OrderID   string
	RawStatus string
	Reference string
}

// Gateway adapts one payment service provider.
type Gateway interface {
	// MapStatus normalises a raw gateway status.
	MapStatus(raw string) (Status, error)
	// ParseCallback decodes the gateway's notification body.
	ParseCallback(body []byte) (Callback, error)
}

// Registry resolves gateways by name.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry constructs a Registry over the supplied gateways.
func NewRegistry(gateways map[string]Gateway) (*Registry, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copyMap := make(map[string]Gateway, len(gateways))
	for k, v := range gateways {
		key := normaliseName(k)
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for key %q", k)
		}
		copyMap[key] = v
	}
	return &Registry{gateways: copyMap}, nil
}

// DefaultRegistry registers the ClicToPay and Flouci gateways.
func DefaultRegistry() *Registry {
	registry, _ := NewRegistry(map[string]Gateway{
		GatewayClicToPay: ClicToPay{},
		GatewayFlouci:    Flouci{},
	})
	return registry
}

// Gateway returns the named gateway.
func (r *Registry) Gateway(name string) (Gateway, error) {
	if r == nil {
		return nil, errors.New("payments: registry is nil")
	}
	gateway, ok := r.gateways[normaliseName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, name)
	}
	return gateway, nil
}

// MapStatus delegates to the named gateway.
func (r *Registry) MapStatus(gateway, raw string) (Status, error) {
	g, err := r.Gateway(gateway)
	if err != nil {
		return "", err
	}
	return g.MapStatus(raw)
}

// ParseCallback delegates to the named gateway.
func (r *Registry) ParseCallback(gateway string, body []byte) (Callback, error) {
	g, err := r.Gateway(gateway)
	if err != nil {
		return Callback{}, err
	}
	return g.ParseCallback(body)
}

func normaliseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
