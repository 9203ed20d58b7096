package domain

import "slices"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingOnline:  {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
	OrderStatusRedirected:     {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
	OrderStatusPendingCash:    {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
	OrderStatusPaid:           {OrderStatusCancelled}, // refund
	OrderStatusCancelled:      {},
	OrderStatusRemovedByAdmin: {},
}

var pendingStatuses = []OrderStatus{
	OrderStatusPendingOnline,
	OrderStatusRedirected,
	OrderStatusPendingCash,
}

// ValidNextStatuses returns the statuses reachable from status. The slice is a copy.
func ValidNextStatuses(status OrderStatus) []OrderStatus {
	next := orderTransitions[status]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the canonical table allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// CanCancelOrder reports whether status is a pending state. PAID is excluded; refunds
// take the dedicated refund path.
func CanCancelOrder(status OrderStatus) bool {
	return slices.Contains(pendingStatuses, status)
}

// CanUpdateStatus reports whether the generic status updater may move an order out of status.
func CanUpdateStatus(status OrderStatus) bool {
	return slices.Contains(pendingStatuses, status)
}

// AdminAction is one of the dedicated admin lifecycle operations.
type AdminAction string

const (
	AdminActionAccept   AdminAction = "accept"
	AdminActionComplete AdminAction = "complete"
	AdminActionCancel   AdminAction = "cancel"
	AdminActionRefund   AdminAction = "refund"
)

// adminActionSources lists the statuses each admin action may start from. Accept and
// complete operate on the cash lane; cancel covers every cancellable pending state plus
// the cash-lane statuses.
var adminActionSources = map[AdminAction][]OrderStatus{
	AdminActionAccept:   {OrderStatusPendingCash, OrderStatusLegacyPending},
	AdminActionComplete: {OrderStatusLegacyAccepted},
	AdminActionCancel: {
		OrderStatusPendingOnline,
		OrderStatusRedirected,
		OrderStatusPendingCash,
		OrderStatusLegacyPending,
		OrderStatusLegacyAccepted,
	},
	AdminActionRefund: {OrderStatusPaid},
}

var adminActionTargets = map[AdminAction]OrderStatus{
	AdminActionAccept:   OrderStatusLegacyAccepted,
	AdminActionComplete: OrderStatusLegacyCompleted,
	AdminActionCancel:   OrderStatusCancelled,
	AdminActionRefund:   OrderStatusCancelled,
}

// AdminTransition returns the target status of action when started from status.
func AdminTransition(action AdminAction, status OrderStatus) (OrderStatus, bool) {
	if !slices.Contains(adminActionSources[action], status) {
		return "", false
	}
	return adminActionTargets[action], true
}
