package domain

import (
	"slices"
	"testing"
)

func TestValidNextStatusesTable(t *testing.T) {
	want := map[OrderStatus][]OrderStatus{
		OrderStatusPendingOnline:  {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
		OrderStatusRedirected:     {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
		OrderStatusPendingCash:    {OrderStatusPaid, OrderStatusCancelled, OrderStatusRemovedByAdmin},
		OrderStatusPaid:           {OrderStatusCancelled},
		OrderStatusCancelled:      {},
		OrderStatusRemovedByAdmin: {},
	}
	for _, status := range OrderStatuses {
		for i := 0; i < 3; i++ {
			got := ValidNextStatuses(status)
			if !slices.Equal(got, want[status]) {
				t.Fatalf("ValidNextStatuses(%s) = %v, want %v", status, got, want[status])
			}
		}
	}
}

func TestValidNextStatusesReturnsCopy(t *testing.T) {
	next := ValidNextStatuses(OrderStatusPendingCash)
	next[0] = OrderStatusRemovedByAdmin
	if got := ValidNextStatuses(OrderStatusPendingCash)[0]; got != OrderStatusPaid {
		t.Fatalf("table mutated through returned slice: %s", got)
	}
}

func TestTransitionConsistency(t *testing.T) {
	for _, status := range OrderStatuses {
		pending := slices.Contains(pendingStatuses, status)
		if CanUpdateStatus(status) != pending {
			t.Errorf("CanUpdateStatus(%s) = %v", status, CanUpdateStatus(status))
		}
		nonEmpty := len(ValidNextStatuses(status)) > 0
		if nonEmpty != (pending || status == OrderStatusPaid) {
			t.Errorf("ValidNextStatuses(%s) non-empty = %v", status, nonEmpty)
		}
	}
}

func TestCanCancelOrderExcludesPaid(t *testing.T) {
	if CanCancelOrder(OrderStatusPaid) {
		t.Fatal("paid orders must go through the refund path")
	}
	if !CanTransition(OrderStatusPaid, OrderStatusCancelled) {
		t.Fatal("expected PAID -> CANCELLED in the transition table")
	}
	for _, status := range []OrderStatus{OrderStatusPendingOnline, OrderStatusRedirected, OrderStatusPendingCash} {
		if !CanCancelOrder(status) {
			t.Errorf("expected %s to be cancellable", status)
		}
	}
	if CanCancelOrder(OrderStatusCancelled) || CanCancelOrder(OrderStatusRemovedByAdmin) {
		t.Fatal("terminal statuses are not cancellable")
	}
}

func TestAdminTransition(t *testing.T) {
	cases := []struct {
		action AdminAction
		from   OrderStatus
		want   OrderStatus
		ok     bool
	}{
		{AdminActionAccept, OrderStatusPendingCash, OrderStatusLegacyAccepted, true},
		{AdminActionAccept, OrderStatusLegacyPending, OrderStatusLegacyAccepted, true},
		{AdminActionAccept, OrderStatusPaid, "", false},
		{AdminActionComplete, OrderStatusLegacyAccepted, OrderStatusLegacyCompleted, true},
		{AdminActionComplete, OrderStatusPendingCash, "", false},
		{AdminActionCancel, OrderStatusRedirected, OrderStatusCancelled, true},
		{AdminActionCancel, OrderStatusPaid, "", false},
		{AdminActionCancel, OrderStatusLegacyCompleted, "", false},
		{AdminActionRefund, OrderStatusPaid, OrderStatusCancelled, true},
		{AdminActionRefund, OrderStatusPendingCash, "", false},
	}
	for _, tc := range cases {
		got, ok := AdminTransition(tc.action, tc.from)
		if ok != tc.ok || got != tc.want {
			t.Errorf("AdminTransition(%s, %s) = (%s, %v), want (%s, %v)", tc.action, tc.from, got, ok, tc.want, tc.ok)
		}
	}
}
