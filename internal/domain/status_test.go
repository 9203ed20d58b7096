package domain

import "testing"

func TestOrderStatusLabel(t *testing.T) {
	for _, status := range OrderStatuses {
		for _, lang := range []string{"en", "fr"} {
			if label := OrderStatusLabel(status, lang); label == "" || label == string(status) {
				t.Errorf("missing %s label for %s", lang, status)
			}
		}
	}
	if got := OrderStatusLabel(OrderStatusPaid, "fr-FR"); got != "Payée" {
		t.Fatalf("expected regional french tag to resolve to fr, got %q", got)
	}
	if got := OrderStatusLabel(OrderStatusPaid, "de"); got != "Paid" {
		t.Fatalf("expected english fallback, got %q", got)
	}
	if got := OrderStatusLabel(OrderStatus("SHIPPED"), "fr"); got != "SHIPPED" {
		t.Fatalf("unknown status should pass through, got %q", got)
	}
}

func TestPaymentMethodLabel(t *testing.T) {
	for _, method := range PaymentMethods {
		if label := PaymentMethodLabel(method, "fr"); label == "" || label == string(method) {
			t.Errorf("missing fr label for %s", method)
		}
	}
	if got := PaymentMethodLabel(PaymentMethod("crypto"), "en"); got != "crypto" {
		t.Fatalf("unknown method should pass through, got %q", got)
	}
}

func TestInitialStatus(t *testing.T) {
	cases := map[PaymentMethod]OrderStatus{
		PaymentMethodOnline:         OrderStatusPendingOnline,
		PaymentMethodExternalApp:    OrderStatusRedirected,
		PaymentMethodAmbassadorCash: OrderStatusPendingCash,
		PaymentMethodLegacyCOD:      OrderStatusLegacyPending,
	}
	for method, want := range cases {
		got, ok := InitialStatus(method)
		if !ok || got != want {
			t.Errorf("InitialStatus(%s) = %s, %v", method, got, ok)
		}
	}
	if _, ok := InitialStatus(PaymentMethod("barter")); ok {
		t.Fatal("expected unknown payment method to be rejected")
	}
}

func TestValidityHelpers(t *testing.T) {
	if !IsValidOrderStatus("PENDING_CASH") || IsValidOrderStatus("ACCEPTED") {
		t.Fatal("unexpected IsValidOrderStatus result")
	}
	if !IsValidPaymentMethod("online") || IsValidPaymentMethod("cod") {
		t.Fatal("unexpected IsValidPaymentMethod result")
	}
}
