package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPendingOnline awaits confirmation from an online payment gateway.
	OrderStatusPendingOnline OrderStatus = "PENDING_ONLINE"
	// OrderStatusRedirected was handed off to an external payment app.
	OrderStatusRedirected OrderStatus = "REDIRECTED"
	// OrderStatusPendingCash awaits cash collection by an ambassador.
	OrderStatusPendingCash OrderStatus = "PENDING_CASH"
	// OrderStatusPaid has been settled.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusCancelled is terminal and always carries a cancellation reason.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRemovedByAdmin is a terminal soft delete.
	OrderStatusRemovedByAdmin OrderStatus = "REMOVED_BY_ADMIN"
)

// Cash-lane statuses written by the legacy COD flow and the admin accept/complete workflow.
// They sit outside the six canonical values and have no entry in the canonical transition table.
const (
	OrderStatusLegacyPending   OrderStatus = "PENDING"
	OrderStatusLegacyAccepted  OrderStatus = "ACCEPTED"
	OrderStatusLegacyCompleted OrderStatus = "COMPLETED"
)

// OrderStatuses lists the canonical statuses in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusPendingOnline,
	OrderStatusRedirected,
	OrderStatusPendingCash,
	OrderStatusPaid,
	OrderStatusCancelled,
	OrderStatusRemovedByAdmin,
}

// PaymentMethod selects how an order is paid. It never changes after creation.
type PaymentMethod string

const (
	PaymentMethodOnline         PaymentMethod = "online"
	PaymentMethodExternalApp    PaymentMethod = "external_app"
	PaymentMethodAmbassadorCash PaymentMethod = "ambassador_cash"
	// PaymentMethodLegacyCOD is only written by the legacy cash-on-delivery flow.
	PaymentMethodLegacyCOD PaymentMethod = "cod"
)

// PaymentMethods lists the supported payment methods.
var PaymentMethods = []PaymentMethod{
	PaymentMethodOnline,
	PaymentMethodExternalApp,
	PaymentMethodAmbassadorCash,
}

// PaymentOptionType identifies an admin-configurable checkout option.
type PaymentOptionType string

const (
	PaymentOptionOnline         PaymentOptionType = "online"
	PaymentOptionExternalApp    PaymentOptionType = "external_app"
	PaymentOptionAmbassadorCash PaymentOptionType = "ambassador_cash"
)

// AmbassadorStatus is the application-level ambassador taxonomy.
type AmbassadorStatus string

const (
	AmbassadorStatusActive   AmbassadorStatus = "ACTIVE"
	AmbassadorStatusPaused   AmbassadorStatus = "PAUSED"
	AmbassadorStatusDisabled AmbassadorStatus = "DISABLED"
	AmbassadorStatusPending  AmbassadorStatus = "PENDING"
	AmbassadorStatusRejected AmbassadorStatus = "REJECTED"
)

// AmbassadorApproval is the tri-state persisted on ambassador records.
type AmbassadorApproval string

const (
	AmbassadorApprovalPending  AmbassadorApproval = "pending"
	AmbassadorApprovalApproved AmbassadorApproval = "approved"
	AmbassadorApprovalRejected AmbassadorApproval = "rejected"
)

// Status maps the persisted approval state onto the application taxonomy.
func (a AmbassadorApproval) Status() AmbassadorStatus {
	switch a {
	case AmbassadorApprovalApproved:
		return AmbassadorStatusActive
	case AmbassadorApprovalRejected:
		return AmbassadorStatusRejected
	default:
		return AmbassadorStatusPending
	}
}

// OrderSource tags where an order originated.
type OrderSource string

const (
	// OrderSourcePlatformCOD is deprecated in favour of OrderSourceAmbassadorManual.
	OrderSourcePlatformCOD      OrderSource = "platform_cod"
	OrderSourcePlatformOnline   OrderSource = "platform_online"
	OrderSourceAmbassadorManual OrderSource = "ambassador_manual"
)

// AmbassadorSources are the sources counted as ambassador sales.
var AmbassadorSources = []OrderSource{OrderSourceAmbassadorManual, OrderSourcePlatformCOD}

// ActorType identifies who performed an order action.
type ActorType string

const (
	ActorAdmin      ActorType = "admin"
	ActorAmbassador ActorType = "ambassador"
	ActorSystem     ActorType = "system"
)

// OrderLogAction names an audited order action.
type OrderLogAction string

const (
	OrderLogAssigned      OrderLogAction = "assigned"
	OrderLogAccepted      OrderLogAction = "accepted"
	OrderLogCompleted     OrderLogAction = "completed"
	OrderLogCancelled     OrderLogAction = "cancelled"
	OrderLogReassigned    OrderLogAction = "reassigned"
	OrderLogStatusChanged OrderLogAction = "status_changed"
	OrderLogAdminRefunded OrderLogAction = "admin_refunded"
)

// IsValidOrderStatus reports whether s is one of the canonical statuses.
func IsValidOrderStatus(s string) bool {
	for _, status := range OrderStatuses {
		if string(status) == s {
			return true
		}
	}
	return false
}

// IsValidPaymentMethod reports whether m is a supported payment method.
func IsValidPaymentMethod(m string) bool {
	for _, method := range PaymentMethods {
		if string(method) == m {
			return true
		}
	}
	return false
}

// InitialStatus returns the status an order starts in for the payment method.
func InitialStatus(method PaymentMethod) (OrderStatus, bool) {
	switch method {
	case PaymentMethodOnline:
		return OrderStatusPendingOnline, true
	case PaymentMethodExternalApp:
		return OrderStatusRedirected, true
	case PaymentMethodAmbassadorCash:
		return OrderStatusPendingCash, true
	case PaymentMethodLegacyCOD:
		return OrderStatusLegacyPending, true
	default:
		return "", false
	}
}

var (
	langMatcher = language.NewMatcher([]language.Tag{language.English, language.French})

	orderStatusLabels = map[string]map[OrderStatus]string{
		"en": {
			OrderStatusPendingOnline:   "Pending online payment",
			OrderStatusRedirected:      "Redirected to payment app",
			OrderStatusPendingCash:     "Pending cash payment",
			OrderStatusPaid:            "Paid",
			OrderStatusCancelled:       "Cancelled",
			OrderStatusRemovedByAdmin:  "Removed by admin",
			OrderStatusLegacyPending:   "Pending",
			OrderStatusLegacyAccepted:  "Accepted",
			OrderStatusLegacyCompleted: "Completed",
		},
		"fr": {
			OrderStatusPendingOnline:   "Paiement en ligne en attente",
			OrderStatusRedirected:      "Redirigé vers l'application de paiement",
			OrderStatusPendingCash:     "Paiement en espèces en attente",
			OrderStatusPaid:            "Payée",
			OrderStatusCancelled:       "Annulée",
			OrderStatusRemovedByAdmin:  "Supprimée par l'administrateur",
			OrderStatusLegacyPending:   "En attente",
			OrderStatusLegacyAccepted:  "Acceptée",
			OrderStatusLegacyCompleted: "Terminée",
		},
	}

	paymentMethodLabels = map[string]map[PaymentMethod]string{
		"en": {
			PaymentMethodOnline:         "Online payment",
			PaymentMethodExternalApp:    "External app",
			PaymentMethodAmbassadorCash: "Cash via ambassador",
			PaymentMethodLegacyCOD:      "Cash on delivery",
		},
		"fr": {
			PaymentMethodOnline:         "Paiement en ligne",
			PaymentMethodExternalApp:    "Application externe",
			PaymentMethodAmbassadorCash: "Espèces via ambassadeur",
			PaymentMethodLegacyCOD:      "Paiement à la livraison",
		},
	}
)

// NormalizeLang reduces a language tag or Accept-Language value to "en" or "fr".
func NormalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}
	tag, _ := language.MatchStrings(langMatcher, lang)
	base, _ := tag.Base()
	if base.String() == "fr" {
		return "fr"
	}
	return "en"
}

// OrderStatusLabel returns the display label for status, or the raw value when unknown.
func OrderStatusLabel(status OrderStatus, lang string) string {
	if label, ok := orderStatusLabels[NormalizeLang(lang)][status]; ok {
		return label
	}
	return string(status)
}

// PaymentMethodLabel returns the display label for method, or the raw value when unknown.
func PaymentMethodLabel(method PaymentMethod, lang string) string {
	if label, ok := paymentMethodLabels[NormalizeLang(lang)][method]; ok {
		return label
	}
	return string(method)
}
