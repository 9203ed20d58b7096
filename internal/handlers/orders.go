package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/httpx"
	"github.com/eventpass/api/internal/platform/pagination"
	"github.com/eventpass/api/internal/platform/requestctx"
	"github.com/eventpass/api/internal/services"
)

var orderPageOptions = pagination.Options{DefaultPageSize: 20, MaxPageSize: 100}

// OrderHandlers serves checkout, the admin order lifecycle and the ambassador order list.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// PublicRoutes registers checkout endpoints.
func (h *OrderHandlers) PublicRoutes(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/cod", h.createCODOrder)
}

// AdminRoutes registers the dashboard order endpoints. Callers mount it behind admin auth.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}:{action}", h.orderAction)
	r.Patch("/orders/{orderID}/status", h.updateStatus)
	r.Get("/ambassadors/sales", h.ambassadorSales)
}

// AmbassadorRoutes registers the portal order list. Callers mount it behind ambassador auth.
func (h *OrderHandlers) AmbassadorRoutes(r chi.Router) {
	r.Get("/orders", h.listAmbassadorOrders)
}

type customerRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	City     string `json:"city" validate:"required"`
	Ville    string `json:"ville"`
}

type passLineRequest struct {
	PassID   string          `json:"pass_id"`
	PassName string          `json:"pass_name" validate:"required_without=PassID"`
	Quantity int             `json:"quantity" validate:"min=1"`
	Price    decimal.Decimal `json:"price"`
}

type createCODOrderRequest struct {
	EventID    string            `json:"event_id"`
	Passes     []passLineRequest `json:"passes" validate:"required,min=1,dive"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Customer   customerRequest   `json:"customer"`
}

type createOrderRequest struct {
	EventID       string            `json:"event_id" validate:"required"`
	Passes        []passLineRequest `json:"passes" validate:"required,min=1,dive"`
	TotalPrice    decimal.Decimal   `json:"total_price"`
	Customer      customerRequest   `json:"customer"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=online external_app ambassador_cash"`
	AmbassadorID  string            `json:"ambassador_id" validate:"required_if=PaymentMethod ambassador_cash"`
}

type adminActionRequest struct {
	Reason       string         `json:"reason" validate:"max=500"`
	AmbassadorID string         `json:"ambassador_id"`
	Metadata     map[string]any `json:"metadata"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *OrderHandlers) createCODOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	var req createCODOrderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	order, err := h.orders.CreateCODOrder(ctx, services.CreateCODOrderCommand{
		EventID:    req.EventID,
		Passes:     toSelections(req.Passes),
		TotalPrice: req.TotalPrice,
		Customer:   req.Customer.toCustomer(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, requestLang(r))})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	var req createOrderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		EventID:       req.EventID,
		Passes:        toSelections(req.Passes),
		TotalPrice:    req.TotalPrice,
		Customer:      req.Customer.toCustomer(),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		AmbassadorID:  req.AmbassadorID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order, requestLang(r))})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	params, err := pagination.FromRequest(r, orderPageOptions)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query := r.URL.Query()
	filter := services.OrderListFilter{
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(query.Get("payment_method"))),
		AmbassadorID:  strings.TrimSpace(query.Get("ambassador_id")),
		EventID:       strings.TrimSpace(query.Get("event_id")),
		Pagination:    services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.OrderStatus(strings.ToUpper(raw))
		if !domain.IsValidOrderStatus(string(status)) && !isLegacyStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status "+strconv.Quote(raw), http.StatusBadRequest))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, requestLang(r)))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, requestLang(r))})
}

func (h *OrderHandlers) orderAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req adminActionRequest
	if hasBody(r) && !decodeJSONBody(w, r, &req) {
		return
	}

	orderID := chi.URLParam(r, "orderID")
	cmd := services.AdminOrderCommand{
		OrderID:  orderID,
		ActorID:  identity.ID,
		Reason:   req.Reason,
		Metadata: actionMetadata(r, req.Metadata),
	}

	var (
		order services.Order
		err   error
	)
	switch chi.URLParam(r, "action") {
	case "accept":
		order, err = h.orders.AcceptOrderAsAdmin(ctx, cmd)
	case "complete":
		order, err = h.orders.CompleteOrderAsAdmin(ctx, cmd)
	case "cancel":
		order, err = h.orders.CancelOrderAsAdmin(ctx, cmd)
	case "refund":
		order, err = h.orders.RefundOrderAsAdmin(ctx, cmd)
	case "reassign":
		order, err = h.orders.ReassignOrder(ctx, services.ReassignOrderCommand{
			OrderID:      orderID,
			AmbassadorID: req.AmbassadorID,
			ActorID:      identity.ID,
		})
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_action_not_found", "unknown order action", http.StatusNotFound))
		return
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, requestLang(r))})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !domain.IsValidOrderStatus(string(status)) && !isLegacyStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a known order status", http.StatusBadRequest))
		return
	}
	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  status,
		ActorID: identity.ID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order, requestLang(r))})
}

func (h *OrderHandlers) ambassadorSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	data, err := h.orders.FetchAmbassadorSalesData(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSalesPayload(data, requestLang(r)))
}

func (h *OrderHandlers) listAmbassadorOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params, err := pagination.FromRequest(r, orderPageOptions)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.orders.ListAmbassadorOrders(ctx, identity.ID, services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page, requestLang(r)))
}

func (c customerRequest) toCustomer() services.Customer {
	return services.Customer{
		Name:  c.FullName,
		Phone: c.Phone,
		Email: c.Email,
		City:  c.City,
		Ville: c.Ville,
	}
}

func toSelections(lines []passLineRequest) []services.PassSelection {
	out := make([]services.PassSelection, 0, len(lines))
	for _, line := range lines {
		out = append(out, services.PassSelection{
			PassID:   strings.TrimSpace(line.PassID),
			PassName: strings.TrimSpace(line.PassName),
			Quantity: line.Quantity,
			Price:    line.Price,
		})
	}
	return out
}

func isLegacyStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusLegacyPending, domain.OrderStatusLegacyAccepted, domain.OrderStatusLegacyCompleted:
		return true
	}
	return false
}

// parseFilterValues accepts repeated and comma separated query values.
func parseFilterValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

func actionMetadata(r *http.Request, supplied map[string]any) map[string]any {
	metadata := make(map[string]any, len(supplied)+2)
	for k, v := range supplied {
		metadata[k] = v
	}
	if ip := requestctx.ClientIP(r.Context()); ip != "" {
		metadata["ip"] = ip
	}
	if ua := r.UserAgent(); ua != "" {
		metadata["userAgent"] = ua
	}
	return metadata
}
