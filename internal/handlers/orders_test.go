package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/platform/pagination"
	"github.com/eventpass/api/internal/services"
)

type stubOrderService struct {
	createCODFn func(context.Context, services.CreateCODOrderCommand) (services.Order, error)
	createFn    func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn       func(context.Context, string) (services.Order, error)
	listFn      func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	listAmbFn   func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	adminFn     func(context.Context, string, services.AdminOrderCommand) (services.Order, error)
	reassignFn  func(context.Context, services.ReassignOrderCommand) (services.Order, error)
	updateFn    func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	paymentFn   func(context.Context, services.PaymentResultCommand) (services.Order, error)
	salesFn     func(context.Context) (services.AmbassadorSalesData, error)
}

var _ services.OrderService = (*stubOrderService)(nil)

func (s *stubOrderService) CreateCODOrder(ctx context.Context, cmd services.CreateCODOrderCommand) (services.Order, error) {
	if s.createCODFn != nil {
		return s.createCODFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) ListAmbassadorOrders(ctx context.Context, ambassadorID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listAmbFn != nil {
		return s.listAmbFn(ctx, ambassadorID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) admin(ctx context.Context, action string, cmd services.AdminOrderCommand) (services.Order, error) {
	if s.adminFn != nil {
		return s.adminFn(ctx, action, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) AcceptOrderAsAdmin(ctx context.Context, cmd services.AdminOrderCommand) (services.Order, error) {
	return s.admin(ctx, "accept", cmd)
}

func (s *stubOrderService) CompleteOrderAsAdmin(ctx context.Context, cmd services.AdminOrderCommand) (services.Order, error) {
	return s.admin(ctx, "complete", cmd)
}

func (s *stubOrderService) CancelOrderAsAdmin(ctx context.Context, cmd services.AdminOrderCommand) (services.Order, error) {
	return s.admin(ctx, "cancel", cmd)
}

func (s *stubOrderService) RefundOrderAsAdmin(ctx context.Context, cmd services.AdminOrderCommand) (services.Order, error) {
	return s.admin(ctx, "refund", cmd)
}

func (s *stubOrderService) ReassignOrder(ctx context.Context, cmd services.ReassignOrderCommand) (services.Order, error) {
	if s.reassignFn != nil {
		return s.reassignFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ApplyPaymentResult(ctx context.Context, cmd services.PaymentResultCommand) (services.Order, error) {
	if s.paymentFn != nil {
		return s.paymentFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FetchAmbassadorSalesData(ctx context.Context) (services.AmbassadorSalesData, error) {
	if s.salesFn != nil {
		return s.salesFn(ctx)
	}
	return services.AmbassadorSalesData{}, nil
}

func withAdmin(req *http.Request) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{ID: "adm-1", Email: "ops@eventpass.tn", Role: auth.RoleAdmin}))
}

func adminOrderRouter(h *OrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", h.AdminRoutes)
	return router
}

func TestOrderHandlersCreateCODOrder(t *testing.T) {
	created := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	var captured services.CreateCODOrderCommand
	service := &stubOrderService{
		createCODFn: func(_ context.Context, cmd services.CreateCODOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:            "ord-1",
				Source:        domain.OrderSourcePlatformCOD,
				UserName:      cmd.Customer.Name,
				UserPhone:     cmd.Customer.Phone,
				City:          cmd.Customer.City,
				PassType:      "VIP",
				Quantity:      2,
				TotalPrice:    decimal.RequireFromString("120"),
				PaymentMethod: domain.PaymentMethodLegacyCOD,
				Status:        domain.OrderStatusLegacyPending,
				CreatedAt:     created,
			}, nil
		},
	}
	router := chi.NewRouter()
	NewOrderHandlers(service).PublicRoutes(router)

	body := `{"customer":{"full_name":"Amira Ben Salah","phone":"+216 20 123 456","city":"Tunis","ville":"La Marsa"},
		"passes":[{"pass_name":"VIP","quantity":2,"price":"60"}],"total_price":"120","event_id":"evt-1"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/cod?lang=fr", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Customer.Ville != "La Marsa" || captured.EventID != "evt-1" {
		t.Fatalf("unexpected command: %#v", captured)
	}
	if len(captured.Passes) != 1 || captured.Passes[0].Quantity != 2 || !captured.Passes[0].Price.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected passes: %#v", captured.Passes)
	}

	var resp struct {
		Order struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			StatusLabel string `json:"status_label"`
			TotalPrice  string `json:"total_price"`
			CreatedAt   string `json:"created_at"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != "ord-1" || resp.Order.Status != "PENDING" {
		t.Fatalf("unexpected order: %#v", resp.Order)
	}
	if resp.Order.StatusLabel != domain.OrderStatusLabel(domain.OrderStatusLegacyPending, "fr") {
		t.Fatalf("expected french label, got %q", resp.Order.StatusLabel)
	}
	if resp.Order.TotalPrice != "120.00" {
		t.Fatalf("expected total 120.00, got %s", resp.Order.TotalPrice)
	}
	if resp.Order.CreatedAt != "2024-06-01T18:00:00Z" {
		t.Fatalf("unexpected created_at %s", resp.Order.CreatedAt)
	}
}

func TestOrderHandlersCreateCODOrderValidation(t *testing.T) {
	called := false
	service := &stubOrderService{
		createCODFn: func(context.Context, services.CreateCODOrderCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	router := chi.NewRouter()
	NewOrderHandlers(service).PublicRoutes(router)

	body := `{"customer":{"full_name":"Amira","phone":"20123456","city":"Tunis"},"passes":[{"pass_name":"VIP","quantity":0,"price":"60"}],"total_price":"0"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/cod", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if called {
		t.Fatalf("service must not be called for invalid payloads")
	}
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if _, ok := resp.Fields["passes[0].quantity"]; !ok {
		t.Fatalf("expected quantity field error, got %v", resp.Fields)
	}
}

func TestOrderHandlersCreateCODOrderServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", fmt.Errorf("%w: total mismatch", services.ErrOrderInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"unavailable", services.ErrOrderUnavailable, http.StatusServiceUnavailable, "order_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{"conflict", fmt.Errorf("%w: orders.update: ERROR #40001 could not serialize access", services.ErrOrderConflict), http.StatusConflict, "order_conflict"},
		{"integrity violation", errors.New(`orders.insert: ERROR #23503 insert on table "orders" violates foreign key constraint "orders_event_id_fkey"`), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubOrderService{
				createCODFn: func(context.Context, services.CreateCODOrderCommand) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			router := chi.NewRouter()
			NewOrderHandlers(service).PublicRoutes(router)

			body := `{"customer":{"full_name":"Amira","phone":"20123456","city":"Tunis"},"passes":[{"pass_name":"VIP","quantity":1,"price":"60"}],"total_price":"60"}`
			req := httptest.NewRequest(http.MethodPost, "/orders/cod", strings.NewReader(body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, resp["error"])
			}
			if msg, _ := resp["message"].(string); strings.Contains(msg, "ERROR #") || strings.Contains(msg, "orders.") {
				t.Fatalf("store details leaked to client: %q", msg)
			}
		})
	}
}

func TestOrderHandlersCreateOrderRequiresAmbassadorForCash(t *testing.T) {
	router := chi.NewRouter()
	NewOrderHandlers(&stubOrderService{}).PublicRoutes(router)

	body := `{"event_id":"evt-1","payment_method":"ambassador_cash","customer":{"full_name":"Amira","phone":"20123456","city":"Tunis"},
		"passes":[{"pass_id":"pass-1","quantity":1,"price":"60"}],"total_price":"60"}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	var captured services.OrderListFilter
	service := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{{ID: "ord-1", Status: domain.OrderStatusPendingCash, PaymentMethod: domain.PaymentMethodAmbassadorCash}},
				NextPageToken: "tok-next",
			}, nil
		},
	}
	router := adminOrderRouter(NewOrderHandlers(service))
	token, err := pagination.EncodeToken(pagination.Cursor{
		CreatedAt: time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC),
		ID:        "0b6f1d2e-7c41-4e4a-9d1f-2f5a3c8e9b10",
	})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=pending_cash,PAID&status=accepted&payment_method=ambassador_cash&pageSize=10&pageToken="+token, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := []domain.OrderStatus{domain.OrderStatusPendingCash, domain.OrderStatusPaid, domain.OrderStatusLegacyAccepted}
	if len(captured.Statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, captured.Statuses)
	}
	for i := range want {
		if captured.Statuses[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, captured.Statuses)
		}
	}
	if captured.PaymentMethod != domain.PaymentMethodAmbassadorCash {
		t.Fatalf("expected payment method filter, got %q", captured.PaymentMethod)
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != token {
		t.Fatalf("unexpected pagination %#v", captured.Pagination)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextPageToken != "tok-next" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestOrderHandlersListOrdersRejectsUnknownStatus(t *testing.T) {
	router := adminOrderRouter(NewOrderHandlers(&stubOrderService{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipped", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersAdminActions(t *testing.T) {
	tests := []struct {
		action string
		body   string
		status domain.OrderStatus
	}{
		{"accept", "", domain.OrderStatusLegacyAccepted},
		{"complete", "", domain.OrderStatusLegacyCompleted},
		{"cancel", `{"reason":"customer unreachable"}`, domain.OrderStatusCancelled},
		{"refund", `{"reason":"event postponed"}`, domain.OrderStatusCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			var (
				gotAction string
				gotCmd    services.AdminOrderCommand
			)
			service := &stubOrderService{
				adminFn: func(_ context.Context, action string, cmd services.AdminOrderCommand) (services.Order, error) {
					gotAction = action
					gotCmd = cmd
					return services.Order{ID: cmd.OrderID, Status: tc.status}, nil
				},
			}
			router := adminOrderRouter(NewOrderHandlers(service))

			var req *http.Request
			if tc.body == "" {
				req = httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:"+tc.action, nil)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:"+tc.action, strings.NewReader(tc.body))
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, withAdmin(req))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if gotAction != tc.action {
				t.Fatalf("expected action %s, got %s", tc.action, gotAction)
			}
			if gotCmd.OrderID != "ord-7" || gotCmd.ActorID != "adm-1" {
				t.Fatalf("unexpected command %#v", gotCmd)
			}
			if tc.body != "" && gotCmd.Reason == "" {
				t.Fatalf("expected reason to be forwarded")
			}
		})
	}
}

func TestOrderHandlersAdminActionInvalidState(t *testing.T) {
	service := &stubOrderService{
		adminFn: func(context.Context, string, services.AdminOrderCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: COMPLETED -> ACCEPTED", services.ErrOrderInvalidState)
		},
	}
	router := adminOrderRouter(NewOrderHandlers(service))

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:accept", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersAdminActionUnknown(t *testing.T) {
	router := adminOrderRouter(NewOrderHandlers(&stubOrderService{}))

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:ship", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"order_action_not_found"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestOrderHandlersAdminActionRequiresIdentity(t *testing.T) {
	router := adminOrderRouter(NewOrderHandlers(&stubOrderService{}))

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:accept", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersReassign(t *testing.T) {
	var captured services.ReassignOrderCommand
	service := &stubOrderService{
		reassignFn: func(_ context.Context, cmd services.ReassignOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, AmbassadorID: cmd.AmbassadorID, Status: domain.OrderStatusPendingCash}, nil
		},
	}
	router := adminOrderRouter(NewOrderHandlers(service))

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7:reassign", strings.NewReader(`{"ambassador_id":"amb-2"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.AmbassadorID != "amb-2" || captured.ActorID != "adm-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	service := &stubOrderService{
		updateFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.Status}, nil
		},
	}
	router := adminOrderRouter(NewOrderHandlers(service))

	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord-7/status", strings.NewReader(`{"status":"removed_by_admin","reason":"duplicate"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.OrderStatusRemovedByAdmin || captured.Reason != "duplicate" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestOrderHandlersAmbassadorSales(t *testing.T) {
	service := &stubOrderService{
		salesFn: func(context.Context) (services.AmbassadorSalesData, error) {
			return services.AmbassadorSalesData{
				Ambassadors: []services.Ambassador{{ID: "amb-1", FullName: "Youssef", PasswordHash: "secret"}},
				Orders: []services.AmbassadorSale{{
					Order:          services.Order{ID: "ord-1", AmbassadorID: "amb-1", Status: domain.OrderStatusPendingCash},
					AmbassadorName: "Youssef",
				}},
				Logs: []services.OrderLog{{ID: "log-1", OrderID: "ord-1", Action: domain.OrderLogStatusChanged, PerformedByType: domain.ActorAdmin}},
			}, nil
		},
	}
	router := adminOrderRouter(NewOrderHandlers(service))

	req := httptest.NewRequest(http.MethodGet, "/admin/ambassadors/sales", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withAdmin(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("password hash leaked in response")
	}
	var resp struct {
		Orders []struct {
			ID             string `json:"id"`
			AmbassadorName string `json:"ambassador_name"`
		} `json:"orders"`
		Logs []orderLogPayload `json:"logs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].ID != "ord-1" || resp.Orders[0].AmbassadorName != "Youssef" {
		t.Fatalf("unexpected orders %#v", resp.Orders)
	}
	if len(resp.Logs) != 1 || resp.Logs[0].Action != string(domain.OrderLogStatusChanged) {
		t.Fatalf("unexpected logs %#v", resp.Logs)
	}
}

func TestOrderHandlersAmbassadorPortalOrders(t *testing.T) {
	var gotAmbassador string
	service := &stubOrderService{
		listAmbFn: func(_ context.Context, ambassadorID string, _ services.Pagination) (domain.CursorPage[services.Order], error) {
			gotAmbassador = ambassadorID
			return domain.CursorPage[services.Order]{Items: []services.Order{{ID: "ord-1"}}}, nil
		},
	}
	router := chi.NewRouter()
	router.Route("/ambassador", NewOrderHandlers(service).AmbassadorRoutes)

	req := httptest.NewRequest(http.MethodGet, "/ambassador/orders", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{ID: "amb-1", Role: auth.RoleAmbassador}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotAmbassador != "amb-1" {
		t.Fatalf("expected ambassador amb-1, got %s", gotAmbassador)
	}
}

func TestOrderHandlersNilService(t *testing.T) {
	router := chi.NewRouter()
	NewOrderHandlers(nil).PublicRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/orders/cod", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
