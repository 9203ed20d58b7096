package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/textutil"
	"github.com/eventpass/api/internal/repositories"
)

const (
	// codCity is the only city served by the legacy cash-on-delivery checkout.
	codCity = "Sousse"
	// mixedPassType labels orders that combine several pass types.
	mixedPassType = "mixed"

	reasonPaymentFailed = "payment_failed"
	salesLogLimit       = 100
	unknownAmbassador   = "Unknown"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the order can no longer be modified this way.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the order changed concurrently.
	ErrOrderConflict = errors.New("order: changed concurrently")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Logs          repositories.OrderLogRepository
	Ambassadors   repositories.AmbassadorRepository
	Events        repositories.EventRepository
	UnitOfWork    repositories.UnitOfWork
	Payments      PaymentStatusMapper
	Notifications NotificationService
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	logs          repositories.OrderLogRepository
	ambassadors   repositories.AmbassadorRepository
	events        repositories.EventRepository
	unitOfWork    repositories.UnitOfWork
	payments      PaymentStatusMapper
	notifications NotificationService
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Logs == nil {
		return nil, errors.New("order service: order log repository is required")
	}
	if deps.Ambassadors == nil {
		return nil, errors.New("order service: ambassador repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = inlineTx{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return uuid.NewString() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}

	return &orderService{
		orders:        deps.Orders,
		logs:          deps.Logs,
		ambassadors:   deps.Ambassadors,
		events:        deps.Events,
		unitOfWork:    unit,
		payments:      deps.Payments,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateCODOrder persists a legacy cash-on-delivery order. It is not idempotent: identical calls
// create distinct orders.
func (s *orderService) CreateCODOrder(ctx context.Context, cmd CreateCODOrderCommand) (Order, error) {
	customer, err := normaliseCustomer(cmd.Customer)
	if err != nil {
		return Order{}, err
	}
	if customer.City != codCity {
		return Order{}, fmt.Errorf("%w: cash on delivery is only available in %s", ErrOrderInvalidInput, codCity)
	}
	if customer.Ville == "" {
		return Order{}, fmt.Errorf("%w: ville is required for cash on delivery", ErrOrderInvalidInput)
	}
	if err := validateSelections(cmd.Passes); err != nil {
		return Order{}, err
	}
	if cmd.TotalPrice.IsNegative() {
		return Order{}, fmt.Errorf("%w: total price must not be negative", ErrOrderInvalidInput)
	}

	eventID := strings.TrimSpace(cmd.EventID)
	if eventID != "" && s.events != nil {
		if _, err := s.events.FindByID(ctx, eventID); err != nil {
			if notFound(err) {
				return Order{}, fmt.Errorf("%w: event %s not found", ErrOrderInvalidInput, eventID)
			}
			return Order{}, s.mapRepositoryError(err)
		}
	}

	order := s.buildOrder(customer, cmd.Passes, cmd.TotalPrice)
	order.EventID = eventID
	order.Source = domain.OrderSourcePlatformCOD
	order.PaymentMethod = domain.PaymentMethodLegacyCOD
	order.Status = domain.OrderStatusLegacyPending

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "order.cod.created", map[string]any{
		"orderId":  created.ID,
		"quantity": created.Quantity,
		"ville":    created.Ville,
	})
	s.notify(ctx, created, NotifyOrderPlaced)
	return created, nil
}

// CreateOrder persists an order through the unified checkout. Pass prices are snapshotted from
// the event catalogue and must add up to the submitted total.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if !domain.IsValidPaymentMethod(string(cmd.PaymentMethod)) {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	customer, err := normaliseCustomer(cmd.Customer)
	if err != nil {
		return Order{}, err
	}
	eventID := strings.TrimSpace(cmd.EventID)
	if eventID == "" {
		return Order{}, fmt.Errorf("%w: event id is required", ErrOrderInvalidInput)
	}
	if err := validateSelections(cmd.Passes); err != nil {
		return Order{}, err
	}
	if s.events == nil {
		return Order{}, errors.New("order service: event repository not configured")
	}

	selections, total, err := s.snapshotPrices(ctx, eventID, cmd.Passes)
	if err != nil {
		return Order{}, err
	}
	if !total.Equal(cmd.TotalPrice) {
		return Order{}, fmt.Errorf("%w: total price %s does not match passes total %s", ErrOrderInvalidInput, cmd.TotalPrice.StringFixed(2), total.StringFixed(2))
	}

	status, _ := domain.InitialStatus(cmd.PaymentMethod)
	order := s.buildOrder(customer, selections, total)
	order.EventID = eventID
	order.PaymentMethod = cmd.PaymentMethod
	order.Status = status
	order.Source = domain.OrderSourcePlatformOnline

	var assignment *domain.OrderLog
	if cmd.PaymentMethod == domain.PaymentMethodAmbassadorCash {
		ambassador, err := s.eligibleAmbassador(ctx, cmd.AmbassadorID, customer.City, customer.Ville)
		if err != nil {
			return Order{}, err
		}
		order.Source = domain.OrderSourceAmbassadorManual
		order.AmbassadorID = ambassador.ID
		order.AssignedAt = valuePtr(order.CreatedAt)
		assignment = &domain.OrderLog{
			ID:              s.newID(),
			OrderID:         order.ID,
			Action:          domain.OrderLogAssigned,
			PerformedByType: domain.ActorSystem,
			Details:         map[string]any{"ambassador_id": ambassador.ID},
			CreatedAt:       order.CreatedAt,
		}
	}

	var created Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.orders.Insert(txCtx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if assignment != nil {
			if err := s.logs.Append(txCtx, *assignment); err != nil {
				return s.mapRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":       created.ID,
		"paymentMethod": string(created.PaymentMethod),
		"status":        string(created.Status),
	})
	s.notify(ctx, created, NotifyOrderPlaced)
	if assignment != nil {
		s.notify(ctx, created, NotifyOrderAssigned)
	}
	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if filter.PaymentMethod != "" && !domain.IsValidPaymentMethod(string(filter.PaymentMethod)) && filter.PaymentMethod != domain.PaymentMethodLegacyCOD {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, filter.PaymentMethod)
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListAmbassadorOrders(ctx context.Context, ambassadorID string, pager Pagination) (domain.CursorPage[Order], error) {
	ambassadorID = strings.TrimSpace(ambassadorID)
	if ambassadorID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: ambassador id is required", ErrOrderInvalidInput)
	}
	return s.ListOrders(ctx, OrderListFilter{AmbassadorID: ambassadorID, Pagination: pager})
}

func (s *orderService) AcceptOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error) {
	return s.adminTransition(ctx, cmd, domain.AdminActionAccept, domain.OrderLogAccepted, NotifyOrderAccepted,
		func(update *repositories.OrderStatusUpdate, now time.Time) {
			update.AcceptedAt = &now
		})
}

func (s *orderService) CompleteOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error) {
	return s.adminTransition(ctx, cmd, domain.AdminActionComplete, domain.OrderLogCompleted, NotifyOrderCompleted,
		func(update *repositories.OrderStatusUpdate, now time.Time) {
			update.CompletedAt = &now
		})
}

func (s *orderService) CancelOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
	}
	return s.adminTransition(ctx, cmd, domain.AdminActionCancel, domain.OrderLogCancelled, NotifyOrderCancelled,
		func(update *repositories.OrderStatusUpdate, now time.Time) {
			setCancellation(update, now, reason, domain.ActorAdmin)
		})
}

// RefundOrderAsAdmin is the dedicated PAID -> CANCELLED path.
func (s *orderService) RefundOrderAsAdmin(ctx context.Context, cmd AdminOrderCommand) (Order, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: refund reason is required", ErrOrderInvalidInput)
	}
	return s.adminTransition(ctx, cmd, domain.AdminActionRefund, domain.OrderLogAdminRefunded, NotifyOrderCancelled,
		func(update *repositories.OrderStatusUpdate, now time.Time) {
			setCancellation(update, now, reason, domain.ActorAdmin)
			update.PaymentStatus = valuePtr("refunded")
		})
}

func (s *orderService) ReassignOrder(ctx context.Context, cmd ReassignOrderCommand) (Order, error) {
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != domain.OrderStatusPendingCash {
		return Order{}, fmt.Errorf("%w: only %s orders can be reassigned, order is %s", ErrOrderInvalidState, domain.OrderStatusPendingCash, order.Status)
	}
	target := strings.TrimSpace(cmd.AmbassadorID)
	if target == order.AmbassadorID {
		return Order{}, fmt.Errorf("%w: order is already assigned to %s", ErrOrderInvalidInput, target)
	}
	ambassador, err := s.eligibleAmbassador(ctx, target, order.City, order.Ville)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	update := repositories.OrderStatusUpdate{
		OrderID:          order.ID,
		From:             order.Status,
		FromAmbassadorID: valuePtr(order.AmbassadorID),
		To:               order.Status,
		UpdatedAt:        now,
		AssignedAt:       &now,
		AmbassadorID:     valuePtr(ambassador.ID),
	}
	entry := domain.OrderLog{
		ID:              s.newID(),
		OrderID:         order.ID,
		Action:          domain.OrderLogReassigned,
		PerformedBy:     strings.TrimSpace(cmd.ActorID),
		PerformedByType: domain.ActorAdmin,
		Details: map[string]any{
			"from_ambassador_id": order.AmbassadorID,
			"to_ambassador_id":   ambassador.ID,
		},
		CreatedAt: now,
	}
	updated, err := s.commit(ctx, update, entry)
	if err != nil {
		return Order{}, err
	}
	s.notify(ctx, updated, NotifyOrderAssigned)
	return updated, nil
}

// UpdateOrderStatus is the generic admin updater. It only moves pending orders, and only along
// the canonical transition table.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if !domain.IsValidOrderStatus(string(cmd.Status)) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if cmd.Status == domain.OrderStatusCancelled && reason == "" {
		return Order{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
	}
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !domain.CanUpdateStatus(order.Status) || !domain.CanTransition(order.Status, cmd.Status) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, cmd.Status)
	}

	now := s.clock()
	update := repositories.OrderStatusUpdate{
		OrderID:   order.ID,
		From:      order.Status,
		To:        cmd.Status,
		UpdatedAt: now,
	}
	details := map[string]any{"from": string(order.Status), "to": string(cmd.Status)}
	switch cmd.Status {
	case domain.OrderStatusCancelled:
		setCancellation(&update, now, reason, domain.ActorAdmin)
		details["reason"] = reason
	case domain.OrderStatusPaid:
		update.PaymentStatus = valuePtr("paid")
	}
	entry := domain.OrderLog{
		ID:              s.newID(),
		OrderID:         order.ID,
		Action:          domain.OrderLogStatusChanged,
		PerformedBy:     strings.TrimSpace(cmd.ActorID),
		PerformedByType: domain.ActorAdmin,
		Details:         details,
		CreatedAt:       now,
	}
	updated, err := s.commit(ctx, update, entry)
	if err != nil {
		return Order{}, err
	}
	switch updated.Status {
	case domain.OrderStatusPaid:
		s.notify(ctx, updated, NotifyOrderPaid)
	case domain.OrderStatusCancelled:
		s.notify(ctx, updated, NotifyOrderCancelled)
	}
	return updated, nil
}

// ApplyPaymentResult settles an online order from a verified gateway callback. Re-delivered
// results for an order already in the resulting state are no-ops.
func (s *orderService) ApplyPaymentResult(ctx context.Context, cmd PaymentResultCommand) (Order, error) {
	if s.payments == nil {
		return Order{}, errors.New("order service: payment status mapper not configured")
	}
	gateway := strings.ToLower(strings.TrimSpace(cmd.Gateway))
	outcome, err := s.payments.MapStatus(gateway, cmd.RawStatus)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.PaymentMethod != domain.PaymentMethodOnline && order.PaymentMethod != domain.PaymentMethodExternalApp {
		return Order{}, fmt.Errorf("%w: order %s is not paid through a gateway", ErrOrderInvalidState, order.ID)
	}

	var target domain.OrderStatus
	switch outcome {
	case PaymentOutcomePending:
		return order, nil
	case PaymentOutcomePaid:
		target = domain.OrderStatusPaid
	case PaymentOutcomeFailed:
		target = domain.OrderStatusCancelled
	default:
		return Order{}, fmt.Errorf("%w: unknown payment outcome %q", ErrOrderInvalidInput, outcome)
	}
	if order.Status == target {
		return order, nil
	}
	if !domain.CanTransition(order.Status, target) || order.Status == domain.OrderStatusPaid {
		return Order{}, fmt.Errorf("%w: %s -> %s from gateway %s", ErrOrderInvalidState, order.Status, target, gateway)
	}

	now := s.clock()
	update := repositories.OrderStatusUpdate{
		OrderID:        order.ID,
		From:           order.Status,
		To:             target,
		UpdatedAt:      now,
		PaymentGateway: valuePtr(gateway),
		PaymentStatus:  valuePtr(string(outcome)),
	}
	if ref := strings.TrimSpace(cmd.Reference); ref != "" {
		update.PaymentReference = valuePtr(ref)
	}
	if target == domain.OrderStatusCancelled {
		setCancellation(&update, now, reasonPaymentFailed, domain.ActorSystem)
	}
	entry := domain.OrderLog{
		ID:              s.newID(),
		OrderID:         order.ID,
		Action:          domain.OrderLogStatusChanged,
		PerformedByType: domain.ActorSystem,
		Details: map[string]any{
			"from":       string(order.Status),
			"to":         string(target),
			"gateway":    gateway,
			"raw_status": strings.TrimSpace(cmd.RawStatus),
		},
		CreatedAt: now,
	}
	updated, err := s.commit(ctx, update, entry)
	if errors.Is(err, ErrOrderConflict) {
		if current, getErr := s.GetOrder(ctx, order.ID); getErr == nil && current.Status == target {
			return current, nil
		}
	}
	if err != nil {
		return Order{}, err
	}
	if target == domain.OrderStatusPaid {
		s.notify(ctx, updated, NotifyOrderPaid)
	} else {
		s.notify(ctx, updated, NotifyOrderCancelled)
	}
	return updated, nil
}

// FetchAmbassadorSalesData joins ambassador-sourced orders with seller names and recent logs.
func (s *orderService) FetchAmbassadorSalesData(ctx context.Context) (AmbassadorSalesData, error) {
	ambassadors, err := s.ambassadors.ListApproved(ctx, repositories.AmbassadorLocationFilter{})
	if err != nil {
		return AmbassadorSalesData{}, s.mapRepositoryError(err)
	}
	orders, err := s.orders.ListBySources(ctx, domain.AmbassadorSources)
	if err != nil {
		return AmbassadorSalesData{}, s.mapRepositoryError(err)
	}
	logs, err := s.logs.ListRecent(ctx, salesLogLimit)
	if err != nil {
		return AmbassadorSalesData{}, s.mapRepositoryError(err)
	}

	names := make(map[string]string, len(ambassadors))
	for i := range ambassadors {
		ambassadors[i].PasswordHash = ""
		names[ambassadors[i].ID] = ambassadors[i].FullName
	}
	sales := make([]AmbassadorSale, 0, len(orders))
	for _, order := range orders {
		name, ok := names[order.AmbassadorID]
		if !ok || strings.TrimSpace(name) == "" {
			name = unknownAmbassador
		}
		sales = append(sales, AmbassadorSale{Order: order, AmbassadorName: name})
	}
	if logs == nil {
		logs = []OrderLog{}
	}
	return AmbassadorSalesData{Ambassadors: ambassadors, Orders: sales, Logs: logs}, nil
}

// adminTransition runs one of the dedicated admin actions: the transition is checked against the
// status read, the update is conditional on that status, and exactly one log is appended.
func (s *orderService) adminTransition(
	ctx context.Context,
	cmd AdminOrderCommand,
	action domain.AdminAction,
	logAction domain.OrderLogAction,
	notification OrderNotification,
	apply func(update *repositories.OrderStatusUpdate, now time.Time),
) (Order, error) {
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	target, ok := domain.AdminTransition(action, order.Status)
	if !ok {
		return Order{}, fmt.Errorf("%w: cannot %s an order in status %s", ErrOrderInvalidState, action, order.Status)
	}

	now := s.clock()
	update := repositories.OrderStatusUpdate{
		OrderID:   order.ID,
		From:      order.Status,
		To:        target,
		UpdatedAt: now,
	}
	apply(&update, now)

	details := make(map[string]any, len(cmd.Metadata)+3)
	maps.Copy(details, cmd.Metadata)
	details["from"] = string(order.Status)
	details["to"] = string(target)
	if update.CancellationReason != nil {
		details["reason"] = *update.CancellationReason
	}
	entry := domain.OrderLog{
		ID:              s.newID(),
		OrderID:         order.ID,
		Action:          logAction,
		PerformedBy:     strings.TrimSpace(cmd.ActorID),
		PerformedByType: domain.ActorAdmin,
		Details:         details,
		CreatedAt:       now,
	}

	updated, err := s.commit(ctx, update, entry)
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "order.admin."+string(action), map[string]any{
		"orderId": updated.ID,
		"from":    string(order.Status),
		"to":      string(updated.Status),
		"actorId": entry.PerformedBy,
	})
	s.notify(ctx, updated, notification)
	return updated, nil
}

// commit applies the conditional update and its log entry atomically.
func (s *orderService) commit(ctx context.Context, update repositories.OrderStatusUpdate, entry domain.OrderLog) (Order, error) {
	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.orders.UpdateStatus(txCtx, update)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.logs.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

func (s *orderService) buildOrder(customer Customer, selections []PassSelection, total decimal.Decimal) Order {
	now := s.clock()
	order := Order{
		ID:         s.newID(),
		UserName:   customer.Name,
		UserPhone:  customer.Phone,
		UserEmail:  customer.Email,
		City:       customer.City,
		Ville:      customer.Ville,
		TotalPrice: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	breakdown := make([]map[string]any, 0, len(selections))
	order.Passes = make([]OrderPass, 0, len(selections))
	for _, sel := range selections {
		order.Quantity += sel.Quantity
		order.Passes = append(order.Passes, OrderPass{
			ID:       s.newID(),
			OrderID:  order.ID,
			PassID:   sel.PassID,
			PassType: sel.PassName,
			Quantity: sel.Quantity,
			Price:    sel.Price,
		})
		breakdown = append(breakdown, map[string]any{
			"passId":   sel.PassID,
			"passName": sel.PassName,
			"quantity": sel.Quantity,
			"price":    sel.Price.StringFixed(2),
		})
	}
	order.PassType = passTypeLabel(selections)
	order.Notes = map[string]any{"all_passes": breakdown}
	return order
}

// snapshotPrices replaces submitted prices and names with the catalogue values.
func (s *orderService) snapshotPrices(ctx context.Context, eventID string, selections []PassSelection) ([]PassSelection, decimal.Decimal, error) {
	ids := make([]string, 0, len(selections))
	for _, sel := range selections {
		ids = append(ids, strings.TrimSpace(sel.PassID))
	}
	passes, err := s.events.FindPasses(ctx, eventID, ids)
	if err != nil {
		if notFound(err) {
			return nil, decimal.Zero, fmt.Errorf("%w: event %s not found", ErrOrderInvalidInput, eventID)
		}
		return nil, decimal.Zero, s.mapRepositoryError(err)
	}
	byID := make(map[string]EventPass, len(passes))
	for _, pass := range passes {
		byID[pass.ID] = pass
	}

	total := decimal.Zero
	out := make([]PassSelection, 0, len(selections))
	for _, sel := range selections {
		pass, ok := byID[strings.TrimSpace(sel.PassID)]
		if !ok || !pass.Active {
			return nil, decimal.Zero, fmt.Errorf("%w: pass %q is not available for event %s", ErrOrderInvalidInput, sel.PassID, eventID)
		}
		snap := PassSelection{PassID: pass.ID, PassName: pass.Name, Quantity: sel.Quantity, Price: pass.Price}
		total = total.Add(snap.Price.Mul(decimal.NewFromInt(int64(snap.Quantity))))
		out = append(out, snap)
	}
	return out, total, nil
}

// eligibleAmbassador loads the ambassador and checks it may take cash orders at the location.
func (s *orderService) eligibleAmbassador(ctx context.Context, ambassadorID, city, ville string) (Ambassador, error) {
	ambassadorID = strings.TrimSpace(ambassadorID)
	if ambassadorID == "" {
		return Ambassador{}, fmt.Errorf("%w: ambassador id is required for cash payment", ErrOrderInvalidInput)
	}
	ambassador, err := s.ambassadors.FindByID(ctx, ambassadorID)
	if err != nil {
		if notFound(err) {
			return Ambassador{}, fmt.Errorf("%w: ambassador %s not found", ErrOrderInvalidInput, ambassadorID)
		}
		return Ambassador{}, s.mapRepositoryError(err)
	}
	if ambassador.Status != domain.AmbassadorApprovalApproved {
		return Ambassador{}, fmt.Errorf("%w: ambassador %s is not active", ErrOrderInvalidInput, ambassadorID)
	}
	if ambassador.City != city {
		return Ambassador{}, fmt.Errorf("%w: ambassador %s does not cover %s", ErrOrderInvalidInput, ambassadorID, city)
	}
	if city == codCity && ville == "" {
		return Ambassador{}, fmt.Errorf("%w: ville is required in %s", ErrOrderInvalidInput, codCity)
	}
	if ville != "" && ambassador.Ville != ville {
		return Ambassador{}, fmt.Errorf("%w: ambassador %s does not cover %s", ErrOrderInvalidInput, ambassadorID, ville)
	}
	return ambassador, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) || errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderConflict) || errors.Is(err, ErrOrderUnavailable) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

// notify runs after commit; delivery problems never fail the order operation.
func (s *orderService) notify(ctx context.Context, order Order, event OrderNotification) {
	if s.notifications == nil {
		return
	}
	s.notifications.NotifyOrder(ctx, order, event)
}

func setCancellation(update *repositories.OrderStatusUpdate, now time.Time, reason string, actor domain.ActorType) {
	update.CancelledAt = &now
	update.CancellationReason = valuePtr(reason)
	update.CancelledBy = valuePtr(actor)
}

func normaliseCustomer(c Customer) (Customer, error) {
	out := Customer{
		Name:  textutil.CollapseSpaces(c.Name),
		Phone: textutil.NormalizePhone(c.Phone),
		Email: strings.TrimSpace(c.Email),
		City:  textutil.CollapseSpaces(c.City),
		Ville: textutil.CollapseSpaces(c.Ville),
	}
	var missing []string
	if out.Name == "" {
		missing = append(missing, "name")
	}
	if out.Phone == "" {
		missing = append(missing, "phone")
	}
	if out.City == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return Customer{}, fmt.Errorf("%w: customer %s required", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return out, nil
}

func validateSelections(passes []PassSelection) error {
	if len(passes) == 0 {
		return fmt.Errorf("%w: at least one pass is required", ErrOrderInvalidInput)
	}
	for i, pass := range passes {
		if pass.Quantity <= 0 {
			return fmt.Errorf("%w: pass %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if pass.Price.IsNegative() {
			return fmt.Errorf("%w: pass %d price must not be negative", ErrOrderInvalidInput, i)
		}
		if strings.TrimSpace(pass.PassID) == "" && strings.TrimSpace(pass.PassName) == "" {
			return fmt.Errorf("%w: pass %d needs an id or a name", ErrOrderInvalidInput, i)
		}
	}
	return nil
}

// passTypeLabel is the sole pass name, or "mixed" when several pass types were selected.
func passTypeLabel(selections []PassSelection) string {
	names := make([]string, 0, len(selections))
	for _, sel := range selections {
		name := strings.TrimSpace(sel.PassName)
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if len(names) == 1 {
		return names[0]
	}
	return mixedPassType
}
