package handlers

import (
	"strconv"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/services"
)

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID                 string             `json:"id"`
	OrderNumber        string             `json:"order_number,omitempty"`
	Source             string             `json:"source"`
	Customer           customerPayload    `json:"customer"`
	AmbassadorID       string             `json:"ambassador_id,omitempty"`
	EventID            string             `json:"event_id,omitempty"`
	PassType           string             `json:"pass_type"`
	Quantity           int                `json:"quantity"`
	TotalPrice         string             `json:"total_price"`
	PaymentMethod      string             `json:"payment_method"`
	PaymentMethodLabel string             `json:"payment_method_label"`
	Status             string             `json:"status"`
	StatusLabel        string             `json:"status_label"`
	PaymentStatus      string             `json:"payment_status,omitempty"`
	PaymentGateway     string             `json:"payment_gateway,omitempty"`
	PaymentReference   string             `json:"payment_reference,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CancelledBy        string             `json:"cancelled_by,omitempty"`
	Passes             []orderPassPayload `json:"passes,omitempty"`
	AssignedAt         string             `json:"assigned_at,omitempty"`
	AcceptedAt         string             `json:"accepted_at,omitempty"`
	CompletedAt        string             `json:"completed_at,omitempty"`
	CancelledAt        string             `json:"cancelled_at,omitempty"`
	CreatedAt          string             `json:"created_at"`
	UpdatedAt          string             `json:"updated_at,omitempty"`
}

type customerPayload struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	City     string `json:"city"`
	Ville    string `json:"ville,omitempty"`
}

type orderPassPayload struct {
	PassID   string `json:"pass_id,omitempty"`
	PassType string `json:"pass_type"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type ambassadorPayload struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	City     string `json:"city"`
	Ville    string `json:"ville,omitempty"`
	Status   string `json:"status,omitempty"`
}

type orderLogPayload struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id"`
	Action          string         `json:"action"`
	PerformedBy     string         `json:"performed_by,omitempty"`
	PerformedByType string         `json:"performed_by_type"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

type ambassadorSalePayload struct {
	orderPayload
	AmbassadorName string `json:"ambassador_name"`
}

type salesResponse struct {
	Ambassadors []ambassadorPayload     `json:"ambassadors"`
	Orders      []ambassadorSalePayload `json:"orders"`
	Logs        []orderLogPayload       `json:"logs"`
}

func buildOrderPayload(order services.Order, lang string) orderPayload {
	payload := orderPayload{
		ID:     order.ID,
		Source: string(order.Source),
		Customer: customerPayload{
			FullName: order.UserName,
			Phone:    order.UserPhone,
			Email:    order.UserEmail,
			City:     order.City,
			Ville:    order.Ville,
		},
		AmbassadorID:       order.AmbassadorID,
		EventID:            order.EventID,
		PassType:           order.PassType,
		Quantity:           order.Quantity,
		TotalPrice:         order.TotalPrice.StringFixed(2),
		PaymentMethod:      string(order.PaymentMethod),
		PaymentMethodLabel: domain.PaymentMethodLabel(order.PaymentMethod, lang),
		Status:             string(order.Status),
		StatusLabel:        domain.OrderStatusLabel(order.Status, lang),
		PaymentStatus:      order.PaymentStatus,
		PaymentGateway:     order.PaymentGateway,
		PaymentReference:   order.PaymentReference,
		CancellationReason: order.CancellationReason,
		CancelledBy:        string(order.CancelledBy),
		AssignedAt:         formatTimePtr(order.AssignedAt),
		AcceptedAt:         formatTimePtr(order.AcceptedAt),
		CompletedAt:        formatTimePtr(order.CompletedAt),
		CancelledAt:        formatTimePtr(order.CancelledAt),
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
	}
	if order.OrderNumber != nil {
		payload.OrderNumber = strconv.FormatInt(*order.OrderNumber, 10)
	}
	for _, pass := range order.Passes {
		payload.Passes = append(payload.Passes, orderPassPayload{
			PassID:   pass.PassID,
			PassType: pass.PassType,
			Quantity: pass.Quantity,
			Price:    pass.Price.StringFixed(2),
		})
	}
	return payload
}

func buildOrderList(page domain.CursorPage[services.Order], lang string) orderListResponse {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order, lang))
	}
	return orderListResponse{Items: items, NextPageToken: page.NextPageToken}
}

func buildAmbassadorPayload(a services.Ambassador) ambassadorPayload {
	return ambassadorPayload{
		ID:       a.ID,
		FullName: a.FullName,
		Phone:    a.Phone,
		Email:    a.Email,
		City:     a.City,
		Ville:    a.Ville,
		Status:   string(a.Status),
	}
}

func buildSalesPayload(data services.AmbassadorSalesData, lang string) salesResponse {
	resp := salesResponse{
		Ambassadors: make([]ambassadorPayload, 0, len(data.Ambassadors)),
		Orders:      make([]ambassadorSalePayload, 0, len(data.Orders)),
		Logs:        make([]orderLogPayload, 0, len(data.Logs)),
	}
	for _, a := range data.Ambassadors {
		resp.Ambassadors = append(resp.Ambassadors, buildAmbassadorPayload(a))
	}
	for _, sale := range data.Orders {
		resp.Orders = append(resp.Orders, ambassadorSalePayload{
			orderPayload:   buildOrderPayload(sale.Order, lang),
			AmbassadorName: sale.AmbassadorName,
		})
	}
	for _, log := range data.Logs {
		resp.Logs = append(resp.Logs, orderLogPayload{
			ID:              log.ID,
			OrderID:         log.OrderID,
			Action:          string(log.Action),
			PerformedBy:     log.PerformedBy,
			PerformedByType: string(log.PerformedByType),
			Details:         log.Details,
			CreatedAt:       formatTime(log.CreatedAt),
		})
	}
	return resp
}
