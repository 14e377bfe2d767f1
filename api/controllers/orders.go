package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	ordersvc "github.com/crumbsandco/crumbs-backend/internal/orders"
	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

type orderItemFlavorResponse struct {
	FlavorID   *uuid.UUID       `json:"flavor_id,omitempty"`
	FlavorName string           `json:"flavor_name"`
	Size       enums.CookieSize `json:"size"`
	Quantity   int              `json:"quantity"`
}

type orderItemResponse struct {
	ID             uuid.UUID                 `json:"id"`
	ProductID      *uuid.UUID                `json:"product_id,omitempty"`
	Name           string                    `json:"name"`
	Type           enums.ProductType         `json:"type"`
	Size           enums.CookieSize          `json:"size"`
	UnitPriceCents int                       `json:"unit_price_cents"`
	Quantity       int                       `json:"quantity"`
	LineTotalCents int                       `json:"line_total_cents"`
	Flavors        []orderItemFlavorResponse `json:"flavors"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	TrackingCode  string              `json:"tracking_code"`
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email"`
	CustomerPhone string              `json:"customer_phone"`
	Address       string              `json:"address"`
	Notes         *string             `json:"notes,omitempty"`
	OrderMode     enums.OrderMode     `json:"order_mode"`
	Status        enums.OrderStatus   `json:"status"`
	Priority      enums.OrderPriority `json:"priority"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentRef    *string             `json:"payment_ref,omitempty"`

	SubtotalCents    int     `json:"subtotal_cents"`
	DeliveryFeeCents int     `json:"delivery_fee_cents"`
	DiscountCents    int     `json:"discount_cents"`
	TotalCents       int     `json:"total_cents"`
	PromoCode        *string `json:"promo_code,omitempty"`

	DeliveryAgent *string    `json:"delivery_agent,omitempty"`
	Kitchen       *string    `json:"kitchen,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty"`

	Items     []orderItemResponse `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		selections := make([]orderItemFlavorResponse, len(item.Flavors))
		for j, sel := range item.Flavors {
			selections[j] = orderItemFlavorResponse{
				FlavorID:   sel.FlavorID,
				FlavorName: sel.FlavorName,
				Size:       sel.Size,
				Quantity:   sel.Quantity,
			}
		}
		items[i] = orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Type:           item.Type,
			Size:           item.Size,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
			Flavors:        selections,
		}
	}
	return orderResponse{
		ID:               order.ID,
		TrackingCode:     order.TrackingCode,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		CustomerPhone:    order.CustomerPhone,
		Address:          order.Address,
		Notes:            order.Notes,
		OrderMode:        order.OrderMode,
		Status:           order.Status,
		Priority:         order.Priority,
		PaymentMethod:    order.PaymentMethod,
		PaymentStatus:    order.PaymentStatus,
		PaymentRef:       order.PaymentRef,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		DiscountCents:    order.DiscountCents,
		TotalCents:       order.TotalCents,
		PromoCode:        order.PromoCode,
		DeliveryAgent:    order.DeliveryAgent,
		Kitchen:          order.Kitchen,
		DeliveredAt:      order.DeliveredAt,
		CanceledAt:       order.CanceledAt,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

// OrderTrack looks up an order by tracking code plus the email it was
// placed with. Both must match; the response never reveals which one
// was wrong.
func OrderTrack(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if code == "" || email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code and email are required"))
			return
		}

		order, err := svc.Track(r.Context(), code, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
