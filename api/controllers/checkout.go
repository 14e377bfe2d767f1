package controllers

import (
	"net/http"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/api/validators"
	checkoutsvc "github.com/crumbsandco/crumbs-backend/internal/checkout"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	pkgerrors "github.com/crumbsandco/crumbs-backend/pkg/errors"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/types"
)

type checkoutRequest struct {
	Customer      checkoutCustomerPayload `json:"customer" validate:"required"`
	PaymentMethod string                  `json:"payment_method" validate:"required"`
	PromoCode     *string                 `json:"promo_code,omitempty"`
}

type checkoutCustomerPayload struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required"`
	Address string  `json:"address" validate:"required"`
	Notes   *string `json:"notes,omitempty"`
}

type checkoutResponse struct {
	Order   orderResponse            `json:"order"`
	Payment *checkoutsvc.CardPayment `json:"payment,omitempty"`
}

// Checkout converts the caller's cart into an order. This is where stock
// is validated and reserved; the cart itself never checks stock.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := sessionTokenFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.Finalize(r.Context(), checkoutsvc.Input{
			SessionToken: token,
			Customer: types.DeliveryInfo{
				Name:    payload.Customer.Name,
				Email:   payload.Customer.Email,
				Phone:   payload.Customer.Phone,
				Address: payload.Customer.Address,
				Notes:   payload.Customer.Notes,
			},
			PaymentMethod: method,
			PromoCode:     payload.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:   newOrderResponse(result.Order),
			Payment: result.Payment,
		})
	}
}
