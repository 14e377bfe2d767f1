package controllers

import (
	"net/http"

	"github.com/crumbsandco/crumbs-backend/api/responses"
	"github.com/crumbsandco/crumbs-backend/api/validators"
	promosvc "github.com/crumbsandco/crumbs-backend/internal/promos"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
)

type promoValidateRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int    `json:"subtotal_cents" validate:"required,min=1"`
}

type promoQuoteResponse struct {
	Code          string `json:"code"`
	DiscountCents int    `json:"discount_cents"`
}

// PromoValidate quotes a promo code against a subtotal without redeeming
// it. Redemption happens inside checkout.
func PromoValidate(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload promoValidateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), payload.Code, payload.SubtotalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promoQuoteResponse{
			Code:          quote.Promo.Code,
			DiscountCents: quote.DiscountCents,
		})
	}
}
