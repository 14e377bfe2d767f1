package checkout

import (
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	"github.com/crumbsandco/crumbs-backend/pkg/types"
)

// Input captures everything needed to turn a cart into an order.
type Input struct {
	SessionToken  uuid.UUID           `json:"session_token"`
	Customer      types.DeliveryInfo  `json:"customer"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PromoCode     *string             `json:"promo_code,omitempty"`
}

// CardPayment carries what the storefront needs to open the payment iframe.
type CardPayment struct {
	PaymentKey    string `json:"payment_key"`
	GatewayOrder  int64  `json:"gateway_order_id"`
	AmountCents   int    `json:"amount_cents"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Result is the committed order plus optional card payment instructions.
// The order exists even when payment setup failed; PaymentStatus records
// the failure and Payment carries the reason.
type Result struct {
	Order   *models.Order `json:"order"`
	Payment *CardPayment  `json:"payment,omitempty"`
}
