package cart

import (
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// FlavorSelectionInput is one flavor choice inside an item being added.
// The size always comes from the product; clients pick flavors only.
type FlavorSelectionInput struct {
	FlavorID uuid.UUID `json:"flavor_id"`
	Quantity int       `json:"quantity"`
}

// AddItemInput carries the data needed to add a line to a cart.
type AddItemInput struct {
	ProductID uuid.UUID              `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Flavors   []FlavorSelectionInput `json:"flavors"`
}

// FlavorLine is one flavor selection in the cart view.
type FlavorLine struct {
	FlavorID   uuid.UUID        `json:"flavor_id"`
	FlavorName string           `json:"flavor_name"`
	Size       enums.CookieSize `json:"size"`
	Quantity   int              `json:"quantity"`
}

// ItemView is one cart line priced against the live catalog.
type ItemView struct {
	ID             uuid.UUID         `json:"id"`
	ProductID      uuid.UUID         `json:"product_id"`
	ProductName    string            `json:"product_name"`
	ProductType    enums.ProductType `json:"product_type"`
	Size           enums.CookieSize  `json:"size"`
	UnitPriceCents int               `json:"unit_price_cents"`
	Quantity       int               `json:"quantity"`
	LineTotalCents int               `json:"line_total_cents"`
	Flavors        []FlavorLine      `json:"flavors"`
}

// View is the full cart as returned to the storefront. Prices reflect the
// catalog at read time; nothing here is frozen.
type View struct {
	SessionToken  uuid.UUID  `json:"session_token"`
	Items         []ItemView `json:"items"`
	SubtotalCents int        `json:"subtotal_cents"`
}
