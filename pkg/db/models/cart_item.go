package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line in a cart. For box products the flavor breakdown
// lives in Flavors and must sum to the product's required unit count.
// Prices are not stored here; they are read from the live catalog until
// order finalization freezes them.
type CartItem struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID        `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int              `gorm:"column:quantity;not null"`
	Flavors   []CartItemFlavor `gorm:"foreignKey:CartItemID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
