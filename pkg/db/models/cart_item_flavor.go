package models

import (
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// CartItemFlavor is one flavor selection inside a cart item.
type CartItemFlavor struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartItemID uuid.UUID        `gorm:"column:cart_item_id;type:uuid;not null;index"`
	FlavorID   uuid.UUID        `gorm:"column:flavor_id;type:uuid;not null"`
	Size       enums.CookieSize `gorm:"column:size;type:cookie_size;not null"`
	Quantity   int              `gorm:"column:quantity;not null"`
}
