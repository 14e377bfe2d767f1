package models

import (
	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// OrderItemFlavor snapshots a flavor selection inside an order item,
// including the flavor name as of order time.
type OrderItemFlavor struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderItemID uuid.UUID        `gorm:"column:order_item_id;type:uuid;not null;index"`
	FlavorID    *uuid.UUID       `gorm:"column:flavor_id;type:uuid"`
	FlavorName  string           `gorm:"column:flavor_name;not null"`
	Size        enums.CookieSize `gorm:"column:size;type:cookie_size;not null"`
	Quantity    int              `gorm:"column:quantity;not null"`
}
