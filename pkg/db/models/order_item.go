package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// OrderItem freezes the product name, type, size and unit price at order
// time, deliberately decoupled from live catalog rows so historical orders
// stay stable when the catalog changes.
type OrderItem struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID        `gorm:"column:product_id;type:uuid"`
	Name           string            `gorm:"column:name;not null"`
	Type           enums.ProductType `gorm:"column:type;type:product_type;not null"`
	Size           enums.CookieSize  `gorm:"column:size;type:cookie_size;not null"`
	UnitPriceCents int               `gorm:"column:unit_price_cents;not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	LineTotalCents int               `gorm:"column:line_total_cents;not null"`
	Flavors        []OrderItemFlavor `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
