package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Product is a sellable catalog entry. A "single" is one cookie of a chosen
// flavor; a "box" bundles RequiredUnitCount cookies across flavor selections.
type Product struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string            `gorm:"column:name;not null"`
	Type              enums.ProductType `gorm:"column:type;type:product_type;not null;default:'single'"`
	Size              enums.CookieSize  `gorm:"column:size;type:cookie_size;not null"`
	PriceCents        int               `gorm:"column:price_cents;not null"`
	RequiredUnitCount int               `gorm:"column:required_unit_count;not null;default:1"`
	IsActive          bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
