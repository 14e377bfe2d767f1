package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// PromoCode is a discount code applied at checkout. Value is a percentage
// (0-100) for percentage promos, cents for fixed ones.
type PromoCode struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code       string          `gorm:"column:code;not null;uniqueIndex"`
	Type       enums.PromoType `gorm:"column:type;type:promo_type;not null"`
	Value      int             `gorm:"column:value;not null"`
	MaxUses    *int            `gorm:"column:max_uses"`
	UsedCount  int             `gorm:"column:used_count;not null;default:0"`
	StartsAt   *time.Time      `gorm:"column:starts_at"`
	ExpiresAt  *time.Time      `gorm:"column:expires_at"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
