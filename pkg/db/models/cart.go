package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Cart is the session-scoped pre-checkout selection. The opaque session
// token is the only external handle; no authentication is required to own
// a cart.
type Cart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionToken uuid.UUID        `gorm:"column:session_token;type:uuid;not null;uniqueIndex"`
	Status       enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	ConvertedAt  *time.Time       `gorm:"column:converted_at"`
	Items        []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
