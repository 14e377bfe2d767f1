package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Order is the immutable post-checkout record. Monetary totals and item
// snapshots are frozen at creation; only status, payment state and the
// back-office assignment fields may change afterwards.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TrackingCode  string              `gorm:"column:tracking_code;not null;uniqueIndex"`
	CartID        *uuid.UUID          `gorm:"column:cart_id;type:uuid"`
	CustomerName  string              `gorm:"column:customer_name;not null"`
	CustomerEmail string              `gorm:"column:customer_email;not null;index"`
	CustomerPhone string              `gorm:"column:customer_phone;not null"`
	Address       string              `gorm:"column:address;not null"`
	Notes         *string             `gorm:"column:notes"`
	OrderMode     enums.OrderMode     `gorm:"column:order_mode;type:order_mode;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Priority      enums.OrderPriority `gorm:"column:priority;type:order_priority;not null;default:'normal'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'cash'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentRef    *string             `gorm:"column:payment_ref"`

	SubtotalCents    int     `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int     `gorm:"column:delivery_fee_cents;not null;default:0"`
	DiscountCents    int     `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int     `gorm:"column:total_cents;not null"`
	PromoCode        *string `gorm:"column:promo_code"`

	DeliveryAgent *string    `gorm:"column:delivery_agent"`
	Kitchen       *string    `gorm:"column:kitchen"`
	DeliveredAt   *time.Time `gorm:"column:delivered_at"`
	CanceledAt    *time.Time `gorm:"column:canceled_at"`

	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}
