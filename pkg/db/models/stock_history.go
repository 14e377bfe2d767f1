package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// StockHistory is the append-only ledger for stock counter changes. Rows
// are never updated or deleted; the sum of ChangeAmount per flavor/size
// must always equal the live counter on the flavor row.
type StockHistory struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FlavorID     uuid.UUID               `gorm:"column:flavor_id;type:uuid;not null;index:idx_stock_history_flavor_size"`
	Size         enums.CookieSize        `gorm:"column:size;type:cookie_size;not null;index:idx_stock_history_flavor_size"`
	ChangeAmount int                     `gorm:"column:change_amount;not null"`
	Reason       enums.StockChangeReason `gorm:"column:reason;not null"`
	OrderID      *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	ChangedAt    time.Time               `gorm:"column:changed_at;autoCreateTime"`
}

// TableName keeps the ledger's historical table name.
func (StockHistory) TableName() string {
	return "stock_history"
}
