package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Flavor is a cookie variety sold in three size tiers, each with its own
// stock counter. Counters are mutated only through the stock package so that
// every change lands in the stock_history ledger.
type Flavor struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string         `gorm:"column:name;not null;uniqueIndex"`
	Description *string        `gorm:"column:description"`
	Images      pq.StringArray `gorm:"column:images;type:text[]"`
	StockMini   int            `gorm:"column:stock_mini;not null;default:0"`
	StockMedium int            `gorm:"column:stock_medium;not null;default:0"`
	StockLarge  int            `gorm:"column:stock_large;not null;default:0"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// StockFor returns the counter for the given size tier.
func (f Flavor) StockFor(size enums.CookieSize) int {
	switch size {
	case enums.CookieSizeMini:
		return f.StockMini
	case enums.CookieSizeMedium:
		return f.StockMedium
	case enums.CookieSizeLarge:
		return f.StockLarge
	}
	return 0
}

// StockColumn maps a size tier to its counter column name.
func StockColumn(size enums.CookieSize) string {
	switch size {
	case enums.CookieSizeMini:
		return "stock_mini"
	case enums.CookieSizeMedium:
		return "stock_medium"
	case enums.CookieSizeLarge:
		return "stock_large"
	}
	return ""
}
