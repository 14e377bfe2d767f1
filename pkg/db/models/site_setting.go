package models

import "time"

// SiteSetting is one key-value row of global shop configuration. Values are
// decoded per key by the settings service; nothing reads them as ambient
// global state.
type SiteSetting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
