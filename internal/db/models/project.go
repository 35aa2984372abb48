package models

import "time"

// Project is the single logical tenant scoping every other row. Exactly one
// row exists per deployment; it is created lazily on first resolution and
// never deleted.
type Project struct {
	ID        string `gorm:"primaryKey"` // UUID
	Slug      string `gorm:"uniqueIndex"`
	Name      string
	Settings  string // JSON blob (limits, feature flags)
	CreatedAt time.Time
	UpdatedAt time.Time
}
