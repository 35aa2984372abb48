package models

import "time"

// User is a local identity row keyed by the provider identity that
// authenticated it. The OAuth subject is stable per provider; email is not.
type User struct {
	ID              string `gorm:"primaryKey"` // UUID
	Email           string
	OAuthProvider   string `gorm:"column:oauth_provider;uniqueIndex:idx_provider_subject"` // e.g. "google", "azure"
	ProviderSubject string `gorm:"uniqueIndex:idx_provider_subject"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
