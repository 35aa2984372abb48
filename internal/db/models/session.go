package models

import "time"

// Session is the server side of the browser session cookie minted after a
// successful identity exchange.
type Session struct {
	Token        string `gorm:"primaryKey"` // UUID, opaque to the browser
	UserID       string `gorm:"index"`
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
