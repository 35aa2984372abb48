package models

import "time"

// Mailbox providers. OAuth-linked accounts map google to gmail and every
// other OAuth provider to outlook; imap is manual-entry only.
const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
	ProviderIMAP    = "imap"
)

// MailboxAccount describes one connected inbox and how to reach it. The
// composite unique index makes the insert itself the arbiter when two
// callbacks race to link the same identity: the loser gets a uniqueness
// violation, which the linker reports as "already linked".
//
// UserID is the relay owner of the mailbox, which is not necessarily the
// identity that completed the OAuth handshake.
type MailboxAccount struct {
	ID                   string `gorm:"primaryKey"` // UUID
	ProjectID            string `gorm:"uniqueIndex:idx_link_key"`
	UserID               string `gorm:"uniqueIndex:idx_link_key"`
	Name                 string
	EmailAddress         string `gorm:"uniqueIndex:idx_link_key"`
	Provider             string // gmail | outlook | imap
	OAuthProvider        string `gorm:"column:oauth_provider;uniqueIndex:idx_link_key"` // empty for manual accounts
	OAuthToken           string `gorm:"column:oauth_token"`         // opaque secret, encryption is the store's concern
	OAuthRefreshToken    string `gorm:"column:oauth_refresh_token"` // opaque secret
	AppPassword          string // opaque secret, manual accounts only
	IMAPHost             string
	IMAPPort             int
	UseSSL               bool
	FolderName           string
	IsActive             bool `gorm:"default:true"`
	CheckIntervalSeconds int
	LastCheckedAt        *time.Time
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
