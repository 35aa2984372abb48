// Package linker attaches an OAuth-authenticated mailbox to a relay user as
// an idempotent find-or-create.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
)

// Outcome reports what Link did.
type Outcome int

const (
	// Created means a new mailbox account row was inserted.
	Created Outcome = iota
	// AlreadyLinked means a row for this (project, owner, email, provider)
	// tuple already existed and nothing was written.
	AlreadyLinked
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "already linked"
}

// LinkError wraps a store failure during linking.
type LinkError struct {
	Err error
}

func (e *LinkError) Error() string { return fmt.Sprintf("link account: %v", e.Err) }
func (e *LinkError) Unwrap() error { return e.Err }

// Linker performs mailbox linking against the store.
type Linker struct {
	store db.Store
}

// New creates a Linker.
func New(store db.Store) *Linker {
	return &Linker{store: store}
}

// Link attaches the mailbox from sess to ownerUserID under projectID.
//
// ownerUserID is the relay owner, which in an explicit linking flow is the
// user who initiated it, not the identity the exchange authenticated.
// Replayed callbacks are absorbed twice over: an existing row short-circuits
// to AlreadyLinked without a write, and if two callbacks race past that
// check, the unique link-key index rejects the second insert, which is also
// reported as AlreadyLinked.
func (l *Linker) Link(ctx context.Context, projectID, ownerUserID string, sess *provider.Session) (Outcome, error) {
	_, err := l.store.MailboxAccountByLinkKey(ctx, projectID, ownerUserID, sess.Email, sess.Provider)
	if err == nil {
		log.Printf("📧 Mailbox %s already linked for user %s", sess.Email, ownerUserID)
		return AlreadyLinked, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, &LinkError{Err: err}
	}

	account := &models.MailboxAccount{
		ID:                   uuid.New().String(),
		ProjectID:            projectID,
		UserID:               ownerUserID,
		Name:                 sess.Email + " (OAuth)",
		EmailAddress:         sess.Email,
		Provider:             providerFor(sess.Provider),
		OAuthProvider:        sess.Provider,
		OAuthToken:           sess.AccessToken,
		OAuthRefreshToken:    sess.RefreshToken,
		UseSSL:               true,
		FolderName:           "INBOX",
		IsActive:             true,
		CheckIntervalSeconds: 30,
	}

	err = l.store.CreateMailboxAccount(ctx, account)
	switch {
	case err == nil:
		log.Printf("📧 Linked mailbox %s to user %s", sess.Email, ownerUserID)
		return Created, nil
	case errors.Is(err, db.ErrConflict):
		return AlreadyLinked, nil
	default:
		return 0, &LinkError{Err: err}
	}
}

// providerFor maps an OAuth provider name to a mailbox provider.
func providerFor(oauthProvider string) string {
	if oauthProvider == provider.Google {
		return models.ProviderGmail
	}
	return models.ProviderOutlook
}
