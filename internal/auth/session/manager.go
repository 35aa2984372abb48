// Package session manages server-side browser sessions minted after a
// successful identity exchange, and their cookie representation.
package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
)

// CookieName carries the opaque session token to the browser.
const CookieName = "relay_session"

const sessionTTL = 24 * time.Hour

// ErrNoSession means the request carried no usable session.
var ErrNoSession = errors.New("session: not authenticated")

// Manager persists sessions and keeps a small in-memory cache so the common
// cookie lookup stays off the database.
type Manager struct {
	store db.Store
	cache map[string]*models.Session
	mu    sync.RWMutex
}

// NewManager creates a session manager over the store.
func NewManager(store db.Store) *Manager {
	return &Manager{
		store: store,
		cache: make(map[string]*models.Session),
	}
}

// Establish finds or creates the local user for the provider identity and
// mints a session for it. The uniqueness constraint on (provider, subject)
// arbitrates concurrent first logins: a conflict means another callback won
// the insert, so the row is re-read.
func (m *Manager) Establish(ctx context.Context, sess *provider.Session) (*models.User, *models.Session, error) {
	user, err := m.store.UserByProviderSubject(ctx, sess.Provider, sess.Subject)
	if errors.Is(err, db.ErrNotFound) {
		user = &models.User{
			ID:              uuid.New().String(),
			Email:           sess.Email,
			OAuthProvider:   sess.Provider,
			ProviderSubject: sess.Subject,
		}
		err = m.store.CreateUser(ctx, user)
		if errors.Is(err, db.ErrConflict) {
			user, err = m.store.UserByProviderSubject(ctx, sess.Provider, sess.Subject)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	record := &models.Session{
		Token:        uuid.New().String(),
		UserID:       user.ID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	if err := m.store.CreateSession(ctx, record); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.cache[record.Token] = record
	m.mu.Unlock()

	log.Printf("🔐 Session established for %s (%s)", user.Email, user.OAuthProvider)
	return user, record, nil
}

// Lookup resolves a session token to its user, rejecting expired sessions.
func (m *Manager) Lookup(ctx context.Context, token string) (*models.User, error) {
	m.mu.RLock()
	record, ok := m.cache[token]
	m.mu.RUnlock()

	if !ok {
		var err error
		record, err = m.store.SessionByToken(ctx, token)
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoSession
		}
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[token] = record
		m.mu.Unlock()
	}

	if record.ExpiresAt.Before(time.Now()) {
		m.Revoke(ctx, token)
		return nil, ErrNoSession
	}

	user, err := m.userByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserFromRequest resolves the session cookie on r, if any.
func (m *Manager) UserFromRequest(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.Lookup(r.Context(), cookie.Value)
}

// Revoke deletes a session from cache and store. A missing row is not an
// error; logout is idempotent.
func (m *Manager) Revoke(ctx context.Context, token string) {
	m.mu.Lock()
	delete(m.cache, token)
	m.mu.Unlock()

	if err := m.store.DeleteSession(ctx, token); err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Printf("⚠️ Failed to delete session: %v", err)
	}
}

func (m *Manager) userByID(ctx context.Context, id string) (*models.User, error) {
	// Sessions outlive the cache; the user row is small enough to read
	// each time.
	return m.store.UserByID(ctx, id)
}

// SetCookie writes the session cookie for record on w.
func SetCookie(w http.ResponseWriter, record *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    record.Token,
		Path:     "/",
		MaxAge:   int(time.Until(record.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on w.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
