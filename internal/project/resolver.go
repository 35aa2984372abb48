// Package project resolves the id of the single tenant row every other
// record is scoped to.
package project

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaylab/mfa-relay/internal/config"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
)

// ErrUnresolved means no project id could be determined. Callers must treat
// this as "cannot proceed", never as "use a default".
var ErrUnresolved = errors.New("project: unresolved")

const defaultSettings = `{"max_email_accounts":5,"max_sms_per_month":1000}`

// Resolver finds (or lazily creates) the project row and memoizes its id.
// The cache is an explicit field, not a package global, so tests run with
// isolated state; Reset clears it.
//
// The memoized value never goes stale: a project id cannot change once the
// row exists, so concurrent resolutions racing to fill the cache are
// harmless and the store's uniqueness constraint on slug arbitrates who
// creates the row.
type Resolver struct {
	store        db.Store
	slug         string
	fallbackID   string
	timeout      time.Duration
	retryTimeout time.Duration

	mu     sync.Mutex
	cached string
}

// NewResolver builds a resolver from the project configuration.
func NewResolver(store db.Store, cfg config.ProjectConfig) *Resolver {
	return &Resolver{
		store:        store,
		slug:         cfg.Slug,
		fallbackID:   cfg.FallbackID,
		timeout:      cfg.ResolveTimeout,
		retryTimeout: cfg.ConflictRetryTimeout,
	}
}

// Resolve returns the project id, consulting the cache first.
//
// Store access may legitimately be denied to the calling identity; because
// this system operates a single tenant, a denied read or insert falls back
// to the configured fixed id rather than failing the whole flow. Every
// other failure is ErrUnresolved.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached, nil
	}

	readCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.store.ProjectBySlug(readCtx, r.slug)
	switch {
	case err == nil:
		r.cached = p.ID
		return p.ID, nil
	case errors.Is(err, db.ErrAccessDenied):
		return r.fallback(err)
	case errors.Is(err, db.ErrNotFound):
		// fall through to create
	default:
		log.Printf("⚠️ Project read failed: %v", err)
		return "", ErrUnresolved
	}

	created := &models.Project{
		ID:       uuid.New().String(),
		Slug:     r.slug,
		Name:     "MFA Relay",
		Settings: defaultSettings,
	}

	insertCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = r.store.CreateProject(insertCtx, created)
	switch {
	case err == nil:
		log.Printf("📁 Created project %s (%s)", r.slug, created.ID)
		r.cached = created.ID
		return created.ID, nil
	case errors.Is(err, db.ErrAccessDenied):
		return r.fallback(err)
	case errors.Is(err, db.ErrConflict):
		// Another caller created the row first; re-read with a short
		// secondary timeout.
		retryCtx, cancel := context.WithTimeout(ctx, r.retryTimeout)
		defer cancel()
		p, rerr := r.store.ProjectBySlug(retryCtx, r.slug)
		if rerr != nil {
			log.Printf("⚠️ Project re-read after conflict failed: %v", rerr)
			return "", ErrUnresolved
		}
		r.cached = p.ID
		return p.ID, nil
	default:
		log.Printf("⚠️ Project create failed: %v", err)
		return "", ErrUnresolved
	}
}

func (r *Resolver) fallback(cause error) (string, error) {
	if r.fallbackID == "" {
		log.Printf("⚠️ Project access denied and no fallback id configured: %v", cause)
		return "", ErrUnresolved
	}
	log.Printf("📁 Project access denied, using fallback id %s", r.fallbackID)
	r.cached = r.fallbackID
	return r.fallbackID, nil
}

// Reset clears the memoized id.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cached = ""
	r.mu.Unlock()
}
