// Package linkctx holds the client-side link context: a short-lived cookie
// that lets the restore page narrate progress across the provider redirect
// round trip. It is advisory UI state only. The authoritative continuity
// for a linking flow travels in the redirect URL's query parameters, and
// nothing here is ever consulted for an authorization decision.
package linkctx

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// CookieName carries the serialized context, scoped to the auth pages.
const CookieName = "relay_link_ctx"

// DefaultTTL is how long a context stays valid after the linking flow
// started.
const DefaultTTL = 600 * time.Second

var (
	ErrMissing = errors.New("linkctx: no context")
	ErrExpired = errors.New("linkctx: context expired")
)

// Context remembers which user initiated a linking flow and when.
type Context struct {
	OriginalUserID string    `json:"original_user_id"`
	ProjectID      string    `json:"project_id"`
	StartedAt      time.Time `json:"started_at"`
}

// Write stores ctx as a cookie on w, stamped with the current time.
func Write(w http.ResponseWriter, ctx Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ctx.StartedAt.IsZero() {
		ctx.StartedAt = time.Now()
	}
	payload, _ := json.Marshal(ctx)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/auth",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read parses the context cookie on r. A context older than ttl returns
// ErrExpired; an absent or undecodable cookie returns ErrMissing.
func Read(r *http.Request, ttl time.Duration) (*Context, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrMissing
	}
	payload, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, ErrMissing
	}
	var ctx Context
	if err := json.Unmarshal(payload, &ctx); err != nil {
		return nil, ErrMissing
	}
	if time.Since(ctx.StartedAt) > ttl {
		return nil, ErrExpired
	}
	return &ctx, nil
}

// Clear deletes the context cookie. Called on every restore outcome so a
// stale context never survives a completed flow.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
