// Package handlers implements the auth endpoints: flow initiators, the
// OAuth callback state machine, and the terminal pages.
//
// Each callback is one-shot: the handlers keep no state across requests,
// and continuity across the provider round trip travels entirely in the
// query parameters baked into the redirect URL. The link-context cookie is
// UI narration only.
package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
)

// Machine-readable error codes carried on the terminal redirects.
const (
	ErrCodeDatabase      = "database_error"
	ErrCodeExchange      = "exchange_failed"
	ErrCodeInvalidParams = "invalid_params"
	ErrCodeException     = "exception"
)

// stateToken protects the callbacks against CSRF. One token per process,
// like the reference deployment; a restart invalidates in-flight consents.
var stateToken string

func init() {
	b := make([]byte, 16)
	rand.Read(b)
	stateToken = hex.EncodeToString(b)
}

// StateToken returns the CSRF state token for validation.
func StateToken() string {
	return stateToken
}

// baseURL reconstructs the externally visible scheme://host for this
// request, honoring the forwarding proxy header.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// callbackURL builds the absolute callback URL for path with the query
// parameters that must survive the provider round trip.
func callbackURL(r *http.Request, path string, params url.Values) string {
	u := baseURL(r) + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// redirectError terminates a flow on its error page. code may be empty for
// the generic message.
func redirectError(w http.ResponseWriter, r *http.Request, page, code string) {
	target := page
	if code != "" {
		target += "?error=" + url.QueryEscape(code)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// safeNext keeps redirect targets on this site. A second leading slash (or
// backslash) would make the target scheme-relative, which browsers treat as
// offsite, so those fall back too.
func safeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/dashboard"
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/dashboard"
	}
	return next
}
