package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/relaylab/mfa-relay/internal/auth/linkctx"
	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/project"
)

// HandleLogin initiates a plain login (flow A): it redirects the browser to
// the provider consent page, with the eventual callback carrying `next` and
// the provider name back to /auth/callback.
func HandleLogin(oauth *provider.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := r.URL.Query().Get("provider")
		if providerName == "" {
			providerName = provider.Google
		}
		if !oauth.Known(providerName) {
			redirectError(w, r, "/auth/auth-code-error", ErrCodeInvalidParams)
			return
		}
		next := safeNext(r.URL.Query().Get("next"))

		params := url.Values{}
		params.Set("next", next)
		params.Set("from", providerName)

		consentURL, err := oauth.AuthCodeURL(providerName, callbackURL(r, "/auth/callback", params), stateToken)
		if err != nil {
			redirectError(w, r, "/auth/auth-code-error", ErrCodeInvalidParams)
			return
		}
		http.Redirect(w, r, consentURL, http.StatusTemporaryRedirect)
	}
}

// HandleConnect initiates an explicit linking flow (flow B) for the
// signed-in user. It resolves the project id up front, bakes the original
// user id and project id into the callback URL as the authoritative
// continuity, writes the advisory link-context cookie, and redirects to the
// provider.
func HandleConnect(oauth *provider.Client, sessions *session.Manager, projects *project.Resolver, contextTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := sessions.UserFromRequest(r)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				http.Redirect(w, r, "/auth/login", http.StatusTemporaryRedirect)
				return
			}
			redirectError(w, r, "/auth/oauth-error", ErrCodeDatabase)
			return
		}

		providerName := r.URL.Query().Get("provider")
		if providerName == "" {
			providerName = provider.Google
		}
		if !oauth.Known(providerName) {
			redirectError(w, r, "/auth/oauth-error", ErrCodeInvalidParams)
			return
		}

		projectID, err := projects.Resolve(r.Context())
		if err != nil {
			log.Printf("⚠️ Connect aborted, project unresolved: %v", err)
			redirectError(w, r, "/auth/oauth-error", ErrCodeDatabase)
			return
		}

		params := url.Values{}
		params.Set("user_id", user.ID)
		params.Set("project_id", projectID)
		params.Set("provider", providerName)

		consentURL, err := oauth.AuthCodeURL(providerName, callbackURL(r, "/auth/oauth-link", params), stateToken)
		if err != nil {
			redirectError(w, r, "/auth/oauth-error", ErrCodeInvalidParams)
			return
		}

		linkctx.Write(w, linkctx.Context{
			OriginalUserID: user.ID,
			ProjectID:      projectID,
		}, contextTTL)

		log.Printf("🔗 Linking flow started for user %s via %s", user.ID, providerName)
		http.Redirect(w, r, consentURL, http.StatusTemporaryRedirect)
	}
}

// HandleLogout revokes the session and clears its cookie.
func HandleLogout(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(session.CookieName); err == nil {
			sessions.Revoke(r.Context(), cookie.Value)
		}
		session.ClearCookie(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
