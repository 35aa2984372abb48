package handlers

import (
	"log"
	"net/http"
	"net/url"

	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/linker"
	"github.com/relaylab/mfa-relay/internal/logging"
	"github.com/relaylab/mfa-relay/internal/project"
)

// HandleCallback processes the provider redirect for a plain login
// (flow A). Every successful login is also treated as "connect this
// mailbox": after the session is established, the mailbox from the exchange
// is linked to the session's own user opportunistically, and a linking
// failure never fails the login itself.
func HandleCallback(oauth *provider.Client, sessions *session.Manager, projects *project.Resolver, links *linker.Linker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reqID := logging.GetRequestID(r.Context())
		if reqID == "" {
			reqID = logging.GenerateRequestID()
		}
		ctx := logging.WithRequestID(r.Context(), reqID)

		// Anything thrown past the flow logic still has to terminate in
		// a redirect, never a raw 500.
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[%s] ⚠️ Panic in callback flow: %v", reqID, rec)
				redirectError(w, r, "/auth/auth-code-error", ErrCodeException)
			}
		}()

		if errParam := q.Get("error"); errParam != "" {
			log.Printf("[%s] ⚠️ Provider returned error: %s (%s)", reqID, errParam, q.Get("error_description"))
			redirectError(w, r, "/auth/auth-code-error", errParam)
			return
		}

		code := q.Get("code")
		if code == "" {
			log.Printf("[%s] ⚠️ Callback without code", reqID)
			redirectError(w, r, "/auth/auth-code-error", "")
			return
		}

		if q.Get("state") != stateToken {
			log.Printf("[%s] ⚠️ Callback with bad state token", reqID)
			redirectError(w, r, "/auth/auth-code-error", ErrCodeInvalidParams)
			return
		}

		providerName := q.Get("from")
		if providerName == "" {
			providerName = provider.Google
		}
		next := safeNext(q.Get("next"))

		// The exchange redirect URL must match what the login initiator
		// registered with the provider, parameters included.
		params := url.Values{}
		params.Set("next", next)
		params.Set("from", providerName)

		sess, err := oauth.Exchange(ctx, providerName, callbackURL(r, "/auth/callback", params), code)
		if err != nil {
			log.Printf("[%s] ⚠️ Exchange failed: %v", reqID, err)
			redirectError(w, r, "/auth/auth-code-error", ErrCodeExchange)
			return
		}

		user, record, err := sessions.Establish(ctx, sess)
		if err != nil {
			log.Printf("[%s] ⚠️ Session establish failed: %v", reqID, err)
			redirectError(w, r, "/auth/auth-code-error", ErrCodeDatabase)
			return
		}
		session.SetCookie(w, record)

		// Opportunistic self-link. An unresolved project or a linker
		// failure is logged and swallowed; the login already succeeded.
		if projectID, err := projects.Resolve(ctx); err != nil {
			log.Printf("[%s] ⚠️ Self-link skipped, project unresolved: %v", reqID, err)
		} else if outcome, err := links.Link(ctx, projectID, user.ID, sess); err != nil {
			log.Printf("[%s] ⚠️ Self-link failed: %v", reqID, err)
		} else {
			log.Printf("[%s] ✅ Self-link for %s: %s", reqID, user.Email, outcome)
		}

		http.Redirect(w, r, next, http.StatusTemporaryRedirect)
	}
}
