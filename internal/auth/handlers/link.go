package handlers

import (
	"log"
	"net/http"
	"net/url"

	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/linker"
	"github.com/relaylab/mfa-relay/internal/logging"
)

// HandleLink processes the provider redirect for an explicit linking flow
// (flow B). The mailbox owner is the user_id baked into the redirect URL by
// the initiator (the original signed-in user), never the identity the
// exchange authenticates. No session is established here; the popup that
// hosts this flow is closed by the terminal pages.
func HandleLink(oauth *provider.Client, links *linker.Linker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := logging.GetRequestID(r.Context())
		if reqID == "" {
			reqID = logging.GenerateRequestID()
		}
		ctx := logging.WithRequestID(r.Context(), reqID)

		// Anything thrown past the flow logic still has to terminate in
		// a redirect, never a raw 500.
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[%s] ⚠️ Panic in link flow: %v", reqID, rec)
				redirectError(w, r, "/auth/oauth-error", ErrCodeException)
			}
		}()

		q := r.URL.Query()

		if errParam := q.Get("error"); errParam != "" {
			log.Printf("[%s] ⚠️ Provider returned error: %s (%s)", reqID, errParam, q.Get("error_description"))
			redirectError(w, r, "/auth/oauth-error", errParam)
			return
		}

		code := q.Get("code")
		userID := q.Get("user_id")
		projectID := q.Get("project_id")
		if code == "" || userID == "" || projectID == "" {
			log.Printf("[%s] ⚠️ Link callback missing parameters (code=%t user=%t project=%t)",
				reqID, code != "", userID != "", projectID != "")
			redirectError(w, r, "/auth/oauth-error", ErrCodeInvalidParams)
			return
		}

		if q.Get("state") != stateToken {
			log.Printf("[%s] ⚠️ Link callback with bad state token", reqID)
			redirectError(w, r, "/auth/oauth-error", ErrCodeInvalidParams)
			return
		}

		providerName := q.Get("provider")
		if providerName == "" {
			providerName = provider.Google
		}

		params := url.Values{}
		params.Set("user_id", userID)
		params.Set("project_id", projectID)
		params.Set("provider", providerName)

		sess, err := oauth.Exchange(ctx, providerName, callbackURL(r, "/auth/oauth-link", params), code)
		if err != nil {
			log.Printf("[%s] ⚠️ Exchange failed: %v", reqID, err)
			redirectError(w, r, "/auth/oauth-error", ErrCodeExchange)
			return
		}

		outcome, err := links.Link(ctx, projectID, userID, sess)
		if err != nil {
			log.Printf("[%s] ⚠️ Link failed: %v", reqID, err)
			redirectError(w, r, "/auth/oauth-error", ErrCodeDatabase)
			return
		}

		log.Printf("[%s] ✅ Mailbox %s linked to user %s: %s", reqID, sess.Email, userID, outcome)
		http.Redirect(w, r, "/auth/oauth-success", http.StatusTemporaryRedirect)
	}
}
