package handlers

import (
	"net/http"

	"github.com/relaylab/mfa-relay/internal/version"
)

// HealthHandler reports liveness and build info.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": version.Version,
			"commit":  version.Commit,
		})
	}
}
