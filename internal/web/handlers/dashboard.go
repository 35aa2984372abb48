package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
	"github.com/relaylab/mfa-relay/internal/project"
)

// DashboardHandler renders the signed-in user's mailbox accounts. Visitors
// without a session are sent to the login flow.
func DashboardHandler(store db.Store, sessions *session.Manager, projects *project.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := sessions.UserFromRequest(r)
		if err != nil {
			http.Redirect(w, r, "/auth/login?next=%2Fdashboard", http.StatusTemporaryRedirect)
			return
		}

		var accounts []models.MailboxAccount
		if projectID, perr := projects.Resolve(r.Context()); perr == nil {
			accounts, _ = store.MailboxAccountsByUser(r.Context(), projectID, user.ID)
		}

		rows := ""
		for _, acc := range accounts {
			status := "🟢 active"
			if !acc.IsActive {
				status = "⚪ inactive"
			}
			rows += fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(acc.Name),
				html.EscapeString(acc.EmailAddress),
				html.EscapeString(acc.Provider),
				status)
		}
		if rows == "" {
			rows = `<tr><td colspan="4">No email accounts yet. Connect one to start forwarding MFA codes.</td></tr>`
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>MFA Relay</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		table { width: 100%%; border-collapse: collapse; margin-top: 20px; }
		th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #374151; }
		a { color: #60a5fa; }
		.actions { margin-top: 20px; }
	</style>
</head>
<body>
	<h1>📬 MFA Relay</h1>
	<p>Signed in as <strong>%s</strong> · <a href="#" onclick="document.getElementById('logout').submit()">Sign out</a></p>
	<form id="logout" method="POST" action="/auth/logout"></form>
	<table>
		<tr><th>Name</th><th>Email</th><th>Provider</th><th>Status</th></tr>
		%s
	</table>
	<p class="actions">
		<a href="/auth/connect?provider=google">Connect Google mailbox</a> ·
		<a href="/auth/connect?provider=azure">Connect Outlook mailbox</a>
	</p>
</body>
</html>`, html.EscapeString(user.Email), rows)
	}
}
