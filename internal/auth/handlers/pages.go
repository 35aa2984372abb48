package handlers

import (
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/relaylab/mfa-relay/internal/auth/linkctx"
)

const pageStyle = `body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		.success { color: #4ade80; }
		.error { color: #f87171; }
		.note { color: #9ca3af; margin-top: 20px; }
		a { color: #60a5fa; }`

// OAuthSuccessPage tells the popup the mailbox is connected and closes it
// after 2 seconds.
func OAuthSuccessPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Email Account Connected</title>
	<style>%s</style>
</head>
<body>
	<h1 class="success">✅ Email Account Connected!</h1>
	<p>Your email account has been successfully linked.</p>
	<p class="note">This window will close automatically...</p>
	<script>setTimeout(() => window.close(), 2000);</script>
</body>
</html>`, pageStyle)
	}
}

func errorMessage(code string) string {
	switch code {
	case ErrCodeDatabase:
		return "Failed to save email account. Please try again."
	case ErrCodeExchange:
		return "OAuth authentication failed. Please try again."
	case ErrCodeInvalidParams:
		return "Invalid OAuth parameters. Please try again."
	case ErrCodeException:
		return "An unexpected error occurred. Please try again."
	default:
		return "OAuth connection failed. Please try again."
	}
}

// OAuthErrorPage shows the linking failure for the popup and closes it
// after 5 seconds.
func OAuthErrorPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Connection Failed</title>
	<style>%s</style>
</head>
<body>
	<h1 class="error">❌ Connection Failed</h1>
	<p>%s</p>
	<p class="note">This window will close automatically...</p>
	<script>setTimeout(() => window.close(), 5000);</script>
</body>
</html>`, pageStyle, html.EscapeString(errorMessage(r.URL.Query().Get("error"))))
	}
}

// OAuthRestorePage consumes the advisory link context and narrates the
// linking outcome. The real outcome was already decided by the link
// callback; this page only picks a message and always forces navigation
// back to the dashboard so the user is never stranded.
func OAuthRestorePage(contextTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ctxErr := linkctx.Read(r, contextTTL)
		linkctx.Clear(w)

		var heading, class, message string
		delaySec := 3
		switch {
		case ctxErr == linkctx.ErrMissing:
			heading, class = "Linking Failed", "error"
			message = "No session context found. Please try again."
		case ctxErr == linkctx.ErrExpired:
			heading, class = "Linking Failed", "error"
			message = "Session context expired. Please try again."
		case r.URL.Query().Get("success") == "true":
			heading, class = "Account Linked Successfully!", "success"
			message = "OAuth account linked successfully! Redirecting to dashboard..."
			delaySec = 2
		case r.URL.Query().Get("error") != "":
			heading, class = "Linking Failed", "error"
			message = "Failed to link OAuth account. Please try again."
		default:
			heading, class = "Linking Failed", "error"
			message = "Unknown error occurred. Redirecting to dashboard..."
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta http-equiv="refresh" content="%d;url=/dashboard">
	<title>Linking OAuth Account</title>
	<style>%s</style>
</head>
<body>
	<h1 class="%s">%s</h1>
	<p>%s</p>
	<p class="note">Redirecting to dashboard...</p>
	<script>setTimeout(() => window.location.href = '/dashboard', %d);</script>
</body>
</html>`, delaySec, pageStyle, class, html.EscapeString(heading), html.EscapeString(message), delaySec*1000)
	}
}

// AuthCodeErrorPage is the terminal page for failed logins (flow A),
// offering retry and home links.
func AuthCodeErrorPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Sign-in Failed</title>
	<style>%s</style>
</head>
<body>
	<h1 class="error">❌ Sign-in Failed</h1>
	<p>%s</p>
	<p class="note"><a href="/auth/login">Try again</a> · <a href="/">Back to home</a></p>
</body>
</html>`, pageStyle, html.EscapeString(errorMessage(r.URL.Query().Get("error"))))
	}
}

