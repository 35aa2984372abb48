package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/relaylab/mfa-relay/internal/auth/linkctx"
	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/config"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
	"github.com/relaylab/mfa-relay/internal/linker"
	"github.com/relaylab/mfa-relay/internal/logging"
	"github.com/relaylab/mfa-relay/internal/project"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type env struct {
	store    db.Store
	oauth    *provider.Client
	sessions *session.Manager
	projects *project.Resolver
	links    *linker.Linker
}

// newEnv wires the full flow over in-memory sqlite and a fake provider
// that issues tokens for the given identity.
func newEnv(t *testing.T, subject, email string) *env {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Project{}, &models.User{}, &models.Session{}, &models.MailboxAccount{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store := db.NewStore(gdb)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-123","refresh_token":"rt-456","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"email":%q}`, subject, email)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	oauth := provider.NewClientWithEndpoints(map[string]provider.Endpoint{
		provider.Google: {
			Config: &oauth2.Config{
				ClientID:     "cid",
				ClientSecret: "secret",
				Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
			},
			UserInfoURL: srv.URL + "/userinfo",
		},
	})

	projects := project.NewResolver(store, config.ProjectConfig{
		Slug:                 "mfa-relay",
		FallbackID:           "550e8400-e29b-41d4-a716-446655440000",
		ResolveTimeout:       2 * time.Second,
		ConflictRetryTimeout: time.Second,
	})

	return &env{
		store:    store,
		oauth:    oauth,
		sessions: session.NewManager(store),
		projects: projects,
		links:    linker.New(store),
	}
}

func (e *env) callbackHandler() http.HandlerFunc {
	return HandleCallback(e.oauth, e.sessions, e.projects, e.links)
}

func (e *env) linkHandler() http.HandlerFunc {
	return HandleLink(e.oauth, e.links)
}

func doGet(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, wantPrefix string) *url.URL {
	t.Helper()
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if !strings.HasPrefix(loc.Path, wantPrefix) {
		t.Fatalf("redirect to %q, want prefix %q", loc, wantPrefix)
	}
	return loc
}

func TestCallback_MissingCodeRoutesToErrorPage(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, e.callbackHandler(), "/auth/callback")

	loc := wantRedirect(t, rec, "/auth/auth-code-error")
	if loc.Query().Get("error") != "" {
		t.Errorf("missing-code redirect carries error=%q, want none", loc.Query().Get("error"))
	}
}

func TestCallback_ProviderErrorRoutesToErrorPage(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, e.callbackHandler(), "/auth/callback?error=access_denied&error_description=denied")

	loc := wantRedirect(t, rec, "/auth/auth-code-error")
	if loc.Query().Get("error") != "access_denied" {
		t.Errorf("error code = %q, want access_denied", loc.Query().Get("error"))
	}
}

func TestCallback_BadStateNeverExchanges(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, e.callbackHandler(), "/auth/callback?code=abc123&state=wrong")

	loc := wantRedirect(t, rec, "/auth/auth-code-error")
	if loc.Query().Get("error") != ErrCodeInvalidParams {
		t.Errorf("error code = %q, want %s", loc.Query().Get("error"), ErrCodeInvalidParams)
	}
}

func TestCallback_FirstLoginLinksMailboxAndSetsCookie(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	target := "/auth/callback?code=abc123&state=" + StateToken() + "&from=google"

	rec := doGet(t, e.callbackHandler(), target)
	loc := wantRedirect(t, rec, "/dashboard")
	if loc.Path != "/dashboard" {
		t.Errorf("redirect = %q, want /dashboard", loc.Path)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("no session cookie set on success redirect")
	}

	user, err := e.sessions.Lookup(context.Background(), sessionCookie.Value)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}

	projectID, err := e.projects.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	acc, err := e.store.MailboxAccountByLinkKey(context.Background(), projectID, user.ID, "a@x.com", "google")
	if err != nil {
		t.Fatalf("self-linked account lookup: %v", err)
	}
	if acc.Provider != models.ProviderGmail {
		t.Errorf("provider = %q, want gmail", acc.Provider)
	}
}

func TestCallback_ReplayedCallbackCreatesNoSecondRow(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	target := "/auth/callback?code=abc123&state=" + StateToken() + "&from=google"

	wantRedirect(t, doGet(t, e.callbackHandler(), target), "/dashboard")
	wantRedirect(t, doGet(t, e.callbackHandler(), target), "/dashboard")

	projectID, err := e.projects.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	user, err := e.store.UserByProviderSubject(context.Background(), "google", "sub-1")
	if err != nil {
		t.Fatalf("user lookup: %v", err)
	}
	accounts, err := e.store.MailboxAccountsByUser(context.Background(), projectID, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("row count after replay = %d, want 1", len(accounts))
	}
}

func TestCallback_CustomNext(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	target := "/auth/callback?code=abc123&state=" + StateToken() + "&next=%2Fsettings"

	loc := wantRedirect(t, doGet(t, e.callbackHandler(), target), "/settings")
	if loc.Path != "/settings" {
		t.Errorf("redirect = %q, want /settings", loc.Path)
	}
}

func TestCallback_OffsiteNextFallsBackToDashboard(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")

	// Absolute and scheme-relative targets both leave the site; a bare
	// leading slash is not enough to keep the redirect local.
	for _, next := range []string{
		"https://evil.example",
		"//evil.example/phish",
		`/\evil.example/phish`,
	} {
		target := "/auth/callback?code=abc123&state=" + StateToken() + "&next=" + url.QueryEscape(next)
		rec := doGet(t, e.callbackHandler(), target)
		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("next=%q: status = %d, want redirect", next, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/dashboard" {
			t.Errorf("next=%q redirected to %q, want /dashboard", next, loc)
		}
	}
}

func TestLogin_UnknownProviderIsInvalidParams(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, HandleLogin(e.oauth), "/auth/login?provider=yahoo")

	loc := wantRedirect(t, rec, "/auth/auth-code-error")
	if loc.Query().Get("error") != ErrCodeInvalidParams {
		t.Errorf("error = %q, want %s", loc.Query().Get("error"), ErrCodeInvalidParams)
	}
}

func TestCallback_PanicTerminatesInErrorRedirect(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	// A manager over a nil store panics on first use, standing in for any
	// unexpected fault past the flow logic.
	h := HandleCallback(e.oauth, session.NewManager(nil), e.projects, e.links)
	target := "/auth/callback?code=abc123&state=" + StateToken()

	loc := wantRedirect(t, doGet(t, h, target), "/auth/auth-code-error")
	if loc.Query().Get("error") != ErrCodeException {
		t.Errorf("error = %q, want %s", loc.Query().Get("error"), ErrCodeException)
	}
}

func TestCallback_LogsUnderMiddlewareRequestID(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := logging.RequestIDMiddleware(e.callbackHandler())
	req := httptest.NewRequest("GET", "/auth/callback", nil)
	req.Header.Set(logging.HeaderName, "upstream1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "[upstream1]") {
		t.Errorf("handler did not log under the middleware's request id; logs: %s", buf.String())
	}
}

func TestLink_MissingProjectIDIsInvalidParams(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, e.linkHandler(), "/auth/oauth-link?code=abc123&user_id=u1&state="+StateToken())

	loc := wantRedirect(t, rec, "/auth/oauth-error")
	if loc.Query().Get("error") != ErrCodeInvalidParams {
		t.Errorf("error = %q, want %s", loc.Query().Get("error"), ErrCodeInvalidParams)
	}
}

func TestLink_ProviderErrorPropagatesCode(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	rec := doGet(t, e.linkHandler(), "/auth/oauth-link?error=consent_denied")

	loc := wantRedirect(t, rec, "/auth/oauth-error")
	if loc.Query().Get("error") != "consent_denied" {
		t.Errorf("error = %q, want consent_denied", loc.Query().Get("error"))
	}
}

func TestLink_OwnerIsOriginalUserNotExchangedIdentity(t *testing.T) {
	// The exchange authenticates identity sub-other; the row must belong
	// to original-user from the query parameters.
	e := newEnv(t, "sub-other", "shared@x.com")
	target := "/auth/oauth-link?code=abc123&user_id=original-user&project_id=p1&provider=google&state=" + StateToken()

	rec := doGet(t, e.linkHandler(), target)
	wantRedirect(t, rec, "/auth/oauth-success")

	acc, err := e.store.MailboxAccountByLinkKey(context.Background(), "p1", "original-user", "shared@x.com", "google")
	if err != nil {
		t.Fatalf("account lookup: %v", err)
	}
	if acc.UserID != "original-user" {
		t.Errorf("owner = %q, want original-user", acc.UserID)
	}
}

func TestLink_ReplayRedirectsToSuccessWithoutNewRow(t *testing.T) {
	e := newEnv(t, "sub-other", "shared@x.com")
	target := "/auth/oauth-link?code=abc123&user_id=u1&project_id=p1&provider=google&state=" + StateToken()

	wantRedirect(t, doGet(t, e.linkHandler(), target), "/auth/oauth-success")
	wantRedirect(t, doGet(t, e.linkHandler(), target), "/auth/oauth-success")

	accounts, err := e.store.MailboxAccountsByUser(context.Background(), "p1", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("row count = %d, want 1", len(accounts))
	}
}

func TestLink_ExchangeFailure(t *testing.T) {
	e := newEnv(t, "sub-1", "a@x.com")
	// Point the client at a dead endpoint so the exchange itself fails.
	e.oauth = provider.NewClientWithEndpoints(map[string]provider.Endpoint{
		provider.Google: {
			Config: &oauth2.Config{
				Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/token"},
			},
			UserInfoURL: "http://127.0.0.1:1/userinfo",
		},
	})
	target := "/auth/oauth-link?code=abc123&user_id=u1&project_id=p1&state=" + StateToken()

	loc := wantRedirect(t, doGet(t, e.linkHandler(), target), "/auth/oauth-error")
	if loc.Query().Get("error") != ErrCodeExchange {
		t.Errorf("error = %q, want %s", loc.Query().Get("error"), ErrCodeExchange)
	}
}

func TestRestorePage_ExpiredContextShowsRetry(t *testing.T) {
	rec := httptest.NewRecorder()
	linkctx.Write(rec, linkctx.Context{
		OriginalUserID: "u1",
		ProjectID:      "p1",
		StartedAt:      time.Now().Add(-11 * time.Minute),
	}, linkctx.DefaultTTL)

	// Expiry wins even when the query parameter claims success.
	req := httptest.NewRequest("GET", "/auth/oauth-restore?success=true", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	out := httptest.NewRecorder()
	OAuthRestorePage(linkctx.DefaultTTL)(out, req)

	body := out.Body.String()
	if !strings.Contains(body, "Session context expired") {
		t.Errorf("expired context not reported; body: %s", body)
	}
	if !strings.Contains(body, "/dashboard") {
		t.Error("restore page must navigate back to the dashboard")
	}
}

func TestRestorePage_MissingContext(t *testing.T) {
	out := httptest.NewRecorder()
	OAuthRestorePage(linkctx.DefaultTTL)(out, httptest.NewRequest("GET", "/auth/oauth-restore?success=true", nil))

	if !strings.Contains(out.Body.String(), "No session context found") {
		t.Errorf("missing context not reported; body: %s", out.Body.String())
	}
}

func TestRestorePage_SuccessConsumesContext(t *testing.T) {
	rec := httptest.NewRecorder()
	linkctx.Write(rec, linkctx.Context{OriginalUserID: "u1", ProjectID: "p1"}, linkctx.DefaultTTL)

	req := httptest.NewRequest("GET", "/auth/oauth-restore?success=true", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	out := httptest.NewRecorder()
	OAuthRestorePage(linkctx.DefaultTTL)(out, req)

	if !strings.Contains(out.Body.String(), "Account Linked Successfully") {
		t.Errorf("success not narrated; body: %s", out.Body.String())
	}
	cleared := false
	for _, c := range out.Result().Cookies() {
		if c.Name == linkctx.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("restore page did not clear the link context cookie")
	}
}

func TestErrorPages_MapCodes(t *testing.T) {
	cases := map[string]string{
		ErrCodeDatabase:      "Failed to save email account",
		ErrCodeExchange:      "OAuth authentication failed",
		ErrCodeInvalidParams: "Invalid OAuth parameters",
		ErrCodeException:     "An unexpected error occurred",
		"anything_else":      "OAuth connection failed",
	}
	for code, want := range cases {
		out := httptest.NewRecorder()
		OAuthErrorPage()(out, httptest.NewRequest("GET", "/auth/oauth-error?error="+code, nil))
		if !strings.Contains(out.Body.String(), want) {
			t.Errorf("code %s: body missing %q", code, want)
		}
	}
}

func TestSuccessPage_ClosesWindow(t *testing.T) {
	out := httptest.NewRecorder()
	OAuthSuccessPage()(out, httptest.NewRequest("GET", "/auth/oauth-success", nil))
	if !strings.Contains(out.Body.String(), "window.close()") {
		t.Error("success page should close its popup")
	}
}
