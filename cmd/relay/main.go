package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	authhandlers "github.com/relaylab/mfa-relay/internal/auth/handlers"
	"github.com/relaylab/mfa-relay/internal/auth/provider"
	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/config"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/linker"
	"github.com/relaylab/mfa-relay/internal/logging"
	"github.com/relaylab/mfa-relay/internal/mailbox"
	"github.com/relaylab/mfa-relay/internal/project"
	webhandlers "github.com/relaylab/mfa-relay/internal/web/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to relay.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store := db.NewStore(database)

	// Core services
	oauth := provider.NewClient(cfg.OAuth)
	sessions := session.NewManager(store)
	projects := project.NewResolver(store, cfg.Project)
	links := linker.New(store)

	// Create router
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestIDMiddleware)

	// OAuth flows
	r.Get("/auth/login", authhandlers.HandleLogin(oauth))
	r.Get("/auth/connect", authhandlers.HandleConnect(oauth, sessions, projects, cfg.Link.ContextTTL))
	r.Post("/auth/logout", authhandlers.HandleLogout(sessions))
	r.Get("/auth/callback", authhandlers.HandleCallback(oauth, sessions, projects, links))
	r.Get("/auth/oauth-link", authhandlers.HandleLink(oauth, links))

	// Flow result pages
	r.Get("/auth/oauth-success", authhandlers.OAuthSuccessPage())
	r.Get("/auth/oauth-error", authhandlers.OAuthErrorPage())
	r.Get("/auth/oauth-restore", authhandlers.OAuthRestorePage(cfg.Link.ContextTTL))
	r.Get("/auth/auth-code-error", authhandlers.AuthCodeErrorPage())

	// Dashboard
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})
	r.Get("/dashboard", webhandlers.DashboardHandler(store, sessions, projects))
	r.Get("/health", webhandlers.HealthHandler())

	// Account management API
	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", webhandlers.AccountsListHandler(store, sessions, projects))
		r.Post("/accounts", webhandlers.AccountCreateHandler(store, sessions, projects, mailbox.Verify))
		r.Delete("/accounts/{id}", webhandlers.AccountDeleteHandler(store, sessions))
		r.Get("/stats", webhandlers.StatsHandler(store, sessions, projects))
	})

	addr := cfg.Addr()
	log.Printf("🚀 MFA Relay starting on http://%s", addr)
	log.Printf("📊 Dashboard: http://%s/dashboard", addr)
	log.Printf("🔑 OAuth login: http://%s/auth/login", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
