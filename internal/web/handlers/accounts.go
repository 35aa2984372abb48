package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/relaylab/mfa-relay/internal/auth/session"
	"github.com/relaylab/mfa-relay/internal/db"
	"github.com/relaylab/mfa-relay/internal/db/models"
	"github.com/relaylab/mfa-relay/internal/mailbox"
	"github.com/relaylab/mfa-relay/internal/project"
)

// VerifyFunc checks IMAP credentials before a manual account is saved.
// Swappable so tests do not need a live IMAP server.
type VerifyFunc func(mailbox.Credentials) error

type accountView struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	EmailAddress         string `json:"email_address"`
	Provider             string `json:"provider"`
	OAuthProvider        string `json:"oauth_provider,omitempty"`
	FolderName           string `json:"folder_name"`
	IsActive             bool   `json:"is_active"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
	LastError            string `json:"last_error,omitempty"`
}

func viewOf(acc models.MailboxAccount) accountView {
	return accountView{
		ID:                   acc.ID,
		Name:                 acc.Name,
		EmailAddress:         acc.EmailAddress,
		Provider:             acc.Provider,
		OAuthProvider:        acc.OAuthProvider,
		FolderName:           acc.FolderName,
		IsActive:             acc.IsActive,
		CheckIntervalSeconds: acc.CheckIntervalSeconds,
		LastError:            acc.LastError,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireUser resolves the session user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request, sessions *session.Manager) (*models.User, bool) {
	user, err := sessions.UserFromRequest(r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
		} else {
			writeError(w, http.StatusInternalServerError, "session lookup failed")
		}
		return nil, false
	}
	return user, true
}

// AccountsListHandler returns the session user's mailbox accounts.
func AccountsListHandler(store db.Store, sessions *session.Manager, projects *project.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, sessions)
		if !ok {
			return
		}
		projectID, err := projects.Resolve(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "project unresolved")
			return
		}
		accounts, err := store.MailboxAccountsByUser(r.Context(), projectID, user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}
		views := make([]accountView, 0, len(accounts))
		for _, acc := range accounts {
			views = append(views, viewOf(acc))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
	}
}

type createAccountRequest struct {
	Name                 string `json:"name"`
	EmailAddress         string `json:"email_address"`
	Provider             string `json:"provider"` // gmail | outlook | imap
	AppPassword          string `json:"app_password"`
	IMAPHost             string `json:"imap_host"`
	IMAPPort             int    `json:"imap_port"`
	UseSSL               *bool  `json:"use_ssl"`
	FolderName           string `json:"folder_name"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
}

// AccountCreateHandler saves a manually entered mailbox account for the
// session user. IMAP accounts get their credentials verified first; a
// failed check comes back as 422 with the failing step.
func AccountCreateHandler(store db.Store, sessions *session.Manager, projects *project.Resolver, verify VerifyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, sessions)
		if !ok {
			return
		}

		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.EmailAddress == "" || req.AppPassword == "" {
			writeError(w, http.StatusBadRequest, "email_address and app_password are required")
			return
		}
		switch req.Provider {
		case models.ProviderGmail, models.ProviderOutlook:
			// hosts are implied
		case models.ProviderIMAP:
			if req.IMAPHost == "" || req.IMAPPort == 0 {
				writeError(w, http.StatusBadRequest, "imap accounts need imap_host and imap_port")
				return
			}
		default:
			writeError(w, http.StatusBadRequest, "provider must be gmail, outlook or imap")
			return
		}

		useSSL := true
		if req.UseSSL != nil {
			useSSL = *req.UseSSL
		}
		folder := req.FolderName
		if folder == "" {
			folder = "INBOX"
		}
		interval := req.CheckIntervalSeconds
		if interval <= 0 {
			interval = 30
		}
		name := req.Name
		if name == "" {
			name = req.EmailAddress
		}

		if req.Provider == models.ProviderIMAP && verify != nil {
			err := verify(mailbox.Credentials{
				Host:     req.IMAPHost,
				Port:     req.IMAPPort,
				UseSSL:   useSSL,
				Email:    req.EmailAddress,
				Password: req.AppPassword,
				Folder:   folder,
			})
			if err != nil {
				log.Printf("⚠️ IMAP verification failed for %s: %v", req.EmailAddress, err)
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
		}

		projectID, err := projects.Resolve(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "project unresolved")
			return
		}

		account := &models.MailboxAccount{
			ID:                   uuid.New().String(),
			ProjectID:            projectID,
			UserID:               user.ID,
			Name:                 name,
			EmailAddress:         req.EmailAddress,
			Provider:             req.Provider,
			AppPassword:          req.AppPassword,
			IMAPHost:             req.IMAPHost,
			IMAPPort:             req.IMAPPort,
			UseSSL:               useSSL,
			FolderName:           folder,
			IsActive:             true,
			CheckIntervalSeconds: interval,
		}
		if err := store.CreateMailboxAccount(r.Context(), account); err != nil {
			if errors.Is(err, db.ErrConflict) {
				writeError(w, http.StatusConflict, "account already exists")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to save account")
			return
		}

		log.Printf("📧 Manual mailbox %s added for user %s", account.EmailAddress, user.ID)
		writeJSON(w, http.StatusCreated, viewOf(*account))
	}
}

// AccountDeleteHandler deactivates a mailbox account. Rows are kept so the
// relay history stays attributable; nothing is hard-deleted here.
func AccountDeleteHandler(store db.Store, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, sessions)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		acc, err := store.MailboxAccountByID(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such account")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if acc.UserID != user.ID {
			writeError(w, http.StatusNotFound, "no such account")
			return
		}

		if err := store.DeactivateMailboxAccount(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to deactivate account")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

// StatsHandler returns the dashboard counters.
func StatsHandler(store db.Store, sessions *session.Manager, projects *project.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, sessions)
		if !ok {
			return
		}
		projectID, err := projects.Resolve(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "project unresolved")
			return
		}
		accounts, err := store.MailboxAccountsByUser(r.Context(), projectID, user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}
		active := 0
		for _, acc := range accounts {
			if acc.IsActive {
				active++
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"accounts": len(accounts),
			"active":   active,
		})
	}
}
