package db

import (
	"context"

	"github.com/relaylab/mfa-relay/internal/db/models"
	"gorm.io/gorm"
)

// Store is the persistence surface the auth flows need. Every call is
// bounded by whatever deadline the caller put on ctx; a deadline expiry
// surfaces as ErrTimeout like any other failure.
type Store interface {
	ProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error

	UserByProviderSubject(ctx context.Context, provider, subject string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	SessionByToken(ctx context.Context, token string) (*models.Session, error)
	CreateSession(ctx context.Context, s *models.Session) error
	DeleteSession(ctx context.Context, token string) error

	MailboxAccountByLinkKey(ctx context.Context, projectID, userID, email, oauthProvider string) (*models.MailboxAccount, error)
	MailboxAccountByID(ctx context.Context, id string) (*models.MailboxAccount, error)
	MailboxAccountsByUser(ctx context.Context, projectID, userID string) ([]models.MailboxAccount, error)
	CreateMailboxAccount(ctx context.Context, a *models.MailboxAccount) error
	DeactivateMailboxAccount(ctx context.Context, id string) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle in the Store interface.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, classify("project by slug", err)
	}
	return &p, nil
}

func (s *gormStore) CreateProject(ctx context.Context, p *models.Project) error {
	return classify("create project", s.db.WithContext(ctx).Create(p).Error)
}

func (s *gormStore) UserByProviderSubject(ctx context.Context, provider, subject string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("oauth_provider = ? AND provider_subject = ?", provider, subject).
		First(&u).Error
	if err != nil {
		return nil, classify("user by provider subject", err)
	}
	return &u, nil
}

func (s *gormStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, classify("user by id", err)
	}
	return &u, nil
}

func (s *gormStore) CreateUser(ctx context.Context, u *models.User) error {
	return classify("create user", s.db.WithContext(ctx).Create(u).Error)
}

func (s *gormStore) SessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&sess).Error; err != nil {
		return nil, classify("session by token", err)
	}
	return &sess, nil
}

func (s *gormStore) CreateSession(ctx context.Context, sess *models.Session) error {
	return classify("create session", s.db.WithContext(ctx).Create(sess).Error)
}

func (s *gormStore) DeleteSession(ctx context.Context, token string) error {
	return classify("delete session",
		s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error)
}

func (s *gormStore) MailboxAccountByLinkKey(ctx context.Context, projectID, userID, email, oauthProvider string) (*models.MailboxAccount, error) {
	var a models.MailboxAccount
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND email_address = ? AND oauth_provider = ?",
			projectID, userID, email, oauthProvider).
		First(&a).Error
	if err != nil {
		return nil, classify("mailbox account by link key", err)
	}
	return &a, nil
}

func (s *gormStore) MailboxAccountByID(ctx context.Context, id string) (*models.MailboxAccount, error) {
	var a models.MailboxAccount
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, classify("mailbox account by id", err)
	}
	return &a, nil
}

func (s *gormStore) MailboxAccountsByUser(ctx context.Context, projectID, userID string) ([]models.MailboxAccount, error) {
	var accounts []models.MailboxAccount
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at").
		Find(&accounts).Error
	if err != nil {
		return nil, classify("mailbox accounts by user", err)
	}
	return accounts, nil
}

func (s *gormStore) CreateMailboxAccount(ctx context.Context, a *models.MailboxAccount) error {
	return classify("create mailbox account", s.db.WithContext(ctx).Create(a).Error)
}

func (s *gormStore) DeactivateMailboxAccount(ctx context.Context, id string) error {
	return classify("deactivate mailbox account",
		s.db.WithContext(ctx).Model(&models.MailboxAccount{}).
			Where("id = ?", id).Update("is_active", false).Error)
}
