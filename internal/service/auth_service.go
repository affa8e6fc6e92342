package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notehub/gatekeeper/internal/crypto"
	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/federation"
	"github.com/notehub/gatekeeper/internal/notification"
	"github.com/notehub/gatekeeper/internal/token"
)

type identityBinder interface {
	Bind(ctx context.Context, host domain.Host, identity *federation.Identity) (*domain.User, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

type AuthService struct {
	users     domain.UserRepository
	engine    *token.Engine
	providers map[domain.Host]federation.Provider
	binder    identityBinder
	hasher    passwordHasher
	notifier  notification.Notifier
	now       func() time.Time
	logger    *slog.Logger
}

type AuthServiceConfig struct {
	Users     domain.UserRepository
	Engine    *token.Engine
	Providers []federation.Provider
	Binder    identityBinder
	Hasher    passwordHasher
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

func NewAuthService(cfg AuthServiceConfig) *AuthService {
	providers := make(map[domain.Host]federation.Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Host()] = p
	}

	return &AuthService{
		users:     cfg.Users,
		engine:    cfg.Engine,
		providers: providers,
		binder:    cfg.Binder,
		hasher:    cfg.Hasher,
		notifier:  cfg.Notifier,
		now:       time.Now,
		logger:    cfg.Logger.With("component", "auth_service"),
	}
}

// Login authenticates a username and password and opens a session for meta.Device.
func (s *AuthService) Login(ctx context.Context, meta token.SessionMeta, username, password string) (*token.Credentials, error) {
	if meta.Device == uuid.Nil {
		return nil, domain.ErrMissingDevice
	}

	user, err := s.users.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user.Host != domain.HostNative {
		return nil, domain.ErrHostNotAllowed
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrBadCredentials
	}
	if !user.Active {
		return nil, domain.ErrInactiveAccount
	}

	creds, err := s.engine.Issue(ctx, meta, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "host", user.Host)
	return creds, nil
}

// LoginFederated resolves credential with the host's provider, binds the
// identity to a local account and opens a session for it.
func (s *AuthService) LoginFederated(ctx context.Context, host domain.Host, meta token.SessionMeta, credential string) (*token.Credentials, error) {
	if meta.Device == uuid.Nil {
		return nil, domain.ErrMissingDevice
	}

	provider, ok := s.providers[host]
	if !ok {
		return nil, domain.ErrHostNotAllowed
	}
	if strings.TrimSpace(credential) == "" {
		return nil, domain.ErrInvalidInput
	}

	identity, err := provider.Identify(ctx, credential)
	if err != nil {
		return nil, err
	}

	user, err := s.binder.Bind(ctx, host, identity)
	if err != nil {
		return nil, err
	}

	creds, err := s.engine.Issue(ctx, meta, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "host", host)
	return creds, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshID uuid.UUID, meta token.SessionMeta) (*token.Credentials, error) {
	return s.engine.RotateSession(ctx, refreshID, meta)
}

func (s *AuthService) Logout(ctx context.Context, refreshID uuid.UUID) error {
	return s.engine.EndSession(ctx, refreshID)
}

func (s *AuthService) Sessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.engine.ListSessions(ctx, userID)
}

// RequestPasswordChange sends a password-scoped credential to a native account.
func (s *AuthService) RequestPasswordChange(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Host != domain.HostNative {
		return domain.ErrHostNotAllowed
	}

	raw, err := s.engine.Signer().IssueScoped(user.Email, token.ScopePassword)
	if err != nil {
		return err
	}
	return s.notify(ctx, notification.KindPasswordChange, user, raw)
}

// RequestEmailChange sends an email-scoped credential for the principal's current address.
func (s *AuthService) RequestEmailChange(ctx context.Context, user *domain.User) error {
	raw, err := s.engine.Signer().IssueScoped(user.Email, token.ScopeEmail)
	if err != nil {
		return err
	}
	return s.notify(ctx, notification.KindEmailChange, user, raw)
}

// RequestSecretKey mails a federated account a one-off confirmation key.
// The key is never stored and cannot be used to log in.
func (s *AuthService) RequestSecretKey(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.Host.Federated() {
		return domain.ErrHostNotAllowed
	}

	key, err := crypto.GenerateSecretKey()
	if err != nil {
		return err
	}

	s.logger.Info("secret key generated", "user_id", user.ID, "host", user.Host)
	return s.notify(ctx, notification.KindSecretKey, user, key)
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) notify(ctx context.Context, kind notification.Kind, user *domain.User, raw string) error {
	err := s.notifier.Notify(ctx, notification.Message{
		Kind:      kind,
		To:        user.Email,
		Username:  user.Username,
		Token:     raw,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", kind, err)
	}
	return nil
}
