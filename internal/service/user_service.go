package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/notification"
	"github.com/notehub/gatekeeper/internal/token"
)

const maxUsernameLength = 32

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type UserService struct {
	users    domain.UserRepository
	signer   *token.Signer
	hasher   passwordHasher
	notifier notification.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

type UserServiceConfig struct {
	Users    domain.UserRepository
	Signer   *token.Signer
	Hasher   passwordHasher
	Notifier notification.Notifier
	Logger   *slog.Logger
}

func NewUserService(cfg UserServiceConfig) *UserService {
	return &UserService{
		users:    cfg.Users,
		signer:   cfg.Signer,
		hasher:   cfg.Hasher,
		notifier: cfg.Notifier,
		now:      time.Now,
		logger:   cfg.Logger.With("component", "user_service"),
	}
}

// Register creates an inactive native account and sends it an activation credential.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, domain.ErrEmailConflict
	}

	taken, err = s.users.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Username
	}

	user, err := s.users.Create(ctx, domain.CreateUserInput{
		Host:         domain.HostNative,
		Email:        input.Email,
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Active:       false,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	activation, err := s.signer.IssueActivation(user.ID)
	if err != nil {
		return nil, err
	}

	// Registration stands even when the notice cannot be delivered.
	err = s.notifier.Notify(ctx, notification.Message{
		Kind:      notification.KindActivation,
		To:        user.Email,
		Username:  user.Username,
		Token:     activation,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to send activation notice", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Activate redeems an activation credential. A second redemption fails with
// ErrAlreadyActive.
func (s *UserService) Activate(ctx context.Context, credential string) (*domain.User, error) {
	userID, err := s.signer.ValidateActivation(credential)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Active {
		return nil, domain.ErrAlreadyActive
	}

	if err := s.users.Activate(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}
	user.Active = true

	s.logger.Info("user activated", "user_id", user.ID)
	return user, nil
}

// ChangePassword redeems a password-scoped credential for a native account.
func (s *UserService) ChangePassword(ctx context.Context, credential, newPassword string) error {
	email, err := s.signer.ValidateScoped(credential, token.ScopePassword)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Host != domain.HostNative {
		return domain.ErrHostNotAllowed
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("password changed", "user_id", user.ID)
	return nil
}

// ChangeEmail redeems an email-scoped credential issued for the current address.
func (s *UserService) ChangeEmail(ctx context.Context, credential, newEmail string) (*domain.User, error) {
	current, err := s.signer.ValidateScoped(credential, token.ScopeEmail)
	if err != nil {
		return nil, err
	}

	newEmail = strings.TrimSpace(newEmail)
	if !validEmail(newEmail) {
		return nil, domain.ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, current)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(user.Email, newEmail) {
		return user, nil
	}

	taken, err := s.users.ExistsByEmail(ctx, newEmail)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, domain.ErrEmailConflict
	}

	err = s.users.SetEmail(ctx, user.ID, newEmail)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.ErrEmailConflict
	}
	if err != nil {
		return nil, fmt.Errorf("set email: %w", err)
	}
	user.Email = newEmail

	s.logger.Info("email changed", "user_id", user.ID)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func validateRegistration(input RegisterInput) error {
	if !validEmail(input.Email) {
		return fmt.Errorf("%w: email", domain.ErrInvalidInput)
	}
	if input.Username == "" || len(input.Username) > maxUsernameLength || strings.ContainsAny(input.Username, " \t\n") {
		return fmt.Errorf("%w: username", domain.ErrInvalidInput)
	}
	if input.Password == "" {
		return fmt.Errorf("%w: password", domain.ErrInvalidInput)
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
