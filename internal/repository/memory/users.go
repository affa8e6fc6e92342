// Package memory holds mutex-guarded in-process implementations of the
// repository interfaces. They back SESSION_STORE=memory and the HTTP tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notehub/gatekeeper/internal/domain"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*domain.User),
		now:   time.Now,
	}
}

func (r *UserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *UserRepository) FindByProviderID(_ context.Context, providerID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ProviderID != nil && *u.ProviderID == providerID })
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return exists(err)
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return exists(err)
}

func (r *UserRepository) Create(_ context.Context, input domain.CreateUserInput) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if r.collides(u, input.Email, input.Username, input.ProviderID) {
			return nil, domain.ErrAlreadyExists
		}
	}

	now := r.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		ProviderID:   input.ProviderID,
		Host:         input.Host,
		Email:        input.Email,
		Username:     input.Username,
		DisplayName:  input.DisplayName,
		AvatarURL:    input.AvatarURL,
		PasswordHash: input.PasswordHash,
		Active:       input.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[user.ID] = user

	clone := *user
	return &clone, nil
}

func (r *UserRepository) Activate(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) error {
		u.Active = true
		return nil
	})
}

func (r *UserRepository) SetPassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (r *UserRepository) SetEmail(_ context.Context, id string, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID != id && strings.EqualFold(u.Email, email) {
			return domain.ErrAlreadyExists
		}
	}
	return r.updateLocked(id, func(u *domain.User) error {
		u.Email = email
		return nil
	})
}

func (r *UserRepository) update(id string, apply func(*domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(id, apply)
}

func (r *UserRepository) updateLocked(id string, apply func(*domain.User) error) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := apply(u); err != nil {
		return err
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepository) collides(u *domain.User, email, username string, providerID *string) bool {
	if strings.EqualFold(u.Email, email) || u.Username == username {
		return true
	}
	return providerID != nil && u.ProviderID != nil && *u.ProviderID == *providerID
}

func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

var _ domain.UserRepository = (*UserRepository)(nil)
