package domain

import (
	"context"
	"time"
)

type Host string

const (
	HostNative Host = "native"
	HostGoogle Host = "google"
	HostGitHub Host = "github"
)

func (h Host) Valid() bool {
	switch h {
	case HostNative, HostGoogle, HostGitHub:
		return true
	}
	return false
}

// Federated reports whether accounts of this host are owned by an external provider.
func (h Host) Federated() bool {
	return h == HostGoogle || h == HostGitHub
}

const RoleBasic = "basic"

type User struct {
	ID           string
	ProviderID   *string
	Host         Host
	Email        string
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) SubjectID() string { return u.ID }

func (u *User) IsActive() bool { return u.Active }

func (u *User) Roles() []string { return []string{RoleBasic} }

var _ Principal = (*User)(nil)

type CreateUserInput struct {
	ProviderID   *string
	Host         Host
	Email        string
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	Active       bool
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByProviderID(ctx context.Context, providerID string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	Activate(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id string, passwordHash string) error
	SetEmail(ctx context.Context, id string, email string) error
}
