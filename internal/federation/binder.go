package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	maxUsernameAttempts = 12
	maxCreateAttempts   = 3
	fallbackUsername    = "user"
)

// Binder maps a federated identity onto a local account, creating it on first sight.
type Binder struct {
	users  domain.UserRepository
	group  singleflight.Group
	suffix func() int
	logger *slog.Logger
}

func NewBinder(users domain.UserRepository, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{
		users:  users,
		suffix: func() int { return 1000 + rand.IntN(9000) },
		logger: logger.With("component", "identity_binder"),
	}
}

// Bind returns the account linked to identity, creating an active one when
// none exists. Concurrent calls for the same provider id share one lookup.
func (b *Binder) Bind(ctx context.Context, host domain.Host, identity *Identity) (*domain.User, error) {
	if !host.Federated() {
		return nil, domain.ErrHostNotAllowed
	}
	if identity == nil || identity.ProviderID == "" {
		return nil, domain.ErrFederationFailed
	}
	if identity.Email == "" {
		return nil, domain.ErrMissingEmail
	}

	key := string(host) + ":" + identity.ProviderID
	v, err, _ := b.group.Do(key, func() (any, error) {
		return b.findOrCreate(ctx, host, identity)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

func (b *Binder) findOrCreate(ctx context.Context, host domain.Host, identity *Identity) (*domain.User, error) {
	user, err := b.findLinked(ctx, host, identity.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	taken, err := b.users.ExistsByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, domain.ErrEmailConflict
	}

	providerID := identity.ProviderID
	for attempt := 1; ; attempt++ {
		username, err := b.ResolveUsername(ctx, providerID, usernameBase(identity))
		if err != nil {
			return nil, err
		}

		user, err = b.users.Create(ctx, domain.CreateUserInput{
			ProviderID:  &providerID,
			Host:        host,
			Email:       identity.Email,
			Username:    username,
			DisplayName: identity.DisplayName,
			AvatarURL:   identity.AvatarURL,
			Active:      true,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("create federated user: %w", err)
		}

		// Another instance either linked the same account, took the email,
		// or took the username we resolved.
		if linked, findErr := b.findLinked(ctx, host, providerID); findErr == nil {
			return linked, nil
		}
		taken, existsErr := b.users.ExistsByEmail(ctx, identity.Email)
		if existsErr != nil {
			return nil, fmt.Errorf("check email: %w", existsErr)
		}
		if taken {
			return nil, domain.ErrEmailConflict
		}
		if attempt == maxCreateAttempts {
			return nil, domain.ErrConflict
		}
		b.logger.Debug("username taken during create, resolving again", "username", username, "attempt", attempt)
	}

	b.logger.Info("federated account created",
		"user_id", user.ID,
		"host", host,
		"username", user.Username,
	)
	return user, nil
}

func (b *Binder) findLinked(ctx context.Context, host domain.Host, providerID string) (*domain.User, error) {
	user, err := b.users.FindByProviderID(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find by provider id: %w", err)
	}
	if user.Host != host {
		b.logger.Warn("provider id bound to another host",
			"user_id", user.ID,
			"host", host,
			"bound_host", user.Host,
		)
		return nil, domain.ErrHostNotAllowed
	}
	return user, nil
}

// ResolveUsername returns base when free, otherwise base with a random
// four digit suffix. After the attempts run out it falls back to the first
// four characters of providerID.
func (b *Binder) ResolveUsername(ctx context.Context, providerID, base string) (string, error) {
	candidate := base
	for range maxUsernameAttempts {
		taken, err := b.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(b.suffix())
	}

	taken, err := b.users.ExistsByUsername(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if !taken {
		return candidate, nil
	}

	prefix := providerID
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return base + prefix, nil
}

// usernameBase lowercases the provider handle and strips whitespace. An empty
// handle falls back to the email local part.
func usernameBase(identity *Identity) string {
	if base := normalizeUsername(identity.Username); base != "" {
		return base
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	if base := normalizeUsername(local); base != "" {
		return base
	}
	return fallbackUsername
}

func normalizeUsername(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
