package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notehub/gatekeeper/internal/domain"
)

const DefaultRefreshTTL = 30 * 24 * time.Hour

// SessionMeta describes the client a session is being opened for.
type SessionMeta struct {
	Device    uuid.UUID
	IPAddress string
	UserAgent string
}

// Credentials is what a successful login or refresh hands back to the client.
type Credentials struct {
	Session         *domain.Session
	AccessToken     string
	AccessExpiresAt time.Time
}

// Engine owns the refresh-session state machine. Sessions are keyed by device:
// opening one deletes whatever the device held before, so each refresh
// invalidates the credential that authorized it.
type Engine struct {
	sessions   domain.SessionRepository
	signer     *Signer
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type EngineConfig struct {
	Sessions   domain.SessionRepository
	Signer     *Signer
	RefreshTTL time.Duration
	Logger     *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	ttl := cfg.RefreshTTL
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		sessions:   cfg.Sessions,
		signer:     cfg.Signer,
		refreshTTL: ttl,
		now:        time.Now,
		logger:     logger.With("component", "token_engine"),
	}
}

func (e *Engine) Signer() *Signer {
	return e.signer
}

// BeginSession replaces the device's session with a fresh one for userID.
//
// Delete-then-insert is not atomic: two concurrent calls for the same device
// can both insert. The next BeginSession for that device removes every row it
// holds, so the duplicate does not outlive one more rotation.
func (e *Engine) BeginSession(ctx context.Context, meta SessionMeta, userID string) (*domain.Session, error) {
	if meta.Device == uuid.Nil {
		return nil, domain.ErrMissingDevice
	}
	device := meta.Device.String()

	removed, err := e.sessions.DeleteByDevice(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("delete device sessions: %w", err)
	}
	if removed > 0 {
		e.logger.Debug("replaced device session", "device", device, "removed", removed)
	}

	now := e.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Device:    device,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(e.refreshTTL),
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// Issue opens a session and signs an access credential for it.
func (e *Engine) Issue(ctx context.Context, meta SessionMeta, userID string) (*Credentials, error) {
	session, err := e.BeginSession(ctx, meta, userID)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := e.signer.IssueAccess(userID)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		Session:         session,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
	}, nil
}

// RotateSession trades a refresh credential for a new refresh and access pair.
func (e *Engine) RotateSession(ctx context.Context, refreshID uuid.UUID, meta SessionMeta) (*Credentials, error) {
	current, err := e.lookup(ctx, refreshID)
	if err != nil {
		return nil, err
	}

	if current.Expired(e.now()) {
		return nil, domain.ErrSessionExpired
	}

	if meta.Device != uuid.Nil && meta.Device.String() != current.Device {
		e.logger.Warn("refresh presented from another device",
			"session_id", current.ID,
			"device", meta.Device.String(),
		)
		return nil, domain.ErrDeviceMismatch
	}

	device, err := uuid.Parse(current.Device)
	if err != nil {
		return nil, fmt.Errorf("stored session %s has malformed device: %w", current.ID, err)
	}

	return e.Issue(ctx, SessionMeta{
		Device:    device,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}, current.UserID)
}

// EndSession revokes a refresh credential.
func (e *Engine) EndSession(ctx context.Context, refreshID uuid.UUID) error {
	err := e.sessions.Delete(ctx, refreshID.String())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SweepExpiredSessions deletes every session whose expiry has passed.
func (e *Engine) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := e.sessions.DeleteExpired(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

func (e *Engine) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := e.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := e.now()
	live := sessions[:0]
	for _, s := range sessions {
		if !s.Expired(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

func (e *Engine) lookup(ctx context.Context, refreshID uuid.UUID) (*domain.Session, error) {
	session, err := e.sessions.FindByID(ctx, refreshID.String())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}
