package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	sessionPrefix       = "session:"
	deviceSessionPrefix = "device_sessions:"
	userSessionPrefix   = "user_sessions:"
	expiryIndexKey      = "sessions_by_expiry"

	// Keys outlive their expiry so a late refresh sees an expired session
	// rather than a missing one. The sweeper removes them before that.
	expiredRetention = 24 * time.Hour
)

// SessionRepository keeps sessions in Redis hashes with per-device and
// per-user index sets and a sorted set ordered by expiry.
type SessionRepository struct {
	client goredis.UniversalClient
}

func NewSessionRepository(client goredis.UniversalClient) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.ID) == "" || session.UserID == "" || session.Device == "" {
		return domain.ErrInvalidInput
	}

	created, err := r.client.HSetNX(ctx, sessionKey(session.ID), "user_id", session.UserID).Result()
	if err != nil {
		return fmt.Errorf("reserve session: %w", err)
	}
	if !created {
		return domain.ErrAlreadyExists
	}

	keyExpiry := session.ExpiresAt.Add(expiredRetention)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(session.ID), map[string]interface{}{
		"user_id":    session.UserID,
		"device":     session.Device,
		"ip_address": session.IPAddress,
		"user_agent": session.UserAgent,
		"created_at": session.CreatedAt.UnixNano(),
		"expires_at": session.ExpiresAt.UnixNano(),
	})
	pipe.ExpireAt(ctx, sessionKey(session.ID), keyExpiry)
	pipe.SAdd(ctx, deviceKey(session.Device), session.ID)
	pipe.ExpireAt(ctx, deviceKey(session.Device), keyExpiry)
	pipe.SAdd(ctx, userKey(session.UserID), session.ID)
	pipe.ExpireAt(ctx, userKey(session.UserID), keyExpiry)
	pipe.ZAdd(ctx, expiryIndexKey, goredis.Z{
		Score:  float64(session.ExpiresAt.UnixMilli()),
		Member: session.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}

	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return nil, domain.ErrNotFound
	}

	return parseSession(id, values)
}

func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) ([]domain.Session, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	ids, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		session, err := r.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			r.client.SRem(ctx, userKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	return r.remove(ctx, session)
}

func (r *SessionRepository) DeleteByDevice(ctx context.Context, device string) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	ids, err := r.client.SMembers(ctx, deviceKey(device)).Result()
	if err != nil {
		return 0, fmt.Errorf("list device sessions: %w", err)
	}

	var removed int64
	for _, id := range ids {
		n, err := r.deleteIfPresent(ctx, id)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	if err := r.client.Del(ctx, deviceKey(device)).Err(); err != nil {
		return removed, fmt.Errorf("delete device index: %w", err)
	}

	return removed, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	ids, err := r.client.ZRangeByScore(ctx, expiryIndexKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expiry index: %w", err)
	}

	var removed int64
	for _, id := range ids {
		n, err := r.deleteIfPresent(ctx, id)
		if err != nil {
			return removed, err
		}
		if n == 0 {
			r.client.ZRem(ctx, expiryIndexKey, id)
		}
		removed += n
	}

	return removed, nil
}

func (r *SessionRepository) deleteIfPresent(ctx context.Context, id string) (int64, error) {
	session, err := r.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := r.remove(ctx, session); err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *SessionRepository) remove(ctx context.Context, session *domain.Session) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(session.ID))
	pipe.SRem(ctx, deviceKey(session.Device), session.ID)
	pipe.SRem(ctx, userKey(session.UserID), session.ID)
	pipe.ZRem(ctx, expiryIndexKey, session.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func parseSession(id string, values map[string]string) (*domain.Session, error) {
	createdAt, err := strconv.ParseInt(values["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: parse created_at: %w", id, err)
	}
	expiresAt, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: parse expires_at: %w", id, err)
	}

	return &domain.Session{
		ID:        id,
		UserID:    values["user_id"],
		Device:    values["device"],
		IPAddress: values["ip_address"],
		UserAgent: values["user_agent"],
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
	}, nil
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func deviceKey(device string) string {
	return deviceSessionPrefix + device
}

func userKey(userID string) string {
	return userSessionPrefix + userID
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
