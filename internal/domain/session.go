package domain

import (
	"context"
	"time"
)

// Session is a refresh credential bound to one device. Its ID is the value
// clients send back in X-Refresh-Token.
type Session struct {
	ID        string
	UserID    string
	Device    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	FindByUserID(ctx context.Context, userID string) ([]Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByDevice(ctx context.Context, device string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
