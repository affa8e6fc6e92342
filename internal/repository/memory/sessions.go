package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notehub/gatekeeper/internal/domain"
)

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *SessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

// FindByUserID returns the user's sessions, newest first.
func (r *SessionRepository) FindByUserID(_ context.Context, userID string) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) DeleteByDevice(_ context.Context, device string) (int64, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.Device == device }), nil
}

func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.ExpiresAt.Before(now) }), nil
}

func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRepository) deleteWhere(match func(domain.Session) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if match(s) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
