package token

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/gatekeeper/internal/domain"
)

type memorySessions struct {
	mu          sync.Mutex
	rows        map[string]domain.Session
	afterDelete func()
	failDelete  error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{rows: make(map[string]domain.Session)}
}

func (m *memorySessions) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.rows[s.ID] = *s
	return nil
}

func (m *memorySessions) FindByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memorySessions) FindByUserID(_ context.Context, userID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memorySessions) DeleteByDevice(_ context.Context, device string) (int64, error) {
	m.mu.Lock()
	if m.failDelete != nil {
		m.mu.Unlock()
		return 0, m.failDelete
	}
	var n int64
	for id, s := range m.rows {
		if s.Device == device {
			delete(m.rows, id)
			n++
		}
	}
	hook := m.afterDelete
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return n, nil
}

func (m *memorySessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if s.Expired(now) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) countDevice(device string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.rows {
		if s.Device == device {
			n++
		}
	}
	return n
}

func (m *memorySessions) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *memorySessions, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}

	signer, err := NewSigner(testSecret, 30*time.Minute)
	require.NoError(t, err)
	signer.now = clock.Now

	store := newMemorySessions()
	engine := NewEngine(EngineConfig{
		Sessions:   store,
		Signer:     signer,
		RefreshTTL: 24 * time.Hour,
	})
	engine.now = clock.Now
	return engine, store, clock
}

func TestBeginSessionReplacesDeviceSession(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	meta := SessionMeta{Device: uuid.New(), IPAddress: "10.0.0.1", UserAgent: "curl"}

	first, err := engine.BeginSession(ctx, meta, "user-1")
	require.NoError(t, err)
	second, err := engine.BeginSession(ctx, meta, "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, store.countDevice(meta.Device.String()))

	_, err = store.FindByID(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBeginSessionKeepsOtherDevices(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)
	_, err = engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, store.len())
}

func TestBeginSessionSetsExpiry(t *testing.T) {
	engine, _, clock := newTestEngine(t)

	session, err := engine.BeginSession(context.Background(), SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, clock.Now(), session.CreatedAt)
	assert.Equal(t, clock.Now().Add(24*time.Hour), session.ExpiresAt)
}

func TestBeginSessionRequiresDevice(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	_, err := engine.BeginSession(context.Background(), SessionMeta{}, "user-1")
	assert.ErrorIs(t, err, domain.ErrMissingDevice)
	assert.Zero(t, store.len())
}

func TestBeginSessionPropagatesStoreFailure(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	store.failDelete = errors.New("connection reset")

	_, err := engine.BeginSession(context.Background(), SessionMeta{Device: uuid.New()}, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, store.len())
}

func TestIssueReturnsValidAccessCredential(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	creds, err := engine.Issue(context.Background(), SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)

	subject, err := engine.Signer().Validate(creds.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
	assert.Equal(t, "user-1", creds.Session.UserID)
}

func TestRotateSession(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	device := uuid.New()

	creds, err := engine.Issue(ctx, SessionMeta{Device: device, IPAddress: "10.0.0.1"}, "user-1")
	require.NoError(t, err)
	oldID := uuid.MustParse(creds.Session.ID)

	clock.Advance(time.Hour)
	rotated, err := engine.RotateSession(ctx, oldID, SessionMeta{Device: device, IPAddress: "10.0.0.2", UserAgent: "app/2"})
	require.NoError(t, err)

	assert.NotEqual(t, creds.Session.ID, rotated.Session.ID)
	assert.Equal(t, "user-1", rotated.Session.UserID)
	assert.Equal(t, device.String(), rotated.Session.Device)
	assert.Equal(t, "10.0.0.2", rotated.Session.IPAddress)
	assert.Equal(t, "app/2", rotated.Session.UserAgent)
	assert.Equal(t, clock.Now().Add(24*time.Hour), rotated.Session.ExpiresAt)
	assert.NotEmpty(t, rotated.AccessToken)

	_, err = store.FindByID(ctx, creds.Session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = engine.RotateSession(ctx, oldID, SessionMeta{Device: device})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRotateSessionWithoutDeviceUsesStoredDevice(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	device := uuid.New()

	creds, err := engine.Issue(ctx, SessionMeta{Device: device}, "user-1")
	require.NoError(t, err)

	rotated, err := engine.RotateSession(ctx, uuid.MustParse(creds.Session.ID), SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, device.String(), rotated.Session.Device)
	assert.Equal(t, 1, store.countDevice(device.String()))
}

func TestRotateSessionUnknown(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.RotateSession(context.Background(), uuid.New(), SessionMeta{Device: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRotateSessionExpiredIssuesNothing(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	device := uuid.New()

	creds, err := engine.Issue(ctx, SessionMeta{Device: device}, "user-1")
	require.NoError(t, err)

	clock.Advance(24*time.Hour + time.Second)
	rotated, err := engine.RotateSession(ctx, uuid.MustParse(creds.Session.ID), SessionMeta{Device: device})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Nil(t, rotated)

	// the expired row is left for the sweeper
	assert.Equal(t, 1, store.len())
	_, err = store.FindByID(ctx, creds.Session.ID)
	assert.NoError(t, err)
}

func TestRotateSessionAtExactExpiryIsAllowed(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	ctx := context.Background()
	device := uuid.New()

	creds, err := engine.Issue(ctx, SessionMeta{Device: device}, "user-1")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = engine.RotateSession(ctx, uuid.MustParse(creds.Session.ID), SessionMeta{Device: device})
	assert.NoError(t, err)
}

func TestRotateSessionDeviceMismatch(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	creds, err := engine.Issue(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)

	_, err = engine.RotateSession(ctx, uuid.MustParse(creds.Session.ID), SessionMeta{Device: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrDeviceMismatch)

	_, err = store.FindByID(ctx, creds.Session.ID)
	assert.NoError(t, err)
}

func TestEndSession(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	creds, err := engine.Issue(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)
	id := uuid.MustParse(creds.Session.ID)

	require.NoError(t, engine.EndSession(ctx, id))
	assert.Zero(t, store.len())

	assert.ErrorIs(t, engine.EndSession(ctx, id), domain.ErrSessionNotFound)

	_, err = engine.RotateSession(ctx, id, SessionMeta{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSweepExpiredSessions(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)

	clock.Advance(12 * time.Hour)
	fresh, err := engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-2")
	require.NoError(t, err)

	clock.Advance(13 * time.Hour)
	removed, err := engine.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.len())

	_, err = store.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)

	removed, err = engine.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestListSessionsSkipsExpired(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)
	clock.Advance(20 * time.Hour)
	live, err := engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-1")
	require.NoError(t, err)
	_, err = engine.BeginSession(ctx, SessionMeta{Device: uuid.New()}, "user-2")
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)
	sessions, err := engine.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.ID, sessions[0].ID)
}

// Two logins racing on one device can both insert after both deletes. The
// next rotation for that device collapses them back to a single session.
func TestConcurrentBeginSessionConvergesOnNextRotation(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	device := uuid.New()

	var barrier sync.WaitGroup
	barrier.Add(2)
	store.afterDelete = func() {
		barrier.Done()
		barrier.Wait()
	}

	var (
		wg       sync.WaitGroup
		sessions [2]*domain.Session
		errs     [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i], errs[i] = engine.BeginSession(ctx, SessionMeta{Device: device}, "user-1")
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	store.mu.Lock()
	store.afterDelete = nil
	store.mu.Unlock()

	assert.Equal(t, 2, store.countDevice(device.String()))

	rotated, err := engine.RotateSession(ctx, uuid.MustParse(sessions[0].ID), SessionMeta{Device: device})
	require.NoError(t, err)

	assert.Equal(t, 1, store.countDevice(device.String()))
	_, err = store.FindByID(ctx, rotated.Session.ID)
	assert.NoError(t, err)
	_, err = store.FindByID(ctx, sessions[1].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseIDs(t *testing.T) {
	valid := uuid.New()

	tests := []struct {
		name    string
		parse   func(string) (uuid.UUID, error)
		raw     string
		want    uuid.UUID
		wantErr error
	}{
		{name: "device ok", parse: ParseDeviceID, raw: valid.String(), want: valid},
		{name: "device padded", parse: ParseDeviceID, raw: "  " + valid.String() + " ", want: valid},
		{name: "device missing", parse: ParseDeviceID, raw: "", wantErr: domain.ErrMissingDevice},
		{name: "device blank", parse: ParseDeviceID, raw: "   ", wantErr: domain.ErrMissingDevice},
		{name: "device malformed", parse: ParseDeviceID, raw: "phone-1", wantErr: domain.ErrInvalidDevice},
		{name: "device nil uuid", parse: ParseDeviceID, raw: uuid.Nil.String(), wantErr: domain.ErrInvalidDevice},
		{name: "refresh ok", parse: ParseRefreshID, raw: valid.String(), want: valid},
		{name: "refresh missing", parse: ParseRefreshID, raw: "", wantErr: domain.ErrMissingRefreshToken},
		{name: "refresh malformed", parse: ParseRefreshID, raw: "abc", wantErr: domain.ErrInvalidRefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
