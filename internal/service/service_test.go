package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/federation"
	"github.com/notehub/gatekeeper/internal/notification"
	"github.com/notehub/gatekeeper/internal/password"
	"github.com/notehub/gatekeeper/internal/repository/memory"
	"github.com/notehub/gatekeeper/internal/token"
)

const testSecret = "service-test-secret"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last(t *testing.T) notification.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no notice sent")
	return n.sent[len(n.sent)-1]
}

type stubProvider struct {
	host     domain.Host
	identity *federation.Identity
	err      error
}

func (p *stubProvider) Host() domain.Host { return p.host }

func (p *stubProvider) Identify(context.Context, string) (*federation.Identity, error) {
	return p.identity, p.err
}

type fixture struct {
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	signer   *token.Signer
	engine   *token.Engine
	hasher   *password.Hasher
	notifier *recordingNotifier
	google   *stubProvider
	auth     *AuthService
	accounts *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer, err := token.NewSigner(testSecret, 30*time.Minute)
	require.NoError(t, err)

	f := &fixture{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(),
		signer:   signer,
		hasher:   password.NewHasher(bcrypt.MinCost),
		notifier: &recordingNotifier{},
		google:   &stubProvider{host: domain.HostGoogle},
	}
	f.engine = token.NewEngine(token.EngineConfig{Sessions: f.sessions, Signer: signer, Logger: logger})
	f.auth = NewAuthService(AuthServiceConfig{
		Users:     f.users,
		Engine:    f.engine,
		Providers: []federation.Provider{f.google},
		Binder:    federation.NewBinder(f.users, logger),
		Hasher:    f.hasher,
		Notifier:  f.notifier,
		Logger:    logger,
	})
	f.accounts = NewUserService(UserServiceConfig{
		Users:    f.users,
		Signer:   signer,
		Hasher:   f.hasher,
		Notifier: f.notifier,
		Logger:   logger,
	})
	return f
}

func (f *fixture) nativeUser(t *testing.T, username, plain string, active bool) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(plain)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), domain.CreateUserInput{
		Host:         domain.HostNative,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		Active:       active,
	})
	require.NoError(t, err)
	return u
}

func meta() token.SessionMeta {
	return token.SessionMeta{Device: uuid.New(), IPAddress: "203.0.113.7", UserAgent: "test"}
}

var errBoom = errors.New("boom")
