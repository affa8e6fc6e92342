package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/notehub/gatekeeper/internal/domain"
	"github.com/notehub/gatekeeper/internal/federation"
	"github.com/notehub/gatekeeper/internal/notification"
	"github.com/notehub/gatekeeper/internal/password"
	"github.com/notehub/gatekeeper/internal/repository/memory"
	"github.com/notehub/gatekeeper/internal/response"
	"github.com/notehub/gatekeeper/internal/service"
	"github.com/notehub/gatekeeper/internal/token"
)

type inbox struct {
	messages []notification.Message
}

func (i *inbox) Notify(_ context.Context, msg notification.Message) error {
	i.messages = append(i.messages, msg)
	return nil
}

func (i *inbox) last(t *testing.T) notification.Message {
	t.Helper()
	require.NotEmpty(t, i.messages)
	return i.messages[len(i.messages)-1]
}

type fakeGoogle struct {
	identity *federation.Identity
	err      error
}

func (f *fakeGoogle) Host() domain.Host { return domain.HostGoogle }

func (f *fakeGoogle) Identify(context.Context, string) (*federation.Identity, error) {
	return f.identity, f.err
}

type fakeAuthorizer struct{}

func (fakeAuthorizer) AuthorizationURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

type testAPI struct {
	app    *fiber.App
	users  *memory.UserRepository
	signer *token.Signer
	inbox  *inbox
	google *fakeGoogle
	hasher *password.Hasher
}

// asUser stands in for the auth middleware: it resolves the bearer as a user id.
func asUser(users domain.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Test-User")
		if id == "" {
			return c.Next()
		}
		user, err := users.FindByID(c.UserContext(), id)
		if err != nil {
			return HandleDomainError(c, err)
		}
		SetUserInContext(c, user)
		return c.Next()
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer, err := token.NewSigner("handler-secret", 30*time.Minute)
	require.NoError(t, err)

	api := &testAPI{
		users:  memory.NewUserRepository(),
		signer: signer,
		inbox:  &inbox{},
		google: &fakeGoogle{},
		hasher: password.NewHasher(bcrypt.MinCost),
	}

	engine := token.NewEngine(token.EngineConfig{Sessions: memory.NewSessionRepository(), Signer: signer, Logger: logger})
	auth := service.NewAuthService(service.AuthServiceConfig{
		Users:     api.users,
		Engine:    engine,
		Providers: []federation.Provider{api.google},
		Binder:    federation.NewBinder(api.users, logger),
		Hasher:    api.hasher,
		Notifier:  api.inbox,
		Logger:    logger,
	})
	accounts := service.NewUserService(service.UserServiceConfig{
		Users:    api.users,
		Signer:   signer,
		Hasher:   api.hasher,
		Notifier: api.inbox,
		Logger:   logger,
	})

	api.app = fiber.New()
	NewHealthHandler("test").Register(api.app)
	v1 := api.app.Group(APIPrefix, asUser(api.users))
	NewAuthHandler(AuthHandlerConfig{Auth: auth, GitHub: fakeAuthorizer{}, Logger: logger}).Register(v1, nil)
	NewUserHandler(accounts, logger).Register(v1)
	return api
}

func (api *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, response.Envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := api.app.Test(req)
	require.NoError(t, err)

	var env response.Envelope
	if resp.StatusCode != fiber.StatusNoContent && resp.StatusCode != fiber.StatusTemporaryRedirect {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func (api *testAPI) activeUser(t *testing.T, username, plain string) *domain.User {
	t.Helper()
	hash, err := api.hasher.Hash(plain)
	require.NoError(t, err)
	u, err := api.users.Create(context.Background(), domain.CreateUserInput{
		Host: domain.HostNative, Email: username + "@example.com", Username: username, PasswordHash: hash, Active: true,
	})
	require.NoError(t, err)
	return u
}

func tokenFrom(t *testing.T, env response.Envelope) TokenResponse {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out TokenResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp, env := api.do(t, fiber.MethodGet, "/health", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestLoginRefreshLogout(t *testing.T) {
	api := newTestAPI(t)
	api.activeUser(t, "ana", "correct-horse")
	device := uuid.NewString()

	resp, env := api.do(t, fiber.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: "ana", Password: "correct-horse"},
		map[string]string{HeaderDeviceID: device})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	login := tokenFrom(t, env)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, device, login.DeviceID)

	resp, env = api.do(t, fiber.MethodPost, "/api/v1/auth/refresh", nil,
		map[string]string{HeaderDeviceID: device, HeaderRefreshToken: login.RefreshToken})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	rotated := tokenFrom(t, env)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	resp, env = api.do(t, fiber.MethodGet, "/api/v1/auth/refresh", nil,
		map[string]string{HeaderDeviceID: device, HeaderRefreshToken: login.RefreshToken})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, response.ErrCodeSessionNotFound, env.Error.Code)

	resp, env = api.do(t, fiber.MethodPost, "/api/v1/auth/refresh", nil,
		map[string]string{HeaderDeviceID: uuid.NewString(), HeaderRefreshToken: rotated.RefreshToken})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.ErrCodeDeviceMismatch, env.Error.Code)

	resp, _ = api.do(t, fiber.MethodDelete, "/api/v1/auth/logout", nil,
		map[string]string{HeaderRefreshToken: rotated.RefreshToken})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = api.do(t, fiber.MethodDelete, "/api/v1/auth/logout", nil,
		map[string]string{HeaderRefreshToken: rotated.RefreshToken})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBoundaryErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
	}{
		{name: "login without device", method: fiber.MethodPost, path: "/api/v1/auth/login", body: LoginRequest{}},
		{name: "login with bad device", method: fiber.MethodPost, path: "/api/v1/auth/login", body: LoginRequest{}, headers: map[string]string{HeaderDeviceID: "abc"}},
		{name: "refresh without token", method: fiber.MethodPost, path: "/api/v1/auth/refresh", headers: map[string]string{HeaderDeviceID: uuid.NewString()}},
		{name: "refresh with bad token", method: fiber.MethodPost, path: "/api/v1/auth/refresh", headers: map[string]string{HeaderRefreshToken: "abc", HeaderDeviceID: uuid.NewString()}},
		{name: "refresh without device", method: fiber.MethodPost, path: "/api/v1/auth/refresh", headers: map[string]string{HeaderRefreshToken: uuid.NewString()}},
		{name: "logout without token", method: fiber.MethodDelete, path: "/api/v1/auth/logout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := api.do(t, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, response.ErrCodeInvalidPayload, env.Error.Code)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	api := newTestAPI(t)
	api.activeUser(t, "ana", "correct-horse")
	headers := map[string]string{HeaderDeviceID: uuid.NewString()}

	resp, env := api.do(t, fiber.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "ana", Password: "nope-nope"}, headers)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.ErrCodeBadCredentials, env.Error.Code)

	api.google.err = domain.ErrFederationFailed
	resp, env = api.do(t, fiber.MethodPost, "/api/v1/auth/login/google", GoogleLoginRequest{AccessToken: "t"}, headers)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, response.ErrCodeFederationFailed, env.Error.Code)
	assert.Equal(t, MsgFederationFailed, env.Error.Message)
}

func TestGoogleLogin(t *testing.T) {
	api := newTestAPI(t)
	api.google.identity = &federation.Identity{ProviderID: "g-1", Email: "ana@gmail.com", Username: "ana"}

	resp, env := api.do(t, fiber.MethodPost, "/api/v1/auth/login/google",
		GoogleLoginRequest{AccessToken: "t"}, map[string]string{HeaderDeviceID: uuid.NewString()})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	subject, err := api.signer.Validate(tokenFrom(t, env).AccessToken)
	require.NoError(t, err)
	user, err := api.users.FindByID(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, domain.HostGoogle, user.Host)
}

func TestGitHubAuthorizeAndStateCheck(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, fiber.MethodGet, "/api/v1/auth/github/authorize", nil, nil)
	require.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderLocation), "https://github.example/authorize?state=")

	var state string
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)

	resp, env := api.do(t, fiber.MethodPost, "/api/v1/auth/login/github",
		GitHubLoginRequest{Code: "c", State: "forged"},
		map[string]string{HeaderDeviceID: uuid.NewString(), fiber.HeaderCookie: oauthStateCookie + "=" + state})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, MsgInvalidState, env.Error.Message)

	resp, env = api.do(t, fiber.MethodPost, "/api/v1/auth/login/github",
		GitHubLoginRequest{Code: "c", State: state},
		map[string]string{HeaderDeviceID: uuid.NewString(), fiber.HeaderCookie: oauthStateCookie + "=" + state})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.ErrCodeHostNotAllowed, env.Error.Code)
}

func TestRegisterAndActivate(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.do(t, fiber.MethodPost, "/api/v1/users/register", map[string]string{
		"email": "ana@example.com", "username": "Ana", "password": "correct-horse",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	data := env.Data.(map[string]any)
	assert.Equal(t, "ana", data["username"])
	assert.Equal(t, false, data["active"])

	resp, env = api.do(t, fiber.MethodPost, "/api/v1/users/register", map[string]string{
		"email": "ana@example.com", "username": "other", "password": "correct-horse",
	}, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.ErrCodeEmailConflict, env.Error.Code)

	activation := api.inbox.last(t).Token
	bearer := map[string]string{fiber.HeaderAuthorization: "Bearer " + activation}

	resp, _ = api.do(t, fiber.MethodPatch, "/api/v1/users/activate", nil, bearer)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = api.do(t, fiber.MethodPatch, "/api/v1/users/activate", nil, bearer)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, response.ErrCodeAlreadyActive, env.Error.Code)

	resp, _ = api.do(t, fiber.MethodPatch, "/api/v1/users/activate", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	subject, err := api.signer.ValidateActivation(activation)
	require.NoError(t, err)
	access, _, err := api.signer.IssueAccess(subject)
	require.NoError(t, err)
	resp, env = api.do(t, fiber.MethodPatch, "/api/v1/users/activate", nil,
		map[string]string{fiber.HeaderAuthorization: "Bearer " + access})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.ErrCodeInvalidCredential, env.Error.Code)
}

func TestPasswordChangeFlow(t *testing.T) {
	api := newTestAPI(t)
	ana := api.activeUser(t, "ana", "correct-horse")

	resp, _ := api.do(t, fiber.MethodPost, "/api/v1/auth/change-password", EmailRequest{Email: ana.Email}, nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	scoped := api.inbox.last(t).Token

	resp, env := api.do(t, fiber.MethodPatch, "/api/v1/users/email", ChangeEmailRequest{Token: scoped, Email: "x@example.com"}, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.ErrCodeScopeNotAllowed, env.Error.Code)

	resp, _ = api.do(t, fiber.MethodPatch, "/api/v1/users/password", ChangePasswordRequest{Token: scoped, Password: "battery-staple"}, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = api.do(t, fiber.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "ana", Password: "battery-staple"},
		map[string]string{HeaderDeviceID: uuid.NewString()})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = api.do(t, fiber.MethodPost, "/api/v1/auth/secret-key", EmailRequest{Email: ana.Email}, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, response.ErrCodeHostNotAllowed, env.Error.Code)
}

func TestEmailChangeFlow(t *testing.T) {
	api := newTestAPI(t)
	ana := api.activeUser(t, "ana", "correct-horse")
	auth := map[string]string{"X-Test-User": ana.ID}

	resp, _ := api.do(t, fiber.MethodPost, "/api/v1/auth/change-email", nil, auth)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, env := api.do(t, fiber.MethodPatch, "/api/v1/users/email",
		ChangeEmailRequest{Token: api.inbox.last(t).Token, Email: "ana@new.example.com"}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana@new.example.com", env.Data.(map[string]any)["email"])

	resp, env = api.do(t, fiber.MethodGet, "/api/v1/users/me", nil, auth)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana@new.example.com", env.Data.(map[string]any)["email"])
}

func TestSessionsList(t *testing.T) {
	api := newTestAPI(t)
	ana := api.activeUser(t, "ana", "correct-horse")

	for range 2 {
		resp, _ := api.do(t, fiber.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "ana", Password: "correct-horse"},
			map[string]string{HeaderDeviceID: uuid.NewString()})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, env := api.do(t, fiber.MethodGet, "/api/v1/auth/sessions", nil, map[string]string{"X-Test-User": ana.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, env.Data, 2)
}

func TestHandleDomainErrorHidesUnknownErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return HandleDomainError(c, context.DeadlineExceeded) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.False(t, isKnownDomainError(context.DeadlineExceeded))
}
