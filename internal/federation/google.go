package federation

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/notehub/gatekeeper/internal/domain"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

type GoogleConfig struct {
	UserInfoURL string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *slog.Logger
}

type googleUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Name      string `json:"name"`
	Picture   string `json:"picture"`
}

// GoogleProvider resolves a Google OAuth access token in a single userinfo call.
type GoogleProvider struct {
	userInfoURL string
	httpClient  *http.Client
	timeout     time.Duration
	logger      *slog.Logger
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	p := &GoogleProvider{
		userInfoURL: cfg.UserInfoURL,
		httpClient:  defaultHTTPClient(cfg.HTTPClient),
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
	if p.userInfoURL == "" {
		p.userInfoURL = googleUserInfoURL
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "federation", "provider", string(domain.HostGoogle))
	return p
}

func (p *GoogleProvider) Host() domain.Host {
	return domain.HostGoogle
}

func (p *GoogleProvider) Identify(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, domain.ErrFederationFailed
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var user googleUser
	client := bearerClient(ctx, p.httpClient, accessToken)
	if err := getJSON(ctx, client, p.userInfoURL, &user); err != nil {
		p.logger.Warn("userinfo request failed", "error", err)
		return nil, domain.ErrFederationFailed
	}

	if user.ID == "" {
		p.logger.Warn("userinfo response has no id")
		return nil, domain.ErrFederationFailed
	}
	if user.Email == "" {
		return nil, domain.ErrMissingEmail
	}

	return &Identity{
		ProviderID:  user.ID,
		Email:       user.Email,
		Username:    user.GivenName,
		DisplayName: user.Name,
		AvatarURL:   user.Picture,
	}, nil
}
