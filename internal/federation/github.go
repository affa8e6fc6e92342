package federation

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	githubAuthorizeURL = "https://github.com/login/oauth/authorize"
	githubTokenURL     = "https://github.com/login/oauth/access_token"
	githubAPIURL       = "https://api.github.com"
)

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client
	Timeout      time.Duration
	Logger       *slog.Logger
}

type gitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider exchanges an authorization code and reads the account and its
// email addresses.
type GitHubProvider struct {
	oauth      *oauth2.Config
	apiURL     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = githubTokenURL
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = githubAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   githubAuthorizeURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"read:user", "user:email"},
		},
		apiURL:     apiURL,
		httpClient: defaultHTTPClient(cfg.HTTPClient),
		timeout:    timeout,
		logger:     logger.With("component", "federation", "provider", string(domain.HostGitHub)),
	}
}

func (p *GitHubProvider) Host() domain.Host {
	return domain.HostGitHub
}

// Identify exchanges code for an access token, then fetches the profile and
// the email list in parallel.
func (p *GitHubProvider) Identify(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, domain.ErrFederationFailed
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok, err := p.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), code)
	if err != nil {
		p.logger.Warn("code exchange failed", "error", err)
		return nil, domain.ErrFederationFailed
	}

	client := bearerClient(ctx, p.httpClient, tok.AccessToken)

	var (
		user   gitHubUser
		emails []gitHubEmail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return getJSON(gctx, client, p.apiURL+"/user", &user)
	})
	g.Go(func() error {
		return getJSON(gctx, client, p.apiURL+"/user/emails", &emails)
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("account lookup failed", "error", err)
		return nil, domain.ErrFederationFailed
	}

	if user.ID == 0 {
		p.logger.Warn("account response has no id")
		return nil, domain.ErrFederationFailed
	}

	email, ok := pickEmail(emails)
	if !ok {
		return nil, domain.ErrMissingEmail
	}

	return &Identity{
		ProviderID:  strconv.FormatInt(user.ID, 10),
		Email:       email,
		Username:    user.Login,
		DisplayName: user.Name,
		AvatarURL:   user.AvatarURL,
	}, nil
}

// AuthorizationURL is where the client sends the user to obtain a code.
func (p *GitHubProvider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// pickEmail prefers primary and verified, then verified, then primary, then
// the first address listed. An unverified address never beats a verified one.
func pickEmail(emails []gitHubEmail) (string, bool) {
	if len(emails) == 0 {
		return "", false
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, true
		}
	}
	return emails[0].Email, emails[0].Email != ""
}
