package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	DefaultTimeout = 10 * time.Second

	errFmtCreateRequest    = "create request: %w"
	errFmtSendRequest      = "send request: %w"
	errFmtUnexpectedStatus = "unexpected status %d: %s"
	errFmtDecodeResponse   = "decode response: %w"
)

// Identity is the provider-neutral view of an external account.
type Identity struct {
	ProviderID  string
	Email       string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Provider turns a client-supplied credential into an Identity.
type Provider interface {
	Host() domain.Host
	Identify(ctx context.Context, credential string) (*Identity, error)
}

// bearerClient returns an http.Client that authenticates every request with
// accessToken and sends it through base.
func bearerClient(ctx context.Context, base *http.Client, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf(errFmtCreateRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf(errFmtSendRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf(errFmtUnexpectedStatus, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf(errFmtDecodeResponse, err)
	}
	return nil
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}
