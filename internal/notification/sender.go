package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Kind string

const (
	KindActivation     Kind = "account_activation"
	KindPasswordChange Kind = "password_change"
	KindEmailChange    Kind = "email_change"
	KindSecretKey      Kind = "secret_key"
)

// Message is an account notice addressed to one user. Token carries the
// credential or key the user needs to complete the flow.
type Message struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier records messages instead of delivering them. Tokens are only
// written at debug level.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "account notice", "kind", msg.Kind, "to", msg.To)
	n.logger.DebugContext(ctx, "account notice token", "kind", msg.Kind, "to", msg.To, "token", msg.Token)
	return nil
}

// WebhookNotifier posts messages as JSON to a mail relay.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notice webhook returned %d", resp.StatusCode)
	}
	return nil
}
