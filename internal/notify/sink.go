package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidWebhookURL = errors.New("invalid webhook url")

// Discord webhook URL prefixes accepted by configuration validation.
var discordWebhookPrefixes = []string{
	"https://discord.com/api/webhooks/",
	"https://discordapp.com/api/webhooks/",
}

// ValidateWebhookURL enforces the Discord webhook shape. Applied when a
// destination is configured, not on every send, so tests and self-hosted
// relays can point sinks anywhere.
func ValidateWebhookURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWebhookURL)
	}
	for _, prefix := range discordWebhookPrefixes {
		if strings.HasPrefix(raw, prefix) && len(raw) > len(prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
}

// Sink delivers one notification message to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// WebhookSink posts messages to a single webhook URL. One attempt per
// message, no retry, no queue: kill notifications are a best-effort side
// channel and a stale retry is worse than a miss.
type WebhookSink struct {
	name   string
	url    string
	client *http.Client
}

func NewWebhookSink(name, rawURL string, client *http.Client) (*WebhookSink, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWebhookURL, rawURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{name: name, url: rawURL, client: client}, nil
}

func (s *WebhookSink) Name() string {
	return s.name
}

func (s *WebhookSink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s: unexpected status %d", s.name, resp.StatusCode)
	}
	return nil
}
