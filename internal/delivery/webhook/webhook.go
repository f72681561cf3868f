// Package webhook posts lead events to the funnel owner's webhook URL.
// Each event gets exactly one attempt.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/fanout"
	"funnel_backend/internal/integrations"
)

const (
	HeaderSignature = "X-Funnel-Signature"
	HeaderEvent     = "X-Funnel-Event"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Sender struct {
	settings integrations.Reader
	client   Doer
	timeout  time.Duration
}

func New(settings integrations.Reader, client Doer, timeout time.Duration) *Sender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Sender{settings: settings, client: client, timeout: timeout}
}

func (s *Sender) Name() string { return "webhook" }

func (s *Sender) Deliver(ctx context.Context, event events.CaptureEvent) error {
	cfg, err := s.settings.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load integration settings: %w", err)
	}
	if !cfg.HasWebhook() {
		return fanout.ErrSkipped
	}

	body, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, "lead."+event.Trigger)
	if cfg.WebhookSecret != "" {
		req.Header.Set(HeaderSignature, Sign(cfg.WebhookSecret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ fanout.Target = (*Sender)(nil)
