// Package pixel reports lead conversions to the Meta Conversions API.
package pixel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/fanout"
	"funnel_backend/internal/integrations"
)

// Conversion event names.
const (
	EventLead          = "Lead"
	EventQualifiedLead = "QualifiedLead"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Notifier struct {
	settings integrations.Reader
	client   Doer
	graphURL string
	timeout  time.Duration
}

func New(settings integrations.Reader, client Doer, graphURL string, timeout time.Duration) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Notifier{
		settings: settings,
		client:   client,
		graphURL: strings.TrimRight(graphURL, "/"),
		timeout:  timeout,
	}
}

func (n *Notifier) Name() string { return "pixel" }

type userData struct {
	Email []string `json:"em"`
}

type serverEvent struct {
	EventName    string            `json:"event_name"`
	EventTime    int64             `json:"event_time"`
	EventID      string            `json:"event_id"`
	ActionSource string            `json:"action_source"`
	UserData     userData          `json:"user_data"`
	CustomData   map[string]string `json:"custom_data,omitempty"`
}

type eventsRequest struct {
	Data []serverEvent `json:"data"`
}

// EventFor maps a capture event to a conversion name. A false verdict reports nothing.
func EventFor(event events.CaptureEvent) (string, bool) {
	if event.Trigger != events.TriggerQualified {
		return EventLead, true
	}
	if event.IsQualified != nil && *event.IsQualified {
		return EventQualifiedLead, true
	}
	return "", false
}

func (n *Notifier) Deliver(ctx context.Context, event events.CaptureEvent) error {
	name, ok := EventFor(event)
	if !ok {
		return fanout.ErrSkipped
	}

	cfg, err := n.settings.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load integration settings: %w", err)
	}
	if !cfg.HasPixel() {
		return fanout.ErrSkipped
	}

	custom := map[string]string{"funnel": event.FunnelSlug}
	if event.UTMSource != "" {
		custom["utm_source"] = event.UTMSource
	}
	if event.UTMCampaign != "" {
		custom["utm_campaign"] = event.UTMCampaign
	}

	body, err := json.Marshal(eventsRequest{Data: []serverEvent{{
		EventName:    name,
		EventTime:    time.Now().Unix(),
		EventID:      event.LeadID.String() + ":" + name,
		ActionSource: "website",
		UserData:     userData{Email: []string{HashEmail(event.Email)}},
		CustomData:   custom,
	}}})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s", n.graphURL, url.PathEscape(cfg.MetaPixelID), url.QueryEscape(cfg.MetaAccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pixel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL carries the access token; keep it out of logs.
		return fmt.Errorf("pixel request failed for pixel %s", cfg.MetaPixelID)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("conversions api returned status %d", resp.StatusCode)
	}
	return nil
}

// HashEmail normalizes and hashes an email the way the Conversions API expects.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

var _ fanout.Target = (*Notifier)(nil)
