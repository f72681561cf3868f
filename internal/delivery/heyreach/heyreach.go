// Package heyreach pushes qualified leads into the owner's HeyReach campaign.
// It is the only delivery target that retries.
package heyreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/fanout"
	"funnel_backend/internal/integrations"

	"golang.org/x/time/rate"
)

const addLeadsPath = "/campaign/AddLeadsToCampaignV2"

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	settings    integrations.Reader
	http        Doer
	baseURL     string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	limiter     *rate.Limiter
	timeout     time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithBackoff overrides the retry delays.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// New builds a client sharing one outbound rate limiter across all owners.
func New(settings integrations.Reader, baseURL string, maxAttempts int, perSecond float64, timeout time.Duration, opts ...Option) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	burst := int(math.Max(1, math.Ceil(perSecond)))
	c := &Client{
		settings:    settings,
		http:        &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: maxAttempts,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    8 * time.Second,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "heyreach" }

type leadPayload struct {
	FirstName    string        `json:"firstName,omitempty"`
	EmailAddress string        `json:"emailAddress"`
	CustomFields []customField `json:"customUserFields,omitempty"`
}

type customField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type accountLeadPair struct {
	Lead leadPayload `json:"lead"`
}

type addLeadsRequest struct {
	CampaignID       string            `json:"campaignId"`
	AccountLeadPairs []accountLeadPair `json:"accountLeadPairs"`
}

// ShouldPush reports whether event is the one that carries the lead's final state.
func ShouldPush(event events.CaptureEvent) bool {
	if event.IsQualified != nil && !*event.IsQualified {
		return false
	}
	if event.Trigger == events.TriggerQualified {
		return event.HasQuestions
	}
	return !event.HasQuestions
}

// Deliver pushes each lead to the campaign once, on its final state: at capture for funnels
// without questions, and on a true verdict for funnels with questions. Unconfigured owners
// are skipped.
func (c *Client) Deliver(ctx context.Context, event events.CaptureEvent) error {
	if !ShouldPush(event) {
		return fanout.ErrSkipped
	}

	cfg, err := c.settings.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load integration settings: %w", err)
	}
	if !cfg.HasHeyReach() {
		return fanout.ErrSkipped
	}

	fields := []customField{{Name: "funnel", Value: event.FunnelSlug}}
	if event.UTMCampaign != "" {
		fields = append(fields, customField{Name: "utm_campaign", Value: event.UTMCampaign})
	}
	body, err := json.Marshal(addLeadsRequest{
		CampaignID: cfg.HeyReachCampaignID,
		AccountLeadPairs: []accountLeadPair{{Lead: leadPayload{
			FirstName:    event.Name,
			EmailAddress: event.Email,
			CustomFields: fields,
		}}},
	})
	if err != nil {
		return err
	}

	return c.post(ctx, cfg.HeyReachAPIKey, body)
}

// post retries on transport errors, 408, 429 and 5xx, up to maxAttempts in total.
func (c *Client) post(ctx context.Context, apiKey string, body []byte) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(c.delay(attempt - 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("heyreach retry aborted: %w (last error: %v)", ctx.Err(), lastErr)
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("heyreach throttle: %w", err)
		}

		status, err := c.attempt(ctx, apiKey, body)
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return err
			}
			continue
		}

		lastErr = fmt.Errorf("heyreach returned status %d", status)
		if !retryable(status) {
			return lastErr
		}
	}

	return fmt.Errorf("heyreach gave up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, apiKey string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+addLeadsPath, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// delay is exponential with full jitter, floored at a tenth of the base delay.
func (c *Client) delay(retry int) time.Duration {
	exp := float64(c.baseDelay) * math.Pow(2, float64(retry-1))
	if exp > float64(c.maxDelay) {
		exp = float64(c.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if floor := c.baseDelay / 10; d < floor {
		d = floor
	}
	return d
}

func retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

var _ fanout.Target = (*Client)(nil)
