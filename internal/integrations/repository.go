// Package integrations reads each funnel owner's delivery settings.
// Settings are written by the dashboard and only read here.
package integrations

import (
	"context"
	"errors"

	"funnel_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Settings are the per-owner credentials and switches for every delivery target.
// The zero value disables everything.
type Settings struct {
	UserID                 uuid.UUID
	WebhookURL             string
	WebhookSecret          string
	EmailAutomationEnabled bool
	EmailFromName          string
	MetaPixelID            string
	MetaAccessToken        string
	HeyReachAPIKey         string
	HeyReachCampaignID     string
}

// HasWebhook reports whether a webhook URL is configured.
func (s Settings) HasWebhook() bool { return s.WebhookURL != "" }

// HasPixel reports whether Meta Conversions API credentials are configured.
func (s Settings) HasPixel() bool { return s.MetaPixelID != "" && s.MetaAccessToken != "" }

// HasHeyReach reports whether a HeyReach campaign is configured.
func (s Settings) HasHeyReach() bool { return s.HeyReachAPIKey != "" && s.HeyReachCampaignID != "" }

// Reader is what delivery targets depend on.
type Reader interface {
	Get(ctx context.Context, userID uuid.UUID) (Settings, error)
}

type Repository struct {
	pool db.Querier
}

func New(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// Get returns the owner's settings, or zero Settings when the owner has none.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (Settings, error) {
	var (
		s                                                        Settings
		webhookURL, webhookSecret, fromName, pixelID, pixelToken *string
		heyReachKey, heyReachCampaign                            *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, webhook_url, webhook_secret, email_automation_enabled, email_from_name,
			meta_pixel_id, meta_access_token, heyreach_api_key, heyreach_campaign_id
		FROM funnel_integrations
		WHERE user_id = $1
	`, userID).Scan(
		&s.UserID, &webhookURL, &webhookSecret, &s.EmailAutomationEnabled, &fromName,
		&pixelID, &pixelToken, &heyReachKey, &heyReachCampaign,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{UserID: userID}, nil
	}
	if err != nil {
		return Settings{}, err
	}

	s.WebhookURL = deref(webhookURL)
	s.WebhookSecret = deref(webhookSecret)
	s.EmailFromName = deref(fromName)
	s.MetaPixelID = deref(pixelID)
	s.MetaAccessToken = deref(pixelToken)
	s.HeyReachAPIKey = deref(heyReachKey)
	s.HeyReachCampaignID = deref(heyReachCampaign)
	return s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
