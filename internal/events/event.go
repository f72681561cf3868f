// Package events provides domain event definitions for the funnel pipeline.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"funnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Triggers recorded on a CaptureEvent.
const (
	TriggerCaptured  = "captured"
	TriggerQualified = "qualified"
)

// CaptureEvent is the normalized lead snapshot handed to delivery targets.
// A fresh one is built on every capture and every qualification.
type CaptureEvent struct {
	LeadID          uuid.UUID
	FunnelPageID    uuid.UUID
	UserID          uuid.UUID
	Email           string
	Name            string
	IsQualified     *bool
	Answers         map[string]string
	UTMSource       string
	UTMMedium       string
	UTMCampaign     string
	FunnelSlug      string
	LeadMagnetTitle string
	CreatedAt       time.Time
	Trigger         string

	// HasQuestions is set when the funnel asks qualification questions, so a
	// verdict is expected to follow the capture.
	HasQuestions bool
}

// OutboundPayload is the JSON body sent to owner-configured endpoints.
type OutboundPayload struct {
	LeadID               uuid.UUID         `json:"leadId"`
	Email                string            `json:"email"`
	Name                 *string           `json:"name"`
	IsQualified          *bool             `json:"isQualified"`
	QualificationAnswers map[string]string `json:"qualificationAnswers"`
	LeadMagnetTitle      string            `json:"leadMagnetTitle"`
	FunnelPageSlug       string            `json:"funnelPageSlug"`
	UTMSource            *string           `json:"utmSource"`
	UTMMedium            *string           `json:"utmMedium"`
	UTMCampaign          *string           `json:"utmCampaign"`
	CreatedAt            time.Time         `json:"createdAt"`
}

// Payload renders the event for webhooks; empty optional fields become null.
func (e CaptureEvent) Payload() OutboundPayload {
	return OutboundPayload{
		LeadID:               e.LeadID,
		Email:                e.Email,
		Name:                 nullable(e.Name),
		IsQualified:          e.IsQualified,
		QualificationAnswers: e.Answers,
		LeadMagnetTitle:      e.LeadMagnetTitle,
		FunnelPageSlug:       e.FunnelSlug,
		UTMSource:            nullable(e.UTMSource),
		UTMMedium:            nullable(e.UTMMedium),
		UTMCampaign:          nullable(e.UTMCampaign),
		CreatedAt:            e.CreatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// =============================================================================
// Funnel Lead Events
// =============================================================================

// LeadCaptured is published after a lead row is written by the public capture endpoint.
type LeadCaptured struct {
	BaseEvent
	Lead CaptureEvent
}

func (e LeadCaptured) EventName() string { return "funnel.lead.captured" }

// LeadQualified is published after answers and verdict are written onto a lead.
type LeadQualified struct {
	BaseEvent
	Lead CaptureEvent
}

func (e LeadQualified) EventName() string { return "funnel.lead.qualified" }

// LeadEvent is implemented by both lead events so handlers can read the snapshot.
type LeadEvent interface {
	Event
	Capture() CaptureEvent
}

func (e LeadCaptured) Capture() CaptureEvent  { return e.Lead }
func (e LeadQualified) Capture() CaptureEvent { return e.Lead }
