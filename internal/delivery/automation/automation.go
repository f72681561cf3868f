// Package automation hands lead events to the email-automation worker queue.
package automation

import (
	"context"
	"fmt"

	"funnel_backend/internal/events"
	"funnel_backend/internal/fanout"
	"funnel_backend/internal/integrations"
	"funnel_backend/internal/scheduler"
)

type Trigger struct {
	settings integrations.Reader
	queue    scheduler.EmailAutomationEnqueuer
}

func New(settings integrations.Reader, queue scheduler.EmailAutomationEnqueuer) *Trigger {
	return &Trigger{settings: settings, queue: queue}
}

func (t *Trigger) Name() string { return "email_automation" }

// Deliver enqueues the task only; sending happens in the scheduler process.
func (t *Trigger) Deliver(ctx context.Context, event events.CaptureEvent) error {
	if event.Trigger == events.TriggerQualified && (event.IsQualified == nil || !*event.IsQualified) {
		return fanout.ErrSkipped
	}

	cfg, err := t.settings.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load integration settings: %w", err)
	}
	if !cfg.EmailAutomationEnabled {
		return fanout.ErrSkipped
	}

	err = t.queue.EnqueueEmailAutomation(ctx, scheduler.EmailAutomationPayload{
		LeadID:       event.LeadID.String(),
		FunnelPageID: event.FunnelPageID.String(),
		UserID:       event.UserID.String(),
		Email:        event.Email,
		Name:         event.Name,
		Trigger:      event.Trigger,
		IsQualified:  event.IsQualified,
	})
	if err != nil {
		return fmt.Errorf("enqueue email automation: %w", err)
	}
	return nil
}

var _ fanout.Target = (*Trigger)(nil)
