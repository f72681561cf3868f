// Package metrics records funnel pipeline counters.
// This is part of the platform layer and contains no business logic.
package metrics

import "context"

// Delivery outcomes reported by the fan-out dispatcher.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Recorder is implemented by the OTel exporter and the no-op fallback.
type Recorder interface {
	LeadCaptured(ctx context.Context)
	LeadQualified(ctx context.Context, qualified bool)
	RateLimited(ctx context.Context, path string)
	Delivery(ctx context.Context, target, event, outcome string)
	Close(ctx context.Context) error
}

// Noop drops every measurement.
type Noop struct{}

// NewNoop returns a recorder for graceful degradation when no collector is configured.
func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) LeadCaptured(context.Context)                     {}
func (Noop) LeadQualified(context.Context, bool)              {}
func (Noop) RateLimited(context.Context, string)              {}
func (Noop) Delivery(context.Context, string, string, string) {}
func (Noop) Close(context.Context) error                      { return nil }

var _ Recorder = Noop{}
