// Package fanout delivers lead events to every configured downstream target
// without holding up the request that produced them.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"funnel_backend/internal/events"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
)

// ErrSkipped is returned by a target that has nothing to do for this event,
// e.g. the owner has not configured it.
var ErrSkipped = errors.New("delivery skipped")

// Target is one downstream consumer of lead events.
type Target interface {
	Name() string
	Deliver(ctx context.Context, event events.CaptureEvent) error
}

// Dispatcher publishes lead events on the bus. Each target is its own
// subscriber so one target failing never stops another from being tried.
type Dispatcher struct {
	bus     events.Bus
	log     *logger.Logger
	metrics metrics.Recorder
}

// New subscribes every target to both lead events.
func New(bus events.Bus, log *logger.Logger, rec metrics.Recorder, targets ...Target) *Dispatcher {
	d := &Dispatcher{bus: bus, log: log, metrics: rec}
	for _, t := range targets {
		h := &targetHandler{target: t, log: log, metrics: rec}
		bus.Subscribe(events.LeadCaptured{}.EventName(), h)
		bus.Subscribe(events.LeadQualified{}.EventName(), h)
	}
	return d
}

// Dispatch queues the event and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.CaptureEvent) {
	if event.Trigger == events.TriggerQualified {
		d.bus.Publish(ctx, events.LeadQualified{BaseEvent: events.NewBaseEvent(), Lead: event})
		return
	}
	d.bus.Publish(ctx, events.LeadCaptured{BaseEvent: events.NewBaseEvent(), Lead: event})
}

type targetHandler struct {
	target  Target
	log     *logger.Logger
	metrics metrics.Recorder
}

func (h *targetHandler) Name() string { return h.target.Name() }

// Handle never returns an error: failures end here, logged with the lead id.
func (h *targetHandler) Handle(ctx context.Context, event events.Event) error {
	le, ok := event.(events.LeadEvent)
	if !ok {
		return nil
	}
	capture := le.Capture()

	err := h.deliver(ctx, capture)
	switch {
	case err == nil:
		h.metrics.Delivery(ctx, h.target.Name(), event.EventName(), metrics.OutcomeDelivered)
	case errors.Is(err, ErrSkipped):
		h.metrics.Delivery(ctx, h.target.Name(), event.EventName(), metrics.OutcomeSkipped)
	default:
		h.log.WithContext(ctx).DeliveryFailed(h.target.Name(), event.EventName(), capture.LeadID.String(), err)
		h.metrics.Delivery(ctx, h.target.Name(), event.EventName(), metrics.OutcomeFailed)
	}
	return nil
}

func (h *targetHandler) deliver(ctx context.Context, capture events.CaptureEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.target.Deliver(ctx, capture)
}
