// Package saga runs composite creations that must not leave a half-written primary row.
package saga

import (
	"context"
	"fmt"
	"time"

	"funnel_backend/platform/logger"
)

const compensationTimeout = 5 * time.Second

// TwoStep creates a primary record and then its dependents. When the dependent
// step fails the primary is deleted again and the dependent error is returned.
// A failed compensation is logged and does not replace that error.
type TwoStep[T any] struct {
	Name       string
	Primary    func(ctx context.Context) (T, error)
	Dependent  func(ctx context.Context, primary T) error
	Compensate func(ctx context.Context, primary T) error
	// ID renders the primary for logs.
	ID func(primary T) string
}

// Run executes the steps in order.
func (s TwoStep[T]) Run(ctx context.Context, log *logger.Logger) (T, error) {
	primary, err := s.Primary(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := s.Dependent(ctx, primary); err != nil {
		s.compensate(ctx, log, primary)
		var zero T
		return zero, err
	}

	return primary, nil
}

// compensate runs on a context that survives request cancellation.
func (s TwoStep[T]) compensate(ctx context.Context, log *logger.Logger, primary T) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.Compensate(cctx, primary); err != nil {
		log.WithContext(ctx).CompensationFailed(s.Name, s.describe(primary), err)
	}
}

func (s TwoStep[T]) describe(primary T) string {
	if s.ID != nil {
		return s.ID(primary)
	}
	return fmt.Sprint(primary)
}
