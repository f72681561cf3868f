package saga

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"funnel_backend/platform/logger"
)

func TestRunCompensatesWhenDependentFails(t *testing.T) {
	dependentErr := errors.New("questions insert failed")
	var deleted []string

	step := TwoStep[string]{
		Name:      "create_funnel",
		Primary:   func(context.Context) (string, error) { return "page-1", nil },
		Dependent: func(context.Context, string) error { return dependentErr },
		Compensate: func(_ context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}

	_, err := step.Run(context.Background(), logger.Discard())
	if !errors.Is(err, dependentErr) {
		t.Fatalf("expected dependent error, got %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "page-1" {
		t.Fatalf("expected primary to be deleted once, got %v", deleted)
	}
}

func TestRunReturnsOriginalErrorWhenCompensationFails(t *testing.T) {
	dependentErr := errors.New("variant insert failed")
	var buf bytes.Buffer

	step := TwoStep[string]{
		Name:       "create_experiment",
		Primary:    func(context.Context) (string, error) { return "exp-9", nil },
		Dependent:  func(context.Context, string) error { return dependentErr },
		Compensate: func(context.Context, string) error { return errors.New("connection reset") },
	}

	_, err := step.Run(context.Background(), logger.NewWithWriter("test", &buf))
	if !errors.Is(err, dependentErr) {
		t.Fatalf("expected dependent error to win, got %v", err)
	}
	if !strings.Contains(buf.String(), "exp-9") || !strings.Contains(buf.String(), "connection reset") {
		t.Fatalf("expected compensation failure to be logged, got %q", buf.String())
	}
}

func TestRunSkipsDependentWhenPrimaryFails(t *testing.T) {
	ran := false
	step := TwoStep[int]{
		Name:       "create_funnel",
		Primary:    func(context.Context) (int, error) { return 0, errors.New("slug taken") },
		Dependent:  func(context.Context, int) error { ran = true; return nil },
		Compensate: func(context.Context, int) error { ran = true; return nil },
	}

	if _, err := step.Run(context.Background(), logger.Discard()); err == nil {
		t.Fatalf("expected primary error")
	}
	if ran {
		t.Fatalf("dependent or compensation ran after primary failure")
	}
}

func TestRunCompensatesOnCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensationCtxErr error

	step := TwoStep[string]{
		Name:    "create_funnel",
		Primary: func(context.Context) (string, error) { return "page-2", nil },
		Dependent: func(context.Context, string) error {
			cancel()
			return context.Canceled
		},
		Compensate: func(cctx context.Context, _ string) error {
			compensationCtxErr = cctx.Err()
			return nil
		},
	}

	_, _ = step.Run(ctx, logger.Discard())
	if compensationCtxErr != nil {
		t.Fatalf("compensation ran on a cancelled context: %v", compensationCtxErr)
	}
}

func TestRunReturnsPrimaryOnSuccess(t *testing.T) {
	step := TwoStep[string]{
		Name:       "create_funnel",
		Primary:    func(context.Context) (string, error) { return "page-3", nil },
		Dependent:  func(context.Context, string) error { return nil },
		Compensate: func(context.Context, string) error { t.Fatalf("unexpected compensation"); return nil },
	}

	got, err := step.Run(context.Background(), logger.Discard())
	if err != nil || got != "page-3" {
		t.Fatalf("Run() = %q, %v", got, err)
	}
}
