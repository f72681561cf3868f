package repository

import (
	"context"
	"errors"
	"time"

	"funnel_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("experiment not found")
	ErrAlreadyRunning = errors.New("funnel page already has a running experiment")
)

// Experiment statuses.
const (
	StatusDraft     = "draft"
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

type Repository struct {
	pool db.Querier
}

func New(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

type Experiment struct {
	ID           uuid.UUID
	FunnelPageID uuid.UUID
	UserID       uuid.UUID
	Status       string
	TestField    string
	CreatedAt    time.Time
}

type CreateExperimentParams struct {
	FunnelPageID uuid.UUID
	UserID       uuid.UUID
	Status       string
	TestField    string
}

// GetRunning returns the running experiment of a page, or ErrNotFound.
func (r *Repository) GetRunning(ctx context.Context, funnelPageID uuid.UUID) (Experiment, error) {
	var e Experiment
	err := r.pool.QueryRow(ctx, `
		SELECT id, funnel_page_id, user_id, status, test_field, created_at
		FROM funnel_experiments
		WHERE funnel_page_id = $1 AND status = 'running'
		LIMIT 1
	`, funnelPageID).Scan(&e.ID, &e.FunnelPageID, &e.UserID, &e.Status, &e.TestField, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Experiment{}, ErrNotFound
	}
	if err != nil {
		return Experiment{}, err
	}
	return e, nil
}

// Create inserts an experiment. The partial unique index turns a second
// running experiment on the same page into ErrAlreadyRunning.
func (r *Repository) Create(ctx context.Context, params CreateExperimentParams) (Experiment, error) {
	var e Experiment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO funnel_experiments (id, funnel_page_id, user_id, status, test_field)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, funnel_page_id, user_id, status, test_field, created_at
	`, uuid.New(), params.FunnelPageID, params.UserID, params.Status, params.TestField).Scan(
		&e.ID, &e.FunnelPageID, &e.UserID, &e.Status, &e.TestField, &e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Experiment{}, ErrAlreadyRunning
		}
		return Experiment{}, err
	}
	return e, nil
}

// Delete removes an experiment and any variant pages tagged with it.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM funnel_pages WHERE experiment_id = $1 AND is_variant = TRUE AND user_id = $2`, id, userID)
	batch.Queue(`DELETE FROM funnel_experiments WHERE id = $1 AND user_id = $2`, id, userID)

	results := r.pool.SendBatch(ctx, batch)
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return err
	}
	tag, err := results.Exec()
	if err != nil {
		_ = results.Close()
		return err
	}
	if err := results.Close(); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
