package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funnel_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("funnel page not found")
	ErrSlugTaken = errors.New("funnel slug already in use")
)

const pgUniqueViolation = "23505"

type Repository struct {
	pool db.Querier
}

func New(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

type FunnelPage struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Slug              string
	Title             string
	LeadMagnetTitle   string
	IsPublished       bool
	QuestionSetID     *uuid.UUID
	ExperimentID      *uuid.UUID
	IsVariant         bool
	VariantOrdinal    int
	ThankYouHeadline  string
	ThankYouSubline   string
	VSLURL            string
	PassMessage       string
	LeadMagnetFileKey *string
	CreatedAt         time.Time
}

type Question struct {
	ID               uuid.UUID
	FunnelPageID     *uuid.UUID
	QuestionSetID    *uuid.UUID
	QuestionText     string
	QualifyingAnswer string
	IsRequired       bool
	DisplayOrder     int
}

type CreatePageParams struct {
	UserID            uuid.UUID
	Slug              string
	Title             string
	LeadMagnetTitle   string
	IsPublished       bool
	QuestionSetID     *uuid.UUID
	ThankYouHeadline  string
	ThankYouSubline   string
	VSLURL            string
	PassMessage       string
	LeadMagnetFileKey *string
}

type CreateQuestionParams struct {
	QuestionText     string
	QualifyingAnswer string
	IsRequired       bool
	DisplayOrder     int
}

const pageColumns = `
	id, user_id, slug, title, lead_magnet_title, is_published, question_set_id,
	experiment_id, is_variant, variant_ordinal, thankyou_headline, thankyou_subline,
	vsl_url, pass_message, lead_magnet_file_key, created_at`

func scanPage(row pgx.Row) (FunnelPage, error) {
	var p FunnelPage
	err := row.Scan(
		&p.ID, &p.UserID, &p.Slug, &p.Title, &p.LeadMagnetTitle, &p.IsPublished, &p.QuestionSetID,
		&p.ExperimentID, &p.IsVariant, &p.VariantOrdinal, &p.ThankYouHeadline, &p.ThankYouSubline,
		&p.VSLURL, &p.PassMessage, &p.LeadMagnetFileKey, &p.CreatedAt,
	)
	return p, err
}

// GetPage loads a page by id regardless of owner or publication state.
func (r *Repository) GetPage(ctx context.Context, id uuid.UUID) (FunnelPage, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM funnel_pages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return FunnelPage{}, ErrNotFound
	}
	if err != nil {
		return FunnelPage{}, err
	}
	return p, nil
}

// ListQuestions returns the questions bound to a page. A page attached to a
// shared question set uses the set's questions instead of its own.
func (r *Repository) ListQuestions(ctx context.Context, page FunnelPage) ([]Question, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if page.QuestionSetID != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT id, funnel_page_id, question_set_id, question_text, qualifying_answer, is_required, display_order
			FROM qualification_questions
			WHERE question_set_id = $1
			ORDER BY display_order ASC, id ASC
		`, *page.QuestionSetID)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, funnel_page_id, question_set_id, question_text, qualifying_answer, is_required, display_order
			FROM qualification_questions
			WHERE funnel_page_id = $1
			ORDER BY display_order ASC, id ASC
		`, page.ID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Question, 0)
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.FunnelPageID, &q.QuestionSetID, &q.QuestionText, &q.QualifyingAnswer, &q.IsRequired, &q.DisplayOrder); err != nil {
			return nil, err
		}
		items = append(items, q)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) CreatePage(ctx context.Context, params CreatePageParams) (FunnelPage, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `
		INSERT INTO funnel_pages (
			id, user_id, slug, title, lead_magnet_title, is_published, question_set_id,
			thankyou_headline, thankyou_subline, vsl_url, pass_message, lead_magnet_file_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+pageColumns,
		uuid.New(), params.UserID, params.Slug, params.Title, params.LeadMagnetTitle, params.IsPublished,
		params.QuestionSetID, params.ThankYouHeadline, params.ThankYouSubline, params.VSLURL,
		params.PassMessage, params.LeadMagnetFileKey,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return FunnelPage{}, ErrSlugTaken
		}
		return FunnelPage{}, err
	}
	return p, nil
}

// CreateQuestions inserts all questions for a page in one batch.
func (r *Repository) CreateQuestions(ctx context.Context, pageID uuid.UUID, params []CreateQuestionParams) ([]Question, error) {
	if len(params) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, q := range params {
		batch.Queue(`
			INSERT INTO qualification_questions (id, funnel_page_id, question_text, qualifying_answer, is_required, display_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), pageID, q.QuestionText, q.QualifyingAnswer, q.IsRequired, q.DisplayOrder)
	}

	results := r.pool.SendBatch(ctx, batch)
	for i := range params {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, err
	}

	return r.ListQuestions(ctx, FunnelPage{ID: pageID})
}

// CreateVariantPages copies control into one variant page per overlay, tagged
// with the experiment. Ordinals start at 1; the control is ordinal 0.
func (r *Repository) CreateVariantPages(ctx context.Context, control FunnelPage, experimentID uuid.UUID, overlays []FunnelPage) ([]FunnelPage, error) {
	batch := &pgx.Batch{}
	for i, v := range overlays {
		batch.Queue(`
			INSERT INTO funnel_pages (
				id, user_id, slug, title, lead_magnet_title, is_published, question_set_id,
				experiment_id, is_variant, variant_ordinal, thankyou_headline, thankyou_subline,
				vsl_url, pass_message, lead_magnet_file_key
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11, $12, $13, $14)
			RETURNING `+pageColumns,
			uuid.New(), control.UserID, control.Slug, control.Title, control.LeadMagnetTitle, control.IsPublished,
			control.QuestionSetID, experimentID, i+1, v.ThankYouHeadline, v.ThankYouSubline,
			v.VSLURL, v.PassMessage, control.LeadMagnetFileKey,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	pages := make([]FunnelPage, 0, len(overlays))
	for range overlays {
		p, err := scanPage(results.QueryRow())
		if err != nil {
			_ = results.Close()
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return pages, nil
}

// ListVariantPages returns the variant pages of an experiment in rendering order.
func (r *Repository) ListVariantPages(ctx context.Context, experimentID uuid.UUID) ([]FunnelPage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pageColumns+`
		FROM funnel_pages
		WHERE experiment_id = $1 AND is_variant = TRUE
		ORDER BY variant_ordinal ASC, created_at ASC, id ASC
	`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]FunnelPage, 0)
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// DeletePage removes a page owned by userID. Questions cascade.
func (r *Repository) DeletePage(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM funnel_pages WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
