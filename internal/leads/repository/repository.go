package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"funnel_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool db.Querier
}

func New(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                   uuid.UUID
	FunnelPageID         uuid.UUID
	UserID               uuid.UUID
	Email                string
	Name                 *string
	UTMSource            *string
	UTMMedium            *string
	UTMCampaign          *string
	QualificationAnswers map[string]string
	IsQualified          *bool
	CreatedAt            time.Time
}

type CreateLeadParams struct {
	FunnelPageID uuid.UUID
	UserID       uuid.UUID
	Email        string
	Name         *string
	UTMSource    *string
	UTMMedium    *string
	UTMCampaign  *string
}

const leadColumns = `
	id, funnel_page_id, user_id, email, name, utm_source, utm_medium, utm_campaign,
	qualification_answers, is_qualified, created_at`

func scanLead(row pgx.Row) (Lead, error) {
	var (
		l       Lead
		answers []byte
	)
	err := row.Scan(
		&l.ID, &l.FunnelPageID, &l.UserID, &l.Email, &l.Name, &l.UTMSource, &l.UTMMedium, &l.UTMCampaign,
		&answers, &l.IsQualified, &l.CreatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &l.QualificationAnswers); err != nil {
			return Lead{}, err
		}
	}
	return l, nil
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO funnel_leads (id, funnel_page_id, user_id, email, name, utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+leadColumns,
		uuid.New(), params.FunnelPageID, params.UserID, params.Email, params.Name,
		params.UTMSource, params.UTMMedium, params.UTMCampaign,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM funnel_leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

// UpdateQualification writes answers and verdict in one statement.
func (r *Repository) UpdateQualification(ctx context.Context, id uuid.UUID, answers map[string]string, qualified bool) (Lead, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return Lead{}, err
	}

	l, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE funnel_leads
		SET qualification_answers = $2, is_qualified = $3
		WHERE id = $1
		RETURNING `+leadColumns,
		id, raw, qualified,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}
