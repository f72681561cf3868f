// Package service implements the authenticated funnel builder.
package service

import (
	"context"
	"errors"
	"strings"

	"funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/funnels/transport"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/saga"
	"funnel_backend/platform/sanitize"

	"github.com/google/uuid"
)

// PageStore is the repository surface the builder writes through.
type PageStore interface {
	CreatePage(ctx context.Context, params repository.CreatePageParams) (repository.FunnelPage, error)
	CreateQuestions(ctx context.Context, pageID uuid.UUID, params []repository.CreateQuestionParams) ([]repository.Question, error)
	DeletePage(ctx context.Context, id, userID uuid.UUID) error
}

type Service struct {
	repo PageStore
	log  *logger.Logger
}

func New(repo PageStore, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateFunnel writes the page and then its questions. If the questions fail
// the page is deleted so no funnel exists without its questionnaire.
func (s *Service) CreateFunnel(ctx context.Context, userID uuid.UUID, req transport.CreateFunnelRequest) (transport.FunnelResponse, error) {
	var questionSetID *uuid.UUID
	if req.QuestionSetID != nil {
		id, err := uuid.Parse(*req.QuestionSetID)
		if err != nil {
			return transport.FunnelResponse{}, apperr.Validation("questionSetId is invalid").WithOp("funnels.CreateFunnel")
		}
		questionSetID = &id
	}
	if questionSetID != nil && len(req.Questions) > 0 {
		return transport.FunnelResponse{}, apperr.Validation("a funnel uses either a question set or its own questions").WithOp("funnels.CreateFunnel")
	}

	questionParams := make([]repository.CreateQuestionParams, 0, len(req.Questions))
	for i, q := range req.Questions {
		required := true
		if q.IsRequired != nil {
			required = *q.IsRequired
		}
		questionParams = append(questionParams, repository.CreateQuestionParams{
			QuestionText:     sanitize.Line(q.QuestionText),
			QualifyingAnswer: q.QualifyingAnswer,
			IsRequired:       required,
			DisplayOrder:     i,
		})
	}

	var questions []repository.Question
	flow := saga.TwoStep[repository.FunnelPage]{
		Name: "funnels.CreateFunnel",
		Primary: func(ctx context.Context) (repository.FunnelPage, error) {
			return s.repo.CreatePage(ctx, repository.CreatePageParams{
				UserID:            userID,
				Slug:              strings.ToLower(strings.TrimSpace(req.Slug)),
				Title:             sanitize.Line(req.Title),
				LeadMagnetTitle:   sanitize.Line(req.LeadMagnetTitle),
				IsPublished:       req.IsPublished,
				QuestionSetID:     questionSetID,
				ThankYouHeadline:  sanitize.Line(req.ThankYouHeadline),
				ThankYouSubline:   sanitize.Text(req.ThankYouSubline),
				VSLURL:            strings.TrimSpace(req.VSLURL),
				PassMessage:       sanitize.Text(req.PassMessage),
				LeadMagnetFileKey: req.LeadMagnetFileKey,
			})
		},
		Dependent: func(ctx context.Context, page repository.FunnelPage) error {
			var err error
			questions, err = s.repo.CreateQuestions(ctx, page.ID, questionParams)
			return err
		},
		Compensate: func(ctx context.Context, page repository.FunnelPage) error {
			return s.repo.DeletePage(ctx, page.ID, page.UserID)
		},
		ID: func(page repository.FunnelPage) string { return page.ID.String() },
	}

	page, err := flow.Run(ctx, s.log)
	if errors.Is(err, repository.ErrSlugTaken) {
		return transport.FunnelResponse{}, apperr.Conflict("slug is already in use").WithOp("funnels.CreateFunnel")
	}
	if err != nil {
		s.log.DatabaseError("funnels.CreateFunnel", err)
		return transport.FunnelResponse{}, apperr.Storage("could not create funnel", err).WithOp("funnels.CreateFunnel")
	}

	return toFunnelResponse(page, questions), nil
}

func toFunnelResponse(page repository.FunnelPage, questions []repository.Question) transport.FunnelResponse {
	items := make([]transport.QuestionResponse, 0, len(questions))
	for _, q := range questions {
		items = append(items, transport.QuestionResponse{
			ID:               q.ID.String(),
			QuestionText:     q.QuestionText,
			QualifyingAnswer: q.QualifyingAnswer,
			IsRequired:       q.IsRequired,
			DisplayOrder:     q.DisplayOrder,
		})
	}
	return transport.FunnelResponse{
		ID:              page.ID.String(),
		Slug:            page.Slug,
		Title:           page.Title,
		LeadMagnetTitle: page.LeadMagnetTitle,
		IsPublished:     page.IsPublished,
		Questions:       items,
		CreatedAt:       page.CreatedAt,
	}
}
