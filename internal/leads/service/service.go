// Package service implements lead capture and qualification for public funnels.
package service

import (
	"context"
	"errors"
	"strings"

	"funnel_backend/internal/events"
	"funnel_backend/internal/funnels/qualification"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/sanitize"
	"funnel_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	msgFunnelNotFound = "funnel not found"
	msgLeadNotFound   = "lead not found"
	msgSaveFailed     = "could not save lead, please try again"
)

// LeadStore persists leads.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	UpdateQualification(ctx context.Context, id uuid.UUID, answers map[string]string, qualified bool) (repository.Lead, error)
}

// FunnelReader loads the page a lead belongs to and its questions.
type FunnelReader interface {
	GetPage(ctx context.Context, id uuid.UUID) (funnelsrepo.FunnelPage, error)
	ListQuestions(ctx context.Context, page funnelsrepo.FunnelPage) ([]funnelsrepo.Question, error)
}

// Dispatcher fans a lead event out to delivery targets. It must not block.
type Dispatcher interface {
	Dispatch(ctx context.Context, event events.CaptureEvent)
}

type CaptureInput struct {
	FunnelPageID uuid.UUID
	Email        string
	Name         string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
}

type Service struct {
	leads    LeadStore
	funnels  FunnelReader
	dispatch Dispatcher
	val      *validator.Validator
	metrics  metrics.Recorder
	log      *logger.Logger
}

func New(leads LeadStore, funnels FunnelReader, dispatch Dispatcher, val *validator.Validator, rec metrics.Recorder, log *logger.Logger) *Service {
	return &Service{leads: leads, funnels: funnels, dispatch: dispatch, val: val, metrics: rec, log: log}
}

// Capture stores a new lead for a published funnel and queues its fan-out.
// Unpublished and missing funnels both report NotFound.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (uuid.UUID, error) {
	if in.FunnelPageID == uuid.Nil {
		return uuid.Nil, apperr.Validation("funnelPageId is required").WithOp("leads.Capture")
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return uuid.Nil, apperr.Validation("email is required").WithOp("leads.Capture")
	}
	if !s.val.IsEmail(email) {
		return uuid.Nil, apperr.Validation("email is invalid").WithOp("leads.Capture")
	}

	page, err := s.funnels.GetPage(ctx, in.FunnelPageID)
	if errors.Is(err, funnelsrepo.ErrNotFound) {
		return uuid.Nil, apperr.NotFound(msgFunnelNotFound).WithOp("leads.Capture")
	}
	if err != nil {
		s.log.DatabaseError("leads.Capture.GetPage", err)
		return uuid.Nil, apperr.Storage(msgSaveFailed, err).WithOp("leads.Capture")
	}
	// Variant pages only exist to render thank-you content; leads land on the control page.
	if !page.IsPublished || page.IsVariant {
		return uuid.Nil, apperr.NotFound(msgFunnelNotFound).WithOp("leads.Capture")
	}

	questions, err := s.funnels.ListQuestions(ctx, page)
	if err != nil {
		s.log.DatabaseError("leads.Capture.ListQuestions", err)
		return uuid.Nil, apperr.Storage(msgSaveFailed, err).WithOp("leads.Capture")
	}

	lead, err := s.leads.Create(ctx, repository.CreateLeadParams{
		FunnelPageID: page.ID,
		UserID:       page.UserID,
		Email:        email,
		Name:         optional(sanitize.Line(in.Name)),
		UTMSource:    optional(sanitize.Line(in.UTMSource)),
		UTMMedium:    optional(sanitize.Line(in.UTMMedium)),
		UTMCampaign:  optional(sanitize.Line(in.UTMCampaign)),
	})
	if err != nil {
		s.log.DatabaseError("leads.Capture.Create", err)
		return uuid.Nil, apperr.Storage(msgSaveFailed, err).WithOp("leads.Capture")
	}

	s.metrics.LeadCaptured(ctx)
	s.dispatch.Dispatch(ctx, captureEvent(lead, page, len(questions) > 0, events.TriggerCaptured))
	return lead.ID, nil
}

// Qualify scores answers against the lead's funnel, stores answers and verdict
// together, and re-dispatches the lead with the verdict. Rejected answers are
// never written.
func (s *Service) Qualify(ctx context.Context, leadID uuid.UUID, answers map[string]string) (bool, error) {
	if leadID == uuid.Nil {
		return false, apperr.Validation("leadId is required").WithOp("leads.Qualify")
	}
	if answers == nil {
		return false, apperr.Validation("answers are required").WithOp("leads.Qualify")
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, apperr.NotFound(msgLeadNotFound).WithOp("leads.Qualify")
	}
	if err != nil {
		s.log.DatabaseError("leads.Qualify.GetByID", err)
		return false, apperr.Storage(msgSaveFailed, err).WithOp("leads.Qualify")
	}

	page, err := s.funnels.GetPage(ctx, lead.FunnelPageID)
	if errors.Is(err, funnelsrepo.ErrNotFound) {
		return false, apperr.NotFound(msgFunnelNotFound).WithOp("leads.Qualify")
	}
	if err != nil {
		s.log.DatabaseError("leads.Qualify.GetPage", err)
		return false, apperr.Storage(msgSaveFailed, err).WithOp("leads.Qualify")
	}

	questions, err := s.funnels.ListQuestions(ctx, page)
	if err != nil {
		s.log.DatabaseError("leads.Qualify.ListQuestions", err)
		return false, apperr.Storage(msgSaveFailed, err).WithOp("leads.Qualify")
	}

	result := qualification.Score(toEngineQuestions(questions), answers)
	if !result.Valid() {
		verr := result.Errors[0]
		return false, apperr.Validation(verr.Error()).
			WithOp("leads.Qualify").
			WithDetails(map[string]string{"reason": string(verr.Kind), "questionId": verr.QuestionID})
	}

	updated, err := s.leads.UpdateQualification(ctx, lead.ID, answers, result.Qualified)
	if errors.Is(err, repository.ErrNotFound) {
		return false, apperr.NotFound(msgLeadNotFound).WithOp("leads.Qualify")
	}
	if err != nil {
		s.log.DatabaseError("leads.Qualify.UpdateQualification", err)
		return false, apperr.Storage(msgSaveFailed, err).WithOp("leads.Qualify")
	}

	s.metrics.LeadQualified(ctx, result.Qualified)
	s.dispatch.Dispatch(ctx, captureEvent(updated, page, len(questions) > 0, events.TriggerQualified))
	return result.Qualified, nil
}

func captureEvent(lead repository.Lead, page funnelsrepo.FunnelPage, hasQuestions bool, trigger string) events.CaptureEvent {
	return events.CaptureEvent{
		LeadID:          lead.ID,
		FunnelPageID:    lead.FunnelPageID,
		UserID:          lead.UserID,
		Email:           lead.Email,
		Name:            deref(lead.Name),
		IsQualified:     lead.IsQualified,
		Answers:         lead.QualificationAnswers,
		UTMSource:       deref(lead.UTMSource),
		UTMMedium:       deref(lead.UTMMedium),
		UTMCampaign:     deref(lead.UTMCampaign),
		FunnelSlug:      page.Slug,
		LeadMagnetTitle: page.LeadMagnetTitle,
		CreatedAt:       lead.CreatedAt,
		Trigger:         trigger,
		HasQuestions:    hasQuestions,
	}
}

func toEngineQuestions(questions []funnelsrepo.Question) []qualification.Question {
	out := make([]qualification.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, qualification.Question{ID: q.ID.String(), QualifyingAnswer: q.QualifyingAnswer})
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
