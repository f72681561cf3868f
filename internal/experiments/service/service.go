// Package service resolves thank-you content for visitors and manages A/B experiments.
package service

import (
	"context"
	"errors"
	"strings"

	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/experiments/bucketing"
	"funnel_backend/internal/experiments/repository"
	"funnel_backend/internal/experiments/transport"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/saga"
	"funnel_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgFunnelNotFound = "funnel not found"

// PageStore reads control pages and writes variant pages.
type PageStore interface {
	GetPage(ctx context.Context, id uuid.UUID) (funnelsrepo.FunnelPage, error)
	ListVariantPages(ctx context.Context, experimentID uuid.UUID) ([]funnelsrepo.FunnelPage, error)
	CreateVariantPages(ctx context.Context, control funnelsrepo.FunnelPage, experimentID uuid.UUID, overlays []funnelsrepo.FunnelPage) ([]funnelsrepo.FunnelPage, error)
}

// ExperimentStore persists experiments.
type ExperimentStore interface {
	GetRunning(ctx context.Context, funnelPageID uuid.UUID) (repository.Experiment, error)
	Create(ctx context.Context, params repository.CreateExperimentParams) (repository.Experiment, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// Visitor identifies the caller for bucketing.
type Visitor struct {
	ClientKey string
	UserAgent string
}

type Service struct {
	pages       PageStore
	experiments ExperimentStore
	presigner   storage.Presigner
	log         *logger.Logger
}

// New builds the service. presigner may be nil when object storage is not configured.
func New(pages PageStore, experiments ExperimentStore, presigner storage.Presigner, log *logger.Logger) *Service {
	return &Service{pages: pages, experiments: experiments, presigner: presigner, log: log}
}

// ResolveThankYou returns the thank-you content for a published funnel. When
// the funnel runs an experiment the visitor is bucketed deterministically and
// sees the tested field of that variant.
func (s *Service) ResolveThankYou(ctx context.Context, funnelPageID uuid.UUID, visitor Visitor) (transport.ThankYouResponse, error) {
	page, err := s.pages.GetPage(ctx, funnelPageID)
	if errors.Is(err, funnelsrepo.ErrNotFound) {
		return transport.ThankYouResponse{}, apperr.NotFound(msgFunnelNotFound).WithOp("experiments.ResolveThankYou")
	}
	if err != nil {
		s.log.DatabaseError("experiments.ResolveThankYou.GetPage", err)
		return transport.ThankYouResponse{}, apperr.Storage("could not load funnel", err).WithOp("experiments.ResolveThankYou")
	}
	if !page.IsPublished || page.IsVariant {
		return transport.ThankYouResponse{}, apperr.NotFound(msgFunnelNotFound).WithOp("experiments.ResolveThankYou")
	}

	control := toVariant(page)
	rendered := control
	chosenID := page.ID
	var experimentID *string

	exp, err := s.experiments.GetRunning(ctx, page.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		s.log.DatabaseError("experiments.ResolveThankYou.GetRunning", err)
		return transport.ThankYouResponse{}, apperr.Storage("could not load funnel", err).WithOp("experiments.ResolveThankYou")
	default:
		variantPages, err := s.pages.ListVariantPages(ctx, exp.ID)
		if err != nil {
			s.log.DatabaseError("experiments.ResolveThankYou.ListVariantPages", err)
			return transport.ThankYouResponse{}, apperr.Storage("could not load funnel", err).WithOp("experiments.ResolveThankYou")
		}

		variants := make([]bucketing.Variant, 0, len(variantPages)+1)
		variants = append(variants, control)
		for _, vp := range variantPages {
			variants = append(variants, toVariant(vp))
		}

		expID := exp.ID.String()
		chosen := bucketing.Bucket(variants, bucketing.Signal(visitor.ClientKey, visitor.UserAgent, expID))
		rendered = bucketing.ApplyVariant(control, chosen, exp.TestField)
		chosenID = chosen.PageID
		experimentID = &expID
	}

	return transport.ThankYouResponse{
		FunnelPageID:    page.ID.String(),
		VariantPageID:   chosenID.String(),
		ExperimentID:    experimentID,
		Headline:        rendered.Headline,
		Subline:         rendered.Subline,
		VSLURL:          rendered.VSLURL,
		PassMessage:     rendered.PassMessage,
		LeadMagnetTitle: page.LeadMagnetTitle,
		LeadMagnetURL:   s.leadMagnetURL(ctx, page),
	}, nil
}

// leadMagnetURL is best effort: a presign failure hides the link, not the page.
func (s *Service) leadMagnetURL(ctx context.Context, page funnelsrepo.FunnelPage) *string {
	if s.presigner == nil || page.LeadMagnetFileKey == nil || *page.LeadMagnetFileKey == "" {
		return nil
	}
	presigned, err := s.presigner.GenerateDownloadURL(ctx, *page.LeadMagnetFileKey, storage.ThankYouURLTTL)
	if err != nil {
		s.log.WithContext(ctx).Warn("lead magnet presign failed", "funnelPageId", page.ID, "error", err)
		return nil
	}
	return &presigned.URL
}

type experimentWithVariants struct {
	experiment repository.Experiment
	variants   []funnelsrepo.FunnelPage
}

// CreateExperiment starts an experiment on an owned control page. The variant
// pages are written after the experiment; if they fail the experiment is
// deleted again.
func (s *Service) CreateExperiment(ctx context.Context, userID, funnelPageID uuid.UUID, req transport.CreateExperimentRequest) (transport.ExperimentResponse, error) {
	if !bucketing.ValidTestFields[req.TestField] {
		return transport.ExperimentResponse{}, apperr.Validation("testField is not supported").WithOp("experiments.CreateExperiment")
	}
	if len(req.Variants) == 0 {
		return transport.ExperimentResponse{}, apperr.Validation("at least one variant is required").WithOp("experiments.CreateExperiment")
	}

	control, err := s.pages.GetPage(ctx, funnelPageID)
	if errors.Is(err, funnelsrepo.ErrNotFound) || (err == nil && control.UserID != userID) {
		return transport.ExperimentResponse{}, apperr.NotFound(msgFunnelNotFound).WithOp("experiments.CreateExperiment")
	}
	if err != nil {
		s.log.DatabaseError("experiments.CreateExperiment.GetPage", err)
		return transport.ExperimentResponse{}, apperr.Storage("could not load funnel", err).WithOp("experiments.CreateExperiment")
	}
	if control.IsVariant {
		return transport.ExperimentResponse{}, apperr.Validation("experiments run on control pages only").WithOp("experiments.CreateExperiment")
	}

	if _, err := s.experiments.GetRunning(ctx, control.ID); err == nil {
		return transport.ExperimentResponse{}, apperr.Conflict("funnel already has a running experiment").WithOp("experiments.CreateExperiment")
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.log.DatabaseError("experiments.CreateExperiment.GetRunning", err)
		return transport.ExperimentResponse{}, apperr.Storage("could not load experiment", err).WithOp("experiments.CreateExperiment")
	}

	overlays := make([]funnelsrepo.FunnelPage, 0, len(req.Variants))
	for _, v := range req.Variants {
		overlays = append(overlays, overlay(control, v, req.TestField))
	}

	var variants []funnelsrepo.FunnelPage
	flow := saga.TwoStep[repository.Experiment]{
		Name: "experiments.CreateExperiment",
		Primary: func(ctx context.Context) (repository.Experiment, error) {
			return s.experiments.Create(ctx, repository.CreateExperimentParams{
				FunnelPageID: control.ID,
				UserID:       userID,
				Status:       repository.StatusRunning,
				TestField:    req.TestField,
			})
		},
		Dependent: func(ctx context.Context, exp repository.Experiment) error {
			var err error
			variants, err = s.pages.CreateVariantPages(ctx, control, exp.ID, overlays)
			return err
		},
		Compensate: func(ctx context.Context, exp repository.Experiment) error {
			return s.experiments.Delete(ctx, exp.ID, userID)
		},
		ID: func(exp repository.Experiment) string { return exp.ID.String() },
	}

	exp, err := flow.Run(ctx, s.log)
	if errors.Is(err, repository.ErrAlreadyRunning) {
		return transport.ExperimentResponse{}, apperr.Conflict("funnel already has a running experiment").WithOp("experiments.CreateExperiment")
	}
	if err != nil {
		s.log.DatabaseError("experiments.CreateExperiment", err)
		return transport.ExperimentResponse{}, apperr.Storage("could not create experiment", err).WithOp("experiments.CreateExperiment")
	}

	return toExperimentResponse(experimentWithVariants{experiment: exp, variants: variants}), nil
}

// overlay starts from the control's thank-you content and replaces only the tested field.
func overlay(control funnelsrepo.FunnelPage, v transport.VariantRequest, testField string) funnelsrepo.FunnelPage {
	out := funnelsrepo.FunnelPage{
		ThankYouHeadline: control.ThankYouHeadline,
		ThankYouSubline:  control.ThankYouSubline,
		VSLURL:           control.VSLURL,
		PassMessage:      control.PassMessage,
	}
	switch testField {
	case bucketing.FieldHeadline:
		out.ThankYouHeadline = sanitize.Line(v.Headline)
	case bucketing.FieldSubline:
		out.ThankYouSubline = sanitize.Text(v.Subline)
	case bucketing.FieldVSLURL:
		out.VSLURL = strings.TrimSpace(v.VSLURL)
	case bucketing.FieldPassMessage:
		out.PassMessage = sanitize.Text(v.PassMessage)
	}
	return out
}

func toVariant(p funnelsrepo.FunnelPage) bucketing.Variant {
	return bucketing.Variant{
		PageID:      p.ID,
		Headline:    p.ThankYouHeadline,
		Subline:     p.ThankYouSubline,
		VSLURL:      p.VSLURL,
		PassMessage: p.PassMessage,
	}
}

func toExperimentResponse(e experimentWithVariants) transport.ExperimentResponse {
	variants := make([]transport.VariantResponse, 0, len(e.variants))
	for _, v := range e.variants {
		variants = append(variants, transport.VariantResponse{PageID: v.ID.String(), Ordinal: v.VariantOrdinal})
	}
	return transport.ExperimentResponse{
		ID:           e.experiment.ID.String(),
		FunnelPageID: e.experiment.FunnelPageID.String(),
		Status:       e.experiment.Status,
		TestField:    e.experiment.TestField,
		Variants:     variants,
		CreatedAt:    e.experiment.CreatedAt,
	}
}
