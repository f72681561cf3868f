package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/experiments/bucketing"
	"funnel_backend/internal/experiments/repository"
	"funnel_backend/internal/experiments/transport"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakePages struct {
	pages       map[uuid.UUID]funnelsrepo.FunnelPage
	variants    map[uuid.UUID][]funnelsrepo.FunnelPage
	variantsErr error
}

func (f *fakePages) GetPage(_ context.Context, id uuid.UUID) (funnelsrepo.FunnelPage, error) {
	p, ok := f.pages[id]
	if !ok {
		return funnelsrepo.FunnelPage{}, funnelsrepo.ErrNotFound
	}
	return p, nil
}

func (f *fakePages) ListVariantPages(_ context.Context, expID uuid.UUID) ([]funnelsrepo.FunnelPage, error) {
	return f.variants[expID], nil
}

func (f *fakePages) CreateVariantPages(_ context.Context, control funnelsrepo.FunnelPage, expID uuid.UUID, overlays []funnelsrepo.FunnelPage) ([]funnelsrepo.FunnelPage, error) {
	if f.variantsErr != nil {
		return nil, f.variantsErr
	}
	out := make([]funnelsrepo.FunnelPage, 0, len(overlays))
	for i, o := range overlays {
		o.ID = uuid.New()
		o.UserID = control.UserID
		o.IsVariant = true
		o.VariantOrdinal = i + 1
		out = append(out, o)
	}
	f.variants[expID] = out
	return out, nil
}

type fakeExperiments struct {
	running map[uuid.UUID]repository.Experiment
	deleted []uuid.UUID
}

func (f *fakeExperiments) GetRunning(_ context.Context, pageID uuid.UUID) (repository.Experiment, error) {
	e, ok := f.running[pageID]
	if !ok {
		return repository.Experiment{}, repository.ErrNotFound
	}
	return e, nil
}

func (f *fakeExperiments) Create(_ context.Context, p repository.CreateExperimentParams) (repository.Experiment, error) {
	e := repository.Experiment{ID: uuid.New(), FunnelPageID: p.FunnelPageID, UserID: p.UserID, Status: p.Status, TestField: p.TestField}
	f.running[p.FunnelPageID] = e
	return e, nil
}

func (f *fakeExperiments) Delete(_ context.Context, id, _ uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	for k, e := range f.running {
		if e.ID == id {
			delete(f.running, k)
		}
	}
	return nil
}

type fakePresigner struct{ err error }

func (f fakePresigner) GenerateDownloadURL(_ context.Context, key string, ttl time.Duration) (*storage.PresignedURL, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &storage.PresignedURL{URL: "https://files.example.com/" + key, FileKey: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

type fixture struct {
	svc     *Service
	pages   *fakePages
	exps    *fakeExperiments
	control funnelsrepo.FunnelPage
}

func newFixture(presigner storage.Presigner) *fixture {
	key := "owner/guide.pdf"
	control := funnelsrepo.FunnelPage{
		ID: uuid.New(), UserID: uuid.New(), IsPublished: true, LeadMagnetTitle: "Guide",
		ThankYouHeadline: "Control headline", ThankYouSubline: "Control subline", LeadMagnetFileKey: &key,
	}
	f := &fixture{
		pages: &fakePages{
			pages:    map[uuid.UUID]funnelsrepo.FunnelPage{control.ID: control},
			variants: map[uuid.UUID][]funnelsrepo.FunnelPage{},
		},
		exps:    &fakeExperiments{running: map[uuid.UUID]repository.Experiment{}},
		control: control,
	}
	f.svc = New(f.pages, f.exps, presigner, logger.Discard())
	return f
}

func TestResolveThankYouWithoutExperimentRendersControl(t *testing.T) {
	f := newFixture(fakePresigner{})

	resp, err := f.svc.ResolveThankYou(context.Background(), f.control.ID, Visitor{ClientKey: "1.2.3.4", UserAgent: "ua"})
	if err != nil {
		t.Fatalf("ResolveThankYou: %v", err)
	}
	if resp.Headline != "Control headline" || resp.VariantPageID != f.control.ID.String() || resp.ExperimentID != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.LeadMagnetURL == nil || *resp.LeadMagnetURL != "https://files.example.com/owner/guide.pdf" {
		t.Fatalf("lead magnet url = %v", resp.LeadMagnetURL)
	}
}

func TestResolveThankYouMasksUnpublishedAndVariantPages(t *testing.T) {
	f := newFixture(nil)
	hidden := funnelsrepo.FunnelPage{ID: uuid.New(), IsPublished: false}
	variant := funnelsrepo.FunnelPage{ID: uuid.New(), IsPublished: true, IsVariant: true}
	f.pages.pages[hidden.ID] = hidden
	f.pages.pages[variant.ID] = variant

	for _, id := range []uuid.UUID{hidden.ID, variant.ID, uuid.New()} {
		if _, err := f.svc.ResolveThankYou(context.Background(), id, Visitor{}); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected not found for %s, got %v", id, err)
		}
	}
}

func TestResolveThankYouBucketsStablyAndAppliesTestedField(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.CreateExperiment(context.Background(), f.control.UserID, f.control.ID, transport.CreateExperimentRequest{
		TestField: bucketing.FieldHeadline,
		Variants:  []transport.VariantRequest{{Headline: "Variant B"}, {Headline: "Variant C"}},
	})
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		v := Visitor{ClientKey: fmt.Sprintf("10.0.0.%d", i), UserAgent: "Mozilla/5.0"}
		first, err := f.svc.ResolveThankYou(context.Background(), f.control.ID, v)
		if err != nil {
			t.Fatalf("ResolveThankYou: %v", err)
		}
		again, _ := f.svc.ResolveThankYou(context.Background(), f.control.ID, v)
		if first.VariantPageID != again.VariantPageID || first.Headline != again.Headline {
			t.Fatalf("visitor %d moved between variants", i)
		}
		if first.Subline != "Control subline" {
			t.Fatalf("untested field changed: %q", first.Subline)
		}
		if first.ExperimentID == nil {
			t.Fatalf("experiment id missing")
		}
		seen[first.Headline] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all three variants across 200 visitors, saw %v", seen)
	}
}

func TestResolveThankYouPresignFailureHidesLinkOnly(t *testing.T) {
	f := newFixture(fakePresigner{err: errors.New("minio down")})

	resp, err := f.svc.ResolveThankYou(context.Background(), f.control.ID, Visitor{})
	if err != nil {
		t.Fatalf("ResolveThankYou: %v", err)
	}
	if resp.LeadMagnetURL != nil {
		t.Fatalf("expected no link when presign fails")
	}
}

func TestCreateExperimentConflictWhenRunning(t *testing.T) {
	f := newFixture(nil)
	req := transport.CreateExperimentRequest{TestField: bucketing.FieldSubline, Variants: []transport.VariantRequest{{Subline: "B"}}}

	if _, err := f.svc.CreateExperiment(context.Background(), f.control.UserID, f.control.ID, req); err != nil {
		t.Fatalf("first CreateExperiment: %v", err)
	}
	_, err := f.svc.CreateExperiment(context.Background(), f.control.UserID, f.control.ID, req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateExperimentCompensatesWhenVariantsFail(t *testing.T) {
	f := newFixture(nil)
	f.pages.variantsErr = errors.New("insert variant failed")

	_, err := f.svc.CreateExperiment(context.Background(), f.control.UserID, f.control.ID, transport.CreateExperimentRequest{
		TestField: bucketing.FieldHeadline,
		Variants:  []transport.VariantRequest{{Headline: "B"}},
	})
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(f.exps.deleted) != 1 || len(f.exps.running) != 0 {
		t.Fatalf("experiment not compensated: deleted=%v running=%d", f.exps.deleted, len(f.exps.running))
	}
}

func TestCreateExperimentRequiresOwnership(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.CreateExperiment(context.Background(), uuid.New(), f.control.ID, transport.CreateExperimentRequest{
		TestField: bucketing.FieldHeadline,
		Variants:  []transport.VariantRequest{{Headline: "B"}},
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for foreign page, got %v", err)
	}
}

func TestOverlayKeepsControlFieldsExceptTested(t *testing.T) {
	control := funnelsrepo.FunnelPage{ThankYouHeadline: "H", ThankYouSubline: "S", VSLURL: "https://v", PassMessage: "P"}
	got := overlay(control, transport.VariantRequest{Headline: "X", PassMessage: "ignored"}, bucketing.FieldHeadline)
	if got.ThankYouHeadline != "X" || got.PassMessage != "P" || got.ThankYouSubline != "S" {
		t.Fatalf("unexpected overlay %+v", got)
	}
}
