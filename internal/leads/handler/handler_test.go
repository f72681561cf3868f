package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"funnel_backend/internal/events"
	"funnel_backend/internal/fanout"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/internal/leads/service"
	"funnel_backend/internal/leads/transport"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/ratelimit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type memLeads struct {
	mu   sync.Mutex
	rows map[uuid.UUID]repository.Lead
}

func (m *memLeads) Create(_ context.Context, p repository.CreateLeadParams) (repository.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := repository.Lead{ID: uuid.New(), FunnelPageID: p.FunnelPageID, UserID: p.UserID, Email: p.Email, Name: p.Name, CreatedAt: time.Now()}
	m.rows[l.ID] = l
	return l, nil
}

func (m *memLeads) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (m *memLeads) UpdateQualification(_ context.Context, id uuid.UUID, answers map[string]string, qualified bool) (repository.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.rows[id]
	l.QualificationAnswers = answers
	l.IsQualified = &qualified
	m.rows[id] = l
	return l, nil
}

func (m *memLeads) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memFunnels struct {
	pages     map[uuid.UUID]funnelsrepo.FunnelPage
	questions map[uuid.UUID][]funnelsrepo.Question
}

func (m *memFunnels) GetPage(_ context.Context, id uuid.UUID) (funnelsrepo.FunnelPage, error) {
	p, ok := m.pages[id]
	if !ok {
		return funnelsrepo.FunnelPage{}, funnelsrepo.ErrNotFound
	}
	return p, nil
}

func (m *memFunnels) ListQuestions(_ context.Context, p funnelsrepo.FunnelPage) ([]funnelsrepo.Question, error) {
	return m.questions[p.ID], nil
}

type recordingTarget struct {
	name string
	mu   sync.Mutex
	got  []events.CaptureEvent
}

func (t *recordingTarget) Name() string { return t.name }

func (t *recordingTarget) Deliver(_ context.Context, e events.CaptureEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.got = append(t.got, e)
	return nil
}

type harness struct {
	engine  *gin.Engine
	bus     *events.InMemoryBus
	leads   *memLeads
	funnels *memFunnels
	targets []*recordingTarget
}

func newHarness(t *testing.T, limit int) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	bus := events.NewInMemoryBus(log, 2, 16)
	targets := []*recordingTarget{{name: "webhook"}, {name: "email_automation"}, {name: "pixel"}}
	fanoutTargets := make([]fanout.Target, 0, len(targets))
	for _, tg := range targets {
		fanoutTargets = append(fanoutTargets, tg)
	}
	dispatcher := fanout.New(bus, log, metrics.NewNoop(), fanoutTargets...)

	h := &harness{
		bus:     bus,
		leads:   &memLeads{rows: map[uuid.UUID]repository.Lead{}},
		funnels: &memFunnels{pages: map[uuid.UUID]funnelsrepo.FunnelPage{}, questions: map[uuid.UUID][]funnelsrepo.Question{}},
		targets: targets,
	}

	val := validator.New()
	svc := service.New(h.leads, h.funnels, dispatcher, val, metrics.NewNoop(), log)

	h.engine = gin.New()
	public := h.engine.Group("/api/v1/public")
	limiter := ratelimit.NewWindowLimiter(limit, time.Minute)
	NewPublicHandler(svc, val).RegisterRoutes(public, httpkit.RateLimit(limiter, log, metrics.NewNoop()))

	t.Cleanup(func() { _ = bus.Close(context.Background()) })
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.bus.Close(ctx); err != nil {
		t.Fatalf("drain bus: %v", err)
	}
}

func (h *harness) publishedPage(questions ...funnelsrepo.Question) funnelsrepo.FunnelPage {
	p := funnelsrepo.FunnelPage{ID: uuid.New(), UserID: uuid.New(), Slug: "audit", IsPublished: true}
	h.funnels.pages[p.ID] = p
	h.funnels.questions[p.ID] = questions
	return p
}

func (h *harness) do(method string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, "/api/v1/public/lead", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", "203.0.113.7")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func TestCaptureReturns201AndFansOutOncePerTarget(t *testing.T) {
	h := newHarness(t, 10)
	page := h.publishedPage()

	w := h.do(http.MethodPost, map[string]string{"funnelPageId": page.ID.String(), "email": "a@b.com"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp transport.CaptureLeadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.LeadID == "" || !resp.Success {
		t.Fatalf("unexpected body %+v", resp)
	}

	h.drain(t)
	for _, tg := range h.targets {
		if len(tg.got) != 1 {
			t.Fatalf("%s invoked %d times", tg.name, len(tg.got))
		}
		if tg.got[0].IsQualified != nil || tg.got[0].LeadID.String() != resp.LeadID {
			t.Fatalf("%s got %+v", tg.name, tg.got[0])
		}
	}
}

func TestCaptureUnknownOrUnpublishedFunnelIs404WithoutWrite(t *testing.T) {
	h := newHarness(t, 10)
	hidden := funnelsrepo.FunnelPage{ID: uuid.New(), UserID: uuid.New(), IsPublished: false}
	h.funnels.pages[hidden.ID] = hidden

	for _, id := range []uuid.UUID{hidden.ID, uuid.New()} {
		w := h.do(http.MethodPost, map[string]string{"funnelPageId": id.String(), "email": "a@b.com"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
		var body httpkit.ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body.Code != "not_found" {
			t.Fatalf("code = %q", body.Code)
		}
	}
	if h.leads.count() != 0 {
		t.Fatalf("lead rows created for hidden funnel")
	}
}

func TestCaptureValidationIs400(t *testing.T) {
	h := newHarness(t, 10)
	page := h.publishedPage()

	bodies := []map[string]string{
		{"email": "a@b.com"},
		{"funnelPageId": page.ID.String()},
		{"funnelPageId": "not-a-uuid", "email": "a@b.com"},
		{"funnelPageId": page.ID.String(), "email": "nope"},
	}
	for _, b := range bodies {
		if w := h.do(http.MethodPost, b); w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status = %d", b, w.Code)
		}
	}
}

func TestCaptureValidationDetailsUseJSONFieldNames(t *testing.T) {
	h := newHarness(t, 10)

	w := h.do(http.MethodPost, map[string]string{"funnelPageId": "not-a-uuid", "email": "a@b.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Details["funnelPageId"] != "uuid" {
		t.Fatalf("details = %v", body.Details)
	}
	if strings.Contains(w.Body.String(), "CaptureLeadRequest") || strings.Contains(w.Body.String(), "FunnelPageID") {
		t.Fatalf("response leaks Go identifiers: %s", w.Body.String())
	}
}

func TestCaptureRateLimited(t *testing.T) {
	h := newHarness(t, 2)
	page := h.publishedPage()
	body := map[string]string{"funnelPageId": page.ID.String(), "email": "a@b.com"}

	for i := 0; i < 2; i++ {
		if w := h.do(http.MethodPost, body); w.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
	w := h.do(http.MethodPost, body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d", w.Code)
	}
	if h.leads.count() != 2 {
		t.Fatalf("rate limited request wrote a lead")
	}
}

func TestQualifyMatchingAnswersPersistsVerdict(t *testing.T) {
	h := newHarness(t, 10)
	q1 := funnelsrepo.Question{ID: uuid.New(), QualifyingAnswer: "yes"}
	q2 := funnelsrepo.Question{ID: uuid.New(), QualifyingAnswer: "no"}
	page := h.publishedPage(q1, q2)

	var created transport.CaptureLeadResponse
	_ = json.Unmarshal(h.do(http.MethodPost, map[string]string{"funnelPageId": page.ID.String(), "email": "a@b.com"}).Body.Bytes(), &created)

	w := h.do(http.MethodPatch, map[string]any{
		"leadId":  created.LeadID,
		"answers": map[string]string{q1.ID.String(): "yes", q2.ID.String(): "no"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp transport.QualifyLeadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.IsQualified || !resp.Success || resp.LeadID != created.LeadID {
		t.Fatalf("unexpected body %+v", resp)
	}

	lead, _ := h.leads.GetByID(context.Background(), uuid.MustParse(created.LeadID))
	if lead.IsQualified == nil || !*lead.IsQualified {
		t.Fatalf("stored verdict = %v", lead.IsQualified)
	}

	h.drain(t)
	for _, tg := range h.targets {
		if len(tg.got) != 2 {
			t.Fatalf("%s expected capture and qualify deliveries, got %d", tg.name, len(tg.got))
		}
	}
}

func TestQualifyUnknownQuestionIs400AndKeepsVerdict(t *testing.T) {
	h := newHarness(t, 10)
	q1 := funnelsrepo.Question{ID: uuid.New(), QualifyingAnswer: "yes"}
	page := h.publishedPage(q1)

	var created transport.CaptureLeadResponse
	_ = json.Unmarshal(h.do(http.MethodPost, map[string]string{"funnelPageId": page.ID.String(), "email": "a@b.com"}).Body.Bytes(), &created)

	w := h.do(http.MethodPatch, map[string]any{
		"leadId":  created.LeadID,
		"answers": map[string]string{q1.ID.String(): "yes", uuid.NewString(): "yes"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	lead, _ := h.leads.GetByID(context.Background(), uuid.MustParse(created.LeadID))
	if lead.IsQualified != nil {
		t.Fatalf("verdict changed after rejected answers")
	}
}

func TestQualifyUnknownLeadIs404(t *testing.T) {
	h := newHarness(t, 10)
	w := h.do(http.MethodPatch, map[string]any{"leadId": uuid.NewString(), "answers": map[string]string{}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQualifyMissingFieldsIs400(t *testing.T) {
	h := newHarness(t, 10)
	if w := h.do(http.MethodPatch, map[string]any{"leadId": uuid.NewString()}); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
