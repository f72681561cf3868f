package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/email"
	"funnel_backend/internal/events"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/integrations"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakePages struct {
	page funnelsrepo.FunnelPage
	err  error
}

func (f fakePages) GetPage(context.Context, uuid.UUID) (funnelsrepo.FunnelPage, error) {
	return f.page, f.err
}

type fakeSettings struct{ s integrations.Settings }

func (f fakeSettings) Get(context.Context, uuid.UUID) (integrations.Settings, error) { return f.s, nil }

type fakePresigner struct{ calls int }

func (f *fakePresigner) GenerateDownloadURL(_ context.Context, key string, ttl time.Duration) (*storage.PresignedURL, error) {
	f.calls++
	return &storage.PresignedURL{URL: "https://files.example.com/" + key, FileKey: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

type recordingSender struct {
	magnets   []email.LeadMagnet
	followUps []email.FollowUp
	to        []string
}

func (s *recordingSender) SendLeadMagnetEmail(_ context.Context, to string, data email.LeadMagnet) error {
	s.to = append(s.to, to)
	s.magnets = append(s.magnets, data)
	return nil
}

func (s *recordingSender) SendQualifiedFollowUpEmail(_ context.Context, to string, data email.FollowUp) error {
	s.to = append(s.to, to)
	s.followUps = append(s.followUps, data)
	return nil
}

func newTask(t *testing.T, p EmailAutomationPayload) *asynq.Task {
	t.Helper()
	task, err := NewEmailAutomationTask(p)
	if err != nil {
		t.Fatalf("NewEmailAutomationTask: %v", err)
	}
	return task
}

func basePayload(trigger string) EmailAutomationPayload {
	return EmailAutomationPayload{
		LeadID:       uuid.NewString(),
		FunnelPageID: uuid.NewString(),
		UserID:       uuid.NewString(),
		Email:        "lead@example.com",
		Name:         "Ada",
		Trigger:      trigger,
	}
}

func TestEmailAutomationSendsLeadMagnetWithDownload(t *testing.T) {
	key := "owner/guide.pdf"
	sender := &recordingSender{}
	presigner := &fakePresigner{}
	h := NewEmailAutomation(
		fakePages{page: funnelsrepo.FunnelPage{LeadMagnetTitle: "Guide", LeadMagnetFileKey: &key}},
		fakeSettings{s: integrations.Settings{EmailAutomationEnabled: true, EmailFromName: "Acme"}},
		presigner, sender, logger.Discard(),
	)

	if err := h.ProcessTask(context.Background(), newTask(t, basePayload(events.TriggerCaptured))); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(sender.magnets) != 1 || presigner.calls != 1 {
		t.Fatalf("magnets=%d presigns=%d", len(sender.magnets), presigner.calls)
	}
	got := sender.magnets[0]
	if got.DownloadURL != "https://files.example.com/owner/guide.pdf" || got.FromName != "Acme" || got.LeadMagnetTitle != "Guide" {
		t.Fatalf("unexpected email data %+v", got)
	}
	if sender.to[0] != "lead@example.com" {
		t.Fatalf("sent to %s", sender.to[0])
	}
}

func TestEmailAutomationSkipsWhenDisabled(t *testing.T) {
	sender := &recordingSender{}
	h := NewEmailAutomation(fakePages{}, fakeSettings{}, nil, sender, logger.Discard())

	if err := h.ProcessTask(context.Background(), newTask(t, basePayload(events.TriggerCaptured))); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(sender.magnets) != 0 {
		t.Fatalf("email sent while automation disabled")
	}
}

func TestEmailAutomationFollowUpOnlyForQualified(t *testing.T) {
	sender := &recordingSender{}
	h := NewEmailAutomation(
		fakePages{page: funnelsrepo.FunnelPage{PassMessage: "Book a call"}},
		fakeSettings{s: integrations.Settings{EmailAutomationEnabled: true}},
		nil, sender, logger.Discard(),
	)

	no, yes := false, true
	rejected := basePayload(events.TriggerQualified)
	rejected.IsQualified = &no
	if err := h.ProcessTask(context.Background(), newTask(t, rejected)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	accepted := basePayload(events.TriggerQualified)
	accepted.IsQualified = &yes
	if err := h.ProcessTask(context.Background(), newTask(t, accepted)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(sender.followUps) != 1 || sender.followUps[0].PassMessage != "Book a call" {
		t.Fatalf("unexpected follow-ups %+v", sender.followUps)
	}
}

func TestEmailAutomationMissingPageSkipsRetry(t *testing.T) {
	h := NewEmailAutomation(
		fakePages{err: funnelsrepo.ErrNotFound},
		fakeSettings{s: integrations.Settings{EmailAutomationEnabled: true}},
		nil, &recordingSender{}, logger.Discard(),
	)

	err := h.ProcessTask(context.Background(), newTask(t, basePayload(events.TriggerCaptured)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestEmailAutomationBadPayloadSkipsRetry(t *testing.T) {
	h := NewEmailAutomation(fakePages{}, fakeSettings{}, nil, &recordingSender{}, logger.Discard())

	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskEmailAutomationTrigger, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:pw@localhost:6380/2", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "localhost:6380" || opt.Password != "pw" || opt.DB != 2 {
		t.Fatalf("unexpected opt %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("insecure TLS not applied")
	}
}
