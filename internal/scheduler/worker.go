package scheduler

import (
	"context"
	"errors"
	"fmt"

	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/email"
	"funnel_backend/internal/events"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/integrations"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PageReader loads the funnel page an automation email is about.
type PageReader interface {
	GetPage(ctx context.Context, id uuid.UUID) (funnelsrepo.FunnelPage, error)
}

// EmailAutomation sends the owner-enabled emails for a lead.
type EmailAutomation struct {
	pages     PageReader
	settings  integrations.Reader
	presigner storage.Presigner
	sender    email.Sender
	log       *logger.Logger
}

// NewEmailAutomation builds the task handler. presigner may be nil when object storage is not configured.
func NewEmailAutomation(pages PageReader, settings integrations.Reader, presigner storage.Presigner, sender email.Sender, log *logger.Logger) *EmailAutomation {
	return &EmailAutomation{pages: pages, settings: settings, presigner: presigner, sender: sender, log: log}
}

func (h *EmailAutomation) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEmailAutomationPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("user id: %v: %w", err, asynq.SkipRetry)
	}
	pageID, err := uuid.Parse(payload.FunnelPageID)
	if err != nil {
		return fmt.Errorf("funnel page id: %v: %w", err, asynq.SkipRetry)
	}

	if payload.Trigger == events.TriggerQualified && (payload.IsQualified == nil || !*payload.IsQualified) {
		return nil
	}

	settings, err := h.settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !settings.EmailAutomationEnabled {
		return nil
	}

	page, err := h.pages.GetPage(ctx, pageID)
	if errors.Is(err, funnelsrepo.ErrNotFound) {
		return fmt.Errorf("funnel page %s: %w", pageID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	if payload.Trigger == events.TriggerQualified {
		return h.sender.SendQualifiedFollowUpEmail(ctx, payload.Email, email.FollowUp{
			FromName:    settings.EmailFromName,
			Name:        payload.Name,
			PassMessage: page.PassMessage,
		})
	}

	downloadURL, err := h.downloadURL(ctx, page)
	if err != nil {
		return err
	}

	if err := h.sender.SendLeadMagnetEmail(ctx, payload.Email, email.LeadMagnet{
		FromName:        settings.EmailFromName,
		Name:            payload.Name,
		LeadMagnetTitle: page.LeadMagnetTitle,
		DownloadURL:     downloadURL,
	}); err != nil {
		return err
	}

	h.log.Info("lead magnet email sent", "leadId", payload.LeadID, "funnelPageId", pageID)
	return nil
}

func (h *EmailAutomation) downloadURL(ctx context.Context, page funnelsrepo.FunnelPage) (string, error) {
	if h.presigner == nil || page.LeadMagnetFileKey == nil || *page.LeadMagnetFileKey == "" {
		return "", nil
	}
	presigned, err := h.presigner.GenerateDownloadURL(ctx, *page.LeadMagnetFileKey, storage.EmailURLTTL)
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, automation *EmailAutomation, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("scheduler task failed", "task", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskEmailAutomationTrigger, automation)

	return &Worker{server: server, mux: mux, log: log}, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
