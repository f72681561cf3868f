// Package leads provides the public lead intake bounded context module.
package leads

import (
	funnelsrepo "funnel_backend/internal/funnels/repository"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/internal/leads/handler"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/internal/leads/service"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.PublicHandler
	service *service.Service
}

// NewModule wires the lead repository, funnel reader, and dispatcher into the capture service.
func NewModule(pool db.Querier, dispatch service.Dispatcher, val *validator.Validator, rec metrics.Recorder, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), funnelsrepo.New(pool), dispatch, val, rec, log)
	return &Module{
		handler: handler.NewPublicHandler(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead lifecycle service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the public lead endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Public, ctx.LeadRateLimit)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
