// Package experiments provides thank-you rendering and A/B experiment management.
package experiments

import (
	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/experiments/handler"
	"funnel_backend/internal/experiments/repository"
	"funnel_backend/internal/experiments/service"
	funnelsrepo "funnel_backend/internal/funnels/repository"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

// NewModule wires the experiment service. presigner may be nil.
func NewModule(pool db.Querier, presigner storage.Presigner, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(funnelsrepo.New(pool), repository.New(pool), presigner, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "experiments"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public)
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
