// Package funnels provides the funnel builder bounded context module.
package funnels

import (
	"funnel_backend/internal/funnels/handler"
	"funnel_backend/internal/funnels/repository"
	"funnel_backend/internal/funnels/service"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

func NewModule(pool db.Querier, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	return &Module{
		handler: handler.New(service.New(repo, log), val),
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "funnels"
}

// Repository exposes page reads to other modules.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/funnels"))
}

var _ apphttp.Module = (*Module)(nil)
