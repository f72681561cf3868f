package handler

import (
	"context"
	"net/http"

	"funnel_backend/internal/experiments/service"
	"funnel_backend/internal/experiments/transport"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ExperimentService interface {
	ResolveThankYou(ctx context.Context, funnelPageID uuid.UUID, visitor service.Visitor) (transport.ThankYouResponse, error)
	CreateExperiment(ctx context.Context, userID, funnelPageID uuid.UUID, req transport.CreateExperimentRequest) (transport.ExperimentResponse, error)
}

type Handler struct {
	svc ExperimentService
	val *validator.Validator
}

func New(svc ExperimentService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts the visitor-facing thank-you read path.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/funnels/:funnelPageId/thank-you", h.ThankYou)
}

// RegisterRoutes mounts the builder endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/funnels/:funnelPageId/experiments", h.Create)
}

func (h *Handler) ThankYou(c *gin.Context) {
	// A malformed id is reported like a missing funnel.
	funnelPageID, err := uuid.Parse(c.Param("funnelPageId"))
	if err != nil {
		httpkit.HandleError(c, apperr.NotFound("funnel not found"))
		return
	}

	resp, err := h.svc.ResolveThankYou(c.Request.Context(), funnelPageID, service.Visitor{
		ClientKey: httpkit.ClientKey(c.Request),
		UserAgent: c.Request.UserAgent(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("Cache-Control", "private, no-store")
	httpkit.OK(c, resp)
}

func (h *Handler) Create(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	funnelPageID, err := uuid.Parse(c.Param("funnelPageId"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid funnel page id"))
		return
	}

	var req transport.CreateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid request body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid experiment").WithDetails(h.val.FieldErrors(err)))
		return
	}

	resp, err := h.svc.CreateExperiment(c.Request.Context(), id.UserID(), funnelPageID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, resp)
}
