package handler

import (
	"context"
	"net/http"

	"funnel_backend/internal/funnels/transport"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FunnelService interface {
	CreateFunnel(ctx context.Context, userID uuid.UUID, req transport.CreateFunnelRequest) (transport.FunnelResponse, error)
}

// Handler serves the authenticated funnel builder endpoints.
type Handler struct {
	svc FunnelService
	val *validator.Validator
}

func New(svc FunnelService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
}

func (h *Handler) Create(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid request body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid funnel").WithDetails(h.val.FieldErrors(err)))
		return
	}

	resp, err := h.svc.CreateFunnel(c.Request.Context(), id.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, resp)
}
