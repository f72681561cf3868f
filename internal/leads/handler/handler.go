package handler

import (
	"context"
	"net/http"

	"funnel_backend/internal/leads/service"
	"funnel_backend/internal/leads/transport"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request body"

// LeadService is the part of service.Service the public endpoints use.
type LeadService interface {
	Capture(ctx context.Context, in service.CaptureInput) (uuid.UUID, error)
	Qualify(ctx context.Context, leadID uuid.UUID, answers map[string]string) (bool, error)
}

// PublicHandler serves the unauthenticated lead endpoints used by funnel pages.
type PublicHandler struct {
	svc LeadService
	val *validator.Validator
}

func NewPublicHandler(svc LeadService, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes mounts POST and PATCH /lead. limit guards capture only.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("/lead", limit, h.Capture)
	rg.PATCH("/lead", h.Qualify)
}

func (h *PublicHandler) Capture(c *gin.Context) {
	var req transport.CaptureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgInvalidRequest))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid lead request").WithDetails(h.val.FieldErrors(err)))
		return
	}

	// Validated as a uuid above.
	funnelPageID := uuid.MustParse(req.FunnelPageID)

	leadID, err := h.svc.Capture(c.Request.Context(), service.CaptureInput{
		FunnelPageID: funnelPageID,
		Email:        req.Email,
		Name:         req.Name,
		UTMSource:    req.UTMSource,
		UTMMedium:    req.UTMMedium,
		UTMCampaign:  req.UTMCampaign,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.CaptureLeadResponse{LeadID: leadID.String(), Success: true})
}

func (h *PublicHandler) Qualify(c *gin.Context) {
	var req transport.QualifyLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgInvalidRequest))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid qualification request").WithDetails(h.val.FieldErrors(err)))
		return
	}

	leadID := uuid.MustParse(req.LeadID)
	qualified, err := h.svc.Qualify(c.Request.Context(), leadID, req.Answers)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.QualifyLeadResponse{LeadID: leadID.String(), IsQualified: qualified, Success: true})
}
