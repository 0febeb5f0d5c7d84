package handler

import (
	"context"

	"sevapay/internal/adapter/http/dto"
	"sevapay/internal/adapter/http/middleware"
	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
	"sevapay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApplicationHandler handles the deferred-settlement application endpoints.
type ApplicationHandler struct {
	settlementSvc ports.SettlementService
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(settlementSvc ports.SettlementService) *ApplicationHandler {
	return &ApplicationHandler{settlementSvc: settlementSvc}
}

// Submit handles POST /api/v1/applications.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid service_id"))
		return
	}

	app, err := h.settlementSvc.Submit(c.Request.Context(), ports.SubmitApplicationRequest{
		ApplicantID: userID,
		ServiceID:   serviceID,
		BaseAmount:  req.BaseAmount,
		DocumentURL: req.DocumentURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toApplicationResponse(app))
}

// List handles GET /api/v1/applications (the caller's own applications).
func (h *ApplicationHandler) List(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	apps, err := h.settlementSvc.ListByApplicant(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		items = append(items, toApplicationResponse(&apps[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/applications/:id.
func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid application id"))
		return
	}

	app, err := h.settlementSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Applicants see their own; staff see everything
	if app.ApplicantID != userID && !role.CanSettleApplications() {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	response.OK(c, toApplicationResponse(app))
}

// Approve handles POST /api/v1/applications/:id/approve.
func (h *ApplicationHandler) Approve(c *gin.Context) {
	h.settle(c, h.settlementSvc.Approve)
}

// Reject handles POST /api/v1/applications/:id/reject.
func (h *ApplicationHandler) Reject(c *gin.Context) {
	h.settle(c, h.settlementSvc.Reject)
}

// Complete handles POST /api/v1/applications/:id/complete.
func (h *ApplicationHandler) Complete(c *gin.Context) {
	h.settle(c, h.settlementSvc.Complete)
}

// Reapply handles POST /api/v1/applications/:id/reapply.
func (h *ApplicationHandler) Reapply(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid application id"))
		return
	}

	app, err := h.settlementSvc.Reapply(c.Request.Context(), id, ports.Actor{UserID: userID, Role: role})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toApplicationResponse(app))
}

// Delete handles DELETE /api/v1/applications/:id.
func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid application id"))
		return
	}

	if err := h.settlementSvc.Delete(c.Request.Context(), id, ports.Actor{UserID: userID, Role: role}); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// settle runs one staff settlement decision (approve, reject, complete).
func (h *ApplicationHandler) settle(
	c *gin.Context,
	op func(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Application, error),
) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid application id"))
		return
	}

	app, err := op(c.Request.Context(), id, ports.Actor{UserID: userID, Role: role})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toApplicationResponse(app))
}
