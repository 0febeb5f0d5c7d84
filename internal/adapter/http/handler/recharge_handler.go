package handler

import (
	"sevapay/internal/adapter/http/dto"
	"sevapay/internal/adapter/http/middleware"
	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
	"sevapay/pkg/response"

	"github.com/gin-gonic/gin"
)

// RechargeHandler handles the recharge catalog and purchase endpoints.
type RechargeHandler struct {
	rechargeSvc ports.RechargeService
}

// NewRechargeHandler creates a new RechargeHandler.
func NewRechargeHandler(rechargeSvc ports.RechargeService) *RechargeHandler {
	return &RechargeHandler{rechargeSvc: rechargeSvc}
}

// Detect handles GET /api/v1/recharge/detect?number=...
func (h *RechargeHandler) Detect(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		response.Error(c, apperror.Validation("number is required"))
		return
	}

	hint, err := h.rechargeSvc.DetectOperator(c.Request.Context(), number)
	if err != nil {
		response.Error(c, err)
		return
	}
	if hint == nil {
		// Detection is best effort; an empty hint means manual selection
		response.OK(c, nil)
		return
	}

	response.OK(c, dto.OperatorHintResponse{
		OperatorCode: hint.OperatorCode,
		CircleCode:   hint.CircleCode,
	})
}

// Plans handles GET /api/v1/recharge/plans?operator=...&circle=...
func (h *RechargeHandler) Plans(c *gin.Context) {
	operator := c.Query("operator")
	if operator == "" {
		response.Error(c, apperror.Validation("operator is required"))
		return
	}
	var circle *string
	if raw := c.Query("circle"); raw != "" {
		circle = &raw
	}

	plans, err := h.rechargeSvc.ListPlans(c.Request.Context(), operator, circle)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, dto.PlanResponse{
			Amount:      p.Amount,
			Validity:    p.Validity,
			Description: p.Description,
			Category:    p.Category,
		})
	}
	response.OK(c, items)
}

// Bill handles GET /api/v1/recharge/bill?operator=...&number=...
func (h *RechargeHandler) Bill(c *gin.Context) {
	operator := c.Query("operator")
	number := c.Query("number")
	if operator == "" || number == "" {
		response.Error(c, apperror.Validation("operator and number are required"))
		return
	}

	bill, err := h.rechargeSvc.FetchBill(c.Request.Context(), operator, number)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BillResponse{
		CustomerName: bill.CustomerName,
		DueAmount:    bill.DueAmount,
		DueDate:      bill.DueDate.Format("2006-01-02"),
		RefID:        bill.RefID,
	})
}

// Purchase handles POST /api/v1/recharge.
func (h *RechargeHandler) Purchase(c *gin.Context) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	order, err := h.rechargeSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		PurchaserID:  userID,
		Role:         role,
		ServiceType:  domain.ServiceType(req.ServiceType),
		OperatorCode: req.OperatorCode,
		CircleCode:   req.CircleCode,
		TargetNumber: req.TargetNumber,
		Amount:       req.Amount,
		BillRef:      req.BillRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toOrderResponse(order))
}
