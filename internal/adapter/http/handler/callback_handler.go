package handler

import (
	"time"

	"sevapay/internal/adapter/http/dto"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
	"sevapay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook deliveries stay deduplicated for this long. Anything older replays
// harmlessly against terminal-state checks and ledger idempotency.
const callbackDedupeTTL = 24 * time.Hour

// CallbackHandler handles inbound webhooks from the payment gateway and the
// recharge aggregator. Both providers redeliver; both paths are idempotent.
type CallbackHandler struct {
	topupSvc    ports.TopupService
	rechargeSvc ports.RechargeService
	dedupe      ports.CallbackDedupe
	log         zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(topupSvc ports.TopupService, rechargeSvc ports.RechargeService, dedupe ports.CallbackDedupe, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		topupSvc:    topupSvc,
		rechargeSvc: rechargeSvc,
		dedupe:      dedupe,
		log:         log,
	}
}

// Gateway handles POST /api/v1/callbacks/gateway. The callback carries only
// the gateway order ID and outcome; the credit resolves against the stored
// top-up order and is idempotent on the gateway order reference, so
// redeliveries pass through safely.
func (h *CallbackHandler) Gateway(c *gin.Context) {
	var req dto.GatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	entry, err := h.topupSvc.HandleGatewayCallback(c.Request.Context(), ports.GatewayCallback{
		OrderID: req.OrderID,
		Success: req.Success,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if entry == nil {
		// Failed checkout acknowledged, nothing credited
		response.OK(c, gin.H{"credited": false})
		return
	}

	response.OK(c, toLedgerEntryResponse(*entry))
}

// Recharge handles POST /api/v1/callbacks/recharge. The dedupe cache
// absorbs fast redeliveries; slower ones hit the terminal-state check.
func (h *CallbackHandler) Recharge(c *gin.Context) {
	var req dto.RechargeCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid order_id"))
		return
	}

	deliveryKey := req.OrderID + ":" + req.Status
	isNew, err := h.dedupe.CheckAndSet(c.Request.Context(), "aggregator", deliveryKey, callbackDedupeTTL)
	if err != nil {
		h.log.Warn().Err(err).Str("order_id", req.OrderID).Msg("callback dedupe unavailable, relying on status checks")
	} else if !isNew {
		response.OK(c, gin.H{"duplicate": true})
		return
	}

	order, err := h.rechargeSvc.Confirm(c.Request.Context(), ports.ConfirmRequest{
		OrderID:       orderID,
		Status:        ports.AggregatorStatus(req.Status),
		AggregatorRef: req.AggregatorRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toOrderResponse(order))
}
