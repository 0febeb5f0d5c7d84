package handler

import (
	"io"
	"strconv"

	"sevapay/internal/adapter/http/dto"
	"sevapay/internal/adapter/http/middleware"
	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
	"sevapay/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet balance, statement, top-up and withdrawal
// endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	topupSvc  ports.TopupService
	notifier  ports.BalanceNotifier
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, topupSvc ports.TopupService, notifier ports.BalanceNotifier) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		topupSvc:  topupSvc,
		notifier:  notifier,
	}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.walletSvc.Balance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{Balance: balance})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.walletSvc.EnsureWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	params := ports.LedgerListParams{
		WalletID: wallet.ID,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if kind := c.Query("kind"); kind != "" {
		k := domain.EntryKind(kind)
		params.Kind = &k
	}
	if from, ok := queryInt64(c, "from"); ok {
		params.From = &from
	}
	if to, ok := queryInt64(c, "to"); ok {
		params.To = &to
	}

	entries, total, err := h.walletSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toLedgerListResponse(entries, total, params.Page, params.PageSize))
}

// Topup handles POST /api/v1/wallet/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.topupSvc.Initiate(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TopupInitResponse{
		OrderID:      order.OrderID,
		SessionToken: order.SessionToken,
		Fees:         toFeeBreakdownResponse(order.Fees),
	})
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.topupSvc.Withdraw(c.Request.Context(), userID, req.Amount, req.Reference, req.ProofURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLedgerEntryResponse(*entry))
}

// StreamBalance handles GET /api/v1/wallet/balance/stream as server-sent
// events. The first event is the current balance; subsequent events follow
// committed mutations.
func (h *WalletHandler) StreamBalance(c *gin.Context) {
	userID, _, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.walletSvc.EnsureWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	updates, cancel := h.notifier.Subscribe(wallet.ID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.SSEvent("balance", wallet.Balance)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case balance, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("balance", balance)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
