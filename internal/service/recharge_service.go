package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const planCacheTTL = time.Hour

// RechargeServiceImpl implements ports.RechargeService: the
// immediate-settlement pipeline. Funds are debited before the aggregator is
// called, the aggregator is never called while a database lock is held, and
// an unknown outcome parks the order in PENDING_CONFIRMATION with the funds
// held until a webhook or the reconciliation sweep resolves it.
type RechargeServiceImpl struct {
	orderRepo    ports.RechargeOrderRepository
	operatorRepo ports.OperatorRepository
	walletSvc    ports.WalletService
	aggregator   ports.AggregatorClient
	planCache    ports.PlanCache
	minPendAge   time.Duration
	sweepBatch   int
	log          zerolog.Logger
}

// NewRechargeService creates a new RechargeServiceImpl.
func NewRechargeService(
	orderRepo ports.RechargeOrderRepository,
	operatorRepo ports.OperatorRepository,
	walletSvc ports.WalletService,
	aggregator ports.AggregatorClient,
	planCache ports.PlanCache,
	minPendingAge time.Duration,
	sweepBatch int,
	log zerolog.Logger,
) *RechargeServiceImpl {
	return &RechargeServiceImpl{
		orderRepo:    orderRepo,
		operatorRepo: operatorRepo,
		walletSvc:    walletSvc,
		aggregator:   aggregator,
		planCache:    planCache,
		minPendAge:   minPendingAge,
		sweepBatch:   sweepBatch,
		log:          log,
	}
}

// DetectOperator guesses operator/circle for a number. Never an error the
// client must handle: a failed detection means manual selection.
func (s *RechargeServiceImpl) DetectOperator(ctx context.Context, number string) (*domain.OperatorHint, error) {
	return s.aggregator.DetectOperator(ctx, number)
}

// ListPlans returns the operator's plan catalog, cached to spare the
// aggregator. A cold cache with an unreachable aggregator is an error; the
// catalog is informational, so nothing downstream depends on it.
func (s *RechargeServiceImpl) ListPlans(ctx context.Context, operatorCode string, circleCode *string) ([]domain.Plan, error) {
	key := operatorCode
	if circleCode != nil {
		key += ":" + *circleCode
	}

	if cached, err := s.planCache.Get(ctx, key); err == nil && cached != nil {
		var plans []domain.Plan
		if err := json.Unmarshal(cached, &plans); err == nil {
			return plans, nil
		}
	}

	plans, err := s.aggregator.ListPlans(ctx, operatorCode, circleCode)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(plans); err == nil {
		if err := s.planCache.Set(ctx, key, raw, planCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
		}
	}
	return plans, nil
}

// FetchBill fetches the due bill for operators that support it.
func (s *RechargeServiceImpl) FetchBill(ctx context.Context, operatorCode, number string) (*domain.BillDetails, error) {
	op, err := s.operator(ctx, operatorCode)
	if err != nil {
		return nil, err
	}
	if !op.ServiceType.SupportsBillFetch() || !op.SupportsBillFetch {
		return nil, apperror.ErrPreconditionFailed(fmt.Sprintf("operator %s does not support bill fetch", operatorCode))
	}
	return s.aggregator.FetchBill(ctx, operatorCode, number)
}

// Purchase runs the immediate-settlement pipeline:
// validate, debit, submit, resolve. The debit commits before the aggregator
// is called; a definitive failure refunds it, an unknown outcome holds it.
func (s *RechargeServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*domain.RechargeOrder, error) {
	op, err := s.operator(ctx, req.OperatorCode)
	if err != nil {
		return nil, err
	}
	if op.ServiceType != req.ServiceType {
		return nil, apperror.Validation(fmt.Sprintf("operator %s does not serve %s", op.Code, req.ServiceType))
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !op.AmountInBounds(req.Amount) {
		return nil, apperror.Validation(fmt.Sprintf("amount out of operator bounds [%d, %d]", op.MinAmount, op.MaxAmount))
	}

	// Advisory pre-check: fail fast before creating an order. The
	// authoritative check happens under the wallet lock inside the debit.
	balance, err := s.walletSvc.Balance(ctx, req.PurchaserID)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	order := domain.NewRechargeOrder(req.PurchaserID, req.Role, req.ServiceType,
		req.OperatorCode, req.CircleCode, req.TargetNumber, req.Amount)
	order.BillRef = req.BillRef
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}

	// Debit first. Until the outcome is known, the money stays out of
	// the purchaser's reach.
	entry, err := s.walletSvc.Debit(ctx, ports.WalletMutation{
		OwnerID:     req.PurchaserID,
		Kind:        domain.EntryKindRecharge,
		Amount:      req.Amount,
		Reference:   orderReference(order.ID),
		Description: fmt.Sprintf("%s recharge %s", req.OperatorCode, req.TargetNumber),
	})
	if err != nil {
		s.move(ctx, order, domain.OrderStatusInitiated, domain.OrderStatusFailed, nil)
		return nil, err
	}
	s.move(ctx, order, domain.OrderStatusInitiated, domain.OrderStatusDebited, nil)
	if err := s.orderRepo.SetLedgerEntry(ctx, order.ID, entry.ID); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("link ledger entry failed")
	}
	order.LedgerEntryID = &entry.ID

	// Hand off to the aggregator. No database locks are held here.
	s.move(ctx, order, domain.OrderStatusDebited, domain.OrderStatusSubmitted, nil)
	result, err := s.aggregator.Submit(ctx, ports.AggregatorSubmitRequest{
		OrderID:      order.ID,
		OperatorCode: req.OperatorCode,
		TargetNumber: req.TargetNumber,
		Amount:       req.Amount,
		BillRef:      req.BillRef,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "EXT_001" {
			// Unknown outcome. The recharge may have executed; hold the
			// funds and let the webhook or the sweep decide.
			s.move(ctx, order, domain.OrderStatusSubmitted, domain.OrderStatusPendingConfirmation, nil)
			s.log.Warn().Str("order_id", order.ID.String()).Msg("aggregator unreachable, order pending confirmation")
			return s.reload(ctx, order.ID)
		}
		// The aggregator definitively rejected the request
		s.resolveFailed(ctx, order.ID, nil)
		return nil, err
	}

	s.applyOutcome(ctx, order.ID, domain.OrderStatusSubmitted, result.Status, result.Ref)
	return s.reload(ctx, order.ID)
}

// Confirm applies an asynchronous aggregator outcome (webhook delivery or
// reconciliation result). Replays and races resolve through the
// compare-and-swap on the order status.
func (s *RechargeServiceImpl) Confirm(ctx context.Context, req ports.ConfirmRequest) (*domain.RechargeOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status.IsTerminal() {
		// Already resolved; a replayed delivery changes nothing
		return order, nil
	}
	if order.Status != domain.OrderStatusSubmitted && order.Status != domain.OrderStatusPendingConfirmation {
		return nil, apperror.ErrPreconditionFailed(
			fmt.Sprintf("order %s is %s, not awaiting confirmation", order.ID, order.Status))
	}

	ref := req.AggregatorRef
	s.applyOutcome(ctx, order.ID, order.Status, req.Status, ref)
	return s.reload(ctx, req.OrderID)
}

// ResolvePending sweeps stale PENDING_CONFIRMATION orders through the
// aggregator's status API. Returns how many orders reached a terminal state.
func (s *RechargeServiceImpl) ResolvePending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.minPendAge)
	orders, err := s.orderRepo.ListPendingConfirmation(ctx, cutoff, s.sweepBatch)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list pending orders: %w", err))
	}

	resolved := 0
	for i := range orders {
		order := &orders[i]
		result, err := s.aggregator.CheckStatus(ctx, order.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("status check failed, will retry next sweep")
			continue
		}
		if result.Status == ports.AggregatorStatusPending {
			continue
		}
		s.applyOutcome(ctx, order.ID, domain.OrderStatusPendingConfirmation, result.Status, result.Ref)
		resolved++
	}

	if len(orders) > 0 {
		metrics.PendingConfirmationResolved.Add(float64(resolved))
		s.log.Info().Int("checked", len(orders)).Int("resolved", resolved).Msg("pending confirmation sweep finished")
	}
	return resolved, nil
}

// applyOutcome maps a definitive (or still pending) aggregator outcome onto
// the order. All money movement keys off the order ID, so losing the CAS
// race to a concurrent webhook cannot double-pay or double-refund.
func (s *RechargeServiceImpl) applyOutcome(ctx context.Context, orderID uuid.UUID, from domain.OrderStatus, status ports.AggregatorStatus, aggregatorRef string) {
	var ref *string
	if aggregatorRef != "" {
		ref = &aggregatorRef
	}

	switch status {
	case ports.AggregatorStatusSuccess:
		s.resolveSuccess(ctx, orderID, from, ref)
	case ports.AggregatorStatusFailed:
		s.resolveFailedFrom(ctx, orderID, from, ref)
	default:
		moved, err := s.orderRepo.TransitionStatus(ctx, orderID, from, domain.OrderStatusPendingConfirmation, ref)
		if err != nil {
			s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("park order failed")
		} else if moved {
			s.log.Info().Str("order_id", orderID.String()).Msg("order pending confirmation")
		}
	}
}

// resolveSuccess finalizes a successful recharge: CAS to SUCCESS, then pay
// the role-based reward. The reward reference derives from the order ID, so
// a rerun after a crash between the two steps cannot pay twice.
func (s *RechargeServiceImpl) resolveSuccess(ctx context.Context, orderID uuid.UUID, from domain.OrderStatus, ref *string) {
	moved, err := s.orderRepo.TransitionStatus(ctx, orderID, from, domain.OrderStatusSuccess, ref)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("finalize success failed")
		return
	}
	if !moved {
		return
	}
	metrics.RechargeOrdersTotal.WithLabelValues(string(domain.OrderStatusSuccess)).Inc()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil || order == nil {
		s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("reload order for reward failed")
		return
	}
	op, err := s.operatorRepo.GetByCode(ctx, order.OperatorCode)
	if err != nil || op == nil {
		s.log.Error().Err(err).Str("operator", order.OperatorCode).Msg("load operator for reward failed")
		return
	}

	kind, amount := op.RewardFor(order.PurchaserRole, order.Amount)
	if amount <= 0 {
		return
	}
	if _, err := s.walletSvc.Credit(ctx, ports.WalletMutation{
		OwnerID:     order.PurchaserID,
		Kind:        kind,
		Amount:      amount,
		Reference:   rewardReference(orderID),
		Description: fmt.Sprintf("%s reward for order %s", kind, orderID),
	}); err != nil {
		s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("reward credit failed")
	}
}

// resolveFailedFrom finalizes a failed recharge: refund the debit, then CAS
// to FAILED, so a FAILED order always has its refund settled. The refund
// reference is the debit reference, making replays no-ops. When the refund
// cannot be applied the order stays out of FAILED and is parked in
// PENDING_CONFIRMATION, where the reconciliation sweep retries it.
func (s *RechargeServiceImpl) resolveFailedFrom(ctx context.Context, orderID uuid.UUID, from domain.OrderStatus, ref *string) {
	if _, err := s.walletSvc.Refund(ctx, orderReference(orderID), "recharge failed"); err != nil {
		s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("refund failed, parking order")
		if from == domain.OrderStatusPendingConfirmation {
			return
		}
		if _, perr := s.orderRepo.TransitionStatus(ctx, orderID, from, domain.OrderStatusPendingConfirmation, ref); perr != nil {
			s.log.Error().Err(perr).Str("order_id", orderID.String()).Msg("park order failed")
		}
		return
	}
	moved, err := s.orderRepo.TransitionStatus(ctx, orderID, from, domain.OrderStatusFailed, ref)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", orderID.String()).Msg("finalize failure failed")
		return
	}
	if moved {
		metrics.RechargeOrdersTotal.WithLabelValues(string(domain.OrderStatusFailed)).Inc()
		s.log.Info().Str("order_id", orderID.String()).Msg("order failed, debit refunded")
	}
}

// resolveFailed is resolveFailedFrom for an order still SUBMITTED.
func (s *RechargeServiceImpl) resolveFailed(ctx context.Context, orderID uuid.UUID, ref *string) {
	s.resolveFailedFrom(ctx, orderID, domain.OrderStatusSubmitted, ref)
}

func (s *RechargeServiceImpl) move(ctx context.Context, order *domain.RechargeOrder, from, to domain.OrderStatus, ref *string) {
	moved, err := s.orderRepo.TransitionStatus(ctx, order.ID, from, to, ref)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID.String()).
			Str("from", string(from)).Str("to", string(to)).Msg("order transition failed")
		return
	}
	if moved {
		order.Status = to
		if to.IsTerminal() {
			metrics.RechargeOrdersTotal.WithLabelValues(string(to)).Inc()
		}
	}
}

func (s *RechargeServiceImpl) reload(ctx context.Context, orderID uuid.UUID) (*domain.RechargeOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

func (s *RechargeServiceImpl) operator(ctx context.Context, code string) (*domain.Operator, error) {
	op, err := s.operatorRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get operator: %w", err))
	}
	if op == nil {
		return nil, apperror.ErrNotFound("operator")
	}
	return op, nil
}

// orderReference is the ledger idempotency key for an order's debit and
// its refund.
func orderReference(id uuid.UUID) string {
	return "ORD-" + id.String()
}

// rewardReference is the ledger idempotency key for an order's reward.
func rewardReference(id uuid.UUID) string {
	return "RWD-" + id.String()
}
