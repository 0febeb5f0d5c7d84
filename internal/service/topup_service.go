package service

import (
	"context"
	"fmt"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TopupServiceImpl implements ports.TopupService. Top-ups run through the
// external payment gateway: Initiate opens a checkout session and persists
// the order, the gateway calls back with the outcome, and the callback is
// resolved against the stored order. Only the stored owner is credited, and
// only the stored base amount. Withdrawals are immediate debits.
type TopupServiceImpl struct {
	walletSvc ports.WalletService
	feeSvc    ports.FeeService
	topupRepo ports.TopupOrderRepository
	gateway   ports.PaymentGateway
	log       zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(
	walletSvc ports.WalletService,
	feeSvc ports.FeeService,
	topupRepo ports.TopupOrderRepository,
	gateway ports.PaymentGateway,
	log zerolog.Logger,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		walletSvc: walletSvc,
		feeSvc:    feeSvc,
		topupRepo: topupRepo,
		gateway:   gateway,
		log:       log,
	}
}

// Initiate opens a gateway checkout session for a top-up and persists the
// order. The customer pays the quoted total at the gateway; the wallet is
// credited the stored base amount when the gateway confirms.
func (s *TopupServiceImpl) Initiate(ctx context.Context, ownerID uuid.UUID, amount int64) (*ports.TopupSession, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	if _, err := s.walletSvc.EnsureWallet(ctx, ownerID); err != nil {
		return nil, err
	}

	fees, err := s.feeSvc.Quote(ctx, amount)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, fees.TotalAmount, ownerID)
	if err != nil {
		return nil, err
	}

	record := domain.NewTopupOrder(ownerID, order.OrderID, amount, fees.TotalAmount)
	if err := s.topupRepo.Create(ctx, record); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create topup order: %w", err))
	}

	s.log.Info().
		Str("owner_id", ownerID.String()).
		Str("gateway_order", order.OrderID).
		Int64("amount", amount).
		Msg("topup initiated")
	return &ports.TopupSession{
		OrderID:      order.OrderID,
		SessionToken: order.SessionToken,
		Fees:         fees,
	}, nil
}

// HandleGatewayCallback applies the gateway's final word on a checkout. The
// callback is resolved against the persisted order: an unknown gateway order
// ID is rejected, and a success credits the stored owner the stored base
// amount. The gateway order ID is the credit's idempotency reference, so
// redelivered callbacks cannot credit twice. A failed checkout moves no money.
func (s *TopupServiceImpl) HandleGatewayCallback(ctx context.Context, cb ports.GatewayCallback) (*domain.LedgerEntry, error) {
	order, err := s.topupRepo.GetByGatewayOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get topup order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("topup order")
	}

	if !cb.Success {
		if _, err := s.topupRepo.TransitionStatus(ctx, order.ID, domain.TopupStatusInitiated, domain.TopupStatusFailed); err != nil {
			s.log.Error().Err(err).Str("gateway_order", cb.OrderID).Msg("mark topup failed")
		}
		s.log.Info().Str("gateway_order", cb.OrderID).Msg("topup checkout failed, nothing to credit")
		return nil, nil
	}

	entry, err := s.walletSvc.Credit(ctx, ports.WalletMutation{
		OwnerID:     order.OwnerID,
		Kind:        domain.EntryKindDeposit,
		Amount:      order.BaseAmount,
		Reference:   topupReference(cb.OrderID),
		Description: "wallet topup via gateway",
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.topupRepo.TransitionStatus(ctx, order.ID, domain.TopupStatusInitiated, domain.TopupStatusCredited); err != nil {
		// The credit settled; a rerun resolves through its idempotency
		s.log.Error().Err(err).Str("gateway_order", cb.OrderID).Msg("mark topup credited")
	}

	s.log.Info().
		Str("gateway_order", cb.OrderID).
		Str("owner_id", order.OwnerID.String()).
		Int64("amount", order.BaseAmount).
		Msg("topup credited")
	return entry, nil
}

// Withdraw debits the owner's wallet for a payout. The payout itself is
// processed out of band; proofURL points at the uploaded payout record.
// Retries with the same reference return the original debit.
func (s *TopupServiceImpl) Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference, proofURL string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	entry, err := s.walletSvc.Debit(ctx, ports.WalletMutation{
		OwnerID:     ownerID,
		Kind:        domain.EntryKindWithdrawal,
		Amount:      amount,
		Reference:   withdrawalReference(reference),
		Description: fmt.Sprintf("withdrawal (proof: %s)", proofURL),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("owner_id", ownerID.String()).
		Int64("amount", amount).
		Msg("withdrawal debited")
	return entry, nil
}

func topupReference(gatewayOrderID string) string {
	return "TOP-" + gatewayOrderID
}

// withdrawalReference keys the debit on the caller's idempotency key when
// supplied, else on a fresh UUID.
func withdrawalReference(key string) string {
	if key == "" {
		key = uuid.NewString()
	}
	return "WDR-" + key
}
