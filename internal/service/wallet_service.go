package service

import (
	"context"
	"fmt"
	"time"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService. It is the only writer
// of wallet balances: every mutation locks the wallet row, appends a ledger
// entry and updates the derived balance in one database transaction.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	notifier   ports.BalanceNotifier
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	notifier ports.BalanceNotifier,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		notifier:   notifier,
		log:        log,
	}
}

// Credit adds funds to the owner's wallet in its own transaction.
func (s *WalletServiceImpl) Credit(ctx context.Context, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if !req.Kind.IsCredit() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s is not a credit", req.Kind))
	}
	return s.run(ctx, req, s.CreditTx)
}

// CreditTx adds funds inside a caller-held transaction.
func (s *WalletServiceImpl) CreditTx(ctx context.Context, tx pgx.Tx, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if !req.Kind.IsCredit() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s is not a credit", req.Kind))
	}
	return s.mutateTx(ctx, tx, req)
}

// Debit removes funds from the owner's wallet in its own transaction.
func (s *WalletServiceImpl) Debit(ctx context.Context, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if req.Kind.IsCredit() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s is not a debit", req.Kind))
	}
	return s.run(ctx, req, s.DebitTx)
}

// DebitTx removes funds inside a caller-held transaction.
func (s *WalletServiceImpl) DebitTx(ctx context.Context, tx pgx.Tx, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if req.Kind.IsCredit() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s is not a debit", req.Kind))
	}
	return s.mutateTx(ctx, tx, req)
}

// Refund reverses a completed debit in its own transaction. Replays with the
// same reference return the existing refund entry.
func (s *WalletServiceImpl) Refund(ctx context.Context, reference, reason string) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.RefundTx(ctx, dbTx, reference, reason)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.NotifyBalance(ctx, entry.OwnerID)
	return entry, nil
}

// RefundTx reverses a completed debit inside a caller-held transaction.
// The refund entry reuses the original reference with kind REFUND, so the
// uniqueness rule guarantees at most one refund per charge.
func (s *WalletServiceImpl) RefundTx(ctx context.Context, tx pgx.Tx, reference, reason string) (*domain.LedgerEntry, error) {
	original, err := s.ledgerRepo.GetCompletedDebitByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find original debit: %w", err))
	}
	if original == nil {
		return nil, apperror.ErrNotFound("original transaction")
	}

	// Serialize with other mutations on the same wallet
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, original.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		OwnerID:         original.OwnerID,
		Kind:            domain.EntryKindRefund,
		Amount:          original.Amount,
		Status:          domain.EntryStatusCompleted,
		Reference:       reference,
		Description:     reason,
		OriginalEntryID: &original.ID,
		CreatedAt:       time.Now().UTC(),
	}

	inserted, err := s.ledgerRepo.AppendIfAbsent(ctx, tx, entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append refund entry: %w", err))
	}
	if !inserted {
		// Refund already settled, return the existing entry
		existing, err := s.ledgerRepo.GetCompletedByReference(ctx, reference, domain.EntryKindRefund)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load existing refund: %w", err))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("refund %s skipped but not found", reference))
		}
		return existing, nil
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance+entry.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(domain.EntryKindRefund)).Inc()
	s.log.Info().
		Str("reference", reference).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", entry.Amount).
		Msg("refund settled")
	return entry, nil
}

// Balance returns the owner's current balance. An owner without a wallet
// has a zero balance; the wallet row is created lazily on first credit.
func (s *WalletServiceImpl) Balance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

// EnsureWallet returns the owner's wallet, creating it when absent.
func (s *WalletServiceImpl) EnsureWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(ownerID)
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		// Lost a creation race: the unique owner_id constraint fired
		existing, getErr := s.walletRepo.GetByOwnerID(ctx, ownerID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	return wallet, nil
}

// ListEntries returns a filtered, paginated slice of ledger entries.
func (s *WalletServiceImpl) ListEntries(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.ledgerRepo.List(ctx, params)
}

// NotifyBalance re-reads the owner's committed balance and publishes it.
// Best effort: a failed read only costs subscribers one update.
func (s *WalletServiceImpl) NotifyBalance(ctx context.Context, ownerID uuid.UUID) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil || wallet == nil {
		return
	}
	s.notifier.Publish(wallet.ID, wallet.Balance)
}

/// run wraps a Tx mutation in its own transaction: fast-path idempotency
// check, lazy wallet creation for credits, commit, then notify.
func (s *WalletServiceImpl) run(
	ctx context.Context,
	req ports.WalletMutation,
	mutate func(context.Context, pgx.Tx, ports.WalletMutation) (*domain.LedgerEntry, error),
) (*domain.LedgerEntry, error) {
	if err := validateMutation(req); err != nil {
		return nil, err
	}

	// Fast path: reference already settled
	existing, err := s.ledgerRepo.GetCompletedByReference(ctx, req.Reference, req.Kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
	}
	if existing != nil {
		return s.replay(existing, req)
	}

	if req.Kind.IsCredit() {
		if _, err := s.EnsureWallet(ctx, req.OwnerID); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := mutate(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.NotifyBalance(ctx, req.OwnerID)
	return entry, nil
}

// mutateTx performs the locked append-and-update inside tx. Callers have
// already validated the direction of req.Kind.
func (s *WalletServiceImpl) mutateTx(ctx context.Context, tx pgx.Tx, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if err := validateMutation(req); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByOwnerIDForUpdate(ctx, tx, req.OwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if !req.Kind.IsCredit() && wallet.Balance < req.Amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		OwnerID:     req.OwnerID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Status:      domain.EntryStatusCompleted,
		Reference:   req.Reference,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}

	inserted, err := s.ledgerRepo.AppendIfAbsent(ctx, tx, entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}
	if !inserted {
		// A concurrent request with the same reference won the race
		existing, err := s.ledgerRepo.GetCompletedByReference(ctx, req.Reference, req.Kind)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load existing entry: %w", err))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("entry %s skipped but not found", req.Reference))
		}
		return s.replay(existing, req)
	}

	newBalance := wallet.Balance + entry.SignedAmount()
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(req.Kind)).Inc()
	s.log.Info().
		Str("reference", req.Reference).
		Str("kind", string(req.Kind)).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", req.Amount).
		Int64("balance", newBalance).
		Msg("wallet mutation settled")
	return entry, nil
}

// replay resolves a reference that already settled: identical parameters
// make the retry a no-op success, anything else is a conflict.
func (s *WalletServiceImpl) replay(existing *domain.LedgerEntry, req ports.WalletMutation) (*domain.LedgerEntry, error) {
	if existing.OwnerID == req.OwnerID && existing.Amount == req.Amount {
		return existing, nil
	}
	return nil, apperror.ErrDuplicateReference(req.Reference)
}

func validateMutation(req ports.WalletMutation) error {
	if req.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if req.Reference == "" {
		return apperror.Validation("reference is required")
	}
	return nil
}
