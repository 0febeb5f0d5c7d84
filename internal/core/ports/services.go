package ports

import (
	"context"
	"time"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- External collaborator ports ---

// AggregatorStatus is the outcome reported by the recharge aggregator.
type AggregatorStatus string

const (
	AggregatorStatusSuccess AggregatorStatus = "SUCCESS"
	AggregatorStatusFailed  AggregatorStatus = "FAILED"
	AggregatorStatusPending AggregatorStatus = "PENDING"
)

// AggregatorSubmitRequest carries one recharge to the aggregator.
type AggregatorSubmitRequest struct {
	OrderID      uuid.UUID
	OperatorCode string
	TargetNumber string
	Amount       int64
	BillRef      *string // ref_id from a prior bill fetch, if any
}

// AggregatorResult is the aggregator's synchronous answer.
type AggregatorResult struct {
	Status AggregatorStatus
	Ref    string
}

// AggregatorClient is the recharge/bill-pay provider boundary.
// Implementations must enforce a bounded timeout; a timeout or 5xx surfaces
// as apperror.ErrExternalServiceUnavailable, never as success or failure.
type AggregatorClient interface {
	// DetectOperator guesses operator/circle from a number. Returns nil, nil
	// when detection fails: detection is a convenience, never a blocker.
	DetectOperator(ctx context.Context, number string) (*domain.OperatorHint, error)
	ListPlans(ctx context.Context, operatorCode string, circleCode *string) ([]domain.Plan, error)
	FetchBill(ctx context.Context, operatorCode, number string) (*domain.BillDetails, error)
	Submit(ctx context.Context, req AggregatorSubmitRequest) (*AggregatorResult, error)
	// CheckStatus re-queries an earlier submission for reconciliation.
	CheckStatus(ctx context.Context, orderID uuid.UUID) (*AggregatorResult, error)
}

// GatewayOrder is a checkout session created at the payment gateway.
type GatewayOrder struct {
	OrderID      string
	SessionToken string
}

// PaymentGateway is the top-up checkout boundary. The client completes
// checkout externally; the gateway calls back with the final status.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, ownerID uuid.UUID) (*GatewayOrder, error)
}

// TokenService validates tokens minted by the external identity provider.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed identity claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// CallbackDedupe suppresses duplicate webhook deliveries.
type CallbackDedupe interface {
	// CheckAndSet atomically records a delivery key. Returns true when the
	// delivery is new, false when it was already seen.
	CheckAndSet(ctx context.Context, provider, ref string, ttl time.Duration) (bool, error)
}

// PlanCache caches aggregator plan listings (serialized JSON).
type PlanCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// BalanceNotifier publishes committed balance changes to live subscribers,
// replacing any client-side balance recomputation.
type BalanceNotifier interface {
	Subscribe(walletID uuid.UUID) (<-chan int64, func())
	Publish(walletID uuid.UUID, balance int64)
}

// --- Service ports (business logic) ---

// WalletMutation is a validated request to move money on a wallet.
// Reference is the caller-supplied idempotency key.
type WalletMutation struct {
	OwnerID     uuid.UUID
	Kind        domain.EntryKind
	Amount      int64
	Reference   string
	Description string
}

// WalletService owns every balance mutation. The Tx variants run inside a
// caller-held transaction so workflows can settle atomically with their own
// state changes.
type WalletService interface {
	Credit(ctx context.Context, req WalletMutation) (*domain.LedgerEntry, error)
	CreditTx(ctx context.Context, tx pgx.Tx, req WalletMutation) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, req WalletMutation) (*domain.LedgerEntry, error)
	DebitTx(ctx context.Context, tx pgx.Tx, req WalletMutation) (*domain.LedgerEntry, error)
	Refund(ctx context.Context, reference, reason string) (*domain.LedgerEntry, error)
	RefundTx(ctx context.Context, tx pgx.Tx, reference, reason string) (*domain.LedgerEntry, error)
	Balance(ctx context.Context, ownerID uuid.UUID) (int64, error)
	EnsureWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	ListEntries(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// NotifyBalance re-reads the owner's committed balance and publishes it
	// to live subscribers. Callers of the Tx variants invoke it after commit.
	NotifyBalance(ctx context.Context, ownerID uuid.UUID)
}

// FeeService quotes fee breakdowns from the current configuration.
type FeeService interface {
	Quote(ctx context.Context, baseAmount int64) (domain.FeeBreakdown, error)
}

// Actor identifies who is performing a staff operation.
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

// SubmitApplicationRequest holds validated input for a new application.
type SubmitApplicationRequest struct {
	ApplicantID uuid.UUID
	ServiceID   uuid.UUID
	BaseAmount  int64
	DocumentURL *string
}

// SettlementService drives the deferred-settlement application lifecycle.
type SettlementService interface {
	Submit(ctx context.Context, req SubmitApplicationRequest) (*domain.Application, error)
	Approve(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Application, error)
	Reject(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Application, error)
	Complete(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Application, error)
	Reapply(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Application, error)
	Delete(ctx context.Context, id uuid.UUID, actor Actor) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]domain.Application, error)
}

// PurchaseRequest holds validated input for a recharge purchase.
type PurchaseRequest struct {
	PurchaserID  uuid.UUID
	Role         domain.Role
	ServiceType  domain.ServiceType
	OperatorCode string
	CircleCode   *string
	TargetNumber string
	Amount       int64
	BillRef      *string
}

// ConfirmRequest is an asynchronous aggregator outcome (webhook or
// reconciliation) for an order.
type ConfirmRequest struct {
	OrderID       uuid.UUID
	Status        AggregatorStatus
	AggregatorRef string
}

// RechargeService orchestrates the immediate-settlement pipeline.
type RechargeService interface {
	DetectOperator(ctx context.Context, number string) (*domain.OperatorHint, error)
	ListPlans(ctx context.Context, operatorCode string, circleCode *string) ([]domain.Plan, error)
	FetchBill(ctx context.Context, operatorCode, number string) (*domain.BillDetails, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.RechargeOrder, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*domain.RechargeOrder, error)
	// ResolvePending sweeps stale PENDING_CONFIRMATION orders through
	// CheckStatus. Returns the number of orders resolved.
	ResolvePending(ctx context.Context) (int, error)
}

// TopupSession is an opened gateway checkout for a top-up.
type TopupSession struct {
	OrderID      string
	SessionToken string
	Fees         domain.FeeBreakdown
}

// GatewayCallback is the gateway's final word on a checkout. It carries only
// the gateway order ID and the outcome; owner and amount are resolved from
// the persisted top-up order, never trusted from the wire.
type GatewayCallback struct {
	OrderID string
	Success bool
}

// TopupService drives gateway top-ups and withdrawals.
type TopupService interface {
	Initiate(ctx context.Context, ownerID uuid.UUID, amount int64) (*TopupSession, error)
	HandleGatewayCallback(ctx context.Context, cb GatewayCallback) (*domain.LedgerEntry, error)
	// Withdraw debits the wallet for an out-of-band payout. reference is the
	// caller's idempotency key; when empty a fresh one is generated.
	Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference, proofURL string) (*domain.LedgerEntry, error)
}
