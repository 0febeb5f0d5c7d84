package ports

import (
	"context"
	"time"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64) error
}

// LedgerRepository defines persistence for the append-only transaction ledger.
// The append and the wallet balance update are committed as one unit by the
// caller holding the transaction.
type LedgerRepository interface {
	// AppendIfAbsent inserts the entry unless a COMPLETED entry with the same
	// (reference, kind) already exists. Returns false when the insert was
	// skipped, making replays no-ops.
	AppendIfAbsent(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	// GetCompletedByReference returns the COMPLETED entry for (reference, kind),
	// or nil when absent.
	GetCompletedByReference(ctx context.Context, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error)
	// GetCompletedDebitByReference returns the COMPLETED debit-direction entry
	// for a reference, or nil. Used to locate the original charge of a refund.
	GetCompletedDebitByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// SumCompletedByWallet returns the signed sum of COMPLETED entries,
	// used by reconciliation to audit the derived balance.
	SumCompletedByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	WalletID uuid.UUID
	Kind     *domain.EntryKind
	Status   *domain.EntryStatus
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// ApplicationRepository defines persistence for service applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error)
	Update(ctx context.Context, tx pgx.Tx, app *domain.Application) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]domain.Application, error)
}

// RechargeOrderRepository defines persistence for recharge orders.
type RechargeOrderRepository interface {
	Create(ctx context.Context, order *domain.RechargeOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RechargeOrder, error)
	// TransitionStatus moves an order from one status to another atomically
	// (compare-and-swap on the current status). Returns false when the order
	// was not in the expected status, which makes replayed callbacks no-ops.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, aggregatorRef *string) (bool, error)
	SetLedgerEntry(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error
	// ListPendingConfirmation returns orders stuck in PENDING_CONFIRMATION
	// since before the cutoff, oldest first.
	ListPendingConfirmation(ctx context.Context, before time.Time, limit int) ([]domain.RechargeOrder, error)
}

// TopupOrderRepository defines persistence for gateway top-up orders. The
// unauthenticated gateway callback is resolved against these records.
type TopupOrderRepository interface {
	Create(ctx context.Context, order *domain.TopupOrder) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.TopupOrder, error)
	// TransitionStatus moves a top-up order from one status to another with a
	// compare-and-swap on the current status. Returns false when the order was
	// not in the expected status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.TopupStatus) (bool, error)
}

// OperatorRepository defines read access to the operator catalog.
type OperatorRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Operator, error)
	ListByServiceType(ctx context.Context, serviceType domain.ServiceType) ([]domain.Operator, error)
}

// FeeConfig is the current fee configuration snapshot.
type FeeConfig struct {
	GSTBps      int64
	PlatformFee int64
}

// FeeConfigRepository reads the fee settings from the configuration store.
// Values are read at quote time and snapshotted into the FeeBreakdown;
// later configuration changes never alter persisted breakdowns.
type FeeConfigRepository interface {
	Current(ctx context.Context) (FeeConfig, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
