package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry. The kind implies the direction of
// the money movement; amounts are always stored positive.
type EntryKind string

const (
	EntryKindDeposit       EntryKind = "DEPOSIT"
	EntryKindWithdrawal    EntryKind = "WITHDRAWAL"
	EntryKindSchemePayment EntryKind = "SCHEME_PAYMENT"
	EntryKindRefund        EntryKind = "REFUND"
	EntryKindCommission    EntryKind = "COMMISSION"
	EntryKindCashback      EntryKind = "CASHBACK"
	EntryKindRecharge      EntryKind = "RECHARGE"
)

// IsCredit reports whether the kind increases the wallet balance.
func (k EntryKind) IsCredit() bool {
	switch k {
	case EntryKindDeposit, EntryKindRefund, EntryKindCommission, EntryKindCashback:
		return true
	}
	return false
}

// Direction returns +1 for credits and -1 for debits, for signed sums.
func (k EntryKind) Direction() int64 {
	if k.IsCredit() {
		return 1
	}
	return -1
}

// EntryStatus is the lifecycle state of a ledger entry.
// Terminal states are immutable once reached.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transition.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusFailed || s == EntryStatusCancelled
}

// LedgerEntry is an immutable record of one balance-affecting event.
// Reference is the caller-supplied idempotency key: among COMPLETED entries
// a given (reference, kind) pair appears at most once.
type LedgerEntry struct {
	ID              uuid.UUID   `json:"id"`
	WalletID        uuid.UUID   `json:"wallet_id"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	Kind            EntryKind   `json:"kind"`
	Amount          int64       `json:"amount"` // minor units, always positive
	Status          EntryStatus `json:"status"`
	Reference       string      `json:"reference"`
	Description     string      `json:"description"`
	OriginalEntryID *uuid.UUID  `json:"original_entry_id,omitempty"` // set on REFUND entries
	CreatedAt       time.Time   `json:"created_at"`
}

// SignedAmount returns the amount with the kind's direction applied.
func (e *LedgerEntry) SignedAmount() int64 {
	return e.Amount * e.Kind.Direction()
}
