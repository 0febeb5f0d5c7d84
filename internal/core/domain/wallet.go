package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable balance in minor currency units (paise).
// The balance is derived state: it must always equal the signed sum of the
// wallet's COMPLETED ledger entries.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for an owner. Wallets are created
// lazily on first need and never deleted while the owner exists.
func NewWallet(ownerID uuid.UUID) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
