package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopupStatus is the lifecycle of a gateway top-up order.
// INITIATED means the checkout session is open; CREDITED and FAILED are
// terminal.
type TopupStatus string

const (
	TopupStatusInitiated TopupStatus = "INITIATED"
	TopupStatusCredited  TopupStatus = "CREDITED"
	TopupStatusFailed    TopupStatus = "FAILED"
)

// TopupOrder records one gateway checkout opened for a wallet top-up. The
// gateway callback resolves against this record, so the owner and the base
// amount credited come from here, never from the callback body.
type TopupOrder struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        uuid.UUID   `json:"owner_id"`
	GatewayOrderID string      `json:"gateway_order_id"`
	BaseAmount     int64       `json:"base_amount"`  // minor units, credited on success
	TotalAmount    int64       `json:"total_amount"` // fee-inclusive, collected by the gateway
	Status         TopupStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewTopupOrder creates an INITIATED top-up order.
func NewTopupOrder(ownerID uuid.UUID, gatewayOrderID string, baseAmount, totalAmount int64) *TopupOrder {
	now := time.Now().UTC()
	return &TopupOrder{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		GatewayOrderID: gatewayOrderID,
		BaseAmount:     baseAmount,
		TotalAmount:    totalAmount,
		Status:         TopupStatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
