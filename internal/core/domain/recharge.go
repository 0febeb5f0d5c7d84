package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceType is the category of a recharge/bill-payment order.
type ServiceType string

const (
	ServiceTypePrepaid     ServiceType = "PREPAID"
	ServiceTypePostpaid    ServiceType = "POSTPAID"
	ServiceTypeDTH         ServiceType = "DTH"
	ServiceTypeElectricity ServiceType = "ELECTRICITY"
)

// SupportsPlans reports whether catalog plans exist for this service type.
func (t ServiceType) SupportsPlans() bool {
	return t == ServiceTypePrepaid || t == ServiceTypeDTH
}

// SupportsBillFetch reports whether a due bill may be fetched for this type.
// Whether a specific operator actually supports it is an operator attribute.
func (t ServiceType) SupportsBillFetch() bool {
	return t == ServiceTypePostpaid || t == ServiceTypeElectricity
}

// OrderStatus is the immediate-settlement lifecycle of a recharge order.
// SUCCESS and FAILED are terminal; a FAILED order's debit has already been
// refunded. PENDING_CONFIRMATION holds the debited funds until a webhook or
// the reconciliation sweep resolves it.
type OrderStatus string

const (
	OrderStatusInitiated           OrderStatus = "INITIATED"
	OrderStatusDebited             OrderStatus = "DEBITED"
	OrderStatusSubmitted           OrderStatus = "SUBMITTED"
	OrderStatusSuccess             OrderStatus = "SUCCESS"
	OrderStatusFailed              OrderStatus = "FAILED"
	OrderStatusPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
)

// IsTerminal reports whether the status admits no further transition.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailed
}

// RechargeOrder records one recharge/bill-payment purchase.
type RechargeOrder struct {
	ID            uuid.UUID   `json:"id"`
	PurchaserID   uuid.UUID   `json:"purchaser_id"`
	PurchaserRole Role        `json:"purchaser_role"` // reward selection on async confirmation
	ServiceType   ServiceType `json:"service_type"`
	OperatorCode  string      `json:"operator_code"`
	CircleCode    *string     `json:"circle_code,omitempty"`
	TargetNumber  string      `json:"target_number"`
	Amount        int64       `json:"amount"` // minor units
	Status        OrderStatus `json:"status"`
	AggregatorRef *string     `json:"aggregator_ref,omitempty"`
	BillRef       *string     `json:"bill_ref,omitempty"` // ref_id from bill fetch, if any
	LedgerEntryID *uuid.UUID  `json:"ledger_entry_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewRechargeOrder creates an INITIATED order.
func NewRechargeOrder(purchaserID uuid.UUID, role Role, serviceType ServiceType, operatorCode string, circleCode *string, targetNumber string, amount int64) *RechargeOrder {
	now := time.Now().UTC()
	return &RechargeOrder{
		ID:            uuid.New(),
		PurchaserID:   purchaserID,
		PurchaserRole: role,
		ServiceType:   serviceType,
		OperatorCode:  operatorCode,
		CircleCode:    circleCode,
		TargetNumber:  targetNumber,
		Amount:        amount,
		Status:        OrderStatusInitiated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Plan is a catalog entry from the aggregator (UX convenience, never a
// purchase precondition).
type Plan struct {
	Amount      int64  `json:"amount"`
	Validity    string `json:"validity"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// BillDetails is a fetched due bill for operators that support bill fetch.
type BillDetails struct {
	CustomerName string    `json:"customer_name"`
	DueAmount    int64     `json:"due_amount"`
	DueDate      time.Time `json:"due_date"`
	RefID        string    `json:"ref_id"`
}

// OperatorHint is a heuristic operator/circle detection result.
type OperatorHint struct {
	OperatorCode string  `json:"operator_code"`
	CircleCode   *string `json:"circle_code,omitempty"`
}
