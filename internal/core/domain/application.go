package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the deferred-settlement state machine:
// PENDING -> {APPROVED, REJECTED}; APPROVED -> COMPLETED.
// REJECTED and COMPLETED are terminal.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusCompleted ApplicationStatus = "COMPLETED"
)

// CanTransition reports whether the state machine admits from -> to.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	switch s {
	case ApplicationStatusPending:
		return to == ApplicationStatusApproved || to == ApplicationStatusRejected
	case ApplicationStatusApproved:
		return to == ApplicationStatusCompleted
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusCompleted
}

// Application is a service application settled on approval, not submission.
// The applicant is charged only when staff approve; a rejected application
// never retains a charge.
type Application struct {
	ID            uuid.UUID         `json:"id"`
	ApplicantID   uuid.UUID         `json:"applicant_id"`
	ServiceID     uuid.UUID         `json:"service_id"`
	Status        ApplicationStatus `json:"status"`
	Fees          FeeBreakdown      `json:"fees"`
	Charged       bool              `json:"charged"`
	IsReapply     bool              `json:"is_reapply"`
	LedgerEntryID *uuid.UUID        `json:"ledger_entry_id,omitempty"`
	DocumentURL   *string           `json:"document_url,omitempty"` // external storage, URL only
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewApplication creates a PENDING application with a fee snapshot.
func NewApplication(applicantID, serviceID uuid.UUID, fees FeeBreakdown) *Application {
	now := time.Now().UTC()
	return &Application{
		ID:          uuid.New(),
		ApplicantID: applicantID,
		ServiceID:   serviceID,
		Status:      ApplicationStatusPending,
		Fees:        fees,
		Charged:     false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Reapply derives a fresh PENDING application from a rejected one.
// Reapplications carry a zero breakdown: the applicant is not charged twice.
func (a *Application) Reapply() *Application {
	next := NewApplication(a.ApplicantID, a.ServiceID, ZeroFees())
	next.IsReapply = true
	return next
}

// Deletable reports whether the record may be removed. Charged applications
// must be rejected (and refunded) first.
func (a *Application) Deletable() bool {
	return !a.Charged
}
