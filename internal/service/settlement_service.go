package service

import (
	"context"
	"fmt"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"
	"sevapay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService. Applications
// are charged on approval, never on submission. Every settlement decision
// locks the application row, so concurrent staff actions serialize and the
// applicant is charged at most once.
type SettlementServiceImpl struct {
	appRepo    ports.ApplicationRepository
	walletSvc  ports.WalletService
	feeSvc     ports.FeeService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	appRepo ports.ApplicationRepository,
	walletSvc ports.WalletService,
	feeSvc ports.FeeService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		appRepo:    appRepo,
		walletSvc:  walletSvc,
		feeSvc:     feeSvc,
		transactor: transactor,
		log:        log,
	}
}

// Submit creates a PENDING application with a snapshotted fee quote.
// No money moves here.
func (s *SettlementServiceImpl) Submit(ctx context.Context, req ports.SubmitApplicationRequest) (*domain.Application, error) {
	if req.BaseAmount < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	fees, err := s.feeSvc.Quote(ctx, req.BaseAmount)
	if err != nil {
		return nil, err
	}

	app := domain.NewApplication(req.ApplicantID, req.ServiceID, fees)
	app.DocumentURL = req.DocumentURL

	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create application: %w", err))
	}

	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("applicant_id", req.ApplicantID.String()).
		Int64("total", fees.TotalAmount).
		Msg("application submitted")
	return app, nil
}

// Approve moves a PENDING application to APPROVED and charges the applicant
// the snapshotted total, atomically. An insufficient balance leaves the
// application PENDING.
func (s *SettlementServiceImpl) Approve(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Application, error) {
	if !actor.Role.CanSettleApplications() {
		return nil, apperror.ErrForbidden()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	app, err := s.lockApplication(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransition(domain.ApplicationStatusApproved) {
		return nil, apperror.ErrInvalidTransition(string(app.Status), string(domain.ApplicationStatusApproved))
	}

	// Zero-total applications (reapplications) approve without a charge
	if app.Fees.TotalAmount > 0 {
		entry, err := s.walletSvc.DebitTx(ctx, dbTx, ports.WalletMutation{
			OwnerID:     app.ApplicantID,
			Kind:        domain.EntryKindSchemePayment,
			Amount:      app.Fees.TotalAmount,
			Reference:   applicationReference(app.ID),
			Description: "service application charge",
		})
		if err != nil {
			return nil, err
		}
		app.Charged = true
		app.LedgerEntryID = &entry.ID
	}

	app.Status = domain.ApplicationStatusApproved
	if err := s.appRepo.Update(ctx, dbTx, app); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update application: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.ApplicationsSettled.WithLabelValues("approved").Inc()
	s.walletSvc.NotifyBalance(ctx, app.ApplicantID)
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Bool("charged", app.Charged).
		Msg("application approved")
	return app, nil
}

// Reject moves a PENDING application to REJECTED. An approved application
// cannot be rejected. If a charge is held, it is refunded in the same
// transaction, so a rejected application never retains the applicant's money.
func (s *SettlementServiceImpl) Reject(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Application, error) {
	if !actor.Role.CanSettleApplications() {
		return nil, apperror.ErrForbidden()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	app, err := s.lockApplication(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransition(domain.ApplicationStatusRejected) {
		return nil, apperror.ErrInvalidTransition(string(app.Status), string(domain.ApplicationStatusRejected))
	}

	if app.Charged {
		if _, err := s.walletSvc.RefundTx(ctx, dbTx, applicationReference(app.ID), "application rejected"); err != nil {
			return nil, err
		}
		app.Charged = false
	}

	app.Status = domain.ApplicationStatusRejected
	if err := s.appRepo.Update(ctx, dbTx, app); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update application: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.ApplicationsSettled.WithLabelValues("rejected").Inc()
	s.walletSvc.NotifyBalance(ctx, app.ApplicantID)
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("application rejected")
	return app, nil
}

// Complete moves an APPROVED application to COMPLETED. The charge already
// settled on approval; completion is a pure status change.
func (s *SettlementServiceImpl) Complete(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Application, error) {
	if !actor.Role.CanSettleApplications() {
		return nil, apperror.ErrForbidden()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	app, err := s.lockApplication(ctx, dbTx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransition(domain.ApplicationStatusCompleted) {
		return nil, apperror.ErrInvalidTransition(string(app.Status), string(domain.ApplicationStatusCompleted))
	}

	app.Status = domain.ApplicationStatusCompleted
	if err := s.appRepo.Update(ctx, dbTx, app); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update application: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.ApplicationsSettled.WithLabelValues("completed").Inc()
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("application completed")
	return app, nil
}

// Reapply derives a fresh PENDING application from a REJECTED one. The new
// application carries a zero fee quote: the original charge, already
// refunded or never taken, is not collected twice.
func (s *SettlementServiceImpl) Reapply(ctx context.Context, id uuid.UUID, actor ports.Actor) (*domain.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && app.ApplicantID != actor.UserID {
		return nil, apperror.ErrForbidden()
	}
	if app.Status != domain.ApplicationStatusRejected {
		return nil, apperror.ErrPreconditionFailed("only rejected applications can be reapplied")
	}

	next := app.Reapply()
	next.DocumentURL = app.DocumentURL
	if err := s.appRepo.Create(ctx, next); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create reapplication: %w", err))
	}

	s.log.Info().
		Str("application_id", next.ID.String()).
		Str("previous_id", app.ID.String()).
		Msg("reapplication created")
	return next, nil
}

// Delete removes an application record. Applications holding a settled
// charge are never deleted; the charge and its ledger entry stay auditable.
func (s *SettlementServiceImpl) Delete(ctx context.Context, id uuid.UUID, actor ports.Actor) error {
	if !actor.Role.CanDeleteApplications() {
		return apperror.ErrForbidden()
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !app.Deletable() {
		return apperror.ErrPreconditionFailed("application holds a settled charge")
	}

	if err := s.appRepo.Delete(ctx, id); err != nil {
		return apperror.InternalError(fmt.Errorf("delete application: %w", err))
	}

	s.log.Info().
		Str("application_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("application deleted")
	return nil
}

// Get fetches one application.
func (s *SettlementServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get application: %w", err))
	}
	if app == nil {
		return nil, apperror.ErrNotFound("application")
	}
	return app, nil
}

// ListByApplicant fetches the applicant's applications, newest first.
func (s *SettlementServiceImpl) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]domain.Application, error) {
	apps, err := s.appRepo.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list applications: %w", err))
	}
	return apps, nil
}

func (s *SettlementServiceImpl) lockApplication(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error) {
	app, err := s.appRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock application: %w", err))
	}
	if app == nil {
		return nil, apperror.ErrNotFound("application")
	}
	return app, nil
}

// applicationReference is the ledger idempotency key for an application's
// charge and its refund.
func applicationReference(id uuid.UUID) string {
	return "APP-" + id.String()
}
