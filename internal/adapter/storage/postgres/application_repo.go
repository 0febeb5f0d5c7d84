package postgres

import (
	"context"
	"errors"
	"fmt"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, applicant_id, service_id, status,
		base_amount, gst_bps, gst_amount, platform_fee, total_amount,
		charged, is_reapply, ledger_entry_id, document_url, created_at, updated_at`

// ApplicationRepo implements ports.ApplicationRepository.
type ApplicationRepo struct {
	pool Pool
}

// NewApplicationRepo creates a new ApplicationRepo.
func NewApplicationRepo(pool Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

// Create inserts a new application. The fee breakdown is snapshotted into
// columns at submission time and never recomputed.
func (r *ApplicationRepo) Create(ctx context.Context, app *domain.Application) error {
	query := `INSERT INTO applications
		(id, applicant_id, service_id, status,
		base_amount, gst_bps, gst_amount, platform_fee, total_amount,
		charged, is_reapply, ledger_entry_id, document_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		app.ID, app.ApplicantID, app.ServiceID, app.Status,
		app.Fees.BaseAmount, app.Fees.GSTBps, app.Fees.GSTAmount, app.Fees.PlatformFee, app.Fees.TotalAmount,
		app.Charged, app.IsReapply, app.LedgerEntryID, app.DocumentURL, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// GetByID fetches an application by UUID (non-locking read).
func (r *ApplicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	return scanApplication(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an application with pessimistic locking so
// concurrent settlement decisions serialize. MUST be called within a
// transaction.
func (r *ApplicationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	return scanApplication(tx.QueryRow(ctx, query, id))
}

// Update persists status, charge marker and ledger linkage within a
// transaction.
func (r *ApplicationRepo) Update(ctx context.Context, tx pgx.Tx, app *domain.Application) error {
	query := `UPDATE applications
		SET status = $1, charged = $2, ledger_entry_id = $3, document_url = $4, updated_at = NOW()
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query,
		app.Status, app.Charged, app.LedgerEntryID, app.DocumentURL, app.ID,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application not found: %s", app.ID)
	}
	return nil
}

// Delete removes an application record.
func (r *ApplicationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application not found: %s", id)
	}
	return nil
}

// ListByApplicant fetches all applications submitted by one applicant,
// newest first.
func (r *ApplicationRepo) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]domain.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications
		WHERE applicant_id = $1 ORDER BY created_at DESC`, applicationColumns)

	rows, err := r.pool.Query(ctx, query, applicantID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		a := domain.Application{}
		err := rows.Scan(
			&a.ID, &a.ApplicantID, &a.ServiceID, &a.Status,
			&a.Fees.BaseAmount, &a.Fees.GSTBps, &a.Fees.GSTAmount, &a.Fees.PlatformFee, &a.Fees.TotalAmount,
			&a.Charged, &a.IsReapply, &a.LedgerEntryID, &a.DocumentURL, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan application row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application rows: %w", err)
	}
	return apps, nil
}

// scanApplication is a helper to scan a single row into an Application.
func scanApplication(row pgx.Row) (*domain.Application, error) {
	a := &domain.Application{}
	err := row.Scan(
		&a.ID, &a.ApplicantID, &a.ServiceID, &a.Status,
		&a.Fees.BaseAmount, &a.Fees.GSTBps, &a.Fees.GSTAmount, &a.Fees.PlatformFee, &a.Fees.TotalAmount,
		&a.Charged, &a.IsReapply, &a.LedgerEntryID, &a.DocumentURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	return a, nil
}
