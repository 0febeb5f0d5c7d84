package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The ledger is append-only:
// entries are never updated or deleted once written.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// AppendIfAbsent inserts the entry unless a COMPLETED entry with the same
// (reference, kind) exists. Backed by a partial unique index on
// (reference, kind) WHERE status = 'COMPLETED', so concurrent replays race
// safely inside the database.
func (r *LedgerRepo) AppendIfAbsent(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (bool, error) {
	query := `INSERT INTO ledger_entries
		(id, wallet_id, owner_id, kind, amount, status, reference, description, original_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference, kind) WHERE status = 'COMPLETED' DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.OwnerID, e.Kind, e.Amount,
		e.Status, e.Reference, e.Description, e.OriginalEntryID, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("append ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a ledger entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT id, wallet_id, owner_id, kind, amount, status, reference, description, original_entry_id, created_at
		FROM ledger_entries WHERE id = $1`

	return scanLedgerEntry(r.pool.QueryRow(ctx, query, id))
}

// GetCompletedByReference fetches the COMPLETED entry for (reference, kind).
func (r *LedgerRepo) GetCompletedByReference(ctx context.Context, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	query := `SELECT id, wallet_id, owner_id, kind, amount, status, reference, description, original_entry_id, created_at
		FROM ledger_entries WHERE reference = $1 AND kind = $2 AND status = 'COMPLETED'`

	return scanLedgerEntry(r.pool.QueryRow(ctx, query, reference, kind))
}

// GetCompletedDebitByReference fetches the COMPLETED debit-direction entry
// for a reference, used to locate the original charge of a refund.
func (r *LedgerRepo) GetCompletedDebitByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT id, wallet_id, owner_id, kind, amount, status, reference, description, original_entry_id, created_at
		FROM ledger_entries
		WHERE reference = $1 AND status = 'COMPLETED'
		AND kind IN ('WITHDRAWAL', 'SCHEME_PAYMENT', 'RECHARGE')`

	return scanLedgerEntry(r.pool.QueryRow(ctx, query, reference))
}

// List fetches ledger entries with filtering and pagination.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT id, wallet_id, owner_id, kind, amount, status, reference, description, original_entry_id, created_at
		FROM ledger_entries %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.WalletID, &e.OwnerID, &e.Kind, &e.Amount,
			&e.Status, &e.Reference, &e.Description, &e.OriginalEntryID, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}

// SumCompletedByWallet returns the signed sum of COMPLETED entries for a
// wallet. Reconciliation compares it against the derived balance row.
func (r *LedgerRepo) SumCompletedByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(
			CASE WHEN kind IN ('DEPOSIT', 'REFUND', 'COMMISSION', 'CASHBACK')
				THEN amount ELSE -amount END
		), 0)
		FROM ledger_entries WHERE wallet_id = $1 AND status = 'COMPLETED'`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// scanLedgerEntry is a helper to scan a single row into a LedgerEntry.
func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.WalletID, &e.OwnerID, &e.Kind, &e.Amount,
		&e.Status, &e.Reference, &e.Description, &e.OriginalEntryID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}
