package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const rechargeOrderColumns = `id, purchaser_id, purchaser_role, service_type, operator_code, circle_code,
		target_number, amount, status, aggregator_ref, bill_ref, ledger_entry_id, created_at, updated_at`

// RechargeOrderRepo implements ports.RechargeOrderRepository.
type RechargeOrderRepo struct {
	pool Pool
}

// NewRechargeOrderRepo creates a new RechargeOrderRepo.
func NewRechargeOrderRepo(pool Pool) *RechargeOrderRepo {
	return &RechargeOrderRepo{pool: pool}
}

// Create inserts a new recharge order.
func (r *RechargeOrderRepo) Create(ctx context.Context, order *domain.RechargeOrder) error {
	query := `INSERT INTO recharge_orders
		(id, purchaser_id, purchaser_role, service_type, operator_code, circle_code,
		target_number, amount, status, aggregator_ref, bill_ref, ledger_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.PurchaserID, order.PurchaserRole, order.ServiceType, order.OperatorCode, order.CircleCode,
		order.TargetNumber, order.Amount, order.Status, order.AggregatorRef, order.BillRef,
		order.LedgerEntryID, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recharge order: %w", err)
	}
	return nil
}

// GetByID fetches a recharge order by UUID.
func (r *RechargeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RechargeOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM recharge_orders WHERE id = $1`, rechargeOrderColumns)
	return scanRechargeOrder(r.pool.QueryRow(ctx, query, id))
}

// TransitionStatus moves an order between statuses with a compare-and-swap
// on the current status. A replayed webhook or a racing reconciliation pass
// finds the order already moved and gets false back.
func (r *RechargeOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, aggregatorRef *string) (bool, error) {
	query := `UPDATE recharge_orders
		SET status = $1, aggregator_ref = COALESCE($2, aggregator_ref), updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, to, aggregatorRef, id, from)
	if err != nil {
		return false, fmt.Errorf("transition recharge order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetLedgerEntry links the debit ledger entry to the order.
func (r *RechargeOrderRepo) SetLedgerEntry(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error {
	query := `UPDATE recharge_orders SET ledger_entry_id = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, entryID, id)
	if err != nil {
		return fmt.Errorf("set order ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recharge order not found: %s", id)
	}
	return nil
}

// ListPendingConfirmation fetches orders stuck in PENDING_CONFIRMATION since
// before the cutoff, oldest first, for the reconciliation sweep.
func (r *RechargeOrderRepo) ListPendingConfirmation(ctx context.Context, before time.Time, limit int) ([]domain.RechargeOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM recharge_orders
		WHERE status = 'PENDING_CONFIRMATION' AND updated_at < $1
		ORDER BY updated_at ASC LIMIT $2`, rechargeOrderColumns)

	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.RechargeOrder
	for rows.Next() {
		o := domain.RechargeOrder{}
		err := rows.Scan(
			&o.ID, &o.PurchaserID, &o.PurchaserRole, &o.ServiceType, &o.OperatorCode, &o.CircleCode,
			&o.TargetNumber, &o.Amount, &o.Status, &o.AggregatorRef, &o.BillRef,
			&o.LedgerEntryID, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recharge order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recharge order rows: %w", err)
	}
	return orders, nil
}

// scanRechargeOrder is a helper to scan a single row into a RechargeOrder.
func scanRechargeOrder(row pgx.Row) (*domain.RechargeOrder, error) {
	o := &domain.RechargeOrder{}
	err := row.Scan(
		&o.ID, &o.PurchaserID, &o.PurchaserRole, &o.ServiceType, &o.OperatorCode, &o.CircleCode,
		&o.TargetNumber, &o.Amount, &o.Status, &o.AggregatorRef, &o.BillRef,
		&o.LedgerEntryID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan recharge order: %w", err)
	}
	return o, nil
}
