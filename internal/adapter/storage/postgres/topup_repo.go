package postgres

import (
	"context"
	"errors"
	"fmt"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const topupOrderColumns = `id, owner_id, gateway_order_id, base_amount, total_amount, status, created_at, updated_at`

// TopupOrderRepo implements ports.TopupOrderRepository.
type TopupOrderRepo struct {
	pool Pool
}

// NewTopupOrderRepo creates a new TopupOrderRepo.
func NewTopupOrderRepo(pool Pool) *TopupOrderRepo {
	return &TopupOrderRepo{pool: pool}
}

// Create inserts a new top-up order.
func (r *TopupOrderRepo) Create(ctx context.Context, order *domain.TopupOrder) error {
	query := `INSERT INTO topup_orders
		(id, owner_id, gateway_order_id, base_amount, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.OwnerID, order.GatewayOrderID, order.BaseAmount, order.TotalAmount,
		order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert topup order: %w", err)
	}
	return nil
}

// GetByGatewayOrderID fetches the order opened for a gateway order ID, or
// nil when no such checkout was ever initiated.
func (r *TopupOrderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.TopupOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM topup_orders WHERE gateway_order_id = $1`, topupOrderColumns)
	return scanTopupOrder(r.pool.QueryRow(ctx, query, gatewayOrderID))
}

// TransitionStatus moves a top-up order between statuses with a
// compare-and-swap on the current status. A redelivered callback finds the
// order already moved and gets false back.
func (r *TopupOrderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.TopupStatus) (bool, error) {
	query := `UPDATE topup_orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition topup order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTopupOrder(row pgx.Row) (*domain.TopupOrder, error) {
	o := &domain.TopupOrder{}
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.GatewayOrderID, &o.BaseAmount, &o.TotalAmount,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan topup order: %w", err)
	}
	return o, nil
}
