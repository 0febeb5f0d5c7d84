package postgres

import (
	"context"
	"errors"
	"fmt"

	"sevapay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OperatorRepo implements ports.OperatorRepository over the operator catalog
// table. The catalog is admin-maintained reference data; this repo only reads.
type OperatorRepo struct {
	pool Pool
}

// NewOperatorRepo creates a new OperatorRepo.
func NewOperatorRepo(pool Pool) *OperatorRepo {
	return &OperatorRepo{pool: pool}
}

// GetByCode fetches an operator by its code, or nil when unknown.
func (r *OperatorRepo) GetByCode(ctx context.Context, code string) (*domain.Operator, error) {
	query := `SELECT code, name, service_type, min_amount, max_amount,
		commission_bps, cashback_bps, supports_bill_fetch
		FROM operators WHERE code = $1`

	o := &domain.Operator{}
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&o.Code, &o.Name, &o.ServiceType, &o.MinAmount, &o.MaxAmount,
		&o.CommissionBps, &o.CashbackBps, &o.SupportsBillFetch,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	return o, nil
}

// ListByServiceType fetches the operators of one service type, ordered by name.
func (r *OperatorRepo) ListByServiceType(ctx context.Context, serviceType domain.ServiceType) ([]domain.Operator, error) {
	query := `SELECT code, name, service_type, min_amount, max_amount,
		commission_bps, cashback_bps, supports_bill_fetch
		FROM operators WHERE service_type = $1 ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var operators []domain.Operator
	for rows.Next() {
		o := domain.Operator{}
		err := rows.Scan(
			&o.Code, &o.Name, &o.ServiceType, &o.MinAmount, &o.MaxAmount,
			&o.CommissionBps, &o.CashbackBps, &o.SupportsBillFetch,
		)
		if err != nil {
			return nil, fmt.Errorf("scan operator row: %w", err)
		}
		operators = append(operators, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operator rows: %w", err)
	}
	return operators, nil
}
