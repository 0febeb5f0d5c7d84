package postgres

import (
	"context"
	"testing"

	"sevapay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTopupOrder() *domain.TopupOrder {
	return domain.NewTopupOrder(uuid.New(), "gw-55001", 50000, 64500)
}

func topupTestColumns() []string {
	return []string{"id", "owner_id", "gateway_order_id", "base_amount", "total_amount",
		"status", "created_at", "updated_at"}
}

func topupRow(o *domain.TopupOrder) *pgxmock.Rows {
	return pgxmock.NewRows(topupTestColumns()).AddRow(
		o.ID, o.OwnerID, o.GatewayOrderID, o.BaseAmount, o.TotalAmount,
		o.Status, o.CreatedAt, o.UpdatedAt,
	)
}

func TestTopupOrderRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTopupOrderRepo(mock)
	o := newTestTopupOrder()

	mock.ExpectExec("INSERT INTO topup_orders").
		WithArgs(o.ID, o.OwnerID, o.GatewayOrderID, o.BaseAmount, o.TotalAmount,
			o.Status, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopupOrderRepo_GetByGatewayOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTopupOrderRepo(mock)
	o := newTestTopupOrder()

	mock.ExpectQuery("SELECT .+ FROM topup_orders WHERE gateway_order_id").
		WithArgs(o.GatewayOrderID).
		WillReturnRows(topupRow(o))

	result, err := repo.GetByGatewayOrderID(context.Background(), o.GatewayOrderID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.OwnerID, result.OwnerID)
	assert.Equal(t, int64(50000), result.BaseAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopupOrderRepo_GetByGatewayOrderID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTopupOrderRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM topup_orders WHERE gateway_order_id").
		WithArgs("gw-unknown").
		WillReturnRows(pgxmock.NewRows(topupTestColumns()))

	result, err := repo.GetByGatewayOrderID(context.Background(), "gw-unknown")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopupOrderRepo_TransitionStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTopupOrderRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE topup_orders").
		WithArgs(domain.TopupStatusCredited, id, domain.TopupStatusInitiated).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	moved, err := repo.TransitionStatus(context.Background(), id,
		domain.TopupStatusInitiated, domain.TopupStatusCredited)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopupOrderRepo_TransitionStatus_AlreadyMoved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTopupOrderRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE topup_orders").
		WithArgs(domain.TopupStatusFailed, id, domain.TopupStatusInitiated).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	moved, err := repo.TransitionStatus(context.Background(), id,
		domain.TopupStatusInitiated, domain.TopupStatusFailed)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
