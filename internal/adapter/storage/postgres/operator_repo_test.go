package postgres

import (
	"context"
	"testing"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operatorTestColumns() []string {
	return []string{"code", "name", "service_type", "min_amount", "max_amount",
		"commission_bps", "cashback_bps", "supports_bill_fetch"}
}

func TestOperatorRepo_GetByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM operators WHERE code").
		WithArgs("AIRTEL").
		WillReturnRows(pgxmock.NewRows(operatorTestColumns()).AddRow(
			"AIRTEL", "Airtel", domain.ServiceTypePrepaid,
			int64(1000), int64(500000), int64(150), int64(50), false,
		))

	op, err := repo.GetByCode(context.Background(), "AIRTEL")
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, "AIRTEL", op.Code)
	assert.Equal(t, int64(150), op.CommissionBps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorRepo_GetByCode_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM operators WHERE code").
		WithArgs("UNKNOWN").
		WillReturnRows(pgxmock.NewRows(operatorTestColumns()))

	op, err := repo.GetByCode(context.Background(), "UNKNOWN")
	assert.NoError(t, err)
	assert.Nil(t, op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorRepo_ListByServiceType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM operators WHERE service_type").
		WithArgs(domain.ServiceTypeDTH).
		WillReturnRows(pgxmock.NewRows(operatorTestColumns()).
			AddRow("DISHTV", "Dish TV", domain.ServiceTypeDTH, int64(10000), int64(0), int64(200), int64(75), false).
			AddRow("TATASKY", "Tata Play", domain.ServiceTypeDTH, int64(10000), int64(1000000), int64(180), int64(60), false))

	operators, err := repo.ListByServiceType(context.Background(), domain.ServiceTypeDTH)
	require.NoError(t, err)
	require.Len(t, operators, 2)
	assert.Equal(t, "DISHTV", operators[0].Code)
	assert.True(t, operators[0].AmountInBounds(50000))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeConfigRepo_Current(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFeeConfigRepo(mock, ports.FeeConfig{GSTBps: 1800, PlatformFee: 5000})

	mock.ExpectQuery("SELECT key, value FROM settings").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow("fees.gst_bps", "1200").
			AddRow("fees.platform_fee", "7500"))

	cfg, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), cfg.GSTBps)
	assert.Equal(t, int64(7500), cfg.PlatformFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeConfigRepo_Current_FallsBackToDefaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFeeConfigRepo(mock, ports.FeeConfig{GSTBps: 1800, PlatformFee: 5000})

	mock.ExpectQuery("SELECT key, value FROM settings").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}))

	cfg, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1800), cfg.GSTBps)
	assert.Equal(t, int64(5000), cfg.PlatformFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}
