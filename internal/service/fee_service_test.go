package service

import (
	"context"
	"errors"
	"testing"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFeeService_Quote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feeRepo := mocks.NewMockFeeConfigRepository(ctrl)
	svc := NewFeeService(feeRepo)

	feeRepo.EXPECT().Current(gomock.Any()).Return(ports.FeeConfig{
		GSTBps:      1800,
		PlatformFee: 5000,
	}, nil)

	fees, err := svc.Quote(context.Background(), 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), fees.BaseAmount)
	assert.Equal(t, int64(1800), fees.GSTBps)
	assert.Equal(t, int64(18000), fees.GSTAmount)
	assert.Equal(t, int64(5000), fees.PlatformFee)
	assert.Equal(t, int64(123000), fees.TotalAmount)
}

func TestFeeService_Quote_RoundsGSTHalfUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feeRepo := mocks.NewMockFeeConfigRepository(ctrl)
	svc := NewFeeService(feeRepo)

	feeRepo.EXPECT().Current(gomock.Any()).Return(ports.FeeConfig{
		GSTBps:      1800,
		PlatformFee: 0,
	}, nil)

	// 33 * 18% = 5.94, rounds to 6
	fees, err := svc.Quote(context.Background(), 33)
	require.NoError(t, err)
	assert.Equal(t, int64(6), fees.GSTAmount)
	assert.Equal(t, int64(39), fees.TotalAmount)
}

func TestFeeService_Quote_ZeroBaseIsFree(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Current expectation: a zero base never reads the config
	feeRepo := mocks.NewMockFeeConfigRepository(ctrl)
	svc := NewFeeService(feeRepo)

	fees, err := svc.Quote(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ZeroFees(), fees)
	assert.Equal(t, int64(0), fees.TotalAmount)
}

func TestFeeService_Quote_NegativeBase(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feeRepo := mocks.NewMockFeeConfigRepository(ctrl)
	svc := NewFeeService(feeRepo)

	_, err := svc.Quote(context.Background(), -100)
	assertAppError(t, err, "WAL_002")
}

func TestFeeService_Quote_ConfigReadFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feeRepo := mocks.NewMockFeeConfigRepository(ctrl)
	svc := NewFeeService(feeRepo)

	feeRepo.EXPECT().Current(gomock.Any()).Return(ports.FeeConfig{}, errors.New("db down"))

	_, err := svc.Quote(context.Background(), 1000)
	assertAppError(t, err, "SYS_001")
}
