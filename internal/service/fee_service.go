package service

import (
	"context"
	"fmt"

	"sevapay/internal/core/domain"
	"sevapay/internal/core/ports"
	"sevapay/pkg/apperror"
)

// FeeServiceImpl implements ports.FeeService. Quotes snapshot the live fee
// configuration; changing the configuration later never alters a quote
// already embedded in an application or order.
type FeeServiceImpl struct {
	feeRepo ports.FeeConfigRepository
}

// NewFeeService creates a new FeeServiceImpl.
func NewFeeService(feeRepo ports.FeeConfigRepository) *FeeServiceImpl {
	return &FeeServiceImpl{feeRepo: feeRepo}
}

// Quote computes the fee breakdown for a base amount.
// A zero base is free: no GST, no platform fee.
func (s *FeeServiceImpl) Quote(ctx context.Context, baseAmount int64) (domain.FeeBreakdown, error) {
	if baseAmount < 0 {
		return domain.FeeBreakdown{}, apperror.ErrInvalidAmount()
	}
	if baseAmount == 0 {
		return domain.ZeroFees(), nil
	}

	cfg, err := s.feeRepo.Current(ctx)
	if err != nil {
		return domain.FeeBreakdown{}, apperror.InternalError(fmt.Errorf("read fee config: %w", err))
	}
	return domain.ComputeFees(baseAmount, cfg.GSTBps, cfg.PlatformFee), nil
}
