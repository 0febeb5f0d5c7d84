package postgres

import (
	"context"
	"fmt"
	"strconv"

	"sevapay/internal/core/ports"
)

// Settings keys for the fee configuration rows.
const (
	settingGSTBps      = "fees.gst_bps"
	settingPlatformFee = "fees.platform_fee"
)

// FeeConfigRepo implements ports.FeeConfigRepository over the key/value
// settings table. Admin fee changes land here and take effect on the next
// quote; breakdowns already snapshotted are untouched.
type FeeConfigRepo struct {
	pool     Pool
	defaults ports.FeeConfig
}

// NewFeeConfigRepo creates a FeeConfigRepo. The defaults fill in for keys
// missing from the settings table.
func NewFeeConfigRepo(pool Pool, defaults ports.FeeConfig) *FeeConfigRepo {
	return &FeeConfigRepo{pool: pool, defaults: defaults}
}

// Current reads the fee configuration from the settings table.
func (r *FeeConfigRepo) Current(ctx context.Context) (ports.FeeConfig, error) {
	query := `SELECT key, value FROM settings WHERE key = ANY($1)`

	rows, err := r.pool.Query(ctx, query, []string{settingGSTBps, settingPlatformFee})
	if err != nil {
		return ports.FeeConfig{}, fmt.Errorf("read fee settings: %w", err)
	}
	defer rows.Close()

	cfg := r.defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return ports.FeeConfig{}, fmt.Errorf("scan fee setting: %w", err)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return ports.FeeConfig{}, fmt.Errorf("parse fee setting %s: %w", key, err)
		}
		switch key {
		case settingGSTBps:
			cfg.GSTBps = n
		case settingPlatformFee:
			cfg.PlatformFee = n
		}
	}
	if err := rows.Err(); err != nil {
		return ports.FeeConfig{}, fmt.Errorf("iterate fee settings: %w", err)
	}
	return cfg, nil
}
