package domain

// FeeBreakdown is an immutable snapshot of how a payable total was derived.
// GSTBps captures the configured rate at computation time; the breakdown is
// never recomputed from live configuration afterwards.
type FeeBreakdown struct {
	BaseAmount  int64 `json:"base_amount"`  // minor units
	GSTBps      int64 `json:"gst_bps"`      // basis points, 1800 = 18%
	GSTAmount   int64 `json:"gst_amount"`   // minor units
	PlatformFee int64 `json:"platform_fee"` // minor units
	TotalAmount int64 `json:"total_amount"` // base + gst + platform
}

// IsZero reports whether the breakdown charges nothing.
func (f FeeBreakdown) IsZero() bool {
	return f.TotalAmount == 0
}

// ZeroFees is the breakdown for free services and reapplications.
func ZeroFees() FeeBreakdown {
	return FeeBreakdown{}
}

// ComputeFees derives a fee breakdown from a base amount in minor units and
// a GST rate in basis points. Pure and deterministic: GST rounds half-up,
// the total is the exact sum of the three rounded components, and a zero
// base short-circuits to a zero breakdown.
func ComputeFees(baseAmount, gstBps, platformFee int64) FeeBreakdown {
	if baseAmount == 0 {
		return ZeroFees()
	}

	gstAmount := roundHalfUp(baseAmount*gstBps, 10000)

	return FeeBreakdown{
		BaseAmount:  baseAmount,
		GSTBps:      gstBps,
		GSTAmount:   gstAmount,
		PlatformFee: platformFee,
		TotalAmount: baseAmount + gstAmount + platformFee,
	}
}

// roundHalfUp divides numerator by denominator rounding half away from zero.
// Integer-only: money never touches floating point.
func roundHalfUp(numerator, denominator int64) int64 {
	if denominator <= 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}
