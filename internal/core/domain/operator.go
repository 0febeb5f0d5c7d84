package domain

// Operator is a recharge/bill-pay provider known to the portal. Amount
// bounds and reward rates are operator-specific configuration.
type Operator struct {
	Code              string      `json:"code"`
	Name              string      `json:"name"`
	ServiceType       ServiceType `json:"service_type"`
	MinAmount         int64       `json:"min_amount"` // minor units
	MaxAmount         int64       `json:"max_amount"` // minor units
	CommissionBps     int64       `json:"commission_bps"` // retailer reward
	CashbackBps       int64       `json:"cashback_bps"`   // customer reward
	SupportsBillFetch bool        `json:"supports_bill_fetch"`
}

// AmountInBounds reports whether amount is within the operator's limits.
func (o *Operator) AmountInBounds(amount int64) bool {
	if amount < o.MinAmount {
		return false
	}
	if o.MaxAmount > 0 && amount > o.MaxAmount {
		return false
	}
	return true
}

// RewardFor returns the reward kind and amount for a successful order
// purchased by the given role. Retailers earn commission, customers earn
// cashback; other roles earn nothing.
func (o *Operator) RewardFor(role Role, amount int64) (EntryKind, int64) {
	switch role {
	case RoleRetailer:
		return EntryKindCommission, roundHalfUp(amount*o.CommissionBps, 10000)
	case RoleCustomer:
		return EntryKindCashback, roundHalfUp(amount*o.CashbackBps, 10000)
	}
	return "", 0
}
