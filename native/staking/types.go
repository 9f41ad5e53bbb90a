package staking

import (
	"fmt"
	"math/big"

	"fundmint/core/types"
)

// StakingCondition is one versioned (rate-per-tier, time-unit) record. A
// condition with EndTs zero is the currently active one; exactly one such
// condition exists at any time once the history is non-empty.
type StakingCondition struct {
	ID          uint64
	TimeUnit    int64 // seconds per reward unit, always > 0
	RatePerTier [types.TierCount]*big.Int
	StartTs     int64
	EndTs       int64 // zero while the condition is current
}

// Clone returns a deep copy of the condition.
func (c *StakingCondition) Clone() *StakingCondition {
	if c == nil {
		return nil
	}
	clone := *c
	for tier, rate := range c.RatePerTier {
		if rate != nil {
			clone.RatePerTier[tier] = new(big.Int).Set(rate)
		} else {
			clone.RatePerTier[tier] = big.NewInt(0)
		}
	}
	return &clone
}

// Rate returns the non-nil reward rate for a tier.
func (c *StakingCondition) Rate(tier types.Tier) *big.Int {
	if c == nil || !tier.Valid() || c.RatePerTier[tier] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(c.RatePerTier[tier])
}

// Validate checks the condition parameters.
func (c *StakingCondition) Validate() error {
	if c == nil {
		return fmt.Errorf("staking: nil condition")
	}
	if c.TimeUnit <= 0 {
		return errZeroTimeUnit
	}
	for _, rate := range c.RatePerTier {
		if rate != nil && rate.Sign() < 0 {
			return fmt.Errorf("staking: negative reward rate")
		}
	}
	return nil
}

// StakerRecord is the per-staker bookkeeping. Created on the first stake and
// kept forever afterwards, possibly all-zero.
type StakerRecord struct {
	Staker           [20]byte
	AmountStaked     [types.TierCount]uint64
	TimeOfLastUpdate int64
	UnclaimedRewards *big.Int
	ConditionID      uint64 // condition active at the last flush
}

// Clone returns a deep copy of the record.
func (r *StakerRecord) Clone() *StakerRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.UnclaimedRewards != nil {
		clone.UnclaimedRewards = new(big.Int).Set(r.UnclaimedRewards)
	} else {
		clone.UnclaimedRewards = big.NewInt(0)
	}
	return &clone
}

// TotalStaked returns the staked token count across tiers.
func (r *StakerRecord) TotalStaked() uint64 {
	if r == nil {
		return 0
	}
	var total uint64
	for _, amount := range r.AmountStaked {
		total += amount
	}
	return total
}

// FlushMode selects how the accrual walk attributes elapsed time to
// conditions. The integrated mode is the default; the latest-only mode
// reproduces deployments that apply the current rate to the whole elapsed
// interval regardless of historical rate changes.
type FlushMode uint8

const (
	FlushIntegrated FlushMode = iota
	FlushLatestOnly
)

// Valid reports whether the flush mode is within the supported range.
func (m FlushMode) Valid() bool {
	return m == FlushIntegrated || m == FlushLatestOnly
}

// WeightMode selects how SplitUSD weighs each staked token. Rate weighting
// values a token by its tier's active reward rate and is the default; count
// weighting values every staked token equally.
type WeightMode uint8

const (
	WeightByRate WeightMode = iota
	WeightByCount
)

// Valid reports whether the weight mode is within the supported range.
func (m WeightMode) Valid() bool {
	return m == WeightByRate || m == WeightByCount
}

// StakerView is a read-only snapshot served by the gateway. PendingRewards
// includes reward accrued since the last flush without mutating state.
type StakerView struct {
	Staker         [20]byte
	AmountStaked   [types.TierCount]uint64
	PendingRewards *big.Int
	UnclaimedUSD   *big.Int
}
