package types

import "fmt"

// Tier identifies one of the three investment classes sold by a campaign.
// Both the crowdfund and staking engines key their per-tier bookkeeping on
// this value, so it lives here rather than in either engine package.
type Tier uint8

const (
	TierLow Tier = iota
	TierRegular
	TierHigh
)

// TierCount is the number of supported tiers. Per-tier arrays are sized with
// it so an out-of-range index is a compile-visible bug, not a silent one.
const TierCount = 3

// Valid reports whether the tier value is within the supported range.
func (t Tier) Valid() bool {
	switch t {
	case TierLow, TierRegular, TierHigh:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name for the tier.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierRegular:
		return "regular"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Tiers returns the tiers in ascending order. Callers iterate this instead of
// hand-writing the three constants.
func Tiers() [TierCount]Tier {
	return [TierCount]Tier{TierLow, TierRegular, TierHigh}
}
