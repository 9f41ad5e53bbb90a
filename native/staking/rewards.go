package staking

import (
	"math/big"

	"fundmint/core/types"
)

// flushRewards folds the reward accrued since the staker's last update into
// UnclaimedRewards and stamps the record with the current time and
// condition. Must run before any mutation of the staked amounts.
func (e *Engine) flushRewards(record *StakerRecord) error {
	now := e.now()
	pending, err := e.pendingReward(record, now)
	if err != nil {
		return err
	}
	if pending.Sign() > 0 {
		record.UnclaimedRewards = new(big.Int).Add(record.UnclaimedRewards, pending)
	}
	record.TimeOfLastUpdate = now
	count, err := e.state.ConditionCount()
	if err != nil {
		return err
	}
	if count > 0 {
		record.ConditionID = count - 1
	}
	return nil
}

// pendingReward computes the reward accrued over [TimeOfLastUpdate, now)
// without mutating the record. In the integrated mode every condition
// overlapping the interval contributes for exactly the seconds it was
// active; in the latest-only mode the currently open condition's rate is
// applied to the whole interval. A zero-elapsed interval contributes zero.
func (e *Engine) pendingReward(record *StakerRecord, now int64) (*big.Int, error) {
	total := big.NewInt(0)
	if record == nil || now <= record.TimeOfLastUpdate || record.TotalStaked() == 0 {
		return total, nil
	}
	count, err := e.state.ConditionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return total, nil
	}
	if e.flushMode == FlushLatestOnly {
		cond, ok, err := e.state.ConditionGet(count - 1)
		if err != nil {
			return nil, err
		}
		if !ok {
			return total, nil
		}
		return conditionReward(record, cond, now-record.TimeOfLastUpdate), nil
	}
	for id := record.ConditionID; id < count; id++ {
		cond, ok, err := e.state.ConditionGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		start := cond.StartTs
		if record.TimeOfLastUpdate > start {
			start = record.TimeOfLastUpdate
		}
		end := cond.EndTs
		if end == 0 || end > now {
			end = now
		}
		if end <= start {
			continue
		}
		total.Add(total, conditionReward(record, cond, end-start))
	}
	return total, nil
}

// conditionReward is the per-condition integrand: the tier-weighted staked
// amount times the rate, scaled by elapsed seconds over the time unit.
// Integer floor division; the dust is deliberately dropped per interval.
func conditionReward(record *StakerRecord, cond *StakingCondition, elapsed int64) *big.Int {
	if elapsed <= 0 || cond == nil || cond.TimeUnit <= 0 {
		return big.NewInt(0)
	}
	weighted := big.NewInt(0)
	for _, tier := range types.Tiers() {
		amount := record.AmountStaked[tier]
		if amount == 0 {
			continue
		}
		part := new(big.Int).Mul(cond.Rate(tier), new(big.Int).SetUint64(amount))
		weighted.Add(weighted, part)
	}
	if weighted.Sign() == 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(weighted, big.NewInt(elapsed))
	return reward.Div(reward, big.NewInt(cond.TimeUnit))
}
