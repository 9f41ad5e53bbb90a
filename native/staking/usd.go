package staking

import (
	"errors"
	"math/big"

	"fundmint/core/types"
	"fundmint/native/authority"
)

var (
	errNoStakedWeight = errors.New("staking: no staked weight to distribute to")
	errNoUSD          = errors.New("staking: no usd to claim")
)

// SplitUSD pulls a stable-value amount from an external account and
// apportions it into each staker's unclaimed USD balance, pro rata to their
// stake share at call time under the configured weight mode. Manager only.
// Shares use floor division; the undistributed remainder accumulates in the
// dust counter so the pulled amount is always fully accounted for.
func (e *Engine) SplitUSD(caller [20]byte, from [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if e.paused {
		return errPaused
	}
	if err := authority.RequireManager(e.oracle, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.stableToken == nil {
		return errTokenBackendNotSet
	}
	stakers, err := e.state.Stakers()
	if err != nil {
		return err
	}
	weights, totalWeight, err := e.stakeWeights(stakers)
	if err != nil {
		return err
	}
	if totalWeight.Sign() == 0 {
		return errNoStakedWeight
	}
	if err := e.stableToken.Pull(from, amount); err != nil {
		return err
	}
	distributed := big.NewInt(0)
	for i, staker := range stakers {
		if weights[i].Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(amount, weights[i])
		share.Div(share, totalWeight)
		if share.Sign() == 0 {
			continue
		}
		balance, err := e.state.USDGet(staker)
		if err != nil {
			return err
		}
		if err := e.state.USDSet(staker, new(big.Int).Add(balance, share)); err != nil {
			return err
		}
		distributed.Add(distributed, share)
	}
	remainder := new(big.Int).Sub(amount, distributed)
	if remainder.Sign() > 0 {
		dust, err := e.state.USDDustGet()
		if err != nil {
			return err
		}
		if err := e.state.USDDustSet(new(big.Int).Add(dust, remainder)); err != nil {
			return err
		}
	}
	e.emit(NewUSDSplitEvent(from, amount, distributed, remainder))
	return nil
}

// ClaimUSD pays the caller's unclaimed USD balance out, net of the creator
// royalty fee routed to the treasury, and zeroes the balance.
func (e *Engine) ClaimUSD(staker [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if e.paused {
		return nil, errPaused
	}
	if e.stableToken == nil {
		return nil, errTokenBackendNotSet
	}
	balance, err := e.state.USDGet(staker)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, errNoUSD
	}
	fee := new(big.Int).Mul(balance, big.NewInt(int64(e.royaltyFeeBps())))
	fee.Div(fee, big.NewInt(feeDenominator))
	net := new(big.Int).Sub(balance, fee)
	if err := e.state.USDSet(staker, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.payUSD(staker, net, fee); err != nil {
		_ = e.state.USDSet(staker, balance)
		return nil, err
	}
	e.emit(NewUSDClaimedEvent(staker, balance, fee))
	return net, nil
}

// USDDust returns the accumulated rounding remainder held by the engine.
func (e *Engine) USDDust() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.USDDustGet()
}

// stakeWeights computes each staker's weighted stake. Under rate weighting
// the tier weights are the active condition's reward rates, falling back to
// equal weights when no condition with a positive rate exists; under count
// weighting every staked token weighs the same.
func (e *Engine) stakeWeights(stakers [][20]byte) ([]*big.Int, *big.Int, error) {
	var tierWeights [types.TierCount]*big.Int
	positive := false
	if e.weightMode == WeightByRate {
		cond, err := e.activeCondition()
		if err != nil {
			return nil, nil, err
		}
		for _, tier := range types.Tiers() {
			tierWeights[tier] = cond.Rate(tier)
			if tierWeights[tier].Sign() > 0 {
				positive = true
			}
		}
	}
	if !positive {
		for tier := range tierWeights {
			tierWeights[tier] = big.NewInt(1)
		}
	}
	weights := make([]*big.Int, len(stakers))
	total := big.NewInt(0)
	for i, staker := range stakers {
		weight := big.NewInt(0)
		record, ok, err := e.state.StakerGet(staker)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			for _, tier := range types.Tiers() {
				if record.AmountStaked[tier] == 0 {
					continue
				}
				part := new(big.Int).Mul(tierWeights[tier], new(big.Int).SetUint64(record.AmountStaked[tier]))
				weight.Add(weight, part)
			}
		}
		weights[i] = weight
		total.Add(total, weight)
	}
	return weights, total, nil
}

func (e *Engine) payUSD(staker [20]byte, net, fee *big.Int) error {
	if net.Sign() > 0 {
		if err := e.stableToken.Pay(staker, net); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.stableToken.Pay(e.treasury(), fee); err != nil {
			return err
		}
	}
	return nil
}
