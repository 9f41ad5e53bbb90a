package crowdfund

import (
	"errors"
	"math/big"
)

var (
	errNotCreator        = errors.New("crowdfund: caller is not the campaign creator")
	errNothingToWithdraw = errors.New("crowdfund: nothing to withdraw")
)

// WithdrawalSplit reports how one coin's proceeds were distributed.
type WithdrawalSplit struct {
	Coin           Coin
	Collected      *big.Int
	DonationAmount *big.Int
	PlatformAmount *big.Int
	CreatorAmount  *big.Int
}

// WithdrawFund pays the campaign proceeds out once the funding goal is met.
// Creator-only and blocked while corrupted. Each coin settles at most once:
// the collected total is zeroed and the withdrawn flag set before any
// transfer leaves custody, so a replay finds nothing to pay.
func (e *Engine) WithdrawFund(caller [20]byte) ([]WithdrawalSplit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if e.paused {
		return nil, errPaused
	}
	if caller != e.campaign.Creator {
		return nil, errNotCreator
	}
	corrupted, err := e.oracleCorrupted()
	if err != nil {
		return nil, err
	}
	if corrupted {
		return nil, errCorrupted
	}
	reached, err := e.thresholdReached()
	if err != nil {
		return nil, err
	}
	if !reached {
		return nil, errThresholdNotReached
	}
	var splits []WithdrawalSplit
	for _, coin := range Coins() {
		withdrawn, err := e.state.WithdrawnGet(coin)
		if err != nil {
			return nil, err
		}
		if withdrawn {
			continue
		}
		collected, err := e.state.CollectedGet(coin)
		if err != nil {
			return nil, err
		}
		if collected == nil || collected.Sign() <= 0 {
			continue
		}
		split := e.splitProceeds(coin, collected)
		if err := e.state.CollectedSet(coin, big.NewInt(0)); err != nil {
			return nil, err
		}
		if err := e.state.WithdrawnSet(coin, true); err != nil {
			return nil, err
		}
		if err := e.payoutSplit(split); err != nil {
			_ = e.state.CollectedSet(coin, collected)
			_ = e.state.WithdrawnSet(coin, false)
			return nil, err
		}
		e.emit(NewWithdrawnEvent(&split))
		splits = append(splits, split)
	}
	if len(splits) == 0 {
		return nil, errNothingToWithdraw
	}
	return splits, nil
}

// splitProceeds computes the donation/platform/creator partition of one
// coin's collected total. Floor division; the rounding dust stays with the
// creator so the three parts always sum to the collected total.
func (e *Engine) splitProceeds(coin Coin, collected *big.Int) WithdrawalSplit {
	donation := new(big.Int).Mul(collected, big.NewInt(int64(e.campaign.DonationFeeBps)))
	donation.Div(donation, big.NewInt(feeDenominator))
	platform := big.NewInt(0)
	if e.oracle != nil {
		platform = new(big.Int).Mul(collected, big.NewInt(int64(e.oracle.PlatformFeeBps())))
		platform.Div(platform, big.NewInt(feeDenominator))
	}
	creator := new(big.Int).Sub(collected, donation)
	creator.Sub(creator, platform)
	if e.campaign.DonationReceiver == ([20]byte{}) {
		// No donation receiver configured: the donation share folds back in.
		creator.Add(creator, donation)
		donation = big.NewInt(0)
	}
	return WithdrawalSplit{
		Coin:           coin,
		Collected:      new(big.Int).Set(collected),
		DonationAmount: donation,
		PlatformAmount: platform,
		CreatorAmount:  creator,
	}
}

func (e *Engine) payoutSplit(split WithdrawalSplit) error {
	backend := e.coins[split.Coin]
	if backend == nil {
		return errCoinBackendNotSet
	}
	if split.DonationAmount.Sign() > 0 {
		if err := backend.Pay(e.campaign.DonationReceiver, split.DonationAmount); err != nil {
			return err
		}
	}
	if split.PlatformAmount.Sign() > 0 {
		if err := backend.Pay(e.oracle.Treasury(), split.PlatformAmount); err != nil {
			return err
		}
	}
	if split.CreatorAmount.Sign() > 0 {
		if err := backend.Pay(e.campaign.Creator, split.CreatorAmount); err != nil {
			return err
		}
	}
	return nil
}
