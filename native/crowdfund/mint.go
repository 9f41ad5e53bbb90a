package crowdfund

import (
	"errors"

	"fundmint/core/types"
)

var (
	errThresholdNotReached = errors.New("crowdfund: funding threshold not reached")
	errNothingToMint       = errors.New("crowdfund: no more tokens to mint")
	errCollectibleNotSet   = errors.New("crowdfund: collectible not configured")
)

// Mint converts every unrefunded investment record of the caller into
// reserved token-id ranges and hands them to the collectible collaborator
// for issuance to the supplied recipient. Each record is consumed exactly
// once; donations never mint. Requires the funding goal to be met after the
// due date.
func (e *Engine) Mint(caller [20]byte, to [20]byte) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if e.paused {
		return nil, errPaused
	}
	if e.collectible == nil {
		return nil, errCollectibleNotSet
	}
	reached, err := e.thresholdReached()
	if err != nil {
		return nil, err
	}
	if !reached {
		return nil, errThresholdNotReached
	}
	ids, err := e.state.InvestorRecords(caller)
	if err != nil {
		return nil, err
	}
	quotas := [types.TierCount]*QuotaTier{}
	for _, tier := range types.Tiers() {
		quota, err := e.state.QuotaGet(tier)
		if err != nil {
			return nil, err
		}
		quotas[tier] = quota
	}
	var (
		tokenIDs   []uint64
		tokenTiers []types.Tier
		consumed   []*InvestmentRecord
	)
	for _, id := range append([]uint64(nil), ids...) {
		record, ok, err := e.state.RecordGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || record.Consumed || record.Donation() {
			continue
		}
		for _, tier := range types.Tiers() {
			qty := record.Quantities[tier]
			for i := uint64(0); i < qty; i++ {
				tokenIDs = append(tokenIDs, quotas[tier].NextTokenID)
				tokenTiers = append(tokenTiers, tier)
				quotas[tier].NextTokenID++
			}
		}
		consumed = append(consumed, record)
	}
	if len(tokenIDs) == 0 {
		return nil, errNothingToMint
	}
	for _, tier := range types.Tiers() {
		if err := e.state.QuotaPut(tier, quotas[tier]); err != nil {
			return nil, err
		}
	}
	for _, record := range consumed {
		record.Consumed = true
		if err := e.state.RecordPut(record); err != nil {
			return nil, err
		}
		if _, err := e.state.InvestorRecordRemove(record.Investor, record.ID); err != nil {
			return nil, err
		}
	}
	// Bookkeeping is final; issuance is the trust-boundary call and comes last.
	if err := e.collectible.IssueForCampaign(tokenIDs, tokenTiers, to); err != nil {
		e.rollbackMint(quotas, consumed, tokenIDs)
		return nil, err
	}
	e.emit(NewMintedEvent(caller, to, tokenIDs))
	return tokenIDs, nil
}

// rollbackMint restores cursors, records and the investor index after a
// failed issuance. Best effort: state backend failures here are unrecoverable
// and intentionally ignored.
func (e *Engine) rollbackMint(quotas [types.TierCount]*QuotaTier, consumed []*InvestmentRecord, tokenIDs []uint64) {
	counts := [types.TierCount]uint64{}
	for _, record := range consumed {
		for _, tier := range types.Tiers() {
			counts[tier] += record.Quantities[tier]
		}
	}
	for _, tier := range types.Tiers() {
		quotas[tier].NextTokenID -= counts[tier]
		_ = e.state.QuotaPut(tier, quotas[tier])
	}
	for _, record := range consumed {
		record.Consumed = false
		_ = e.state.RecordPut(record)
		_ = e.state.InvestorRecordAdd(record.Investor, record.ID)
	}
}
