package metrics

import (
	"strconv"

	"fundmint/core/events"
	"fundmint/core/types"
	"fundmint/native/crowdfund"
	"fundmint/native/staking"
)

// Emitter forwards engine events into the Prometheus instruments. It can be
// chained in front of another emitter so events still reach their consumers.
type Emitter struct {
	campaign *CampaignMetrics
	staking  *StakingMetrics
	next     events.Emitter
}

// NewEmitter builds a metrics emitter chaining to next, which may be nil.
func NewEmitter(next events.Emitter) *Emitter {
	return &Emitter{campaign: Campaign(), staking: Staking(), next: next}
}

// Emit records the event and passes it down the chain.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	e.observe(evt)
	if e.next != nil {
		e.next.Emit(evt)
	}
}

func (e *Emitter) observe(evt events.Event) {
	attrs := map[string]string{}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil && payload.Attributes != nil {
			attrs = payload.Attributes
		}
	}
	switch evt.EventType() {
	case crowdfund.EventTypeInvested:
		e.campaign.ObserveInvestment(attrs["coin"])
	case crowdfund.EventTypeDonated:
		e.campaign.ObserveDonation(attrs["coin"])
	case crowdfund.EventTypeRefunded:
		e.campaign.ObserveRefund()
	case crowdfund.EventTypeMinted:
		e.campaign.ObserveMinted(attrFloat(attrs, "count"))
	case crowdfund.EventTypeWithdrawn:
		e.campaign.ObserveWithdrawal(attrs["coin"])
	case staking.EventTypeStaked:
		e.staking.ObserveStaked(attrFloat(attrs, "count"))
	case staking.EventTypeWithdrawn:
		e.staking.ObserveWithdrawn(attrFloat(attrs, "count"))
	case staking.EventTypeRewardsClaimed:
		e.staking.ObserveRewardClaim()
	case staking.EventTypeUSDSplit:
		e.staking.ObserveUSDSplit()
	case staking.EventTypeUSDClaimed:
		e.staking.ObserveUSDClaim()
	case staking.EventTypeConditionSet:
		e.staking.SetActiveConditionID(attrFloat(attrs, "id"))
	}
}

func attrFloat(attrs map[string]string, key string) float64 {
	value, err := strconv.ParseFloat(attrs[key], 64)
	if err != nil {
		return 0
	}
	return value
}
