package staking

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"fundmint/core/types"
)

const (
	EventTypeStaked         = "staking.staked"
	EventTypeWithdrawn      = "staking.withdrawn"
	EventTypeRewardsClaimed = "staking.rewards_claimed"
	EventTypeConditionSet   = "staking.condition_set"
	EventTypePoolDeposited  = "staking.pool_deposited"
	EventTypeUSDSplit       = "staking.usd_split"
	EventTypeUSDClaimed     = "staking.usd_claimed"
	EventTypePaused         = "staking.paused"
)

type stakingEvent struct {
	evt *types.Event
}

func (e stakingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakingEvent) Event() *types.Event { return e.evt }

// NewStakedEvent returns the canonical payload for locked tokens.
func NewStakedEvent(staker [20]byte, tokenIDs []uint64) *types.Event {
	return newTokenEvent(EventTypeStaked, staker, tokenIDs)
}

// NewWithdrawnEvent returns the canonical payload for released tokens.
func NewWithdrawnEvent(staker [20]byte, tokenIDs []uint64) *types.Event {
	return newTokenEvent(EventTypeWithdrawn, staker, tokenIDs)
}

// NewRewardsClaimedEvent returns the canonical payload for a reward payout.
func NewRewardsClaimedEvent(staker [20]byte, gross, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsClaimed,
		Attributes: map[string]string{
			"staker": hex.EncodeToString(staker[:]),
			"gross":  gross.String(),
			"fee":    fee.String(),
		},
	}
}

// NewConditionSetEvent returns the canonical payload for a new condition.
func NewConditionSetEvent(cond *StakingCondition) *types.Event {
	attrs := map[string]string{
		"id":       strconv.FormatUint(cond.ID, 10),
		"timeUnit": strconv.FormatInt(cond.TimeUnit, 10),
		"startTs":  strconv.FormatInt(cond.StartTs, 10),
	}
	for _, tier := range types.Tiers() {
		attrs[tier.String()+"Rate"] = cond.Rate(tier).String()
	}
	return &types.Event{Type: EventTypeConditionSet, Attributes: attrs}
}

// NewPoolDepositedEvent returns the canonical payload for a pool top-up.
func NewPoolDepositedEvent(from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePoolDeposited,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"amount": amount.String(),
		},
	}
}

// NewUSDSplitEvent returns the canonical payload for a completed split.
func NewUSDSplitEvent(from [20]byte, amount, distributed, remainder *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeUSDSplit,
		Attributes: map[string]string{
			"from":        hex.EncodeToString(from[:]),
			"amount":      amount.String(),
			"distributed": distributed.String(),
			"remainder":   remainder.String(),
		},
	}
}

// NewUSDClaimedEvent returns the canonical payload for a USD payout.
func NewUSDClaimedEvent(staker [20]byte, gross, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeUSDClaimed,
		Attributes: map[string]string{
			"staker": hex.EncodeToString(staker[:]),
			"gross":  gross.String(),
			"fee":    fee.String(),
		},
	}
}

// NewPausedEvent returns the canonical payload for a circuit-breaker flip.
func NewPausedEvent(paused bool) *types.Event {
	return &types.Event{
		Type:       EventTypePaused,
		Attributes: map[string]string{"paused": strconv.FormatBool(paused)},
	}
}

func newTokenEvent(eventType string, staker [20]byte, tokenIDs []uint64) *types.Event {
	ids := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"staker":   hex.EncodeToString(staker[:]),
			"tokenIds": strings.Join(ids, ","),
			"count":    strconv.Itoa(len(tokenIDs)),
		},
	}
}
