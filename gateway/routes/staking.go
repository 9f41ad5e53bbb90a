package routes

import (
	"encoding/hex"
	"errors"
	"net/http"

	"fundmint/core/types"
	"fundmint/native/staking"
)

var errNoCondition = errors.New("no staking condition set")

type stakerViewPayload struct {
	Staker         string            `json:"staker"`
	AmountStaked   tierCountsPayload `json:"amountStaked"`
	PendingRewards string            `json:"pendingRewards"`
	UnclaimedUSD   string            `json:"unclaimedUsd"`
}

type conditionPayload struct {
	ID          uint64           `json:"id"`
	TimeUnit    int64            `json:"timeUnit"`
	RatePerTier tierRatesPayload `json:"ratePerTier"`
	StartTs     int64            `json:"startTs"`
	EndTs       int64            `json:"endTs"`
}

type tierRatesPayload struct {
	Low     string `json:"low"`
	Regular string `json:"regular"`
	High    string `json:"high"`
}

func newConditionPayload(cond *staking.StakingCondition) conditionPayload {
	return conditionPayload{
		ID:       cond.ID,
		TimeUnit: cond.TimeUnit,
		RatePerTier: tierRatesPayload{
			Low:     cond.Rate(types.TierLow).String(),
			Regular: cond.Rate(types.TierRegular).String(),
			High:    cond.Rate(types.TierHigh).String(),
		},
		StartTs: cond.StartTs,
		EndTs:   cond.EndTs,
	}
}

func handleStakerView(stake StakingReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := parseAddressParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := stake.View(addr)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		payload := stakerViewPayload{
			Staker:         hex.EncodeToString(view.Staker[:]),
			AmountStaked:   tierCounts(view.AmountStaked),
			PendingRewards: "0",
			UnclaimedUSD:   "0",
		}
		if view.PendingRewards != nil {
			payload.PendingRewards = view.PendingRewards.String()
		}
		if view.UnclaimedUSD != nil {
			payload.UnclaimedUSD = view.UnclaimedUSD.String()
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleStakingConditions(stake StakingReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		conditions, err := stake.Conditions()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		payload := make([]conditionPayload, 0, len(conditions))
		for _, cond := range conditions {
			payload = append(payload, newConditionPayload(cond))
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleStakingCondition(stake StakingReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cond, err := stake.ActiveCondition()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if cond == nil {
			writeError(w, http.StatusNotFound, errNoCondition)
			return
		}
		writeJSON(w, http.StatusOK, newConditionPayload(cond))
	}
}
