package memstate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"fundmint/core/types"
	"fundmint/native/crowdfund"
	"fundmint/native/staking"
)

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestCampaignStateCloneIsolation(t *testing.T) {
	state := NewCampaignState()
	quota := &crowdfund.QuotaTier{Cap: 10, Bought: 1, NextTokenID: 5}
	quota.Prices[crowdfund.CoinNative] = big.NewInt(100)
	require.NoError(t, state.QuotaPut(types.TierLow, quota))

	quota.Bought = 99
	quota.Prices[crowdfund.CoinNative].SetInt64(0)

	stored, err := state.QuotaGet(types.TierLow)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.Bought)
	require.Equal(t, big.NewInt(100), stored.Prices[crowdfund.CoinNative])

	stored.Bought = 42
	again, err := state.QuotaGet(types.TierLow)
	require.NoError(t, err)
	require.Equal(t, uint64(1), again.Bought)
}

func TestCampaignStateRecordIDs(t *testing.T) {
	state := NewCampaignState()
	first, err := state.NextRecordID()
	require.NoError(t, err)
	second, err := state.NextRecordID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)
}

func TestInvestorIndexSwapRemove(t *testing.T) {
	state := NewCampaignState()
	investor := testAddr(0xAA)
	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, state.InvestorRecordAdd(investor, id))
	}
	// Duplicate adds are no-ops.
	require.NoError(t, state.InvestorRecordAdd(investor, 2))

	removed, err := state.InvestorRecordRemove(investor, 2)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = state.InvestorRecordRemove(investor, 2)
	require.NoError(t, err)
	require.False(t, removed, "second removal must report absence")

	ids, err := state.InvestorRecords(investor)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{1, 3, 4}, ids)

	removed, err = state.InvestorRecordRemove(testAddr(0xBB), 1)
	require.NoError(t, err)
	require.False(t, removed, "foreign index must not resolve the id")
}

func TestCampaignStateCollected(t *testing.T) {
	state := NewCampaignState()
	collected, err := state.CollectedGet(crowdfund.CoinStable)
	require.NoError(t, err)
	require.Zero(t, collected.Sign())

	require.NoError(t, state.CollectedSet(crowdfund.CoinStable, big.NewInt(70)))
	collected, err = state.CollectedGet(crowdfund.CoinStable)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(70), collected)

	collected.SetInt64(0)
	again, err := state.CollectedGet(crowdfund.CoinStable)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(70), again)
}

func TestStakingStateStakerIndex(t *testing.T) {
	state := NewStakingState()
	carol := testAddr(0x01)
	dave := testAddr(0x02)
	require.NoError(t, state.StakerIndexAdd(carol))
	require.NoError(t, state.StakerIndexAdd(dave))
	require.NoError(t, state.StakerIndexAdd(carol))

	stakers, err := state.Stakers()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{carol, dave}, stakers)
}

func TestStakingStateConditions(t *testing.T) {
	state := NewStakingState()
	count, err := state.ConditionCount()
	require.NoError(t, err)
	require.Zero(t, count)

	cond := &staking.StakingCondition{ID: 0, TimeUnit: 3600, StartTs: 100}
	require.NoError(t, state.ConditionPut(cond))
	cond.EndTs = 200
	require.NoError(t, state.ConditionPut(cond))

	stored, ok, err := state.ConditionGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(200), stored.EndTs)

	_, ok, err = state.ConditionGet(5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStakingStateTokenIndex(t *testing.T) {
	state := NewStakingState()
	carol := testAddr(0x01)
	require.NoError(t, state.TokenStakerSet(7, carol))
	staker, ok, err := state.TokenStakerGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, carol, staker)

	require.NoError(t, state.TokenStakerDelete(7))
	_, ok, err = state.TokenStakerGet(7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTokenLedgerTransfers(t *testing.T) {
	custody := testAddr(0xCC)
	ledger := NewTokenLedger(custody)
	holder := testAddr(0x01)
	ledger.Mint(holder, big.NewInt(100))

	require.NoError(t, ledger.Pull(holder, big.NewInt(60)))
	require.Equal(t, big.NewInt(40), ledger.BalanceOf(holder))
	require.Equal(t, big.NewInt(60), ledger.BalanceOf(custody))

	require.Error(t, ledger.Pull(holder, big.NewInt(41)))
	require.NoError(t, ledger.Pay(holder, big.NewInt(60)))
	require.Equal(t, big.NewInt(100), ledger.BalanceOf(holder))
	require.Error(t, ledger.Pay(holder, big.NewInt(1)))
}

func TestCollectibleTierRanges(t *testing.T) {
	c := NewCollectible([types.TierCount]uint64{100, 50, 10})
	cases := []struct {
		id   uint64
		tier types.Tier
	}{
		{0, types.TierLow},
		{99, types.TierLow},
		{100, types.TierRegular},
		{149, types.TierRegular},
		{150, types.TierHigh},
		{159, types.TierHigh},
	}
	for _, tc := range cases {
		tier, err := c.TierOf(tc.id)
		require.NoError(t, err)
		require.Equal(t, tc.tier, tier, "token %d", tc.id)
	}
	_, err := c.TierOf(160)
	require.Error(t, err)
}

func TestCollectibleOwnershipFlow(t *testing.T) {
	c := NewCollectible([types.TierCount]uint64{100, 50, 10})
	carol := testAddr(0x01)
	vault := testAddr(0x77)

	require.NoError(t, c.IssueForCampaign([]uint64{0, 100}, []types.Tier{types.TierLow, types.TierRegular}, carol))
	owner, err := c.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, carol, owner)

	_, err = c.OwnerOf(5)
	require.Error(t, err)

	require.Error(t, c.Transfer(vault, carol, 0), "only the holder can move a token")
	require.NoError(t, c.Transfer(carol, vault, 0))
	owner, err = c.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, vault, owner)

	approved, err := c.IsApprovedFor(carol, vault)
	require.NoError(t, err)
	require.False(t, approved)
	c.SetApproval(carol, vault, true)
	approved, err = c.IsApprovedFor(carol, vault)
	require.NoError(t, err)
	require.True(t, approved)
}
