package crowdfund

import (
	"errors"
	"math/big"
	"testing"

	"fundmint/core/types"
)

// fillGoal sells enough quota to satisfy the funding goal and moves past the
// due date so the mint unlocks.
func fillGoal(t *testing.T, env *testEnv) {
	t.Helper()
	if _, err := env.engine.Invest(bob, 60, 15, 5, CoinStable, nil); err != nil {
		t.Fatalf("goal invest: %v", err)
	}
	env.now = 1001
}

func TestMintIssuesContiguousRanges(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.engine.Invest(alice, 2, 1, 0, CoinStable, nil)
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	fillGoal(t, env)

	tokenIDs, err := env.engine.Mint(alice, alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Low ids start at 0, regular at 100 (the low cap).
	want := []uint64{0, 1, 100}
	if len(tokenIDs) != len(want) {
		t.Fatalf("minted %d ids, want %d", len(tokenIDs), len(want))
	}
	for i, id := range want {
		if tokenIDs[i] != id {
			t.Fatalf("tokenIDs[%d] = %d, want %d", i, tokenIDs[i], id)
		}
		if env.collectible.issued[id] != alice {
			t.Fatalf("token %d issued to %x", id, env.collectible.issued[id])
		}
	}
	stored, ok, err := env.state.RecordGet(record.ID)
	if err != nil || !ok {
		t.Fatalf("record get: %v %v", ok, err)
	}
	if !stored.Consumed {
		t.Fatalf("record not marked consumed")
	}
	live, _ := env.state.InvestorRecords(alice)
	if len(live) != 0 {
		t.Fatalf("consumed record still indexed: %v", live)
	}
}

func TestMintCursorsAdvanceAcrossCallers(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 2, 0, 0, CoinStable, nil); err != nil {
		t.Fatalf("alice invest: %v", err)
	}
	fillGoal(t, env)

	first, err := env.engine.Mint(alice, alice)
	if err != nil {
		t.Fatalf("alice mint: %v", err)
	}
	second, err := env.engine.Mint(bob, bob)
	if err != nil {
		t.Fatalf("bob mint: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, id := range append(append([]uint64(nil), first...), second...) {
		if seen[id] {
			t.Fatalf("token id %d reserved twice", id)
		}
		seen[id] = true
	}
	// Bob's low-tier ids continue after alice's.
	if second[0] != 2 {
		t.Fatalf("bob's first low id = %d, want 2", second[0])
	}
}

func TestMintRequiresThreshold(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	if _, err := env.engine.Mint(alice, alice); !errors.Is(err, errThresholdNotReached) {
		t.Fatalf("before due date: expected threshold error, got %v", err)
	}
	env.now = 1001 // past due, goal missed
	if _, err := env.engine.Mint(alice, alice); !errors.Is(err, errThresholdNotReached) {
		t.Fatalf("goal missed: expected threshold error, got %v", err)
	}
}

func TestMintConsumesOnce(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	fillGoal(t, env)
	if _, err := env.engine.Mint(alice, alice); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := env.engine.Mint(alice, alice); !errors.Is(err, errNothingToMint) {
		t.Fatalf("second mint: expected nothing to mint, got %v", err)
	}
}

func TestMintSkipsDonations(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Donate(alice, big.NewInt(100), CoinStable, nil); err != nil {
		t.Fatalf("donate: %v", err)
	}
	fillGoal(t, env)
	if _, err := env.engine.Mint(alice, alice); !errors.Is(err, errNothingToMint) {
		t.Fatalf("donations must not mint, got %v", err)
	}
}

func TestMintedRecordCannotBeRefunded(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.engine.Invest(alice, 1, 0, 0, CoinStable, nil)
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	fillGoal(t, env)
	if _, err := env.engine.Mint(alice, alice); err != nil {
		t.Fatalf("mint: %v", err)
	}
	env.oracle.SetCorrupted(testCreator, true) // opens the campaign-wide refund
	if err := env.engine.RefundWithInvestID(alice, record.ID); !errors.Is(err, errNotRecordOwner) {
		t.Fatalf("minted record refunded, err = %v", err)
	}
}

func TestMintRollbackOnIssuanceFailure(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 2, 1, 0, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	fillGoal(t, env)

	env.collectible.fail = true
	if _, err := env.engine.Mint(alice, alice); err == nil {
		t.Fatalf("expected issuance failure to surface")
	}
	lowQuota, _ := env.state.QuotaGet(types.TierLow)
	if lowQuota.NextTokenID != 0 {
		t.Fatalf("low cursor not rolled back: %d", lowQuota.NextTokenID)
	}
	live, _ := env.state.InvestorRecords(alice)
	if len(live) != 1 {
		t.Fatalf("record index not restored: %v", live)
	}

	env.collectible.fail = false
	tokenIDs, err := env.engine.Mint(alice, alice)
	if err != nil {
		t.Fatalf("retry mint: %v", err)
	}
	if len(tokenIDs) != 3 || tokenIDs[0] != 0 {
		t.Fatalf("retry reserved %v", tokenIDs)
	}
}

func TestMintPaused(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	fillGoal(t, env)
	if err := env.engine.SetPaused(testManager, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.engine.Mint(alice, alice); !errors.Is(err, errPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}
