package crowdfund

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"fundmint/core/types"
	"fundmint/native/authority"
)

type mockState struct {
	quotas    map[types.Tier]*QuotaTier
	records   map[uint64]*InvestmentRecord
	index     map[[20]byte][]uint64
	nextID    uint64
	collected map[Coin]*big.Int
	withdrawn map[Coin]bool
}

func newMockState() *mockState {
	return &mockState{
		quotas:    make(map[types.Tier]*QuotaTier),
		records:   make(map[uint64]*InvestmentRecord),
		index:     make(map[[20]byte][]uint64),
		collected: make(map[Coin]*big.Int),
		withdrawn: make(map[Coin]bool),
	}
}

func (m *mockState) QuotaGet(tier types.Tier) (*QuotaTier, error) {
	quota, ok := m.quotas[tier]
	if !ok {
		return &QuotaTier{}, nil
	}
	return quota.Clone(), nil
}

func (m *mockState) QuotaPut(tier types.Tier, quota *QuotaTier) error {
	m.quotas[tier] = quota.Clone()
	return nil
}

func (m *mockState) RecordGet(id uint64) (*InvestmentRecord, bool, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) RecordPut(record *InvestmentRecord) error {
	m.records[record.ID] = record.Clone()
	return nil
}

func (m *mockState) NextRecordID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) InvestorRecords(addr [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.index[addr]...), nil
}

func (m *mockState) InvestorRecordAdd(addr [20]byte, id uint64) error {
	for _, existing := range m.index[addr] {
		if existing == id {
			return nil
		}
	}
	m.index[addr] = append(m.index[addr], id)
	return nil
}

func (m *mockState) InvestorRecordRemove(addr [20]byte, id uint64) (bool, error) {
	ids := m.index[addr]
	for i, existing := range ids {
		if existing == id {
			m.index[addr] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockState) CollectedGet(coin Coin) (*big.Int, error) {
	collected, ok := m.collected[coin]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(collected), nil
}

func (m *mockState) CollectedSet(coin Coin, amount *big.Int) error {
	m.collected[coin] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) WithdrawnGet(coin Coin) (bool, error) { return m.withdrawn[coin], nil }

func (m *mockState) WithdrawnSet(coin Coin, withdrawn bool) error {
	m.withdrawn[coin] = withdrawn
	return nil
}

// mockCoin tracks net balance deltas: Pull debits the holder, Pay credits.
type mockCoin struct {
	deltas   map[[20]byte]*big.Int
	failPull bool
	failPay  bool
}

func newMockCoin() *mockCoin {
	return &mockCoin{deltas: make(map[[20]byte]*big.Int)}
}

func (c *mockCoin) Pull(from [20]byte, amount *big.Int) error {
	if c.failPull {
		return fmt.Errorf("pull refused")
	}
	c.apply(from, new(big.Int).Neg(amount))
	return nil
}

func (c *mockCoin) Pay(to [20]byte, amount *big.Int) error {
	if c.failPay {
		return fmt.Errorf("pay refused")
	}
	c.apply(to, amount)
	return nil
}

func (c *mockCoin) apply(addr [20]byte, amount *big.Int) {
	delta, ok := c.deltas[addr]
	if !ok {
		delta = big.NewInt(0)
	}
	c.deltas[addr] = new(big.Int).Add(delta, amount)
}

func (c *mockCoin) deltaOf(addr [20]byte) *big.Int {
	delta, ok := c.deltas[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(delta)
}

type mockCollectible struct {
	issued map[uint64][20]byte
	fail   bool
}

func newMockCollectible() *mockCollectible {
	return &mockCollectible{issued: make(map[uint64][20]byte)}
}

func (c *mockCollectible) IssueForCampaign(ids []uint64, tiers []types.Tier, to [20]byte) error {
	if c.fail {
		return fmt.Errorf("issuance refused")
	}
	for _, id := range ids {
		c.issued[id] = to
	}
	return nil
}

type testEnv struct {
	engine      *Engine
	state       *mockState
	oracle      *authority.Static
	collectible *mockCollectible
	coins       [CoinCount]*mockCoin
	now         int64
}

var (
	testCreator  = addr(0xC1)
	testManager  = addr(0xE0)
	testTreasury = addr(0xF0)
	testDonatee  = addr(0xD0)
	alice        = addr(0xA1)
	bob          = addr(0xB2)
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func testCampaign() *Campaign {
	campaign := &Campaign{
		Creator:          testCreator,
		Collection:       addr(0xC0),
		DueDate:          1000,
		MinSoldRateBps:   5000,
		DonationFeeBps:   1000,
		DonationReceiver: testDonatee,
		RefundWindow:     100,
		TierCaps:         [types.TierCount]uint64{100, 50, 10},
	}
	prices := [types.TierCount][CoinCount]int64{
		{10, 1, 2},
		{50, 5, 6},
		{200, 20, 40},
	}
	for t := range prices {
		for k, price := range prices[t] {
			campaign.TierPrices[t][k] = big.NewInt(price)
		}
	}
	return campaign
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testCampaign())
}

func newTestEnvWith(t *testing.T, campaign *Campaign) *testEnv {
	t.Helper()
	env := &testEnv{state: newMockState(), collectible: newMockCollectible(), now: 100}
	env.oracle = authority.NewStatic(250, 100, testTreasury)
	env.oracle.AddManager(testManager)
	env.oracle.SetCreator(addr(0xC0), testCreator)

	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetAuthority(env.oracle)
	env.engine.SetCollectible(env.collectible)
	for _, coin := range Coins() {
		env.coins[coin] = newMockCoin()
		env.engine.SetCoinBackend(coin, env.coins[coin])
	}
	env.engine.SetNowFunc(func() int64 { return env.now })
	if err := env.engine.Initialize(campaign); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return env
}

func TestInitializeOnce(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Initialize(testCampaign()); !errors.Is(err, errAlreadyInitialized) {
		t.Fatalf("expected already-initialized error, got %v", err)
	}
}

func TestInitializeSeedsQuotaCursors(t *testing.T) {
	env := newTestEnv(t)
	bases := [types.TierCount]uint64{0, 100, 150}
	for _, tier := range types.Tiers() {
		quota, err := env.state.QuotaGet(tier)
		if err != nil {
			t.Fatalf("quota get: %v", err)
		}
		if quota.NextTokenID != bases[tier] {
			t.Fatalf("tier %s cursor = %d, want %d", tier, quota.NextTokenID, bases[tier])
		}
	}
}

func TestInvestNativeReturnsExcess(t *testing.T) {
	env := newTestEnv(t)
	// 2 low + 1 regular = 2*10 + 50 = 70; pay 100, expect 30 back.
	record, err := env.engine.Invest(alice, 2, 1, 0, CoinNative, big.NewInt(100))
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	if record.TotalPayment.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("total payment = %s, want 70", record.TotalPayment)
	}
	if got := env.coins[CoinNative].deltaOf(alice); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("returned excess = %s, want 30", got)
	}
	collected, _ := env.state.CollectedGet(CoinNative)
	if collected.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("collected = %s, want 70", collected)
	}
}

func TestInvestNativeInsufficientPayment(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 2, 1, 0, CoinNative, big.NewInt(69)); !errors.Is(err, errInsufficientPayment) {
		t.Fatalf("expected insufficient payment, got %v", err)
	}
	quota, _ := env.state.QuotaGet(types.TierLow)
	if quota.Bought != 0 {
		t.Fatalf("bought mutated on failed invest: %d", quota.Bought)
	}
}

func TestInvestTokenPullsExactTotal(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 0, 0, 2, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	if got := env.coins[CoinStable].deltaOf(alice); got.Cmp(big.NewInt(-40)) != 0 {
		t.Fatalf("stable delta = %s, want -40", got)
	}
}

func TestInvestTierCapErrors(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name    string
		lo      uint64
		re      uint64
		hi      uint64
		wantErr error
	}{
		{"low", 101, 0, 0, errLowTierExceeded},
		{"regular", 0, 51, 0, errRegularTierExceeded},
		{"high", 0, 0, 11, errHighTierExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Invest(alice, tc.lo, tc.re, tc.hi, CoinNative, big.NewInt(1_000_000))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestInvestCapAccumulates(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 0, 0, 10, CoinStable, nil); err != nil {
		t.Fatalf("fill high tier: %v", err)
	}
	if _, err := env.engine.Invest(bob, 0, 0, 1, CoinStable, nil); !errors.Is(err, errHighTierExceeded) {
		t.Fatalf("expected high tier exceeded, got %v", err)
	}
}

func TestInvestQuantityWraparound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 10, 0, 0, CoinNative, big.NewInt(100)); err != nil {
		t.Fatalf("seed invest: %v", err)
	}
	// 10 + (2^64-5) wraps to 5 in uint64 arithmetic; the cap check must
	// still reject the request and leave the sold count untouched.
	huge := ^uint64(0) - 4
	if _, err := env.engine.Invest(bob, huge, 0, 0, CoinNative, big.NewInt(0)); !errors.Is(err, errLowTierExceeded) {
		t.Fatalf("expected low tier exceeded, got %v", err)
	}
	quota, _ := env.state.QuotaGet(types.TierLow)
	if quota.Bought != 10 {
		t.Fatalf("bought = %d, want 10", quota.Bought)
	}
}

func TestStatusSoldRateLargeCaps(t *testing.T) {
	campaign := testCampaign()
	campaign.TierCaps = [types.TierCount]uint64{1 << 62, 0, 0}
	campaign.TierPrices[types.TierLow][CoinNative] = big.NewInt(0)
	env := newTestEnvWith(t, campaign)
	if _, err := env.engine.Invest(alice, 1<<61, 0, 0, CoinNative, big.NewInt(0)); err != nil {
		t.Fatalf("invest: %v", err)
	}
	status, err := env.engine.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SoldRateBps != 5000 {
		t.Fatalf("sold rate = %d, want 5000", status.SoldRateBps)
	}
}

func TestCampaignValidateCapOverflow(t *testing.T) {
	campaign := testCampaign()
	campaign.TierCaps = [types.TierCount]uint64{math.MaxUint64, 1, 0}
	if err := campaign.Validate(0); err == nil {
		t.Fatalf("expected overflowing tier caps to be rejected")
	}
}

func TestInvestZeroQuantities(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Invest(alice, 0, 0, 0, CoinNative, big.NewInt(100)); !errors.Is(err, errNoQuantity) {
		t.Fatalf("expected no-quantity error, got %v", err)
	}
}

func TestInvestGates(t *testing.T) {
	env := newTestEnv(t)
	env.now = 1001
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinNative, big.NewInt(10)); !errors.Is(err, errPastDueDate) {
		t.Fatalf("expected past-due-date, got %v", err)
	}
	env.now = 100

	if err := env.engine.SetPaused(testManager, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinNative, big.NewInt(10)); !errors.Is(err, errPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if err := env.engine.SetPaused(testManager, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}

	env.oracle.SetCorrupted(testCreator, true)
	if _, err := env.engine.Invest(alice, 1, 0, 0, CoinNative, big.NewInt(10)); !errors.Is(err, errCorrupted) {
		t.Fatalf("expected corrupted, got %v", err)
	}
}

func TestSetPausedGate(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetPaused(alice, true); !errors.Is(err, authority.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.engine.SetPaused(testCreator, true); err != nil {
		t.Fatalf("creator pause: %v", err)
	}
	env.oracle.SetCorrupted(testCreator, true)
	if err := env.engine.SetPaused(testCreator, false); !errors.Is(err, authority.ErrUnauthorized) {
		t.Fatalf("corrupted creator should lose the gate, got %v", err)
	}
	if err := env.engine.SetPaused(testManager, false); err != nil {
		t.Fatalf("manager unpause: %v", err)
	}
}

func TestDonate(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.engine.Donate(alice, big.NewInt(500), CoinNative, big.NewInt(500))
	if err != nil {
		t.Fatalf("donate: %v", err)
	}
	if !record.Donation() {
		t.Fatalf("donation record reports quantities: %+v", record.Quantities)
	}
	if record.TokenQuantity() != 0 {
		t.Fatalf("donation entitles tokens: %d", record.TokenQuantity())
	}
	collected, _ := env.state.CollectedGet(CoinNative)
	if collected.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("collected = %s, want 500", collected)
	}
}

func TestDonateRejectsZeroAmount(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Donate(alice, big.NewInt(0), CoinNative, big.NewInt(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestInvestForAddressGate(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.InvestForAddress(alice, bob, 1, 0, 0, CoinNative, big.NewInt(10)); !errors.Is(err, authority.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	record, err := env.engine.InvestForAddress(testManager, bob, 1, 0, 0, CoinNative, big.NewInt(10))
	if err != nil {
		t.Fatalf("manager invest for bob: %v", err)
	}
	if record.Investor != bob {
		t.Fatalf("record credited to %x, want bob", record.Investor)
	}
	records, err := env.engine.RecordsOf(bob)
	if err != nil {
		t.Fatalf("records of bob: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("bob has %d records, want 1", len(records))
	}
}

func TestStatusSoldRate(t *testing.T) {
	env := newTestEnv(t)
	// 80 of 160 total units sold -> 5000 bps.
	if _, err := env.engine.Invest(alice, 60, 15, 5, CoinStable, nil); err != nil {
		t.Fatalf("invest: %v", err)
	}
	status, err := env.engine.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SoldRateBps != 5000 {
		t.Fatalf("sold rate = %d, want 5000", status.SoldRateBps)
	}
	if status.Bought[types.TierLow] != 60 || status.Caps[types.TierHigh] != 10 {
		t.Fatalf("unexpected status counts: %+v", status)
	}
}

func TestReceiptsAreUniquePerRecord(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.engine.Invest(alice, 1, 0, 0, CoinNative, big.NewInt(10))
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	second, err := env.engine.Invest(alice, 1, 0, 0, CoinNative, big.NewInt(10))
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	if first.Receipt == second.Receipt {
		t.Fatalf("receipts collide: %x", first.Receipt)
	}
	if first.ID == second.ID {
		t.Fatalf("record ids collide: %d", first.ID)
	}
}
