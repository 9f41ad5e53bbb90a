package crowdfund

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fundmint/core/events"
	"fundmint/core/types"
	"fundmint/native/authority"
)

var (
	errNilState            = errors.New("crowdfund engine: state not configured")
	errNotInitialized      = errors.New("crowdfund engine: campaign not initialized")
	errAlreadyInitialized  = errors.New("crowdfund engine: campaign already initialized")
	errPaused              = errors.New("crowdfund: campaign paused")
	errPastDueDate         = errors.New("crowdfund: campaign past due date")
	errCorrupted           = errors.New("crowdfund: creator corrupted")
	errUnsupportedCoin     = errors.New("crowdfund: unsupported coin")
	errCoinBackendNotSet   = errors.New("crowdfund: coin backend not configured")
	errInvalidAmount       = errors.New("crowdfund: amount must be positive")
	errNoQuantity          = errors.New("crowdfund: no tier quantity requested")
	errInsufficientPayment = errors.New("crowdfund: insufficient native payment")
	errLowTierExceeded     = errors.New("crowdfund: low tier quota exceeded")
	errRegularTierExceeded = errors.New("crowdfund: regular tier quota exceeded")
	errHighTierExceeded    = errors.New("crowdfund: high tier quota exceeded")
)

// Collectible is the mint side of the external collectible collaborator.
type Collectible interface {
	IssueForCampaign(ids []uint64, tiers []types.Tier, to [20]byte) error
}

// CoinBackend moves value of a single coin between external accounts and the
// campaign's custody. Pull draws funds from a payer into custody, Pay settles
// out of custody. The native coin backend only ever pays out: native value is
// already in custody when an operation carrying it is invoked.
type CoinBackend interface {
	Pull(from [20]byte, amount *big.Int) error
	Pay(to [20]byte, amount *big.Int) error
}

// engineState is the persistence surface the campaign engine needs.
type engineState interface {
	QuotaGet(tier types.Tier) (*QuotaTier, error)
	QuotaPut(tier types.Tier, quota *QuotaTier) error
	RecordGet(id uint64) (*InvestmentRecord, bool, error)
	RecordPut(record *InvestmentRecord) error
	NextRecordID() (uint64, error)
	InvestorRecords(addr [20]byte) ([]uint64, error)
	InvestorRecordAdd(addr [20]byte, id uint64) error
	InvestorRecordRemove(addr [20]byte, id uint64) (bool, error)
	CollectedGet(coin Coin) (*big.Int, error)
	CollectedSet(coin Coin, amount *big.Int) error
	WithdrawnGet(coin Coin) (bool, error)
	WithdrawnSet(coin Coin, withdrawn bool) error
}

// Engine owns the tier sale bookkeeping: quota accounting, the investment
// registry, refunds, the mint hand-off and the proceeds split. All public
// operations are serialized and either complete fully or leave the
// bookkeeping untouched.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	emitter     events.Emitter
	nowFn       func() int64
	oracle      authority.Oracle
	collectible Collectible
	coins       [CoinCount]CoinBackend
	campaign    *Campaign
	paused      bool
	initialized bool
}

// NewEngine constructs a campaign engine with a no-op emitter and the wall
// clock. Collaborators are supplied through the setters before Initialize.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the authority oracle consulted for role gates.
func (e *Engine) SetAuthority(oracle authority.Oracle) { e.oracle = oracle }

// SetCollectible configures the collectible collaborator that receives the
// reserved id ranges on mint.
func (e *Engine) SetCollectible(c Collectible) { e.collectible = c }

// SetCoinBackend configures the transfer collaborator for one coin.
func (e *Engine) SetCoinBackend(coin Coin, backend CoinBackend) {
	if !coin.Valid() {
		return
	}
	e.coins[coin] = backend
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Passing nil restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Initialize validates the campaign definition, seeds the per-tier quota
// records and arms the engine. It may be called exactly once.
func (e *Engine) Initialize(campaign *Campaign) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if e.initialized {
		return errAlreadyInitialized
	}
	if err := campaign.Validate(e.now()); err != nil {
		return err
	}
	normalized := campaign.Clone()
	if normalized.RefundWindow == 0 {
		normalized.RefundWindow = DefaultRefundWindow
	}
	for _, tier := range types.Tiers() {
		quota := &QuotaTier{
			Cap:         normalized.TierCaps[tier],
			NextTokenID: normalized.TierBase(tier),
		}
		for coin := range quota.Prices {
			quota.Prices[coin] = normalized.TierPrices[tier][coin]
			if quota.Prices[coin] == nil {
				quota.Prices[coin] = big.NewInt(0)
			}
		}
		if err := e.state.QuotaPut(tier, quota); err != nil {
			return err
		}
	}
	for _, coin := range Coins() {
		if err := e.state.CollectedSet(coin, big.NewInt(0)); err != nil {
			return err
		}
	}
	e.campaign = normalized
	e.initialized = true
	return nil
}

// SetPaused toggles the campaign circuit breaker. Managers may always flip
// it; the creator only while not corrupted.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return err
	}
	if err := authority.RequirePrivileged(e.oracle, e.campaign.Collection, e.campaign.Creator, caller); err != nil {
		return err
	}
	e.paused = paused
	e.emit(NewPausedEvent(paused))
	return nil
}

// Invest buys tier quota for the caller, paying with the supplied coin. For
// the native coin, paid is the attached value and any excess over the
// computed total is returned to the caller.
func (e *Engine) Invest(investor [20]byte, lowQty, regularQty, highQty uint64, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invest(investor, investor, [types.TierCount]uint64{lowQty, regularQty, highQty}, coin, paid)
}

// InvestForAddress buys tier quota for a beneficiary other than the payer.
// Managers may always call it; the creator only while not corrupted; anyone
// else only for themselves.
func (e *Engine) InvestForAddress(caller [20]byte, beneficiary [20]byte, lowQty, regularQty, highQty uint64, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := authority.RequireSelfOrPrivileged(e.oracle, e.campaign.Collection, e.campaign.Creator, caller, beneficiary); err != nil {
		return nil, err
	}
	return e.invest(caller, beneficiary, [types.TierCount]uint64{lowQty, regularQty, highQty}, coin, paid)
}

// Donate records a payment carrying no tier quantities. Donations share the
// refund bookkeeping with investments but never participate in the mint.
func (e *Engine) Donate(donor [20]byte, amount *big.Int, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.donate(donor, donor, amount, coin, paid)
}

// DonateForAddress records a donation credited to a beneficiary other than
// the payer, under the same gate as InvestForAddress.
func (e *Engine) DonateForAddress(caller [20]byte, beneficiary [20]byte, amount *big.Int, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := authority.RequireSelfOrPrivileged(e.oracle, e.campaign.Collection, e.campaign.Creator, caller, beneficiary); err != nil {
		return nil, err
	}
	return e.donate(caller, beneficiary, amount, coin, paid)
}

func (e *Engine) invest(payer, beneficiary [20]byte, quantities [types.TierCount]uint64, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	if err := e.checkOpen(coin); err != nil {
		return nil, err
	}
	var anyQty bool
	for _, qty := range quantities {
		if qty > 0 {
			anyQty = true
		}
	}
	if !anyQty {
		return nil, errNoQuantity
	}
	quotas := [types.TierCount]*QuotaTier{}
	total := big.NewInt(0)
	for _, tier := range types.Tiers() {
		qty := quantities[tier]
		if qty == 0 {
			continue
		}
		quota, err := e.state.QuotaGet(tier)
		if err != nil {
			return nil, err
		}
		// Bought+qty can wrap in uint64; compare against the remaining
		// headroom instead.
		if qty > quota.Cap || quota.Bought > quota.Cap-qty {
			return nil, tierExceededError(tier)
		}
		quotas[tier] = quota
		cost := new(big.Int).Mul(quota.Price(coin), new(big.Int).SetUint64(qty))
		total.Add(total, cost)
	}
	excess, err := e.collectPayment(payer, coin, total, paid)
	if err != nil {
		return nil, err
	}
	for _, tier := range types.Tiers() {
		if quotas[tier] == nil {
			continue
		}
		quotas[tier].Bought += quantities[tier]
		if err := e.state.QuotaPut(tier, quotas[tier]); err != nil {
			return nil, err
		}
	}
	record, err := e.appendRecord(beneficiary, quantities, coin, total)
	if err != nil {
		return nil, err
	}
	if err := e.returnExcess(payer, coin, excess); err != nil {
		return nil, err
	}
	e.emit(NewInvestedEvent(record, payer))
	return record.Clone(), nil
}

func (e *Engine) donate(payer, beneficiary [20]byte, amount *big.Int, coin Coin, paid *big.Int) (*InvestmentRecord, error) {
	if err := e.checkOpen(coin); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	total := new(big.Int).Set(amount)
	excess, err := e.collectPayment(payer, coin, total, paid)
	if err != nil {
		return nil, err
	}
	record, err := e.appendRecord(beneficiary, [types.TierCount]uint64{}, coin, total)
	if err != nil {
		return nil, err
	}
	if err := e.returnExcess(payer, coin, excess); err != nil {
		return nil, err
	}
	e.emit(NewDonatedEvent(record, payer))
	return record.Clone(), nil
}

// checkOpen verifies the campaign still accepts payments.
func (e *Engine) checkOpen(coin Coin) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	if e.paused {
		return errPaused
	}
	if e.now() > e.campaign.DueDate {
		return errPastDueDate
	}
	corrupted, err := e.oracleCorrupted()
	if err != nil {
		return err
	}
	if corrupted {
		return errCorrupted
	}
	if !coin.Valid() {
		return errUnsupportedCoin
	}
	return nil
}

// collectPayment draws total into custody and returns the excess owed back
// to the payer for the native-coin path.
func (e *Engine) collectPayment(payer [20]byte, coin Coin, total, paid *big.Int) (*big.Int, error) {
	if coin == CoinNative {
		attached := big.NewInt(0)
		if paid != nil {
			attached = new(big.Int).Set(paid)
		}
		if attached.Cmp(total) < 0 {
			return nil, errInsufficientPayment
		}
		return new(big.Int).Sub(attached, total), nil
	}
	backend := e.coins[coin]
	if backend == nil {
		return nil, errCoinBackendNotSet
	}
	if total.Sign() > 0 {
		if err := backend.Pull(payer, total); err != nil {
			return nil, err
		}
	}
	return big.NewInt(0), nil
}

func (e *Engine) returnExcess(payer [20]byte, coin Coin, excess *big.Int) error {
	if coin != CoinNative || excess == nil || excess.Sign() <= 0 {
		return nil
	}
	backend := e.coins[CoinNative]
	if backend == nil {
		return errCoinBackendNotSet
	}
	return backend.Pay(payer, excess)
}

// appendRecord persists a new investment record, indexes it for the
// beneficiary and accumulates the per-coin collected total.
func (e *Engine) appendRecord(beneficiary [20]byte, quantities [types.TierCount]uint64, coin Coin, total *big.Int) (*InvestmentRecord, error) {
	id, err := e.state.NextRecordID()
	if err != nil {
		return nil, err
	}
	record := &InvestmentRecord{
		ID:             id,
		Receipt:        recordReceipt(beneficiary, id),
		Investor:       beneficiary,
		Quantities:     quantities,
		Coin:           coin,
		TotalPayment:   new(big.Int).Set(total),
		RefundDeadline: e.now() + e.campaign.RefundWindow,
	}
	if err := e.state.RecordPut(record); err != nil {
		return nil, err
	}
	if err := e.state.InvestorRecordAdd(beneficiary, id); err != nil {
		return nil, err
	}
	collected, err := e.state.CollectedGet(coin)
	if err != nil {
		return nil, err
	}
	if err := e.state.CollectedSet(coin, new(big.Int).Add(collected, total)); err != nil {
		return nil, err
	}
	return record, nil
}

// Status returns a read-only snapshot of the campaign bookkeeping.
func (e *Engine) Status() (*CampaignStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	status := &CampaignStatus{
		DueDate:        e.campaign.DueDate,
		Paused:         e.paused,
		MinSoldRateBps: e.campaign.MinSoldRateBps,
	}
	for _, tier := range types.Tiers() {
		quota, err := e.state.QuotaGet(tier)
		if err != nil {
			return nil, err
		}
		status.Bought[tier] = quota.Bought
		status.Caps[tier] = quota.Cap
	}
	for _, coin := range Coins() {
		collected, err := e.state.CollectedGet(coin)
		if err != nil {
			return nil, err
		}
		status.Collected[coin] = collected
		withdrawn, err := e.state.WithdrawnGet(coin)
		if err != nil {
			return nil, err
		}
		status.Withdrawn[coin] = withdrawn
	}
	rate, err := e.soldRateBps()
	if err != nil {
		return nil, err
	}
	status.SoldRateBps = rate
	return status, nil
}

// RecordsOf returns the live records of one investor.
func (e *Engine) RecordsOf(investor [20]byte) ([]*InvestmentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	ids, err := e.state.InvestorRecords(investor)
	if err != nil {
		return nil, err
	}
	records := make([]*InvestmentRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := e.state.RecordGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		records = append(records, record.Clone())
	}
	return records, nil
}

// soldRateBps reports the aggregate sold share across tiers in basis points.
// The sums and the scaling run in big.Int so caps near the uint64 range stay
// exact.
func (e *Engine) soldRateBps() (uint32, error) {
	bought := new(big.Int)
	caps := new(big.Int)
	for _, tier := range types.Tiers() {
		quota, err := e.state.QuotaGet(tier)
		if err != nil {
			return 0, err
		}
		bought.Add(bought, new(big.Int).SetUint64(quota.Bought))
		caps.Add(caps, new(big.Int).SetUint64(quota.Cap))
	}
	if caps.Sign() == 0 {
		return 0, nil
	}
	rate := bought.Mul(bought, big.NewInt(feeDenominator))
	rate.Div(rate, caps)
	return uint32(rate.Uint64()), nil
}

// thresholdReached reports whether the funding goal is met after the due
// date, unlocking the mint and the proceeds withdrawal.
func (e *Engine) thresholdReached() (bool, error) {
	if e.now() <= e.campaign.DueDate {
		return false, nil
	}
	rate, err := e.soldRateBps()
	if err != nil {
		return false, err
	}
	return rate >= e.campaign.MinSoldRateBps, nil
}

func (e *Engine) oracleCorrupted() (bool, error) {
	if e.oracle == nil {
		return false, authority.ErrNotConfigured
	}
	return e.oracle.IsCorrupted(e.campaign.Creator)
}

func (e *Engine) ensureReady() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.initialized || e.campaign == nil {
		return errNotInitialized
	}
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(campaignEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func tierExceededError(tier types.Tier) error {
	switch tier {
	case types.TierLow:
		return errLowTierExceeded
	case types.TierRegular:
		return errRegularTierExceeded
	case types.TierHigh:
		return errHighTierExceeded
	default:
		return fmt.Errorf("crowdfund: invalid tier %d", tier)
	}
}

// recordReceipt derives the stable receipt hash attached to a record. The
// hash only feeds events and off-chain indexing; bookkeeping keys on the id.
func recordReceipt(investor [20]byte, id uint64) [32]byte {
	buf := make([]byte, len(investor)+8)
	copy(buf, investor[:])
	for i := 0; i < 8; i++ {
		buf[len(investor)+i] = byte(id >> (8 * (7 - i)))
	}
	var receipt [32]byte
	copy(receipt[:], ethcrypto.Keccak256(buf))
	return receipt
}
