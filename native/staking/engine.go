package staking

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"fundmint/core/events"
	"fundmint/core/types"
	"fundmint/native/authority"
)

var (
	errNilState           = errors.New("staking engine: state not configured")
	errPaused             = errors.New("staking: paused")
	errEmptyTokenList     = errors.New("staking: empty token list")
	errDuplicateToken     = errors.New("staking: duplicate token id")
	errInvalidTokenTier   = errors.New("staking: collectible reported invalid tier")
	errNotTokenOwner      = errors.New("staking: caller not owner or approved")
	errTokenAlreadyStaked = errors.New("staking: token already staked")
	errTokenNotStaked     = errors.New("staking: token not staked by caller")
	errWithdrawExceeds    = errors.New("staking: withdraw exceeds staked amount")
	errZeroTimeUnit       = errors.New("staking: time unit must be positive")
	errNoRewards          = errors.New("staking: no rewards")
	errPoolUnderfunded    = errors.New("staking: reward pool underfunded")
	errInvalidAmount      = errors.New("staking: amount must be positive")
	errCollectibleNotSet  = errors.New("staking: collectible not configured")
	errTokenBackendNotSet = errors.New("staking: token backend not configured")
)

// Collectible is the ownership and tier surface of the external collectible
// collaborator. The tier of a token is a property of the collectible's id
// layout, so the staking engine never derives it locally.
type Collectible interface {
	OwnerOf(tokenID uint64) ([20]byte, error)
	IsApprovedFor(owner [20]byte, operator [20]byte) (bool, error)
	TierOf(tokenID uint64) (types.Tier, error)
	Transfer(from [20]byte, to [20]byte, tokenID uint64) error
}

// TokenBackend moves fungible value (the reward token or the stable-value
// token) between external accounts and the engine's custody.
type TokenBackend interface {
	Pull(from [20]byte, amount *big.Int) error
	Pay(to [20]byte, amount *big.Int) error
}

// engineState is the persistence surface the staking engine needs. The
// staker set and the token index are enumerable.
type engineState interface {
	StakerGet(addr [20]byte) (*StakerRecord, bool, error)
	StakerPut(record *StakerRecord) error
	StakerIndexAdd(addr [20]byte) error
	Stakers() ([][20]byte, error)
	TokenStakerGet(tokenID uint64) ([20]byte, bool, error)
	TokenStakerSet(tokenID uint64, staker [20]byte) error
	TokenStakerDelete(tokenID uint64) error
	ConditionGet(id uint64) (*StakingCondition, bool, error)
	ConditionPut(cond *StakingCondition) error
	ConditionCount() (uint64, error)
	USDGet(addr [20]byte) (*big.Int, error)
	USDSet(addr [20]byte, amount *big.Int) error
	USDDustGet() (*big.Int, error)
	USDDustSet(amount *big.Int) error
	RewardPoolGet() (*big.Int, error)
	RewardPoolSet(amount *big.Int) error
}

// Engine owns the stake ledger, the condition history, the reward accrual
// and the USD splitter. All public operations are serialized and either
// complete fully or leave the bookkeeping untouched.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	emitter     events.Emitter
	nowFn       func() int64
	oracle      authority.Oracle
	collectible Collectible
	rewardToken TokenBackend
	stableToken TokenBackend
	vault       [20]byte
	collection  [20]byte
	creator     [20]byte
	flushMode   FlushMode
	weightMode  WeightMode
	paused      bool
}

// NewEngine constructs a staking engine with a no-op emitter, the wall
// clock, the integrated flush mode and rate-weighted USD splits.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		flushMode:  FlushIntegrated,
		weightMode: WeightByRate,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the authority oracle consulted for role gates.
func (e *Engine) SetAuthority(oracle authority.Oracle) { e.oracle = oracle }

// SetCollectible configures the collectible collaborator.
func (e *Engine) SetCollectible(c Collectible) { e.collectible = c }

// SetRewardToken configures the reward token collaborator.
func (e *Engine) SetRewardToken(backend TokenBackend) { e.rewardToken = backend }

// SetStableToken configures the stable-value token collaborator used by the
// USD splitter.
func (e *Engine) SetStableToken(backend TokenBackend) { e.stableToken = backend }

// SetVault configures the custody address holding staked collectibles.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetCollection binds the engine to the collection and its creator, which
// the authority gates key on.
func (e *Engine) SetCollection(collection [20]byte, creator [20]byte) {
	e.collection = collection
	e.creator = creator
}

// SetFlushMode selects the accrual attribution mode. Invalid values are
// ignored.
func (e *Engine) SetFlushMode(mode FlushMode) {
	if !mode.Valid() {
		return
	}
	e.flushMode = mode
}

// SetWeightMode selects the USD split weighting. Invalid values are ignored.
func (e *Engine) SetWeightMode(mode WeightMode) {
	if !mode.Valid() {
		return
	}
	e.weightMode = mode
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

// SetPaused toggles the staking circuit breaker under the privileged gate.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := authority.RequirePrivileged(e.oracle, e.collection, e.creator, caller); err != nil {
		return err
	}
	e.paused = paused
	e.emit(NewPausedEvent(paused))
	return nil
}

// Stake locks the supplied collectibles and starts accruing reward for
// them. The caller must be the owner of, or approved for, every token. The
// pending reward is flushed before the staked amounts change so the new
// tokens never earn retroactively.
func (e *Engine) Stake(staker [20]byte, tokenIDs []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if e.paused {
		return errPaused
	}
	if len(tokenIDs) == 0 {
		return errEmptyTokenList
	}
	if e.collectible == nil {
		return errCollectibleNotSet
	}
	owners := make([][20]byte, len(tokenIDs))
	tiers := make([]types.Tier, len(tokenIDs))
	seen := make(map[uint64]struct{}, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		if _, dup := seen[tokenID]; dup {
			return errDuplicateToken
		}
		seen[tokenID] = struct{}{}
		owner, err := e.collectible.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if owner != staker {
			approved, err := e.collectible.IsApprovedFor(owner, staker)
			if err != nil {
				return err
			}
			if !approved {
				return errNotTokenOwner
			}
		}
		if _, staked, err := e.state.TokenStakerGet(tokenID); err != nil {
			return err
		} else if staked {
			return errTokenAlreadyStaked
		}
		tier, err := e.collectible.TierOf(tokenID)
		if err != nil {
			return err
		}
		if !tier.Valid() {
			return errInvalidTokenTier
		}
		owners[i] = owner
		tiers[i] = tier
	}
	record, created, err := e.loadOrCreateStaker(staker)
	if err != nil {
		return err
	}
	if err := e.flushRewards(record); err != nil {
		return err
	}
	for i, tokenID := range tokenIDs {
		record.AmountStaked[tiers[i]]++
		if err := e.state.TokenStakerSet(tokenID, staker); err != nil {
			return err
		}
	}
	if err := e.state.StakerPut(record); err != nil {
		return err
	}
	if created {
		if err := e.state.StakerIndexAdd(staker); err != nil {
			return err
		}
	}
	// Custody moves last, once the ledger is final.
	for i, tokenID := range tokenIDs {
		if err := e.collectible.Transfer(owners[i], e.vault, tokenID); err != nil {
			e.rollbackStake(record, tokenIDs, tiers, owners, i)
			return err
		}
	}
	e.emit(NewStakedEvent(staker, tokenIDs))
	return nil
}

// Withdraw releases staked collectibles back to the staker, flushing the
// pending reward first so accrual stops at the withdrawal time.
func (e *Engine) Withdraw(staker [20]byte, tokenIDs []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return errPaused
	}
	return e.withdraw(staker, tokenIDs)
}

// WithdrawToAddress is the administrative variant releasing another
// staker's collectibles: manager always, creator only while not corrupted.
// As an emergency recovery path it ignores the paused flag.
func (e *Engine) WithdrawToAddress(caller [20]byte, staker [20]byte, tokenIDs []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := authority.RequirePrivileged(e.oracle, e.collection, e.creator, caller); err != nil {
		return err
	}
	return e.withdraw(staker, tokenIDs)
}

func (e *Engine) withdraw(staker [20]byte, tokenIDs []uint64) error {
	if e.state == nil {
		return errNilState
	}
	if len(tokenIDs) == 0 {
		return errEmptyTokenList
	}
	if e.collectible == nil {
		return errCollectibleNotSet
	}
	tiers := make([]types.Tier, len(tokenIDs))
	seen := make(map[uint64]struct{}, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		if _, dup := seen[tokenID]; dup {
			return errDuplicateToken
		}
		seen[tokenID] = struct{}{}
		owner, staked, err := e.state.TokenStakerGet(tokenID)
		if err != nil {
			return err
		}
		if !staked || owner != staker {
			return errTokenNotStaked
		}
		tier, err := e.collectible.TierOf(tokenID)
		if err != nil {
			return err
		}
		if !tier.Valid() {
			return errInvalidTokenTier
		}
		tiers[i] = tier
	}
	record, _, err := e.loadOrCreateStaker(staker)
	if err != nil {
		return err
	}
	if err := e.flushRewards(record); err != nil {
		return err
	}
	counts := [types.TierCount]uint64{}
	for _, tier := range tiers {
		counts[tier]++
	}
	for _, tier := range types.Tiers() {
		if counts[tier] > record.AmountStaked[tier] {
			return errWithdrawExceeds
		}
	}
	for i, tokenID := range tokenIDs {
		record.AmountStaked[tiers[i]]--
		if err := e.state.TokenStakerDelete(tokenID); err != nil {
			return err
		}
	}
	if err := e.state.StakerPut(record); err != nil {
		return err
	}
	for i, tokenID := range tokenIDs {
		if err := e.collectible.Transfer(e.vault, staker, tokenID); err != nil {
			e.rollbackWithdraw(record, staker, tokenIDs, tiers, i)
			return err
		}
	}
	e.emit(NewWithdrawnEvent(staker, tokenIDs))
	return nil
}

// ClaimRewards flushes and pays out the staker's unclaimed reward, net of
// the platform fee routed to the treasury. The balance resets to zero and
// the reward pool is debited for the gross amount.
func (e *Engine) ClaimRewards(staker [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if e.paused {
		return nil, errPaused
	}
	if e.rewardToken == nil {
		return nil, errTokenBackendNotSet
	}
	record, _, err := e.loadOrCreateStaker(staker)
	if err != nil {
		return nil, err
	}
	if err := e.flushRewards(record); err != nil {
		return nil, err
	}
	gross := new(big.Int).Set(record.UnclaimedRewards)
	if gross.Sign() == 0 {
		return nil, errNoRewards
	}
	pool, err := e.state.RewardPoolGet()
	if err != nil {
		return nil, err
	}
	if pool.Cmp(gross) < 0 {
		return nil, errPoolUnderfunded
	}
	fee := new(big.Int).Mul(gross, big.NewInt(int64(e.platformFeeBps())))
	fee.Div(fee, big.NewInt(feeDenominator))
	net := new(big.Int).Sub(gross, fee)
	record.UnclaimedRewards = big.NewInt(0)
	if err := e.state.StakerPut(record); err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolSet(new(big.Int).Sub(pool, gross)); err != nil {
		return nil, err
	}
	if err := e.payReward(staker, net, fee); err != nil {
		record.UnclaimedRewards = gross
		_ = e.state.StakerPut(record)
		_ = e.state.RewardPoolSet(pool)
		return nil, err
	}
	e.emit(NewRewardsClaimedEvent(staker, gross, fee))
	return net, nil
}

// SetStakingCondition closes the current condition at the present time and
// opens a new one with the supplied rates. Managers may always call it; the
// creator only while not corrupted.
func (e *Engine) SetStakingCondition(caller [20]byte, timeUnit int64, rates [types.TierCount]*big.Int) (*StakingCondition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if err := authority.RequirePrivileged(e.oracle, e.collection, e.creator, caller); err != nil {
		return nil, err
	}
	now := e.now()
	count, err := e.state.ConditionCount()
	if err != nil {
		return nil, err
	}
	cond := &StakingCondition{ID: count, TimeUnit: timeUnit, RatePerTier: rates, StartTs: now}
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	if count > 0 {
		current, ok, err := e.state.ConditionGet(count - 1)
		if err != nil {
			return nil, err
		}
		if ok && current.EndTs == 0 {
			current.EndTs = now
			if err := e.state.ConditionPut(current); err != nil {
				return nil, err
			}
		}
	}
	if err := e.state.ConditionPut(cond); err != nil {
		return nil, err
	}
	e.emit(NewConditionSetEvent(cond))
	return cond.Clone(), nil
}

// DepositRewardTokens tops the reward pool up from an external account.
// Manager only.
func (e *Engine) DepositRewardTokens(caller [20]byte, from [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := authority.RequireManager(e.oracle, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.rewardToken == nil {
		return errTokenBackendNotSet
	}
	if err := e.rewardToken.Pull(from, amount); err != nil {
		return err
	}
	pool, err := e.state.RewardPoolGet()
	if err != nil {
		return err
	}
	if err := e.state.RewardPoolSet(new(big.Int).Add(pool, amount)); err != nil {
		return err
	}
	e.emit(NewPoolDepositedEvent(from, amount))
	return nil
}

// View returns a read-only snapshot for one staker, including the reward
// accrued since the last flush.
func (e *Engine) View(staker [20]byte) (*StakerView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	view := &StakerView{Staker: staker, PendingRewards: big.NewInt(0), UnclaimedUSD: big.NewInt(0)}
	record, ok, err := e.state.StakerGet(staker)
	if err != nil {
		return nil, err
	}
	if ok {
		view.AmountStaked = record.AmountStaked
		pending, err := e.pendingReward(record, e.now())
		if err != nil {
			return nil, err
		}
		view.PendingRewards = new(big.Int).Add(record.UnclaimedRewards, pending)
	}
	usd, err := e.state.USDGet(staker)
	if err != nil {
		return nil, err
	}
	view.UnclaimedUSD = usd
	return view, nil
}

// ActiveCondition returns the currently open condition, or nil when the
// history is empty.
func (e *Engine) ActiveCondition() (*StakingCondition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.activeCondition()
}

// Conditions returns the full condition history in id order.
func (e *Engine) Conditions() ([]*StakingCondition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.ConditionCount()
	if err != nil {
		return nil, err
	}
	conditions := make([]*StakingCondition, 0, count)
	for id := uint64(0); id < count; id++ {
		cond, ok, err := e.state.ConditionGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

func (e *Engine) activeCondition() (*StakingCondition, error) {
	count, err := e.state.ConditionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	cond, ok, err := e.state.ConditionGet(count - 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cond, nil
}

func (e *Engine) loadOrCreateStaker(staker [20]byte) (*StakerRecord, bool, error) {
	record, ok, err := e.state.StakerGet(staker)
	if err != nil {
		return nil, false, err
	}
	if ok {
		if record.UnclaimedRewards == nil {
			record.UnclaimedRewards = big.NewInt(0)
		}
		return record, false, nil
	}
	count, err := e.state.ConditionCount()
	if err != nil {
		return nil, false, err
	}
	conditionID := uint64(0)
	if count > 0 {
		conditionID = count - 1
	}
	return &StakerRecord{
		Staker:           staker,
		TimeOfLastUpdate: e.now(),
		UnclaimedRewards: big.NewInt(0),
		ConditionID:      conditionID,
	}, true, nil
}

// rollbackStake undoes the ledger changes of a failed stake and returns the
// tokens already moved into the vault. Best effort: errors here are
// unrecoverable and intentionally ignored.
func (e *Engine) rollbackStake(record *StakerRecord, tokenIDs []uint64, tiers []types.Tier, owners [][20]byte, failedAt int) {
	for i, tokenID := range tokenIDs {
		record.AmountStaked[tiers[i]]--
		_ = e.state.TokenStakerDelete(tokenID)
		if i < failedAt {
			_ = e.collectible.Transfer(e.vault, owners[i], tokenID)
		}
	}
	_ = e.state.StakerPut(record)
}

// rollbackWithdraw mirrors rollbackStake for a failed withdrawal.
func (e *Engine) rollbackWithdraw(record *StakerRecord, staker [20]byte, tokenIDs []uint64, tiers []types.Tier, failedAt int) {
	for i, tokenID := range tokenIDs {
		record.AmountStaked[tiers[i]]++
		_ = e.state.TokenStakerSet(tokenID, staker)
		if i < failedAt {
			_ = e.collectible.Transfer(staker, e.vault, tokenID)
		}
	}
	_ = e.state.StakerPut(record)
}

func (e *Engine) payReward(staker [20]byte, net, fee *big.Int) error {
	if net.Sign() > 0 {
		if err := e.rewardToken.Pay(staker, net); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.rewardToken.Pay(e.treasury(), fee); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) platformFeeBps() uint32 {
	if e.oracle == nil {
		return 0
	}
	return e.oracle.PlatformFeeBps()
}

func (e *Engine) royaltyFeeBps() uint32 {
	if e.oracle == nil {
		return 0
	}
	return e.oracle.RoyaltyFeeBps()
}

func (e *Engine) treasury() [20]byte {
	if e.oracle == nil {
		return [20]byte{}
	}
	return e.oracle.Treasury()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(stakingEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

const feeDenominator = 10_000
