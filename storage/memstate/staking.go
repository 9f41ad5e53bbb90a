package memstate

import (
	"math/big"
	"sync"

	"fundmint/native/staking"
)

// StakingState is the in-memory backend for the staking engine.
type StakingState struct {
	mu          sync.RWMutex
	stakers     map[[20]byte]*staking.StakerRecord
	stakerList  [][20]byte
	stakerPos   map[[20]byte]int
	tokenStaker map[uint64][20]byte
	conditions  []*staking.StakingCondition
	usd         map[[20]byte]*big.Int
	usdDust     *big.Int
	rewardPool  *big.Int
}

// NewStakingState constructs an empty staking backend.
func NewStakingState() *StakingState {
	return &StakingState{
		stakers:     make(map[[20]byte]*staking.StakerRecord),
		stakerPos:   make(map[[20]byte]int),
		tokenStaker: make(map[uint64][20]byte),
		usd:         make(map[[20]byte]*big.Int),
		usdDust:     big.NewInt(0),
		rewardPool:  big.NewInt(0),
	}
}

// StakerGet returns a copy of the staker record.
func (s *StakingState) StakerGet(addr [20]byte) (*staking.StakerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.stakers[addr]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// StakerPut stores a copy of the staker record.
func (s *StakingState) StakerPut(record *staking.StakerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakers[record.Staker] = record.Clone()
	return nil
}

// StakerIndexAdd registers the staker in the enumerable set. Stakers are
// never removed: their records persist even when all-zero.
func (s *StakingState) StakerIndexAdd(addr [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stakerPos[addr]; ok {
		return nil
	}
	s.stakerPos[addr] = len(s.stakerList)
	s.stakerList = append(s.stakerList, addr)
	return nil
}

// Stakers returns every registered staker.
func (s *StakingState) Stakers() ([][20]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([][20]byte(nil), s.stakerList...), nil
}

// TokenStakerGet reports who staked a token, if anyone.
func (s *StakingState) TokenStakerGet(tokenID uint64) ([20]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	staker, ok := s.tokenStaker[tokenID]
	return staker, ok, nil
}

// TokenStakerSet marks a token staked by the staker.
func (s *StakingState) TokenStakerSet(tokenID uint64, staker [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStaker[tokenID] = staker
	return nil
}

// TokenStakerDelete unmarks a token.
func (s *StakingState) TokenStakerDelete(tokenID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokenStaker, tokenID)
	return nil
}

// ConditionGet returns a copy of the condition with the given id.
func (s *StakingState) ConditionGet(id uint64) (*staking.StakingCondition, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.conditions)) {
		return nil, false, nil
	}
	return s.conditions[id].Clone(), true, nil
}

// ConditionPut appends or overwrites a condition by id.
func (s *StakingState) ConditionPut(cond *staking.StakingCondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cond.ID == uint64(len(s.conditions)) {
		s.conditions = append(s.conditions, cond.Clone())
		return nil
	}
	if cond.ID < uint64(len(s.conditions)) {
		s.conditions[cond.ID] = cond.Clone()
	}
	return nil
}

// ConditionCount returns the number of stored conditions.
func (s *StakingState) ConditionCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.conditions)), nil
}

// USDGet returns the unclaimed USD balance of the staker.
func (s *StakingState) USDGet(addr [20]byte) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.usd[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// USDSet stores the unclaimed USD balance of the staker.
func (s *StakingState) USDSet(addr [20]byte, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil {
		amount = big.NewInt(0)
	}
	s.usd[addr] = new(big.Int).Set(amount)
	return nil
}

// USDDustGet returns the accumulated split remainder.
func (s *StakingState) USDDustGet() (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.usdDust), nil
}

// USDDustSet stores the accumulated split remainder.
func (s *StakingState) USDDustSet(amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil {
		amount = big.NewInt(0)
	}
	s.usdDust = new(big.Int).Set(amount)
	return nil
}

// RewardPoolGet returns the reward token pool balance.
func (s *StakingState) RewardPoolGet() (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.rewardPool), nil
}

// RewardPoolSet stores the reward token pool balance.
func (s *StakingState) RewardPoolSet(amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil {
		amount = big.NewInt(0)
	}
	s.rewardPool = new(big.Int).Set(amount)
	return nil
}
