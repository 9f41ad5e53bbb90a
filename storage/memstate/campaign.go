// Package memstate provides in-memory state backends for the campaign and
// staking engines. The enumerable sets use a backing array plus an id->index
// map so membership tests and removals are O(1) (swap-and-pop) while
// iteration stays allocation-free.
package memstate

import (
	"math/big"
	"sync"

	"fundmint/core/types"
	"fundmint/native/crowdfund"
)

// CampaignState is the in-memory backend for the crowdfund engine.
type CampaignState struct {
	mu        sync.RWMutex
	quotas    map[types.Tier]*crowdfund.QuotaTier
	records   map[uint64]*crowdfund.InvestmentRecord
	nextID    uint64
	index     map[[20]byte]*idSet
	collected map[crowdfund.Coin]*big.Int
	withdrawn map[crowdfund.Coin]bool
}

// NewCampaignState constructs an empty campaign backend.
func NewCampaignState() *CampaignState {
	return &CampaignState{
		quotas:    make(map[types.Tier]*crowdfund.QuotaTier),
		records:   make(map[uint64]*crowdfund.InvestmentRecord),
		index:     make(map[[20]byte]*idSet),
		collected: make(map[crowdfund.Coin]*big.Int),
		withdrawn: make(map[crowdfund.Coin]bool),
	}
}

// QuotaGet returns a copy of the tier's quota record.
func (s *CampaignState) QuotaGet(tier types.Tier) (*crowdfund.QuotaTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quota, ok := s.quotas[tier]
	if !ok {
		return &crowdfund.QuotaTier{}, nil
	}
	return quota.Clone(), nil
}

// QuotaPut stores a copy of the tier's quota record.
func (s *CampaignState) QuotaPut(tier types.Tier, quota *crowdfund.QuotaTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[tier] = quota.Clone()
	return nil
}

// RecordGet returns a copy of the investment record.
func (s *CampaignState) RecordGet(id uint64) (*crowdfund.InvestmentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

// RecordPut stores a copy of the investment record.
func (s *CampaignState) RecordPut(record *crowdfund.InvestmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// NextRecordID returns the next monotonic 1-based record id.
func (s *CampaignState) NextRecordID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

// InvestorRecords returns the live record ids of the investor in insertion
// order (modulo swap-remove reshuffling).
func (s *CampaignState) InvestorRecords(addr [20]byte) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.index[addr]
	if !ok {
		return nil, nil
	}
	return append([]uint64(nil), set.ids...), nil
}

// InvestorRecordAdd indexes a record id for the investor.
func (s *CampaignState) InvestorRecordAdd(addr [20]byte, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.index[addr]
	if !ok {
		set = newIDSet()
		s.index[addr] = set
	}
	set.add(id)
	return nil
}

// InvestorRecordRemove drops a record id from the investor's index,
// reporting whether it was present.
func (s *CampaignState) InvestorRecordRemove(addr [20]byte, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.index[addr]
	if !ok {
		return false, nil
	}
	return set.remove(id), nil
}

// CollectedGet returns the collected total for a coin.
func (s *CampaignState) CollectedGet(coin crowdfund.Coin) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collected, ok := s.collected[coin]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(collected), nil
}

// CollectedSet stores the collected total for a coin.
func (s *CampaignState) CollectedSet(coin crowdfund.Coin, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil {
		amount = big.NewInt(0)
	}
	s.collected[coin] = new(big.Int).Set(amount)
	return nil
}

// WithdrawnGet returns the withdrawn flag for a coin.
func (s *CampaignState) WithdrawnGet(coin crowdfund.Coin) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withdrawn[coin], nil
}

// WithdrawnSet stores the withdrawn flag for a coin.
func (s *CampaignState) WithdrawnSet(coin crowdfund.Coin, withdrawn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawn[coin] = withdrawn
	return nil
}

// idSet is an arena+index set over uint64 ids.
type idSet struct {
	ids []uint64
	pos map[uint64]int
}

func newIDSet() *idSet {
	return &idSet{pos: make(map[uint64]int)}
}

func (s *idSet) add(id uint64) {
	if _, ok := s.pos[id]; ok {
		return
	}
	s.pos[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

func (s *idSet) remove(id uint64) bool {
	at, ok := s.pos[id]
	if !ok {
		return false
	}
	last := len(s.ids) - 1
	if at != last {
		moved := s.ids[last]
		s.ids[at] = moved
		s.pos[moved] = at
	}
	s.ids = s.ids[:last]
	delete(s.pos, id)
	return true
}
