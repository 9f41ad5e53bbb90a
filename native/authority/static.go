package authority

import "sync"

// Static is a registry-backed Oracle for deployments that manage roles
// locally instead of consulting an external registry. It is safe for
// concurrent use.
type Static struct {
	mu        sync.RWMutex
	managers  map[[20]byte]bool
	creators  map[[20]byte][20]byte // collection -> creator
	corrupted map[[20]byte]bool
	platform  uint32
	royalty   uint32
	treasury  [20]byte
}

// NewStatic constructs an empty static oracle with the supplied fee rates and
// treasury.
func NewStatic(platformFeeBps, royaltyFeeBps uint32, treasury [20]byte) *Static {
	return &Static{
		managers:  make(map[[20]byte]bool),
		creators:  make(map[[20]byte][20]byte),
		corrupted: make(map[[20]byte]bool),
		platform:  platformFeeBps,
		royalty:   royaltyFeeBps,
		treasury:  treasury,
	}
}

// AddManager grants the manager role to the address.
func (s *Static) AddManager(addr [20]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers[addr] = true
}

// SetCreator registers the creator of a collection.
func (s *Static) SetCreator(collection [20]byte, creator [20]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators[collection] = creator
}

// SetCorrupted flags or clears the corrupted state of a creator.
func (s *Static) SetCorrupted(creator [20]byte, corrupted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if corrupted {
		s.corrupted[creator] = true
		return
	}
	delete(s.corrupted, creator)
}

// IsManager implements the Oracle interface.
func (s *Static) IsManager(addr [20]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.managers[addr], nil
}

// IsCreatorOf implements the Oracle interface.
func (s *Static) IsCreatorOf(collection [20]byte, addr [20]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creator, ok := s.creators[collection]
	return ok && creator == addr, nil
}

// IsCorrupted implements the Oracle interface.
func (s *Static) IsCorrupted(creator [20]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corrupted[creator], nil
}

// PlatformFeeBps implements the Oracle interface.
func (s *Static) PlatformFeeBps() uint32 { return s.platform }

// RoyaltyFeeBps implements the Oracle interface.
func (s *Static) RoyaltyFeeBps() uint32 { return s.royalty }

// Treasury implements the Oracle interface.
func (s *Static) Treasury() [20]byte { return s.treasury }
