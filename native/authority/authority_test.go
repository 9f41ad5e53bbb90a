package authority

import (
	"errors"
	"testing"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	manager    = addr(0x01)
	creator    = addr(0x02)
	collection = addr(0x03)
	outsider   = addr(0x04)
	treasury   = addr(0x05)
)

func newTestOracle() *Static {
	oracle := NewStatic(250, 100, treasury)
	oracle.AddManager(manager)
	oracle.SetCreator(collection, creator)
	return oracle
}

func TestRequireManager(t *testing.T) {
	oracle := newTestOracle()
	if err := RequireManager(oracle, manager); err != nil {
		t.Fatalf("manager rejected: %v", err)
	}
	if err := RequireManager(oracle, creator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("creator is not a manager, got %v", err)
	}
	if err := RequireManager(nil, manager); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil oracle, got %v", err)
	}
}

func TestRequirePrivileged(t *testing.T) {
	oracle := newTestOracle()
	if err := RequirePrivileged(oracle, collection, creator, manager); err != nil {
		t.Fatalf("manager rejected: %v", err)
	}
	if err := RequirePrivileged(oracle, collection, creator, creator); err != nil {
		t.Fatalf("creator rejected: %v", err)
	}
	if err := RequirePrivileged(oracle, collection, creator, outsider); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider passed, got %v", err)
	}
}

func TestRequirePrivilegedCorruptedCreator(t *testing.T) {
	oracle := newTestOracle()
	oracle.SetCorrupted(creator, true)
	if err := RequirePrivileged(oracle, collection, creator, creator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("corrupted creator kept the privilege, got %v", err)
	}
	// Managers are unaffected by the corrupted flag.
	if err := RequirePrivileged(oracle, collection, creator, manager); err != nil {
		t.Fatalf("manager rejected under corruption: %v", err)
	}
	oracle.SetCorrupted(creator, false)
	if err := RequirePrivileged(oracle, collection, creator, creator); err != nil {
		t.Fatalf("cleared creator rejected: %v", err)
	}
}

func TestRequireSelfOrPrivileged(t *testing.T) {
	oracle := newTestOracle()
	if err := RequireSelfOrPrivileged(oracle, collection, creator, outsider, outsider); err != nil {
		t.Fatalf("self rejected: %v", err)
	}
	if err := RequireSelfOrPrivileged(oracle, collection, creator, outsider, manager); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider acting for another, got %v", err)
	}
	if err := RequireSelfOrPrivileged(oracle, collection, creator, manager, outsider); err != nil {
		t.Fatalf("manager acting for another rejected: %v", err)
	}
}

func TestStaticFees(t *testing.T) {
	oracle := newTestOracle()
	if got := oracle.PlatformFeeBps(); got != 250 {
		t.Fatalf("platform fee = %d", got)
	}
	if got := oracle.RoyaltyFeeBps(); got != 100 {
		t.Fatalf("royalty fee = %d", got)
	}
	if got := oracle.Treasury(); got != treasury {
		t.Fatalf("treasury = %x", got)
	}
}
