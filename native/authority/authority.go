package authority

import "errors"

var (
	// ErrUnauthorized is returned when a caller fails a role gate.
	ErrUnauthorized = errors.New("authority: unauthorized caller")
	// ErrNotConfigured is returned when an engine consults a nil oracle.
	ErrNotConfigured = errors.New("authority: oracle not configured")
)

// Oracle resolves platform roles and platform-level parameters for the
// engines. It is supplied at construction time and never mutated afterwards;
// the platform's role registry is the single source of truth behind it.
type Oracle interface {
	// IsManager reports whether the address holds the platform manager role.
	IsManager(addr [20]byte) (bool, error)
	// IsCreatorOf reports whether the address is the registered creator of
	// the given collection.
	IsCreatorOf(collection [20]byte, addr [20]byte) (bool, error)
	// IsCorrupted reports whether the platform has flagged the creator as
	// compromised, unlocking manager-only emergency controls.
	IsCorrupted(creator [20]byte) (bool, error)
	// PlatformFeeBps returns the platform fee in basis points.
	PlatformFeeBps() uint32
	// RoyaltyFeeBps returns the creator royalty fee in basis points.
	RoyaltyFeeBps() uint32
	// Treasury returns the platform fee recipient.
	Treasury() [20]byte
}

// RequireManager errors unless the caller is a platform manager.
func RequireManager(oracle Oracle, caller [20]byte) error {
	if oracle == nil {
		return ErrNotConfigured
	}
	ok, err := oracle.IsManager(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RequirePrivileged errors unless the caller is a manager, or the creator of
// the collection while the creator is not corrupted. This is the recurring
// gate for administrative operations: a corrupted creator loses the
// privilege and only the platform may act.
func RequirePrivileged(oracle Oracle, collection [20]byte, creator [20]byte, caller [20]byte) error {
	if oracle == nil {
		return ErrNotConfigured
	}
	if ok, err := oracle.IsManager(caller); err != nil {
		return err
	} else if ok {
		return nil
	}
	corrupted, err := oracle.IsCorrupted(creator)
	if err != nil {
		return err
	}
	if corrupted {
		return ErrUnauthorized
	}
	ok, err := oracle.IsCreatorOf(collection, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RequireSelfOrPrivileged errors unless the caller acts for themselves or
// passes the privileged gate for the collection.
func RequireSelfOrPrivileged(oracle Oracle, collection [20]byte, creator [20]byte, caller [20]byte, subject [20]byte) error {
	if caller == subject {
		return nil
	}
	return RequirePrivileged(oracle, collection, creator, caller)
}
