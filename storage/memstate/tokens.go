package memstate

import (
	"errors"
	"math/big"
	"sync"

	"fundmint/core/types"
)

var (
	errInsufficientBalance = errors.New("memstate: insufficient balance")
	errUnknownToken        = errors.New("memstate: unknown token")
	errNotTokenOwner       = errors.New("memstate: not token owner")
)

// TokenLedger is a balance-map fungible token standing in for an external
// token collaborator. The engine custody account is fixed at construction:
// Pull moves value from a holder into custody, Pay moves it back out.
type TokenLedger struct {
	mu       sync.Mutex
	custody  [20]byte
	balances map[[20]byte]*big.Int
}

// NewTokenLedger constructs a token ledger with the given custody account.
func NewTokenLedger(custody [20]byte) *TokenLedger {
	return &TokenLedger{custody: custody, balances: make(map[[20]byte]*big.Int)}
}

// Mint credits a holder out of thin air. Test and genesis helper.
func (t *TokenLedger) Mint(addr [20]byte, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(addr, amount)
}

// BalanceOf returns the holder's balance.
func (t *TokenLedger) BalanceOf(addr [20]byte) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, ok := t.balances[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// Pull draws value from a holder into custody.
func (t *TokenLedger) Pull(from [20]byte, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, t.custody, amount)
}

// Pay settles value out of custody to a recipient.
func (t *TokenLedger) Pay(to [20]byte, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(t.custody, to, amount)
}

func (t *TokenLedger) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	balance, ok := t.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.credit(to, amount)
	return nil
}

func (t *TokenLedger) credit(addr [20]byte, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	balance, ok := t.balances[addr]
	if !ok {
		balance = big.NewInt(0)
	}
	t.balances[addr] = new(big.Int).Add(balance, amount)
}

// Collectible is an id-range collectible standing in for the external
// collectible collaborator. Token ids partition into the three tier ranges
// by the caps supplied at construction: low ids first, then regular, then
// high.
type Collectible struct {
	mu        sync.Mutex
	bounds    [types.TierCount]uint64 // exclusive upper bound of each tier range
	owners    map[uint64][20]byte
	approvals map[[20]byte]map[[20]byte]bool
}

// NewCollectible constructs a collectible with the given per-tier caps.
func NewCollectible(tierCaps [types.TierCount]uint64) *Collectible {
	c := &Collectible{
		owners:    make(map[uint64][20]byte),
		approvals: make(map[[20]byte]map[[20]byte]bool),
	}
	var upper uint64
	for _, tier := range types.Tiers() {
		upper += tierCaps[tier]
		c.bounds[tier] = upper
	}
	return c
}

// IssueForCampaign mints the reserved ids to the recipient.
func (c *Collectible) IssueForCampaign(ids []uint64, tiers []types.Tier, to [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.owners[id] = to
	}
	return nil
}

// OwnerOf returns the owner of a token.
func (c *Collectible) OwnerOf(tokenID uint64) ([20]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[tokenID]
	if !ok {
		return [20]byte{}, errUnknownToken
	}
	return owner, nil
}

// SetApproval grants or revokes an operator for all of the owner's tokens.
func (c *Collectible) SetApproval(owner [20]byte, operator [20]byte, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops, ok := c.approvals[owner]
	if !ok {
		ops = make(map[[20]byte]bool)
		c.approvals[owner] = ops
	}
	ops[operator] = approved
}

// IsApprovedFor reports whether the operator may move the owner's tokens.
func (c *Collectible) IsApprovedFor(owner [20]byte, operator [20]byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approvals[owner][operator], nil
}

// TierOf maps a token id onto its tier by the id-range layout.
func (c *Collectible) TierOf(tokenID uint64) (types.Tier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tier := range types.Tiers() {
		if tokenID < c.bounds[tier] {
			return tier, nil
		}
	}
	return 0, errUnknownToken
}

// Transfer moves a token between holders.
func (c *Collectible) Transfer(from [20]byte, to [20]byte, tokenID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[tokenID]
	if !ok {
		return errUnknownToken
	}
	if owner != from {
		return errNotTokenOwner
	}
	c.owners[tokenID] = to
	return nil
}
