package crowdfund

import (
	"fmt"
	"math"
	"math/big"

	"fundmint/core/types"
)

// Coin identifies one of the payment coins a campaign accepts. The native
// coin is the host ledger's own currency; the others are fungible-token
// collaborators configured on the engine.
type Coin uint8

const (
	CoinNative Coin = iota
	CoinStable
	CoinPartner
)

// CoinCount is the number of supported payment coins.
const CoinCount = 3

// Valid reports whether the coin value is within the supported range.
func (c Coin) Valid() bool {
	switch c {
	case CoinNative, CoinStable, CoinPartner:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name for the coin.
func (c Coin) String() string {
	switch c {
	case CoinNative:
		return "native"
	case CoinStable:
		return "stable"
	case CoinPartner:
		return "partner"
	default:
		return fmt.Sprintf("coin(%d)", uint8(c))
	}
}

// Coins returns the coins in ascending order.
func Coins() [CoinCount]Coin {
	return [CoinCount]Coin{CoinNative, CoinStable, CoinPartner}
}

// QuotaTier carries the sale bookkeeping for a single tier: the price per
// coin, the unit cap, the sold count and the token-id cursor for the mint.
// NextTokenID advances exactly by the number of ids ever reserved for the
// tier, so id ranges handed to the collectible never overlap.
type QuotaTier struct {
	Prices      [CoinCount]*big.Int
	Cap         uint64
	Bought      uint64
	NextTokenID uint64
}

// Clone returns a deep copy of the quota tier.
func (q *QuotaTier) Clone() *QuotaTier {
	if q == nil {
		return nil
	}
	clone := &QuotaTier{Cap: q.Cap, Bought: q.Bought, NextTokenID: q.NextTokenID}
	for i, price := range q.Prices {
		if price != nil {
			clone.Prices[i] = new(big.Int).Set(price)
		} else {
			clone.Prices[i] = big.NewInt(0)
		}
	}
	return clone
}

// Price returns the non-nil price of the tier for the supplied coin.
func (q *QuotaTier) Price(coin Coin) *big.Int {
	if q == nil || !coin.Valid() || q.Prices[coin] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(q.Prices[coin])
}

// InvestmentRecord is one payment accepted by the campaign. A donation is a
// record with all tier quantities zero. Records are append-only: a refund
// removes the id from the investor index, a successful mint marks the record
// consumed, and nothing else ever mutates them.
type InvestmentRecord struct {
	ID             uint64
	Receipt        [32]byte
	Investor       [20]byte
	Quantities     [types.TierCount]uint64
	Coin           Coin
	TotalPayment   *big.Int
	RefundDeadline int64
	Consumed       bool
}

// Clone returns a deep copy of the record.
func (r *InvestmentRecord) Clone() *InvestmentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.TotalPayment != nil {
		clone.TotalPayment = new(big.Int).Set(r.TotalPayment)
	} else {
		clone.TotalPayment = big.NewInt(0)
	}
	return &clone
}

// Donation reports whether the record carries no tier quantities.
func (r *InvestmentRecord) Donation() bool {
	if r == nil {
		return true
	}
	for _, qty := range r.Quantities {
		if qty > 0 {
			return false
		}
	}
	return true
}

// TokenQuantity returns the total number of collectibles the record entitles
// the investor to.
func (r *InvestmentRecord) TokenQuantity() uint64 {
	if r == nil {
		return 0
	}
	var total uint64
	for _, qty := range r.Quantities {
		total += qty
	}
	return total
}

// Campaign is the immutable definition of a tier sale. Per-coin collected
// totals and withdrawn flags live in the state backend, not here.
type Campaign struct {
	Creator          [20]byte
	Collection       [20]byte
	DueDate          int64
	MinSoldRateBps   uint32
	DonationFeeBps   uint32
	DonationReceiver [20]byte // zero address means fold the donation fee back to the creator
	RefundWindow     int64    // seconds; defaults to DefaultRefundWindow
	TierCaps         [types.TierCount]uint64
	TierPrices       [types.TierCount][CoinCount]*big.Int
}

// DefaultRefundWindow is the grace period during which any investment can be
// refunded unconditionally.
const DefaultRefundWindow int64 = 7 * 24 * 60 * 60

// feeDenominator is the fixed basis-point denominator used for every split.
const feeDenominator = 10_000

// Clone returns a deep copy of the campaign definition.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	for t := range c.TierPrices {
		for k, price := range c.TierPrices[t] {
			if price != nil {
				clone.TierPrices[t][k] = new(big.Int).Set(price)
			} else {
				clone.TierPrices[t][k] = big.NewInt(0)
			}
		}
	}
	return &clone
}

// Validate checks the campaign definition for internal consistency.
func (c *Campaign) Validate(now int64) error {
	if c == nil {
		return fmt.Errorf("crowdfund: nil campaign")
	}
	if c.DueDate <= now {
		return fmt.Errorf("crowdfund: due date before creation time")
	}
	if c.MinSoldRateBps > feeDenominator {
		return fmt.Errorf("crowdfund: min sold rate bps out of range: %d", c.MinSoldRateBps)
	}
	if c.DonationFeeBps > feeDenominator {
		return fmt.Errorf("crowdfund: donation fee bps out of range: %d", c.DonationFeeBps)
	}
	if c.RefundWindow < 0 {
		return fmt.Errorf("crowdfund: refund window must not be negative")
	}
	var total uint64
	for _, cap := range c.TierCaps {
		if cap > math.MaxUint64-total {
			return fmt.Errorf("crowdfund: tier caps overflow")
		}
		total += cap
	}
	if total == 0 {
		return fmt.Errorf("crowdfund: campaign sells no quota")
	}
	for t := range c.TierPrices {
		for _, price := range c.TierPrices[t] {
			if price != nil && price.Sign() < 0 {
				return fmt.Errorf("crowdfund: negative tier price")
			}
		}
	}
	return nil
}

// TierBase returns the first token id of the tier's contiguous id range. Low
// ids start at zero, each following tier starts where the previous cap ends.
func (c *Campaign) TierBase(tier types.Tier) uint64 {
	var base uint64
	for _, t := range types.Tiers() {
		if t == tier {
			break
		}
		base += c.TierCaps[t]
	}
	return base
}

// CampaignStatus is a read-only snapshot served by the gateway.
type CampaignStatus struct {
	DueDate        int64
	Paused         bool
	SoldRateBps    uint32
	MinSoldRateBps uint32
	Bought         [types.TierCount]uint64
	Caps           [types.TierCount]uint64
	Collected      [CoinCount]*big.Int
	Withdrawn      [CoinCount]bool
}
