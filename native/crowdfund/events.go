package crowdfund

import (
	"encoding/hex"
	"strconv"
	"strings"

	"fundmint/core/types"
)

const (
	EventTypeInvested  = "campaign.invested"
	EventTypeDonated   = "campaign.donated"
	EventTypeRefunded  = "campaign.refunded"
	EventTypeMinted    = "campaign.minted"
	EventTypeWithdrawn = "campaign.withdrawn"
	EventTypePaused    = "campaign.paused"
)

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

// NewInvestedEvent returns the canonical payload for an accepted investment.
func NewInvestedEvent(record *InvestmentRecord, payer [20]byte) *types.Event {
	evt := newRecordEvent(EventTypeInvested, record)
	evt.Attributes["payer"] = hex.EncodeToString(payer[:])
	for _, tier := range types.Tiers() {
		evt.Attributes[tier.String()+"Qty"] = strconv.FormatUint(record.Quantities[tier], 10)
	}
	return evt
}

// NewDonatedEvent returns the canonical payload for an accepted donation.
func NewDonatedEvent(record *InvestmentRecord, payer [20]byte) *types.Event {
	evt := newRecordEvent(EventTypeDonated, record)
	evt.Attributes["payer"] = hex.EncodeToString(payer[:])
	return evt
}

// NewRefundedEvent returns the canonical payload for a refunded record.
func NewRefundedEvent(record *InvestmentRecord) *types.Event {
	return newRecordEvent(EventTypeRefunded, record)
}

// NewMintedEvent returns the canonical payload for a completed mint hand-off.
func NewMintedEvent(caller [20]byte, to [20]byte, tokenIDs []uint64) *types.Event {
	ids := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"caller":   hex.EncodeToString(caller[:]),
			"to":       hex.EncodeToString(to[:]),
			"tokenIds": strings.Join(ids, ","),
			"count":    strconv.Itoa(len(tokenIDs)),
		},
	}
}

// NewWithdrawnEvent returns the canonical payload for one coin's settled
// proceeds split.
func NewWithdrawnEvent(split *WithdrawalSplit) *types.Event {
	attrs := map[string]string{"coin": split.Coin.String()}
	if split.Collected != nil {
		attrs["collected"] = split.Collected.String()
	}
	if split.DonationAmount != nil {
		attrs["donation"] = split.DonationAmount.String()
	}
	if split.PlatformAmount != nil {
		attrs["platform"] = split.PlatformAmount.String()
	}
	if split.CreatorAmount != nil {
		attrs["creator"] = split.CreatorAmount.String()
	}
	return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
}

// NewPausedEvent returns the canonical payload for a circuit-breaker flip.
func NewPausedEvent(paused bool) *types.Event {
	return &types.Event{
		Type:       EventTypePaused,
		Attributes: map[string]string{"paused": strconv.FormatBool(paused)},
	}
}

func newRecordEvent(eventType string, record *InvestmentRecord) *types.Event {
	attrs := make(map[string]string)
	if record == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(record.ID, 10)
	attrs["receipt"] = hex.EncodeToString(record.Receipt[:])
	attrs["investor"] = hex.EncodeToString(record.Investor[:])
	attrs["coin"] = record.Coin.String()
	if record.TotalPayment != nil {
		attrs["amount"] = record.TotalPayment.String()
	}
	attrs["refundDeadline"] = strconv.FormatInt(record.RefundDeadline, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
