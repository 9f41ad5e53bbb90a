package crowdfund

import (
	"errors"
	"math/big"

	"fundmint/native/authority"
)

var (
	errRecordNotFound     = errors.New("crowdfund: investment record not found")
	errNotRecordOwner     = errors.New("crowdfund: caller does not own investment record")
	errRefundWindowClosed = errors.New("crowdfund: refund window closed")
	errNoInvestments      = errors.New("crowdfund: no investments to refund")
)

// RefundWithInvestID refunds a single record back to its investor in the
// record's original coin. The record must still be present in the investor's
// index; a second refund of the same id fails the ownership check, which is
// what makes refunds idempotent.
func (e *Engine) RefundWithInvestID(caller [20]byte, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return err
	}
	if e.paused {
		return errPaused
	}
	record, ok, err := e.state.RecordGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return errRecordNotFound
	}
	if record.Investor != caller {
		return errNotRecordOwner
	}
	open, err := e.refundOpen()
	if err != nil {
		return err
	}
	if !open && e.now() > record.RefundDeadline {
		return errRefundWindowClosed
	}
	return e.refundRecord(record)
}

// RefundAll refunds every eligible record in the caller's index. Eligibility
// is evaluated once for the campaign-wide conditions; the per-record grace
// window is additionally honored for records still inside it. Errors when
// the caller has no live records.
func (e *Engine) RefundAll(caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return err
	}
	if e.paused {
		return errPaused
	}
	ids, err := e.state.InvestorRecords(caller)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errNoInvestments
	}
	open, err := e.refundOpen()
	if err != nil {
		return err
	}
	now := e.now()
	refunded := 0
	for _, id := range append([]uint64(nil), ids...) {
		record, ok, err := e.state.RecordGet(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !open && now > record.RefundDeadline {
			continue
		}
		if err := e.refundRecord(record); err != nil {
			return err
		}
		refunded++
	}
	if refunded == 0 {
		return errRefundWindowClosed
	}
	return nil
}

// RefundToAddress force-refunds every live record of the investor,
// bypassing the normal eligibility windows. Managers may always call it; the
// creator only while not corrupted. This is the forced wind-down path, so it
// deliberately ignores the paused flag.
func (e *Engine) RefundToAddress(caller [20]byte, investor [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReady(); err != nil {
		return err
	}
	if err := authority.RequirePrivileged(e.oracle, e.campaign.Collection, e.campaign.Creator, caller); err != nil {
		return err
	}
	ids, err := e.state.InvestorRecords(investor)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errNoInvestments
	}
	for _, id := range append([]uint64(nil), ids...) {
		record, ok, err := e.state.RecordGet(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := e.refundRecord(record); err != nil {
			return err
		}
	}
	return nil
}

// refundOpen reports whether the campaign-wide refund conditions hold: the
// funding goal was missed after the due date, or the creator was flagged as
// corrupted.
func (e *Engine) refundOpen() (bool, error) {
	corrupted, err := e.oracleCorrupted()
	if err != nil {
		return false, err
	}
	if corrupted {
		return true, nil
	}
	if e.now() <= e.campaign.DueDate {
		return false, nil
	}
	rate, err := e.soldRateBps()
	if err != nil {
		return false, err
	}
	return rate < e.campaign.MinSoldRateBps, nil
}

// refundRecord removes the record from the investor's index, restores the
// collected total and pays the investment back in its original coin. The
// bookkeeping is final before the outbound transfer is issued.
func (e *Engine) refundRecord(record *InvestmentRecord) error {
	removed, err := e.state.InvestorRecordRemove(record.Investor, record.ID)
	if err != nil {
		return err
	}
	if !removed {
		return errNotRecordOwner
	}
	amount := big.NewInt(0)
	if record.TotalPayment != nil {
		amount = new(big.Int).Set(record.TotalPayment)
	}
	collected, err := e.state.CollectedGet(record.Coin)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(collected, amount)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	if err := e.state.CollectedSet(record.Coin, remaining); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		backend := e.coins[record.Coin]
		if backend == nil {
			// roll the index and collected total back before failing
			_ = e.state.InvestorRecordAdd(record.Investor, record.ID)
			_ = e.state.CollectedSet(record.Coin, collected)
			return errCoinBackendNotSet
		}
		if err := backend.Pay(record.Investor, amount); err != nil {
			_ = e.state.InvestorRecordAdd(record.Investor, record.ID)
			_ = e.state.CollectedSet(record.Coin, collected)
			return err
		}
	}
	e.emit(NewRefundedEvent(record))
	return nil
}
