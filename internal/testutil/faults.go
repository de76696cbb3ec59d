package testutil

import (
	"context"
	"errors"
	"sync"

	"adopt-go/internal/adopt"
	"adopt-go/internal/model"
)

// ErrInjected is returned by the fault-injecting wrappers.
var ErrInjected = errors.New("injected failure")

// FailingLedger wraps a Ledger and fails Update calls while armed.
type FailingLedger struct {
	adopt.Ledger

	mu    sync.Mutex
	armed bool
}

func NewFailingLedger(l adopt.Ledger) *FailingLedger {
	return &FailingLedger{Ledger: l}
}

// FailUpdates makes subsequent Update calls fail without running fn.
func (l *FailingLedger) FailUpdates(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.armed = fail
}

func (l *FailingLedger) Update(ctx context.Context, fn func(tx adopt.LedgerTx) error) error {
	l.mu.Lock()
	armed := l.armed
	l.mu.Unlock()

	if armed {
		return ErrInjected
	}
	return l.Ledger.Update(ctx, fn)
}

// Transfer records one call to a Treasury.
type Transfer struct {
	From, To model.AccountID
	Amount   model.Amount
}

// RecordingTreasury wraps a Treasury, records successful transfers, and
// fails transfers whose source is listed in FailFrom.
type RecordingTreasury struct {
	adopt.Treasury

	mu        sync.Mutex
	transfers []Transfer
	failFrom  map[model.AccountID]bool
}

func NewRecordingTreasury(t adopt.Treasury) *RecordingTreasury {
	return &RecordingTreasury{Treasury: t, failFrom: make(map[model.AccountID]bool)}
}

// FailFrom makes every transfer out of account fail with ErrInjected.
func (r *RecordingTreasury) FailFrom(account model.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFrom[account] = true
}

func (r *RecordingTreasury) Transfer(ctx context.Context, from, to model.AccountID, amount model.Amount) error {
	r.mu.Lock()
	fail := r.failFrom[from]
	r.mu.Unlock()

	if fail {
		return ErrInjected
	}
	if err := r.Treasury.Transfer(ctx, from, to, amount); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, Transfer{From: from, To: to, Amount: amount})
	return nil
}

// Transfers returns the successful transfers in call order.
func (r *RecordingTreasury) Transfers() []Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transfer(nil), r.transfers...)
}
