// Package treasury holds Treasury implementations that live outside the
// ledger database.
package treasury

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"adopt-go/internal/adopt"
	"adopt-go/internal/model"
)

// MemoryTreasury is an in-memory implementation of adopt.Treasury.
// Balances are lost when the process exits; use it for tests and dry runs.
// This implementation is safe for concurrent use.
type MemoryTreasury struct {
	mu       sync.Mutex
	balances map[model.AccountID]model.Amount
}

// NewMemoryTreasury creates a treasury with no funded accounts.
func NewMemoryTreasury() *MemoryTreasury {
	return &MemoryTreasury{balances: make(map[model.AccountID]model.Amount)}
}

// ValidateAccount rejects account IDs no signer could hold: empty IDs and
// IDs containing whitespace or control characters.
func ValidateAccount(id model.AccountID) error {
	if id == "" {
		return fmt.Errorf("%w: empty account id", adopt.ErrInvalidIdentity)
	}
	if strings.IndexFunc(string(id), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%w: malformed account id %q", adopt.ErrInvalidIdentity, id)
	}
	return nil
}

// Fund credits amount to account, creating it if needed.
func (t *MemoryTreasury) Fund(ctx context.Context, account model.AccountID, amount model.Amount) error {
	if err := ValidateAccount(account); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.balances[account] = t.balances[account].Add(amount)
	return nil
}

// Balance returns the balance of account; unknown accounts hold 0.
func (t *MemoryTreasury) Balance(ctx context.Context, account model.AccountID) (model.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.balances[account], nil
}

// Transfer moves amount from one account to another, or changes nothing.
func (t *MemoryTreasury) Transfer(ctx context.Context, from, to model.AccountID, amount model.Amount) error {
	if err := ValidateAccount(from); err != nil {
		return err
	}
	if err := ValidateAccount(to); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	remaining, err := t.balances[from].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", adopt.ErrInsufficientFunds, from, t.balances[from], amount)
	}

	t.balances[from] = remaining
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// Compile-time check that MemoryTreasury implements adopt.Treasury interface
var _ adopt.Treasury = (*MemoryTreasury)(nil)
