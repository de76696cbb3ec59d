package adopt

import (
	"context"

	"adopt-go/internal/model"
)

// Ledger is the keyed state store underneath the registry and the contract
// engine. Every call to View or Update runs fn against one consistent
// snapshot; Update commits all writes made through tx atomically, or none of
// them if fn returns an error.
type Ledger interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx LedgerTx) error) error

	// Update runs fn in a read-write transaction.
	Update(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of operations available inside a ledger transaction.
// Lookups return (nil, nil) when nothing is stored at the key.
type LedgerTx interface {
	// Resource operations

	GetResource(key model.Key) (*model.Resource, error)
	HasResource(key model.Key) (bool, error)
	// InsertResource fails if a resource already exists at the key.
	InsertResource(res *model.Resource) error
	RemoveResource(key model.Key) error

	// Contract operations

	GetContract(key model.Key) (*model.Contract, error)
	HasContract(key model.Key) (bool, error)
	// InsertContract fails if a contract already exists at the key.
	InsertContract(c *model.Contract) error

	// Journal operations

	// LastEvent returns the newest journal entry for the key.
	LastEvent(key model.Key) (*model.ResourceEvent, error)
	// AppendEvent writes a new entry. Entries are never rewritten.
	AppendEvent(ev *model.ResourceEvent) error
	// ListEvents returns the journal for the key in sequence order.
	ListEvents(key model.Key) ([]*model.ResourceEvent, error)
}
