// Package ledger provides an in-process Ledger Store for the adoption service.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adopt-go/internal/adopt"
	"adopt-go/internal/model"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryLedger is an in-memory implementation of adopt.Ledger.
// Records are held in maps keyed by model.Key.MapKey, so key uniqueness
// covers both owner and resource ID. Update transactions stage their writes
// and apply them only if fn succeeds; writers are exclusive, readers share.
// This implementation is safe for concurrent use.
type MemoryLedger struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
	contracts map[string]*model.Contract
	events    map[string][]*model.ResourceEvent
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		resources: make(map[string]*model.Resource),
		contracts: make(map[string]*model.Contract),
		events:    make(map[string][]*model.ResourceEvent),
	}
}

// View runs fn against the committed state.
func (l *MemoryLedger) View(ctx context.Context, fn func(tx adopt.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	return fn(&memoryTx{l: l, readOnly: true})
}

// Update runs fn and commits its staged writes if it returns nil.
func (l *MemoryLedger) Update(ctx context.Context, fn func(tx adopt.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newMemoryTx(l)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx overlays staged writes on the ledger's committed maps.
type memoryTx struct {
	l        *MemoryLedger
	readOnly bool

	putResources map[string]*model.Resource
	delResources map[string]bool
	putContracts map[string]*model.Contract
	newEvents    map[string][]*model.ResourceEvent
}

func newMemoryTx(l *MemoryLedger) *memoryTx {
	return &memoryTx{
		l:            l,
		putResources: make(map[string]*model.Resource),
		delResources: make(map[string]bool),
		putContracts: make(map[string]*model.Contract),
		newEvents:    make(map[string][]*model.ResourceEvent),
	}
}

func (tx *memoryTx) resource(k string) *model.Resource {
	if !tx.readOnly {
		if r, ok := tx.putResources[k]; ok {
			return r
		}
		if tx.delResources[k] {
			return nil
		}
	}
	return tx.l.resources[k]
}

func (tx *memoryTx) contract(k string) *model.Contract {
	if !tx.readOnly {
		if c, ok := tx.putContracts[k]; ok {
			return c
		}
	}
	return tx.l.contracts[k]
}

func (tx *memoryTx) journal(k string) []*model.ResourceEvent {
	committed := tx.l.events[k]
	if tx.readOnly {
		return committed
	}
	staged := tx.newEvents[k]
	out := make([]*model.ResourceEvent, 0, len(committed)+len(staged))
	out = append(out, committed...)
	return append(out, staged...)
}

func (tx *memoryTx) GetResource(key model.Key) (*model.Resource, error) {
	r := tx.resource(key.MapKey())
	if r == nil {
		return nil, nil
	}
	return cloneResource(r), nil
}

func (tx *memoryTx) HasResource(key model.Key) (bool, error) {
	return tx.resource(key.MapKey()) != nil, nil
}

func (tx *memoryTx) InsertResource(res *model.Resource) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := res.Key().MapKey()
	if tx.resource(k) != nil {
		return fmt.Errorf("resource %s: %w", res.Key(), adopt.ErrResourceAlreadyExist)
	}
	delete(tx.delResources, k)
	tx.putResources[k] = cloneResource(res)
	return nil
}

func (tx *memoryTx) RemoveResource(key model.Key) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := key.MapKey()
	delete(tx.putResources, k)
	tx.delResources[k] = true
	return nil
}

func (tx *memoryTx) GetContract(key model.Key) (*model.Contract, error) {
	c := tx.contract(key.MapKey())
	if c == nil {
		return nil, nil
	}
	return cloneContract(c), nil
}

func (tx *memoryTx) HasContract(key model.Key) (bool, error) {
	return tx.contract(key.MapKey()) != nil, nil
}

func (tx *memoryTx) InsertContract(c *model.Contract) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := c.Key().MapKey()
	if tx.contract(k) != nil {
		return fmt.Errorf("contract %s: %w", c.Key(), adopt.ErrResourceAdopted)
	}
	tx.putContracts[k] = cloneContract(c)
	return nil
}

func (tx *memoryTx) LastEvent(key model.Key) (*model.ResourceEvent, error) {
	events := tx.journal(key.MapKey())
	if len(events) == 0 {
		return nil, nil
	}
	return cloneEvent(events[len(events)-1]), nil
}

func (tx *memoryTx) AppendEvent(ev *model.ResourceEvent) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := ev.Key().MapKey()
	events := tx.journal(k)
	if n := uint64(len(events)); ev.Sequence != n+1 {
		return fmt.Errorf("event sequence %d for %s, want %d", ev.Sequence, ev.Key(), n+1)
	}
	tx.newEvents[k] = append(tx.newEvents[k], cloneEvent(ev))
	return nil
}

func (tx *memoryTx) ListEvents(key model.Key) ([]*model.ResourceEvent, error) {
	events := tx.journal(key.MapKey())
	out := make([]*model.ResourceEvent, len(events))
	for i, ev := range events {
		out[i] = cloneEvent(ev)
	}
	return out, nil
}

// commit applies staged writes. Called with the ledger's write lock held.
func (tx *memoryTx) commit() {
	for k := range tx.delResources {
		delete(tx.l.resources, k)
	}
	for k, r := range tx.putResources {
		tx.l.resources[k] = r
	}
	for k, c := range tx.putContracts {
		tx.l.contracts[k] = c
	}
	for k, evs := range tx.newEvents {
		tx.l.events[k] = append(tx.l.events[k], evs...)
	}
}

func cloneResource(r *model.Resource) *model.Resource {
	c := *r
	c.ID = append([]byte(nil), r.ID...)
	c.Info = append([]byte{}, r.Info...)
	return &c
}

func cloneContract(c *model.Contract) *model.Contract {
	out := *c
	out.ResourceID = append([]byte(nil), c.ResourceID...)
	return &out
}

func cloneEvent(ev *model.ResourceEvent) *model.ResourceEvent {
	out := *ev
	out.ResourceID = append([]byte(nil), ev.ResourceID...)
	out.Payload = append([]byte{}, ev.Payload...)
	return &out
}

// Compile-time check that MemoryLedger implements adopt.Ledger
var _ adopt.Ledger = (*MemoryLedger)(nil)
