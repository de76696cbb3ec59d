package model

import (
	"encoding/hex"
	"strconv"
	"time"
)

// AccountID identifies a party on the ledger: a resource owner, an adopter,
// or a treasury account.
type AccountID string

// Key addresses a resource slot: the owner's namespace plus the resource ID.
// Resources, contracts and journal entries all share the same key.
type Key struct {
	Owner      AccountID
	ResourceID []byte
}

// NewKey builds a Key, copying id so later mutation by the caller is harmless.
func NewKey(owner AccountID, id []byte) Key {
	return Key{Owner: owner, ResourceID: append([]byte(nil), id...)}
}

// MapKey returns a comparable form of the key for use in Go maps.
// The owner is length-prefixed, so no choice of bytes in either component
// can make two different keys collide.
func (k Key) MapKey() string {
	return strconv.Itoa(len(k.Owner)) + ":" + string(k.Owner) + string(k.ResourceID)
}

// Equal reports whether both components match.
func (k Key) Equal(other Key) bool {
	return k.MapKey() == other.MapKey()
}

func (k Key) String() string {
	return string(k.Owner) + "/" + hex.EncodeToString(k.ResourceID)
}

// Resource is a publishable good with a price and an adoption window.
// Records are immutable once published.
type Resource struct {
	ID            []byte
	Owner         AccountID
	Price         Amount
	MinOutputKg   uint16 // informational only
	FreezeAt      time.Time
	HarvestBefore time.Time
	Info          []byte
	PublishedAt   time.Time
}

// Key returns the ledger key of the resource.
func (r *Resource) Key() Key {
	return NewKey(r.Owner, r.ID)
}

// Contract records the single adoption of a resource.
type Contract struct {
	ID         string // UUID
	Owner      AccountID
	ResourceID []byte
	Adopter    AccountID
	Price      Amount
	StartAt    time.Time
	EndAt      time.Time // copied from the resource's HarvestBefore
}

// Key returns the ledger key of the adopted resource.
func (c *Contract) Key() Key {
	return NewKey(c.Owner, c.ResourceID)
}

// EventKind names a journaled state change.
type EventKind string

const (
	ResourceOnline       EventKind = "ResourceOnline"
	ResourceOffline      EventKind = "ResourceOffline"
	ResourceAdopted      EventKind = "ResourceAdopted"
	ResourceStateChanged EventKind = "ResourceStateChanged"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case ResourceOnline, ResourceOffline, ResourceAdopted, ResourceStateChanged:
		return true
	}
	return false
}

// ResourceEvent is a write-once journal entry. Entries for one key form a
// hash chain: Hash covers the entry fields and PrevHash.
type ResourceEvent struct {
	Sequence   uint64 // per key, starting at 1
	Kind       EventKind
	Owner      AccountID
	ResourceID []byte
	Actor      AccountID
	Payload    []byte
	RecordedAt time.Time
	PrevHash   string
	Hash       string
}

// Key returns the ledger key the event belongs to.
func (e *ResourceEvent) Key() Key {
	return NewKey(e.Owner, e.ResourceID)
}
