package adopt

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so state transitions are deterministic in tests.
// The service reads it once per operation, so every check in one transition
// sees the same instant.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
