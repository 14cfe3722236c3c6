package record

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces synthetic history record ids.
// Every call must return a value never returned before.
type IDGenerator interface {
	NewID() string
}

// UUIDv7 generates time-ordered UUIDs, so history ids sort roughly by insertion time.
type UUIDv7 struct{}

// NewID returns a new version 7 UUID, falling back to a random UUID if the clock read fails.
func (UUIDv7) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// Sequence generates deterministic ids "<Prefix>-1", "<Prefix>-2", ...
// It is safe for concurrent use.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

// NewID returns the next id in the sequence.
func (s *Sequence) NewID() string {
	return s.Prefix + "-" + strconv.FormatUint(s.n.Add(1), 10)
}
