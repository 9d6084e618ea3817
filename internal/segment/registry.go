package segment

import (
	"errors"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrIDSpaceExhausted is returned by Reserve once every 32-bit identifier
	// has been handed out. It is a configuration problem, not a retry case.
	ErrIDSpaceExhausted = errors.New("segment: identifier space exhausted")

	// ErrNotReserved is returned when appending or failing an identifier that
	// is not currently building.
	ErrNotReserved = errors.New("segment: identifier not reserved")

	// ErrDuplicate is returned when appending an identifier that is already committed.
	ErrDuplicate = errors.New("segment: identifier already committed")
)

// State is the lifecycle position of an identifier.
type State uint8

const (
	// StateUnknown means the identifier was never reserved.
	StateUnknown State = iota
	// StateBuilding means the identifier is reserved and its filter is being built.
	StateBuilding
	// StateCommitted means a summary is available.
	StateCommitted
	// StateFailed means the build failed; the identifier stays unfulfilled.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Counts summarizes identifier states.
type Counts struct {
	Reserved  uint32 // highest identifier handed out
	Building  uint64
	Committed uint64
	Failed    uint64
}

// Registry is the append-only store of committed summaries.
//
// Reserve, Append and Fail serialize on one mutex. Find reads a concurrent
// index and never waits for them.
type Registry struct {
	mu        sync.Mutex
	counter   ID
	summaries []*Summary
	building  *roaring.Bitmap
	failed    *roaring.Bitmap

	index *xsync.MapOf[ID, *Summary]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		building: roaring.New(),
		failed:   roaring.New(),
		index:    xsync.NewMapOf[ID, *Summary](),
	}
}

// Reserve hands out the next identifier and marks it building.
func (r *Registry) Reserve() (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counter == math.MaxUint32 {
		return 0, ErrIDSpaceExhausted
	}
	r.counter++
	r.building.Add(r.counter)

	return r.counter, nil
}

// Append commits a summary for a building identifier. The summary is added
// at the end of the sequence, which may place it before a smaller
// identifier that is still building.
func (r *Registry) Append(s *Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index.Load(s.id); ok {
		return ErrDuplicate
	}
	if !r.building.Contains(s.id) {
		return ErrNotReserved
	}

	r.summaries = append(r.summaries, s)
	r.building.Remove(s.id)
	r.index.Store(s.id, s)

	return nil
}

// Fail marks a building identifier as permanently unfulfilled.
func (r *Registry) Fail(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.building.Contains(id) {
		return ErrNotReserved
	}
	r.building.Remove(id)
	r.failed.Add(id)

	return nil
}

// Find returns the committed summary for id.
func (r *Registry) Find(id ID) (*Summary, bool) {
	return r.index.Load(id)
}

// State reports where id is in its lifecycle.
func (r *Registry) State(id ID) State {
	if _, ok := r.index.Load(id); ok {
		return StateCommitted
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.building.Contains(id):
		return StateBuilding
	case r.failed.Contains(id):
		return StateFailed
	case id != 0 && id <= r.counter:
		// Committed between the index miss and taking the lock.
		return StateCommitted
	default:
		return StateUnknown
	}
}

// Snapshot returns the committed summaries in completion order.
func (r *Registry) Snapshot() []*Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Summary, len(r.summaries))
	copy(out, r.summaries)

	return out
}

// Len returns the number of committed summaries.
func (r *Registry) Len() int {
	return r.index.Size()
}

// Counts returns identifier state totals.
func (r *Registry) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Counts{
		Reserved:  r.counter,
		Building:  r.building.GetCardinality(),
		Committed: uint64(len(r.summaries)),
		Failed:    r.failed.GetCardinality(),
	}
}
