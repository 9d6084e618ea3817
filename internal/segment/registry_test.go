package segment

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segbloom/internal/bloom"
)

func newSummary(t *testing.T, id ID, terms ...string) *Summary {
	t.Helper()

	f, err := bloom.New(1000, 0.01)
	require.NoError(t, err)
	for _, term := range terms {
		f.Add([]byte(term))
	}

	now := time.Unix(1700000000, 0)
	return NewSummary(id, now, now.Add(time.Second), uint64(len(terms)), f)
}

func TestRegistry_ReserveMonotonic(t *testing.T) {
	r := NewRegistry()

	var prev ID
	for i := 0; i < 100; i++ {
		id, err := r.Reserve()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, ID(100), prev)
}

func TestRegistry_ReserveConcurrent(t *testing.T) {
	r := NewRegistry()

	const n = 1000
	ids := make(chan ID, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Reserve()
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, uint64(n), r.Counts().Building)
}

func TestRegistry_ReserveExhausted(t *testing.T) {
	r := NewRegistry()
	r.counter = math.MaxUint32 - 1

	id, err := r.Reserve()
	require.NoError(t, err)
	assert.Equal(t, ID(math.MaxUint32), id)

	_, err = r.Reserve()
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestRegistry_AppendFind(t *testing.T) {
	r := NewRegistry()

	id, err := r.Reserve()
	require.NoError(t, err)
	assert.Equal(t, StateBuilding, r.State(id))

	_, ok := r.Find(id)
	assert.False(t, ok, "building segments are not visible")

	require.NoError(t, r.Append(newSummary(t, id, "apple", "banana", "cherry")))

	s, ok := r.Find(id)
	require.True(t, ok)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, uint64(3), s.Terms())
	assert.True(t, s.Contains([]byte("apple")))
	assert.True(t, s.CompletedAt().After(s.CreatedAt()))
	assert.Equal(t, StateCommitted, r.State(id))
	assert.Equal(t, 1, r.Len())

	info := s.Filter()
	assert.Equal(t, uint64(1000), info.ExpectedItems)
	assert.Equal(t, uint32(7), info.HashFunctions)
	assert.Equal(t, int64(1200), info.SizeBytes)
}

func TestRegistry_AppendErrors(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Append(newSummary(t, 1)), ErrNotReserved)

	id, err := r.Reserve()
	require.NoError(t, err)
	require.NoError(t, r.Append(newSummary(t, id)))
	assert.ErrorIs(t, r.Append(newSummary(t, id)), ErrDuplicate)

	failed, err := r.Reserve()
	require.NoError(t, err)
	require.NoError(t, r.Fail(failed))
	assert.ErrorIs(t, r.Append(newSummary(t, failed)), ErrNotReserved)
	assert.ErrorIs(t, r.Fail(failed), ErrNotReserved)
}

func TestRegistry_FailNeverReused(t *testing.T) {
	r := NewRegistry()

	a, _ := r.Reserve()
	require.NoError(t, r.Fail(a))

	b, _ := r.Reserve()
	assert.Greater(t, b, a)

	assert.Equal(t, StateFailed, r.State(a))
	_, ok := r.Find(a)
	assert.False(t, ok)

	assert.Equal(t, Counts{Reserved: 2, Building: 1, Failed: 1}, r.Counts())
}

func TestRegistry_State(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, StateUnknown, r.State(0))
	assert.Equal(t, StateUnknown, r.State(42))

	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "building", StateBuilding.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestRegistry_CompletionOrder(t *testing.T) {
	r := NewRegistry()

	first, _ := r.Reserve()
	second, _ := r.Reserve()

	// The larger identifier finishes first.
	require.NoError(t, r.Append(newSummary(t, second, "late")))
	require.NoError(t, r.Append(newSummary(t, first, "early")))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, second, snap[0].ID())
	assert.Equal(t, first, snap[1].ID())

	// Lookup by identifier does not depend on sequence order.
	s, ok := r.Find(first)
	require.True(t, ok)
	assert.True(t, s.Contains([]byte("early")))
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Reserve()
	require.NoError(t, r.Append(newSummary(t, id)))

	snap := r.Snapshot()
	snap[0] = nil

	assert.NotNil(t, r.Snapshot()[0])
}

func TestRegistry_FindDuringAppend(t *testing.T) {
	r := NewRegistry()

	id, _ := r.Reserve()
	require.NoError(t, r.Append(newSummary(t, id, "stable")))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			next, err := r.Reserve()
			if err != nil {
				return
			}
			_ = r.Append(newSummary(t, next))
		}
	}()

	for i := 0; i < 10_000; i++ {
		s, ok := r.Find(id)
		require.True(t, ok)
		require.True(t, s.Contains([]byte("stable")))
	}

	close(stop)
	wg.Wait()
}
