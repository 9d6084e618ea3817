package testutil

import (
	"bytes"
	"math/rand"
	"sync"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Term returns a random printable ASCII term of the given length.
func (r *RNG) Term(length int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.term(length)
}

func (r *RNG) term(length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return b
}

// Terms generates num distinct random terms of the given length.
// length must be large enough for num distinct values to exist.
func (r *RNG) Terms(num, length int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, num)
	terms := make([][]byte, 0, num)

	for len(terms) < num {
		t := r.term(length)
		if _, dup := seen[string(t)]; dup {
			continue
		}
		seen[string(t)] = struct{}{}
		terms = append(terms, t)
	}

	return terms
}

// Lines joins terms into a newline-terminated source body.
func Lines(terms [][]byte) []byte {
	var buf bytes.Buffer
	for _, t := range terms {
		buf.Write(t)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
