// Package bloom provides the Bloom filter backing each segment summary.
//
// A Bloom filter can tell us definitively that a term is NOT in a segment,
// and may report false positives when saying a term IS in it:
//   - Contains == false → the term was never added (always correct)
//   - Contains == true  → the term was probably added
//
// Filters are populated by a single writer and are read-only afterwards, so
// concurrent Contains calls on a populated filter need no synchronization.
package bloom

import (
	"errors"
	"math"
	"math/bits"

	"github.com/zeebo/xxh3"
)

// ErrInvalidParams indicates a sizing request outside the valid domain
// (expected items must be positive, 0 < false positive rate < 1).
var ErrInvalidParams = errors.New("bloom: invalid sizing parameters")

// MaxHashFunctions caps k. A target rate of 1e-9 needs k=30.
const MaxHashFunctions = 32

// Filter is a fixed-size Bloom filter over byte-string terms.
type Filter struct {
	bits     []uint64 // Bit array (words)
	numBits  uint64   // Total bits (for modulo)
	k        uint32   // Number of hash functions
	expected uint64
	fpRate   float64
	count    uint64 // Number of terms added
}

// Size computes the bit-array length and hash-function count for n expected
// items at false positive rate p.
//
//	m = -n*ln(p) / ln(2)^2   (rounded up to a multiple of 64)
//	k = (m/n) * ln(2)        (rounded, clamped to [1, MaxHashFunctions])
//
// For 1% false positive rate: ~9.6 bits/item, k=7.
// For 0.1% false positive rate: ~14.4 bits/item, k=10.
func Size(n uint64, p float64) (numBits uint64, k uint32) {
	if n == 0 {
		n = 1
	}

	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))

	numBits = ((uint64(m) + 63) / 64) * 64
	if numBits < 64 {
		numBits = 64
	}

	kf := math.Round(float64(numBits) / float64(n) * math.Ln2)
	switch {
	case kf < 1:
		k = 1
	case kf > MaxHashFunctions:
		k = MaxHashFunctions
	default:
		k = uint32(kf)
	}

	return numBits, k
}

// New returns an empty filter sized for n expected items at false positive
// rate p.
func New(n uint64, p float64) (*Filter, error) {
	if n == 0 || !(p > 0 && p < 1) {
		return nil, ErrInvalidParams
	}

	numBits, k := Size(n, p)

	return &Filter{
		bits:     make([]uint64, numBits/64),
		numBits:  numBits,
		k:        k,
		expected: n,
		fpRate:   p,
	}, nil
}

// Add inserts a term. After Add(t), Contains(t) always returns true.
// Add must not be called concurrently with Add or Contains.
func (f *Filter) Add(term []byte) {
	h1, h2 := hash(term)
	for i := uint64(0); i < uint64(f.k); i++ {
		// Double hashing: g(i) = h1 + i*h2
		bit := (h1 + i*h2) % f.numBits
		f.bits[bit>>6] |= 1 << (bit & 63)
	}
	f.count++
}

// Contains reports whether term may have been added.
func (f *Filter) Contains(term []byte) bool {
	h1, h2 := hash(term)
	for i := uint64(0); i < uint64(f.k); i++ {
		bit := (h1 + i*h2) % f.numBits
		if f.bits[bit>>6]&(1<<(bit&63)) == 0 {
			return false
		}
	}
	return true
}

// NumBits returns the length of the bit array.
func (f *Filter) NumBits() uint64 { return f.numBits }

// K returns the number of hash functions.
func (f *Filter) K() uint32 { return f.k }

// ExpectedItems returns the item count the filter was sized for.
func (f *Filter) ExpectedItems() uint64 { return f.expected }

// TargetFalsePositiveRate returns the rate the filter was sized for.
func (f *Filter) TargetFalsePositiveRate() float64 { return f.fpRate }

// Count returns the number of Add calls, duplicates included.
func (f *Filter) Count() uint64 { return f.count }

// SizeBytes returns the memory size of the bit array in bytes.
func (f *Filter) SizeBytes() int64 { return int64(len(f.bits)) * 8 }

// FillRatio returns the fraction of bits set.
func (f *Filter) FillRatio() float64 {
	var set uint64
	for _, w := range f.bits {
		set += uint64(bits.OnesCount64(w))
	}
	return float64(set) / float64(f.numBits)
}

// EstimatedFalsePositiveRate returns the theoretical false positive rate for
// the current insertion count: (1 - e^(-k*n/m))^k.
//
// Once Count exceeds ExpectedItems this grows past the target rate; the
// filter still has no false negatives.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	kn := float64(f.k) * float64(f.count)
	return math.Pow(1-math.Exp(-kn/float64(f.numBits)), float64(f.k))
}

// hash derives the two double-hashing seeds from one 128-bit xxh3 digest.
func hash(term []byte) (h1, h2 uint64) {
	d := xxh3.Hash128(term)
	// Odd h2 keeps the probe sequence from collapsing on even-sized arrays.
	return d.Lo, d.Hi | 1
}
