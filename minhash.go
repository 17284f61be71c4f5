// minhash.go -- MinHash fingerprinting engine
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package lshcache

import (
	"encoding/json"
	"math"

	"github.com/opencoff/go-fasthash"
	lru "github.com/opencoff/golang-lru"
)

// Sig is a MinHash signature: a fixed-length sequence of 32-bit minima, one
// per seed. Two documents that share many positions of their Sig are
// estimated to be Jaccard-similar on their shingle sets.
type Sig []uint32

// MinHasherOption configures a MinHasher at construction time.
type MinHasherOption func(*MinHasher)

// WithMemoize enables a bounded LRU fingerprint memo keyed by a fast digest
// of the document bytes, sized to hold up to capacity recent documents.
// Off by default: most callers hash each document exactly once.
func WithMemoize(capacity int) MinHasherOption {
	return func(m *MinHasher) {
		if capacity <= 0 {
			capacity = 128
		}
		c, err := lru.NewARC(capacity)
		if err == nil {
			m.memo = c
		}
	}
}

// MinHasher turns a document's bytes into a fixed-length MinHash
// signature, and estimates the Jaccard similarity of two signatures.
// A MinHasher is immutable after construction (aside from its optional
// memoization cache) and safe for concurrent read-only use across
// goroutines, since fingerprint/jaccard touch no mutable state beyond the
// memo, which golang-lru already guards internally.
type MinHasher struct {
	seeds []uint32
	ngram int
	memo  *lru.ARCCache
}

// NewMinHasher builds a MinHasher from an explicit seed vector. ngram must
// be positive; it is the sliding shingle window width in bytes.
func NewMinHasher(seeds []uint32, ngram int, opts ...MinHasherOption) (*MinHasher, error) {
	if len(seeds) == 0 {
		return nil, argErrorf("num_seeds must be positive, got %d", len(seeds))
	}
	if ngram <= 0 {
		return nil, argErrorf("char_ngram must be positive, got %d", ngram)
	}

	cp := make([]uint32, len(seeds))
	copy(cp, seeds)

	m := &MinHasher{seeds: cp, ngram: ngram}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewMinHasherFromSeed builds a MinHasher whose numSeeds-length seed vector
// is deterministically derived from randomState, drawing values uniformly
// in [0, 1_000_000) as described in seeds.go. ngram defaults to 8 when 0 is
// passed, matching the spec's documented default.
func NewMinHasherFromSeed(numSeeds int, ngram int, randomState int64, opts ...MinHasherOption) (*MinHasher, error) {
	if numSeeds <= 0 {
		return nil, argErrorf("num_seeds must be positive, got %d", numSeeds)
	}
	if ngram == 0 {
		ngram = 8
	}
	if ngram < 0 {
		return nil, argErrorf("char_ngram must be positive, got %d", ngram)
	}

	seeds := generateSeeds(numSeeds, randomState)
	return NewMinHasher(seeds, ngram, opts...)
}

// ClearMemo purges the fingerprint memoization cache, if one is enabled.
// Cache.Clear calls this so a cleared Cache does not keep serving stale
// signatures for documents that were wiped from the index.
func (m *MinHasher) ClearMemo() {
	if m.memo != nil {
		m.memo.Purge()
	}
}

// NumSeeds returns K, the signature length this MinHasher produces.
func (m *MinHasher) NumSeeds() int { return len(m.seeds) }

// Ngram returns the configured shingle window width.
func (m *MinHasher) Ngram() int { return m.ngram }

// Seeds returns the seed vector this MinHasher was built with. The
// returned slice is shared with the MinHasher and must not be
// modified.
func (m *MinHasher) Seeds() []uint32 { return m.seeds }

// Fingerprint computes the MinHash signature of doc. The result has
// length NumSeeds() and is a pure function of (doc, seeds, ngram):
// identical input always yields an identical signature, on any platform.
//
// Per-seed minima start at math.MaxUint32 (UINT32_MAX). When len(doc) is
// shorter than the configured ngram, the sole shingle window is the whole
// document -- this implementation's resolution of the spec's short-input
// open question (see DESIGN.md): it keeps Jaccard meaningful for short,
// identical documents instead of making every short document collide on
// the UINT32_MAX sentinel regardless of content.
func (m *MinHasher) Fingerprint(doc []byte) Sig {
	if m.memo == nil {
		return m.fingerprint(doc)
	}

	key := fasthash.Hash64(0, doc)
	if v, ok := m.memo.Get(key); ok {
		return v.(Sig)
	}
	sig := m.fingerprint(doc)
	m.memo.Add(key, sig)
	return sig
}

func (m *MinHasher) fingerprint(doc []byte) Sig {
	k := len(m.seeds)
	sig := make(Sig, k)
	for i := range sig {
		sig[i] = math.MaxUint32
	}

	w := m.ngram
	windows := len(doc) - w + 1
	if windows < 1 {
		windows = 1
		w = len(doc)
	}

	for i := 0; i < windows; i++ {
		end := i + w
		if end > len(doc) {
			end = len(doc)
		}
		shingle := doc[i:end]
		for j, seed := range m.seeds {
			h := murmur3_32(shingle, seed)
			if h < sig[j] {
				sig[j] = h
			}
		}
	}

	return sig
}

// Jaccard estimates the Jaccard similarity of two signatures as the
// fraction of positions at which they agree. It is commutative and
// returns exactly 1.0 for elementwise-equal signatures, 0.0 when no
// position agrees. Signatures of differing length are treated as
// similarity 0 (they cannot have come from the same MinHasher).
func (m *MinHasher) Jaccard(a, b Sig) float64 {
	return jaccard(a, b)
}

func jaccard(a, b Sig) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var agree int
	for i := range a {
		if a[i] == b[i] {
			agree++
		}
	}
	return float64(agree) / float64(len(a))
}

// minHasherSnapshot is the round-trippable (seeds, ngram) pair sufficient
// to reproduce Fingerprint exactly.
type minHasherSnapshot struct {
	Seeds []uint32 `json:"seeds"`
	Ngram int      `json:"ngram"`
}

// ToSnapshot serializes (seeds, ngram) to JSON.
func (m *MinHasher) ToSnapshot() ([]byte, error) {
	return json.Marshal(minHasherSnapshot{Seeds: m.seeds, Ngram: m.ngram})
}

// MinHasherFromSnapshot reconstructs a MinHasher from ToSnapshot's output.
func MinHasherFromSnapshot(data []byte, opts ...MinHasherOption) (*MinHasher, error) {
	var s minHasherSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, backendErrorf("corrupt minhasher snapshot: %v", err)
	}
	return NewMinHasher(s.Seeds, s.Ngram, opts...)
}
