// cache.go -- the LSH index: ties together a MinHasher, a band
// splitter and a Backend
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// Cache is the Go translation of the original Python implementation's
// lsh.cache.Cache: insert/remove/clear plus candidate and near-duplicate
// lookups. Method names and bucket-union/jaccard-filter semantics are
// grounded directly on that source; the per-band map-of-sets shape and
// canonical unordered-pair dedup for all_duplicate_pairs follow the
// idiomatic-Go LSHIndex found among the retrieved examples.
//
// is_duplicate is implemented per the literal end-to-end scenarios
// rather than the prose description of its middle branch, which
// contradicts them: a document re-submitted under the id it was
// already inserted as must compare false, not true, once its own id
// is excluded from the duplicate set.

package lshcache

import (
	"context"
	"fmt"
	"log/slog"
)

// Pair is an unordered pair of document ids, as returned by
// AllDuplicatePairs.
type Pair[D comparable] struct {
	A, B D
}

// Cache is an LSH near-duplicate index: a MinHasher, a band splitter
// derived from its seed count, and a pluggable Backend. A Cache is
// not safe for concurrent mutation; see the package doc comment.
type Cache[D comparable] struct {
	hasher   *MinHasher
	splitter *bandSplitter
	backend  Backend[D]
	numBands int
}

// NewCache wires a MinHasher, band count and Backend together. It
// fails with ErrConfig if the hasher's seed count does not divide
// evenly by numBands, or if backend reports a different band count.
func NewCache[D comparable](hasher *MinHasher, numBands int, backend Backend[D]) (*Cache[D], error) {
	if hasher == nil {
		return nil, configErrorf("hasher must not be nil")
	}
	if backend == nil {
		return nil, configErrorf("backend must not be nil")
	}
	if backend.NumBands() != numBands {
		return nil, configErrorf("backend has %d bands, %d were requested", backend.NumBands(), numBands)
	}

	splitter, err := newBandSplitter(hasher.NumSeeds(), numBands)
	if err != nil {
		return nil, err
	}

	return &Cache[D]{hasher: hasher, splitter: splitter, backend: backend, numBands: numBands}, nil
}

// NumBands returns the configured band count.
func (c *Cache[D]) NumBands() int { return c.numBands }

// Close releases the underlying backend's resources.
func (c *Cache[D]) Close() error { return c.backend.Close() }

// Insert fingerprints doc, derives its bucket keys, and stores it
// under docID. Returns false, nil (not an error) if docID is already
// present.
func (c *Cache[D]) Insert(ctx context.Context, doc []byte, docID D) (bool, error) {
	sig := c.hasher.Fingerprint(doc)
	added, err := c.InsertSignature(ctx, sig, docID)
	if err != nil || !added {
		return added, err
	}
	if err := c.backend.PutDocument(ctx, docID, doc); err != nil {
		return added, err
	}
	return true, nil
}

// InsertSignature stores a precomputed signature under docID, bypassing
// the MinHasher. Used by Restore and by callers importing fingerprints
// computed elsewhere. An already-present docID is logged at Info level
// through log/slog and reported as false, nil.
func (c *Cache[D]) InsertSignature(ctx context.Context, sig Sig, docID D) (bool, error) {
	if len(sig) != c.hasher.NumSeeds() {
		return false, argErrorf("signature length %d does not match hasher seed count %d", len(sig), c.hasher.NumSeeds())
	}
	bins := c.splitter.Split(sig)
	added, err := c.backend.Add(ctx, bins, sig, docID)
	if err == nil && !added {
		slog.Info("lshcache: doc id already present, insert ignored", "doc_id", docID)
	}
	return added, err
}

// CandidatesOf returns every doc id sharing at least one band bucket
// with doc's signature. doc is not inserted.
func (c *Cache[D]) CandidatesOf(ctx context.Context, doc []byte) (map[D]struct{}, error) {
	sig := c.hasher.Fingerprint(doc)
	return c.candidatesOfSig(ctx, sig)
}

// CandidatesOfID returns every doc id sharing at least one band bucket
// with the signature already stored under docID. Fails with
// ErrNotFound if docID is unknown.
func (c *Cache[D]) CandidatesOfID(ctx context.Context, docID D) (map[D]struct{}, error) {
	sig, err := c.backend.GetFingerprint(ctx, docID)
	if err != nil {
		return nil, err
	}
	return c.candidatesOfSig(ctx, sig)
}

func (c *Cache[D]) candidatesOfSig(ctx context.Context, sig Sig) (map[D]struct{}, error) {
	out := make(map[D]struct{})
	for _, bb := range c.splitter.Split(sig) {
		set, err := c.backend.GetBucket(ctx, bb.Band, bb.Bucket)
		if err != nil {
			return nil, err
		}
		for id := range set {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// DuplicatesOf refines CandidatesOf(doc) to ids whose stored signature
// has estimated Jaccard similarity strictly greater than minJaccard.
// doc is not inserted: the lookup is stateless from the caller's
// perspective.
func (c *Cache[D]) DuplicatesOf(ctx context.Context, doc []byte, minJaccard float64) (map[D]struct{}, error) {
	sig := c.hasher.Fingerprint(doc)
	return c.duplicatesOfSig(ctx, sig, minJaccard)
}

// DuplicatesOfID is DuplicatesOf for a signature already stored under
// docID.
func (c *Cache[D]) DuplicatesOfID(ctx context.Context, docID D, minJaccard float64) (map[D]struct{}, error) {
	sig, err := c.backend.GetFingerprint(ctx, docID)
	if err != nil {
		return nil, err
	}
	return c.duplicatesOfSig(ctx, sig, minJaccard)
}

func (c *Cache[D]) duplicatesOfSig(ctx context.Context, sig Sig, minJaccard float64) (map[D]struct{}, error) {
	candidates, err := c.candidatesOfSig(ctx, sig)
	if err != nil {
		return nil, err
	}
	out := make(map[D]struct{}, len(candidates))
	for id := range candidates {
		candSig, err := c.backend.GetFingerprint(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.hasher.Jaccard(sig, candSig) > minJaccard {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// IsDuplicate reports whether doc has a near-duplicate already in the
// index, excluding docID itself from consideration when given.
// minSimilarity has no default value; the tests use 0.9.
func (c *Cache[D]) IsDuplicate(ctx context.Context, doc []byte, docID *D, minSimilarity float64) (bool, error) {
	empty, err := c.backend.IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if empty {
		return false, nil
	}

	dups, err := c.DuplicatesOf(ctx, doc, minSimilarity)
	if err != nil {
		return false, err
	}
	if docID != nil {
		delete(dups, *docID)
	}
	return len(dups) > 0, nil
}

// AllDuplicatePairs enumerates every unordered pair of doc ids sharing
// a bucket, optionally filtered by minJaccard (pass a negative value,
// e.g. -1, to disable the Jaccard filter and return raw LSH candidate
// pairs).
func (c *Cache[D]) AllDuplicatePairs(ctx context.Context, minJaccard float64) ([]Pair[D], error) {
	seen := make(map[string]Pair[D])

	err := c.backend.IterBuckets(ctx, func(bucket map[D]struct{}) bool {
		if len(bucket) < 2 {
			return true
		}
		ids := make([]D, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				p := canonicalPair(ids[i], ids[j])
				seen[pairKey(p)] = p
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair[D], 0, len(seen))
	for _, p := range seen {
		pairs = append(pairs, p)
	}
	if minJaccard < 0 {
		return pairs, nil
	}

	out := pairs[:0]
	for _, p := range pairs {
		sigA, err := c.backend.GetFingerprint(ctx, p.A)
		if err != nil {
			return nil, err
		}
		sigB, err := c.backend.GetFingerprint(ctx, p.B)
		if err != nil {
			return nil, err
		}
		if c.hasher.Jaccard(sigA, sigB) > minJaccard {
			out = append(out, p)
		}
	}
	return out, nil
}

// Remove deletes docID from every bucket and from the fingerprint
// index. A no-op on an unknown id.
func (c *Cache[D]) Remove(ctx context.Context, docID D) error {
	return c.backend.Remove(ctx, docID)
}

// RemoveByContent removes the document whose stored signature matches
// doc's, scanning every stored fingerprint for an elementwise-equal
// match. O(N) in the number of stored documents; kept off the primary
// insert/remove surface because the index has no content->id mapping
// to make this cheap. Returns false if no matching document was
// found.
func (c *Cache[D]) RemoveByContent(ctx context.Context, doc []byte) (bool, error) {
	sig := c.hasher.Fingerprint(doc)

	var match D
	found := false
	err := c.backend.IterBuckets(ctx, func(bucket map[D]struct{}) bool {
		for id := range bucket {
			candSig, err := c.backend.GetFingerprint(ctx, id)
			if err != nil {
				continue
			}
			if sigEqual(sig, candSig) {
				match = id
				found = true
				return false
			}
		}
		return true
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return true, c.backend.Remove(ctx, match)
}

// Clear wipes all stored state and the hasher's fingerprint memo,
// preserving the configured band count.
func (c *Cache[D]) Clear(ctx context.Context) error {
	c.hasher.ClearMemo()
	return c.backend.Clear(ctx)
}

func sigEqual(a, b Sig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func canonicalPair[D comparable](a, b D) Pair[D] {
	if fmt.Sprintf("%v", a) <= fmt.Sprintf("%v", b) {
		return Pair[D]{A: a, B: b}
	}
	return Pair[D]{A: b, B: a}
}

func pairKey[D comparable](p Pair[D]) string {
	return fmt.Sprintf("%v|%v", p.A, p.B)
}
