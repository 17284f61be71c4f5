// backend.go -- storage contract shared by the memory and durable backends
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// Backends are interchangeable purely by satisfying this interface --
// there is no shared base type or embedding relationship between the two
// implementations, the "duck-typed backend" idea from the original Python
// implementation's DictBackend/SqliteBackend pair translated into a Go
// capability contract.

package lshcache

import "context"

// Backend is the storage contract a Cache depends on. D is the caller's
// document-id type: any comparable Go value.
type Backend[D comparable] interface {
	// IsEmpty reports whether zero documents are stored.
	IsEmpty(ctx context.Context) (bool, error)

	// Add durably associates docID with sig across every (band, bucket)
	// pair in bins. The whole call is atomic: either every band row is
	// written and docID->sig is indexed, or none are. Returns false,
	// nil if docID is already present (a no-op, not an error).
	Add(ctx context.Context, bins []BandBucket, sig Sig, docID D) (bool, error)

	// GetFingerprint returns the stored signature for docID, or
	// ErrNotFound.
	GetFingerprint(ctx context.Context, docID D) (Sig, error)

	// GetBucket returns the doc ids sharing (band, bucket). Returns an
	// empty, non-nil set if no document is in that bucket.
	GetBucket(ctx context.Context, band int, bucket BucketID) (map[D]struct{}, error)

	// IterBuckets yields every non-empty bucket across every band, in
	// unspecified order, calling yield once per bucket. Iteration stops
	// early if yield returns false.
	IterBuckets(ctx context.Context, yield func(map[D]struct{}) bool) error

	// Remove deletes docID from every bucket it appears in and from the
	// fingerprint index. A no-op (not an error) if docID is unknown.
	Remove(ctx context.Context, docID D) error

	// Clear returns the backend to its empty state, preserving the
	// configured band count.
	Clear(ctx context.Context) error

	// DocExists is a cheap existence check.
	DocExists(ctx context.Context, docID D) (bool, error)

	// NumBands returns the band count this backend was built/opened
	// with.
	NumBands() int

	// PutDocument stores doc's raw bytes keyed by docID, when the
	// backend was constructed with document caching enabled. It is a
	// silent no-op otherwise.
	PutDocument(ctx context.Context, docID D, doc []byte) error

	// GetDocument returns the raw bytes stored for docID, or
	// ErrNotCached if document caching is disabled, or ErrNotFound if
	// docID has no cached body.
	GetDocument(ctx context.Context, docID D) ([]byte, error)

	// Close releases any resources (file handles, connection pools)
	// held by the backend.
	Close() error
}
