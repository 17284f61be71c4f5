// errors.go -- error kinds for lshcache
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package lshcache

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", ErrXxx) to add
// context; callers should match with errors.Is.
var (
	// ErrConfig is returned when a Cache or backend is constructed with
	// an inconsistent configuration: K not divisible by the band count,
	// a non-positive band count, a nil hasher or backend, a backend whose
	// band count differs from the Cache's, or a durable backend whose
	// on-disk band count disagrees with the one requested.
	ErrConfig = errors.New("lshcache: invalid configuration")

	// ErrArgument is returned for programmer errors: a non-positive
	// num_seeds or char-ngram width, a signature whose length differs
	// from the hasher's seed count, a doc id that gob cannot encode, or
	// a cache snapshot that is not valid JSON.
	ErrArgument = errors.New("lshcache: invalid argument")

	// ErrNotFound is returned when a doc id is not present in the index.
	ErrNotFound = errors.New("lshcache: document not found")

	// ErrNotCached is returned by a backend's GetDocument when document
	// caching is off: NewMemoryBackend called with cacheDocuments false,
	// or OpenSQLiteBackend called without WithCachedDocuments.
	ErrNotCached = errors.New("lshcache: document body is not cached")

	// ErrFrozen is returned when a durable backend handle is used after
	// Close.
	ErrFrozen = errors.New("lshcache: backend is closed")
)

// configErrorf wraps a formatted message as an ErrConfig.
func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConfig}, args...)...)
}

// argErrorf wraps a formatted message as an ErrArgument.
func argErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrArgument}, args...)...)
}

// backendErrorf wraps an underlying backend failure (I/O, SQL) verbatim,
// after the caller has already rolled back any transaction.
func backendErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("lshcache: backend error: "+format, args...)
}
