// memory_backend.go -- in-RAM Backend implementation
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// Grounded directly on the original Python implementation's DictBackend:
// one dict-of-sets per band, plus a single fingerprints map. Empty buckets
// are deleted as soon as their last member is removed, so IterBuckets never
// observes one, satisfying invariant 3 and testable property 8.

package lshcache

import "context"

// MemoryBackend is an in-process, map-based Backend. It is the default,
// zero-setup choice; it holds no resources that need Close.
type MemoryBackend[D comparable] struct {
	numBands  int
	buckets   []map[BucketID]map[D]struct{} // per band
	sigs      map[D]Sig
	docs      map[D][]byte // nil unless cacheDocuments
	cacheDocs bool
}

// NewMemoryBackend constructs an empty in-memory backend for numBands
// bands. cacheDocuments enables PutDocument/GetDocument.
func NewMemoryBackend[D comparable](numBands int, cacheDocuments bool) (*MemoryBackend[D], error) {
	if numBands <= 0 {
		return nil, configErrorf("num_bands must be positive, got %d", numBands)
	}
	m := &MemoryBackend[D]{numBands: numBands, cacheDocs: cacheDocuments}
	m.reset()
	return m, nil
}

func (m *MemoryBackend[D]) reset() {
	m.buckets = make([]map[BucketID]map[D]struct{}, m.numBands)
	for i := range m.buckets {
		m.buckets[i] = make(map[BucketID]map[D]struct{})
	}
	m.sigs = make(map[D]Sig)
	if m.cacheDocs {
		m.docs = make(map[D][]byte)
	} else {
		m.docs = nil
	}
}

func (m *MemoryBackend[D]) NumBands() int { return m.numBands }

func (m *MemoryBackend[D]) IsEmpty(ctx context.Context) (bool, error) {
	return len(m.sigs) == 0, nil
}

func (m *MemoryBackend[D]) Add(ctx context.Context, bins []BandBucket, sig Sig, docID D) (bool, error) {
	if _, ok := m.sigs[docID]; ok {
		return false, nil
	}

	for _, bb := range bins {
		bucket := m.buckets[bb.Band]
		set, ok := bucket[bb.Bucket]
		if !ok {
			set = make(map[D]struct{}, 1)
			bucket[bb.Bucket] = set
		}
		set[docID] = struct{}{}
	}
	m.sigs[docID] = sig
	return true, nil
}

func (m *MemoryBackend[D]) GetFingerprint(ctx context.Context, docID D) (Sig, error) {
	sig, ok := m.sigs[docID]
	if !ok {
		return nil, ErrNotFound
	}
	return sig, nil
}

func (m *MemoryBackend[D]) GetBucket(ctx context.Context, band int, bucket BucketID) (map[D]struct{}, error) {
	if set, ok := m.buckets[band][bucket]; ok {
		return set, nil
	}
	return map[D]struct{}{}, nil
}

func (m *MemoryBackend[D]) IterBuckets(ctx context.Context, yield func(map[D]struct{}) bool) error {
	for _, band := range m.buckets {
		for _, set := range band {
			if len(set) == 0 {
				continue
			}
			if !yield(set) {
				return nil
			}
		}
	}
	return nil
}

func (m *MemoryBackend[D]) Remove(ctx context.Context, docID D) error {
	sig, ok := m.sigs[docID]
	if !ok {
		return nil
	}

	splitter, err := newBandSplitter(len(sig), m.numBands)
	if err != nil {
		return err
	}
	for _, bb := range splitter.Split(sig) {
		set := m.buckets[bb.Band][bb.Bucket]
		delete(set, docID)
		if len(set) == 0 {
			delete(m.buckets[bb.Band], bb.Bucket)
		}
	}

	delete(m.sigs, docID)
	if m.docs != nil {
		delete(m.docs, docID)
	}
	return nil
}

func (m *MemoryBackend[D]) Clear(ctx context.Context) error {
	m.reset()
	return nil
}

func (m *MemoryBackend[D]) DocExists(ctx context.Context, docID D) (bool, error) {
	_, ok := m.sigs[docID]
	return ok, nil
}

func (m *MemoryBackend[D]) PutDocument(ctx context.Context, docID D, doc []byte) error {
	if m.docs == nil {
		return nil
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	m.docs[docID] = cp
	return nil
}

func (m *MemoryBackend[D]) GetDocument(ctx context.Context, docID D) ([]byte, error) {
	if m.docs == nil {
		return nil, ErrNotCached
	}
	doc, ok := m.docs[docID]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MemoryBackend[D]) Close() error { return nil }
