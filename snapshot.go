// snapshot.go -- portable JSON serialization of a Cache
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// Grounded on the original Python implementation's Cache.jsonable/
// from_json: a snapshot carries the hasher's own snapshot, the band
// count, and the fingerprint of every stored document. Bucket
// membership is not stored directly -- it is a pure, deterministic
// function of (seeds, ngram, num_bands, signature), so Restore
// regenerates it bit-exactly by replaying InsertSignature for every
// stored document, which is both simpler and smaller on the wire than
// serializing every per-band bucket list.

package lshcache

import (
	"context"
	"encoding/json"
)

type cacheSnapshot struct {
	Hasher   json.RawMessage `json:"hasher"`
	NumBands int             `json:"num_bands"`
	Docs     []snapshotDoc   `json:"docs"`
}

type snapshotDoc struct {
	DocID []byte `json:"doc_id"`
	Sig   Sig    `json:"sig"`
}

// Snapshot serializes the hasher configuration, band count and every
// stored (doc_id, signature) pair into a portable JSON document.
func (c *Cache[D]) Snapshot(ctx context.Context) ([]byte, error) {
	hasherSnap, err := c.hasher.ToSnapshot()
	if err != nil {
		return nil, err
	}

	ids := make(map[D]struct{})
	err = c.backend.IterBuckets(ctx, func(bucket map[D]struct{}) bool {
		for id := range bucket {
			ids[id] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	docs := make([]snapshotDoc, 0, len(ids))
	for id := range ids {
		sig, err := c.backend.GetFingerprint(ctx, id)
		if err != nil {
			return nil, err
		}
		key, err := docKey(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, snapshotDoc{DocID: key, Sig: sig})
	}

	snap := cacheSnapshot{
		Hasher:   json.RawMessage(hasherSnap),
		NumBands: c.numBands,
		Docs:     docs,
	}
	return json.Marshal(snap)
}

// RestoreCache rebuilds a Cache from data produced by Snapshot, into a
// freshly supplied (and presumably empty) backend. backend must report
// the same band count the snapshot was taken with.
func RestoreCache[D comparable](ctx context.Context, data []byte, backend Backend[D], opts ...MinHasherOption) (*Cache[D], error) {
	var snap cacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, argErrorf("unmarshaling cache snapshot: %w", err)
	}

	hasher, err := MinHasherFromSnapshot(snap.Hasher, opts...)
	if err != nil {
		return nil, err
	}

	c, err := NewCache[D](hasher, snap.NumBands, backend)
	if err != nil {
		return nil, err
	}

	for _, d := range snap.Docs {
		id, err := decodeDocKey[D](d.DocID)
		if err != nil {
			return nil, err
		}
		if _, err := c.InsertSignature(ctx, d.Sig, id); err != nil {
			return nil, err
		}
	}
	return c, nil
}
