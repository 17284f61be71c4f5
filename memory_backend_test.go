package lshcache

import (
	"context"
	"testing"
)

func TestMemoryBackendAddIdempotent(t *testing.T) {
	ctx := context.Background()
	be, err := NewMemoryBackend[string](5, false)
	if err != nil {
		t.Fatalf("NewMemoryBackend: %v", err)
	}

	sig := Sig{1, 2, 3, 4, 5}
	bins := []BandBucket{{Band: 0, Bucket: 1}, {Band: 1, Bucket: 2}, {Band: 2, Bucket: 3}, {Band: 3, Bucket: 4}, {Band: 4, Bucket: 5}}

	added, err := be.Add(ctx, bins, sig, "doc1")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = be.Add(ctx, bins, sig, "doc1")
	if err != nil || added {
		t.Fatalf("second add should be a no-op: added=%v err=%v", added, err)
	}
}

func TestMemoryBackendRemoveDeletesEmptyBuckets(t *testing.T) {
	ctx := context.Background()
	be, _ := NewMemoryBackend[string](2, false)
	sig := Sig{10, 20}
	bins := []BandBucket{{Band: 0, Bucket: 100}, {Band: 1, Bucket: 200}}

	if _, err := be.Add(ctx, bins, sig, "solo"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := be.Remove(ctx, "solo"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	seen := 0
	err := be.IterBuckets(ctx, func(m map[string]struct{}) bool {
		seen++
		return true
	})
	if err != nil {
		t.Fatalf("IterBuckets: %v", err)
	}
	if seen != 0 {
		t.Fatalf("expected no buckets after removing the sole occupant, got %d", seen)
	}
}

func TestMemoryBackendRemoveUnknownIsNoop(t *testing.T) {
	be, _ := NewMemoryBackend[string](3, false)
	if err := be.Remove(context.Background(), "nope"); err != nil {
		t.Fatalf("removing unknown doc should not error: %v", err)
	}
}

func TestMemoryBackendClear(t *testing.T) {
	ctx := context.Background()
	be, _ := NewMemoryBackend[string](2, false)
	be.Add(ctx, []BandBucket{{Band: 0, Bucket: 1}, {Band: 1, Bucket: 1}}, Sig{1, 1}, "a")

	if err := be.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	empty, err := be.IsEmpty(ctx)
	if err != nil || !empty {
		t.Fatalf("expected empty backend after Clear, empty=%v err=%v", empty, err)
	}
	if n := be.NumBands(); n != 2 {
		t.Fatalf("Clear must preserve band count, got %d", n)
	}
}

func TestMemoryBackendDocumentCaching(t *testing.T) {
	ctx := context.Background()
	be, _ := NewMemoryBackend[string](1, true)
	if err := be.PutDocument(ctx, "a", []byte("hello")); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	got, err := be.GetDocument(ctx, "a")
	if err != nil || string(got) != "hello" {
		t.Fatalf("GetDocument = %q, %v", got, err)
	}

	nocache, _ := NewMemoryBackend[string](1, false)
	if _, err := nocache.GetDocument(ctx, "a"); err != ErrNotCached {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestMemoryBackendGetFingerprintNotFound(t *testing.T) {
	be, _ := NewMemoryBackend[string](1, false)
	if _, err := be.GetFingerprint(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
