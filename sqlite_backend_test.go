package lshcache

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteBackendAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")

	be, err := OpenSQLiteBackend[string](ctx, path, 4, []uint32{1, 2, 3, 4}, 5)
	if err != nil {
		t.Fatalf("OpenSQLiteBackend: %v", err)
	}
	defer be.Close()

	sig := Sig{10, 20, 30, 40}
	bins := []BandBucket{{Band: 0, Bucket: 1}, {Band: 1, Bucket: 2}, {Band: 2, Bucket: 3}, {Band: 3, Bucket: 4}}

	added, err := be.Add(ctx, bins, sig, "doc-a")
	if err != nil || !added {
		t.Fatalf("Add: added=%v err=%v", added, err)
	}

	got, err := be.GetFingerprint(ctx, "doc-a")
	if err != nil {
		t.Fatalf("GetFingerprint: %v", err)
	}
	if len(got) != len(sig) {
		t.Fatalf("round-tripped signature length = %d, want %d", len(got), len(sig))
	}
	for i := range sig {
		if got[i] != sig[i] {
			t.Fatalf("signature[%d] = %d, want %d", i, got[i], sig[i])
		}
	}

	set, err := be.GetBucket(ctx, 0, 1)
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if _, ok := set["doc-a"]; !ok || len(set) != 1 {
		t.Fatalf("GetBucket(0,1) = %v, want {doc-a}", set)
	}
}

func TestSQLiteBackendAddIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	be, _ := OpenSQLiteBackend[string](ctx, path, 2, []uint32{1, 2}, 3)
	defer be.Close()

	bins := []BandBucket{{Band: 0, Bucket: 5}, {Band: 1, Bucket: 6}}
	sig := Sig{1, 2}

	if added, err := be.Add(ctx, bins, sig, "x"); err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	if added, err := be.Add(ctx, bins, sig, "x"); err != nil || added {
		t.Fatalf("second add should be a no-op: added=%v err=%v", added, err)
	}
}

func TestSQLiteBackendRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	be, _ := OpenSQLiteBackend[string](ctx, path, 2, []uint32{1, 2}, 3)
	defer be.Close()

	bins := []BandBucket{{Band: 0, Bucket: 5}, {Band: 1, Bucket: 6}}
	be.Add(ctx, bins, Sig{1, 2}, "x")

	if err := be.Remove(ctx, "x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if exists, err := be.DocExists(ctx, "x"); err != nil || exists {
		t.Fatalf("doc should be gone: exists=%v err=%v", exists, err)
	}
	if _, err := be.GetFingerprint(ctx, "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	seen := 0
	be.IterBuckets(ctx, func(m map[string]struct{}) bool { seen++; return true })
	if seen != 0 {
		t.Fatalf("expected no remaining buckets, got %d", seen)
	}
}

func TestSQLiteBackendReopenAdoptsBandCount(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")

	be1, err := OpenSQLiteBackend[string](ctx, path, 7, []uint32{1, 2, 3, 4, 5, 6, 7}, 3)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	be1.Close()

	be2, err := OpenSQLiteBackend[string](ctx, path, AnyBands, nil, 0)
	if err != nil {
		t.Fatalf("reopen with AnyBands: %v", err)
	}
	defer be2.Close()
	if be2.NumBands() != 7 {
		t.Fatalf("NumBands() = %d, want 7", be2.NumBands())
	}

	if _, err := OpenSQLiteBackend[string](ctx, path, 3, nil, 0); err == nil {
		t.Fatalf("expected error reopening with mismatched num_bands")
	}
}

func TestSQLiteBackendDocumentCaching(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	be, _ := OpenSQLiteBackend[string](ctx, path, 2, []uint32{1, 2}, 3, WithCachedDocuments())
	defer be.Close()

	if err := be.PutDocument(ctx, "a", []byte("hello world")); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	got, err := be.GetDocument(ctx, "a")
	if err != nil || string(got) != "hello world" {
		t.Fatalf("GetDocument = %q, %v", got, err)
	}
}

func TestSQLiteBackendClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	be, _ := OpenSQLiteBackend[string](ctx, path, 2, []uint32{1, 2}, 3)
	defer be.Close()

	be.Add(ctx, []BandBucket{{Band: 0, Bucket: 1}, {Band: 1, Bucket: 1}}, Sig{1, 1}, "a")
	if err := be.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	empty, err := be.IsEmpty(ctx)
	if err != nil || !empty {
		t.Fatalf("expected empty after Clear, empty=%v err=%v", empty, err)
	}
}
