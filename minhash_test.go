package lshcache

import "testing"

func TestMinHasherFingerprintDeterministic(t *testing.T) {
	m, err := NewMinHasherFromSeed(200, 5, 42)
	if err != nil {
		t.Fatalf("NewMinHasherFromSeed: %v", err)
	}
	doc := []byte("This is a simple document")
	a := m.Fingerprint(doc)
	b := m.Fingerprint(doc)
	if len(a) != 200 || len(b) != 200 {
		t.Fatalf("expected signature length 200, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fingerprint not deterministic at position %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestMinHasherJaccardReflexive(t *testing.T) {
	m, _ := NewMinHasherFromSeed(100, 5, 1)
	sig := m.Fingerprint([]byte("any document will do"))
	if j := m.Jaccard(sig, sig); j != 1.0 {
		t.Fatalf("jaccard(sig, sig) = %f, want 1.0", j)
	}
}

func TestMinHasherJaccardRange(t *testing.T) {
	m, _ := NewMinHasherFromSeed(100, 5, 1)
	a := m.Fingerprint([]byte("the quick brown fox"))
	b := m.Fingerprint([]byte("a completely different sentence about cats"))

	j := m.Jaccard(a, b)
	if j < 0 || j > 1 {
		t.Fatalf("jaccard out of range: %f", j)
	}
	if got := m.Jaccard(a, b); got != m.Jaccard(b, a) {
		t.Fatalf("jaccard not commutative: %f vs %f", got, m.Jaccard(b, a))
	}
}

// S5 — Jaccard ordering.
func TestMinHasherJaccardOrdering(t *testing.T) {
	// 3-byte shingles: "This is a doc" and "Cats in a tree" share "s i" and
	// " a ", so their true Jaccard is small but non-zero. With 5-byte
	// shingles they share nothing and the estimate would be exactly 0.
	m, _ := NewMinHasherFromSeed(200, 3, 42)

	base := m.Fingerprint([]byte("This is a doc"))
	same := m.Jaccard(base, base)
	unrelated := m.Jaccard(base, m.Fingerprint([]byte("Cats in a tree")))
	similar := m.Jaccard(base, m.Fingerprint([]byte("That is a doc")))

	if same != 1.0 {
		t.Fatalf("jaccard(x,x) = %f, want 1.0", same)
	}
	if !(0 < unrelated && unrelated < similar && similar < 1) {
		t.Fatalf("expected 0 < unrelated(%f) < similar(%f) < 1", unrelated, similar)
	}
}

func TestMinHasherShortDocument(t *testing.T) {
	m, _ := NewMinHasherFromSeed(50, 8, 1)
	a := m.Fingerprint([]byte("hi"))
	b := m.Fingerprint([]byte("hi"))
	if m.Jaccard(a, b) != 1.0 {
		t.Fatalf("identical short documents should be estimated identical")
	}
	if len(a) != 50 {
		t.Fatalf("short document should still yield a full-length signature")
	}
}

func TestMinHasherConstructionErrors(t *testing.T) {
	if _, err := NewMinHasherFromSeed(0, 8, 1); err == nil {
		t.Fatalf("expected error for num_seeds=0")
	}
	if _, err := NewMinHasherFromSeed(10, -1, 1); err == nil {
		t.Fatalf("expected error for negative ngram")
	}
	if _, err := NewMinHasher(nil, 8); err == nil {
		t.Fatalf("expected error for empty seed vector")
	}
}

func TestMinHasherSnapshotRoundTrip(t *testing.T) {
	m, _ := NewMinHasherFromSeed(64, 4, 99)
	snap, err := m.ToSnapshot()
	if err != nil {
		t.Fatalf("ToSnapshot: %v", err)
	}

	m2, err := MinHasherFromSnapshot(snap)
	if err != nil {
		t.Fatalf("MinHasherFromSnapshot: %v", err)
	}

	doc := []byte("round trip this document please")
	a := m.Fingerprint(doc)
	b := m2.Fingerprint(doc)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("restored minhasher diverges at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestMinHasherMemoize(t *testing.T) {
	m, err := NewMinHasherFromSeed(32, 4, 1, WithMemoize(16))
	if err != nil {
		t.Fatalf("construction: %v", err)
	}
	doc := []byte("memoized document")
	a := m.Fingerprint(doc)
	b := m.Fingerprint(doc)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("memoized fingerprint differs from fresh computation")
		}
	}
	m.ClearMemo()
	c := m.Fingerprint(doc)
	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("fingerprint changed after memo clear, should still be deterministic")
		}
	}
}
