// sqlite_backend.go -- single-file relational Backend
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// Schema mirrors the original Python implementation's SqliteBackend
// almost verbatim: one row per (band, signature word). The fingerprint
// and f_ord columns there are sig_word/sig_position here. K rows are
// written per band (redundant across bands) rather than K rows total
// plus a separate membership table, trading storage for a single
// indexed SELECT per get_bucket/get_fingerprint with no join.
//
//   CREATE TABLE data (band_id, bucket_id, doc_id, sig_word, sig_position)
//   CREATE INDEX data_band  ON data (band_id, bucket_id)
//   CREATE INDEX data_doc   ON data (doc_id)
//
// A single meta row self-describes the file, in the spirit of the
// teacher's self-describing 64-byte DB header in dbwriter.go: band
// count, seed count, n-gram width and the seed vector itself, so a
// later open can rebuild a compatible MinHasher without the caller
// having to remember the parameters.

package lshcache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"sync"

	lru "github.com/opencoff/golang-lru"
	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 1

// AnyBands instructs OpenSQLiteBackend to adopt whatever band count is
// already recorded in an existing file, rather than requiring the
// caller's count to match exactly.
const AnyBands = -1

// SQLiteBackend is a durable, single-file Backend built on
// database/sql and the pure-Go modernc.org/sqlite driver. It is safe
// for concurrent use: SQLite serializes writers internally, and
// sqliteBackend additionally serializes its own write path with a
// mutex to keep multi-statement transactions atomic from Go's point
// of view too.
type SQLiteBackend[D comparable] struct {
	db        *sql.DB
	numBands  int
	ngram     int
	seeds     []uint32
	cacheDocs bool

	mu     sync.Mutex
	closed bool

	bucketCache *lru.ARCCache // BucketID -> map[D]struct{}, keyed by (band,bucket)
	sigCache    *lru.ARCCache // D -> Sig
}

// SQLiteOption configures OpenSQLiteBackend.
type SQLiteOption func(*sqliteConfig)

type sqliteConfig struct {
	cacheDocuments bool
	readCacheSize  int
}

// WithCachedDocuments enables storage and retrieval of raw document
// bodies alongside their fingerprints.
func WithCachedDocuments() SQLiteOption {
	return func(c *sqliteConfig) { c.cacheDocuments = true }
}

// WithReadCache sizes the ARC cache used to absorb repeat
// GetBucket/GetFingerprint calls. A size of 0 disables caching.
func WithReadCache(size int) SQLiteOption {
	return func(c *sqliteConfig) { c.readCacheSize = size }
}

// OpenSQLiteBackend opens (creating if necessary) a durable backend at
// path. numBands must match the band count of an existing file,
// unless the caller passes AnyBands to adopt whatever is already
// recorded there. A fresh file is created with numBands bands and the
// given seeds/ngram recorded in its meta row.
func OpenSQLiteBackend[D comparable](ctx context.Context, path string, numBands int, seeds []uint32, ngram int, opts ...SQLiteOption) (*SQLiteBackend[D], error) {
	cfg := sqliteConfig{readCacheSize: 4096}
	for _, o := range opts {
		o(&cfg)
	}
	if numBands <= 0 && numBands != AnyBands {
		return nil, configErrorf("num_bands must be positive or AnyBands, got %d", numBands)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, backendErrorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not tolerate concurrent writers on one *sql.DB

	exists, err := sqliteMetaExists(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if exists {
		storedBands, storedNgram, storedSeeds, err := sqliteLoadMeta(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		if numBands != AnyBands && numBands != storedBands {
			db.Close()
			return nil, configErrorf("%s has %d bands, %d were requested; pass AnyBands to adopt the stored value", path, storedBands, numBands)
		}
		numBands, ngram, seeds = storedBands, storedNgram, storedSeeds
	} else {
		if numBands == AnyBands {
			db.Close()
			return nil, configErrorf("%s does not exist and AnyBands was requested; a concrete num_bands is required to create it", path)
		}
		if err := sqliteCreateSchema(ctx, db, numBands, seeds, ngram, cfg.cacheDocuments); err != nil {
			db.Close()
			return nil, err
		}
	}

	be := &SQLiteBackend[D]{db: db, numBands: numBands, ngram: ngram, seeds: seeds, cacheDocs: cfg.cacheDocuments}
	if cfg.readCacheSize > 0 {
		be.bucketCache, _ = lru.NewARC(cfg.readCacheSize)
		be.sigCache, _ = lru.NewARC(cfg.readCacheSize)
	}
	return be, nil
}

func sqliteMetaExists(ctx context.Context, db *sql.DB) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, backendErrorf("probing schema: %w", err)
	}
	return true, nil
}

func sqliteCreateSchema(ctx context.Context, db *sql.DB, numBands int, seeds []uint32, ngram int, cacheDocuments bool) error {
	stmts := []string{
		`CREATE TABLE data (band_id INTEGER, bucket_id INTEGER, doc_id BLOB, sig_word INTEGER, sig_position INTEGER)`,
		`CREATE INDEX data_band ON data (band_id, bucket_id)`,
		`CREATE INDEX data_doc ON data (doc_id)`,
		`CREATE TABLE meta (schema_version INTEGER, num_bands INTEGER, num_seeds INTEGER, ngram_width INTEGER, seeds BLOB)`,
	}
	if cacheDocuments {
		stmts = append(stmts, `CREATE TABLE documents (doc_id BLOB PRIMARY KEY, body BLOB)`)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return backendErrorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return backendErrorf("creating schema: %w", err)
		}
	}

	seedBlob, err := seedsToGob(seeds)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta VALUES (?, ?, ?, ?, ?)`, sqliteSchemaVersion, numBands, len(seeds), ngram, seedBlob); err != nil {
		return backendErrorf("writing meta row: %w", err)
	}
	return tx.Commit()
}

// sqliteLoadMeta reads back everything sqliteCreateSchema wrote: the band
// count plus the ngram width and seed vector needed to rebuild a
// compatible MinHasher, so a reopened file is genuinely self-describing
// rather than relying on the caller to re-supply them.
func sqliteLoadMeta(ctx context.Context, db *sql.DB) (numBands, ngram int, seeds []uint32, err error) {
	var seedBlob []byte
	err = db.QueryRowContext(ctx, `SELECT num_bands, ngram_width, seeds FROM meta`).Scan(&numBands, &ngram, &seedBlob)
	if err != nil {
		return 0, 0, nil, backendErrorf("reading meta row: %w", err)
	}
	seeds, err = seedsFromGob(seedBlob)
	if err != nil {
		return 0, 0, nil, err
	}
	return numBands, ngram, seeds, nil
}

func (s *SQLiteBackend[D]) NumBands() int { return s.numBands }

// StoredSeeds returns the MinHash seed vector recorded in this file's meta
// row (the vector it was created with, or adopted from on reopen). The
// returned slice must not be modified.
func (s *SQLiteBackend[D]) StoredSeeds() []uint32 { return s.seeds }

// StoredNgram returns the shingle width recorded in this file's meta row.
func (s *SQLiteBackend[D]) StoredNgram() int { return s.ngram }

// RebuildMinHasher reconstructs a MinHasher matching the one this file was
// created with, from the ngram width and seed vector stored in its meta
// row. This is what makes a durable backend file self-describing: a later
// process can open it and recover a compatible MinHasher without being
// re-handed the original seeds.
func (s *SQLiteBackend[D]) RebuildMinHasher(opts ...MinHasherOption) (*MinHasher, error) {
	return NewMinHasher(s.seeds, s.ngram, opts...)
}

func (s *SQLiteBackend[D]) IsEmpty(ctx context.Context) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (SELECT DISTINCT doc_id FROM data LIMIT 1)`).Scan(&n); err != nil {
		return false, backendErrorf("IsEmpty: %w", err)
	}
	return n == 0, nil
}

func (s *SQLiteBackend[D]) DocExists(ctx context.Context, docID D) (bool, error) {
	key, err := docKey(docID)
	if err != nil {
		return false, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM data WHERE doc_id = ? LIMIT 1`, key).Scan(&n)
	if err != nil {
		return false, backendErrorf("DocExists: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteBackend[D]) Add(ctx context.Context, bins []BandBucket, sig Sig, docID D) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if exists, err := s.DocExists(ctx, docID); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}

	key, err := docKey(docID)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, backendErrorf("Add: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO data VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return false, backendErrorf("Add: prepare: %w", err)
	}
	defer stmt.Close()

	for _, bb := range bins {
		for pos, word := range sig {
			if _, err := stmt.ExecContext(ctx, bb.Band, int64(bb.Bucket), key, word, pos); err != nil {
				return false, backendErrorf("Add: insert: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, backendErrorf("Add: commit: %w", err)
	}

	if s.sigCache != nil {
		s.sigCache.Add(docID, sig)
	}
	if s.bucketCache != nil {
		for _, bb := range bins {
			s.bucketCache.Remove(bucketCacheKey(bb.Band, bb.Bucket))
		}
	}
	return true, nil
}

func (s *SQLiteBackend[D]) GetFingerprint(ctx context.Context, docID D) (Sig, error) {
	if s.sigCache != nil {
		if v, ok := s.sigCache.Get(docID); ok {
			return v.(Sig), nil
		}
	}

	key, err := docKey(docID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT sig_word FROM data WHERE doc_id = ? GROUP BY sig_position ORDER BY sig_position`, key)
	if err != nil {
		return nil, backendErrorf("GetFingerprint: %w", err)
	}
	defer rows.Close()

	var sig Sig
	for rows.Next() {
		var word int64
		if err := rows.Scan(&word); err != nil {
			return nil, backendErrorf("GetFingerprint: scan: %w", err)
		}
		sig = append(sig, uint32(word))
	}
	if err := rows.Err(); err != nil {
		return nil, backendErrorf("GetFingerprint: %w", err)
	}
	if len(sig) == 0 {
		return nil, ErrNotFound
	}

	if s.sigCache != nil {
		s.sigCache.Add(docID, sig)
	}
	return sig, nil
}

func (s *SQLiteBackend[D]) GetBucket(ctx context.Context, band int, bucket BucketID) (map[D]struct{}, error) {
	cacheKey := bucketCacheKey(band, bucket)
	if s.bucketCache != nil {
		if v, ok := s.bucketCache.Get(cacheKey); ok {
			return v.(map[D]struct{}), nil
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT doc_id FROM data WHERE band_id = ? AND bucket_id = ?`, band, int64(bucket))
	if err != nil {
		return nil, backendErrorf("GetBucket: %w", err)
	}
	defer rows.Close()

	out := make(map[D]struct{})
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, backendErrorf("GetBucket: scan: %w", err)
		}
		id, err := decodeDocKey[D](blob)
		if err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, backendErrorf("GetBucket: %w", err)
	}

	if s.bucketCache != nil {
		s.bucketCache.Add(cacheKey, out)
	}
	return out, nil
}

func (s *SQLiteBackend[D]) IterBuckets(ctx context.Context, yield func(map[D]struct{}) bool) error {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT band_id, bucket_id FROM data`)
	if err != nil {
		return backendErrorf("IterBuckets: %w", err)
	}
	var pairs [][2]int64
	for rows.Next() {
		var band, bucket int64
		if err := rows.Scan(&band, &bucket); err != nil {
			rows.Close()
			return backendErrorf("IterBuckets: scan: %w", err)
		}
		pairs = append(pairs, [2]int64{band, bucket})
	}
	rerr := rows.Err()
	rows.Close()
	if rerr != nil {
		return backendErrorf("IterBuckets: %w", rerr)
	}

	for _, p := range pairs {
		set, err := s.GetBucket(ctx, int(p[0]), BucketID(p[1]))
		if err != nil {
			return err
		}
		if len(set) == 0 {
			continue
		}
		if !yield(set) {
			return nil
		}
	}
	return nil
}

func (s *SQLiteBackend[D]) Remove(ctx context.Context, docID D) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := docKey(docID)
	if err != nil {
		return err
	}

	// Recover the buckets this doc occupied, so we can invalidate the
	// read cache precisely instead of flushing it wholesale.
	var affected [][2]int64
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT band_id, bucket_id FROM data WHERE doc_id = ?`, key)
	if err != nil {
		return backendErrorf("Remove: %w", err)
	}
	for rows.Next() {
		var band, bucket int64
		if err := rows.Scan(&band, &bucket); err != nil {
			rows.Close()
			return backendErrorf("Remove: scan: %w", err)
		}
		affected = append(affected, [2]int64{band, bucket})
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backendErrorf("Remove: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM data WHERE doc_id = ?`, key); err != nil {
		return backendErrorf("Remove: delete: %w", err)
	}
	if s.cacheDocs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, key); err != nil {
			return backendErrorf("Remove: delete document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return backendErrorf("Remove: commit: %w", err)
	}

	if s.sigCache != nil {
		s.sigCache.Remove(docID)
	}
	if s.bucketCache != nil {
		for _, p := range affected {
			s.bucketCache.Remove(bucketCacheKey(int(p[0]), BucketID(p[1])))
		}
	}
	return nil
}

func (s *SQLiteBackend[D]) Clear(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM data`); err != nil {
		return backendErrorf("Clear: %w", err)
	}
	if s.cacheDocs {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return backendErrorf("Clear: documents: %w", err)
		}
	}
	if s.bucketCache != nil {
		s.bucketCache.Purge()
	}
	if s.sigCache != nil {
		s.sigCache.Purge()
	}
	return nil
}

func (s *SQLiteBackend[D]) PutDocument(ctx context.Context, docID D, doc []byte) error {
	if !s.cacheDocs {
		return nil
	}
	key, err := docKey(docID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO documents VALUES (?, ?)`, key, doc)
	if err != nil {
		return backendErrorf("PutDocument: %w", err)
	}
	return nil
}

func (s *SQLiteBackend[D]) GetDocument(ctx context.Context, docID D) ([]byte, error) {
	if !s.cacheDocs {
		return nil, ErrNotCached
	}
	key, err := docKey(docID)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE doc_id = ?`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, backendErrorf("GetDocument: %w", err)
	}
	return body, nil
}

func (s *SQLiteBackend[D]) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteBackend[D]) checkOpen() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrFrozen
	}
	return nil
}

func bucketCacheKey(band int, bucket BucketID) string {
	return fmt.Sprintf("%d:%d", band, bucket)
}

// docKey gob-encodes an arbitrary comparable doc id into bytes suitable
// for a BLOB column and for use as a map/cache key.
func docKey[D comparable](id D) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(id); err != nil {
		return nil, argErrorf("doc_id is not gob-encodable: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDocKey[D comparable](b []byte) (D, error) {
	var id D
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&id); err != nil {
		return id, backendErrorf("decoding stored doc_id: %w", err)
	}
	return id, nil
}

func seedsToGob(seeds []uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(seeds); err != nil {
		return nil, backendErrorf("encoding seed vector: %w", err)
	}
	return buf.Bytes(), nil
}

func seedsFromGob(b []byte) ([]uint32, error) {
	var seeds []uint32
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&seeds); err != nil {
		return nil, backendErrorf("decoding stored seed vector: %w", err)
	}
	return seeds, nil
}
