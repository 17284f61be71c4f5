// Package lshcache implements approximate near-duplicate detection over a
// corpus of byte-string documents using Locality-Sensitive Hashing (LSH) on
// MinHash signatures.
//
// A Cache divides each document's MinHash signature into bands and stores,
// per band, the set of document ids that share a band's hash value. Two
// documents that land in the same bucket in at least one band are
// "candidates"; candidates are then refined by an estimated Jaccard
// similarity computed directly from the signatures, never from the original
// shingle sets. This lets a corpus of N documents be searched for
// near-duplicates without the O(N^2) cost of all-pairs comparison.
//
// The package ships two storage backends behind the same Backend
// interface: an in-memory map-of-sets backend, and a durable backend that
// persists to a single SQLite file via database/sql. Callers pick one at
// Cache construction time; both honor the same contract, so a Cache built
// against one can be migrated to the other via Snapshot/Restore.
//
// A Cache does no locking of its own and is not safe for concurrent
// mutation.
package lshcache
