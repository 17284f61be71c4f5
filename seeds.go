// seeds.go -- reproducible seed-vector generation for MinHasher
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package lshcache

import "math/rand"

// seedUpperBound is the exclusive upper bound for drawn seed values,
// [0, 1_000_000), matching the historical behavior this module must
// reproduce bit-for-bit given the same random_state.
const seedUpperBound = 1_000_000

// generateSeeds deterministically draws n distinct seed values in
// [0, seedUpperBound) using randomState to initialize math/rand's PRNG.
// The algorithm (math/rand's default source, seeded once) is locked: do not
// change it, or existing (randomState, n) pairs will stop reproducing the
// same fingerprints across versions of this module.
//
// Seeds are drawn without replacement: a dense bitVector over
// [0, seedUpperBound) tracks which values have already been drawn, so a
// short MinHasher (a handful of seeds) and a very long one (hundreds of
// thousands) both get distinct hash functions, which a naive
// with-replacement draw would not guarantee as n approaches
// seedUpperBound.
func generateSeeds(n int, randomState int64) []uint32 {
	if n <= 0 {
		return nil
	}

	src := rand.New(rand.NewSource(randomState))
	seen := newBitVector(seedUpperBound)
	seeds := make([]uint32, n)

	for i := 0; i < n; i++ {
		for {
			v := uint32(src.Intn(seedUpperBound))
			if !seen.IsSet(uint64(v)) {
				seen.Set(uint64(v))
				seeds[i] = v
				break
			}
		}
	}

	return seeds
}
