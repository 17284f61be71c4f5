// hash.go -- MurmurHash3 x86_32
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
//
// A from-scratch implementation of Austin Appleby's public-domain
// MurmurHash3 (the 32-bit, x86-targeted variant). Chosen over the
// standard library's hash/fnv or hash/maphash because the spec requires
// bit-exact, cross-platform-stable output for a fixed (bytes, seed) pair,
// which is exactly what MurmurHash3 x86_32 is designed to guarantee.

package lshcache

import "encoding/binary"

const (
	murmur32C1 uint32 = 0xcc9e2d51
	murmur32C2 uint32 = 0x1b873593
)

// murmur3_32 computes the 32-bit x86 variant of MurmurHash3 over data,
// seeded with seed. Block reads are little-endian regardless of host
// architecture (via encoding/binary, never an unaligned pointer cast), so
// the result is identical on every platform.
func murmur3_32(data []byte, seed uint32) uint32 {
	h := seed
	n := len(data)
	nblocks := n / 4

	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4 : i*4+4])

		k *= murmur32C1
		k = rotl32(k, 15)
		k *= murmur32C2

		h ^= k
		h = rotl32(h, 13)
		h = h*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k1 uint32
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= murmur32C1
		k1 = rotl32(k1, 15)
		k1 *= murmur32C2
		h ^= k1
	}

	h ^= uint32(n)
	h = fmix32(h)
	return h
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func rotl32(x uint32, r uint) uint32 {
	return (x << r) | (x >> (32 - r))
}
