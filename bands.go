// bands.go -- split a signature into bands and derive bucket keys
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package lshcache

import "github.com/dchest/siphash"

// BucketID is a deterministic 64-bit hash of one band's worth of a
// signature. Two signatures collide in a band iff their BucketID for
// that band is equal.
type BucketID uint64

// bandSipKey is a fixed, hard-coded SipHash-2-4 key. It must never change:
// doing so would silently redefine every existing BucketID and break
// reproducibility of previously-built indexes, exactly the reproducibility
// guarantee the spec demands of the band splitter.
var bandSipKey = [16]byte{
	0x4c, 0x53, 0x48, 0x63, 0x61, 0x63, 0x68, 0x65,
	0x62, 0x61, 0x6e, 0x64, 0x73, 0x70, 0x6c, 0x69,
}

// bandSplitter derives, for a signature of length K split into B bands,
// the ordered (band, bucketID) pairs for that signature.
type bandSplitter struct {
	numBands int
	width    int // K / numBands
}

// newBandSplitter validates K mod B == 0 and returns a bandSplitter, or
// ErrConfig if the signature length does not divide evenly into bands.
func newBandSplitter(sigLen, numBands int) (*bandSplitter, error) {
	if numBands <= 0 {
		return nil, configErrorf("num_bands must be positive, got %d", numBands)
	}
	if sigLen%numBands != 0 {
		return nil, configErrorf("signature length %d is not divisible by num_bands %d", sigLen, numBands)
	}
	return &bandSplitter{numBands: numBands, width: sigLen / numBands}, nil
}

// Split returns the B (band index, bucket id) pairs for sig, in band
// order. The bucket id for a band is SipHash-2-4, keyed with the fixed
// bandSipKey, over the concatenated little-endian bytes of that band's W
// signature entries -- identical slices hash identically on every
// platform, satisfying the spec's cross-platform reproducibility
// requirement for bucket keys.
func (s *bandSplitter) Split(sig Sig) []BandBucket {
	out := make([]BandBucket, s.numBands)
	buf := make([]byte, s.width*4)

	for b := 0; b < s.numBands; b++ {
		start := b * s.width
		slice := sig[start : start+s.width]
		for i, v := range slice {
			putUint32LE(buf[i*4:], v)
		}

		h := siphash.New(bandSipKey[:])
		h.Write(buf)
		out[b] = BandBucket{Band: b, Bucket: BucketID(h.Sum64())}
	}
	return out
}

// BandBucket names one (band index, bucket id) pair derived from a
// signature.
type BandBucket struct {
	Band   int
	Bucket BucketID
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
