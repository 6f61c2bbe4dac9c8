package vanity

import (
	"math/big"
)

// Increment adds one to the big-endian unsigned integer stored in the last
// `width` bytes of `buf`. Bytes before that region are never touched.
//
// It returns true if the region was at its maximum value and wrapped around
// to all zeros.
func Increment(buf []byte, width uint) (wrapped bool) {
	if width > uint(len(buf)) {
		width = uint(len(buf))
	}
	region := buf[uint(len(buf))-width:]
	for idx := len(region) - 1; idx >= 0; idx-- {
		if region[idx] != 0xff {
			region[idx]++
			return false
		}
		region[idx] = 0
	}
	return true
}

// SetCounter writes `value` modulo 2^(8*width) into the last `width` bytes
// of `buf` in big-endian order.
func SetCounter(buf []byte, width uint, value *big.Int) {
	if width > uint(len(buf)) {
		width = uint(len(buf))
	}
	region := buf[uint(len(buf))-width:]
	for idx := range region {
		region[idx] = 0
	}
	if value == nil || width == 0 {
		return
	}

	v := new(big.Int).Mod(value, counterSpaceSize(width))
	v.FillBytes(region)
}

// counterSpaceSize returns 2^(8*width), the amount of distinct values
// a counter region of the given width can hold.
func counterSpaceSize(width uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 8*width)
}
