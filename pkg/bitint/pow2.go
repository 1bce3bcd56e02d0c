// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two arithmetic used to size FFTs and
history buffers. Every function is O(1), allocation free, and safe to call
from the audio callback.

	fftLen := bitint.NextPowerOfTwo(44100) // 65536
	octaves := bitint.Log2(fftLen)          // 16

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves: for 8 (0b1000), 8-1 = 0b0111 has a bit
length of 3 and 1<<3 = 8. Without the subtraction 8 would become 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of two <= size.
// Non-positive sizes return 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of two.
// (n & (n-1)) clears the lowest set bit, so it is zero only when a single
// bit is set.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for positive n, and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
