// SPDX-License-Identifier: MIT
/*
Package simd provides reductions over float32 slices laid out so that the
compiler and the CPU can overlap independent additions.

Go has no portable vector intrinsics, so a "vector" here is a fixed-size
array of laneWidth float32 values. The input is split into an unaligned
head, a run of whole vectors starting on a vectorBytes boundary, and an
unaligned tail. The vector run is accumulated into several independent
accumulators so that consecutive additions do not depend on each other.

Precision: the result is approximate. Accumulation order differs from a
sequential loop, so results are not bit-for-bit reproducible against one.
Observed relative error on audio-range input is well under 0.1%. Callers
that need exact sums must not use SumF32.
*/
package simd

import "unsafe"

const (
	laneWidth      = 8             // float32 lanes per vector (one 256-bit register).
	vectorBytes    = laneWidth * 4 // Alignment of the vector run, in bytes.
	maxConcurrency = 8             // Largest number of independent accumulators.

	// Length thresholds selecting the accumulator count. Short inputs do not
	// amortize the accumulator merge, long inputs benefit from more ILP.
	scalarBelow     = 16
	concurrency1Max = 256
	concurrency4Max = 1024
)

type vector [laneWidth]float32

// SumF32 returns the approximate sum of values.
func SumF32(values []float32) float32 {
	n := len(values)
	switch {
	case n < scalarBelow:
		return scalarSum(values)
	case n < concurrency1Max:
		return sumLanes(values, 1)
	case n < concurrency4Max:
		return sumLanes(values, 4)
	default:
		return sumLanes(values, 8)
	}
}

// split returns the unaligned head, the aligned whole-vector body and the
// remaining tail of values.
func split(values []float32) (head, body, tail []float32) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(values)))
	peel := 0
	if misalign := int(addr % vectorBytes); misalign != 0 {
		peel = (vectorBytes - misalign) / 4
	}
	if peel > len(values) {
		peel = len(values)
	}
	rest := values[peel:]
	bodyLen := len(rest) / laneWidth * laneWidth
	return values[:peel], rest[:bodyLen], rest[bodyLen:]
}

// sumLanes accumulates the aligned body with concurrency independent vector
// accumulators. concurrency must be a power of two <= maxConcurrency.
func sumLanes(values []float32, concurrency int) float32 {
	head, body, tail := split(values)

	var acc [maxConcurrency]vector
	stride := concurrency * laneWidth
	i := 0
	for ; i+stride <= len(body); i += stride {
		chunk := body[i : i+stride]
		for a := 0; a < concurrency; a++ {
			acc[a].addSlice(chunk[a*laneWidth : (a+1)*laneWidth])
		}
	}

	// Pairwise merge of the accumulators into acc[0].
	for half := concurrency / 2; half > 0; half /= 2 {
		for a := 0; a < half; a++ {
			acc[a].addVector(&acc[a+half])
		}
	}

	// Leftover whole vectors that did not fill a chunk.
	for ; i < len(body); i += laneWidth {
		acc[0].addSlice(body[i : i+laneWidth])
	}

	return scalarSum(head) + acc[0].sum() + scalarSum(tail)
}

func (v *vector) addSlice(s []float32) {
	s = s[:laneWidth]
	v[0] += s[0]
	v[1] += s[1]
	v[2] += s[2]
	v[3] += s[3]
	v[4] += s[4]
	v[5] += s[5]
	v[6] += s[6]
	v[7] += s[7]
}

func (v *vector) addVector(o *vector) {
	v.addSlice(o[:])
}

func (v *vector) sum() float32 {
	return ((v[0] + v[1]) + (v[2] + v[3])) + ((v[4] + v[5]) + (v[6] + v[7]))
}

func scalarSum(values []float32) float32 {
	var s float32
	for _, x := range values {
		s += x
	}
	return s
}
