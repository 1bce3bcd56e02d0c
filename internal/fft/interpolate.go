// SPDX-License-Identifier: MIT
package fft

// Interpolate linearly upsamples input by stride into dst, which is grown
// when needed. The result has stride*(len(input)-1)+1 points; point i lies
// between input[i/stride] and input[i/stride+1] with weight
// (i%stride)/stride on the right neighbour.
func Interpolate(dst, input []float64, stride int) []float64 {
	if len(input) == 0 {
		return dst[:0]
	}
	n := stride*(len(input)-1) + 1
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = interpolateAt(input, stride, i)
	}
	return dst
}

func interpolateAt(input []float64, stride, i int) float64 {
	left, r := i/stride, i%stride
	if r == 0 {
		return input[left]
	}
	w := float64(r) / float64(stride)
	return (1-w)*input[left] + w*input[left+1]
}
