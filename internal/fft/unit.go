// SPDX-License-Identifier: MIT
/*
Package fft implements the spectral transforms: a single windowed real FFT
(Unit) and the Steady-Q transform, which blends several radix-2 FFTs of
octave-spaced lengths to approximate constant-Q resolution.

Samples are float32 end to end; the FFT itself runs in float64. All buffers
are allocated at construction, so Compute does not allocate with the gonum
engine.
*/
package fft

import (
	"errors"
	"fmt"
	"math"

	"spectre/pkg/bitint"
	"spectre/pkg/simd"
)

// MaxLength is the longest FFT a Unit may plan.
const MaxLength = 1 << 21

// ErrTooLong is returned for FFT lengths above MaxLength.
var ErrTooLong = errors.New("FFT length exceeds the supported maximum")

// LengthFor returns the shortest power-of-two FFT length, at least 2, whose
// bin spacing at sampleRate is no coarser than resolution.
func LengthFor(sampleRate, resolution float64) (int, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return 0, fmt.Errorf("sample rate must be positive and finite, got %v", sampleRate)
	}
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return 0, fmt.Errorf("frequency resolution must be positive and finite, got %v", resolution)
	}
	n := math.Ceil(sampleRate / resolution)
	if n > MaxLength {
		return 0, fmt.Errorf("%w: %v Hz at %v Hz needs %.0f points, at most %d allowed",
			ErrTooLong, resolution, sampleRate, n, MaxLength)
	}
	return max(bitint.NextPowerOfTwo(int(n)), 2), nil
}

// Unit is one windowed real FFT of a fixed power-of-two length.
type Unit struct {
	// RemoveDC subtracts the input mean in PrepareInput.
	RemoveDC bool

	input     []float32
	window    []float32 // scaled so a full-scale sine peaks at 0 dBFS
	scratch   []float64
	output    []complex128
	magnitude []float32
	fft       RealFFT
}

// NewUnit plans an FFT of the given size. The window is normalized by
// 2/sum(window).
func NewUnit(size int, window Window, engine Engine) (*Unit, error) {
	if size < 2 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("FFT size must be a power of two >= 2, got %d", size)
	}
	if size > MaxLength {
		return nil, fmt.Errorf("%w: %d", ErrTooLong, size)
	}
	coeffs := window.Coefficients(size)
	sum := simd.SumF32(coeffs)
	if !(sum > 0) {
		return nil, fmt.Errorf("window %v has no energy at size %d", window, size)
	}
	scale := 2 / sum
	for i := range coeffs {
		coeffs[i] *= scale
	}

	return &Unit{
		input:     make([]float32, size),
		window:    coeffs,
		scratch:   make([]float64, size),
		output:    make([]complex128, size/2+1),
		magnitude: make([]float32, size/2+1),
		fft:       engine.New(size),
	}, nil
}

// Input returns the buffer the caller fills before each transform.
func (u *Unit) Input() []float32 { return u.input }

// Len returns the FFT length.
func (u *Unit) Len() int { return len(u.input) }

// OutputLen returns the number of spectrum bins, Len()/2+1.
func (u *Unit) OutputLen() int { return len(u.output) }

// Output returns the complex spectrum of the last WindowAndCompute.
func (u *Unit) Output() []complex128 { return u.output }

// PrepareInput removes the DC offset when enabled.
func (u *Unit) PrepareInput() {
	if !u.RemoveDC {
		return
	}
	mean := simd.SumF32(u.input) / float32(len(u.input))
	for i := range u.input {
		u.input[i] -= mean
	}
}

// WindowAndCompute applies the window in place and runs the FFT. The input
// holds the windowed signal afterwards.
func (u *Unit) WindowAndCompute() {
	for i, w := range u.window {
		u.input[i] *= w
		u.scratch[i] = float64(u.input[i])
	}
	u.fft.Coefficients(u.output, u.scratch)
}

// Compute runs the whole single-FFT transform and returns dBFS magnitudes.
// The returned slice is reused by the next call.
func (u *Unit) Compute() []float32 {
	u.PrepareInput()
	u.WindowAndCompute()
	return ComputeMagnitudes(u.output, u.magnitude)
}

// ComputeMagnitudes writes 10*log10(|c|^2) of each coefficient into target
// and returns it.
func ComputeMagnitudes(output []complex128, target []float32) []float32 {
	target = target[:len(output)]
	for i, c := range output {
		target[i] = float32(10 * math.Log10(real(c)*real(c)+imag(c)*imag(c)))
	}
	return target
}

// computePower writes |c|^2 of each coefficient into target.
func computePower(output []complex128, target []float64) {
	for i, c := range output {
		target[i] = real(c)*real(c) + imag(c)*imag(c)
	}
}
