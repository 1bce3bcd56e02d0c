// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"

	godsp "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// RealFFT computes the non-negative half spectrum of a real sequence.
// Coefficients follows gonum's convention: dst must have Len()/2+1
// elements, or be nil to allocate.
type RealFFT interface {
	Len() int
	Coefficients(dst []complex128, seq []float64) []complex128
}

// Engine selects the FFT implementation backing each unit.
type Engine int

const (
	// EngineGonum uses gonum's dsp/fourier. It does not allocate per call.
	EngineGonum Engine = iota
	// EngineGoDSP uses mjibson/go-dsp. It allocates a full complex
	// spectrum per call and is kept for cross-checking.
	EngineGoDSP
)

// ParseEngine maps an engine name to an Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return EngineGonum, nil
	case "godsp", "go-dsp":
		return EngineGoDSP, nil
	default:
		return 0, fmt.Errorf("unknown FFT engine %q", name)
	}
}

func (e Engine) String() string {
	switch e {
	case EngineGonum:
		return "gonum"
	case EngineGoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("Engine(%d)", int(e))
	}
}

// New plans a transform of length n.
func (e Engine) New(n int) RealFFT {
	if e == EngineGoDSP {
		return goDSPFFT{n: n}
	}
	return fourier.NewFFT(n)
}

type goDSPFFT struct {
	n int
}

func (f goDSPFFT) Len() int { return f.n }

func (f goDSPFFT) Coefficients(dst []complex128, seq []float64) []complex128 {
	if len(seq) != f.n {
		panic("fft: sequence length mismatch")
	}
	if dst == nil {
		dst = make([]complex128, f.n/2+1)
	} else if len(dst) != f.n/2+1 {
		panic("fft: destination length mismatch")
	}
	copy(dst, godsp.FFTReal(seq))
	return dst
}
