// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Window selects the tapering applied before each FFT.
type Window int

const (
	Rectangular Window = iota
	Triangular
	Hann
	Hamming
	Blackman
	Nuttall
	BartlettHann
	BlackmanNuttall
	BlackmanHarris
	FlatTop
	Lanczos
)

var windowNames = map[string]Window{
	"rectangular":     Rectangular,
	"triangular":      Triangular,
	"hann":            Hann,
	"hanning":         Hann,
	"hamming":         Hamming,
	"blackman":        Blackman,
	"nuttall":         Nuttall,
	"bartletthann":    BartlettHann,
	"blackmannuttall": BlackmanNuttall,
	"blackmanharris":  BlackmanHarris,
	"flattop":         FlatTop,
	"lanczos":         Lanczos,
}

var windowFuncs = [...]func([]float64) []float64{
	Rectangular:     window.Rectangular,
	Triangular:      window.Triangular,
	Hann:            window.Hann,
	Hamming:         window.Hamming,
	Blackman:        window.Blackman,
	Nuttall:         window.Nuttall,
	BartlettHann:    window.BartlettHann,
	BlackmanNuttall: window.BlackmanNuttall,
	BlackmanHarris:  window.BlackmanHarris,
	FlatTop:         window.FlatTop,
	Lanczos:         window.Lanczos,
}

// ParseWindow maps a case-insensitive window name to a Window. Unknown names
// are an error.
func ParseWindow(name string) (Window, error) {
	w, ok := windowNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown window function %q", name)
	}
	return w, nil
}

func (w Window) String() string {
	for name, v := range windowNames {
		if v == w && name != "hanning" {
			return name
		}
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// Coefficients returns n window coefficients.
func (w Window) Coefficients(n int) []float32 {
	seq := make([]float64, n)
	for i := range seq {
		seq[i] = 1
	}
	if int(w) >= 0 && int(w) < len(windowFuncs) {
		windowFuncs[w](seq)
	}
	out := make([]float32, n)
	for i, v := range seq {
		out[i] = float32(v)
	}
	return out
}
