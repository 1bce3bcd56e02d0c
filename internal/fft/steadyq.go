// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math"

	"spectre/pkg/bitint"
)

// MaxUnits bounds the number of FFTs in a Steady-Q transform.
const MaxUnits = 11

// Reference frequencies of the audible band. Unit optimal frequencies are
// spaced by octaves around their geometric mean.
const (
	lowRefHz  = 20.0
	highRefHz = 20000.0
)

// ErrTooManyUnits is returned when the requested resolutions would need more
// than MaxUnits FFTs.
var ErrTooManyUnits = errors.New("steady-q transform needs too many FFT units")

// SteadyQConfig describes a Steady-Q transform.
type SteadyQConfig struct {
	ResolutionAt20Hz      float64 // Hz; sets the widest FFT
	TimeResolutionAt20kHz float64 // ms; sets the narrowest FFT
	SampleRate            float64 // Hz
	Window                Window
	Engine                Engine
	RemoveDC              bool
}

// transition blends unit k into unit k+1 over merged bins [start, end).
type transition struct {
	start, end int
	weights    []float64 // weight of unit k+1, one per bin
}

// SteadyQ approximates a constant-Q spectrum by blending FFTs whose lengths
// halve from one unit to the next. Each unit is authoritative around its
// optimal bin; between two optimal bins the blend weight moves from one unit
// to the next linearly in log frequency.
type SteadyQ struct {
	units       []*Unit
	optimalBins []float64
	transitions []transition

	powers    [][]float64 // per unit, |c|^2
	merged    []float64
	magnitude []float32
}

// UnitLengths computes the widest and narrowest FFT lengths and the number of
// units for cfg without allocating any of them.
func UnitLengths(cfg SteadyQConfig) (lenLow, lenHigh, numUnits int, err error) {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"frequency resolution", cfg.ResolutionAt20Hz},
		{"time resolution", cfg.TimeResolutionAt20kHz},
		{"sample rate", cfg.SampleRate},
	} {
		if !(v.value > 0) || math.IsInf(v.value, 0) {
			return 0, 0, 0, fmt.Errorf("%s must be positive and finite, got %v", v.name, v.value)
		}
	}

	lenLow, err = LengthFor(cfg.SampleRate, cfg.ResolutionAt20Hz)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %w", ErrTooManyUnits, err)
	}

	samples := cfg.TimeResolutionAt20kHz * cfg.SampleRate / 1000
	lenHigh = 2
	if samples >= 2 {
		lenHigh = bitint.PrevPowerOfTwo(int(math.Min(samples, 1<<30)))
	}

	if lenHigh >= lenLow {
		return lenLow, lenLow, 1, nil
	}
	numUnits = bitint.Log2(lenLow) - bitint.Log2(lenHigh) + 1
	if numUnits > MaxUnits {
		return 0, 0, 0, fmt.Errorf("%w: %d units (FFT lengths %d down to %d), at most %d allowed",
			ErrTooManyUnits, numUnits, lenLow, lenHigh, MaxUnits)
	}
	return lenLow, lenHigh, numUnits, nil
}

// NewSteadyQ builds the units and transition weights for cfg.
func NewSteadyQ(cfg SteadyQConfig) (*SteadyQ, error) {
	lenLow, _, numUnits, err := UnitLengths(cfg)
	if err != nil {
		return nil, err
	}

	q := &SteadyQ{
		units:       make([]*Unit, numUnits),
		optimalBins: make([]float64, numUnits),
		powers:      make([][]float64, numUnits),
		merged:      make([]float64, lenLow/2+1),
		magnitude:   make([]float32, lenLow/2+1),
	}

	center := math.Sqrt(lowRefHz * highRefHz)
	for k := range numUnits {
		unit, err := NewUnit(lenLow>>k, cfg.Window, cfg.Engine)
		if err != nil {
			return nil, err
		}
		unit.RemoveDC = cfg.RemoveDC
		q.units[k] = unit
		q.powers[k] = make([]float64, unit.OutputLen())

		freq := center * math.Exp2(float64(k)-float64(numUnits-1)/2)
		q.optimalBins[k] = freq * float64(lenLow) / cfg.SampleRate
	}

	for k := 0; k+1 < numUnits; k++ {
		lo, hi := q.optimalBins[k], q.optimalBins[k+1]
		start := min(int(math.Ceil(lo)), len(q.merged))
		end := min(int(math.Ceil(hi)), len(q.merged))
		weights := make([]float64, max(end-start, 0))
		span := math.Log2(hi) - math.Log2(lo)
		for i := range weights {
			w := (math.Log2(float64(start+i)) - math.Log2(lo)) / span
			weights[i] = math.Max(0, math.Min(1, w))
		}
		q.transitions = append(q.transitions, transition{start: start, end: end, weights: weights})
	}

	return q, nil
}

// Input returns the buffer the caller fills with the latest samples. Its
// length is the widest unit's length.
func (q *SteadyQ) Input() []float32 { return q.units[0].Input() }

// OutputLen returns the number of output bins.
func (q *SteadyQ) OutputLen() int { return len(q.magnitude) }

// Units returns the FFT length of each unit, widest first.
func (q *SteadyQ) Units() []int {
	lens := make([]int, len(q.units))
	for i, u := range q.units {
		lens[i] = u.Len()
	}
	return lens
}

// OptimalBins returns each unit's optimal bin on the merged axis.
func (q *SteadyQ) OptimalBins() []float64 {
	return append([]float64(nil), q.optimalBins...)
}

// Compute transforms the current input and returns dBFS magnitudes on the
// widest unit's bin axis. The returned slice is reused by the next call.
func (q *SteadyQ) Compute() []float32 {
	widest := q.units[0]
	widest.PrepareInput()

	// Narrower units see the most recent part of the window. The widest one
	// is windowed last because windowing overwrites its input.
	src := widest.Input()
	for k := 1; k < len(q.units); k++ {
		u := q.units[k]
		copy(u.Input(), src[len(src)-u.Len():])
		u.WindowAndCompute()
	}
	widest.WindowAndCompute()

	for k, u := range q.units {
		computePower(u.Output(), q.powers[k])
	}

	q.merge()

	for i, p := range q.merged {
		q.magnitude[i] = float32(10 * math.Log10(p))
	}
	return q.magnitude
}

func (q *SteadyQ) merge() {
	if len(q.units) == 1 {
		copy(q.merged, q.powers[0])
		return
	}

	first := q.transitions[0].start
	copy(q.merged[:first], q.powers[0][:first])

	for k, tr := range q.transitions {
		left, right := q.powers[k], q.powers[k+1]
		leftStride, rightStride := 1<<k, 2<<k
		for i, w := range tr.weights {
			bin := tr.start + i
			a := interpolateAt(left, leftStride, bin)
			b := interpolateAt(right, rightStride, bin)
			q.merged[bin] = (1-w)*a + w*b
		}
	}

	last := len(q.units) - 1
	narrowest, stride := q.powers[last], 1<<last
	for bin := q.transitions[len(q.transitions)-1].end; bin < len(q.merged); bin++ {
		q.merged[bin] = interpolateAt(narrowest, stride, bin)
	}
}
