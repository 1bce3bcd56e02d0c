// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"spectre/pkg/simd"
)

// Resampler maps a spectrum on the transform's linear bin axis onto a fixed
// number of display bins. Each display bin covers a frequency range and its
// value is the mean of the linear interpolant of the spectrum over that
// range.
type Resampler struct {
	borders []float64 // n+1 fractional input bin positions
	weights []float64 // 1/width of each display bin
	output  []float32
}

// NewResampler prepares resampling from a transform of transformLen bins
// (DC to Nyquist) to numBins display bins between minFreq and maxFreq.
// Display bins are geometrically spaced when logScale is set.
func NewResampler(transformLen int, sampleRate float64, numBins int, minFreq, maxFreq float64, logScale bool) (*Resampler, error) {
	switch {
	case transformLen < 2:
		return nil, fmt.Errorf("transform length must be at least 2, got %d", transformLen)
	case !(sampleRate > 0) || math.IsInf(sampleRate, 0):
		return nil, fmt.Errorf("invalid sample rate %v", sampleRate)
	case numBins < 1:
		return nil, fmt.Errorf("number of display bins must be positive, got %d", numBins)
	case math.IsNaN(minFreq) || math.IsNaN(maxFreq) || minFreq < 0:
		return nil, fmt.Errorf("invalid frequency range [%v, %v]", minFreq, maxFreq)
	case !(maxFreq > minFreq):
		return nil, fmt.Errorf("maximum frequency %v must exceed minimum %v", maxFreq, minFreq)
	case maxFreq > sampleRate/2:
		return nil, fmt.Errorf("maximum frequency %v exceeds Nyquist frequency %v", maxFreq, sampleRate/2)
	case logScale && minFreq == 0:
		return nil, fmt.Errorf("logarithmic axis needs a positive minimum frequency")
	}

	binWidth := (sampleRate / 2) / float64(transformLen-1)
	minBin := minFreq / binWidth
	maxBin := math.Min(maxFreq/binWidth, float64(transformLen-1))

	borders := make([]float64, numBins+1)
	for b := range numBins {
		x := float64(b) / float64(numBins)
		if logScale {
			borders[b] = minBin * math.Pow(maxBin/minBin, x)
		} else {
			borders[b] = minBin + x*(maxBin-minBin)
		}
	}
	borders[numBins] = maxBin

	weights := make([]float64, numBins)
	for i := range weights {
		width := borders[i+1] - borders[i]
		if !(width > 0) {
			return nil, fmt.Errorf("display bin %d has no width, too many bins for the range", i)
		}
		weights[i] = 1 / width
	}

	return &Resampler{
		borders: borders,
		weights: weights,
		output:  make([]float32, numBins),
	}, nil
}

// Width returns the number of display bins.
func (r *Resampler) Width() int { return len(r.output) }

// Borders returns the fractional input bin borders of the display bins.
func (r *Resampler) Borders() []float64 { return r.borders }

// Resample averages in over each display bin. in must cover the transform
// length given at construction. The returned slice is reused.
func (r *Resampler) Resample(in []float32) []float32 {
	for i := range r.output {
		r.output[i] = float32(integrate(in, r.borders[i], r.borders[i+1]) * r.weights[i])
	}
	return r.output
}

// integrate returns the integral of the linear interpolant of f between the
// fractional positions start and end, 0 <= start <= end <= len(f)-1.
func integrate(f []float32, start, end float64) float64 {
	afterStart := int(math.Ceil(start))
	beforeEnd := int(math.Floor(end))

	leftVal := sampleAt(f, start)
	rightVal := sampleAt(f, end)

	if beforeEnd < afterStart {
		// Within a single input bin.
		return 0.5 * (leftVal + rightVal) * (end - start)
	}

	// Partial bins on either side. A zero width contributes nothing, which
	// also keeps 0*(-Inf) out of silent spectra.
	var total float64
	if w := float64(afterStart) - start; w > 0 {
		total += 0.5 * (leftVal + float64(f[afterStart])) * w
	}
	if w := end - float64(beforeEnd); w > 0 {
		total += 0.5 * (float64(f[beforeEnd]) + rightVal) * w
	}

	// Whole bins in between, by the trapezoid rule.
	if beforeEnd > afterStart {
		total += 0.5*(float64(f[afterStart])+float64(f[beforeEnd])) +
			float64(simd.SumF32(f[afterStart+1:beforeEnd]))
	}
	return total
}

// sampleAt evaluates the linear interpolant of f at x.
func sampleAt(f []float32, x float64) float64 {
	i := int(math.Floor(x))
	frac := x - float64(i)
	if frac == 0 {
		return float64(f[i])
	}
	return (1-frac)*float64(f[i]) + frac*float64(f[i+1])
}
