// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

const signMask = 1 << 31

// LevelMeter tracks the input peak between two readouts. Observe runs on the
// audio thread, Peak on the analysis thread.
type LevelMeter struct {
	peak atomic.Uint32 // float32 bits of the largest absolute sample
}

// Observe folds a block into the running peak. For non-negative floats the
// IEEE bit patterns order the same way as the values, so the comparison is
// done on integers after clearing the sign bit.
func (m *LevelMeter) Observe(block []float32) {
	var peak uint32
	for _, s := range block {
		amplitude := math.Float32bits(s) &^ signMask
		if amplitude > peak {
			peak = amplitude
		}
	}
	for {
		old := m.peak.Load()
		if peak <= old || m.peak.CompareAndSwap(old, peak) {
			return
		}
	}
}

// Peak returns the largest absolute sample since the previous call and
// resets the meter.
func (m *LevelMeter) Peak() float32 {
	return math.Float32frombits(m.peak.Swap(0))
}

// PeakDBFS is Peak expressed in dB relative to full scale.
func (m *LevelMeter) PeakDBFS() float64 {
	return 20 * math.Log10(float64(m.Peak()))
}
