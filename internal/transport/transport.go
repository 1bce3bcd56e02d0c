// SPDX-License-Identifier: MIT
/*
Package transport publishes analysis frames outside the process.

Every publisher implements display.Display with a fixed width chosen at
construction, so it can be driven by analysis.Loop on its own or combined
with the terminal display through display.Tee.
*/
package transport

import (
	"math"

	"spectre/internal/analysis"
)

// Message types carried in the "type" field of every JSON message.
const (
	TypeHello    = "hello"
	TypeSpectrum = "spectrum"
	TypeStatus   = "status"
)

// DefaultFloor is the level sent for bins quieter than the floor, silent
// bins included. JSON has no encoding for -Inf.
const DefaultFloor = -120

// Hello is the first message a client receives after connecting.
type Hello struct {
	Type        string    `json:"type"`
	Session     string    `json:"session"`
	SampleRate  float64   `json:"sampleRate"`
	MinFreq     float64   `json:"minFreq"`
	MaxFreq     float64   `json:"maxFreq"`
	LogScale    bool      `json:"logScale"`
	Frequencies []float64 `json:"frequencies"`
}

// SpectrumMessage carries one rendered frame.
type SpectrumMessage struct {
	Type      string               `json:"type"`
	Seq       uint64               `json:"seq"`
	Timestamp int64                `json:"timestamp"` // unix milliseconds
	Spectrum  []float32            `json:"spectrum"`
	Bands     []analysis.BandLevel `json:"bands,omitempty"`
}

// StatusMessage reports a frame that produced no spectrum.
type StatusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Excess uint64 `json:"excess,omitempty"`
}

// clampFloor copies src into dst, raising every level below floor to floor.
func clampFloor(dst, src []float32, floor float32) []float32 {
	dst = append(dst[:0], src...)
	for i, v := range dst {
		if v < floor || math.IsNaN(float64(v)) {
			dst[i] = floor
		}
	}
	return dst
}

// clampBands is clampFloor for band levels.
func clampBands(dst, src []analysis.BandLevel, floor float64) []analysis.BandLevel {
	dst = append(dst[:0], src...)
	for i := range dst {
		if dst[i].Level < floor || math.IsNaN(dst[i].Level) {
			dst[i].Level = floor
		}
	}
	return dst
}
