// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands splits the audible range the way mixing engineers usually do.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: 20000},
}

// BandLevel is the mean level of one band in dBFS.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// BandMeter summarizes a display spectrum into per-band levels. Levels are
// averaged in the power domain.
type BandMeter struct {
	bands  []FrequencyBand
	index  []int // band of each display bin, -1 if none
	counts []int
	power  []float64
	levels []BandLevel
}

// NewBandMeter assigns each display bin, given by its centre frequency, to
// the band containing it.
func NewBandMeter(bands []FrequencyBand, centers []float64) *BandMeter {
	m := &BandMeter{
		bands:  bands,
		index:  make([]int, len(centers)),
		counts: make([]int, len(bands)),
		power:  make([]float64, len(bands)),
		levels: make([]BandLevel, len(bands)),
	}
	for i, freq := range centers {
		m.index[i] = -1
		for b, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				m.index[i] = b
				m.counts[b]++
				break
			}
		}
	}
	for b, band := range bands {
		m.levels[b].Name = band.Name
	}
	return m
}

// Measure returns the level of every band for spectrum. Bands without any
// display bin read -Inf. The returned slice is reused.
func (m *BandMeter) Measure(spectrum []float32) []BandLevel {
	clear(m.power)
	for i, db := range spectrum {
		if i >= len(m.index) {
			break
		}
		if b := m.index[i]; b >= 0 {
			m.power[b] += math.Pow(10, float64(db)/10)
		}
	}
	for b := range m.levels {
		if m.counts[b] == 0 {
			m.levels[b].Level = math.Inf(-1)
			continue
		}
		m.levels[b].Level = 10 * math.Log10(m.power[b]/float64(m.counts[b]))
	}
	return m.levels
}
