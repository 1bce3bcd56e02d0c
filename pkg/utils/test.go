// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"

	"spectre/internal/display"
)

// MockDisplay implements display.Display for testing. It records what the
// frame loop delivers instead of drawing it.
type MockDisplay struct {
	mu sync.Mutex

	DisplayWidth int
	LastSpectrum []float32
	Renders      int
	Underruns    int
	Overruns     int
	Excess       uint64
	Closed       bool

	// OnRender, if set, runs after each Render with the number of renders
	// so far.
	OnRender func(renders int)
}

var _ display.Display = (*MockDisplay)(nil)

// NewMockDisplay returns a MockDisplay of the given width.
func NewMockDisplay(width int) *MockDisplay {
	return &MockDisplay{DisplayWidth: width}
}

func (m *MockDisplay) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DisplayWidth
}

// Render stores a copy of the spectrum for later inspection.
func (m *MockDisplay) Render(spectrum []float32) error {
	m.mu.Lock()
	m.LastSpectrum = make([]float32, len(spectrum))
	copy(m.LastSpectrum, spectrum)
	m.Renders++
	renders, hook := m.Renders, m.OnRender
	m.mu.Unlock()

	if hook != nil {
		hook(renders)
	}
	return nil
}

func (m *MockDisplay) ReportUnderrun() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Underruns++
	return nil
}

func (m *MockDisplay) ReportOverrun(excess uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Overruns++
	m.Excess += excess
	return nil
}

func (m *MockDisplay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockDisplayState is a point-in-time copy of a MockDisplay.
type MockDisplayState struct {
	LastSpectrum []float32
	Renders      int
	Underruns    int
	Overruns     int
	Excess       uint64
	Closed       bool
}

// Snapshot returns a copy of the recorded state, safe to use while the
// display is still being driven.
func (m *MockDisplay) Snapshot() MockDisplayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockDisplayState{
		LastSpectrum: append([]float32(nil), m.LastSpectrum...),
		Renders:      m.Renders,
		Underruns:    m.Underruns,
		Overruns:     m.Overruns,
		Excess:       m.Excess,
		Closed:       m.Closed,
	}
}

func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at 0.9 of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	return GenerateSineWaveAt(0, size, sampleRate, frequency)
}

// GenerateSineWaveAt continues a sine from sample offset, so consecutive
// blocks join without a phase jump.
func GenerateSineWaveAt(offset, size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
