// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"
	"time"

	"spectre/internal/analysis"
	"spectre/internal/display"
	"spectre/internal/log"
)

// LogDisplay writes a one-line summary of the spectrum to the log at most
// once per interval: the loudest bin and the level of each band.
type LogDisplay struct {
	width    int
	interval time.Duration
	centers  []float64
	bands    *analysis.BandMeter
	now      func() time.Time

	last      time.Time
	frames    uint64
	underruns uint64
	overruns  uint64
	excess    uint64
	sb        strings.Builder
}

var _ display.Display = (*LogDisplay)(nil)

// NewLogDisplay returns a LogDisplay of the given width on axis.
func NewLogDisplay(width int, axis display.Axis, interval time.Duration) (*LogDisplay, error) {
	if width <= 0 {
		return nil, fmt.Errorf("log display width must be positive, got %d", width)
	}
	centers := axis.Centers(width)
	log.Infof("transport: logging spectrum summaries every %s", interval)
	return &LogDisplay{
		width:    width,
		interval: interval,
		centers:  centers,
		bands:    analysis.NewBandMeter(analysis.DefaultBands, centers),
		now:      time.Now,
	}, nil
}

func (ld *LogDisplay) Width() int {
	return ld.width
}

func (ld *LogDisplay) Render(spectrum []float32) error {
	ld.frames++
	if len(spectrum) != ld.width {
		return fmt.Errorf("log display: got %d bins, want %d", len(spectrum), ld.width)
	}
	now := ld.now()
	if !ld.last.IsZero() && now.Sub(ld.last) < ld.interval {
		return nil
	}
	ld.last = now

	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}

	ld.sb.Reset()
	fmt.Fprintf(&ld.sb, "spectrum: peak %.1f Hz at %.1f dBFS |", ld.centers[peak], spectrum[peak])
	for _, band := range ld.bands.Measure(spectrum) {
		fmt.Fprintf(&ld.sb, " %s %.1f", band.Name, band.Level)
	}
	log.Infof("%s", ld.sb.String())
	return nil
}

func (ld *LogDisplay) ReportUnderrun() error {
	ld.underruns++
	log.Debugf("spectrum: underrun, no new audio")
	return nil
}

func (ld *LogDisplay) ReportOverrun(excess uint64) error {
	ld.overruns++
	ld.excess += excess
	log.Warnf("spectrum: overrun, %d samples lost while reading", excess)
	return nil
}

func (ld *LogDisplay) Close() error {
	log.Infof("spectrum: %d frames, %d underruns, %d overruns (%d samples lost)",
		ld.frames, ld.underruns, ld.overruns, ld.excess)
	return nil
}
