// SPDX-License-Identifier: MIT
/*
Package display defines what the frame loop hands its results to.

A Display is told its width once per frame, then receives exactly one of
Render, ReportUnderrun or ReportOverrun. Close runs once on every exit path.
*/
package display

import (
	"errors"
	"math"
)

// Display consumes one analysis result per frame.
type Display interface {
	// Width returns the number of spectrum bins wanted this frame.
	Width() int
	// Render draws a spectrum of Width() values in dBFS.
	Render(spectrum []float32) error
	// ReportUnderrun signals that no new audio arrived since the last frame.
	ReportUnderrun() error
	// ReportOverrun signals that excess samples were overwritten while the
	// history was read.
	ReportOverrun(excess uint64) error
	Close() error
}

// Axis describes the frequency axis a display shows.
type Axis struct {
	MinFreq  float64
	MaxFreq  float64
	LogScale bool
}

// Centers returns the centre frequency of each of n equal-width bins, using
// the same spacing as the resampler borders.
func (a Axis) Centers(n int) []float64 {
	centers := make([]float64, n)
	for i := range centers {
		x := (float64(i) + 0.5) / float64(n)
		if a.LogScale {
			centers[i] = a.MinFreq * math.Pow(a.MaxFreq/a.MinFreq, x)
		} else {
			centers[i] = a.MinFreq + (a.MaxFreq-a.MinFreq)*x
		}
	}
	return centers
}

// tee fans every call out to several displays.
type tee struct {
	displays []Display
}

// Tee returns a Display that forwards to all of ds. Its width is the width
// of the first display.
func Tee(ds ...Display) Display {
	if len(ds) == 1 {
		return ds[0]
	}
	return &tee{displays: ds}
}

func (t *tee) Width() int {
	return t.displays[0].Width()
}

func (t *tee) each(f func(Display) error) error {
	var errs []error
	for _, d := range t.displays {
		if err := f(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *tee) Render(spectrum []float32) error {
	return t.each(func(d Display) error { return d.Render(spectrum) })
}

func (t *tee) ReportUnderrun() error {
	return t.each(Display.ReportUnderrun)
}

func (t *tee) ReportOverrun(excess uint64) error {
	return t.each(func(d Display) error { return d.ReportOverrun(excess) })
}

func (t *tee) Close() error {
	return t.each(Display.Close)
}
