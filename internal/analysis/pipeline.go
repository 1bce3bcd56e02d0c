// SPDX-License-Identifier: MIT
/*
Package analysis turns the audio history into display-ready spectra.

Each frame the Pipeline reads the latest samples into the transform input,
classifies the read (fresh data, underrun, overrun), computes the transform
and resamples it to the display width. Loop drives a Pipeline at a bounded
frame rate for displays that do not own an event loop.
*/
package analysis

import (
	"errors"
	"fmt"

	"spectre/internal/display"
	"spectre/internal/log"
	"spectre/pkg/rthistory"
)

// Transform is a spectral transform with an input buffer filled in place.
// Satisfied by *fft.SteadyQ and *fft.Unit.
type Transform interface {
	Input() []float32
	OutputLen() int
	// Compute returns dBFS magnitudes on a linear axis from DC to Nyquist.
	Compute() []float32
}

// Source provides the latest audio samples. Satisfied by *audio.Session.
// An *rthistory.Overrun error is transient; any other error is fatal.
type Source interface {
	ReadHistory(target []float32) (uint64, error)
}

// Recorder receives the analyzed signal. Satisfied by *audio.Recorder.
type Recorder interface {
	Append(window []float32, fresh int) error
}

// Status classifies a frame.
type Status int

const (
	StatusOK Status = iota
	StatusUnderrun
	StatusOverrun
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnderrun:
		return "underrun"
	case StatusOverrun:
		return "overrun"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Frame is the outcome of one Pipeline step.
type Frame struct {
	Status   Status
	Clock    uint64    // writer clock at the read
	Excess   uint64    // overwritten samples, StatusOverrun only
	Spectrum []float32 // display bins, StatusOK only; reused by the next step
}

// Deliver hands the frame to d.
func (f Frame) Deliver(d display.Display) error {
	switch f.Status {
	case StatusUnderrun:
		return d.ReportUnderrun()
	case StatusOverrun:
		return d.ReportOverrun(f.Excess)
	default:
		return d.Render(f.Spectrum)
	}
}

// PipelineConfig sets the displayed frequency axis.
type PipelineConfig struct {
	MinFreq  float64
	MaxFreq  float64
	LogScale bool
}

// Pipeline connects a Source to a Transform and a Resampler.
type Pipeline struct {
	src        Source
	transform  Transform
	sampleRate float64
	cfg        PipelineConfig

	resampler *Resampler
	lastClock uint64
	recorder  Recorder
}

// NewPipeline validates the axis against the transform and sample rate.
func NewPipeline(src Source, transform Transform, sampleRate float64, cfg PipelineConfig) (*Pipeline, error) {
	if _, err := NewResampler(transform.OutputLen(), sampleRate, 1, cfg.MinFreq, cfg.MaxFreq, cfg.LogScale); err != nil {
		return nil, fmt.Errorf("invalid display axis: %w", err)
	}
	return &Pipeline{
		src:        src,
		transform:  transform,
		sampleRate: sampleRate,
		cfg:        cfg,
	}, nil
}

// SetRecorder attaches a recorder fed with every freshly analyzed sample.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// Axis returns the displayed frequency axis.
func (p *Pipeline) Axis() display.Axis {
	return display.Axis{MinFreq: p.cfg.MinFreq, MaxFreq: p.cfg.MaxFreq, LogScale: p.cfg.LogScale}
}

// Step runs one frame at the given display width. Only fatal conditions are
// returned as errors.
func (p *Pipeline) Step(width int) (Frame, error) {
	if p.resampler == nil || p.resampler.Width() != width {
		r, err := NewResampler(p.transform.OutputLen(), p.sampleRate, width,
			p.cfg.MinFreq, p.cfg.MaxFreq, p.cfg.LogScale)
		if err != nil {
			return Frame{}, fmt.Errorf("failed to resize display to %d bins: %w", width, err)
		}
		p.resampler = r
	}

	input := p.transform.Input()
	clock, err := p.src.ReadHistory(input)
	if err != nil {
		var overrun *rthistory.Overrun
		if errors.As(err, &overrun) {
			p.lastClock = clock
			return Frame{Status: StatusOverrun, Clock: clock, Excess: overrun.ExcessEntries}, nil
		}
		return Frame{}, err
	}
	if clock == p.lastClock {
		return Frame{Status: StatusUnderrun, Clock: clock}, nil
	}
	fresh := clock - p.lastClock
	p.lastClock = clock

	if p.recorder != nil {
		if err := p.recorder.Append(input, int(min(fresh, uint64(len(input))))); err != nil {
			log.Errorf("analysis: recording stopped: %v", err)
			p.recorder = nil
		}
	}

	spectrum := p.resampler.Resample(p.transform.Compute())
	return Frame{Status: StatusOK, Clock: clock, Spectrum: spectrum}, nil
}
