// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"testing"

	"spectre/internal/audio"
	"spectre/internal/fft"
	"spectre/pkg/rthistory"
	"spectre/pkg/utils"
)

type read struct {
	clock uint64
	err   error
}

// scriptedSource replays a fixed sequence of reads.
type scriptedSource struct {
	reads []read
	fill  float32
}

func (s *scriptedSource) ReadHistory(target []float32) (uint64, error) {
	r := s.reads[0]
	s.reads = s.reads[1:]
	for i := range target {
		target[i] = s.fill
	}
	return r.clock, r.err
}

// flatTransform returns a constant spectrum.
type flatTransform struct {
	input   []float32
	out     []float32
	calls   int
	lastIn0 float32
}

func newFlatTransform(inputLen, outputLen int, level float32) *flatTransform {
	out := make([]float32, outputLen)
	for i := range out {
		out[i] = level
	}
	return &flatTransform{input: make([]float32, inputLen), out: out}
}

func (f *flatTransform) Input() []float32 { return f.input }
func (f *flatTransform) OutputLen() int { return len(f.out) }
func (f *flatTransform) Compute() []float32 {
	f.calls++
	f.lastIn0 = f.input[0]
	return f.out
}

type appendCall struct {
	fresh int
	first float32
}

type fakeRecorder struct {
	calls []appendCall
	err   error
}

func (r *fakeRecorder) Append(window []float32, fresh int) error {
	r.calls = append(r.calls, appendCall{fresh: fresh, first: window[0]})
	return r.err
}

var testAxis = PipelineConfig{MinFreq: 20, MaxFreq: 20000, LogScale: true}

func TestNewPipelineRejectsBadAxis(t *testing.T) {
	tr := newFlatTransform(64, 33, 0)
	if _, err := NewPipeline(&scriptedSource{}, tr, 44100, PipelineConfig{MinFreq: 0, MaxFreq: 20000, LogScale: true}); err == nil {
		t.Error("expected error for log axis from 0 Hz")
	}
	if _, err := NewPipeline(&scriptedSource{}, tr, 44100, PipelineConfig{MinFreq: 20, MaxFreq: 30000}); err == nil {
		t.Error("expected error for max above Nyquist")
	}
}

func TestPipelineClassifiesFrames(t *testing.T) {
	src := &scriptedSource{reads: []read{
		{0, nil},   // nothing yet
		{512, nil}, // fresh
		{512, nil}, // same clock
		{900, &rthistory.Overrun{Clock: 900, ExcessEntries: 17}},
		{900, nil},  // nothing since the overrun
		{1000, nil}, // fresh again
	}, fill: 0.25}
	tr := newFlatTransform(64, 33, -12)
	p, err := NewPipeline(src, tr, 44100, testAxis)
	if err != nil {
		t.Fatal(err)
	}

	want := []Status{StatusUnderrun, StatusOK, StatusUnderrun, StatusOverrun, StatusUnderrun, StatusOK}
	for i, status := range want {
		frame, err := p.Step(10)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if frame.Status != status {
			t.Errorf("step %d: status %v, want %v", i, frame.Status, status)
		}
		switch frame.Status {
		case StatusOverrun:
			if frame.Excess != 17 {
				t.Errorf("step %d: excess %d, want 17", i, frame.Excess)
			}
		case StatusOK:
			if len(frame.Spectrum) != 10 {
				t.Fatalf("step %d: %d bins, want 10", i, len(frame.Spectrum))
			}
			for _, v := range frame.Spectrum {
				if v < -12.01 || v > -11.99 {
					t.Errorf("step %d: bin %v, want -12", i, v)
				}
			}
		}
	}
	if tr.calls != 2 {
		t.Errorf("transform computed %d times, want 2", tr.calls)
	}
	if tr.lastIn0 != 0.25 {
		t.Errorf("transform saw input %v, want 0.25", tr.lastIn0)
	}
}

func TestPipelineFatalError(t *testing.T) {
	src := &scriptedSource{reads: []read{{0, audio.SampleRateChanged}}}
	p, err := NewPipeline(src, newFlatTransform(64, 33, 0), 44100, testAxis)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Step(10); !errors.Is(err, audio.SampleRateChanged) {
		t.Errorf("Step error = %v, want SampleRateChanged", err)
	}
}

func TestPipelineResizes(t *testing.T) {
	src := &scriptedSource{reads: []read{{1, nil}, {2, nil}, {3, nil}}}
	p, err := NewPipeline(src, newFlatTransform(64, 33, 0), 44100, testAxis)
	if err != nil {
		t.Fatal(err)
	}
	for _, width := range []int{10, 25, 25} {
		frame, err := p.Step(width)
		if err != nil {
			t.Fatal(err)
		}
		if len(frame.Spectrum) != width {
			t.Errorf("width %d: got %d bins", width, len(frame.Spectrum))
		}
	}
	if _, err := p.Step(0); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestPipelineRecordsFreshSamples(t *testing.T) {
	src := &scriptedSource{reads: []read{{40, nil}, {40, nil}, {1000, nil}, {1010, nil}}, fill: 1}
	p, err := NewPipeline(src, newFlatTransform(64, 33, 0), 44100, testAxis)
	if err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecorder{}
	p.SetRecorder(rec)
	for range 4 {
		if _, err := p.Step(4); err != nil {
			t.Fatal(err)
		}
	}

	want := []int{40, 64, 10}
	if len(rec.calls) != len(want) {
		t.Fatalf("recorder called %d times, want %d", len(rec.calls), len(want))
	}
	for i, w := range want {
		if rec.calls[i].fresh != w {
			t.Errorf("append %d: fresh %d, want %d", i, rec.calls[i].fresh, w)
		}
		// Recording happens before the transform touches the window.
		if rec.calls[i].first != 1 {
			t.Errorf("append %d saw a modified window", i)
		}
	}
}

func TestPipelineDropsFailingRecorder(t *testing.T) {
	src := &scriptedSource{reads: []read{{1, nil}, {2, nil}}}
	p, err := NewPipeline(src, newFlatTransform(64, 33, 0), 44100, testAxis)
	if err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecorder{err: errors.New("disk full")}
	p.SetRecorder(rec)
	p.Step(4)
	p.Step(4)
	if len(rec.calls) != 1 {
		t.Errorf("recorder called %d times after failing, want 1", len(rec.calls))
	}
}

func TestFrameDeliver(t *testing.T) {
	md := utils.NewMockDisplay(3)
	Frame{Status: StatusOK, Spectrum: []float32{1, 2, 3}}.Deliver(md)
	Frame{Status: StatusUnderrun}.Deliver(md)
	Frame{Status: StatusOverrun, Excess: 5}.Deliver(md)

	snap := md.Snapshot()
	if snap.Renders != 1 || snap.Underruns != 1 || snap.Overruns != 1 || snap.Excess != 5 {
		t.Errorf("unexpected display state %+v", snap)
	}
}

// manualDriver lets the test play the audio thread synchronously.
type manualDriver struct {
	rate    float64
	frames  int
	handler audio.Handler
}

func (d *manualDriver) SampleRate() float64 { return d.rate }
func (d *manualDriver) BufferSize() int { return d.frames }
func (d *manualDriver) Close() error { return nil }
func (d *manualDriver) Activate(h audio.Handler) error {
	d.handler = h
	return nil
}

// A 1 kHz sine through the session, Steady-Q and a 100-bin log axis peaks
// in the display bin containing 1 kHz.
func TestPipelineEndToEndSine(t *testing.T) {
	const (
		rate   = 44100
		frames = 512
	)
	q, err := fft.NewSteadyQ(fft.SteadyQConfig{
		ResolutionAt20Hz:      4,
		TimeResolutionAt20kHz: 2,
		SampleRate:            rate,
		Window:                fft.Hann,
		Engine:                fft.EngineGonum,
		RemoveDC:              true,
	})
	if err != nil {
		t.Fatal(err)
	}
	drv := &manualDriver{rate: rate, frames: frames}
	session, err := audio.Start(drv, len(q.Input()))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(session, q, session.SampleRate(), testAxis)
	if err != nil {
		t.Fatal(err)
	}

	for offset := 0; offset < 2*len(q.Input()); offset += frames {
		drv.handler.Process(utils.GenerateSineWaveAt(offset, frames, rate, 1000))
	}

	frame, err := p.Step(100)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Status != StatusOK {
		t.Fatalf("status %v, want ok", frame.Status)
	}
	// Bin i spans 20*1000^(i/100) .. 20*1000^((i+1)/100) Hz; 1 kHz falls in 56.
	peak := utils.FindPeakBin(frame.Spectrum, 0, len(frame.Spectrum)-1)
	if peak < 55 || peak > 57 {
		t.Errorf("peak in display bin %d, want 56±1", peak)
	}

	frame, err = p.Step(100)
	if err != nil || frame.Status != StatusUnderrun {
		t.Errorf("second step = (%v, %v), want underrun", frame.Status, err)
	}
}
