// SPDX-License-Identifier: MIT
package audio

import "testing"

// recordingHandler logs every callback and answers with a scripted control.
type recordingHandler struct {
	processed   int
	sizes       []int
	rates       []float64
	quitOnSize  bool
	quitProcess bool
}

func (h *recordingHandler) Process(block []float32) Control {
	h.processed++
	if h.quitProcess {
		return Quit
	}
	return Continue
}

func (h *recordingHandler) BufferSizeChanged(frames int) Control {
	h.sizes = append(h.sizes, frames)
	if h.quitOnSize {
		return Quit
	}
	return Continue
}

func (h *recordingHandler) SampleRateChanged(rate float64) Control {
	h.rates = append(h.rates, rate)
	return Continue
}

func TestPortAudioCallbackReportsBlockLengthChange(t *testing.T) {
	h := &recordingHandler{}
	d := &PortAudioDriver{frames: 256, lastFrames: 256, handler: h}

	d.processInputStream(make([]float32, 256))
	d.processInputStream(make([]float32, 128))
	d.processInputStream(make([]float32, 128))

	if h.processed != 3 {
		t.Errorf("processed %d blocks, want 3", h.processed)
	}
	if len(h.sizes) != 1 || h.sizes[0] != 128 {
		t.Errorf("size changes = %v, want [128]", h.sizes)
	}
}

func TestPortAudioBindSeedsBlockLength(t *testing.T) {
	h := &recordingHandler{}
	d := &PortAudioDriver{frames: 512}
	d.stopped.Store(true)
	d.bind(h)

	d.processInputStream(make([]float32, 512))
	d.processInputStream(make([]float32, 512))
	if len(h.sizes) != 0 {
		t.Errorf("size changes = %v, want none for the configured length", h.sizes)
	}
	if h.processed != 2 {
		t.Errorf("processed %d blocks, want 2", h.processed)
	}

	d.processInputStream(make([]float32, 256))
	if len(h.sizes) != 1 || h.sizes[0] != 256 {
		t.Errorf("size changes = %v, want [256]", h.sizes)
	}
}

func TestPortAudioCallbackStopsAfterQuit(t *testing.T) {
	h := &recordingHandler{quitProcess: true}
	d := &PortAudioDriver{frames: 64, lastFrames: 64, handler: h}

	d.processInputStream(make([]float32, 64))
	d.processInputStream(make([]float32, 64))
	if h.processed != 1 {
		t.Errorf("processed %d blocks after Quit, want 1", h.processed)
	}

	h = &recordingHandler{quitOnSize: true}
	d = &PortAudioDriver{frames: 64, lastFrames: 64, handler: h}
	d.processInputStream(make([]float32, 4096))
	d.processInputStream(make([]float32, 4096))
	if h.processed != 0 || len(h.sizes) != 1 {
		t.Errorf("processed %d, sizes %v; want 0 and one change", h.processed, h.sizes)
	}
}

func TestNewPortAudioDriverRejectsBadFrames(t *testing.T) {
	if _, err := NewPortAudioDriver(PortAudioConfig{DeviceID: DefaultDeviceID}); err == nil {
		t.Error("expected error for zero frames per buffer")
	}
}
