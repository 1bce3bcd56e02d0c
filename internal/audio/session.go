// SPDX-License-Identifier: MIT
/*
Package audio connects an audio driver to the analysis thread.

The driver calls a Handler on its own audio thread. The handler writes every
block into a lock-free history ring and reports fatal conditions through an
atomic error bitmask; it never blocks, never allocates on the sample path and
never lets a panic escape into the driver.

The analysis thread reads "the latest N samples" through Session.ReadHistory,
which also surfaces pending fatal errors.
*/
package audio

import (
	"errors"
	"fmt"

	"spectre/internal/log"
	"spectre/pkg/rthistory"
)

// Handler receives callbacks from a Driver on the audio thread.
type Handler interface {
	// Process receives one block of mono samples.
	Process(block []float32) Control
	// BufferSizeChanged announces the length of the following blocks.
	BufferSizeChanged(frames int) Control
	// SampleRateChanged announces a new device sample rate.
	SampleRateChanged(rate float64) Control
}

// Driver is an audio source that delivers mono blocks to a Handler.
type Driver interface {
	SampleRate() float64
	BufferSize() int
	// Activate starts delivery. The handler may be called as soon as
	// Activate is entered.
	Activate(h Handler) error
	Close() error
}

// ErrInvalidHistoryLen is returned by Start for a non-positive history length.
var ErrInvalidHistoryLen = errors.New("history length must be positive")

// Session is an active audio stream feeding a history ring.
type Session struct {
	driver     Driver
	history    *rthistory.Output
	errors     *ErrorOutput
	level      *LevelMeter
	sampleRate float64
}

// handler is the audio-thread half of a Session. Callback arguments are
// staged in fields so the pre-bound bodies run through HandlePanics without
// allocating a closure per call.
type handler struct {
	history    *rthistory.Input
	errors     ErrorInput
	level      *LevelMeter
	sampleRate float64
	capacity   int

	block  []float32
	frames int
	rate   float64

	processBody    func() Control
	bufferSizeBody func() Control
	sampleRateBody func() Control
}

// Start creates the history ring and error channel and activates driver.
// The history holds at least twice historyLen samples and at least four
// device buffers.
func Start(driver Driver, historyLen int) (*Session, error) {
	if historyLen <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHistoryLen, historyLen)
	}
	capacity := max(2*historyLen, 4*driver.BufferSize())

	in, out, err := rthistory.New(capacity)
	if err != nil {
		return nil, err
	}
	errIn, errOut := NewErrorChannel()
	level := &LevelMeter{}
	sampleRate := driver.SampleRate()

	h := &handler{
		history:    in,
		errors:     errIn,
		level:      level,
		sampleRate: sampleRate,
		capacity:   capacity,
	}
	h.processBody = h.process
	h.bufferSizeBody = h.bufferSizeChanged
	h.sampleRateBody = h.sampleRateChanged

	log.Debugf("audio: history capacity %d samples at %.0f Hz", capacity, sampleRate)

	if err := driver.Activate(h); err != nil {
		return nil, fmt.Errorf("failed to activate audio driver: %w", err)
	}

	return &Session{
		driver:     driver,
		history:    out,
		errors:     errOut,
		level:      level,
		sampleRate: sampleRate,
	}, nil
}

func (h *handler) Process(block []float32) Control {
	h.block = block
	ctl := h.errors.HandlePanics(h.processBody)
	h.block = nil
	return ctl
}

func (h *handler) BufferSizeChanged(frames int) Control {
	h.frames = frames
	return h.errors.HandlePanics(h.bufferSizeBody)
}

func (h *handler) SampleRateChanged(rate float64) Control {
	h.rate = rate
	return h.errors.HandlePanics(h.sampleRateBody)
}

func (h *handler) process() Control {
	h.history.Write(h.block)
	h.level.Observe(h.block)
	return Continue
}

// bufferSizeChanged runs on the audio thread and must not log or allocate.
// Blocks up to the history capacity are accepted; large ones surface later
// as overruns.
func (h *handler) bufferSizeChanged() Control {
	if h.frames > h.capacity {
		h.errors.Notify(MustReallocateHistory)
		return Quit
	}
	return Continue
}

func (h *handler) sampleRateChanged() Control {
	if h.rate != h.sampleRate {
		h.errors.Notify(SampleRateChanged)
		return Quit
	}
	return Continue
}

// ReadHistory fills target with the latest samples and returns the writer
// clock. A pending fatal fault is returned first, as an AudioError. A read
// that raced with the writer returns *rthistory.Overrun along with the clock.
func (s *Session) ReadHistory(target []float32) (uint64, error) {
	if kind, ok := s.errors.Next(); ok {
		return 0, kind
	}
	return s.history.Read(target)
}

// Errors drains every pending fatal fault.
func (s *Session) Errors() []AudioError {
	return s.errors.Drain()
}

// SampleRate returns the sample rate the session was started with.
func (s *Session) SampleRate() float64 {
	return s.sampleRate
}

// Capacity returns the history capacity in samples.
func (s *Session) Capacity() int {
	return s.history.Capacity()
}

// Level returns the input level meter.
func (s *Session) Level() *LevelMeter {
	return s.level
}

// Close stops the driver.
func (s *Session) Close() error {
	return s.driver.Close()
}
