// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectre/internal/log"

	"github.com/gordonklaus/portaudio"
)

// PortAudioConfig selects the capture device and stream shape.
type PortAudioConfig struct {
	DeviceID        int     // DefaultDeviceID for the host default
	SampleRate      float64 // 0 for the device default
	FramesPerBuffer int
	LowLatency      bool
}

// PortAudioDriver captures one channel from a PortAudio input device.
type PortAudioDriver struct {
	device     *portaudio.DeviceInfo
	latency    time.Duration
	sampleRate float64
	frames     int

	stream  *portaudio.Stream
	handler Handler

	lastFrames int         // audio thread only
	stopped    atomic.Bool // set once a handler returned Quit
}

// NewPortAudioDriver initializes PortAudio and resolves the input device.
// Close terminates PortAudio again.
func NewPortAudioDriver(cfg PortAudioConfig) (*PortAudioDriver, error) {
	if cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", cfg.FramesPerBuffer)
	}
	if err := Initialize(); err != nil {
		return nil, err
	}

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		Terminate()
		return nil, err
	}

	d := &PortAudioDriver{
		device:     device,
		sampleRate: cfg.SampleRate,
		frames:     cfg.FramesPerBuffer,
		lastFrames: cfg.FramesPerBuffer,
	}
	if d.sampleRate <= 0 {
		d.sampleRate = device.DefaultSampleRate
	}
	if cfg.LowLatency {
		d.latency = device.DefaultLowInputLatency
	} else {
		d.latency = device.DefaultHighInputLatency
	}

	log.Infof("audio: input device %q, %.0f Hz, %d frames, latency %v",
		device.Name, d.sampleRate, d.frames, d.latency)
	return d, nil
}

func (d *PortAudioDriver) SampleRate() float64 { return d.sampleRate }

// DeviceName returns the name of the capture device.
func (d *PortAudioDriver) DeviceName() string { return d.device.Name }
func (d *PortAudioDriver) BufferSize() int { return d.frames }

// Activate opens and starts a mono input stream delivering to h.
func (d *PortAudioDriver) Activate(h Handler) error {
	if d.stream != nil {
		return errors.New("portaudio stream already active")
	}
	d.bind(h)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   d.device,
			Latency:  d.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: d.frames,
		SampleRate:      d.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, d.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	d.stream = stream

	// The host may have picked a different rate than requested.
	if info := stream.Info(); info != nil && info.SampleRate != d.sampleRate {
		if d.handler.SampleRateChanged(info.SampleRate) == Quit {
			d.stopped.Store(true)
		}
	}
	return nil
}

// bind installs h and resets the block length the callback compares
// against, so only real size changes reach h.BufferSizeChanged.
func (d *PortAudioDriver) bind(h Handler) {
	d.handler = h
	d.lastFrames = d.frames
	d.stopped.Store(false)
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses the caller's buffer only
// - No dynamic allocations in the hot path
func (d *PortAudioDriver) processInputStream(in []float32) {
	if d.stopped.Load() {
		return
	}
	if len(in) != d.lastFrames {
		d.lastFrames = len(in)
		if d.handler.BufferSizeChanged(len(in)) == Quit {
			d.stopped.Store(true)
			return
		}
	}
	if d.handler.Process(in) == Quit {
		d.stopped.Store(true)
	}
}

// Close stops the stream and terminates PortAudio.
func (d *PortAudioDriver) Close() error {
	var errs []error
	if d.stream != nil {
		if err := d.stream.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := d.stream.Close(); err != nil {
			errs = append(errs, err)
		}
		d.stream = nil
	}
	if err := Terminate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
