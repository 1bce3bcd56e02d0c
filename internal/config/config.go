// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"spectre/internal/fft"
	"spectre/internal/log"
)

// Configuration boundaries and defaults.
const (
	DefaultDeviceID        = MinDeviceID // system default input
	DefaultFramesPerBuffer = 512
	DefaultSampleRate      = 0 // device default

	DefaultMinFreq        = 20.0
	DefaultMaxFreq        = 20000.0
	DefaultFreqResolution = 4.0 // Hz at 20 Hz
	DefaultTimeResolution = 2.0 // ms at 20 kHz
	DefaultWindow         = "hann"
	DefaultEngine         = "gonum"
	DefaultTransform      = TransformSteadyQ

	DefaultDisplayKind = DisplayTerminal
	DefaultWidth       = 256
	DefaultRefreshRate = 60.0 // Hz
	DefaultAmpScale    = 80.0 // dB

	DefaultBitDepth = 16

	MinDeviceID     = -1
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MinBufferFrames = 16
	MaxBufferFrames = 8192
	MaxWidth        = 4096
	MaxRefreshRate  = 1000
	MaxAmpScale     = 200
	MaxResolution   = 1000 // Hz or ms

	// MaxSampleRate/MinFreqResolution must stay within fft.MaxLength.
	MinFreqResolution = 0.1 // Hz
)

// Transform kinds.
const (
	TransformSteadyQ = "steadyq"
	TransformFFT     = "fft"
)

// Display kinds. A headless display ("log" or "none") can be combined with
// the network transports; the terminal display cannot.
const (
	DisplayTerminal = "terminal"
	DisplayLog      = "log"
	DisplayNone     = "none"
)

// Config holds every runtime option. It is loaded from YAML, then
// environment overrides, then command line flags.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogFile   string          `yaml:"log_file"` // terminal display logs here, discarded when empty
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig selects the input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default
	InputFile       string  `yaml:"input_file"`        // wav/mp3/ogg path or "tone:<Hz>"; replaces the device
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, 0 for the device or file rate
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // frames per callback
	LowLatency      bool    `yaml:"low_latency"`       // request the device's low input latency
}

// AnalysisConfig shapes the transform and the displayed axis.
type AnalysisConfig struct {
	MinFreq        float64 `yaml:"min_freq"`        // Hz
	MaxFreq        float64 `yaml:"max_freq"`        // Hz
	FreqResolution float64 `yaml:"freq_resolution"` // Hz at 20 Hz
	TimeResolution float64 `yaml:"time_resolution"` // ms at 20 kHz
	LogScale       bool    `yaml:"log_scale"`
	Window         string  `yaml:"window"`
	Engine         string  `yaml:"engine"`
	Transform      string  `yaml:"transform"` // steadyq or fft
	RemoveDC       bool    `yaml:"remove_dc"`
}

// DisplayConfig selects where frames go.
type DisplayConfig struct {
	Kind        string  `yaml:"kind"`
	Width       int     `yaml:"width"`        // bins per frame for headless displays
	RefreshRate float64 `yaml:"refresh_rate"` // frames per second
	AmpScale    float64 `yaml:"amp_scale"`    // dB shown below 0 dBFS
}

// RecordingConfig controls WAV capture of the analyzed signal.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16, 24 or 32
}

// TransportConfig controls the network and log publishers.
type TransportConfig struct {
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`
	WebSocketAddr     string        `yaml:"websocket_addr"`
	WebSocketInterval time.Duration `yaml:"websocket_interval"`
	UDPEnabled        bool          `yaml:"udp_enabled"`
	UDPTargetAddress  string        `yaml:"udp_target_address"`
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`
	LogInterval       time.Duration `yaml:"log_interval"` // summary period of the log display
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Analysis: AnalysisConfig{
			MinFreq:        DefaultMinFreq,
			MaxFreq:        DefaultMaxFreq,
			FreqResolution: DefaultFreqResolution,
			TimeResolution: DefaultTimeResolution,
			LogScale:       true,
			Window:         DefaultWindow,
			Engine:         DefaultEngine,
			Transform:      DefaultTransform,
			RemoveDC:       true,
		},
		Display: DisplayConfig{
			Kind:        DefaultDisplayKind,
			Width:       DefaultWidth,
			RefreshRate: DefaultRefreshRate,
			AmpScale:    DefaultAmpScale,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddr:     ":8080",
			WebSocketInterval: 33 * time.Millisecond,
			UDPTargetAddress:  "127.0.0.1:9090",
			UDPSendInterval:   33 * time.Millisecond,
			LogInterval:       time.Second,
		},
	}
}

// Headless reports whether frames are driven by analysis.Loop rather than
// the terminal UI.
func (c *Config) Headless() bool {
	return c.Display.Kind != DisplayTerminal
}

// FramePeriod is the minimum time between two frames.
func (c *Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Display.RefreshRate)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error, fatal", c.LogLevel))
	}

	a := c.Audio
	check(a.InputDevice >= MinDeviceID, "audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	check(a.SampleRate == 0 || (finite(a.SampleRate) && a.SampleRate >= MinSampleRate && a.SampleRate <= MaxSampleRate),
		"audio.sample_rate must be 0 or in [%d, %d] Hz, got %v", MinSampleRate, MaxSampleRate, a.SampleRate)
	check(a.FramesPerBuffer >= MinBufferFrames && a.FramesPerBuffer <= MaxBufferFrames,
		"audio.frames_per_buffer must be in [%d, %d], got %d", MinBufferFrames, MaxBufferFrames, a.FramesPerBuffer)

	an := c.Analysis
	check(finite(an.MinFreq) && an.MinFreq >= 0, "analysis.min_freq must be finite and >= 0, got %v", an.MinFreq)
	check(finite(an.MaxFreq) && an.MaxFreq > an.MinFreq,
		"analysis.max_freq must be finite and above min_freq %v, got %v", an.MinFreq, an.MaxFreq)
	check(an.MaxFreq <= MaxSampleRate/2, "analysis.max_freq must not exceed %d Hz, got %v", MaxSampleRate/2, an.MaxFreq)
	if a.SampleRate > 0 {
		check(an.MaxFreq <= a.SampleRate/2, "analysis.max_freq %v exceeds the Nyquist frequency %v", an.MaxFreq, a.SampleRate/2)
	}
	check(!an.LogScale || an.MinFreq > 0, "analysis.min_freq must be positive on a logarithmic axis")
	check(finite(an.FreqResolution) && an.FreqResolution >= MinFreqResolution && an.FreqResolution <= MaxResolution,
		"analysis.freq_resolution must be in [%v, %d] Hz, got %v", MinFreqResolution, MaxResolution, an.FreqResolution)
	check(finite(an.TimeResolution) && an.TimeResolution > 0 && an.TimeResolution <= MaxResolution,
		"analysis.time_resolution must be in (0, %d] ms, got %v", MaxResolution, an.TimeResolution)
	if _, err := fft.ParseWindow(an.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}
	if _, err := fft.ParseEngine(an.Engine); err != nil {
		errs = append(errs, fmt.Errorf("analysis.engine: %w", err))
	}
	check(an.Transform == TransformSteadyQ || an.Transform == TransformFFT,
		"analysis.transform must be %q or %q, got %q", TransformSteadyQ, TransformFFT, an.Transform)

	d := c.Display
	switch d.Kind {
	case DisplayTerminal, DisplayLog, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("display.kind must be %q, %q or %q, got %q",
			DisplayTerminal, DisplayLog, DisplayNone, d.Kind))
	}
	check(d.Width > 0 && d.Width <= MaxWidth, "display.width must be in [1, %d], got %d", MaxWidth, d.Width)
	check(finite(d.RefreshRate) && d.RefreshRate > 0 && d.RefreshRate <= MaxRefreshRate,
		"display.refresh_rate must be in (0, %d] Hz, got %v", MaxRefreshRate, d.RefreshRate)
	check(finite(d.AmpScale) && d.AmpScale > 0 && d.AmpScale <= MaxAmpScale,
		"display.amp_scale must be in (0, %d] dB, got %v", MaxAmpScale, d.AmpScale)

	r := c.Recording
	check(r.BitDepth == 16 || r.BitDepth == 24 || r.BitDepth == 32,
		"recording.bit_depth must be 16, 24 or 32, got %d", r.BitDepth)
	check(!r.Enabled || r.OutputDir != "", "recording.output_dir must be set when recording is enabled")

	t := c.Transport
	network := t.WebSocketEnabled || t.UDPEnabled
	check(!network || c.Headless(), "network transports need a headless display kind, not %q", d.Kind)
	check(network || d.Kind != DisplayNone, "display.kind %q needs at least one enabled transport", DisplayNone)
	check(!t.WebSocketEnabled || t.WebSocketAddr != "", "transport.websocket_addr must be set when websocket is enabled")
	check(t.WebSocketInterval >= 0, "transport.websocket_interval must not be negative, got %s", t.WebSocketInterval)
	check(!t.UDPEnabled || t.UDPTargetAddress != "", "transport.udp_target_address must be set when UDP is enabled")
	check(!t.UDPEnabled || t.UDPSendInterval > 0, "transport.udp_send_interval must be positive when UDP is enabled")
	check(t.LogInterval >= 0, "transport.log_interval must not be negative, got %s", t.LogInterval)

	return errors.Join(errs...)
}
