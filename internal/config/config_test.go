// SPDX-License-Identifier: MIT
package config

import (
	"math"
	"strings"
	"testing"

	"spectre/internal/fft"
)

func TestValidateRejectsEachField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"device", func(c *Config) { c.Audio.InputDevice = -2 }, "audio.input_device"},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 4000 }, "audio.sample_rate"},
		{"nan sample rate", func(c *Config) { c.Audio.SampleRate = math.NaN() }, "audio.sample_rate"},
		{"frames", func(c *Config) { c.Audio.FramesPerBuffer = 1 << 16 }, "audio.frames_per_buffer"},
		{"negative min freq", func(c *Config) { c.Analysis.MinFreq = -1 }, "analysis.min_freq"},
		{"inverted range", func(c *Config) { c.Analysis.MaxFreq = 10 }, "analysis.max_freq"},
		{"infinite max freq", func(c *Config) { c.Analysis.MaxFreq = math.Inf(1) }, "analysis.max_freq"},
		{"above nyquist", func(c *Config) { c.Audio.SampleRate = 22050 }, "Nyquist"},
		{"log axis from zero", func(c *Config) { c.Analysis.MinFreq = 0 }, "logarithmic"},
		{"freq resolution", func(c *Config) { c.Analysis.FreqResolution = 0 }, "analysis.freq_resolution"},
		{"tiny fft resolution", func(c *Config) {
			c.Analysis.Transform = TransformFFT
			c.Analysis.FreqResolution = 1e-7
		}, "analysis.freq_resolution"},
		{"time resolution", func(c *Config) { c.Analysis.TimeResolution = math.Inf(1) }, "analysis.time_resolution"},
		{"window", func(c *Config) { c.Analysis.Window = "kaiser" }, "analysis.window"},
		{"engine", func(c *Config) { c.Analysis.Engine = "fftw" }, "analysis.engine"},
		{"transform", func(c *Config) { c.Analysis.Transform = "wavelet" }, "analysis.transform"},
		{"display kind", func(c *Config) { c.Display.Kind = "gpu" }, "display.kind"},
		{"width", func(c *Config) { c.Display.Width = 0 }, "display.width"},
		{"refresh rate", func(c *Config) { c.Display.RefreshRate = -60 }, "display.refresh_rate"},
		{"amp scale", func(c *Config) { c.Display.AmpScale = 0 }, "display.amp_scale"},
		{"bit depth", func(c *Config) { c.Recording.BitDepth = 8 }, "recording.bit_depth"},
		{"record dir", func(c *Config) { c.Recording.Enabled = true; c.Recording.OutputDir = "" }, "recording.output_dir"},
		{"transport with terminal", func(c *Config) { c.Transport.UDPEnabled = true }, "headless"},
		{"none without transport", func(c *Config) { c.Display.Kind = DisplayNone }, "at least one"},
		{"udp interval", func(c *Config) {
			c.Display.Kind = DisplayNone
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "transport.udp_send_interval"},
		{"websocket addr", func(c *Config) {
			c.Display.Kind = DisplayLog
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddr = ""
		}, "transport.websocket_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// The finest accepted resolution at the highest accepted rate still plans.
func TestValidResolutionFitsFFT(t *testing.T) {
	cfg := NewConfig()
	cfg.Audio.SampleRate = MaxSampleRate
	cfg.Analysis.Transform = TransformFFT
	cfg.Analysis.FreqResolution = MinFreqResolution
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if _, err := fft.LengthFor(MaxSampleRate, MinFreqResolution); err != nil {
		t.Errorf("LengthFor at the limits: %v", err)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := NewConfig()
	cfg.Display.Width = -1
	cfg.Display.AmpScale = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"display.width", "display.amp_scale"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestHeadlessAndFramePeriod(t *testing.T) {
	cfg := NewConfig()
	if cfg.Headless() {
		t.Error("terminal display reported as headless")
	}
	cfg.Display.Kind = DisplayLog
	if !cfg.Headless() {
		t.Error("log display not reported as headless")
	}
	cfg.Display.RefreshRate = 50
	if got := cfg.FramePeriod().Milliseconds(); got != 20 {
		t.Errorf("frame period %d ms, want 20", got)
	}
}
