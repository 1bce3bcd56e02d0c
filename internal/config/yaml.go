// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spectre/internal/log"
)

// DefaultPath is searched when no configuration file is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPECTRE_"

// LoadConfig loads defaults, then the YAML file at path (DefaultPath if it
// exists when path is empty), then SPECTRE_* environment overrides. The
// result is not validated, since command line flags may still change it.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Debugf("configuration: loaded %s", path)

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverride maps one environment variable, without EnvPrefix, onto a field.
type envOverride struct {
	name  string
	apply func(cfg *Config, val string) error
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*field(cfg) = val
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envOverrides = []envOverride{
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_FILE", stringVar(func(c *Config) *string { return &c.LogFile })},

	{"INPUT_DEVICE", intVar(func(c *Config) *int { return &c.Audio.InputDevice })},
	{"INPUT_FILE", stringVar(func(c *Config) *string { return &c.Audio.InputFile })},
	{"SAMPLE_RATE", floatVar(func(c *Config) *float64 { return &c.Audio.SampleRate })},
	{"FRAMES_PER_BUFFER", intVar(func(c *Config) *int { return &c.Audio.FramesPerBuffer })},
	{"LOW_LATENCY", boolVar(func(c *Config) *bool { return &c.Audio.LowLatency })},

	{"MIN_FREQ", floatVar(func(c *Config) *float64 { return &c.Analysis.MinFreq })},
	{"MAX_FREQ", floatVar(func(c *Config) *float64 { return &c.Analysis.MaxFreq })},
	{"FREQ_RESOLUTION", floatVar(func(c *Config) *float64 { return &c.Analysis.FreqResolution })},
	{"TIME_RESOLUTION", floatVar(func(c *Config) *float64 { return &c.Analysis.TimeResolution })},
	{"LOG_SCALE", boolVar(func(c *Config) *bool { return &c.Analysis.LogScale })},
	{"WINDOW", stringVar(func(c *Config) *string { return &c.Analysis.Window })},
	{"ENGINE", stringVar(func(c *Config) *string { return &c.Analysis.Engine })},
	{"TRANSFORM", stringVar(func(c *Config) *string { return &c.Analysis.Transform })},
	{"REMOVE_DC", boolVar(func(c *Config) *bool { return &c.Analysis.RemoveDC })},

	{"DISPLAY", stringVar(func(c *Config) *string { return &c.Display.Kind })},
	{"WIDTH", intVar(func(c *Config) *int { return &c.Display.Width })},
	{"REFRESH_RATE", floatVar(func(c *Config) *float64 { return &c.Display.RefreshRate })},
	{"AMP_SCALE", floatVar(func(c *Config) *float64 { return &c.Display.AmpScale })},

	{"RECORD", boolVar(func(c *Config) *bool { return &c.Recording.Enabled })},
	{"RECORD_DIR", stringVar(func(c *Config) *string { return &c.Recording.OutputDir })},
	{"BIT_DEPTH", intVar(func(c *Config) *int { return &c.Recording.BitDepth })},

	{"WEBSOCKET_ENABLED", boolVar(func(c *Config) *bool { return &c.Transport.WebSocketEnabled })},
	{"WEBSOCKET_ADDR", stringVar(func(c *Config) *string { return &c.Transport.WebSocketAddr })},
	{"WEBSOCKET_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Transport.WebSocketInterval })},
	{"UDP_ENABLED", boolVar(func(c *Config) *bool { return &c.Transport.UDPEnabled })},
	{"UDP_TARGET_ADDRESS", stringVar(func(c *Config) *string { return &c.Transport.UDPTargetAddress })},
	{"UDP_SEND_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Transport.UDPSendInterval })},
	{"LOG_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Transport.LogInterval })},
}

// applyEnvOverrides applies every SPECTRE_* variable found by lookup. An
// unparsable value is an error rather than being ignored.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		name := EnvPrefix + o.name
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := o.apply(c, val); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", name, val, err))
			continue
		}
		log.Debugf("configuration: %s overridden from the environment", name)
	}
	return errors.Join(errs...)
}
