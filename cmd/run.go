// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"spectre/internal/analysis"
	"spectre/internal/audio"
	"spectre/internal/config"
	"spectre/internal/display"
	"spectre/internal/fft"
	"spectre/internal/log"
	"spectre/internal/transport"
	"spectre/internal/transport/udp"
	"spectre/internal/tui"
)

// defaultToneRate is the sample rate of tone inputs when none is configured.
const defaultToneRate = 44100

// Run captures audio as configured and drives the display until ctx is
// done, shutdown is set, the user quits or a fatal error occurs.
func Run(ctx context.Context, cfg *config.Config, shutdown *atomic.Bool) error {
	driver, title, err := newDriver(cfg)
	if err != nil {
		return err
	}
	sampleRate := driver.SampleRate()

	transform, err := newTransform(cfg, sampleRate)
	if err != nil {
		driver.Close()
		return err
	}

	session, err := audio.Start(driver, len(transform.Input()))
	if err != nil {
		driver.Close()
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warnf("audio: closing session: %v", err)
		}
	}()

	pipeline, err := analysis.NewPipeline(session, transform, session.SampleRate(), analysis.PipelineConfig{
		MinFreq:  cfg.Analysis.MinFreq,
		MaxFreq:  cfg.Analysis.MaxFreq,
		LogScale: cfg.Analysis.LogScale,
	})
	if err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		rec, err := startRecording(cfg, session.SampleRate())
		if err != nil {
			return err
		}
		defer rec.Close()
		pipeline.SetRecorder(rec)
	}

	if !cfg.Headless() {
		return runTerminal(ctx, cfg, pipeline, session, title)
	}

	d, err := newHeadlessDisplay(cfg, pipeline.Axis(), session.SampleRate())
	if err != nil {
		return err
	}
	loop := &analysis.Loop{
		Pipeline:  pipeline,
		Display:   d,
		MinPeriod: cfg.FramePeriod(),
		Shutdown:  shutdown,
		Drain:     session.Errors,
	}
	return loop.Run(ctx)
}

// newDriver opens the configured input and returns it with a title for the
// status line.
func newDriver(cfg *config.Config) (audio.Driver, string, error) {
	a := cfg.Audio
	if a.InputFile != "" {
		toneRate := a.SampleRate
		if toneRate == 0 {
			toneRate = defaultToneRate
		}
		clip, err := audio.LoadClip(a.InputFile, toneRate)
		if err != nil {
			return nil, "", err
		}
		if a.SampleRate != 0 && a.SampleRate != clip.SampleRate {
			log.Warnf("audio: %s is sampled at %.0f Hz, ignoring the configured %.0f Hz",
				a.InputFile, clip.SampleRate, a.SampleRate)
		}
		if cfg.Analysis.MaxFreq > clip.SampleRate/2 {
			return nil, "", fmt.Errorf("analysis.max_freq %v exceeds the Nyquist frequency %v of %s",
				cfg.Analysis.MaxFreq, clip.SampleRate/2, a.InputFile)
		}
		log.Infof("audio: playing %s (%.0f Hz, %s) in a loop", a.InputFile, clip.SampleRate, clip.Duration())
		driver, err := audio.NewClipDriver(clip, a.FramesPerBuffer)
		if err != nil {
			return nil, "", err
		}
		return driver, filepath.Base(a.InputFile), nil
	}

	driver, err := audio.NewPortAudioDriver(audio.PortAudioConfig{
		DeviceID:        a.InputDevice,
		SampleRate:      a.SampleRate,
		FramesPerBuffer: a.FramesPerBuffer,
		LowLatency:      a.LowLatency,
	})
	if err != nil {
		return nil, "", err
	}
	return driver, driver.DeviceName(), nil
}

// newTransform builds the configured transform for sampleRate.
func newTransform(cfg *config.Config, sampleRate float64) (analysis.Transform, error) {
	an := cfg.Analysis
	window, err := fft.ParseWindow(an.Window)
	if err != nil {
		return nil, err
	}
	engine, err := fft.ParseEngine(an.Engine)
	if err != nil {
		return nil, err
	}

	if an.Transform == config.TransformFFT {
		size, err := fft.LengthFor(sampleRate, an.FreqResolution)
		if err != nil {
			return nil, fmt.Errorf("analysis.freq_resolution: %w", err)
		}
		unit, err := fft.NewUnit(size, window, engine)
		if err != nil {
			return nil, err
		}
		unit.RemoveDC = an.RemoveDC
		log.Infof("analysis: %d-point FFT, %s window, %s engine", size, window, engine)
		return unit, nil
	}

	q, err := fft.NewSteadyQ(fft.SteadyQConfig{
		ResolutionAt20Hz:      an.FreqResolution,
		TimeResolutionAt20kHz: an.TimeResolution,
		SampleRate:            sampleRate,
		Window:                window,
		Engine:                engine,
		RemoveDC:              an.RemoveDC,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("analysis: steady-q transform with FFT lengths %v, %s window, %s engine", q.Units(), window, engine)
	return q, nil
}

func startRecording(cfg *config.Config, sampleRate float64) (*audio.Recorder, error) {
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
	rec, err := audio.NewRecorder(path, sampleRate, cfg.Recording.BitDepth)
	if err != nil {
		return nil, err
	}
	log.Infof("recording: writing %d-bit audio to %s", cfg.Recording.BitDepth, path)
	return rec, nil
}

// runTerminal runs the bubbletea display. Logging goes to the log file, or
// nowhere, while the alternate screen is active.
func runTerminal(ctx context.Context, cfg *config.Config, pipeline *analysis.Pipeline,
	session *audio.Session, title string) error {
	var out io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	log.SetOutput(out)
	defer log.SetOutput(os.Stderr)

	err := tui.RunSpectrum(ctx, pipeline, tui.SpectrumConfig{
		Refresh:  cfg.FramePeriod(),
		AmpScale: cfg.Display.AmpScale,
		Title:    title,
		Level:    session.Level(),
	})
	if err == nil {
		return nil
	}

	// Report the faults on the restored terminal.
	log.SetOutput(os.Stderr)
	var kind audio.AudioError
	if errors.As(err, &kind) {
		return analysis.Fatal(err, session.Errors)
	}
	return err
}

// newHeadlessDisplay combines the log display and the enabled transports.
func newHeadlessDisplay(cfg *config.Config, axis display.Axis, sampleRate float64) (display.Display, error) {
	var displays []display.Display
	fail := func(err error) (display.Display, error) {
		for _, d := range displays {
			d.Close()
		}
		return nil, err
	}

	width := cfg.Display.Width
	t := cfg.Transport
	if cfg.Display.Kind == config.DisplayLog {
		ld, err := transport.NewLogDisplay(width, axis, t.LogInterval)
		if err != nil {
			return fail(err)
		}
		displays = append(displays, ld)
	}
	if t.WebSocketEnabled {
		wsd, err := transport.NewWebSocketDisplay(transport.WebSocketConfig{
			Addr:        t.WebSocketAddr,
			Width:       width,
			Axis:        axis,
			SampleRate:  sampleRate,
			MinInterval: t.WebSocketInterval,
			Floor:       -float32(cfg.Display.AmpScale),
		})
		if err != nil {
			return fail(err)
		}
		displays = append(displays, wsd)
	}
	if t.UDPEnabled {
		sender, err := udp.NewUDPSender(t.UDPTargetAddress)
		if err != nil {
			return fail(err)
		}
		pub, err := udp.NewUDPPublisher(t.UDPSendInterval, width, sender)
		if err != nil {
			sender.Close()
			return fail(err)
		}
		displays = append(displays, pub)
	}
	if len(displays) == 0 {
		return nil, errors.New("no display configured")
	}
	return display.Tee(displays...), nil
}
