// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectre/internal/audio"
	"spectre/internal/display"
	"spectre/internal/log"
)

// FatalError ends the frame loop. It carries the error that stopped the
// pipeline followed by every other pending audio fault.
type FatalError struct {
	Errs []error
}

func (e *FatalError) Error() string {
	if len(e.Errs) == 1 {
		return "fatal: " + e.Errs[0].Error()
	}
	return fmt.Sprintf("fatal: %v (and %d more)", e.Errs[0], len(e.Errs)-1)
}

func (e *FatalError) Unwrap() []error { return e.Errs }

// Loop drives a Pipeline for a display without its own event loop.
type Loop struct {
	Pipeline  *Pipeline
	Display   display.Display
	MinPeriod time.Duration // minimum time between frames, 0 for none
	Shutdown  *atomic.Bool  // checked once per frame, may be nil

	// Drain returns the audio faults still pending after a fatal error.
	// Typically (*audio.Session).Errors.
	Drain func() []audio.AudioError
}

// Run processes frames until shutdown, ctx cancellation or a fatal error.
// The display is closed on every exit path.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.Display.Close(); cerr != nil {
			log.Warnf("analysis: closing display: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	var tick <-chan time.Time
	if l.MinPeriod > 0 {
		ticker := time.NewTicker(l.MinPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
		if (l.Shutdown != nil && l.Shutdown.Load()) || ctx.Err() != nil {
			log.Infof("analysis: shutting down")
			return nil
		}

		frame, err := l.Pipeline.Step(l.Display.Width())
		if err != nil {
			return Fatal(err, l.Drain)
		}
		if err := frame.Deliver(l.Display); err != nil {
			log.Warnf("analysis: display: %v", err)
		}
	}
}

// Fatal logs first and every audio fault still pending in drain, which may
// be nil, and returns them all as a FatalError.
func Fatal(first error, drain func() []audio.AudioError) *FatalError {
	errs := []error{first}
	if drain != nil {
		for _, kind := range drain() {
			errs = append(errs, kind)
		}
	}
	for _, err := range errs {
		var kind audio.AudioError
		if errors.As(err, &kind) {
			log.Errorf("audio thread error: %v", err)
		} else {
			log.Errorf("analysis error: %v", err)
		}
	}
	return &FatalError{Errs: errs}
}
