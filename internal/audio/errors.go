// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// AudioError is a fatal fault raised on the audio thread and observed by the
// analysis thread. Its value is the bit position in the error flags.
type AudioError uint32

const (
	// CallbackPanicked means an audio callback panicked. Audio processing
	// has stopped.
	CallbackPanicked AudioError = iota
	// SampleRateChanged means the device switched sample rate, which the
	// transform cannot follow.
	SampleRateChanged
	// MustReallocateHistory means the device buffer grew past the history
	// capacity.
	MustReallocateHistory

	numAudioErrors
)

func (e AudioError) String() string {
	switch e {
	case CallbackPanicked:
		return "CallbackPanicked"
	case SampleRateChanged:
		return "SampleRateChanged"
	case MustReallocateHistory:
		return "MustReallocateHistory"
	default:
		return fmt.Sprintf("AudioError(%d)", uint32(e))
	}
}

func (e AudioError) Error() string {
	switch e {
	case CallbackPanicked:
		return "audio callback panicked, audio processing stopped"
	case SampleRateChanged:
		return "audio sample rate changed, cannot re-create the transform"
	case MustReallocateHistory:
		return "audio buffer size exceeds history capacity, cannot reallocate"
	default:
		return e.String()
	}
}

// Control tells the driver whether to keep calling the handler.
type Control int

const (
	Continue Control = iota
	Quit
)

type errorFlags struct {
	bits atomic.Uint32
}

// ErrorInput is the audio-side end of the error channel. Notify never blocks
// and never allocates.
type ErrorInput struct {
	flags *errorFlags
}

// ErrorOutput is the analysis-side end of the error channel.
type ErrorOutput struct {
	flags *errorFlags
}

// NewErrorChannel creates an empty error channel.
func NewErrorChannel() (ErrorInput, *ErrorOutput) {
	f := &errorFlags{}
	return ErrorInput{flags: f}, &ErrorOutput{flags: f}
}

// Notify raises kind. Raising an already pending kind is a no-op.
func (in ErrorInput) Notify(kind AudioError) {
	in.flags.bits.Or(1 << kind)
}

// HandlePanics runs body and converts a panic into CallbackPanicked and Quit.
// Audio callbacks must not let panics unwind into the driver.
func (in ErrorInput) HandlePanics(body func() Control) (ctl Control) {
	defer func() {
		if recover() != nil {
			in.Notify(CallbackPanicked)
			ctl = Quit
		}
	}()
	return body()
}

// Next returns the lowest pending error and clears it. Repeated calls drain
// the pending set in increasing order.
func (out *ErrorOutput) Next() (AudioError, bool) {
	flags := out.flags.bits.Load()
	if flags == 0 {
		return 0, false
	}
	bit := bits.TrailingZeros32(flags)
	kind := AudioError(bit)
	if kind >= numAudioErrors {
		panic(fmt.Sprintf("audio: invalid error flag bit %d", bit))
	}
	out.flags.bits.And(^(uint32(1) << bit))
	return kind, true
}

// Drain returns all pending errors in increasing order.
func (out *ErrorOutput) Drain() []AudioError {
	var errs []AudioError
	for {
		kind, ok := out.Next()
		if !ok {
			return errs
		}
		errs = append(errs, kind)
	}
}
