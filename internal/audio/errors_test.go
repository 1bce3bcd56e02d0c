// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
)

func TestErrorChannelEmpty(t *testing.T) {
	_, out := NewErrorChannel()
	if kind, ok := out.Next(); ok {
		t.Errorf("Next() on empty channel = %v, want none", kind)
	}
}

func TestErrorChannelDrainOrder(t *testing.T) {
	in, out := NewErrorChannel()
	in.Notify(MustReallocateHistory)
	in.Notify(CallbackPanicked)
	in.Notify(MustReallocateHistory)

	want := []AudioError{CallbackPanicked, MustReallocateHistory}
	got := out.Drain()
	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if _, ok := out.Next(); ok {
		t.Error("channel not empty after drain")
	}

	// A cleared kind reappears only after a fresh fault.
	in.Notify(SampleRateChanged)
	if kind, ok := out.Next(); !ok || kind != SampleRateChanged {
		t.Errorf("Next() = (%v, %v), want (SampleRateChanged, true)", kind, ok)
	}
}

func TestErrorChannelInvalidBitPanics(t *testing.T) {
	_, out := NewErrorChannel()
	out.flags.bits.Store(1 << 7)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown error bit")
		}
	}()
	out.Next()
}

func TestHandlePanics(t *testing.T) {
	in, out := NewErrorChannel()

	if ctl := in.HandlePanics(func() Control { return Continue }); ctl != Continue {
		t.Errorf("HandlePanics(ok) = %v, want Continue", ctl)
	}
	if _, ok := out.Next(); ok {
		t.Error("unexpected error after clean callback")
	}

	ctl := in.HandlePanics(func() Control {
		var block []float32
		_ = block[3]
		return Continue
	})
	if ctl != Quit {
		t.Errorf("HandlePanics(panic) = %v, want Quit", ctl)
	}
	if kind, ok := out.Next(); !ok || kind != CallbackPanicked {
		t.Errorf("Next() = (%v, %v), want (CallbackPanicked, true)", kind, ok)
	}
}

func TestAudioErrorIsError(t *testing.T) {
	var err error = SampleRateChanged
	var kind AudioError
	if !errors.As(err, &kind) || kind != SampleRateChanged {
		t.Errorf("errors.As failed for %v", err)
	}
	if err.Error() == "" || SampleRateChanged.String() != "SampleRateChanged" {
		t.Error("unexpected AudioError text")
	}
}

func TestNotifyZeroAllocs(t *testing.T) {
	in, out := NewErrorChannel()
	body := func() Control { return Continue }
	allocs := testing.AllocsPerRun(100, func() {
		in.Notify(SampleRateChanged)
		in.HandlePanics(body)
		out.Next()
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
}
