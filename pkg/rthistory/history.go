// SPDX-License-Identifier: MIT
/*
Package rthistory implements a single-producer single-consumer history ring
for real-time audio.

The writer (audio thread) never blocks and never waits for the reader: when
the ring is full the oldest samples are overwritten. The reader (analysis
thread) asks for "the latest N samples" and is told afterwards whether the
writer overwrote any of them while they were being copied.

Samples are stored as atomic 32-bit words, so concurrent access to a slot is
well defined and the reader can detect, rather than avoid, a torn read.

Two counters describe the writer's progress, both in samples since creation:

	started   - samples the writer has begun writing (published first)
	committed - samples fully written (published last, this is the clock)

A read of positions [start, end) is valid when, after the copy, started has
not advanced past start+capacity.
*/
package rthistory

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Overrun reports that the writer overwrote some of the entries being read.
type Overrun struct {
	Clock         uint64 // Writer clock at the start of the read.
	ExcessEntries uint64 // Number of read entries that were overwritten.
}

func (o *Overrun) Error() string {
	return fmt.Sprintf("history overrun: %d entries overwritten during readout (clock %d)",
		o.ExcessEntries, o.Clock)
}

type ring struct {
	data      []atomic.Uint32
	capacity  uint64
	started   atomic.Uint64
	committed atomic.Uint64
}

// Input is the writing end of the history. It must be used by one goroutine.
type Input struct {
	r        *ring
	writeIdx uint64 // Slot that receives the next sample.
}

// Output is the reading end of the history. It must be used by one goroutine.
type Output struct {
	r *ring
}

// New allocates a history of the given capacity and splits it into its
// writing and reading ends.
func New(capacity int) (*Input, *Output, error) {
	if capacity <= 0 {
		return nil, nil, fmt.Errorf("history capacity must be positive, got %d", capacity)
	}
	r := &ring{
		data:     make([]atomic.Uint32, capacity),
		capacity: uint64(capacity),
	}
	return &Input{r: r}, &Output{r: r}, nil
}

// Capacity returns the number of samples the history can hold.
func (in *Input) Capacity() int {
	return int(in.r.capacity)
}

// Write appends samples to the history, overwriting the oldest entries when
// the ring is full. It never blocks and never allocates.
func (in *Input) Write(samples []float32) {
	r := in.r
	n := uint64(len(samples))
	if n == 0 {
		return
	}
	clock := r.committed.Load()

	// Only the last capacity samples of an oversized block can survive.
	if n > r.capacity {
		skip := n - r.capacity
		samples = samples[skip:]
		in.writeIdx = (in.writeIdx + skip) % r.capacity
	}

	r.started.Store(clock + n)
	idx := in.writeIdx
	for _, s := range samples {
		r.data[idx].Store(math.Float32bits(s))
		idx++
		if idx == r.capacity {
			idx = 0
		}
	}
	in.writeIdx = idx
	r.committed.Store(clock + n)
}

// Capacity returns the number of samples the history can hold.
func (out *Output) Capacity() int {
	return int(out.r.capacity)
}

// Clock returns the number of samples committed by the writer so far.
func (out *Output) Clock() uint64 {
	return out.r.committed.Load()
}

// Read fills target with the latest len(target) samples and returns the
// writer clock they end at. Positions before the first written sample read
// as zero. If the writer overwrote part of target during the copy, an
// *Overrun is returned along with the clock; the contents of target are
// then partially stale.
//
// A clock equal to the one returned by the previous Read means no new data
// arrived in between (underrun).
func (out *Output) Read(target []float32) (uint64, error) {
	r := out.r
	n := uint64(len(target))
	if n > r.capacity {
		panic(fmt.Sprintf("rthistory: read of %d samples exceeds capacity %d", n, r.capacity))
	}

	end := r.committed.Load()
	var start uint64
	fill := 0
	if end < n {
		fill = int(n - end)
		clear(target[:fill])
	} else {
		start = end - n
	}

	idx := start % r.capacity
	for i := fill; i < len(target); i++ {
		target[i] = math.Float32frombits(r.data[idx].Load())
		idx++
		if idx == r.capacity {
			idx = 0
		}
	}

	if started := r.started.Load(); started > start+r.capacity {
		excess := started - (start + r.capacity)
		if excess > n {
			excess = n
		}
		return end, &Overrun{Clock: end, ExcessEntries: excess}
	}
	return end, nil
}
