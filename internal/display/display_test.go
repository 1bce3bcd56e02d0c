// SPDX-License-Identifier: MIT
package display

import (
	"errors"
	"math"
	"testing"
)

type countingDisplay struct {
	width              int
	renders, underruns int
	overrun            uint64
	closed             bool
	err                error
}

func (c *countingDisplay) Width() int { return c.width }
func (c *countingDisplay) Render([]float32) error {
	c.renders++
	return c.err
}
func (c *countingDisplay) ReportUnderrun() error {
	c.underruns++
	return c.err
}
func (c *countingDisplay) ReportOverrun(excess uint64) error {
	c.overrun += excess
	return c.err
}
func (c *countingDisplay) Close() error {
	c.closed = true
	return c.err
}

func TestTeeForwardsToAll(t *testing.T) {
	boom := errors.New("boom")
	a := &countingDisplay{width: 80}
	b := &countingDisplay{width: 10, err: boom}
	d := Tee(a, b)

	if d.Width() != 80 {
		t.Errorf("Width() = %d, want 80", d.Width())
	}
	if err := d.Render(nil); !errors.Is(err, boom) {
		t.Errorf("Render error = %v, want %v", err, boom)
	}
	d.ReportUnderrun()
	d.ReportOverrun(7)
	d.Close()

	for _, c := range []*countingDisplay{a, b} {
		if c.renders != 1 || c.underruns != 1 || c.overrun != 7 || !c.closed {
			t.Errorf("display saw %+v", c)
		}
	}
	if Tee(a) != Display(a) {
		t.Error("Tee of one display should return it unchanged")
	}
}

func TestAxisCenters(t *testing.T) {
	lin := Axis{MinFreq: 0, MaxFreq: 100}.Centers(4)
	for i, want := range []float64{12.5, 37.5, 62.5, 87.5} {
		if math.Abs(lin[i]-want) > 1e-9 {
			t.Errorf("linear center %d = %v, want %v", i, lin[i], want)
		}
	}

	log := Axis{MinFreq: 10, MaxFreq: 1000, LogScale: true}.Centers(2)
	if math.Abs(log[0]-math.Sqrt(10*100)) > 1e-9 || math.Abs(log[1]-math.Sqrt(100*1000)) > 1e-9 {
		t.Errorf("log centers = %v", log)
	}
}
