// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClipTone(t *testing.T) {
	clip, err := LoadClip("tone:1000", 48000)
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Samples) != 48000 || clip.SampleRate != 48000 {
		t.Fatalf("clip has %d samples at %v Hz", len(clip.Samples), clip.SampleRate)
	}
	// 48 samples per period: sample 12 is the positive peak.
	if math.Abs(float64(clip.Samples[12])-1) > 1e-6 {
		t.Errorf("sample 12 = %v, want 1", clip.Samples[12])
	}
}

func TestLoadClipErrors(t *testing.T) {
	tests := []struct {
		name, source string
	}{
		{"tone not a number", "tone:abc"},
		{"tone above nyquist", "tone:30000"},
		{"tone zero", "tone:0"},
		{"missing file", filepath.Join(t.TempDir(), "missing.wav")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadClip(tt.source, 44100); err == nil {
				t.Errorf("LoadClip(%q) succeeded, want error", tt.source)
			}
		})
	}
}

func TestDecodeFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("DecodeFile error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeFileInvalidContent(t *testing.T) {
	for _, name := range []string{"bad.wav", "bad.mp3", "bad.ogg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(path, []byte("definitely not audio"), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := DecodeFile(path); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestClipDriverLoops(t *testing.T) {
	clip := &Clip{Samples: []float32{1, 2, 3, 4, 5}, SampleRate: 1000}
	d, err := NewClipDriver(clip, 3)
	if err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	d.handler = h

	var got []float32
	for range 3 {
		d.next()
		got = append(got, d.block...)
	}
	want := []float32{1, 2, 3, 4, 5, 1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
	if h.processed != 3 {
		t.Errorf("processed %d blocks, want 3", h.processed)
	}
}

func TestClipDriverFeedsSession(t *testing.T) {
	clip, err := ToneClip(440, 8000)
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewClipDriver(clip, 64)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Start(d, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	target := make([]float32, 64)
	for range 1000 {
		clock, err := s.ReadHistory(target)
		if err != nil {
			t.Fatal(err)
		}
		if clock > 0 {
			return
		}
		time.Sleep(d.period)
	}
	t.Fatal("no audio delivered")
}

func TestNewClipDriverErrors(t *testing.T) {
	if _, err := NewClipDriver(&Clip{Samples: []float32{1}, SampleRate: 1}, 0); err == nil {
		t.Error("expected error for zero frames")
	}
	if _, err := NewClipDriver(&Clip{SampleRate: 1}, 4); err == nil {
		t.Error("expected error for empty clip")
	}
}
