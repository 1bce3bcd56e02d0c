// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecorderClosed is returned by Append after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder writes the analyzed signal to a mono PCM WAV file. It runs on
// the analysis thread, never on the audio callback.
type Recorder struct {
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	maxValue  float64
	written   int
}

// RecordingPath returns a timestamped file name inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "spectre-"+now.Format("20060102-150405")+".wav")
}

// NewRecorder creates path and prepares a WAV encoder. bitDepth must be 16,
// 24 or 32.
func NewRecorder(path string, sampleRate float64, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid recording sample rate %v", sampleRate)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			SourceBitDepth: bitDepth,
		},
		maxValue: float64(int64(1)<<(bitDepth-1)) - 1,
	}, nil
}

// Append writes the last fresh samples of window. fresh is capped at the
// window length.
func (r *Recorder) Append(window []float32, fresh int) error {
	if r.encoder == nil {
		return ErrRecorderClosed
	}
	fresh = min(fresh, len(window))
	if fresh <= 0 {
		return nil
	}
	samples := window[len(window)-fresh:]

	if cap(r.sampleBuf.Data) < fresh {
		r.sampleBuf.Data = make([]int, fresh)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:fresh]
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.maxValue))
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.written += fresh
	return nil
}

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int {
	return r.written
}

// Close finalizes the WAV header and closes the file. Calling Close twice is
// a no-op.
func (r *Recorder) Close() error {
	if r.encoder == nil {
		return nil
	}
	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	r.encoder = nil
	r.file = nil
	return errors.Join(encErr, fileErr)
}
