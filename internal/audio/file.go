// SPDX-License-Identifier: MIT
package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"spectre/internal/log"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// TonePrefix introduces a synthesized input, e.g. "tone:440".
const TonePrefix = "tone:"

// ErrUnsupportedFormat is returned for file extensions without a decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio file format")

// Clip is a decoded mono signal.
type Clip struct {
	Samples    []float32
	SampleRate float64
}

// Duration returns the length of the clip.
func (c *Clip) Duration() time.Duration {
	return time.Duration(float64(len(c.Samples)) / c.SampleRate * float64(time.Second))
}

// LoadClip decodes the file at source, or synthesizes a tone when source
// starts with TonePrefix. toneRate is the sample rate used for tones.
func LoadClip(source string, toneRate float64) (*Clip, error) {
	if spec, ok := strings.CutPrefix(source, TonePrefix); ok {
		freq, err := strconv.ParseFloat(spec, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tone frequency %q: %w", spec, err)
		}
		return ToneClip(freq, toneRate)
	}
	return DecodeFile(source)
}

// ToneClip synthesizes one second of a full-scale sine. The clip loops
// seamlessly only for integer frequencies.
func ToneClip(freq, sampleRate float64) (*Clip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid tone sample rate %v", sampleRate)
	}
	if !(freq > 0 && freq < sampleRate/2) {
		return nil, fmt.Errorf("tone frequency %v Hz outside (0, %v)", freq, sampleRate/2)
	}
	samples := make([]float32, int(sampleRate))
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return &Clip{Samples: samples, SampleRate: sampleRate}, nil
}

// DecodeFile decodes a .wav, .mp3 or .ogg file and mixes it down to mono.
func DecodeFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var clip *Clip
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		clip, err = decodeWAV(f)
	case ".mp3":
		clip, err = decodeMP3(bufio.NewReader(f))
	case ".ogg", ".oga":
		clip, err = decodeOgg(bufio.NewReader(f))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(clip.Samples) == 0 {
		return nil, fmt.Errorf("%s contains no audio", path)
	}
	log.Debugf("audio: decoded %s, %d samples at %.0f Hz (%v)",
		path, len(clip.Samples), clip.SampleRate, clip.Duration())
	return clip, nil
}

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	channels := int(d.NumChans)
	if channels < 1 || d.BitDepth < 8 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, d.BitDepth)
	}
	scale := 1 / float32(int64(1)<<(d.BitDepth-1))
	mono := make([]float32, len(buf.Data)/channels)
	for i := range mono {
		var sum int
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}
		mono[i] = float32(sum) * scale / float32(channels)
	}
	return &Clip{Samples: mono, SampleRate: float64(d.SampleRate)}, nil
}

// go-mp3 always produces 16-bit little-endian stereo.
func decodeMP3(r io.Reader) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	const frameBytes = 4
	mono := make([]float32, len(pcm)/frameBytes)
	for i := range mono {
		b := pcm[i*frameBytes:]
		left := int16(uint16(b[0]) | uint16(b[1])<<8)
		right := int16(uint16(b[2]) | uint16(b[3])<<8)
		mono[i] = (float32(left) + float32(right)) / 65536
	}
	return &Clip{Samples: mono, SampleRate: float64(dec.SampleRate())}, nil
}

func decodeOgg(r io.Reader) (*Clip, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	channels := format.Channels
	if channels < 1 {
		return nil, errors.New("ogg stream has no channels")
	}
	mono := make([]float32, len(data)/channels)
	for i := range mono {
		var sum float32
		for _, s := range data[i*channels : (i+1)*channels] {
			sum += s
		}
		mono[i] = sum / float32(channels)
	}
	return &Clip{Samples: mono, SampleRate: float64(format.SampleRate)}, nil
}

// ClipDriver plays a Clip in a loop at real-time pace from its own
// goroutine, standing in for an audio device.
type ClipDriver struct {
	clip   *Clip
	frames int
	period time.Duration

	handler Handler
	block   []float32
	pos     int

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewClipDriver creates a driver delivering blocks of frames samples.
func NewClipDriver(clip *Clip, frames int) (*ClipDriver, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", frames)
	}
	if clip == nil || len(clip.Samples) == 0 {
		return nil, errors.New("empty clip")
	}
	return &ClipDriver{
		clip:   clip,
		frames: frames,
		period: time.Duration(float64(frames) / clip.SampleRate * float64(time.Second)),
		block:  make([]float32, frames),
		done:   make(chan struct{}),
	}, nil
}

func (d *ClipDriver) SampleRate() float64 { return d.clip.SampleRate }
func (d *ClipDriver) BufferSize() int { return d.frames }

// Activate starts the feeder goroutine.
func (d *ClipDriver) Activate(h Handler) error {
	if d.handler != nil {
		return errors.New("clip driver already active")
	}
	d.handler = h
	d.wg.Add(1)
	go d.run()
	return nil
}

func (d *ClipDriver) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			if d.next() == Quit {
				return
			}
		}
	}
}

// next delivers the following block, wrapping at the end of the clip.
func (d *ClipDriver) next() Control {
	samples := d.clip.Samples
	for i := range d.block {
		d.block[i] = samples[d.pos]
		d.pos++
		if d.pos == len(samples) {
			d.pos = 0
		}
	}
	return d.handler.Process(d.block)
}

// Close stops the feeder and waits for it to exit.
func (d *ClipDriver) Close() error {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
	return nil
}
