// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"spectre/internal/display"
	applog "spectre/internal/log"
)

/*
Packet layout, big endian:

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |   (int64, unix ns)    |     Count     |    (N * float32 dBFS)   |
|                   |                       |   (uint16)    |                         |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the size of the fixed part of a packet.
const HeaderSize = 4 + 8 + 2

// MaxPacketSize is the largest UDP payload over IPv4.
const MaxPacketSize = 65507

// MaxMagnitudes is the largest spectrum that fits one datagram.
const MaxMagnitudes = (MaxPacketSize - HeaderSize) / 4

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("udp packet too short")

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Magnitudes []float32
}

// WritePacket appends one packet to buf.
func WritePacket(buf *bytes.Buffer, seq uint32, timestamp int64, magnitudes []float32) error {
	if len(magnitudes) > MaxMagnitudes {
		return fmt.Errorf("%d magnitudes exceed packet limit %d", len(magnitudes), MaxMagnitudes)
	}
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(magnitudes)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, magnitudes)
	}
	return err
}

// ParsePacket decodes a packet written by WritePacket.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) < HeaderSize+4*count {
		return Packet{}, fmt.Errorf("%w: %d magnitudes announced, %d bytes present",
			ErrShortPacket, count, len(data)-HeaderSize)
	}
	p.Magnitudes = make([]float32, count)
	for i := range p.Magnitudes {
		off := HeaderSize + 4*i
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return p, nil
}

// Sender delivers a packet. Satisfied by *UDPSender.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// UDPPublisher is a display that sends the latest rendered spectrum as a
// packet once per interval, independent of the frame rate. Frames rendered
// between two ticks are coalesced; a tick without a new frame sends nothing.
type UDPPublisher struct {
	sender   Sender
	width    int
	interval time.Duration

	mu     sync.Mutex // protects latest and fresh
	latest []float32
	fresh  bool

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sequenceNum  uint32
	sendBuffer   []float32
	packetBuffer *bytes.Buffer
}

var _ display.Display = (*UDPPublisher)(nil)

// NewUDPPublisher starts the publishing goroutine. An interval <= 0
// defaults to 16ms.
func NewUDPPublisher(interval time.Duration, width int, sender Sender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if width <= 0 || width > MaxMagnitudes {
		return nil, fmt.Errorf("UDPPublisher: width %d out of range [1, %d]", width, MaxMagnitudes)
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: invalid interval, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: publishing %d bins every %s", width, interval)

	p := &UDPPublisher{
		sender:       sender,
		width:        width,
		interval:     interval,
		latest:       make([]float32, width),
		sendBuffer:   make([]float32, width),
		packetBuffer: new(bytes.Buffer),
		doneChan:     make(chan struct{}),
	}

	ticker := time.NewTicker(interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-p.doneChan:
				return
			}
		}
	}()
	return p, nil
}

func (p *UDPPublisher) Width() int {
	return p.width
}

// Render stores spectrum for the next tick.
func (p *UDPPublisher) Render(spectrum []float32) error {
	if len(spectrum) != p.width {
		return fmt.Errorf("UDPPublisher: got %d bins, want %d", len(spectrum), p.width)
	}
	p.mu.Lock()
	copy(p.latest, spectrum)
	p.fresh = true
	p.mu.Unlock()
	return nil
}

func (p *UDPPublisher) ReportUnderrun() error {
	return nil
}

func (p *UDPPublisher) ReportOverrun(excess uint64) error {
	applog.Debugf("UDPPublisher: overrun of %d samples, keeping previous spectrum", excess)
	return nil
}

func (p *UDPPublisher) publish() {
	p.mu.Lock()
	if !p.fresh {
		p.mu.Unlock()
		return
	}
	copy(p.sendBuffer, p.latest)
	p.fresh = false
	p.mu.Unlock()

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := WritePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), p.sendBuffer); err != nil {
		applog.Errorf("UDPPublisher: error packing packet %d: %v", p.sequenceNum, err)
		return
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Warnf("UDPPublisher: %v", err)
		return
	}
	applog.Debugf("UDPPublisher: sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
}

// Close stops publishing and closes the sender. Safe to call more than once.
func (p *UDPPublisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.wg.Wait()
		err = p.sender.Close()
		applog.Infof("UDPPublisher: stopped after %d packets", p.sequenceNum)
	})
	return err
}
