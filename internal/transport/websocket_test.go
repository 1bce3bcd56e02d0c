// SPDX-License-Identifier: MIT
package transport

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spectre/internal/display"
)

var testAxis = display.Axis{MinFreq: 20, MaxFreq: 20000, LogScale: true}

func startWebSocket(t *testing.T, interval time.Duration) (*WebSocketDisplay, *websocket.Conn) {
	t.Helper()
	wsd, err := NewWebSocketDisplay(WebSocketConfig{
		Addr:        "127.0.0.1:0",
		Width:       12,
		Axis:        testAxis,
		SampleRate:  48000,
		MinInterval: interval,
	})
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	t.Cleanup(func() { wsd.Close() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wsd.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return wsd, conn
}

func TestWebSocketHello(t *testing.T) {
	wsd, conn := startWebSocket(t, 0)

	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if hello.Type != TypeHello {
		t.Errorf("type %q, want %q", hello.Type, TypeHello)
	}
	if hello.Session != wsd.Session() {
		t.Errorf("session %q, want %q", hello.Session, wsd.Session())
	}
	if _, err := uuid.Parse(hello.Session); err != nil {
		t.Errorf("session %q is not a UUID: %v", hello.Session, err)
	}
	if len(hello.Frequencies) != 12 {
		t.Fatalf("%d frequencies, want 12", len(hello.Frequencies))
	}
	for i := 1; i < len(hello.Frequencies); i++ {
		if hello.Frequencies[i] <= hello.Frequencies[i-1] {
			t.Errorf("frequencies not increasing at %d: %v", i, hello.Frequencies)
		}
	}
	if hello.SampleRate != 48000 || !hello.LogScale {
		t.Errorf("unexpected hello %+v", hello)
	}
	if wsd.Clients() != 1 {
		t.Errorf("%d clients, want 1", wsd.Clients())
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wsd, conn := startWebSocket(t, 0)
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	spectrum := make([]float32, 12)
	for i := range spectrum {
		spectrum[i] = -float32(i)
	}
	spectrum[11] = float32(math.Inf(-1))
	if err := wsd.Render(spectrum); err != nil {
		t.Fatal(err)
	}

	var msg SpectrumMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if msg.Type != TypeSpectrum || msg.Seq != 1 {
		t.Errorf("unexpected header %q seq %d", msg.Type, msg.Seq)
	}
	if len(msg.Spectrum) != 12 {
		t.Fatalf("%d bins, want 12", len(msg.Spectrum))
	}
	if msg.Spectrum[3] != -3 {
		t.Errorf("bin 3 = %v, want -3", msg.Spectrum[3])
	}
	if msg.Spectrum[11] != DefaultFloor {
		t.Errorf("silent bin = %v, want floor %v", msg.Spectrum[11], DefaultFloor)
	}
	if len(msg.Bands) == 0 {
		t.Error("no band levels")
	}

	if err := wsd.ReportOverrun(42); err != nil {
		t.Fatal(err)
	}
	var status StatusMessage
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("reading status: %v", err)
	}
	if status.Type != TypeStatus || status.Status != "overrun" || status.Excess != 42 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	wsd, conn := startWebSocket(t, time.Hour)
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	spectrum := make([]float32, 12)
	wsd.Render(spectrum)
	wsd.Render(spectrum)

	var msg SpectrumMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := conn.ReadJSON(&msg); err == nil {
		t.Errorf("second frame within the interval was sent: seq %d", msg.Seq)
	}
}

func TestWebSocketClose(t *testing.T) {
	wsd, conn := startWebSocket(t, 0)
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if err := wsd.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Close")
	}
	if err := wsd.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWebSocketRejectsZeroWidth(t *testing.T) {
	if _, err := NewWebSocketDisplay(WebSocketConfig{Addr: "127.0.0.1:0"}); err == nil {
		t.Error("expected error for zero width")
	}
}
