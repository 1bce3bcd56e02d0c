// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spectre/internal/analysis"
	"spectre/internal/display"
	"spectre/internal/log"
)

// WebSocketConfig configures a WebSocketDisplay.
type WebSocketConfig struct {
	Addr        string        // listen address, e.g. ":8080"
	Width       int           // spectrum bins per frame
	Axis        display.Axis  // axis the bins are laid out on
	SampleRate  float64       // reported to clients
	MinInterval time.Duration // minimum time between broadcasts
	Floor       float32       // lowest level sent, DefaultFloor when zero
}

// WebSocketDisplay serves frames to websocket clients on /ws. Each client
// first receives a Hello, then every broadcast frame as JSON.
type WebSocketDisplay struct {
	cfg      WebSocketConfig
	session  string
	hello    Hello
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	wg        sync.WaitGroup
	closeOnce sync.Once

	bands    *analysis.BandMeter
	lastSend time.Time
	seq      uint64
	dropped  uint64
}

var _ display.Display = (*WebSocketDisplay)(nil)

// NewWebSocketDisplay starts listening on cfg.Addr and returns once the
// server accepts connections.
func NewWebSocketDisplay(cfg WebSocketConfig) (*WebSocketDisplay, error) {
	if cfg.Width <= 0 {
		return nil, fmt.Errorf("websocket display width must be positive, got %d", cfg.Width)
	}
	if cfg.Floor == 0 {
		cfg.Floor = DefaultFloor
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	centers := cfg.Axis.Centers(cfg.Width)
	session := uuid.NewString()
	wsd := &WebSocketDisplay{
		cfg:     cfg,
		session: session,
		hello: Hello{
			Type:        TypeHello,
			Session:     session,
			SampleRate:  cfg.SampleRate,
			MinFreq:     cfg.Axis.MinFreq,
			MaxFreq:     cfg.Axis.MaxFreq,
			LogScale:    cfg.Axis.LogScale,
			Frequencies: centers,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		listener:  listener,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		bands:     analysis.NewBandMeter(analysis.DefaultBands, centers),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsd.handleWebSocket)
	wsd.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wsd.wg.Add(2)
	go func() {
		defer wsd.wg.Done()
		log.Infof("websocket: serving session %s on %s/ws", session, listener.Addr())
		if err := wsd.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("websocket: server error: %v", err)
		}
	}()
	go func() {
		defer wsd.wg.Done()
		wsd.handleBroadcasts()
	}()

	return wsd, nil
}

// Addr returns the address the server listens on.
func (wsd *WebSocketDisplay) Addr() net.Addr {
	return wsd.listener.Addr()
}

// Session returns the id sent to every client in its Hello.
func (wsd *WebSocketDisplay) Session() string {
	return wsd.session
}

// Clients returns the number of connected clients.
func (wsd *WebSocketDisplay) Clients() int {
	wsd.clientsMu.Lock()
	defer wsd.clientsMu.Unlock()
	return len(wsd.clients)
}

func (wsd *WebSocketDisplay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket: upgrade error: %v", err)
		return
	}

	// The hello goes out under the lock so no broadcast can precede it.
	wsd.clientsMu.Lock()
	if err := conn.WriteJSON(wsd.hello); err != nil {
		wsd.clientsMu.Unlock()
		log.Warnf("websocket: sending hello to %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	wsd.clients[conn] = true
	total := len(wsd.clients)
	wsd.clientsMu.Unlock()
	log.Infof("websocket: client %s connected, total: %d", conn.RemoteAddr(), total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wsd.drop(conn)
				return
			}
		}
	}()
}

func (wsd *WebSocketDisplay) drop(conn *websocket.Conn) {
	wsd.clientsMu.Lock()
	_, ok := wsd.clients[conn]
	delete(wsd.clients, conn)
	total := len(wsd.clients)
	wsd.clientsMu.Unlock()
	conn.Close()
	if ok {
		log.Infof("websocket: client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (wsd *WebSocketDisplay) handleBroadcasts() {
	for msg := range wsd.broadcast {
		wsd.clientsMu.Lock()
		for client := range wsd.clients {
			if err := client.WriteJSON(msg); err != nil {
				log.Warnf("websocket: error sending to %s: %v", client.RemoteAddr(), err)
				client.Close()
				delete(wsd.clients, client)
			}
		}
		wsd.clientsMu.Unlock()
	}
}

// send queues msg, dropping it when the queue is full.
func (wsd *WebSocketDisplay) send(msg any) {
	select {
	case wsd.broadcast <- msg:
	default:
		wsd.dropped++
		if wsd.dropped%100 == 1 {
			log.Warnf("websocket: broadcast queue full, %d messages dropped", wsd.dropped)
		}
	}
}

func (wsd *WebSocketDisplay) allow() bool {
	now := time.Now()
	if now.Sub(wsd.lastSend) < wsd.cfg.MinInterval {
		return false
	}
	wsd.lastSend = now
	return true
}

func (wsd *WebSocketDisplay) Width() int {
	return wsd.cfg.Width
}

func (wsd *WebSocketDisplay) Render(spectrum []float32) error {
	if !wsd.allow() {
		return nil
	}
	wsd.seq++
	wsd.send(SpectrumMessage{
		Type:      TypeSpectrum,
		Seq:       wsd.seq,
		Timestamp: time.Now().UnixMilli(),
		Spectrum:  clampFloor(nil, spectrum, wsd.cfg.Floor),
		Bands:     clampBands(nil, wsd.bands.Measure(spectrum), float64(wsd.cfg.Floor)),
	})
	return nil
}

// ReportUnderrun sends nothing; clients see the gap in sequence timestamps.
func (wsd *WebSocketDisplay) ReportUnderrun() error {
	return nil
}

func (wsd *WebSocketDisplay) ReportOverrun(excess uint64) error {
	wsd.send(StatusMessage{
		Type:   TypeStatus,
		Status: analysis.StatusOverrun.String(),
		Excess: excess,
	})
	return nil
}

// Close disconnects every client and stops the server. Safe to call more
// than once.
func (wsd *WebSocketDisplay) Close() error {
	var err error
	wsd.closeOnce.Do(func() {
		log.Infof("websocket: closing server")
		err = wsd.server.Close()

		wsd.clientsMu.Lock()
		for client := range wsd.clients {
			client.Close()
		}
		clear(wsd.clients)
		wsd.clientsMu.Unlock()

		close(wsd.broadcast)
		wsd.wg.Wait()
	})
	return err
}
