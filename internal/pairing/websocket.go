package pairing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
)

const (
	// DefaultListen is the address the WebSocket channel serves on.
	DefaultListen = ":3334"
	// DefaultPath is the upgrade endpoint.
	DefaultPath = "/ws"

	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocket is a Channel served over HTTP. At most one peer is attached; a
// new peer replaces the previous one.
type WebSocket struct {
	addr string
	path string
	name string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	peer    *websocket.Conn
	started bool
	ln      net.Listener
	srv     *http.Server
	onData  func([]byte)

	// writeMu serializes frame writes; gorilla allows one writer at a time.
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewWebSocket returns a channel on addr and path, e.g. ":3334" and "/ws".
func NewWebSocket(addr, path, name string) *WebSocket {
	if addr == "" {
		addr = DefaultListen
	}
	if path == "" {
		path = DefaultPath
	}
	if name == "" {
		name = DefaultName
	}
	return &WebSocket{
		addr: addr,
		path: path,
		name: name,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
	}
}

func (w *WebSocket) Start(onData func([]byte)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrStarted
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleUpgrade)

	w.ln = ln
	w.onData = onData
	w.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	w.started = true

	go func() {
		if err := w.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Pairing server stopped", zap.Error(err))
		}
	}()

	logging.Info("Pairing channel started",
		zap.String("transport", "websocket"),
		zap.String("addr", ln.Addr().String()),
		zap.String("path", w.path),
		zap.String("name", w.name),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (w *WebSocket) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ln == nil {
		return ""
	}
	return w.ln.Addr().String()
}

func (w *WebSocket) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logging.Warn("Pairing upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	w.mu.Lock()
	old := w.peer
	w.peer = conn
	onData := w.onData
	w.mu.Unlock()

	if old != nil {
		_ = old.Close()
		logging.LogConnection("pairing", old.RemoteAddr().String(), "peer_replaced")
	}
	logging.LogConnection("pairing", r.RemoteAddr, "peer_attached")

	w.wg.Add(1)
	defer w.wg.Done()
	w.serve(conn, onData)
}

// serve reads frames from one peer until it goes away.
func (w *WebSocket) serve(conn *websocket.Conn, onData func([]byte)) {
	remote := conn.RemoteAddr().String()
	done := make(chan struct{})

	defer func() {
		close(done)
		w.mu.Lock()
		if w.peer == conn {
			w.peer = nil
		}
		w.mu.Unlock()
		_ = conn.Close()
		logging.LogConnection("pairing", remote, "peer_detached")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go w.keepAlive(conn, done)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Pairing read ended",
					zap.String("remote_addr", remote),
					zap.Error(err),
				)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		// One frame is one line.
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		logging.LogRawBytes("Pairing rx", data)
		if onData != nil {
			onData(data)
		}
	}
}

func (w *WebSocket) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Write sends p as one text frame. Without a peer the write is dropped.
func (w *WebSocket) Write(p []byte) error {
	w.mu.Lock()
	conn := w.peer
	w.mu.Unlock()
	if conn == nil {
		return nil
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, p)
}

func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.peer != nil
}

// Close stops the server and detaches the peer.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	srv, peer := w.srv, w.peer
	w.started = false
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	if peer != nil {
		_ = peer.Close()
	}
	w.wg.Wait()
	return err
}
