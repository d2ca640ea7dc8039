package pairing

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/rs485gw/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startWebSocket(t *testing.T, onData func([]byte)) *WebSocket {
	t.Helper()
	w := NewWebSocket("127.0.0.1:0", "/ws", "")
	if err := w.Start(onData); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func dialPeer(t *testing.T, w *WebSocket) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+w.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var got []string
	w := startWebSocket(t, func(p []byte) {
		mu.Lock()
		got = append(got, string(p))
		mu.Unlock()
	})

	if err := w.Write([]byte("dropped\n")); err != nil {
		t.Errorf("Write() without peer error = %v", err)
	}

	peer := dialPeer(t, w)
	waitFor(t, w.Connected)

	if err := peer.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"wifi_status"}`)); err != nil {
		t.Fatalf("peer write error = %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	if got[0] != "{\"cmd\":\"wifi_status\"}\n" {
		t.Errorf("onData got %q, want terminated line", got[0])
	}

	if err := w.Write([]byte("{\"ok\":true}\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read error = %v", err)
	}
	if strings.TrimSpace(string(msg)) != `{"ok":true}` {
		t.Errorf("peer got %q", msg)
	}
}

func TestWebSocketLogsReceivedFrames(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	received := make(chan struct{}, 1)
	w := startWebSocket(t, func([]byte) { received <- struct{}{} })
	peer := dialPeer(t, w)
	waitFor(t, w.Connected)

	if err := peer.WriteMessage(websocket.TextMessage, []byte("AB")); err != nil {
		t.Fatalf("peer write error = %v", err)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}

	entries := logs.FilterMessage("Pairing rx").All()
	if len(entries) != 1 {
		t.Fatalf("got %d rx log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "41420a" || fields["ascii"] != "AB." || fields["length"] != int64(3) {
		t.Errorf("rx log fields = %v", fields)
	}
}

func TestWebSocketNewPeerReplacesOld(t *testing.T) {
	w := startWebSocket(t, func([]byte) {})

	first := dialPeer(t, w)
	waitFor(t, w.Connected)
	second := dialPeer(t, w)

	// The first peer's connection is closed by the gateway.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("first peer still readable after replacement")
	}

	waitFor(t, w.Connected)
	if err := w.Write([]byte("hi\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := second.ReadMessage()
	if err != nil || string(msg) != "hi\n" {
		t.Errorf("second peer got %q, %v", msg, err)
	}
}

func TestWebSocketBindFailure(t *testing.T) {
	w := startWebSocket(t, nil)
	other := NewWebSocket(w.Addr(), "/ws", "")
	if err := other.Start(nil); err == nil {
		_ = other.Close()
		t.Error("Start() on a bound address error = nil, want error")
	}
}
