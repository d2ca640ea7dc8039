package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/rs485gw/internal/client"
	"github.com/muurk/rs485gw/internal/protocol"
)

type fakeConn struct {
	sent    []string
	sendErr error
	events  chan client.Message
	replies chan client.Message
	done    chan struct{}
	err     error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events:  make(chan client.Message, 4),
		replies: make(chan client.Message, 4),
		done:    make(chan struct{}),
	}
}

func (f *fakeConn) Address() string { return "192.168.1.40:3333" }

func (f *fakeConn) Send(line string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeConn) Events() <-chan client.Message  { return f.events }
func (f *fakeConn) Replies() <-chan client.Message { return f.replies }
func (f *fakeConn) Done() <-chan struct{}          { return f.done }
func (f *fakeConn) Err() error                     { return f.err }

func decode(t *testing.T, line string) client.Message {
	t.Helper()
	reply, err := protocol.DecodeReply(line)
	if err != nil {
		t.Fatalf("DecodeReply(%s) error = %v", line, err)
	}
	return client.Message{Raw: line, Reply: reply, Received: time.Unix(0, 0)}
}

func update(t *testing.T, m MonitorModel, msg tea.Msg) (MonitorModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(MonitorModel)
	if !ok {
		t.Fatalf("Update() returned %T, want MonitorModel", next)
	}
	return mm, cmd
}

func typeLine(t *testing.T, m MonitorModel, text string) MonitorModel {
	t.Helper()
	m.Input.SetValue(text)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func TestMonitorSendsExpandedInput(t *testing.T) {
	conn := newFakeConn()
	m := NewMonitorModel(conn)

	m = typeLine(t, m, "tx 1 01 02")
	m = typeLine(t, m, `{"cmd":"tcp_stop"}`)

	want := []string{`{"bus":1,"tx_hex":"01 02"}`, `{"cmd":"tcp_stop"}`}
	if len(conn.sent) != len(want) {
		t.Fatalf("sent = %v, want %v", conn.sent, want)
	}
	for i := range want {
		if conn.sent[i] != want[i] {
			t.Errorf("sent[%d] = %s, want %s", i, conn.sent[i], want[i])
		}
	}
	if m.Input.Value() != "" {
		t.Errorf("input = %q after send, want empty", m.Input.Value())
	}
	if m.Counts[KindSent] != 2 {
		t.Errorf("sent count = %d, want 2", m.Counts[KindSent])
	}
}

func TestMonitorRejectsBadShorthand(t *testing.T) {
	conn := newFakeConn()
	m := NewMonitorModel(conn)

	m = typeLine(t, m, "tx one AA")
	if len(conn.sent) != 0 {
		t.Errorf("sent = %v, want nothing", conn.sent)
	}
	if len(m.Lines) != 1 || !strings.Contains(m.Lines[0], "invalid bus") {
		t.Errorf("lines = %v, want one invalid bus line", m.Lines)
	}
}

func TestMonitorShowsMessages(t *testing.T) {
	conn := newFakeConn()
	m := NewMonitorModel(conn)

	var cmd tea.Cmd
	m, cmd = update(t, m, messageMsg(decode(t, `{"bus":2,"rx_hex":"AA BB"}`)))
	if cmd == nil {
		t.Error("Update(message) returned nil cmd, want next wait")
	}
	m, _ = update(t, m, messageMsg(decode(t, `{"event":"tcp_client_connected"}`)))
	m, _ = update(t, m, messageMsg(decode(t, `{"ok":false,"err":"bad json"}`)))
	m, _ = update(t, m, messageMsg(client.Message{Raw: "garbage"}))

	if len(m.Lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(m.Lines))
	}
	if !strings.Contains(m.Lines[0], "bus 2  AA BB") {
		t.Errorf("rx line = %q", m.Lines[0])
	}
	if m.Counts[KindRx] != 1 || m.Counts[KindEvent] != 1 || m.Counts[KindError] != 1 || m.Counts[KindInvalid] != 1 {
		t.Errorf("counts = %v", m.Counts)
	}
}

func TestMonitorWaitForMessage(t *testing.T) {
	conn := newFakeConn()
	conn.replies <- decode(t, `{"cmd":"tcp_stop","ok":true}`)

	msg := waitForMessage(conn)()
	got, ok := msg.(messageMsg)
	if !ok {
		t.Fatalf("waitForMessage() = %T, want messageMsg", msg)
	}
	if got.Reply.Cmd != "tcp_stop" {
		t.Errorf("reply cmd = %q, want tcp_stop", got.Reply.Cmd)
	}

	conn.err = errors.New("connection reset")
	close(conn.done)
	if _, ok := waitForMessage(conn)().(disconnectedMsg); !ok {
		t.Error("waitForMessage() after close did not return disconnectedMsg")
	}
}

func TestMonitorDisconnect(t *testing.T) {
	conn := newFakeConn()
	m := NewMonitorModel(conn)

	m, _ = update(t, m, disconnectedMsg{err: client.ErrClosed})
	if m.Connected {
		t.Error("Connected = true after disconnect")
	}
	if !strings.Contains(m.statusBar(), "disconnected") {
		t.Errorf("status bar = %q, want disconnected", m.statusBar())
	}

	m = typeLine(t, m, "status")
	if len(conn.sent) != 0 {
		t.Errorf("sent = %v while disconnected, want nothing", conn.sent)
	}
}

func TestMonitorScrollbackLimit(t *testing.T) {
	m := NewMonitorModel(newFakeConn())
	m.MaxLines = 3
	for i := 0; i < 5; i++ {
		m.appendLine(string(rune('a' + i)))
	}
	if strings.Join(m.Lines, "") != "cde" {
		t.Errorf("lines = %v, want [c d e]", m.Lines)
	}
}

func TestMonitorQuit(t *testing.T) {
	m := NewMonitorModel(newFakeConn())
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned nil cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestExpandInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "tx 1 01 03 00 00", want: `{"bus":1,"tx_hex":"01 03 00 00"}`},
		{in: "TX 2 AA:BB", want: `{"bus":2,"tx_hex":"AA:BB"}`},
		{in: "baud 2 9600", want: `{"bus":2,"baud":9600}`},
		{in: "join plant", want: `{"cmd":"wifi_connect","ssid":"plant","pwd":""}`},
		{in: "join plant secret 4000", want: `{"cmd":"wifi_connect","ssid":"plant","pwd":"secret","port":4000}`},
		{in: "status", want: `{"cmd":"wifi_status"}`},
		{in: "disconnect", want: `{"cmd":"wifi_disconnect"}`},
		{in: "stop", want: `{"cmd":"tcp_stop"}`},
		{in: `  {"bus":1} `, want: `{"bus":1}`},
		{in: "tx 1", wantErr: true},
		{in: "baud x 9600", wantErr: true},
		{in: "baud 1 fast", wantErr: true},
		{in: "join plant pw port", wantErr: true},
		{in: "reboot", wantErr: true},
		{in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandInput(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandInput(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExpandInput(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
