package protocol

import (
	"strings"
	"testing"
)

func TestLineAssemblerSingleLine(t *testing.T) {
	la := NewLineAssembler(DefaultLineCapacity)

	if la.Feed([]byte(`{"cmd":"wifi_status"}`)) {
		t.Fatal("line should not be ready before terminator")
	}
	if _, ok := la.Take(); ok {
		t.Fatal("Take() should fail while accumulating")
	}
	if !la.Feed([]byte("\n")) {
		t.Fatal("line should be ready after terminator")
	}

	line, ok := la.Take()
	if !ok {
		t.Fatal("Take() returned false for ready line")
	}
	if line != "{\"cmd\":\"wifi_status\"}\n" {
		t.Errorf("Take() = %q", line)
	}
	if la.Ready() || la.Len() != 0 {
		t.Error("assembler should reset after Take()")
	}
}

func TestLineAssemblerByteAtATime(t *testing.T) {
	la := NewLineAssembler(DefaultLineCapacity)
	msg := "{\"bus\":1,\"tx_hex\":\"AA\"}\r\n"

	for i := 0; i < len(msg); i++ {
		la.Feed([]byte{msg[i]})
	}

	line, ok := la.Take()
	if !ok {
		t.Fatal("expected ready line")
	}
	payload, ok := Payload(line)
	if !ok || payload != `{"bus":1,"tx_hex":"AA"}` {
		t.Errorf("Payload() = %q, %v", payload, ok)
	}
}

func TestLineAssemblerTruncation(t *testing.T) {
	const capacity = 512
	la := NewLineAssembler(capacity)

	la.Feed([]byte(strings.Repeat("x", 700)))
	if la.Ready() {
		t.Fatal("line should not be ready without terminator")
	}
	if la.Len() != capacity-1 {
		t.Fatalf("Len() = %d, want %d", la.Len(), capacity-1)
	}

	if !la.Feed([]byte{'\n'}) {
		t.Fatal("terminator must be honoured when the buffer is full")
	}
	line, ok := la.Take()
	if !ok {
		t.Fatal("expected ready line")
	}
	if len(line) != capacity-1 {
		t.Errorf("truncated line length = %d, want %d", len(line), capacity-1)
	}
	if strings.ContainsRune(line, '\n') {
		t.Error("terminator should not fit into a full buffer")
	}

	// The buffer must be clean for the next line.
	la.Feed([]byte("{\"cmd\":\"tcp_stop\"}\n"))
	line, ok = la.Take()
	if !ok || line != "{\"cmd\":\"tcp_stop\"}\n" {
		t.Errorf("next line = %q, %v", line, ok)
	}
}

func TestLineAssemblerBytesWhileReady(t *testing.T) {
	la := NewLineAssembler(DefaultLineCapacity)

	la.Feed([]byte("{\"cmd\":\"a\"}\n{\"cmd\":\"b\"}\n"))
	line, ok := la.Take()
	if !ok {
		t.Fatal("expected ready line")
	}
	if line != "{\"cmd\":\"a\"}\n{\"cmd\":\"b\"}\n" {
		t.Errorf("Take() = %q, want both lines in one snapshot", line)
	}
}

func TestLineAssemblerTakeWithoutReadyKeepsPartial(t *testing.T) {
	la := NewLineAssembler(16)
	la.Feed([]byte("abc"))
	if _, ok := la.Take(); ok {
		t.Fatal("Take() should not succeed")
	}
	la.Feed([]byte("\n"))
	line, _ := la.Take()
	if line != "abc\n" {
		t.Errorf("Take() = %q, want %q", line, "abc\n")
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"\n", "", false},
		{"   \r\n", "", false},
		{"\t{\"cmd\":\"x\"} \r\n", `{"cmd":"x"}`, true},
		{"abc", "abc", true},
	}
	for _, tt := range tests {
		got, ok := Payload(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Payload(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
