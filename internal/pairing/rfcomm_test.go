package pairing

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// pipeDevice is an in-memory RFCOMM device. Reads come from in, writes go
// to out.
type pipeDevice struct {
	in *io.PipeReader

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func (d *pipeDevice) Read(p []byte) (int, error) { return d.in.Read(p) }

func (d *pipeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Write(p)
}

func (d *pipeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.in.Close()
}

func (d *pipeDevice) written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRFCOMMDeliversAndWrites(t *testing.T) {
	pr, pw := io.Pipe()
	dev := &pipeDevice{in: pr}

	r := NewRFCOMM("/dev/rfcomm0", 115200, "")
	r.open = func(string, int) (device, error) { return dev, nil }

	var mu sync.Mutex
	var got []byte
	if err := r.Start(func(p []byte) {
		mu.Lock()
		got = append(got, p...)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Close()

	waitFor(t, r.Connected)

	go func() { _, _ = pw.Write([]byte("{\"cmd\":\"wifi_status\"}\n")) }()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 22
	})

	if err := r.Write([]byte("{\"ok\":true}\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if w := dev.written(); w != "{\"ok\":true}\n" {
		t.Errorf("device got %q", w)
	}
}

func TestRFCOMMWriteWithoutDevice(t *testing.T) {
	r := NewRFCOMM("/dev/rfcomm9", 115200, "")
	r.open = func(string, int) (device, error) { return nil, errors.New("no such file") }

	if err := r.Start(func([]byte) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Close()

	if r.Connected() {
		t.Error("Connected() = true, want false")
	}
	if err := r.Write([]byte("x\n")); err != nil {
		t.Errorf("Write() error = %v, want nil (dropped)", err)
	}
}

func TestRFCOMMStartTwice(t *testing.T) {
	r := NewRFCOMM("/dev/rfcomm0", 115200, "")
	r.open = func(string, int) (device, error) { return nil, errors.New("absent") }

	if err := r.Start(func([]byte) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Close()

	if err := r.Start(func([]byte) {}); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() error = %v, want ErrStarted", err)
	}
}

func TestRFCOMMCloseUnblocksRead(t *testing.T) {
	pr, _ := io.Pipe()
	dev := &pipeDevice{in: pr}

	r := NewRFCOMM("/dev/rfcomm0", 115200, "")
	r.open = func(string, int) (device, error) { return dev, nil }
	_ = r.Start(func([]byte) {})
	waitFor(t, r.Connected)

	done := make(chan struct{})
	go func() {
		_ = r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
	if r.Connected() {
		t.Error("Connected() after Close = true")
	}
}

func TestNullChannel(t *testing.T) {
	var c Channel = Null{}
	if err := c.Start(nil); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := c.Write([]byte("x")); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if c.Connected() {
		t.Error("Connected() = true")
	}
}
