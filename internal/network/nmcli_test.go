package network

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
	errs    map[string]error
	block   chan struct{}
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, line)
	f.mu.Unlock()

	if f.block != nil && strings.Contains(line, "wifi connect") {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for prefix, err := range f.errs {
		if strings.Contains(line, prefix) {
			return nil, err
		}
	}
	for prefix, out := range f.outputs {
		if strings.Contains(line, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func (f *fakeRunner) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestNMCLIStatus(t *testing.T) {
	tests := []struct {
		name    string
		outputs map[string]string
		want    Status
	}{
		{
			name: "connected",
			outputs: map[string]string{
				"device show": "GENERAL.STATE:100 (connected)\nIP4.ADDRESS[1]:192.168.1.23/24\n",
				"wifi list":   " :40\n*:72\n",
			},
			want: Status{Connected: true, IP: "192.168.1.23", RSSI: -64},
		},
		{
			name: "connecting",
			outputs: map[string]string{
				"device show": "GENERAL.STATE:70 (connecting (getting IP configuration))\n",
			},
			want: Status{},
		},
		{
			name: "connected without signal",
			outputs: map[string]string{
				"device show": "GENERAL.STATE:100 (connected)\nIP4.ADDRESS[1]:10.0.0.5/8\n",
			},
			want: Status{Connected: true, IP: "10.0.0.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{outputs: tt.outputs}
			n := NewNMCLI("wlan0")
			n.run = f.run

			if got := n.Status(); got != tt.want {
				t.Errorf("Status() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNMCLIStatusQueryError(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{"device show": errors.New("not running")}}
	n := NewNMCLI("wlan0")
	n.run = f.run

	if got := n.Status(); got != (Status{}) {
		t.Errorf("Status() = %+v, want zero", got)
	}
}

func TestNMCLIBeginArgs(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{"secured", "secret", "nmcli device wifi connect home password secret ifname wlan0"},
		{"open", "", "nmcli device wifi connect home ifname wlan0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{}
			n := NewNMCLI("wlan0")
			n.run = f.run

			if err := n.Begin("home", tt.password); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			n.abandon()

			calls := f.history()
			if len(calls) == 0 || calls[0] != tt.want {
				t.Errorf("calls = %v, want first %q", calls, tt.want)
			}
		})
	}
}

func TestNMCLIBeginEmptySSID(t *testing.T) {
	n := NewNMCLI("wlan0")
	if err := n.Begin("", "x"); err == nil {
		t.Error("Begin(\"\") error = nil, want error")
	}
}

func TestNMCLIJoinError(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{"wifi connect": errors.New("secrets were required")}}
	n := NewNMCLI("wlan0")
	n.run = f.run

	_ = n.Begin("home", "wrong")
	deadline := time.Now().Add(2 * time.Second)
	for n.JoinErr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n.JoinErr() == nil {
		t.Error("JoinErr() = nil, want error")
	}
}

func TestNMCLILeaveCancelsPendingJoin(t *testing.T) {
	f := &fakeRunner{block: make(chan struct{})}
	n := NewNMCLI("wlan0")
	n.run = f.run

	if err := n.Begin("home", "secret"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- n.Leave() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Leave() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Leave() did not return")
	}

	if n.JoinErr() != nil {
		t.Errorf("JoinErr() after cancel = %v, want nil", n.JoinErr())
	}
	calls := f.history()
	if last := calls[len(calls)-1]; last != "nmcli device disconnect wlan0" {
		t.Errorf("last call = %q, want disconnect", last)
	}
}

func TestSignalToDBm(t *testing.T) {
	tests := []struct {
		signal int
		want   int
	}{
		{0, -100},
		{50, -75},
		{72, -64},
		{100, -50},
		{150, -50},
		{-3, -100},
	}
	for _, tt := range tests {
		if got := signalToDBm(tt.signal); got != tt.want {
			t.Errorf("signalToDBm(%d) = %d, want %d", tt.signal, got, tt.want)
		}
	}
}
