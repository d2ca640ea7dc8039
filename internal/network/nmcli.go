package network

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
)

// nmcliQueryTimeout bounds status queries so a hung NetworkManager cannot
// stall the main loop indefinitely.
const nmcliQueryTimeout = 2 * time.Second

// runner executes a command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// NMCLI joins Wi-Fi networks through NetworkManager's command line client.
type NMCLI struct {
	iface string
	run   runner

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending chan struct{}
	joinErr error
}

// NewNMCLI returns a Joiner for the wireless interface iface (e.g. wlan0).
func NewNMCLI(iface string) *NMCLI {
	return &NMCLI{iface: iface, run: execRunner}
}

// Begin starts `nmcli device wifi connect` in the background. An empty
// password joins an open network.
func (n *NMCLI) Begin(ssid, password string) error {
	if ssid == "" {
		return fmt.Errorf("empty ssid")
	}

	n.abandon()

	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if n.iface != "" {
		args = append(args, "ifname", n.iface)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	n.cancel = cancel
	n.pending = done
	n.joinErr = nil
	n.mu.Unlock()

	logging.Info("Joining wireless network",
		zap.String("ssid", ssid),
		zap.String("interface", n.iface),
	)

	go func() {
		defer close(done)
		_, err := n.run(ctx, "nmcli", args...)
		if err != nil && ctx.Err() == nil {
			logging.Warn("Wireless join failed",
				zap.String("ssid", ssid),
				zap.Error(err),
			)
			n.mu.Lock()
			n.joinErr = err
			n.mu.Unlock()
		}
	}()
	return nil
}

// Status queries the interface state, address and signal.
func (n *NMCLI) Status() Status {
	ctx, cancel := context.WithTimeout(context.Background(), nmcliQueryTimeout)
	defer cancel()

	args := []string{"-t", "-f", "GENERAL.STATE,IP4.ADDRESS", "device", "show"}
	if n.iface != "" {
		args = append(args, n.iface)
	}
	out, err := n.run(ctx, "nmcli", args...)
	if err != nil {
		logging.Debug("nmcli status query failed", zap.Error(err))
		return Status{}
	}

	connected, ip := parseDeviceShow(out)
	if !connected || ip == "" {
		return Status{}
	}

	st := Status{Connected: true, IP: ip}

	args = []string{"-t", "-f", "IN-USE,SIGNAL", "device", "wifi", "list"}
	if n.iface != "" {
		args = append(args, "ifname", n.iface)
	}
	out, err = n.run(ctx, "nmcli", args...)
	if err == nil {
		if signal, ok := parseActiveSignal(out); ok {
			st.RSSI = signalToDBm(signal)
		}
	}
	return st
}

// Leave abandons any pending join and disconnects the interface.
func (n *NMCLI) Leave() error {
	n.abandon()

	if n.iface == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), nmcliQueryTimeout)
	defer cancel()
	if _, err := n.run(ctx, "nmcli", "device", "disconnect", n.iface); err != nil {
		return err
	}
	logging.Info("Left wireless network", zap.String("interface", n.iface))
	return nil
}

// JoinErr returns the error of the last join attempt once it has finished.
func (n *NMCLI) JoinErr() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.joinErr
}

// abandon cancels a running join and waits for it to exit.
func (n *NMCLI) abandon() {
	n.mu.Lock()
	cancel, pending := n.cancel, n.pending
	n.cancel, n.pending = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-pending
}

// parseDeviceShow reads terse `nmcli device show` output:
//
//	GENERAL.STATE:100 (connected)
//	IP4.ADDRESS[1]:192.168.1.23/24
func parseDeviceShow(out []byte) (connected bool, ip string) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch {
		case key == "GENERAL.STATE":
			code, _, _ := strings.Cut(value, " ")
			state, err := strconv.Atoi(code)
			connected = err == nil && state == 100
		case strings.HasPrefix(key, "IP4.ADDRESS") && ip == "":
			addr, _, _ := strings.Cut(value, "/")
			ip = addr
		}
	}
	return connected, ip
}

// parseActiveSignal finds the in-use row of terse `nmcli device wifi list`.
func parseActiveSignal(out []byte) (int, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		inUse, signal, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(inUse) != "*" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(signal))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// signalToDBm maps NetworkManager's 0-100 quality to dBm.
func signalToDBm(signal int) int {
	if signal < 0 {
		signal = 0
	}
	if signal > 100 {
		signal = 100
	}
	return signal/2 - 100
}
