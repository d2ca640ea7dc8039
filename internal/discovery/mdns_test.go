package discovery

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "gateway with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "workshop"},
				HostName:      "gw-workshop.local.",
				Port:          3333,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"buses=2", "version=v1.0.0"},
			},
			wantIP:   "192.168.4.16",
			wantPort: 3333,
		},
		{
			name: "no port advertised",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "bench"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				Port:          4000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 4000,
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "dual"},
				Port:          3333,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 3333,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          3333,
			},
			wantNil: true,
		},
		{
			name: "no instance",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if gw != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", gw)
				}
				return
			}
			if gw == nil {
				t.Fatal("parseServiceEntry() = nil, want gateway")
			}
			if gw.IP != tt.wantIP {
				t.Errorf("gw.IP = %v, want %v", gw.IP, tt.wantIP)
			}
			if gw.Port != tt.wantPort {
				t.Errorf("gw.Port = %v, want %v", gw.Port, tt.wantPort)
			}
			if time.Since(gw.DiscoveredAt) > time.Second {
				t.Errorf("gw.DiscoveredAt is not recent: %v", gw.DiscoveredAt)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"buses=2", "version=v1.0.0", "flag", "=orphan", "pairing=ESP32-RS485-GW"})
	want := map[string]string{
		"buses":   "2",
		"version": "v1.0.0",
		"flag":    "",
		"pairing": "ESP32-RS485-GW",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseTXT() = %v, want %v", got, want)
	}
}

func TestGatewayAddress(t *testing.T) {
	tests := []struct {
		ip   string
		port int
		want string
	}{
		{"192.168.1.5", 3333, "192.168.1.5:3333"},
		{"fe80::1", 3333, "[fe80::1]:3333"},
	}
	for _, tt := range tests {
		gw := &Gateway{IP: tt.ip, Port: tt.port}
		if got := gw.Address(); got != tt.want {
			t.Errorf("Address() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

type fakeRegistration struct {
	shutdowns *int
}

func (f fakeRegistration) Shutdown() { *f.shutdowns++ }

type registerCall struct {
	instance, service string
	port              int
	text              []string
}

func TestAdvertiser(t *testing.T) {
	var calls []registerCall
	shutdowns := 0

	a := NewAdvertiser("workshop", "v1.0.0", "pairing=ESP32-RS485-GW")
	a.register = func(instance, service, domain string, port int, text []string) (registration, error) {
		calls = append(calls, registerCall{instance, service, port, text})
		return fakeRegistration{&shutdowns}, nil
	}

	if err := a.Advertise(3333); err != nil {
		t.Fatalf("Advertise() error = %v", err)
	}
	// Same port again is a no-op.
	if err := a.Advertise(3333); err != nil {
		t.Fatalf("Advertise() error = %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("register calls = %d, want 1", len(calls))
	}

	want := registerCall{
		instance: "workshop",
		service:  ServiceType,
		port:     3333,
		text:     []string{"buses=2", "version=v1.0.0", "pairing=ESP32-RS485-GW"},
	}
	if !reflect.DeepEqual(calls[0], want) {
		t.Errorf("register call = %+v, want %+v", calls[0], want)
	}

	if err := a.Advertise(4000); err != nil {
		t.Fatalf("Advertise(4000) error = %v", err)
	}
	if len(calls) != 2 || shutdowns != 1 {
		t.Errorf("after port change: calls = %d, shutdowns = %d, want 2, 1", len(calls), shutdowns)
	}

	a.Withdraw()
	a.Withdraw()
	if shutdowns != 2 {
		t.Errorf("shutdowns = %d, want 2", shutdowns)
	}
}

func TestAdvertiserRegisterError(t *testing.T) {
	a := NewAdvertiser("workshop", "dev")
	a.register = func(string, string, string, int, []string) (registration, error) {
		return nil, errors.New("no multicast interface")
	}

	if err := a.Advertise(3333); err == nil {
		t.Error("Advertise() error = nil, want error")
	}
	a.Withdraw()
}
