package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/rs485gw/internal/bus"
	"github.com/muurk/rs485gw/internal/gateway"
	"github.com/muurk/rs485gw/internal/pairing"
	"github.com/muurk/rs485gw/internal/protocol"
	"github.com/muurk/rs485gw/internal/queue"
)

// CurrentVersion is the only supported file version.
const CurrentVersion = 1

// Pairing transports.
const (
	TransportRFCOMM    = "rfcomm"
	TransportWebSocket = "websocket"
	TransportNone      = "none"
)

// Network joiners.
const (
	JoinerNMCLI = "nmcli"
	JoinerHost  = "host"
)

// Config is the whole configuration file.
type Config struct {
	Version  int           `yaml:"version"`
	LogLevel string        `yaml:"log_level,omitempty"`
	Buses    []BusConfig   `yaml:"buses"`
	Pairing  PairingConfig `yaml:"pairing"`
	Network  NetworkConfig `yaml:"network"`
	Socket   SocketConfig  `yaml:"socket"`
	Loop     LoopConfig    `yaml:"loop"`
}

// BusConfig describes one RS-485 bus.
type BusConfig struct {
	ID     int    `yaml:"id"`               // 1 or 2
	Device string `yaml:"device,omitempty"` // Serial device; empty leaves the bus unconnected
	Baud   int    `yaml:"baud,omitempty"`   // Initial bit rate
	// Direction is the modem line driving DE/RE: rts, dtr or none.
	Direction       string `yaml:"direction,omitempty"`
	DirectionInvert bool   `yaml:"direction_invert,omitempty"` // Line is low while transmitting
}

// PairingConfig describes the wireless pairing channel.
type PairingConfig struct {
	Transport string `yaml:"transport"`        // rfcomm, websocket or none
	Device    string `yaml:"device,omitempty"` // rfcomm: serial device
	Baud      int    `yaml:"baud,omitempty"`   // rfcomm: device bit rate
	Listen    string `yaml:"listen,omitempty"` // websocket: listen address
	Path      string `yaml:"path,omitempty"`   // websocket: upgrade path
	Name      string `yaml:"name,omitempty"`   // Name the channel is known by
}

// NetworkConfig describes how wifi_connect joins a network.
type NetworkConfig struct {
	Joiner       string        `yaml:"joiner"`              // nmcli or host
	Interface    string        `yaml:"interface,omitempty"` // e.g. wlan0
	JoinTimeout  time.Duration `yaml:"join_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SocketConfig describes the stream-socket channel.
type SocketConfig struct {
	Port        int    `yaml:"port"`
	Advertise   bool   `yaml:"advertise"`              // Announce over mDNS while listening
	ServiceName string `yaml:"service_name,omitempty"` // mDNS instance; defaults to the pairing name
}

// LoopConfig tunes the main loop.
type LoopConfig struct {
	Tick          time.Duration `yaml:"tick"`
	DrainChunk    int           `yaml:"drain_chunk"`
	QueueCapacity int           `yaml:"queue_capacity,omitempty"`
	LineCapacity  int           `yaml:"line_capacity,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:  CurrentVersion,
		LogLevel: "info",
		Buses: []BusConfig{
			{ID: gateway.Bus1, Baud: bus.DefaultBaud, Direction: "none"},
			{ID: gateway.Bus2, Baud: bus.DefaultBaud, Direction: "none"},
		},
		Pairing: PairingConfig{
			Transport: TransportRFCOMM,
			Device:    "/dev/rfcomm0",
			Baud:      bus.DefaultBaud,
			Listen:    pairing.DefaultListen,
			Path:      pairing.DefaultPath,
			Name:      pairing.DefaultName,
		},
		Network: NetworkConfig{
			Joiner:       JoinerNMCLI,
			Interface:    "wlan0",
			JoinTimeout:  gateway.DefaultJoinTimeout,
			PollInterval: gateway.DefaultJoinPoll,
		},
		Socket: SocketConfig{
			Port:        gateway.DefaultPort,
			Advertise:   true,
			ServiceName: pairing.DefaultName,
		},
		Loop: LoopConfig{
			Tick:          gateway.DefaultTick,
			DrainChunk:    gateway.DefaultDrainChunk,
			QueueCapacity: queue.DefaultCapacity,
			LineCapacity:  protocol.DefaultLineCapacity,
		},
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()

	present := make(map[int]bool, len(c.Buses))
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Baud <= 0 {
			b.Baud = bus.DefaultBaud
		}
		if b.Direction == "" {
			b.Direction = "none"
		}
		present[b.ID] = true
	}
	for _, b := range d.Buses {
		if !present[b.ID] {
			c.Buses = append(c.Buses, b)
		}
	}
	sort.SliceStable(c.Buses, func(i, j int) bool { return c.Buses[i].ID < c.Buses[j].ID })

	if c.Pairing.Transport == "" {
		c.Pairing.Transport = d.Pairing.Transport
	}
	if c.Pairing.Baud <= 0 {
		c.Pairing.Baud = d.Pairing.Baud
	}
	if c.Pairing.Listen == "" {
		c.Pairing.Listen = d.Pairing.Listen
	}
	if c.Pairing.Path == "" {
		c.Pairing.Path = d.Pairing.Path
	}
	if c.Pairing.Name == "" {
		c.Pairing.Name = d.Pairing.Name
	}

	if c.Network.Joiner == "" {
		c.Network.Joiner = d.Network.Joiner
	}
	if c.Network.JoinTimeout <= 0 {
		c.Network.JoinTimeout = d.Network.JoinTimeout
	}
	if c.Network.PollInterval <= 0 {
		c.Network.PollInterval = d.Network.PollInterval
	}

	if c.Socket.Port == 0 {
		c.Socket.Port = d.Socket.Port
	}
	if c.Socket.ServiceName == "" {
		c.Socket.ServiceName = c.Pairing.Name
	}

	if c.Loop.Tick <= 0 {
		c.Loop.Tick = d.Loop.Tick
	}
	if c.Loop.DrainChunk <= 0 {
		c.Loop.DrainChunk = d.Loop.DrainChunk
	}
	if c.Loop.QueueCapacity <= 0 {
		c.Loop.QueueCapacity = d.Loop.QueueCapacity
	}
	if c.Loop.LineCapacity <= 0 {
		c.Loop.LineCapacity = d.Loop.LineCapacity
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	seen := make(map[int]bool)
	for _, b := range c.Buses {
		if b.ID != gateway.Bus1 && b.ID != gateway.Bus2 {
			return fmt.Errorf("bus id %d: must be 1 or 2", b.ID)
		}
		if seen[b.ID] {
			return fmt.Errorf("bus id %d: configured twice", b.ID)
		}
		seen[b.ID] = true
		if _, _, err := bus.ParseLine(b.Direction); err != nil {
			return fmt.Errorf("bus %d: %w", b.ID, err)
		}
	}

	switch c.Pairing.Transport {
	case TransportRFCOMM:
		if c.Pairing.Device == "" {
			return fmt.Errorf("pairing: rfcomm transport needs a device")
		}
	case TransportWebSocket, TransportNone:
	default:
		return fmt.Errorf("pairing: unknown transport %q", c.Pairing.Transport)
	}

	switch c.Network.Joiner {
	case JoinerNMCLI, JoinerHost:
	default:
		return fmt.Errorf("network: unknown joiner %q", c.Network.Joiner)
	}
	if c.Network.PollInterval > c.Network.JoinTimeout {
		return fmt.Errorf("network: poll_interval %s exceeds join_timeout %s",
			c.Network.PollInterval, c.Network.JoinTimeout)
	}

	if c.Socket.Port < 1 || c.Socket.Port > 65535 {
		return fmt.Errorf("socket: port %d out of range", c.Socket.Port)
	}
	return nil
}

// Bus returns the settings for bus id.
func (c *Config) Bus(id int) BusConfig {
	for _, b := range c.Buses {
		if b.ID == id {
			return b
		}
	}
	return BusConfig{ID: id, Baud: bus.DefaultBaud, Direction: "none"}
}
