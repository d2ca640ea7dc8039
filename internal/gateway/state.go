package gateway

import (
	"time"

	"github.com/muurk/rs485gw/internal/bus"
	"github.com/muurk/rs485gw/internal/protocol"
)

// Bus selectors.
const (
	Bus1 = protocol.Bus1
	Bus2 = protocol.Bus2
)

const (
	// DefaultPort is the socket channel port until wifi_connect names another.
	DefaultPort = 3333

	// DefaultJoinTimeout bounds how long wifi_connect blocks the loop.
	DefaultJoinTimeout = 8 * time.Second

	// DefaultJoinPoll is how often association status is checked while joining.
	DefaultJoinPoll = 100 * time.Millisecond

	// DefaultTick is the idle tick period of Run.
	DefaultTick = 10 * time.Millisecond

	// DefaultDrainChunk is the most bytes one rx_hex event carries.
	DefaultDrainChunk = 512
)

// State is the gateway's mutable configuration and connection status. It is
// owned by the main loop goroutine.
type State struct {
	WirelessActive  bool
	NetworkJoined   bool
	SocketListening bool
	ClientConnected bool

	// Port is the socket channel port, kept across wifi_connect calls that
	// do not name one.
	Port int

	// Baud holds the last rate applied to each bus, indexed by selector-1.
	Baud [2]int
}

// NewState returns the boot state.
func NewState(port int) *State {
	if port <= 0 {
		port = DefaultPort
	}
	return &State{
		Port: port,
		Baud: [2]int{bus.DefaultBaud, bus.DefaultBaud},
	}
}

// BusBaud returns the recorded rate of bus id.
func (s *State) BusBaud(id int) int {
	if id < Bus1 || id > Bus2 {
		return 0
	}
	return s.Baud[id-1]
}

func (s *State) setBusBaud(id, rate int) {
	if id < Bus1 || id > Bus2 {
		return
	}
	s.Baud[id-1] = rate
}
