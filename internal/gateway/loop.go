package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/protocol"
	"github.com/muurk/rs485gw/internal/queue"
)

// Channel names used in logs.
const (
	ChannelPairing = "pairing"
	ChannelSocket  = "socket"
)

// Source is a bus whose receive queue the loop drains.
type Source interface {
	ID() int
	Queue() *queue.Queue
}

// LoopConfig assembles a Loop.
type LoopConfig struct {
	State  *State
	Router *Router
	Conn   *ConnectionManager
	Out    Sink
	// Sources are drained in order, bus 1 first.
	Sources []Source

	Tick         time.Duration
	DrainChunk   int
	LineCapacity int
}

// Loop is the cooperative main loop.
type Loop struct {
	state   *State
	router  *Router
	conn    *ConnectionManager
	out     Sink
	sources []Source

	wireless *protocol.LineAssembler
	socket   *protocol.LineAssembler

	drainBuf []byte
	tick     time.Duration
	wake     chan struct{}
}

// NewLoop returns a Loop with empty line buffers.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.DrainChunk <= 0 {
		cfg.DrainChunk = DefaultDrainChunk
	}
	if cfg.LineCapacity <= 0 {
		cfg.LineCapacity = protocol.DefaultLineCapacity
	}
	return &Loop{
		state:    cfg.State,
		router:   cfg.Router,
		conn:     cfg.Conn,
		out:      cfg.Out,
		sources:  cfg.Sources,
		wireless: protocol.NewLineAssembler(cfg.LineCapacity),
		socket:   protocol.NewLineAssembler(cfg.LineCapacity),
		drainBuf: make([]byte, cfg.DrainChunk),
		tick:     cfg.Tick,
		wake:     make(chan struct{}, 1),
	}
}

// Wake schedules a tick. It never blocks and is safe from any goroutine.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// WirelessData is the pairing channel's receive callback.
func (l *Loop) WirelessData(p []byte) {
	if l.wireless.Feed(p) {
		l.Wake()
	}
}

// Tick runs one pass of the fixed schedule.
func (l *Loop) Tick() {
	for _, src := range l.sources {
		l.drain(src)
	}

	if l.conn != nil {
		if l.conn.PollAccept() {
			l.out.Broadcast(protocol.Event{Event: protocol.EventTCPClientConnected})
		}
		l.conn.PollClient(l.socket)
	}

	l.dispatch(ChannelPairing, l.wireless)
	l.dispatch(ChannelSocket, l.socket)
}

// drain broadcasts at most one chunk from src.
func (l *Loop) drain(src Source) {
	q := src.Queue()
	if !q.Ready() {
		return
	}
	n := q.DrainMany(l.drainBuf)
	q.Settle()
	if n == 0 {
		return
	}
	l.out.Broadcast(protocol.RxEvent{
		Bus:   src.ID(),
		RxHex: protocol.FormatHex(l.drainBuf[:n]),
	})
}

func (l *Loop) dispatch(channel string, lines *protocol.LineAssembler) {
	line, ok := lines.Take()
	if !ok {
		return
	}
	l.router.DispatchLine(channel, line)
}

// pending reports whether the next tick has work that will not raise a wake.
func (l *Loop) pending() bool {
	for _, src := range l.sources {
		if src.Queue().Ready() {
			return true
		}
	}
	return l.wireless.Ready() || l.socket.Ready()
}

// Run ticks on every wake and on every tick period until ctx is cancelled,
// then tears down the socket channel.
func (l *Loop) Run(ctx context.Context) error {
	if l.state != nil {
		l.state.WirelessActive = true
	}

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	logging.Info("Main loop started", zap.Duration("tick", l.tick))

	for {
		select {
		case <-ctx.Done():
			logging.Info("Main loop stopping")
			if l.conn != nil {
				l.conn.Close()
			}
			if l.state != nil {
				l.state.WirelessActive = false
			}
			return nil
		case <-l.wake:
		case <-ticker.C:
		}

		l.Tick()
		if l.pending() {
			l.Wake()
		}
	}
}
