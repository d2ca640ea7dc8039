package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/muurk/rs485gw/internal/bus"
	"github.com/muurk/rs485gw/internal/config"
	"github.com/muurk/rs485gw/internal/discovery"
	"github.com/muurk/rs485gw/internal/gateway"
	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/network"
	"github.com/muurk/rs485gw/internal/pairing"
	"github.com/muurk/rs485gw/internal/version"
	"go.uber.org/zap"
)

// Server represents the RS-485 gateway daemon
type Server struct {
	config  *config.Config
	state   *gateway.State
	ports   []*bus.Port
	pairing pairing.Channel
	conn    *gateway.ConnectionManager
	loop    *gateway.Loop

	wg       sync.WaitGroup
	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown bool
}

// hooks are the hardware-facing constructors. Tests replace them.
type hooks struct {
	openBus     func(bc config.BusConfig) (bus.Transport, bus.Direction, error)
	openPairing func(pc config.PairingConfig) pairing.Channel
	joiner      func(nc config.NetworkConfig) network.Joiner
	listen      network.ListenFunc
}

func defaultHooks() hooks {
	return hooks{
		openBus:     openBus,
		openPairing: openPairing,
		joiner:      newJoiner,
		listen:      network.ListenTCP,
	}
}

// New creates a new Server from a validated configuration. Serial devices
// are opened here; a bus without a device runs unconnected.
func New(cfg *config.Config) (*Server, error) {
	return newServer(cfg, defaultHooks())
}

func newServer(cfg *config.Config, h hooks) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		config: cfg,
		state:  gateway.NewState(cfg.Socket.Port),
	}

	for _, id := range []int{gateway.Bus1, gateway.Bus2} {
		bc := cfg.Bus(id)
		if bc.Baud <= 0 {
			bc.Baud = bus.DefaultBaud
		}
		transport, dir, err := h.openBus(bc)
		if err != nil {
			s.closePorts()
			return nil, fmt.Errorf("bus %d: %w", id, err)
		}
		port := bus.NewPort(id, transport, dir, cfg.Loop.QueueCapacity)
		if bc.Baud != bus.DefaultBaud {
			if err := port.SetBaud(bc.Baud); err != nil {
				_ = port.Close()
				s.closePorts()
				return nil, fmt.Errorf("bus %d: %w", id, err)
			}
		}
		s.ports = append(s.ports, port)
		s.state.Baud[id-1] = bc.Baud

		logging.Info("Bus configured",
			zap.Int("bus", id),
			zap.String("device", bc.Device),
			zap.Int("baud", bc.Baud),
			zap.String("direction", bc.Direction),
		)
	}

	s.pairing = h.openPairing(cfg.Pairing)

	opts := gateway.ConnOptions{
		JoinTimeout:  cfg.Network.JoinTimeout,
		PollInterval: cfg.Network.PollInterval,
	}
	if cfg.Socket.Advertise {
		name := cfg.Socket.ServiceName
		if name == "" {
			name = cfg.Pairing.Name
		}
		opts.Advertiser = discovery.NewAdvertiser(name, version.Version, "pairing="+cfg.Pairing.Transport)
	}
	s.conn = gateway.NewConnectionManager(s.state, h.joiner(cfg.Network), h.listen, opts)

	out := gateway.NewBroadcaster(s.pairing, s.conn)
	buses := make([]gateway.Bus, 0, len(s.ports))
	sources := make([]gateway.Source, 0, len(s.ports))
	for _, p := range s.ports {
		buses = append(buses, p)
		sources = append(sources, p)
	}

	s.loop = gateway.NewLoop(gateway.LoopConfig{
		State:        s.state,
		Router:       gateway.NewRouter(s.state, s.conn, out, buses...),
		Conn:         s.conn,
		Out:          out,
		Sources:      sources,
		Tick:         cfg.Loop.Tick,
		DrainChunk:   cfg.Loop.DrainChunk,
		LineCapacity: cfg.Loop.LineCapacity,
	})

	return s, nil
}

// State returns the shared gateway state. It is owned by the main loop once
// Run has started.
func (s *Server) State() *gateway.State {
	return s.state
}

// Start runs the gateway and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := s.Run(ctx)
	if ctx.Err() != nil {
		logging.Info("Shutdown signal received, gateway stopped")
	}
	return err
}

// Run starts the pairing channel and the bus receivers, then runs the main
// loop until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return errors.New("server already shut down")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	defer s.teardown()

	logging.Info("Starting RS-485 gateway",
		zap.String("version", version.Version),
		zap.String("pairing", s.config.Pairing.Transport),
		zap.Int("socket_port", s.config.Socket.Port),
	)

	if err := s.pairing.Start(s.loop.WirelessData); err != nil {
		return fmt.Errorf("failed to start pairing channel: %w", err)
	}

	for _, p := range s.ports {
		s.wg.Add(1)
		go func(p *bus.Port) {
			defer s.wg.Done()
			if err := p.Run(ctx, s.loop.Wake); err != nil {
				logging.Error("Bus receiver exited", zap.Int("bus", p.ID()), zap.Error(err))
			}
		}(p)
	}

	return s.loop.Run(ctx)
}

// Shutdown stops a running gateway. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) teardown() {
	logging.Info("Shutting down gateway...")

	s.Shutdown()
	s.closePorts()
	if err := s.pairing.Close(); err != nil {
		logging.Warn("Error closing pairing channel", zap.Error(err))
	}
	s.wg.Wait()

	logging.Info("Gateway shutdown complete")
	logging.Sync()
}

func (s *Server) closePorts() {
	for _, p := range s.ports {
		if err := p.Close(); err != nil {
			logging.Warn("Error closing bus", zap.Int("bus", p.ID()), zap.Error(err))
		}
	}
}

func openBus(bc config.BusConfig) (bus.Transport, bus.Direction, error) {
	if bc.Device == "" {
		logging.Warn("Bus has no device, running unconnected", zap.Int("bus", bc.ID))
		return bus.NewNullTransport(), bus.NoDirection{}, nil
	}

	t, err := bus.OpenSerial(bc.Device, bc.Baud)
	if err != nil {
		return nil, nil, err
	}
	line, ok, err := bus.ParseLine(bc.Direction)
	if err != nil {
		_ = t.Close()
		return nil, nil, err
	}
	if !ok {
		return t, bus.NoDirection{}, nil
	}
	return t, bus.NewModemLine(t, line, bc.DirectionInvert), nil
}

func openPairing(pc config.PairingConfig) pairing.Channel {
	switch pc.Transport {
	case config.TransportRFCOMM:
		return pairing.NewRFCOMM(pc.Device, pc.Baud, pc.Name)
	case config.TransportWebSocket:
		return pairing.NewWebSocket(pc.Listen, pc.Path, pc.Name)
	default:
		return pairing.Null{}
	}
}

func newJoiner(nc config.NetworkConfig) network.Joiner {
	if nc.Joiner == config.JoinerHost {
		return network.NewHost(nc.Interface)
	}
	return network.NewNMCLI(nc.Interface)
}
