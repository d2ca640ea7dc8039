package gateway

import (
	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/protocol"
)

// Bus is one RS-485 port as the gateway uses it.
type Bus interface {
	ID() int
	Transmit(data []byte) error
	SetBaud(rate int) error
}

// Router turns command lines into bus operations and connection actions.
// Every outcome is broadcast; nothing is returned to the caller.
type Router struct {
	buses map[int]Bus
	conn  *ConnectionManager
	out   Sink
	state *State
}

// NewRouter returns a Router over the given buses. conn may be nil, in which
// case network commands are unknown.
func NewRouter(state *State, conn *ConnectionManager, out Sink, buses ...Bus) *Router {
	r := &Router{
		buses: make(map[int]Bus, len(buses)),
		conn:  conn,
		out:   out,
		state: state,
	}
	for _, b := range buses {
		r.buses[b.ID()] = b
	}
	return r
}

// DispatchLine handles one complete line from channel. Blank lines are
// ignored; undecodable ones are answered with the decoder's error.
func (r *Router) DispatchLine(channel, line string) {
	payload, ok := protocol.Payload(line)
	if !ok {
		return
	}

	cmd, err := protocol.Decode(payload)
	if err != nil {
		logging.Debug("Undecodable command",
			zap.String("channel", channel),
			zap.String("line", payload),
			zap.Error(err),
		)
		r.out.Broadcast(protocol.NewErrorResult(err.Error()))
		return
	}

	logging.LogCommand(channel, cmd.Shape().String(), cmd.Cmd)
	r.Dispatch(cmd)
}

// Dispatch executes a decoded command. The bus shape wins over cmd.
func (r *Router) Dispatch(cmd *protocol.Command) {
	if cmd.Shape() == protocol.ShapeBus {
		r.dispatchBus(cmd)
		return
	}
	r.dispatchGeneric(cmd)
}

// dispatchBus applies baud before transmit; each answers separately.
func (r *Router) dispatchBus(cmd *protocol.Command) {
	port := r.buses[cmd.Bus]

	if cmd.HasBaud {
		r.out.Broadcast(r.setBaud(port, cmd))
	}
	if cmd.HasTx {
		r.out.Broadcast(r.transmit(port, cmd))
	}
}

func (r *Router) setBaud(port Bus, cmd *protocol.Command) any {
	if cmd.Baud == 0 {
		return protocol.NewErrorResult(protocol.ErrTextBadBaud)
	}
	if port == nil {
		return protocol.NewErrorResult(protocol.ErrTextBaudFailed)
	}
	if err := port.SetBaud(int(cmd.Baud)); err != nil {
		logging.Warn("Baud change failed",
			zap.Int("bus", cmd.Bus),
			zap.Uint32("baud", cmd.Baud),
			zap.Error(err),
		)
		return protocol.NewErrorResult(protocol.ErrTextBaudFailed)
	}
	r.state.setBusBaud(cmd.Bus, int(cmd.Baud))
	logging.Info("Bus baud changed", zap.Int("bus", cmd.Bus), zap.Uint32("baud", cmd.Baud))
	return protocol.BaudResult{OK: true, Bus: cmd.Bus, Baud: cmd.Baud}
}

func (r *Router) transmit(port Bus, cmd *protocol.Command) any {
	data, err := protocol.ParseHex(cmd.TxHex)
	if err != nil {
		return protocol.NewErrorResult(protocol.ErrTextBadTxHex)
	}
	if port == nil {
		return protocol.NewErrorResult(protocol.ErrTextTxFailed)
	}
	if err := port.Transmit(data); err != nil {
		logging.Warn("Bus transmit failed",
			zap.Int("bus", cmd.Bus),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return protocol.NewErrorResult(protocol.ErrTextTxFailed)
	}
	return protocol.TxResult{OK: true, Bus: cmd.Bus, TxHex: cmd.TxHex}
}

func (r *Router) dispatchGeneric(cmd *protocol.Command) {
	if r.conn == nil {
		r.out.Broadcast(protocol.NewErrorResult(protocol.ErrTextUnknownCmd))
		return
	}

	switch cmd.Cmd {
	case protocol.CmdWifiConnect:
		r.out.Broadcast(r.conn.Join(cmd.SSID, cmd.Pwd, cmd.Port))
	case protocol.CmdWifiStatus:
		r.out.Broadcast(r.conn.Status())
	case protocol.CmdWifiDisconnect:
		r.out.Broadcast(r.conn.Leave())
	case protocol.CmdTCPStop:
		r.out.Broadcast(r.conn.StopSocket())
	default:
		r.out.Broadcast(protocol.NewErrorResult(protocol.ErrTextUnknownCmd))
	}
}
