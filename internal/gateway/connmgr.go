package gateway

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/network"
	"github.com/muurk/rs485gw/internal/protocol"
)

// socketReadSize bounds one poll read from the socket client.
const socketReadSize = 256

// Advertiser announces the socket channel while it is listening.
type Advertiser interface {
	Advertise(port int) error
	Withdraw()
}

// ConnOptions tunes a ConnectionManager. Zero values take the defaults.
type ConnOptions struct {
	JoinTimeout  time.Duration
	PollInterval time.Duration
	Advertiser   Advertiser

	// now and sleep are replaced in tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// ConnectionManager owns the socket channel lifecycle: network join,
// listener and the single client.
type ConnectionManager struct {
	state  *State
	joiner network.Joiner
	listen network.ListenFunc
	adv    Advertiser

	joinTimeout  time.Duration
	pollInterval time.Duration
	now          func() time.Time
	sleep        func(time.Duration)

	listener network.Listener
	client   network.Client
	readBuf  []byte
}

// NewConnectionManager returns a manager with no network and no socket.
func NewConnectionManager(state *State, joiner network.Joiner, listen network.ListenFunc, opts ConnOptions) *ConnectionManager {
	cm := &ConnectionManager{
		state:        state,
		joiner:       joiner,
		listen:       listen,
		adv:          opts.Advertiser,
		joinTimeout:  opts.JoinTimeout,
		pollInterval: opts.PollInterval,
		now:          opts.now,
		sleep:        opts.sleep,
		readBuf:      make([]byte, socketReadSize),
	}
	if cm.joinTimeout <= 0 {
		cm.joinTimeout = DefaultJoinTimeout
	}
	if cm.pollInterval <= 0 {
		cm.pollInterval = DefaultJoinPoll
	}
	if cm.now == nil {
		cm.now = time.Now
	}
	if cm.sleep == nil {
		cm.sleep = time.Sleep
	}
	return cm
}

// Join associates with ssid and starts the socket listener. It blocks for up
// to the join timeout. A port of 0 keeps the current one.
func (cm *ConnectionManager) Join(ssid, password string, port int) protocol.JoinResult {
	cm.stopSocket()

	fail := protocol.JoinResult{Cmd: protocol.CmdWifiConnect, Err: protocol.ErrTextWifiFailed}

	if err := cm.joiner.Begin(ssid, password); err != nil {
		logging.Warn("Network join could not start", zap.String("ssid", ssid), zap.Error(err))
		cm.state.NetworkJoined = false
		return fail
	}

	status, ok := cm.waitJoined()
	if !ok {
		logging.Warn("Network join timed out",
			zap.String("ssid", ssid),
			zap.Duration("timeout", cm.joinTimeout),
		)
		if err := cm.joiner.Leave(); err != nil {
			logging.Debug("Abandoning join failed", zap.Error(err))
		}
		cm.state.NetworkJoined = false
		return fail
	}
	cm.state.NetworkJoined = true

	if port > 0 {
		cm.state.Port = port
	}
	if err := cm.startSocket(); err != nil {
		logging.Error("Socket listener failed to start",
			zap.Int("port", cm.state.Port),
			zap.Error(err),
		)
		return protocol.JoinResult{Cmd: protocol.CmdWifiConnect, Err: protocol.ErrTextTCPFailed}
	}

	logging.Info("Network joined",
		zap.String("ssid", ssid),
		zap.String("ip", status.IP),
		zap.Int("port", cm.state.Port),
	)
	return protocol.JoinResult{
		Cmd:  protocol.CmdWifiConnect,
		OK:   true,
		IP:   status.IP,
		Port: cm.state.Port,
	}
}

// waitJoined polls the joiner until it reports a connection or the timeout
// passes.
func (cm *ConnectionManager) waitJoined() (network.Status, bool) {
	deadline := cm.now().Add(cm.joinTimeout)
	for {
		st := cm.joiner.Status()
		if st.Connected {
			return st, true
		}
		if !cm.now().Before(deadline) {
			return network.Status{}, false
		}
		cm.sleep(cm.pollInterval)
	}
}

// Status reports the network link and socket state.
func (cm *ConnectionManager) Status() protocol.StatusResult {
	st := cm.joiner.Status()
	cm.state.NetworkJoined = st.Connected

	res := protocol.StatusResult{
		Cmd:       protocol.CmdWifiStatus,
		Connected: st.Connected,
		IP:        protocol.DisconnectedIP,
		TCP:       cm.listener != nil,
		Port:      cm.state.Port,
	}
	if st.Connected {
		res.RSSI = st.RSSI
		if st.IP != "" {
			res.IP = st.IP
		}
	}
	return res
}

// Leave tears down the socket and the network association.
func (cm *ConnectionManager) Leave() protocol.AckResult {
	cm.stopSocket()
	if err := cm.joiner.Leave(); err != nil {
		logging.Warn("Network leave failed", zap.Error(err))
	}
	cm.state.NetworkJoined = false
	logging.Info("Network left")
	return protocol.NewAck(protocol.CmdWifiDisconnect)
}

// StopSocket tears down the listener and client only.
func (cm *ConnectionManager) StopSocket() protocol.AckResult {
	cm.stopSocket()
	return protocol.NewAck(protocol.CmdTCPStop)
}

func (cm *ConnectionManager) startSocket() error {
	ln, err := cm.listen(cm.state.Port)
	if err != nil {
		return err
	}
	cm.listener = ln
	cm.state.SocketListening = true
	logging.Info("Socket channel listening", zap.Int("port", ln.Port()))

	if cm.adv != nil {
		if err := cm.adv.Advertise(ln.Port()); err != nil {
			logging.Warn("Socket advertisement failed", zap.Error(err))
		}
	}
	return nil
}

func (cm *ConnectionManager) stopSocket() {
	cm.closeClient("socket_stopped")
	if cm.listener != nil {
		if err := cm.listener.Close(); err != nil {
			logging.Debug("Closing listener", zap.Error(err))
		}
		cm.listener = nil
		logging.Info("Socket channel stopped")
	}
	cm.state.SocketListening = false
	if cm.adv != nil {
		cm.adv.Withdraw()
	}
}

// PollAccept takes a pending client, closing the current one first. It
// reports whether a client was accepted.
func (cm *ConnectionManager) PollAccept() bool {
	if cm.listener == nil {
		return false
	}
	c, ok, err := cm.listener.Accept()
	if err != nil {
		logging.Warn("Socket accept failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	cm.closeClient("client_replaced")
	cm.client = c
	cm.state.ClientConnected = true
	logging.LogConnection("socket", c.RemoteAddr(), "client_connected")
	return true
}

// PollClient feeds every byte currently available from the client into
// lines. A closed peer drops the client.
func (cm *ConnectionManager) PollClient(lines *protocol.LineAssembler) {
	for cm.client != nil {
		n, err := cm.client.ReadAvailable(cm.readBuf)
		if n > 0 {
			lines.Feed(cm.readBuf[:n])
		}
		if err != nil {
			cm.DropClient(err)
			return
		}
		if n == 0 {
			return
		}
	}
}

// Client returns the connected client, or nil.
func (cm *ConnectionManager) Client() network.Client {
	return cm.client
}

// DropClient closes the client after a read or write failure.
func (cm *ConnectionManager) DropClient(reason error) {
	if cm.client == nil {
		return
	}
	event := "client_disconnected"
	if !network.IsClosed(reason) {
		event = "client_error"
		logging.Debug("Socket client error", zap.Error(reason))
	}
	cm.closeClient(event)
}

func (cm *ConnectionManager) closeClient(event string) {
	if cm.client == nil {
		return
	}
	remote := cm.client.RemoteAddr()
	_ = cm.client.Close()
	cm.client = nil
	cm.state.ClientConnected = false
	logging.LogConnection("socket", remote, event)
}

// Close tears down the socket channel. The network association is left as
// it is.
func (cm *ConnectionManager) Close() {
	cm.stopSocket()
}
