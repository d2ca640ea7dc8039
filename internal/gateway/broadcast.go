package gateway

import (
	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/protocol"
)

// Sink receives every message the gateway emits.
type Sink interface {
	Broadcast(msg any)
}

// Writer is the wireless channel as seen by the Broadcaster.
type Writer interface {
	Write(p []byte) error
}

// Broadcaster writes each message to the wireless channel and, when a client
// is connected, to the socket channel.
type Broadcaster struct {
	wireless Writer
	conn     *ConnectionManager
}

// NewBroadcaster returns a Broadcaster. conn may be nil when the gateway has
// no socket channel.
func NewBroadcaster(wireless Writer, conn *ConnectionManager) *Broadcaster {
	return &Broadcaster{wireless: wireless, conn: conn}
}

// Broadcast encodes msg as one line and writes it to both channels. Failures
// are logged; a failed socket write drops the client.
func (b *Broadcaster) Broadcast(msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		logging.Error("Failed to encode message", zap.Error(err))
		return
	}

	if b.wireless != nil {
		if err := b.wireless.Write(data); err != nil {
			logging.Warn("Pairing write failed", zap.Error(err))
		}
	}

	if b.conn == nil {
		return
	}
	client := b.conn.Client()
	if client == nil {
		return
	}
	if err := client.Write(data); err != nil {
		b.conn.DropClient(err)
	}
}
