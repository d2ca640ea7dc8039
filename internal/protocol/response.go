package protocol

import "encoding/json"

// Fixed error strings reported in {"ok":false,"err":...} responses.
const (
	ErrTextBadTxHex   = "bad tx_hex"
	ErrTextBadBaud    = "bad baud"
	ErrTextBaudFailed = "baud failed"
	ErrTextTxFailed   = "tx failed"
	ErrTextUnknownCmd = "unknown command"
	ErrTextWifiFailed = "wifi failed"
	ErrTextTCPFailed  = "tcp failed"
)

// EventTCPClientConnected is emitted when a socket client is accepted.
const EventTCPClientConnected = "tcp_client_connected"

// DisconnectedIP is reported by wifi_status while no network is joined.
const DisconnectedIP = "0.0.0.0"

// Gateway -> client messages. Field order is the wire order.

// RxEvent carries bytes received on a bus.
type RxEvent struct {
	Bus   int    `json:"bus"`
	RxHex string `json:"rx_hex"`
}

// BaudResult acknowledges a bit rate change.
type BaudResult struct {
	OK   bool   `json:"ok"`
	Bus  int    `json:"bus"`
	Baud uint32 `json:"baud"`
}

// TxResult acknowledges a bus transmission. TxHex echoes the request string.
type TxResult struct {
	OK    bool   `json:"ok"`
	Bus   int    `json:"bus"`
	TxHex string `json:"tx_hex"`
}

// ErrorResult reports a failed command without a cmd field.
type ErrorResult struct {
	OK  bool   `json:"ok"`
	Err string `json:"err"`
}

// JoinResult answers wifi_connect.
type JoinResult struct {
	Cmd  string `json:"cmd"`
	OK   bool   `json:"ok"`
	IP   string `json:"ip,omitempty"`
	Port int    `json:"port,omitempty"`
	Err  string `json:"err,omitempty"`
}

// StatusResult answers wifi_status.
type StatusResult struct {
	Cmd       string `json:"cmd"`
	Connected bool   `json:"connected"`
	IP        string `json:"ip"`
	RSSI      int    `json:"rssi"`
	TCP       bool   `json:"tcp"`
	Port      int    `json:"port"`
}

// AckResult answers commands that only report success.
type AckResult struct {
	Cmd string `json:"cmd"`
	OK  bool   `json:"ok"`
}

// Event is an unsolicited notification.
type Event struct {
	Event string `json:"event"`
}

// NewErrorResult builds {"ok":false,"err":text}.
func NewErrorResult(text string) ErrorResult {
	return ErrorResult{OK: false, Err: text}
}

// NewAck builds {"cmd":cmd,"ok":true}.
func NewAck(cmd string) AckResult {
	return AckResult{Cmd: cmd, OK: true}
}

// Encode serializes a message as one newline-terminated line.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, Terminator), nil
}

// Client -> gateway requests, used by the operator tooling.

// TxRequest asks the gateway to transmit on a bus.
type TxRequest struct {
	Bus   int    `json:"bus"`
	TxHex string `json:"tx_hex"`
}

// BaudRequest asks the gateway to change a bus bit rate.
type BaudRequest struct {
	Bus  int    `json:"bus"`
	Baud uint32 `json:"baud"`
}

// JoinRequest asks the gateway to join a network and start the socket listener.
type JoinRequest struct {
	Cmd  string `json:"cmd"`
	SSID string `json:"ssid"`
	Pwd  string `json:"pwd"`
	Port int    `json:"port,omitempty"`
}

// CmdRequest is a generic command without arguments.
type CmdRequest struct {
	Cmd string `json:"cmd"`
}

// Reply is the union of every gateway message, for decoding on the client
// side. Pointer fields distinguish absent keys from zero values.
type Reply struct {
	OK        *bool  `json:"ok,omitempty"`
	Err       string `json:"err,omitempty"`
	Cmd       string `json:"cmd,omitempty"`
	Event     string `json:"event,omitempty"`
	Bus       int    `json:"bus,omitempty"`
	RxHex     string `json:"rx_hex,omitempty"`
	TxHex     string `json:"tx_hex,omitempty"`
	Baud      uint32 `json:"baud,omitempty"`
	IP        string `json:"ip,omitempty"`
	Port      int    `json:"port,omitempty"`
	Connected *bool  `json:"connected,omitempty"`
	RSSI      int    `json:"rssi,omitempty"`
	TCP       *bool  `json:"tcp,omitempty"`

	// Raw is the line the reply was decoded from.
	Raw string `json:"-"`
}

// DecodeReply parses one gateway line.
func DecodeReply(line string) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, err
	}
	r.Raw = line
	return &r, nil
}

// Failed reports whether the reply carries "ok":false.
func (r *Reply) Failed() bool {
	return r.OK != nil && !*r.OK
}

// IsRx reports whether the reply is an rx_hex event.
func (r *Reply) IsRx() bool {
	return r.RxHex != ""
}

// IsEvent reports whether the reply is an unsolicited event.
func (r *Reply) IsEvent() bool {
	return r.Event != ""
}
