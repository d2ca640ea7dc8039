package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Generic command names.
const (
	CmdWifiConnect    = "wifi_connect"
	CmdWifiStatus     = "wifi_status"
	CmdWifiDisconnect = "wifi_disconnect"
	CmdTCPStop        = "tcp_stop"
)

// Bus selectors.
const (
	Bus1 = 1
	Bus2 = 2
)

// Shape identifies which command schema a message matches.
type Shape int

const (
	// ShapeGeneric is a message dispatched by its "cmd" field.
	ShapeGeneric Shape = iota
	// ShapeBus is a bus-control message: "bus" plus "tx_hex" and/or "baud".
	ShapeBus
)

// String returns a human-readable name for the shape
func (s Shape) String() string {
	switch s {
	case ShapeBus:
		return "bus"
	default:
		return "generic"
	}
}

// Command is one decoded control-channel message. Presence flags follow key
// presence in the JSON object, independent of whether the value was usable.
type Command struct {
	HasBus  bool
	Bus     int // 1 or 2; malformed or out-of-range selectors become 1
	HasBaud bool
	Baud    uint32 // 0 when the value is not a positive 32-bit integer
	HasTx   bool
	TxHex   string // empty when the value is not a string

	Cmd  string
	SSID string
	Pwd  string
	Port int // 0 when absent or not a valid TCP port
}

// Shape returns the schema this command is dispatched under.
func (c *Command) Shape() Shape {
	if c.HasBus && (c.HasTx || c.HasBaud) {
		return ShapeBus
	}
	return ShapeGeneric
}

// Decode parses one trimmed line into a Command. Only the first JSON value on
// the line is read; trailing data is ignored. The returned error text is
// reported back to the sender verbatim.
//
// A well-formed value that is not an object decodes to an empty Command,
// which the router answers with "unknown command".
func Decode(line string) (*Command, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(line)).Decode(&raw); err != nil {
		return nil, err
	}

	cmd := &Command{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return cmd, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	_, cmd.HasBus = fields["bus"]
	// Anything other than 1 or 2 selects bus 1; replies echo the bus used.
	if bus, ok := intField(fields, "bus"); ok && (bus == Bus1 || bus == Bus2) {
		cmd.Bus = bus
	} else {
		cmd.Bus = Bus1
	}

	_, cmd.HasBaud = fields["baud"]
	if baud, ok := intField(fields, "baud"); ok && baud > 0 && baud <= math.MaxUint32 {
		cmd.Baud = uint32(baud)
	}

	_, cmd.HasTx = fields["tx_hex"]
	cmd.TxHex, _ = stringField(fields, "tx_hex")

	cmd.Cmd, _ = stringField(fields, "cmd")
	cmd.SSID, _ = stringField(fields, "ssid")
	cmd.Pwd, _ = stringField(fields, "pwd")
	if port, ok := intField(fields, "port"); ok && port > 0 && port <= 65535 {
		cmd.Port = port
	}

	return cmd, nil
}

// intField reads an integral JSON number. Strings, booleans, null and
// fractional numbers are rejected.
func intField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxUint32 {
		return 0, false
	}
	return int(f), true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
