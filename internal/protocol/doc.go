// Package protocol implements the line-oriented JSON protocol spoken on the
// gateway's control channels.
//
// Every message is one JSON object terminated by '\n'. The same framing is used
// on the wireless pairing channel and on the TCP socket channel.
//
// # Framing
//
// LineAssembler collects bytes from a channel until the terminator arrives.
// Its buffer holds DefaultLineCapacity-1 bytes; anything beyond that is
// discarded, but the terminator is still honoured, so an oversized line is
// delivered truncated rather than swallowed.
//
//	la := protocol.NewLineAssembler(protocol.DefaultLineCapacity)
//	la.Feed(data)
//	if line, ok := la.Take(); ok {
//	    payload, ok := protocol.Payload(line)
//	    ...
//	}
//
// # Command Shapes
//
// A decoded Command matches one of two shapes. The bus shape wins whenever a
// "bus" key is present together with "tx_hex" or "baud":
//
//	{"bus":1,"tx_hex":"AA BB CC"}
//	{"bus":2,"baud":9600}
//
// Anything else is a generic command selected by "cmd":
//
//	{"cmd":"wifi_connect","ssid":"lab","pwd":"secret","port":3333}
//	{"cmd":"wifi_status"}
//	{"cmd":"wifi_disconnect"}
//	{"cmd":"tcp_stop"}
//
// # Hex Payloads
//
// ParseHex accepts "AA BB", "AA,BB", "AA:BB" and "AABB". Characters that are
// not hex digits are skipped. An odd number of digits or an empty result is
// an error. FormatHex produces the uppercase, space separated form used in
// rx_hex events.
//
// # Responses
//
// Response types in response.go marshal with their fields in wire order so
// output matches existing clients byte for byte.
package protocol
