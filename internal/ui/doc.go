// Package ui provides terminal UI components for the rs485ctl CLI.
//
// There are two kinds of output:
//
//   - One-shot command output: a Header banner followed by a Result box
//     (success, failure or warning), written through a Printer. When stdout
//     is not a terminal the Printer falls back to plain lines so the CLI can
//     be scripted.
//   - The live monitor: a full-screen Bubble Tea program showing every line
//     the gateway sends (rx_hex events, replies, unsolicited events) and
//     sending typed lines back.
//
// # Monitor Input
//
// Lines beginning with '{' are sent unchanged. Everything else is expanded by
// ExpandInput:
//
//	tx 1 01 03 00 00 00 02   ->  {"bus":1,"tx_hex":"01 03 00 00 00 02"}
//	baud 2 9600              ->  {"bus":2,"baud":9600}
//	join plant secret 3333   ->  {"cmd":"wifi_connect","ssid":"plant","pwd":"secret","port":3333}
//	status                   ->  {"cmd":"wifi_status"}
//
// # Logging Integration
//
// Logging is controlled via the RS485GW_LOG_LEVEL environment variable. When
// unset or empty, zap logging is silent so it never corrupts the console.
package ui
