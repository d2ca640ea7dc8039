// Package gateway is the core of the RS-485 gateway: the main loop that
// moves bytes between the buses and the two control channels, the command
// router and the connection manager.
//
// # Channels
//
// Two control channels carry newline-terminated JSON, one message per line:
// the wireless pairing channel, which is always on, and a TCP socket channel
// that exists only after a successful wifi_connect. Every response and every
// rx_hex event is broadcast to the pairing channel and, when a client is
// connected, to the socket as well.
//
// # Scheduling
//
// All command handling runs on the single goroutine that calls Loop.Tick (or
// Loop.Run). Producers run elsewhere: one receive goroutine per bus fills the
// bus queue, and the pairing transport feeds the wireless line assembler.
// Both only append under a short lock and then Wake the loop. One tick does,
// in this order:
//
//  1. drain bus 1 and broadcast its rx_hex
//  2. drain bus 2 and broadcast its rx_hex
//  3. accept a pending socket client, replacing the current one
//  4. read everything available from the socket client
//  5. dispatch a complete wireless line
//  6. dispatch a complete socket line
//
// Transmitting on a bus and joining a network block the loop until they
// finish, so every other channel and bus waits meanwhile. There is no busy
// state; commands arriving in the meantime are handled on the next ticks.
//
// # Wire Format
//
//	-> {"bus":1,"tx_hex":"AA,BB:CC"}
//	<- {"ok":true,"bus":1,"tx_hex":"AA,BB:CC"}
//	-> {"bus":2,"baud":9600}
//	<- {"ok":true,"bus":2,"baud":9600}
//	-> {"cmd":"wifi_connect","ssid":"shop","pwd":"secret","port":3333}
//	<- {"cmd":"wifi_connect","ok":true,"ip":"192.168.1.40","port":3333}
//	<- {"bus":1,"rx_hex":"01 03 00 00"}
//	<- {"event":"tcp_client_connected"}
package gateway
