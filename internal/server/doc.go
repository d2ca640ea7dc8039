// Package server assembles and runs the gateway daemon.
//
// New turns a config.Config into live components: one bus.Port per bus
// (serial device or an unconnected null transport), the pairing channel, the
// network joiner, the optional mDNS advertiser and the gateway core
// (ConnectionManager, Broadcaster, Router and the main Loop).
//
// # Goroutines
//
// Run starts one receive pump per bus and the pairing transport's reader.
// They only feed the bus queues and the wireless line buffer and wake the
// main loop; every command, response and socket operation happens on the
// main loop goroutine.
//
// # Shutdown
//
// Cancelling the context (or SIGINT/SIGTERM under Start) stops the loop,
// which tears down the socket channel and withdraws the mDNS record, then
// closes the pairing channel and the buses. The network association is left
// in place.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    return err
//	}
//	return srv.Start()
package server
