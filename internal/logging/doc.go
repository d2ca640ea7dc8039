// Package logging provides structured logging for the RS-485 gateway.
//
// This package wraps a zap logger with convenience functions used throughout
// the gateway. Logging is for the operator only: nothing written here ever
// reaches a control channel.
//
// # Log Levels
//
//   - Debug: bus traffic hex dumps, dispatched commands, raw control lines
//   - Info: socket clients, network joins, listener start/stop
//   - Warn: queue overflow, dropped clients, failed writes
//   - Error: transport failures that stop a bus pump
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to RS485GW_LOG_LEVEL; if that is also empty the
// logger is a no-op.
//
// # Specialized Logging
//
//	logging.LogConnection("tcp", remoteAddr, "client_accepted")
//	logging.LogBusTraffic(1, "rx", data)
//	logging.LogCommand("bt", "bus", "")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Bus pumps and the
// pairing reader log from their own goroutines.
package logging
