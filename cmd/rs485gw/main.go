// Rs485gw is a gateway between two RS-485 buses and a pair of line-oriented
// JSON control channels.
//
// A wireless pairing channel (Bluetooth RFCOMM or a WebSocket) is always
// available. A wifi_connect command joins a network and opens the socket
// channel, a TCP listener that serves one client at a time. Bytes received
// on either bus are reported on every channel; bus commands may arrive on
// any of them.
//
// Usage:
//
//	rs485gw serve [flags]
//
// See 'rs485gw serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rs485gw/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rs485gw",
	Short: "RS-485 Gateway",
	Long: `A gateway daemon bridging two half-duplex RS-485 buses to JSON control
channels.

Commands and bus traffic travel as one JSON object per line over the wireless
pairing channel and, once a network has been joined, over a TCP socket.

Note: For talking to a running gateway, use the separate 'rs485ctl' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rs485gw %s (commit: %s)\n", version.Version, version.Commit)
	},
}
