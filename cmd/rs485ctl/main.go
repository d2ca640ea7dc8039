// Rs485ctl is the operator utility for RS-485 gateways.
//
// It discovers gateways over mDNS, sends bus and network commands, and opens
// a live monitor of bus traffic. Commands go to the socket channel
// (host[:port]) or to the WebSocket pairing channel (ws://host:port/path).
//
// Usage:
//
//	rs485ctl [command] [flags]
//
// See 'rs485ctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rs485gw/internal/version"
)

// errReported marks an error whose result box has already been printed.
var errReported = errors.New("command failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rs485ctl",
	Short: "RS-485 Gateway Control Utility",
	Long: `A standalone utility for operating RS-485 gateways.

Provides gateway discovery, bus transmit and baud commands, network join
and status, and a live monitor of bus traffic.

Without --gateway, the local network is scanned and the single gateway found
is used.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rs485ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
