package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/rs485gw/internal/config"
	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/server"
)

// Serve command flags
var (
	configPath string
	logLevel   string
	socketPort int
	pairingVia string
	force      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Open both buses and the pairing channel and run the gateway until
interrupted.

Settings come from the configuration file. Without --config the default
location is used, and a missing file there means built-in defaults: both
buses unconnected, Bluetooth pairing on /dev/rfcomm0 and the socket channel
on port 3333.`,
	Example: `  # Run with the default configuration file
  rs485gw serve

  # Use a specific file with debug logging
  rs485gw serve --config /etc/rs485gw/config.yaml --log-level debug

  # Pair over WebSocket instead of Bluetooth
  rs485gw serve --pairing websocket

  # Socket channel on another port
  rs485gw serve --port 4000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default: user config dir)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the file")
	serveCmd.Flags().IntVar(&socketPort, "port", 0, "Socket channel port; overrides the file")
	serveCmd.Flags().StringVar(&pairingVia, "pairing", "", "Pairing transport (rfcomm, websocket, none); overrides the file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if socketPort != 0 {
		cfg.Socket.Port = socketPort
	}
	if pairingVia != "" {
		cfg.Pairing.Transport = pairingVia
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	return srv.Start()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the built-in defaults to the configuration file so they can be
edited. An existing file is left alone unless --force is given.`,
	Example: `  # Write to the default location
  rs485gw config init

  # Write to a specific path
  rs485gw config init --config ./rs485gw.yaml --force`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: user config dir)")
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if config.Exists(path) && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("✓ Configuration written to %s\n", path)
	return nil
}
