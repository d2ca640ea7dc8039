// Package config loads and saves the gateway configuration file.
//
// The file is YAML and lives in the OS configuration directory unless a path
// is given explicitly:
//   - Linux: $XDG_CONFIG_HOME/rs485gw/config.yaml or ~/.config/rs485gw/config.yaml
//   - macOS: ~/.config/rs485gw/config.yaml
//   - Windows: %LOCALAPPDATA%\rs485gw\config.yaml
//
// A missing default file is not an error; Default values are used instead.
// Sections missing from a file keep their defaults, and both buses always
// exist after loading even if the file only describes one.
//
// # Example
//
//	version: 1
//	log_level: info
//	buses:
//	  - id: 1
//	    device: /dev/ttyUSB0
//	    baud: 115200
//	    direction: rts
//	  - id: 2
//	    device: /dev/ttyUSB1
//	    baud: 9600
//	    direction: none
//	pairing:
//	  transport: rfcomm
//	  device: /dev/rfcomm0
//	  name: ESP32-RS485-GW
//	network:
//	  joiner: nmcli
//	  interface: wlan0
//	  join_timeout: 8s
//	  poll_interval: 100ms
//	socket:
//	  port: 3333
//	  advertise: true
//	loop:
//	  tick: 10ms
//	  drain_chunk: 512
//
// Wi-Fi credentials are never stored here; they arrive with wifi_connect.
package config
