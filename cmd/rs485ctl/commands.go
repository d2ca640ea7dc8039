package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/rs485gw/internal/client"
	"github.com/muurk/rs485gw/internal/discovery"
	"github.com/muurk/rs485gw/internal/protocol"
	"github.com/muurk/rs485gw/internal/ui"
)

// Common flags
var (
	gatewayAddr string
	timeout     time.Duration
	retries     int
	plain       bool
)

// Command flags
var (
	scanTimeout  time.Duration
	wifiPassword string
	wifiPort     int
	assumeYes    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&gatewayAddr, "gateway", "g", "", "Gateway address: host[:port] or ws://host:port/path (skips discovery)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", client.DefaultMaxRetries, "Connection retries")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Plain output without boxes or colour")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(baudCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(tcpStopCmd)
	rootCmd.AddCommand(monitorCmd)
}

func newPrinter() *ui.Printer {
	p := ui.NewPrinter(nil)
	if plain {
		p.SetStyled(false)
	}
	return p
}

// discoverCmd finds gateways on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover gateways on the network",
	Long: `Discover RS-485 gateways using mDNS/DNS-SD.

A gateway advertises itself only while its socket channel is listening, that
is after a successful wifi_connect.`,
	Example: `  # Scan for 5 seconds (default)
  rs485ctl discover

  # Longer scan for busy networks
  rs485ctl discover --scan-timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := newPrinter()
	p.PrintHeader("Gateway Discovery", "rs485ctl discover",
		ui.Param{Key: "Timeout", Value: scanTimeout.String()})

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	gateways, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintError("Discovery failed", err, "")
		return errReported
	}

	if len(gateways) == 0 {
		p.PrintResult(ui.NewWarningResult("No gateways found").
			AddDetail("Hint", "Gateways advertise only after wifi_connect; use --gateway to connect directly"))
		return nil
	}

	sort.Slice(gateways, func(i, j int) bool { return gateways[i].Instance < gateways[j].Instance })
	rows := make([][]string, 0, len(gateways))
	for _, g := range gateways {
		rows = append(rows, []string{g.Instance, g.Address(), g.Version(), g.GetMetadata("pairing")})
	}
	p.PrintTable([]string{"NAME", "ADDRESS", "VERSION", "PAIRING"}, rows)
	return nil
}

// txCmd transmits bytes on a bus
var txCmd = &cobra.Command{
	Use:   "tx <bus> <hex>...",
	Short: "Transmit bytes on a bus",
	Long: `Transmit a frame on bus 1 or 2 and wait for the gateway's acknowledgement.

Hex bytes may be separated by spaces, colons, dashes or commas, or run
together. Several arguments are joined with spaces.`,
	Example: `  # Modbus read holding registers on bus 1
  rs485ctl tx 1 01 03 00 00 00 02 C4 0B --gateway 192.168.1.40

  # Compact form
  rs485ctl tx 2 AABBCC`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTx,
}

func runTx(cmd *cobra.Command, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	data := strings.Join(args[1:], " ")

	return withGateway(cmd, "Bus Transmit", "rs485ctl tx", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
		reply, err := c.Transmit(ctx, bus, data)
		if err != nil {
			return err
		}
		p.PrintSuccess("Frame transmitted",
			ui.Param{Key: "Bus", Value: strconv.Itoa(reply.Bus)},
			ui.Param{Key: "Data", Value: reply.TxHex})
		return nil
	})
}

// baudCmd changes a bus bit rate
var baudCmd = &cobra.Command{
	Use:   "baud <bus> <rate>",
	Short: "Change the bit rate of a bus",
	Example: `  rs485ctl baud 1 9600
  rs485ctl baud 2 115200 --gateway ws://192.168.4.1:3334/ws`,
	Args: cobra.ExactArgs(2),
	RunE: runBaud,
}

func runBaud(cmd *cobra.Command, args []string) error {
	bus, err := parseBus(args[0])
	if err != nil {
		return err
	}
	rate, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid baud value: %w", err)
	}

	return withGateway(cmd, "Bus Baud", "rs485ctl baud", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
		reply, err := c.SetBaud(ctx, bus, uint32(rate))
		if err != nil {
			return err
		}
		p.PrintSuccess("Baud changed",
			ui.Param{Key: "Bus", Value: strconv.Itoa(reply.Bus)},
			ui.Param{Key: "Baud", Value: strconv.FormatUint(uint64(reply.Baud), 10)})
		return nil
	})
}

// wifiCmd groups the network commands
var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Join, inspect or leave a network",
}

var wifiConnectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Join a network and open the socket channel",
	Long: `Ask the gateway to join a network. On success it listens on the socket
channel port and reports its address.

The gateway handles nothing else while joining, for up to 8 seconds. Any
current socket client is dropped first.

The password is prompted for when --password is not given.`,
	Example: `  # Over the WebSocket pairing channel
  rs485ctl wifi connect plant-floor --gateway ws://192.168.4.1:3334/ws

  # Open network, socket on port 4000
  rs485ctl wifi connect guest --password "" --port 4000`,
	Args: cobra.ExactArgs(1),
	RunE: runWifiConnect,
}

var wifiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show network and socket status",
	Args:  cobra.NoArgs,
	RunE:  runWifiStatus,
}

var wifiDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Leave the network and close the socket channel",
	Args:  cobra.NoArgs,
	RunE:  runWifiDisconnect,
}

func init() {
	wifiConnectCmd.Flags().StringVar(&wifiPassword, "password", "", "Network password (prompted when omitted)")
	wifiConnectCmd.Flags().IntVar(&wifiPort, "port", 0, "Socket channel port (0 keeps the gateway's port)")
	wifiDisconnectCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	wifiCmd.AddCommand(wifiConnectCmd)
	wifiCmd.AddCommand(wifiStatusCmd)
	wifiCmd.AddCommand(wifiDisconnectCmd)
}

func runWifiConnect(cmd *cobra.Command, args []string) error {
	ssid := args[0]
	password := wifiPassword
	if !cmd.Flags().Changed("password") {
		pw, err := readPassword(ssid)
		if err != nil {
			return err
		}
		password = pw
	}

	return withGateway(cmd, "Network Join", "rs485ctl wifi connect", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
		reply, err := c.Join(ctx, ssid, password, wifiPort)
		if err != nil {
			return err
		}
		p.PrintSuccess("Joined "+ssid,
			ui.Param{Key: "IP", Value: reply.IP},
			ui.Param{Key: "Port", Value: strconv.Itoa(reply.Port)},
			ui.Param{Key: "Socket", Value: socketAddr(reply.IP, reply.Port)})
		return nil
	})
}

func runWifiStatus(cmd *cobra.Command, args []string) error {
	return withGateway(cmd, "Network Status", "rs485ctl wifi status", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
		reply, err := c.Status(ctx)
		if err != nil {
			return err
		}

		details := []ui.Param{
			{Key: "IP", Value: reply.IP},
			{Key: "Port", Value: strconv.Itoa(reply.Port)},
			{Key: "Socket", Value: yesNo(reply.TCP, "listening", "closed")},
		}
		if isSet(reply.Connected) {
			details = append(details, ui.Param{Key: "RSSI", Value: fmt.Sprintf("%d dBm", reply.RSSI)})
			p.PrintSuccess("Connected", details...)
			return nil
		}
		p.PrintResult(ui.NewWarningResult("Not connected", details...))
		return nil
	})
}

func runWifiDisconnect(cmd *cobra.Command, args []string) error {
	if !assumeYes {
		ok := ui.Confirm(os.Stdin, os.Stdout, "Leave network", []string{
			"The socket channel stops listening",
			"Any socket client is dropped",
			"Only the pairing channel stays available",
		})
		if !ok {
			return nil
		}
	}

	return withGateway(cmd, "Network Leave", "rs485ctl wifi disconnect", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
		if _, err := c.Disconnect(ctx); err != nil {
			return err
		}
		p.PrintSuccess("Network left")
		return nil
	})
}

// tcpStopCmd closes the socket channel only
var tcpStopCmd = &cobra.Command{
	Use:   "tcp-stop",
	Short: "Close the socket channel but stay on the network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, "Socket Stop", "rs485ctl tcp-stop", func(ctx context.Context, p *ui.Printer, c *client.Client) error {
			if _, err := c.StopSocket(ctx); err != nil {
				return err
			}
			p.PrintSuccess("Socket channel closed")
			return nil
		})
	},
}

// monitorCmd opens the live console
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch bus traffic and send commands interactively",
	Long: `Open a full-screen console on one gateway channel.

Every line the gateway sends is shown as it arrives. Typed lines starting
with '{' are sent as-is; shorthand such as "tx 1 01 03", "baud 2 9600",
"join <ssid> [pwd] [port]", "status", "disconnect" and "stop" is expanded.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	addr, err := resolveGateway(cmd.Context())
	if err != nil {
		return err
	}
	c, err := dial(cmd.Context(), addr)
	if err != nil {
		newPrinter().PrintError("Connection failed", err, client.GetTroubleshootingHint(err))
		return errReported
	}
	defer c.Close()

	if err := ui.RunMonitor(c); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}

// withGateway connects, prints the command header and runs fn. Failures are
// printed with troubleshooting hints and reported as errReported.
func withGateway(cmd *cobra.Command, title, command string, fn func(ctx context.Context, p *ui.Printer, c *client.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	addr, err := resolveGateway(ctx)
	if err != nil {
		return err
	}

	p := newPrinter()
	p.PrintHeader(title, command, ui.Param{Key: "Gateway", Value: addr})

	c, err := dial(ctx, addr)
	if err != nil {
		p.PrintError("Connection failed", err, client.GetTroubleshootingHint(err))
		return errReported
	}
	defer c.Close()

	if err := fn(ctx, p, c); err != nil {
		p.PrintError(title+" failed", err, client.GetTroubleshootingHint(err))
		return errReported
	}
	return nil
}

func dial(ctx context.Context, addr string) (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.Timeout = timeout
	opts.MaxRetries = retries
	return client.Dial(ctx, addr, opts)
}

// resolveGateway returns --gateway, or the single gateway found by a quick
// scan.
func resolveGateway(ctx context.Context) (string, error) {
	if gatewayAddr != "" {
		return gatewayAddr, nil
	}

	fmt.Println("No gateway specified, attempting auto-discovery...")
	gateways, err := discovery.QuickScan()
	if err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}

	switch len(gateways) {
	case 0:
		return "", fmt.Errorf("no gateways found. Use --gateway to specify one")
	case 1:
		g := gateways[0]
		fmt.Printf("Found gateway: %s (%s)\n\n", g.Instance, g.Address())
		return g.Address(), nil
	default:
		fmt.Printf("Found %d gateways:\n", len(gateways))
		for i, g := range gateways {
			fmt.Printf("%d. %s (%s)\n", i+1, g.Instance, g.Address())
		}
		return "", fmt.Errorf("multiple gateways found. Use --gateway to specify which one")
	}
}

func readPassword(ssid string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for password prompt; use --password")
	}
	fmt.Printf("Password for %s: ", ssid)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func parseBus(arg string) (int, error) {
	bus, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid bus value: %w", err)
	}
	return bus, nil
}

func socketAddr(ip string, port int) string {
	if ip == "" || ip == protocol.DisconnectedIP {
		return "-"
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

func isSet(b *bool) bool {
	return b != nil && *b
}

func yesNo(b *bool, yes, no string) string {
	if isSet(b) {
		return yes
	}
	return no
}
