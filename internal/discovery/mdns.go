package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
)

const (
	// ServiceType is the mDNS service type of the gateway socket channel
	ServiceType = "_rs485gw._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the socket channel port assumed when none is advertised
	DefaultPort = 3333

	// BusCount is advertised in the "buses" TXT record.
	BusCount = 2
)

// Scanner browses for gateways.
type Scanner struct {
	// Timeout is the maximum time to wait for gateway discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all gateways until the timeout expires.
func (s *Scanner) Scan(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var gateways []*Gateway
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		seen := make(map[string]bool)
		for entry := range entries {
			gw := parseServiceEntry(entry)
			if gw == nil || seen[gw.Instance] {
				continue
			}
			seen[gw.Instance] = true
			gateways = append(gateways, gw)
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the browse context ends.
	select {
	case <-collected:
	case <-time.After(time.Second):
	}

	return gateways, nil
}

// Find waits for the gateway advertised as instance.
func (s *Scanner) Find(ctx context.Context, instance string) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Gateway, 1)

	go func() {
		for entry := range entries {
			gw := parseServiceEntry(entry)
			if gw != nil && strings.EqualFold(gw.Instance, instance) {
				select {
				case found <- gw:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		select {
		case gw := <-found:
			return gw, nil
		default:
		}
		return nil, fmt.Errorf("gateway %q not found within timeout", instance)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Gateway.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Gateway{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Gateway, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.Scan(context.Background())
}

// registration is a live advertisement.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string) (registration, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, text, nil)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Advertiser announces the socket channel while it is listening.
type Advertiser struct {
	instance string
	text     []string
	register registerFunc

	mu      sync.Mutex
	current registration
	port    int
}

// NewAdvertiser returns an Advertiser for the given instance name. Extra TXT
// records are published next to buses and version.
func NewAdvertiser(instance, version string, extra ...string) *Advertiser {
	text := []string{
		fmt.Sprintf("buses=%d", BusCount),
		"version=" + version,
	}
	text = append(text, extra...)
	return &Advertiser{
		instance: instance,
		text:     text,
		register: zeroconfRegister,
	}
}

// Advertise publishes the service on port, replacing any earlier
// advertisement.
func (a *Advertiser) Advertise(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.port == port {
		return nil
	}
	a.withdrawLocked()

	reg, err := a.register(a.instance, ServiceType, ServiceDomain, port, a.text)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.current = reg
	a.port = port

	logging.Info("Advertising socket channel",
		zap.String("instance", a.instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}

// Withdraw removes the advertisement, if any.
func (a *Advertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.withdrawLocked()
}

func (a *Advertiser) withdrawLocked() {
	if a.current == nil {
		return
	}
	a.current.Shutdown()
	a.current = nil
	logging.Debug("Withdrew socket channel advertisement",
		zap.String("instance", a.instance),
		zap.Int("port", a.port),
	)
	a.port = 0
}
