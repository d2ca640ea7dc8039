package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Gateway is a gateway found on the network.
type Gateway struct {
	// Instance is the advertised service instance name.
	Instance string

	// Hostname is the mDNS hostname (e.g., "gw-workshop.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the gateway has none.
	IP string

	// Port is the socket channel port (typically 3333)
	Port int

	// Metadata contains the TXT record data (buses, version, pairing)
	Metadata map[string]string

	// DiscoveredAt is when the gateway was discovered
	DiscoveredAt time.Time
}

func (g *Gateway) String() string {
	return fmt.Sprintf("RS-485 Gateway %s (%s) at %s", g.Instance, g.Hostname, g.Address())
}

// Address returns host:port for dialing the socket channel.
func (g *Gateway) Address() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}

// Version returns the advertised gateway version, if any.
func (g *Gateway) Version() string {
	return g.GetMetadata("version")
}
