package network

import (
	"net"
	"sync"
)

// Host treats an interface that is already configured (wired, or managed
// outside the gateway) as the network. Begin and Leave only toggle whether
// the gateway considers itself joined.
type Host struct {
	iface string
	addrs func(iface string) ([]net.Addr, error)

	mu     sync.Mutex
	joined bool
}

// NewHost returns a Joiner reporting the first IPv4 address of iface, or of
// any non-loopback interface when iface is empty.
func NewHost(iface string) *Host {
	return &Host{iface: iface, addrs: interfaceAddrs}
}

func (h *Host) Begin(string, string) error {
	h.mu.Lock()
	h.joined = true
	h.mu.Unlock()
	return nil
}

func (h *Host) Status() Status {
	h.mu.Lock()
	joined := h.joined
	h.mu.Unlock()
	if !joined {
		return Status{}
	}

	addrs, err := h.addrs(h.iface)
	if err != nil {
		return Status{}
	}
	ip := firstIPv4(addrs)
	if ip == "" {
		return Status{}
	}
	return Status{Connected: true, IP: ip}
}

func (h *Host) Leave() error {
	h.mu.Lock()
	h.joined = false
	h.mu.Unlock()
	return nil
}

func interfaceAddrs(iface string) ([]net.Addr, error) {
	if iface == "" {
		return net.InterfaceAddrs()
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	return ifi.Addrs()
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
