// Package discovery announces and finds RS-485 gateways with mDNS.
//
// While its socket channel is listening, a gateway advertises itself as a
// "_rs485gw._tcp" service on the socket port, with TXT records describing
// the gateway:
//
//	buses=2
//	version=v1.2.0
//	pairing=ESP32-RS485-GW
//
// The advertisement is withdrawn whenever the socket is torn down, so a
// browser only sees gateways that can accept a client right now.
//
// # Usage Example
//
//	gateways, err := discovery.QuickScan()
//	if err != nil {
//	    return err
//	}
//	for _, gw := range gateways {
//	    fmt.Println(gw.Instance, gw.Address())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Gateways must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
