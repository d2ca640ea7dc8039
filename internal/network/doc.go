// Package network provides the gateway's IP side: joining a wireless
// network and serving the single TCP socket client.
//
// Everything here is polled from the gateway main loop. Listener.Accept and
// Client.ReadAvailable return immediately when nothing is pending, using a
// short socket deadline instead of a dedicated goroutine per connection.
//
// Joiner abstracts how the host gets onto a network. NMCLI drives
// NetworkManager for Wi-Fi; Host treats an already configured interface as
// the network and only reports its address.
package network
