package network

// Status is a snapshot of the network link.
type Status struct {
	Connected bool
	// IP is the host's IPv4 address in dotted form, empty when not joined.
	IP string
	// RSSI is the signal strength in dBm, 0 when unknown or not joined.
	RSSI int
}

// Joiner gets the host onto a network.
type Joiner interface {
	// Begin starts joining ssid. It returns once the attempt has started;
	// callers poll Status for the outcome.
	Begin(ssid, password string) error
	Status() Status
	// Leave disconnects and abandons any join in progress.
	Leave() error
}
