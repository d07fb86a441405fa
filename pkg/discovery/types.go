package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceTypeBridge is the DNS-SD service type bridges advertise.
	ServiceTypeBridge = "_hue._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// TXTKeyBridgeID is the TXT record key carrying the bridge id.
	TXTKeyBridgeID = "bridgeid"
)

// DefaultRegistryURL is the public registry endpoint.
const DefaultRegistryURL = "https://discovery.meethue.com/"

// LocalBrowseTimeout bounds a local discovery run. After it expires the
// listener is stopped and the operation fails with ErrNotFound.
const LocalBrowseTimeout = 10 * time.Second

// Discovery errors.
var (
	// ErrNotFound means the strategy completed but no bridge was found.
	ErrNotFound = errors.New("no bridge found")

	// ErrServiceError means the strategy itself failed (bad response,
	// transport failure) before a verdict could be reached.
	ErrServiceError = errors.New("discovery service error")
)

// Result identifies a discovered bridge. It is ephemeral: consumed
// immediately by linking or the connect path, never persisted directly.
type Result struct {
	// IPAddress is the bridge's IPv4 address on the local network.
	IPAddress string

	// ID is the bridge id (16 hex characters).
	ID string
}
