// Package bridge defines the shared bridge configuration record produced
// by linking and consumed by storage and session establishment.
package bridge

import (
	"errors"
	"fmt"
	"net"

	"github.com/huelink/huelink-go/pkg/cert"
)

// Config errors.
var (
	ErrMissingAddress  = errors.New("bridge address is required")
	ErrInvalidBridgeID = errors.New("invalid bridge id")
	ErrMissingUsername = errors.New("bridge username is required")
)

// Config is the complete record needed to reach and authenticate against
// a bridge. It is created by linking on first successful pairing or
// loaded from storage, and only ever replaced wholesale.
type Config struct {
	// IPAddress is the bridge's current IPv4 address.
	IPAddress string `json:"ipAddress"`

	// ID is the bridge id (16 hex characters, case-insensitive).
	ID string `json:"id"`

	// Username is the long-lived credential obtained during linking.
	// It is opaque and must never be logged or displayed.
	Username string `json:"username"`

	// ClientKey is the streaming key returned alongside the username.
	// Like the username it is opaque and never logged.
	ClientKey string `json:"clientKey,omitempty"`

	// PinnedCertificatePEM holds the bridge's self-signed certificate in
	// PEM form. Present iff the certificate observed during linking was
	// self-signed; absent means the shared root CA is the trust anchor.
	PinnedCertificatePEM string `json:"pinnedCertificatePem,omitempty"`
}

// Pinned reports whether a self-signed certificate is pinned for this
// bridge.
func (c *Config) Pinned() bool {
	return c != nil && c.PinnedCertificatePEM != ""
}

// Validate checks that the config carries everything a connection needs.
func (c *Config) Validate() error {
	if c.IPAddress == "" {
		return ErrMissingAddress
	}
	if !cert.IsBridgeID(c.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidBridgeID, c.ID)
	}
	if c.Username == "" {
		return ErrMissingUsername
	}
	return nil
}

// String renders the config with credentials redacted. The username and
// client key must never appear in logs or terminal output.
func (c *Config) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("bridge %s at %s (pinned=%v)", c.ID, c.IPAddress, c.Pinned())
}

// IsIPv4 reports whether s is a syntactically valid IPv4 literal.
// Preference-supplied address overrides must satisfy this before any
// connection attempt is made.
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
