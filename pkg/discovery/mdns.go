package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/huelink/huelink-go/pkg/cert"
)

// browseFunc matches zeroconf.Browse. Tests inject a fake to drive the
// discoverer without multicast traffic.
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry, removed chan<- *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// LocalConfig configures local mDNS discovery.
type LocalConfig struct {
	// Timeout bounds the whole browse. Default: LocalBrowseTimeout.
	Timeout time.Duration

	// Interface specifies which network interface to browse on.
	// Empty string means all interfaces.
	Interface string

	// browse overrides the zeroconf browse call in tests.
	browse browseFunc
}

// LocalDiscoverer locates a bridge through mDNS service announcements.
type LocalDiscoverer struct {
	config LocalConfig
}

// NewLocalDiscoverer creates a local mDNS discoverer.
func NewLocalDiscoverer(cfg LocalConfig) *LocalDiscoverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = LocalBrowseTimeout
	}
	if cfg.browse == nil {
		cfg.browse = zeroconf.Browse
	}
	return &LocalDiscoverer{config: cfg}
}

// Discover browses for the first bridge announcing the _hue._tcp service.
// The listener is cancelled unconditionally once a bridge resolves, the
// browse errors, or the timeout fires - whichever happens first - so no
// live listener leaks into later lifecycle states.
func (d *LocalDiscoverer) Discover(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.config.browse(ctx, ServiceTypeBridge, Domain, entries, removed, d.browserOptions()...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			if res := entryToResult(entry); res != nil {
				return res, nil
			}

		case _, ok := <-removed:
			// Removals are irrelevant for a first-responder search, but
			// the channel must be drained.
			if !ok {
				removed = nil
			}

		case err := <-errCh:
			errCh = nil
			if err != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
			}

		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (d *LocalDiscoverer) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if d.config.Interface != "" {
		iface, err := net.InterfaceByName(d.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToResult converts a zeroconf entry to a Result. Entries without an
// IPv4 address or a well-formed bridgeid TXT record are skipped.
func entryToResult(entry *zeroconf.ServiceEntry) *Result {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return nil
	}

	id, ok := bridgeIDFromTXT(entry.Text)
	if !ok {
		return nil
	}

	return &Result{
		IPAddress: entry.AddrIPv4[0].String(),
		ID:        id,
	}
}

// bridgeIDFromTXT extracts and validates the bridgeid TXT attribute.
func bridgeIDFromTXT(txt []string) (string, bool) {
	for _, record := range txt {
		key, value, found := strings.Cut(record, "=")
		if !found || !strings.EqualFold(key, TXTKeyBridgeID) {
			continue
		}
		if !cert.IsBridgeID(value) {
			return "", false
		}
		return value, true
	}
	return "", false
}
