package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// registryEntry is one element of the registry response.
type registryEntry struct {
	InternalIPAddress string `json:"internalipaddress"`
	ID                string `json:"id"`
}

// RegistryConfig configures registry discovery.
type RegistryConfig struct {
	// URL is the registry endpoint. Default: DefaultRegistryURL.
	URL string

	// HTTPClient is the client used for the lookup. Default: a client
	// with a 10 second timeout.
	HTTPClient *http.Client
}

// RegistryDiscoverer locates a bridge through the public registry.
type RegistryDiscoverer struct {
	url    string
	client *http.Client
}

// NewRegistryDiscoverer creates a registry discoverer.
func NewRegistryDiscoverer(cfg RegistryConfig) *RegistryDiscoverer {
	if cfg.URL == "" {
		cfg.URL = DefaultRegistryURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RegistryDiscoverer{url: cfg.URL, client: cfg.HTTPClient}
}

// Discover performs a single registry lookup. The first entry wins;
// multi-bridge networks are not supported. An empty body or empty array
// yields ErrNotFound, a non-200 status yields ErrServiceError.
func (d *RegistryDiscoverer) Discover(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: registry returned status %d", ErrServiceError, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
	}
	if len(body) == 0 {
		return nil, ErrNotFound
	}

	var entries []registryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceError, err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	first := entries[0]
	if first.InternalIPAddress == "" || first.ID == "" {
		return nil, ErrNotFound
	}

	return &Result{
		IPAddress: first.InternalIPAddress,
		ID:        first.ID,
	}, nil
}
