package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistryDiscover(t *testing.T) {
	srv := registryServer(t, http.StatusOK,
		`[{"id":"001788fffe23ab12","internalipaddress":"192.168.1.42"},{"id":"aaaaaaaaaaaaaaaa","internalipaddress":"192.168.1.99"}]`)

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	res, err := d.Discover(context.Background())
	require.NoError(t, err)

	// Only the first entry counts: multi-bridge networks are unsupported.
	assert.Equal(t, "192.168.1.42", res.IPAddress)
	assert.Equal(t, "001788fffe23ab12", res.ID)
}

func TestRegistryDiscoverEmptyArray(t *testing.T) {
	srv := registryServer(t, http.StatusOK, `[]`)

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryDiscoverEmptyBody(t *testing.T) {
	srv := registryServer(t, http.StatusOK, "")

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryDiscoverServiceError(t *testing.T) {
	srv := registryServer(t, http.StatusTooManyRequests, `rate limited`)

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrServiceError)
}

func TestRegistryDiscoverMalformedJSON(t *testing.T) {
	srv := registryServer(t, http.StatusOK, `{"not":"an array"`)

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrServiceError)
}

func TestRegistryDiscoverIncompleteFirstEntry(t *testing.T) {
	srv := registryServer(t, http.StatusOK, `[{"id":"","internalipaddress":"192.168.1.42"}]`)

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryDiscoverUnreachable(t *testing.T) {
	srv := registryServer(t, http.StatusOK, `[]`)
	url := srv.URL
	srv.Close()

	d := NewRegistryDiscoverer(RegistryConfig{URL: url})
	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrServiceError)
}

func TestRegistryDiscoverRespectsContext(t *testing.T) {
	srv := registryServer(t, http.StatusOK, `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewRegistryDiscoverer(RegistryConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := d.Discover(ctx)
	assert.ErrorIs(t, err, ErrServiceError)
}
