package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// ErrHandleInvalidated means the handle has been replaced or torn down
// and can no longer carry requests.
var ErrHandleInvalidated = errors.New("session handle invalidated")

// Handle is one live authenticated connection to a bridge. Callers
// issue requests through it but never mutate bridge configuration;
// handles are replaced, never mutated in place.
type Handle struct {
	id       string
	bridgeID string
	baseURL  string
	username string

	client    *http.Client
	transport *http.Transport

	once sync.Once
	done chan struct{}
}

func newHandle(bridgeID, baseURL, username string, client *http.Client, transport *http.Transport) *Handle {
	return &Handle{
		id:        uuid.NewString(),
		bridgeID:  bridgeID,
		baseURL:   baseURL,
		username:  username,
		client:    client,
		transport: transport,
		done:      make(chan struct{}),
	}
}

// ID is the handle's unique identifier, suitable for logging.
func (h *Handle) ID() string { return h.id }

// BridgeID is the id of the bridge this handle is connected to.
func (h *Handle) BridgeID() string { return h.bridgeID }

// Valid reports whether the handle can still carry requests.
func (h *Handle) Valid() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Get issues an authenticated GET for the given resource path. The
// caller owns the response body.
func (h *Handle) Get(ctx context.Context, path string) (*http.Response, error) {
	if !h.Valid() {
		return nil, ErrHandleInvalidated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthHeader, h.username)
	return h.client.Do(req)
}

// String renders the handle without credentials.
func (h *Handle) String() string {
	return fmt.Sprintf("session %s to bridge %s", h.id, h.bridgeID)
}

func (h *Handle) invalidate() {
	h.once.Do(func() {
		close(h.done)
		h.transport.CloseIdleConnections()
	})
}
