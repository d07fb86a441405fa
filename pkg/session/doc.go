// Package session opens and holds the authenticated connection to a
// linked bridge.
//
// The bridge's TLS certificate carries its id as the subject common
// name and no DNS names, and hostname identity checks reject bare IP
// literals. Connections therefore address the bridge by id as the TLS
// hostname, with a dial hook that resolves the id back to the bridge's
// configured IP address. Certificate verification during the handshake
// is delegated to the validation rules in pkg/cert, anchored either on
// the pinned self-signed certificate or on the shared root of trust.
//
// After the handshake one lightweight authenticated read confirms the
// stored credential is still accepted. Only then is a Handle surfaced.
// The manager keeps at most one live handle per bridge id: a new
// connect invalidates whatever handle existed before it.
package session
