// Package cert implements certificate validation and trust handling for
// Hue bridge connections.
//
// A bridge identifies itself with an X.509 certificate whose subject
// CommonName is its 16-hex-character bridge id. Two trust models exist:
//
// # Root-signed certificates
//
// Bridges on current firmware present a certificate issued by the shared
// Signify root CA (issuer CommonName "root-bridge"). The root certificate
// is bundled with this package and used whenever no pinned certificate is
// stored for the bridge.
//
// # Self-signed certificates (pinning)
//
// Bridges on older firmware present a self-signed certificate (issuer
// CommonName equals the bridge id). The certificate observed during
// linking is PEM-encoded and pinned; later connections must present a
// certificate issued under that same bridge id.
//
// Validation is a pure function of the presented certificate, the
// expected bridge id and the pinning flag. It performs no network or
// disk I/O, so connection code can delegate its TLS verification
// callback here and tests can cover every rule in isolation.
package cert
