package cert

import (
	"crypto/x509"
	_ "embed"
	"fmt"
)

// rootCertPEM is the shared Signify root CA certificate published for
// bridge verification. It is bundled so that connections to bridges with
// root-signed certificates work without any prior pinning step.
//
//go:embed signify-root.pem
var rootCertPEM []byte

// RootCertPEM returns the bundled root CA certificate in PEM form.
func RootCertPEM() []byte {
	out := make([]byte, len(rootCertPEM))
	copy(out, rootCertPEM)
	return out
}

// RootPool returns a certificate pool containing the bundled root CA.
// Use it as tls.Config.RootCAs when no pinned certificate is stored.
func RootPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(rootCertPEM) {
		return nil, fmt.Errorf("%w: bundled root certificate", ErrInvalidPEM)
	}
	return pool, nil
}
