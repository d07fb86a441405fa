package cert

import (
	"crypto/x509"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RootCommonName is the issuer CommonName of the shared Signify root CA.
// Certificates not issued under this name must be self-signed.
const RootCommonName = "root-bridge"

// Validation errors. All of them are fatal to the connection attempt
// being validated; callers must not downgrade them to warnings.
var (
	ErrInvalidCert       = errors.New("invalid certificate")
	ErrMalformedIdentity = errors.New("certificate subject is not a bridge id")
	ErrIdentityMismatch  = errors.New("certificate bridge id mismatch")
	ErrUntrustedIssuer   = errors.New("certificate issuer is not trusted")
	ErrPinMismatch       = errors.New("certificate does not match pinned trust anchor")
)

// bridgeIDPattern matches a bridge id: exactly 16 hexadecimal characters.
var bridgeIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

// IsBridgeID reports whether s is a syntactically valid bridge id.
func IsBridgeID(s string) bool {
	return bridgeIDPattern.MatchString(s)
}

// ValidateBridgeCert checks a certificate presented by a bridge against
// the trust rules, in order. Any failure is fatal: the connection must
// not proceed.
//
//  1. The subject CommonName must be a 16-hex-character bridge id.
//  2. When expectedID is non-empty, the subject CommonName must equal it
//     (case-insensitive).
//  3. The certificate must be self-signed (issuer CommonName equals the
//     subject CommonName) or issued under the shared root CA.
//  4. When pinned is true, a self-signed certificate was pinned for this
//     bridge earlier: the issuer CommonName must equal the bridge id
//     itself.
func ValidateBridgeCert(c *x509.Certificate, expectedID string, pinned bool) error {
	if c == nil {
		return ErrInvalidCert
	}

	subject := c.Subject.CommonName
	if !IsBridgeID(subject) {
		return fmt.Errorf("%w: %q", ErrMalformedIdentity, subject)
	}

	if expectedID != "" && !strings.EqualFold(subject, expectedID) {
		return fmt.Errorf("%w: got %s, expected %s", ErrIdentityMismatch, subject, expectedID)
	}

	issuer := c.Issuer.CommonName
	selfSigned := strings.EqualFold(issuer, subject)
	if !selfSigned && issuer != RootCommonName {
		return fmt.Errorf("%w: issued by %q", ErrUntrustedIssuer, issuer)
	}

	if pinned {
		// The pinned self-signed certificate is the trust anchor for
		// this bridge id, so the issuer must be the bridge itself.
		id := expectedID
		if id == "" {
			id = subject
		}
		if !strings.EqualFold(issuer, id) {
			return fmt.Errorf("%w: issued by %q", ErrPinMismatch, issuer)
		}
	}

	return nil
}

// IsSelfSigned reports whether the certificate's issuer CommonName equals
// its subject CommonName. Bridges on older firmware present such
// certificates; they are the ones that get pinned.
func IsSelfSigned(c *x509.Certificate) bool {
	if c == nil {
		return false
	}
	return strings.EqualFold(c.Issuer.CommonName, c.Subject.CommonName)
}

// BridgeID extracts the bridge id from a certificate's subject CommonName.
func BridgeID(c *x509.Certificate) (string, error) {
	if c == nil {
		return "", ErrInvalidCert
	}
	cn := c.Subject.CommonName
	if !IsBridgeID(cn) {
		return "", fmt.Errorf("%w: %q", ErrMalformedIdentity, cn)
	}
	return cn, nil
}

// VerifyPeerCertificate creates a verification callback for TLS
// connections to a bridge. The transport-level verification is disabled
// (bridge certificates never carry resolvable DNS names), so this
// callback is the only check performed during the handshake.
func VerifyPeerCertificate(expectedID string, pinned bool) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("%w: no peer certificate presented", ErrInvalidCert)
		}
		peer, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCert, err)
		}
		return ValidateBridgeCert(peer, expectedID, pinned)
	}
}
