// Package linking implements the pairing exchange with a freshly
// discovered bridge.
//
// Linking proceeds in two steps. First the bridge's certificate is
// fetched through a raw TLS handshake with transport verification
// disabled, then validated immediately against the expected bridge id;
// a certificate that fails validation aborts the link. A self-signed
// certificate is PEM-encoded for pinning. Second, unless an existing
// username is supplied, the pairing POST is issued. The bridge only
// grants a credential while its physical link button has recently been
// pressed: the "link button not pressed" error is the normal first
// response and is retryable, any other bridge-reported error is a
// rejection carrying the bridge's message.
package linking
