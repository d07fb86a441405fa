package linking

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huelink/huelink-go/pkg/cert"
)

const testBridgeID = "001788FFFE23AB12"

// newBridgeTLSCert builds a TLS serving certificate whose subject CN is
// subjectCN and issuer CN is issuerCN. When both match, the certificate
// is genuinely self-signed.
func newBridgeTLSCert(t *testing.T, subjectCN, issuerCN string) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: subjectCN},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	parent := template
	signingKey := key
	if issuerCN != subjectCN {
		parentKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		parent = &x509.Certificate{
			SerialNumber: big.NewInt(2),
			Subject:      pkix.Name{CommonName: issuerCN},
		}
		signingKey = parentKey
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signingKey)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
}

// newBridgeServer starts a TLS server presenting the given certificate.
// Returns the server and its host:port address.
func newBridgeServer(t *testing.T, serving tls.Certificate, handler http.Handler) (*httptest.Server, string) {
	t.Helper()

	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{serving}}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return srv, srv.Listener.Addr().String()
}

func pairingHandler(t *testing.T, response string, posts *atomic.Int32) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api" {
			if posts != nil {
				posts.Add(1)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(response))
			return
		}
		http.NotFound(w, r)
	})
}

func TestLinkNewPairing(t *testing.T) {
	var posts atomic.Int32
	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"success":{"username":"newuser-1","clientkey":"00112233"}}]`, &posts))

	p := New(Config{})
	cfg, err := p.Link(context.Background(), addr, testBridgeID, "")
	require.NoError(t, err)

	assert.Equal(t, addr, cfg.IPAddress)
	assert.Equal(t, testBridgeID, cfg.ID)
	assert.Equal(t, "newuser-1", cfg.Username)
	assert.Equal(t, "00112233", cfg.ClientKey)
	assert.Equal(t, int32(1), posts.Load())

	// Self-signed bridge: the certificate must be pinned.
	require.True(t, cfg.Pinned())
	pinned, err := cert.DecodeCertPEM([]byte(cfg.PinnedCertificatePEM))
	require.NoError(t, err)
	assert.Equal(t, testBridgeID, pinned.Subject.CommonName)
}

func TestLinkReusesExistingUsername(t *testing.T) {
	var posts atomic.Int32
	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"success":{"username":"should-not-be-used"}}]`, &posts))

	p := New(Config{})
	cfg, err := p.Link(context.Background(), addr, testBridgeID, "existing-user")
	require.NoError(t, err)

	assert.Equal(t, "existing-user", cfg.Username)
	assert.Equal(t, int32(0), posts.Load(), "pairing POST must not be issued when a username is supplied")
}

func TestLinkRootSignedNotPinned(t *testing.T) {
	serving := newBridgeTLSCert(t, testBridgeID, cert.RootCommonName)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"success":{"username":"u"}}]`, nil))

	p := New(Config{})
	cfg, err := p.Link(context.Background(), addr, testBridgeID, "")
	require.NoError(t, err)
	assert.False(t, cfg.Pinned())
}

func TestLinkResolvesIDFromCertificate(t *testing.T) {
	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"success":{"username":"u"}}]`, nil))

	p := New(Config{})
	cfg, err := p.Link(context.Background(), addr, "", "")
	require.NoError(t, err)
	assert.Equal(t, testBridgeID, cfg.ID)
}

func TestLinkNotReady(t *testing.T) {
	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"error":{"type":101,"address":"","description":"link button not pressed"}}]`, nil))

	p := New(Config{})
	_, err := p.Link(context.Background(), addr, testBridgeID, "")
	assert.ErrorIs(t, err, ErrLinkNotReady)
}

func TestLinkRejected(t *testing.T) {
	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"error":{"type":7,"address":"","description":"invalid value for parameter"}}]`, nil))

	p := New(Config{})
	_, err := p.Link(context.Background(), addr, testBridgeID, "")

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Invalid value for parameter", rejected.Message)
}

func TestLinkCertificateMismatchAbortsBeforePairing(t *testing.T) {
	var posts atomic.Int32
	serving := newBridgeTLSCert(t, "AAAAAAAAAAAAAAAA", "AAAAAAAAAAAAAAAA")
	_, addr := newBridgeServer(t, serving,
		pairingHandler(t, `[{"success":{"username":"u"}}]`, &posts))

	p := New(Config{})
	_, err := p.Link(context.Background(), addr, testBridgeID, "")
	assert.ErrorIs(t, err, cert.ErrIdentityMismatch)
	assert.Equal(t, int32(0), posts.Load(), "no pairing POST after certificate rejection")
}

func TestLinkUntrustedIssuer(t *testing.T) {
	serving := newBridgeTLSCert(t, testBridgeID, "evil-ca")
	_, addr := newBridgeServer(t, serving, pairingHandler(t, `[]`, nil))

	p := New(Config{})
	_, err := p.Link(context.Background(), addr, testBridgeID, "")
	assert.ErrorIs(t, err, cert.ErrUntrustedIssuer)
}

func TestLinkUnexpectedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty array", body: `[]`},
		{name: "not json", body: `oops`},
		{name: "empty success", body: `[{"success":{}}]`},
		{name: "no verdict", body: `[{}]`},
	}

	serving := newBridgeTLSCert(t, testBridgeID, testBridgeID)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, addr := newBridgeServer(t, serving, pairingHandler(t, tt.body, nil))

			p := New(Config{})
			_, err := p.Link(context.Background(), addr, testBridgeID, "")
			assert.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestFetchCertificateUnreachable(t *testing.T) {
	p := New(Config{DialTimeout: 200 * time.Millisecond})
	_, err := p.FetchCertificate(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Link button not pressed", capitalize("link button not pressed"))
	assert.Equal(t, "Already upper", capitalize("Already upper"))
	assert.Equal(t, "", capitalize(""))
}
