package linking

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/huelink/huelink-go/pkg/bridge"
	"github.com/huelink/huelink-go/pkg/cert"
)

// DeviceType is the fixed device identification sent with the pairing
// request, in the bridge's required application#device format.
const DeviceType = "huelink#go"

// notReadyDescription is the bridge's error text while the link button
// has not been pressed.
const notReadyDescription = "link button not pressed"

// Linking errors.
var (
	// ErrLinkNotReady means the bridge's physical link button has not
	// been pressed yet. Retryable: press the button and link again.
	ErrLinkNotReady = errors.New("bridge link button not pressed")

	// ErrUnexpectedResponse means the bridge's reply did not match the
	// pairing protocol.
	ErrUnexpectedResponse = errors.New("unexpected pairing response")

	// ErrNoPeerCertificate means the bridge completed a handshake
	// without presenting a certificate.
	ErrNoPeerCertificate = errors.New("bridge presented no certificate")
)

// RejectedError is a bridge-reported pairing rejection other than the
// link button. The bridge's message is carried for display.
type RejectedError struct {
	// Message is the bridge's description, capitalized for display.
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("bridge rejected pairing: %s", e.Message)
}

// Config configures the linking protocol.
type Config struct {
	// DialTimeout bounds the certificate-fetch handshake.
	// Default: 5 seconds.
	DialTimeout time.Duration

	// HTTPClient issues the pairing POST. Default: a client with
	// transport-level verification disabled (the certificate has already
	// been validated by the fetch step) and a 10 second timeout.
	HTTPClient *http.Client

	// Port is the bridge's HTTPS port. Default 443. Tests override it.
	Port string
}

// Protocol performs the pairing exchange.
type Protocol struct {
	config Config
}

// New creates a linking protocol instance.
func New(cfg Config) *Protocol {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Port == "" {
		cfg.Port = "443"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				// The certificate is validated by the fetch step before
				// any pairing request is sent.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return &Protocol{config: cfg}
}

// Link performs the pairing exchange with the bridge at ipAddress.
//
// bridgeID, when known from discovery, is enforced against the bridge's
// certificate. existingUsername, when non-empty, is reused verbatim and
// the pairing POST is skipped entirely.
func (p *Protocol) Link(ctx context.Context, ipAddress, bridgeID, existingUsername string) (*bridge.Config, error) {
	peerCert, err := p.FetchCertificate(ctx, ipAddress)
	if err != nil {
		return nil, err
	}

	if err := cert.ValidateBridgeCert(peerCert, bridgeID, false); err != nil {
		return nil, err
	}

	var pinnedPEM string
	if cert.IsSelfSigned(peerCert) {
		pinnedPEM = string(cert.EncodeCertPEM(peerCert))
	}

	username := existingUsername
	clientKey := ""
	if username == "" {
		username, clientKey, err = p.pair(ctx, ipAddress)
		if err != nil {
			return nil, err
		}
	}

	// An explicitly supplied id wins over the certificate's subject.
	id := bridgeID
	if id == "" {
		id = peerCert.Subject.CommonName
	}

	return &bridge.Config{
		IPAddress:            ipAddress,
		ID:                   id,
		Username:             username,
		ClientKey:            clientKey,
		PinnedCertificatePEM: pinnedPEM,
	}, nil
}

// FetchCertificate retrieves the bridge's certificate through a raw TLS
// handshake. Transport-level verification is disabled; the caller is
// responsible for validating the returned certificate before trusting
// the bridge.
func (p *Protocol) FetchCertificate(ctx context.Context, ipAddress string) (*x509.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		Config: &tls.Config{InsecureSkipVerify: true},
	}

	conn, err := dialer.DialContext(ctx, "tcp", p.hostPort(ipAddress))
	if err != nil {
		return nil, fmt.Errorf("certificate fetch: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificate
	}
	return state.PeerCertificates[0], nil
}

// pair issues the pairing POST and interprets the bridge's reply.
func (p *Protocol) pair(ctx context.Context, ipAddress string) (username, clientKey string, err error) {
	body, err := json.Marshal(pairingRequest{
		DeviceType:        DeviceType,
		GenerateClientKey: true,
	})
	if err != nil {
		return "", "", err
	}

	url := fmt.Sprintf("https://%s/api", p.hostPort(ipAddress))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("pairing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("pairing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	var replies []pairingReply
	if err := json.Unmarshal(data, &replies); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(replies) == 0 {
		return "", "", ErrUnexpectedResponse
	}

	reply := replies[0]
	switch {
	case reply.Error != nil:
		if strings.EqualFold(reply.Error.Description, notReadyDescription) {
			return "", "", ErrLinkNotReady
		}
		return "", "", &RejectedError{Message: capitalize(reply.Error.Description)}

	case reply.Success != nil && reply.Success.Username != "":
		return reply.Success.Username, reply.Success.ClientKey, nil

	default:
		return "", "", ErrUnexpectedResponse
	}
}

// hostPort appends the configured port unless the address already
// carries one.
func (p *Protocol) hostPort(ipAddress string) string {
	if _, _, err := net.SplitHostPort(ipAddress); err == nil {
		return ipAddress
	}
	return net.JoinHostPort(ipAddress, p.config.Port)
}

// capitalize upper-cases the first rune of the bridge's message for
// display.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
