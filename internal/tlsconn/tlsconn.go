// Package tlsconn wraps a net.Conn in TLS the way the RDP client's
// StartTLS does, adding the two pieces a CredSSP/NLA handshake needs on
// top of that: an RFC 5929 "tls-server-end-point" channel binding token
// and a known-hosts style certificate pin store.
package tlsconn

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config configures the client-side TLS wrapper.
type Config struct {
	ServerName         string
	InsecureSkipVerify bool
	MinVersion         string // "1.0".."1.3"
	HandshakeTimeout   time.Duration
	Pins               *PinStore
}

func (c *Config) minVersion() uint16 {
	switch c.MinVersion {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.3":
		return tls.VersionTLS13
	case "1.2", "":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS12
	}
}

func secureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	}
}

// Conn is a handshaken TLS connection plus the channel binding token
// computed from the peer's leaf certificate.
type Conn struct {
	*tls.Conn
	ChannelBinding []byte
}

// deriveServerName extracts a usable SNI hostname from a net.Conn's
// remote address, leaving it empty for bare IP addresses (Go will then
// require InsecureSkipVerify or an explicit ServerName).
func deriveServerName(conn net.Conn) string {
	remoteAddr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		parts := strings.Split(remoteAddr, ":")
		if len(parts) == 0 {
			return ""
		}
		host = parts[0]
	}
	host = strings.TrimSpace(host)
	if host == "" || net.ParseIP(host) != nil || len(host) > 253 {
		return ""
	}
	return host
}

// Wrap performs the client TLS handshake over conn and validates the
// peer certificate against the configured pin store, if any.
func Wrap(conn net.Conn, cfg Config) (*Conn, error) {
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = deriveServerName(conn)
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         cfg.minVersion(),
		MaxVersion:         tls.VersionTLS13,
		ServerName:         serverName,
	}

	if cfg.InsecureSkipVerify {
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = "rdp-server"
		}
		tlsCfg.CipherSuites = nil
	} else {
		tlsCfg.CipherSuites = secureCipherSuites()
	}

	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	tlsConn := tls.Client(conn, tlsCfg)

	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := conn.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(timeout))
		defer d.SetDeadline(time.Time{})
	}

	if err := tlsConn.Handshake(); err != nil {
		if strings.Contains(err.Error(), "certificate") || strings.Contains(err.Error(), "x509") {
			return nil, fmt.Errorf("tlsconn: certificate verification failed: %w", err)
		}
		return nil, fmt.Errorf("tlsconn: handshake failed: %w", err)
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("tlsconn: no peer certificate presented")
	}
	leaf := state.PeerCertificates[0]

	if cfg.Pins != nil {
		if err := cfg.Pins.Verify(serverName, leaf); err != nil {
			return nil, err
		}
	}

	return &Conn{Conn: tlsConn, ChannelBinding: ChannelBindingToken(leaf)}, nil
}

// ChannelBindingToken computes the RFC 5929 "tls-server-end-point"
// channel binding value for a peer certificate: the prefix
// "tls-server-end-point:" followed by the certificate hashed with the
// same algorithm used in its signature, upgrading MD5/SHA1 signed
// certificates to SHA-256 as RFC 5929 section 4.1 requires.
func ChannelBindingToken(cert *x509.Certificate) []byte {
	hash := certHash(cert)
	token := append([]byte("tls-server-end-point:"), hash...)
	return token
}

func certHash(cert *x509.Certificate) []byte {
	switch cert.SignatureAlgorithm {
	case x509.SHA384WithRSA, x509.ECDSAWithSHA384:
		sum := sha512.Sum384(cert.Raw)
		return sum[:]
	case x509.SHA512WithRSA, x509.ECDSAWithSHA512:
		sum := sha512.Sum512(cert.Raw)
		return sum[:]
	default:
		// MD5/SHA1-signed certificates are upgraded to SHA-256 per
		// RFC 5929 section 4.1; SHA-256-signed certs hash naturally here too.
		sum := sha256.Sum256(cert.Raw)
		return sum[:]
	}
}
