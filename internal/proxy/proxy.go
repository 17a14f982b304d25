// Package proxy implements the SOCKS5 and HTTP CONNECT dialers used to
// reach an RDP server through an intermediate proxy, plus environment
// based proxy resolution (http_proxy/https_proxy/no_proxy) via
// golang.org/x/net/http/httpproxy, the same variables FreeRDP's
// proxy.c honors.
package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// Type identifies the proxy protocol to use.
type Type int

const (
	TypeNone Type = iota
	TypeHTTP
	TypeSOCKS5
)

// Config describes how to reach a proxy and authenticate to it.
type Config struct {
	Type     Type
	Address  string // host:port of the proxy
	Username string
	Password string
}

var (
	ErrUnsupportedType   = errors.New("proxy: unsupported proxy type")
	ErrSOCKSHandshake    = errors.New("proxy: SOCKS5 handshake failed")
	ErrSOCKSAuth         = errors.New("proxy: SOCKS5 authentication failed")
	ErrSOCKSConnect      = errors.New("proxy: SOCKS5 CONNECT failed")
	ErrHTTPConnect       = errors.New("proxy: HTTP CONNECT failed")
)

// Dial connects to target through the configured proxy, or directly if
// cfg.Type is TypeNone.
func Dial(ctx context.Context, cfg Config, target string) (net.Conn, error) {
	switch cfg.Type {
	case TypeNone:
		var d net.Dialer
		return d.DialContext(ctx, "tcp", target)
	case TypeHTTP:
		return dialHTTPConnect(ctx, cfg, target)
	case TypeSOCKS5:
		return dialSOCKS5(ctx, cfg, target)
	default:
		return nil, ErrUnsupportedType
	}
}

// ResolveFromEnvironment returns the proxy configuration implied by the
// standard http_proxy/https_proxy/no_proxy environment variables for a
// given target URL, or TypeNone if no proxy applies.
func ResolveFromEnvironment(targetURL string) (Config, error) {
	cfg := httpproxy.FromEnvironment()
	u, err := url.Parse(targetURL)
	if err != nil {
		return Config{}, err
	}

	proxyURL, err := cfg.ProxyFunc()(u)
	if err != nil {
		return Config{}, err
	}
	if proxyURL == nil {
		return Config{Type: TypeNone}, nil
	}

	pc := Config{Type: TypeHTTP, Address: proxyURL.Host}
	if proxyURL.User != nil {
		pc.Username = proxyURL.User.Username()
		pc.Password, _ = proxyURL.User.Password()
	}
	if proxyURL.Scheme == "socks5" {
		pc.Type = TypeSOCKS5
	}
	return pc, nil
}

func dialHTTPConnect(ctx context.Context, cfg Config, target string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", target, target)
	if cfg.Username != "" {
		req += "Proxy-Authorization: Basic " + basicAuth(cfg.Username, cfg.Password) + "\r\n"
	}
	req += "\r\n"

	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !strings.Contains(status, " 200 ") {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrHTTPConnect, strings.TrimSpace(status))
	}
	// Drain remaining response headers.
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, err
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	return conn, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// SOCKS5 constants (RFC 1928).
const (
	socksVersion5      = 0x05
	socksAuthNone      = 0x00
	socksAuthUserPass  = 0x02
	socksAuthNoAccept  = 0xFF
	socksCmdConnect    = 0x01
	socksAddrIPv4      = 0x01
	socksAddrFQDN      = 0x03
	socksAddrIPv6      = 0x04
	socksReplySucceeded = 0x00
)

func dialSOCKS5(ctx context.Context, cfg Config, target string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}

	if err := socks5Handshake(conn, cfg); err != nil {
		conn.Close()
		return nil, err
	}
	if err := socks5Connect(conn, target); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func socks5Handshake(conn net.Conn, cfg Config) error {
	methods := []byte{socksAuthNone}
	if cfg.Username != "" {
		methods = append(methods, socksAuthUserPass)
	}

	greeting := append([]byte{socksVersion5, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return err
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return err
	}
	if resp[0] != socksVersion5 {
		return ErrSOCKSHandshake
	}

	switch resp[1] {
	case socksAuthNone:
		return nil
	case socksAuthUserPass:
		return socks5UserPassAuth(conn, cfg.Username, cfg.Password)
	case socksAuthNoAccept:
		return ErrSOCKSAuth
	default:
		return ErrSOCKSHandshake
	}
}

func socks5UserPassAuth(conn net.Conn, user, pass string) error {
	req := []byte{0x01, byte(len(user))}
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)

	if _, err := conn.Write(req); err != nil {
		return err
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return err
	}
	if resp[1] != 0x00 {
		return ErrSOCKSAuth
	}
	return nil
}

func socks5Connect(conn net.Conn, target string) error {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	req := []byte{socksVersion5, socksCmdConnect, 0x00}

	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			req = append(req, socksAddrIPv4)
			req = append(req, ip4...)
		} else {
			req = append(req, socksAddrIPv6)
			req = append(req, ip.To16()...)
		}
	} else {
		req = append(req, socksAddrFQDN, byte(len(host)))
		req = append(req, host...)
	}
	req = append(req, byte(port>>8), byte(port))

	if _, err := conn.Write(req); err != nil {
		return err
	}

	header := make([]byte, 4)
	if _, err := readFull(conn, header); err != nil {
		return err
	}
	if header[1] != socksReplySucceeded {
		return fmt.Errorf("%w: reply code %d", ErrSOCKSConnect, header[1])
	}

	var addrLen int
	switch header[3] {
	case socksAddrIPv4:
		addrLen = 4
	case socksAddrIPv6:
		addrLen = 16
	case socksAddrFQDN:
		lenByte := make([]byte, 1)
		if _, err := readFull(conn, lenByte); err != nil {
			return err
		}
		addrLen = int(lenByte[0])
	default:
		return ErrSOCKSConnect
	}

	if _, err := readFull(conn, make([]byte, addrLen+2)); err != nil { // address + port
		return err
	}

	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
