package rpctunnel

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dvorak-labs/rdpwire/internal/auth"
)

// ChannelDirection distinguishes the IN and OUT legs of an RPC/RTS
// virtual connection, each of which is a separate persistent HTTP
// request carrying the RPC_IN_DATA / RPC_OUT_DATA verb.
type ChannelDirection int

const (
	DirectionIn ChannelDirection = iota
	DirectionOut
)

func (d ChannelDirection) method() string {
	if d == DirectionIn {
		return "RPC_IN_DATA"
	}
	return "RPC_OUT_DATA"
}

var (
	ErrAuthChallengeMissing = errors.New("rpctunnel: server did not return an NTLM challenge")
	ErrAuthRejected         = errors.New("rpctunnel: NTLM authentication rejected")
)

// ChannelConfig configures one IN or OUT HTTP channel to a gateway.
type ChannelConfig struct {
	URL      string
	Domain   string
	User     string
	Password string
	Client   *http.Client
}

// AuthenticateChannel performs the two-round-trip NTLM-over-HTTP
// handshake for one RPC channel: an initial request carrying a Type 1
// Negotiate token, followed by a request carrying the Type 3
// Authenticate token computed from the server's Type 2 Challenge, each
// base64-encoded in the Authorization: NTLM header as RPC-over-HTTP
// requires.
func AuthenticateChannel(cfg ChannelConfig, dir ChannelDirection) (*http.Client, error) {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	ntlm := auth.NewNTLMv2(cfg.Domain, cfg.User, cfg.Password)

	negotiate := ntlm.GetNegotiateMessage()
	req1, err := http.NewRequest(dir.method(), cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req1.Header.Set("Authorization", "NTLM "+base64.StdEncoding.EncodeToString(negotiate))

	resp1, err := client.Do(req1)
	if err != nil {
		return nil, err
	}
	io.Copy(io.Discard, resp1.Body)
	resp1.Body.Close()

	challengeHeader := resp1.Header.Get("WWW-Authenticate")
	challengeToken, err := extractNTLMToken(challengeHeader)
	if err != nil {
		return nil, err
	}

	challenge, err := auth.ParseChallengeMessage(challengeToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthChallengeMissing, err)
	}

	authMsg, _ := ntlm.GetAuthenticateMessage(challengeMessageBytes(challenge))

	req2, err := http.NewRequest(dir.method(), cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req2.Header.Set("Authorization", "NTLM "+base64.StdEncoding.EncodeToString(authMsg))

	resp2, err := client.Do(req2)
	if err != nil {
		return nil, err
	}
	io.Copy(io.Discard, resp2.Body)
	resp2.Body.Close()

	if resp2.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthRejected
	}

	return client, nil
}

// challengeMessageBytes re-serializes the parsed challenge's raw form
// for GetAuthenticateMessage, which expects the original wire bytes.
func challengeMessageBytes(c *auth.ChallengeMessage) []byte {
	return c.RawData
}

func extractNTLMToken(header string) ([]byte, error) {
	const prefix = "NTLM "
	idx := bytes.Index([]byte(header), []byte(prefix))
	if idx < 0 {
		return nil, ErrAuthChallengeMissing
	}
	encoded := header[idx+len(prefix):]
	if sp := bytes.IndexByte([]byte(encoded), ' '); sp >= 0 {
		encoded = encoded[:sp]
	}
	return base64.StdEncoding.DecodeString(encoded)
}
