// Package security implements the RDP connection security negotiation
// handshake: the X.224-framed NEG_REQ/NEG_RSP/NEG_FAILURE exchange that
// decides which of RDP standard security, TLS, CredSSP/NLA, RDSTLS, or
// Azure AD auth (AAD) protects the rest of the session. Structured the
// way the connection-initiation PDUs in protocol/pdu are, generalized
// to the fuller protocol bitmask and fallback-on-failure ordering.
package security

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dvorak-labs/rdpwire/internal/wire"
)

// Protocol is the bitmask of security protocols a party supports or
// selects, carried in NEG_REQ/NEG_RSP as requestedProtocols/selectedProtocol.
type Protocol uint32

const (
	ProtocolRDP    Protocol = 0x00000000
	ProtocolTLS    Protocol = 0x00000001
	ProtocolNLA    Protocol = 0x00000002
	ProtocolNLAExt Protocol = 0x00000008
	ProtocolRDSTLS Protocol = 0x00000010
	ProtocolAAD    Protocol = 0x00010000
)

func (p Protocol) String() string {
	var names []string
	if p == ProtocolRDP {
		return "RDP"
	}
	if p&ProtocolTLS != 0 {
		names = append(names, "TLS")
	}
	if p&ProtocolNLA != 0 {
		names = append(names, "NLA")
	}
	if p&ProtocolNLAExt != 0 {
		names = append(names, "NLA-EXT")
	}
	if p&ProtocolRDSTLS != 0 {
		names = append(names, "RDSTLS")
	}
	if p&ProtocolAAD != 0 {
		names = append(names, "AAD")
	}
	return strings.Join(names, "|")
}

// PDU types (MS-RDPBCGR 2.2.1.1/2.2.1.2).
type pduType uint8

const (
	typeRequest  pduType = 0x01
	typeResponse pduType = 0x02
	typeFailure  pduType = 0x03
)

// Request flags.
type RequestFlag uint8

const (
	FlagRestrictedAdminModeRequired             RequestFlag = 0x01
	FlagRedirectedAuthenticationModeRequired    RequestFlag = 0x02
	FlagCorrelationInfoPresent                  RequestFlag = 0x08
)

// Response flags.
type ResponseFlag uint8

const (
	FlagExtendedClientDataSupported ResponseFlag = 0x01
	FlagGFXProtocolSupported        ResponseFlag = 0x02
	FlagAdminModeSupported          ResponseFlag = 0x08
	FlagAuthModeSupported           ResponseFlag = 0x10
)

// FailureCode enumerates NEG_FAILURE reasons.
type FailureCode uint32

const (
	FailureSSLRequired             FailureCode = 1
	FailureSSLNotAllowed           FailureCode = 2
	FailureSSLCertNotOnServer      FailureCode = 3
	FailureInconsistentFlags       FailureCode = 4
	FailureHybridRequired          FailureCode = 5
	FailureSSLWithUserAuthRequired FailureCode = 6
)

var failureCodeNames = map[FailureCode]string{
	FailureSSLRequired:             "SSL_REQUIRED_BY_SERVER",
	FailureSSLNotAllowed:           "SSL_NOT_ALLOWED_BY_SERVER",
	FailureSSLCertNotOnServer:      "SSL_CERT_NOT_ON_SERVER",
	FailureInconsistentFlags:       "INCONSISTENT_FLAGS",
	FailureHybridRequired:          "HYBRID_REQUIRED_BY_SERVER",
	FailureSSLWithUserAuthRequired: "SSL_WITH_USER_AUTH_REQUIRED_BY_SERVER",
}

func (c FailureCode) String() string {
	if s, ok := failureCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(c))
}

func (c FailureCode) Error() string {
	return "security: negotiation failed: " + c.String()
}

var (
	ErrInvalidCorrelationID = errors.New("security: invalid correlation id")
	ErrShortPDU             = errors.New("security: PDU too short")
	ErrUnknownPDUType       = errors.New("security: unknown negotiation PDU type")
	ErrCookieTooLong        = errors.New("security: routing token/cookie exceeds 0xFF bytes")
)

// Request is the client's NEG_REQ wrapped in the X.224 connection
// request, including the optional routing token/cookie line and
// correlation info.
type Request struct {
	RoutingToken    string
	Cookie          string
	Flags           RequestFlag
	Protocols       Protocol
	CorrelationID   []byte // 16 bytes when present
}

// SetCorrelationID validates and attaches a correlation id per
// MS-RDPBCGR 2.2.1.1.2: must be 16 bytes, must not start with 0x00 or
// 0xF4, and must not contain the byte 0x0D anywhere (it would be
// misread as a line terminator by some proxies).
func (r *Request) SetCorrelationID(id []byte) error {
	if len(id) != 16 {
		return ErrInvalidCorrelationID
	}
	if id[0] == 0x00 || id[0] == 0xF4 {
		return ErrInvalidCorrelationID
	}
	for _, b := range id {
		if b == 0x0D {
			return ErrInvalidCorrelationID
		}
	}
	r.CorrelationID = id
	r.Flags |= FlagCorrelationInfoPresent
	return nil
}

// Serialize encodes the request as it appears inside an X.224 CR TPDU
// user payload: an optional "Cookie: mstshash=...\r\n" or routing token
// line, followed by the 8-byte NEG_REQ and, if present, the 36-byte
// correlation info block.
func (r *Request) Serialize() ([]byte, error) {
	const crlf = "\r\n"

	buf := new(bytes.Buffer)

	switch {
	case r.RoutingToken != "":
		token := strings.Trim(r.RoutingToken, crlf)
		if len(token) > 0xFF {
			return nil, ErrCookieTooLong
		}
		buf.WriteString(token + crlf)
	case r.Cookie != "":
		cookie := strings.Trim(r.Cookie, crlf)
		if len(cookie) > 0xFF {
			return nil, ErrCookieTooLong
		}
		buf.WriteString("Cookie: mstshash=" + cookie + crlf)
	}

	w := wire.NewWriter()
	w.WriteU8(uint8(typeRequest))
	w.WriteU8(uint8(r.Flags))
	w.WriteU16(8) // length always 8
	w.WriteU32(uint32(r.Protocols))
	buf.Write(w.Bytes())

	if r.Flags&FlagCorrelationInfoPresent != 0 {
		cw := wire.NewWriter()
		cw.WriteU8(0x06) // TYPE_RDP_CORRELATION_INFO
		cw.WriteU8(0x00)
		cw.WriteU16(36)
		if r.CorrelationID == nil {
			cw.WriteBytes(make([]byte, 16))
		} else {
			cw.WriteBytes(r.CorrelationID)
		}
		cw.WriteBytes(make([]byte, 16)) // reserved
		buf.Write(cw.Bytes())
	}

	return buf.Bytes(), nil
}

// Response is the server's reply: either NEG_RSP (success, carrying the
// selected protocol) or NEG_FAILURE (carrying a FailureCode).
type Response struct {
	IsFailure bool
	Flags     ResponseFlag
	Selected  Protocol
	Failure   FailureCode
}

// ParseResponse decodes an 8-byte NEG_RSP/NEG_FAILURE PDU.
func ParseResponse(data []byte) (*Response, error) {
	r := wire.NewReader(data)

	t, err := r.U8()
	if err != nil {
		return nil, ErrShortPDU
	}
	flags, err := r.U8()
	if err != nil {
		return nil, ErrShortPDU
	}
	if _, err := r.U16(); err != nil { // length, unused
		return nil, ErrShortPDU
	}
	payload, err := r.U32()
	if err != nil {
		return nil, ErrShortPDU
	}

	switch pduType(t) {
	case typeResponse:
		return &Response{Flags: ResponseFlag(flags), Selected: Protocol(payload)}, nil
	case typeFailure:
		return &Response{IsFailure: true, Failure: FailureCode(payload)}, nil
	default:
		return nil, ErrUnknownPDUType
	}
}
