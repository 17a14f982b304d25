// Package rdperr defines the abstract error kinds shared across the
// wire codecs and the connection bootstrap, and the propagation
// helpers that wrap an underlying cause with one of them so callers
// can type-switch on errors.As rather than string-matching messages.
package rdperr

import "fmt"

// Kind identifies one of the abstract error categories a connect
// attempt or a frame decode can fail with.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadMagic
	KindBadVersion
	KindBadBlockType
	KindShortRead
	KindShortWrite
	KindLengthMismatch
	KindInvalidQuant
	KindOutOfRangeTile
	KindCertMismatch
	KindCertNoEntry
	KindHandshakeFailed
	KindAuthFailed
	KindProxyRejected
	KindNegotiationFailed
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindBadMagic:
		return "BadMagic"
	case KindBadVersion:
		return "BadVersion"
	case KindBadBlockType:
		return "BadBlockType"
	case KindShortRead:
		return "ShortRead"
	case KindShortWrite:
		return "ShortWrite"
	case KindLengthMismatch:
		return "LengthMismatch"
	case KindInvalidQuant:
		return "InvalidQuant"
	case KindOutOfRangeTile:
		return "OutOfRangeTile"
	case KindCertMismatch:
		return "CertMismatch"
	case KindCertNoEntry:
		return "CertNoEntry"
	case KindHandshakeFailed:
		return "HandshakeFailed"
	case KindAuthFailed:
		return "AuthFailed"
	case KindProxyRejected:
		return "ProxyRejected"
	case KindNegotiationFailed:
		return "NegotiationFailed"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with an abstract Kind and, for
// KindNegotiationFailed, the server's last failure code.
type Error struct {
	Kind Kind
	Code uint32 // meaningful only for KindNegotiationFailed
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindNegotiationFailed {
		return fmt.Sprintf("rdperr: %s(code=%d): %v", e.Kind, e.Code, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("rdperr: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("rdperr: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind, or returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// NegotiationFailed wraps err with the server's last negotiation
// failure code.
func NegotiationFailed(code uint32, err error) error {
	return &Error{Kind: KindNegotiationFailed, Code: code, Err: err}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if asError, ok := err.(*Error); ok {
			e = asError
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
