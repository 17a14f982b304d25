package rdperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WrapsCause(t *testing.T) {
	cause := errors.New("short frame")
	err := New(KindShortRead, cause)
	assert.True(t, Is(err, KindShortRead))
	assert.ErrorIs(t, err, cause)
}

func TestNew_NilErrPassesThrough(t *testing.T) {
	assert.Nil(t, New(KindTimeout, nil))
}

func TestNegotiationFailed_CarriesCode(t *testing.T) {
	err := NegotiationFailed(2, errors.New("ssl not allowed"))
	assert.True(t, Is(err, KindNegotiationFailed))

	var e *Error
	assert.ErrorAs(t, err, &e)
	assert.Equal(t, uint32(2), e.Code)
}

func TestIs_FalseForDifferentKind(t *testing.T) {
	err := New(KindCertMismatch, errors.New("fingerprint differs"))
	assert.False(t, Is(err, KindAuthFailed))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "BadMagic", KindBadMagic.String())
	assert.Equal(t, "Unknown", Kind(999).String())
}
