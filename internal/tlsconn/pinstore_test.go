package tlsconn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestPinStore_TrustOnFirstUse(t *testing.T) {
	store := NewPinStore()
	cert := selfSignedCert(t)

	require.NoError(t, store.Verify("host1", cert))
	fp, ok := store.Lookup("host1")
	require.True(t, ok)
	assert.Equal(t, Fingerprint(cert), fp)

	// Second verify with the same cert succeeds
	require.NoError(t, store.Verify("host1", cert))
}

func TestPinStore_Mismatch(t *testing.T) {
	store := NewPinStore()
	certA := selfSignedCert(t)
	certB := selfSignedCert(t)

	require.NoError(t, store.Verify("host1", certA))
	err := store.Verify("host1", certB)
	assert.ErrorIs(t, err, ErrCertificateMismatch)
}

func TestPinStore_ForgetAllowsRepin(t *testing.T) {
	store := NewPinStore()
	certA := selfSignedCert(t)
	certB := selfSignedCert(t)

	require.NoError(t, store.Verify("host1", certA))
	store.Forget("host1")
	require.NoError(t, store.Verify("host1", certB))
}
