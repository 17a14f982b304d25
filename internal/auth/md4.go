package auth

import (
	"golang.org/x/crypto/md4"
)

// md4 returns the MD4 digest of data, used by ntowfv2/lmowfv2 to derive
// the NT and LM password hashes NTLMv2 signs over.
func md4(data []byte) []byte {
	h := md4.New()
	h.Write(data)
	return h.Sum(nil)
}
