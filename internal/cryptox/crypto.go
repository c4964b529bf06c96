// Package cryptox hashes hardware identifiers before they are written to
// repository documents, so device fingerprints never appear in plaintext.
package cryptox

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// HashPrefix marks values produced by HWIDHasher.
const HashPrefix = "b3:"

// hwidSalt domain-separates the pepper-derived key from any other use of the
// same secret.
var hwidSalt = []byte("codekeeper/hwid/v1")

// HWIDHasher produces keyed, deterministic hashes of hardware ids. The same
// pepper always yields the same hash for the same id, so stored values can be
// compared without revealing the id.
type HWIDHasher struct {
	key []byte
}

// DeriveKey stretches the configured pepper into a 32-byte hashing key.
func DeriveKey(pepper []byte) []byte {
	return argon2.IDKey(pepper, hwidSalt, 1, 64*1024, 4, 32)
}

func NewHWIDHasher(pepper string) *HWIDHasher {
	return &HWIDHasher{key: DeriveKey([]byte(pepper))}
}

// Hash returns HashPrefix followed by the hex keyed BLAKE3 digest of the
// trimmed id. Empty ids hash to the empty string; already hashed values are
// returned unchanged.
func (h *HWIDHasher) Hash(hwid string) string {
	hwid = strings.TrimSpace(hwid)
	if hwid == "" || IsHashed(hwid) {
		return hwid
	}

	hasher, err := blake3.NewKeyed(h.key)
	if err != nil {
		// key length is fixed by DeriveKey
		panic(err)
	}
	_, _ = hasher.Write([]byte(hwid))

	return HashPrefix + hex.EncodeToString(hasher.Sum(nil))
}

// IsHashed reports whether s looks like a value produced by Hash.
func IsHashed(s string) bool {
	if !strings.HasPrefix(s, HashPrefix) {
		return false
	}
	digest := strings.TrimPrefix(s, HashPrefix)
	if len(digest) != 64 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}
