package voting

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SaltSize is the number of random bytes mixed into every commitment.
const SaltSize = 32

// GenerateSalt returns SaltSize random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("error generating salt: %w", err)
	}
	return salt, nil
}

// GenerateCommitmentHash computes sha3_256(bcs(choice) ++ salt), which is what the
// secure_voting module recomputes in reveal_vote. A u8 serializes to a single byte.
func GenerateCommitmentHash(choice uint8, salt []byte) []byte {
	h := sha3.New256()
	h.Write([]byte{choice})
	h.Write(salt)
	return h.Sum(nil)
}

// VerifyCommitment reports whether choice and salt open hash.
func VerifyCommitment(hash []byte, choice uint8, salt []byte) bool {
	return subtle.ConstantTimeCompare(hash, GenerateCommitmentHash(choice, salt)) == 1
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
