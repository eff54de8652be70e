package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/safwentrabelsi/voce/chain"
	"golang.org/x/crypto/sha3"
)

// ed25519Scheme is the authentication key scheme byte of single key ed25519 accounts.
const ed25519Scheme = 0x00

const privateKeyPrefix = "ed25519-priv-"

// Account is an ed25519 keypair and the address derived from it.
type Account struct {
	privateKey ed25519.PrivateKey
	address    string
}

// NewAccountFromHex loads a 32 byte ed25519 seed, with or without the 0x and ed25519-priv- prefixes.
func NewAccountFromHex(key string) (*Account, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), privateKeyPrefix)
	seed, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return newAccount(ed25519.NewKeyFromSeed(seed)), nil
}

// GenerateAccount creates a fresh random account.
func GenerateAccount() (*Account, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newAccount(priv), nil
}

func newAccount(priv ed25519.PrivateKey) *Account {
	pub := priv.Public().(ed25519.PublicKey)
	authKey := sha3.Sum256(append(append([]byte{}, pub...), ed25519Scheme))
	return &Account{
		privateKey: priv,
		address:    "0x" + hex.EncodeToString(authKey[:]),
	}
}

func (a *Account) Address() string {
	return a.address
}

func (a *Account) PublicKey() ed25519.PublicKey {
	return a.privateKey.Public().(ed25519.PublicKey)
}

func (a *Account) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(a.PublicKey())
}

func (a *Account) Sign(message []byte) []byte {
	return ed25519.Sign(a.privateKey, message)
}

// PrivateKeyHex exports the seed in the same form NewAccountFromHex reads.
func (a *Account) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(a.privateKey.Seed())
}

// NormalizeAddress returns the long form of an address: 0x followed by 64 lowercase hex digits.
func NormalizeAddress(address string) (string, error) {
	return chain.NormalizeAddress(address)
}

func IsValidAddress(address string) bool {
	_, err := NormalizeAddress(address)
	return err == nil
}

