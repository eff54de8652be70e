package wallet

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "0x0101010101010101010101010101010101010101010101010101010101010101"

func TestNewAccountFromHex(t *testing.T) {
	account, err := NewAccountFromHex(testSeed)
	require.NoError(t, err)

	again, err := NewAccountFromHex("ed25519-priv-" + testSeed)
	require.NoError(t, err)
	assert.Equal(t, account.Address(), again.Address())

	assert.True(t, strings.HasPrefix(account.Address(), "0x"))
	assert.Len(t, account.Address(), 66)
	assert.Equal(t, testSeed, account.PrivateKeyHex())

	msg := []byte("voce")
	assert.True(t, ed25519.Verify(account.PublicKey(), msg, account.Sign(msg)))

	_, err = NewAccountFromHex("0x1234")
	assert.ErrorContains(t, err, "expected 32 bytes")
	_, err = NewAccountFromHex("zz")
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("0x1")
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"1", addr)

	addr, err = NormalizeAddress("ABC")
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 61)+"abc", addr)

	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0xnothex"))
	assert.False(t, IsValidAddress("0x"+strings.Repeat("a", 65)))
}

func TestContext(t *testing.T) {
	ctx := NewContext()
	_, err := ctx.Signer()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, ctx.IsConnected())

	account, err := GenerateAccount()
	require.NoError(t, err)
	ctx.Connect(account)

	signer, err := ctx.Signer()
	require.NoError(t, err)
	assert.Equal(t, account.Address(), signer.Address())

	addr, ok := ctx.Address()
	assert.True(t, ok)
	assert.Equal(t, account.Address(), addr)

	ctx.Disconnect()
	assert.False(t, ctx.IsConnected())
}
