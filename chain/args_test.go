package chain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeU64(t *testing.T) {
	v, err := DecodeU64(json.RawMessage(`"18446744073709551615"`))
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v)

	v, err = DecodeU64(json.RawMessage(`7`))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = DecodeU64(json.RawMessage(`"-1"`))
	assert.ErrorContains(t, err, "error parsing u64")

	_, err = DecodeU64(json.RawMessage(`true`))
	assert.Error(t, err)
}

func TestDecodeStructAndVectors(t *testing.T) {
	var out struct {
		Amount U64   `json:"amount"`
		Totals []U64 `json:"totals"`
	}
	require.NoError(t, DecodeInto(json.RawMessage(`{"amount":"100","totals":["1",2]}`), &out))
	assert.Equal(t, U64(100), out.Amount)
	assert.Equal(t, []U64{1, 2}, out.Totals)

	totals, err := DecodeU64Vector(json.RawMessage(`["5","6"]`))
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6}, totals)

	b, err := DecodeBytes(json.RawMessage(`"0xcafe"`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, b)
	assert.Equal(t, "0xcafe", BytesArg(b))

	encoded, err := json.Marshal(U64(42))
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(encoded))
}

func TestDecodeAddress(t *testing.T) {
	long := "0x" + strings.Repeat("0", 61) + "abc"

	address, err := DecodeAddress(json.RawMessage(`"0xABC"`))
	require.NoError(t, err)
	assert.Equal(t, long, address)

	address, err = DecodeAddress(json.RawMessage(`"` + long + `"`))
	require.NoError(t, err)
	assert.Equal(t, long, address)

	_, err = DecodeAddress(json.RawMessage(`"0xnothex"`))
	assert.ErrorContains(t, err, "error decoding address")

	_, err = DecodeAddress(json.RawMessage(`7`))
	assert.ErrorContains(t, err, "error decoding string")

	addresses, err := DecodeAddressVector(json.RawMessage(`["0x1","0xABC"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x" + strings.Repeat("0", 63) + "1", long}, addresses)

	_, err = DecodeAddressVector(json.RawMessage(`["0x1","0x"]`))
	assert.Error(t, err)
}

func TestFunctionID(t *testing.T) {
	assert.Equal(t, "0xa11ce::financial_system::stake_tokens", FunctionID("0xa11ce", "financial_system", "stake_tokens"))
	_, err := First(nil)
	assert.Error(t, err)
}
