package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FunctionID renders a fully qualified Move function id.
func FunctionID(address, module, function string) string {
	return fmt.Sprintf("%s::%s::%s", address, module, function)
}

// U64Arg encodes a u64 (or u128) argument.
func U64Arg(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// BytesArg encodes a vector<u8> argument.
func BytesArg(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeU64 accepts both the string form the node uses for u64 and plain JSON numbers.
func DecodeU64(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, errors.WithMessage(err, "error parsing u64")
		}
		return v, nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errors.WithMessagef(err, "error decoding u64 from %s", string(raw))
	}
	return n, nil
}

func DecodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, errors.WithMessage(err, "error decoding bool")
	}
	return b, nil
}

func DecodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.WithMessage(err, "error decoding string")
	}
	return s, nil
}

// NormalizeAddress returns the long form of an address: 0x followed by 64 lowercase hex digits.
func NormalizeAddress(address string) (string, error) {
	digits := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	if digits == "" || len(digits) > 64 {
		return "", errors.Errorf("invalid address %q", address)
	}
	padded := strings.Repeat("0", 64-len(digits)) + digits
	if _, err := hex.DecodeString(padded); err != nil {
		return "", errors.Errorf("invalid address %q", address)
	}
	return "0x" + padded, nil
}

// DecodeAddress decodes an address return value into its long form.
func DecodeAddress(raw json.RawMessage) (string, error) {
	s, err := DecodeString(raw)
	if err != nil {
		return "", err
	}
	address, err := NormalizeAddress(s)
	if err != nil {
		return "", errors.WithMessage(err, "error decoding address")
	}
	return address, nil
}

// DecodeAddressVector decodes a vector<address>.
func DecodeAddressVector(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.WithMessage(err, "error decoding vector<address>")
	}
	out := make([]string, len(items))
	for i, item := range items {
		address, err := DecodeAddress(item)
		if err != nil {
			return nil, err
		}
		out[i] = address
	}
	return out, nil
}

// DecodeBytes decodes a vector<u8> rendered as 0x prefixed hex.
func DecodeBytes(raw json.RawMessage) ([]byte, error) {
	s, err := DecodeString(raw)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.WithMessage(err, "error decoding hex bytes")
	}
	return b, nil
}

// DecodeU64Vector decodes a vector<u64>.
func DecodeU64Vector(raw json.RawMessage) ([]uint64, error) {
	var items []U64
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.WithMessage(err, "error decoding vector<u64>")
	}
	out := make([]uint64, len(items))
	for i, v := range items {
		out[i] = uint64(v)
	}
	return out, nil
}

// DecodeInto unmarshals a returned Move struct into v.
func DecodeInto(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.WithMessagef(err, "error decoding %T", v)
	}
	return nil
}

// First returns the single return value of a view call.
func First(values []json.RawMessage) (json.RawMessage, error) {
	if len(values) == 0 {
		return nil, errors.New("view function returned no values")
	}
	return values[0], nil
}
