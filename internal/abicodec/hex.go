package abicodec

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WordSize is the width of one ABI word in bytes.
const WordSize = 32

// Errors.
var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrOutOfRange      = errors.New("value out of range")
	ErrUnsupportedType = errors.New("unsupported type")
)

// Has0xPrefix reports whether s starts with 0x or 0X.
func Has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Strip0x removes a leading 0x/0X if present.
func Strip0x(s string) string {
	if Has0xPrefix(s) {
		return s[2:]
	}
	return s
}

// Add0x prefixes s with 0x unless it already carries one. Every encoder and
// decoder output goes through here so the prefix is applied exactly once.
func Add0x(s string) string {
	if Has0xPrefix(s) {
		return "0x" + s[2:]
	}
	return "0x" + s
}

// ToHexString renders each byte as two lowercase hex digits, no prefix.
func ToHexString(b []byte) string {
	return common.Bytes2Hex(b)
}

// EncodeAddress left-pads a 20-byte address into a 32-byte word.
func EncodeAddress(addr string) (string, error) {
	word, err := addressWord(addr)
	if err != nil {
		return "", err
	}
	return ToHexString(word), nil
}

// EncodeUint encodes a non-negative integer of at most 256 bits as a word.
func EncodeUint(v *big.Int) (string, error) {
	return EncodeUintN(v, 256)
}

// EncodeUintN is EncodeUint with a uintN range check.
func EncodeUintN(v *big.Int, bits int) (string, error) {
	word, err := uintWord(v, bits)
	if err != nil {
		return "", err
	}
	return ToHexString(word), nil
}

// EncodeInt encodes a signed intN value in two's complement.
func EncodeInt(v *big.Int, bits int) (string, error) {
	word, err := intWord(v, bits)
	if err != nil {
		return "", err
	}
	return ToHexString(word), nil
}

// EncodeBool encodes true as 1 and false as 0.
func EncodeBool(b bool) string {
	return ToHexString(boolWord(b))
}

// EncodeFixedBytes right-pads a bytesN value to a full word.
func EncodeFixedBytes(b []byte, size int) (string, error) {
	word, err := fixedBytesWord(b, size)
	if err != nil {
		return "", err
	}
	return ToHexString(word), nil
}

func addressWord(addr string) ([]byte, error) {
	clean := Strip0x(strings.TrimSpace(addr))
	if len(clean) != 2*common.AddressLength || !common.IsHexAddress(clean) {
		return nil, fmt.Errorf("%w: address %q must be 20 bytes of hex", ErrMalformedInput, addr)
	}
	return common.LeftPadBytes(common.FromHex(clean), WordSize), nil
}

func uintWord(v *big.Int, bits int) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil integer", ErrMalformedInput)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: uint%d cannot hold negative value %s", ErrOutOfRange, bits, v)
	}
	if v.BitLen() > bits {
		return nil, fmt.Errorf("%w: %s does not fit in uint%d", ErrOutOfRange, v, bits)
	}
	return common.LeftPadBytes(v.Bytes(), WordSize), nil
}

func intWord(v *big.Int, bits int) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil integer", ErrMalformedInput)
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minVal := new(big.Int).Neg(limit)
	if v.Cmp(minVal) < 0 || v.Cmp(limit) >= 0 {
		return nil, fmt.Errorf("%w: %s does not fit in int%d", ErrOutOfRange, v, bits)
	}
	if v.Sign() >= 0 {
		return common.LeftPadBytes(v.Bytes(), WordSize), nil
	}
	// two's complement over 256 bits
	twos := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 256), v)
	return common.LeftPadBytes(twos.Bytes(), WordSize), nil
}

func boolWord(b bool) []byte {
	word := make([]byte, WordSize)
	if b {
		word[WordSize-1] = 1
	}
	return word
}

func fixedBytesWord(b []byte, size int) ([]byte, error) {
	if len(b) > size {
		return nil, fmt.Errorf("%w: %d bytes do not fit in bytes%d", ErrOutOfRange, len(b), size)
	}
	return common.RightPadBytes(b, WordSize), nil
}

// paddedLen rounds n up to a multiple of WordSize.
func paddedLen(n int) int {
	return (n + WordSize - 1) / WordSize * WordSize
}
