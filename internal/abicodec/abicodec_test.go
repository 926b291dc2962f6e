package abicodec

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pauser = "0xACa94ef8bD5ffEE41947b4585a84BdA5a3d3DA6E"

// ---------------------------------------------------------------------------
// primitives
// ---------------------------------------------------------------------------

func TestEncodeAddress(t *testing.T) {
	tests := []struct {
		name     string
		val      string
		expected string
	}{
		{
			"with 0x prefix",
			"0x1234567890abcdef1234567890abcdef12345678",
			"0000000000000000000000001234567890abcdef1234567890abcdef12345678",
		},
		{
			"without 0x prefix",
			"1234567890abcdef1234567890abcdef12345678",
			"0000000000000000000000001234567890abcdef1234567890abcdef12345678",
		},
		{
			"checksummed input is lowercased",
			pauser,
			"000000000000000000000000aca94ef8bd5ffee41947b4585a84bda5a3d3da6e",
		},
		{
			"zero address",
			"0x0000000000000000000000000000000000000000",
			strings.Repeat("0", 64),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeAddress(tt.val)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, 64)
		})
	}
}

func TestEncodeAddressRejectsWrongLength(t *testing.T) {
	for _, bad := range []string{"0x1", "0x", "", "0x1234567890abcdef1234567890abcdef1234567", "0x1234567890abcdef1234567890abcdef1234567800", "0xzz34567890abcdef1234567890abcdef12345678"} {
		_, err := EncodeAddress(bad)
		assert.ErrorIs(t, err, ErrMalformedInput, "input %q", bad)
	}
}

func TestEncodeUint(t *testing.T) {
	got, err := EncodeUint(big.NewInt(12))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 63)+"c", got)

	got, err = EncodeUint(big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), got)

	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err = EncodeUint(maxUint)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("f", 64), got)
}

func TestEncodeUintOutOfRange(t *testing.T) {
	_, err := EncodeUint(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = EncodeUint(new(big.Int).Lsh(big.NewInt(1), 256))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = EncodeUintN(big.NewInt(256), 8)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestEncodeIntTwosComplement(t *testing.T) {
	got, err := EncodeInt(big.NewInt(-1), 256)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("f", 64), got)

	got, err = EncodeInt(big.NewInt(-128), 8)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("f", 62)+"80", got)

	_, err = EncodeInt(big.NewInt(128), 8)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestToHexString(t *testing.T) {
	assert.Equal(t, "", ToHexString(nil))
	assert.Equal(t, "00ab0f", ToHexString([]byte{0x00, 0xab, 0x0f}))
	assert.Equal(t, "ff", ToHexString([]byte{0xff}))
}

func TestPrefixHelpers(t *testing.T) {
	assert.Equal(t, "0xabc", Add0x("abc"))
	assert.Equal(t, "0xabc", Add0x("0Xabc"))
	assert.Equal(t, "abc", Strip0x("0xabc"))
	assert.Equal(t, "abc", Strip0x("abc"))
	assert.False(t, Has0xPrefix("x0"))
}

// ---------------------------------------------------------------------------
// types and hashing
// ---------------------------------------------------------------------------

func TestParseType(t *testing.T) {
	tests := []struct {
		tag       string
		canonical string
		dynamic   bool
	}{
		{"address", "address", false},
		{"uint", "uint256", false},
		{"uint8", "uint8", false},
		{"int", "int256", false},
		{"int64", "int64", false},
		{"bool", "bool", false},
		{"byte", "bytes1", false},
		{"bytes32", "bytes32", false},
		{"bytes", "bytes", true},
		{"string", "string", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			typ, err := ParseType(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, typ.String())
			assert.Equal(t, tt.dynamic, typ.IsDynamic())
		})
	}
}

func TestParseTypeRejectsUnsupported(t *testing.T) {
	for _, tag := range []string{"uint7", "uint264", "bytes33", "bytes0", "address[]", "(uint256,bool)", "fixed128x18", ""} {
		_, err := ParseType(tag)
		assert.ErrorIs(t, err, ErrUnsupportedType, "tag %q", tag)
	}
}

func TestSelectorKnownValues(t *testing.T) {
	tests := []struct {
		sig      string
		expected string
	}{
		{"transfer(address,uint256)", "a9059cbb"},
		{"balanceOf(address)", "70a08231"},
		{"initV2(bool,address,uint256)", "d76c43c6"},
		{"name()", "06fdde03"},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			name, types, err := ParseSignature(tt.sig)
			require.NoError(t, err)
			sel := Selector(name, types)
			assert.Equal(t, tt.expected, ToHexString(sel[:]))
		})
	}
}

func TestSelectorDeterministic(t *testing.T) {
	types := MustParseTypes("bool", "address", "uint256")
	first := Selector("initV2", types)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Selector("initV2", types))
	}
}

func TestParseSignatureDropsNames(t *testing.T) {
	name, types, err := ParseSignature("transfer(address to, uint amount)")
	require.NoError(t, err)
	assert.Equal(t, "transfer", name)
	assert.Equal(t, "transfer(address,uint256)", Signature(name, types))
}

func TestParseSignatureInvalid(t *testing.T) {
	for _, sig := range []string{"transfer", "(address)", "transfer(address", "f(,)"} {
		_, _, err := ParseSignature(sig)
		assert.ErrorIs(t, err, ErrMalformedInput, "sig %q", sig)
	}
}

func TestEventTopic(t *testing.T) {
	topic := EventTopic("Transfer", MustParseTypes("address", "address", "uint256"))
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", topic.Hex())
}

// ---------------------------------------------------------------------------
// tuples
// ---------------------------------------------------------------------------

func TestEncodeArgumentsInitV2(t *testing.T) {
	types := MustParseTypes("bool", "address", "uint256")
	got, err := EncodeArguments(types, []string{"true", pauser, "12"})
	require.NoError(t, err)

	expected := strings.Repeat("0", 63) + "1" +
		"000000000000000000000000aca94ef8bd5ffee41947b4585a84bda5a3d3da6e" +
		strings.Repeat("0", 63) + "c"
	assert.Equal(t, expected, ToHexString(got))
}

func TestEncodeArgumentsDynamicLayout(t *testing.T) {
	types := MustParseTypes("uint256", "string", "bytes")
	got, err := EncodeArguments(types, []string{"1", "USDC", "0xdeadbeef"})
	require.NoError(t, err)

	// 3 head words + (len + 1 padded word) per dynamic value.
	require.Len(t, got, 7*WordSize)
	assert.Equal(t, byte(0x60), got[2*WordSize-1], "string offset points past the head")
	assert.Equal(t, byte(0xa0), got[3*WordSize-1], "bytes offset follows the string tail")
	assert.Equal(t, byte(4), got[4*WordSize-1], "string length")
	assert.Equal(t, []byte("USDC"), got[4*WordSize:4*WordSize+4])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got[6*WordSize:6*WordSize+4])
}

func TestEncodeArgumentsMatchesGoEthereum(t *testing.T) {
	tags := []string{"address", "uint256", "bool", "string", "bytes", "bytes32", "int256", "uint8"}
	var args abi.Arguments
	for _, tag := range tags {
		typ, err := abi.NewType(tag, "", nil)
		require.NoError(t, err)
		args = append(args, abi.Argument{Type: typ})
	}

	var b32 [32]byte
	copy(b32[:], []byte("USD Coin"))
	want, err := args.Pack(
		common.HexToAddress(pauser),
		big.NewInt(1_000_000),
		true,
		"Hello, stablecoin",
		[]byte{1, 2, 3},
		b32,
		big.NewInt(-42),
		uint8(6),
	)
	require.NoError(t, err)

	got, err := EncodeArguments(MustParseTypes(tags...), []string{
		pauser,
		"1000000",
		"true",
		"Hello, stablecoin",
		"0x010203",
		"0x" + ToHexString([]byte("USD Coin")),
		"-42",
		"6",
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeArgumentsErrors(t *testing.T) {
	_, err := EncodeArguments(MustParseTypes("uint256"), []string{"1", "2"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = EncodeArguments(MustParseTypes("uint256"), []string{"abc"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = EncodeArguments(MustParseTypes("bool"), []string{"yes"})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = EncodeArguments(MustParseTypes("bytes2"), []string{"0x010203"})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = EncodeArguments(MustParseTypes("uint8"), []string{"-1"})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecodeArgumentsRoundTrip(t *testing.T) {
	tests := []struct {
		tag string
		val string
	}{
		{"bool", "true"},
		{"bool", "false"},
		{"address", pauser},
		{"uint256", "12"},
		{"uint256", "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{"uint8", "6"},
		{"int256", "-42"},
		{"int8", "-128"},
		{"bytes", "0x"},
		{"bytes", "0xdeadbeef"},
		{"bytes32", "0x" + strings.Repeat("ab", 32)},
		{"bytes4", "0x01020304"},
		{"string", ""},
		{"string", "a string longer than one thirty-two byte word, to force padding"},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.val, func(t *testing.T) {
			types := MustParseTypes(tt.tag)
			enc, err := EncodeArguments(types, []string{tt.val})
			require.NoError(t, err)

			values, err := DecodeArguments(types, enc)
			require.NoError(t, err)
			require.Len(t, values, 1)

			str := Stringify(types[0], values[0])
			assert.Equal(t, tt.val, str)

			again, err := EncodeArguments(types, []string{str})
			require.NoError(t, err)
			assert.Equal(t, enc, again, "re-encoding must be byte-identical")
		})
	}
}

func TestDecodeArgumentsTruncated(t *testing.T) {
	_, err := DecodeArguments(MustParseTypes("uint256", "uint256"), make([]byte, 40))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestDecodeArgumentsBadOffset(t *testing.T) {
	data := make([]byte, WordSize)
	data[WordSize-1] = 0xff // offset far past the payload
	_, err := DecodeArguments(MustParseTypes("string"), data)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestDecodeArgumentsOverlongLength(t *testing.T) {
	data := make([]byte, 3*WordSize)
	data[WordSize-1] = 0x20   // offset -> second word
	data[2*WordSize-1] = 0x40 // length 64, only 32 bytes follow
	_, err := DecodeArguments(MustParseTypes("bytes"), data)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestDecodeWordRejectsDirtyValues(t *testing.T) {
	word := make([]byte, WordSize)
	word[0] = 1
	_, err := DecodeWord(Address, word)
	assert.ErrorIs(t, err, ErrMalformedInput)

	word = make([]byte, WordSize)
	word[WordSize-1] = 2
	_, err = DecodeWord(Bool, word)
	assert.ErrorIs(t, err, ErrMalformedInput)

	word = make([]byte, WordSize)
	word[WordSize-2] = 1 // 256 does not fit in uint8
	_, err = DecodeWord(Type{Kind: KindUint, Size: 8}, word)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
