package abicodec

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DecodeArguments decodes an ABI tuple into native Go values:
// common.Address, *big.Int, bool, []byte (bytes and bytesN) or string.
func DecodeArguments(types []Type, data []byte) ([]interface{}, error) {
	if len(data) < WordSize*len(types) {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d head words", ErrMalformedInput, len(data), len(types))
	}

	values := make([]interface{}, len(types))
	for i, t := range types {
		word := data[i*WordSize : (i+1)*WordSize]

		var (
			v   interface{}
			err error
		)
		if t.IsDynamic() {
			v, err = decodeDynamic(t, word, data)
		} else {
			v, err = DecodeWord(t, word)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, t, err)
		}
		values[i] = v
	}
	return values, nil
}

// DecodeWord decodes one static word.
func DecodeWord(t Type, word []byte) (interface{}, error) {
	if len(word) != WordSize {
		return nil, fmt.Errorf("%w: word is %d bytes", ErrMalformedInput, len(word))
	}

	switch t.Kind {
	case KindAddress:
		if !isZero(word[:WordSize-common.AddressLength]) {
			return nil, fmt.Errorf("%w: address word has dirty high bytes", ErrMalformedInput)
		}
		return common.BytesToAddress(word[WordSize-common.AddressLength:]), nil

	case KindUint:
		n := new(big.Int).SetBytes(word)
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s does not fit in %s", ErrOutOfRange, n, t)
		}
		return n, nil

	case KindInt:
		n := new(big.Int).SetBytes(word)
		if word[0]&0x80 != 0 {
			n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 256))
		}
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(new(big.Int).Neg(limit)) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%w: %s does not fit in %s", ErrOutOfRange, n, t)
		}
		return n, nil

	case KindBool:
		if !isZero(word[:WordSize-1]) || word[WordSize-1] > 1 {
			return nil, fmt.Errorf("%w: bool word is not 0 or 1", ErrMalformedInput)
		}
		return word[WordSize-1] == 1, nil

	case KindFixedBytes:
		if !isZero(word[t.Size:]) {
			return nil, fmt.Errorf("%w: %s word has dirty padding", ErrMalformedInput, t)
		}
		out := make([]byte, t.Size)
		copy(out, word[:t.Size])
		return out, nil
	}

	return nil, fmt.Errorf("%w: %s is not a static type", ErrUnsupportedType, t)
}

// decodeDynamic follows the head offset to a length word and its content.
func decodeDynamic(t Type, word, data []byte) (interface{}, error) {
	offset, err := wordToInt(word, len(data))
	if err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}
	if offset+WordSize > len(data) {
		return nil, fmt.Errorf("%w: offset %d beyond payload of %d bytes", ErrMalformedInput, offset, len(data))
	}

	length, err := wordToInt(data[offset:offset+WordSize], len(data))
	if err != nil {
		return nil, fmt.Errorf("length: %w", err)
	}
	start := offset + WordSize
	if start+length > len(data) {
		return nil, fmt.Errorf("%w: length %d at offset %d overruns payload of %d bytes", ErrMalformedInput, length, offset, len(data))
	}

	content := make([]byte, length)
	copy(content, data[start:start+length])
	if t.Kind == KindString {
		return string(content), nil
	}
	return content, nil
}

func wordToInt(word []byte, limit int) (int, error) {
	n := new(big.Int).SetBytes(word)
	if !n.IsInt64() || n.Int64() > int64(limit) {
		return 0, fmt.Errorf("%w: %s exceeds payload size %d", ErrMalformedInput, n, limit)
	}
	return int(n.Int64()), nil
}

func isZero(b []byte) bool {
	return bytes.Count(b, []byte{0}) == len(b)
}

// Stringify renders a decoded value the way decoded calls report it:
// integers as decimal, addresses checksummed, bytes as 0x-prefixed hex and
// strings verbatim. The result re-encodes to the same word(s).
func Stringify(t Type, v interface{}) string {
	if b, ok := v.([]byte); ok && (t.Kind == KindBytes || t.Kind == KindFixedBytes) {
		return Add0x(ToHexString(b))
	}

	switch val := v.(type) {
	case common.Address:
		return val.Hex()
	case *big.Int:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return val
	}
	return fmt.Sprintf("%v", v)
}
