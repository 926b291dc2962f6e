package abicodec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EncodeArguments ABI-encodes string literals as a tuple of the given types.
// Static values occupy one head word each; bytes and string values put an
// offset in the head and length + padded content in the tail.
func EncodeArguments(types []Type, args []string) ([]byte, error) {
	if len(types) != len(args) {
		return nil, fmt.Errorf("%w: %d types but %d values", ErrMalformedInput, len(types), len(args))
	}

	headSize := WordSize * len(types)
	head := make([]byte, 0, headSize)
	var tail []byte

	for i, t := range types {
		if t.IsDynamic() {
			enc, err := encodeDynamic(t, args[i])
			if err != nil {
				return nil, fmt.Errorf("argument %d (%s): %w", i, t, err)
			}
			offset, _ := uintWord(big.NewInt(int64(headSize+len(tail))), 256)
			head = append(head, offset...)
			tail = append(tail, enc...)
			continue
		}

		word, err := EncodeValue(t, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, t, err)
		}
		head = append(head, word...)
	}

	return append(head, tail...), nil
}

// EncodeValue encodes a single static value into its 32-byte word.
func EncodeValue(t Type, val string) ([]byte, error) {
	val = strings.TrimSpace(val)

	switch t.Kind {
	case KindAddress:
		return addressWord(val)

	case KindUint:
		n, err := parseInteger(val)
		if err != nil {
			return nil, err
		}
		return uintWord(n, t.Size)

	case KindInt:
		n, err := parseInteger(val)
		if err != nil {
			return nil, err
		}
		return intWord(n, t.Size)

	case KindBool:
		switch strings.ToLower(val) {
		case "true", "1":
			return boolWord(true), nil
		case "false", "0":
			return boolWord(false), nil
		}
		return nil, fmt.Errorf("%w: %q is not a bool", ErrMalformedInput, val)

	case KindFixedBytes:
		b, err := parseHexBytes(val)
		if err != nil {
			return nil, err
		}
		return fixedBytesWord(b, t.Size)
	}

	return nil, fmt.Errorf("%w: %s is not a static type", ErrUnsupportedType, t)
}

func encodeDynamic(t Type, val string) ([]byte, error) {
	var content []byte
	switch t.Kind {
	case KindString:
		content = []byte(val)
	case KindBytes:
		b, err := parseHexBytes(val)
		if err != nil {
			return nil, err
		}
		content = b
	default:
		return nil, fmt.Errorf("%w: %s is not a dynamic type", ErrUnsupportedType, t)
	}

	length, _ := uintWord(big.NewInt(int64(len(content))), 256)
	out := make([]byte, 0, WordSize+paddedLen(len(content)))
	out = append(out, length...)
	out = append(out, content...)
	return append(out, make([]byte, paddedLen(len(content))-len(content))...), nil
}

// parseInteger accepts decimal or 0x-prefixed hex, optionally negative.
func parseInteger(val string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(val, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrMalformedInput, val)
	}
	return n, nil
}

func parseHexBytes(val string) ([]byte, error) {
	b, err := hexutil.Decode(Add0x(val))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not hex bytes: %v", ErrMalformedInput, val, err)
	}
	return b, nil
}
