package abicodec

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of ABI type families the codec understands.
type Kind int

// Supported kinds.
const (
	KindAddress Kind = iota
	KindUint
	KindInt
	KindBool
	KindFixedBytes
	KindBytes
	KindString
)

// Type is a parsed ABI type tag such as "uint256" or "bytes32".
type Type struct {
	Kind Kind
	// Size is the bit width for uintN/intN and the byte width for bytesN.
	Size int
}

// Common types.
var (
	Address = Type{Kind: KindAddress}
	Uint256 = Type{Kind: KindUint, Size: 256}
	Bool    = Type{Kind: KindBool}
	Bytes   = Type{Kind: KindBytes}
	String  = Type{Kind: KindString}
)

// ParseType parses a Solidity type tag. Aliases are normalised: "uint" is
// uint256, "int" is int256 and "byte" is bytes1. Arrays and tuples are not
// supported.
func ParseType(tag string) (Type, error) {
	tag = strings.TrimSpace(tag)
	switch tag {
	case "address":
		return Address, nil
	case "bool":
		return Bool, nil
	case "string":
		return String, nil
	case "bytes":
		return Bytes, nil
	case "uint":
		return Uint256, nil
	case "int":
		return Type{Kind: KindInt, Size: 256}, nil
	case "byte":
		return Type{Kind: KindFixedBytes, Size: 1}, nil
	}

	if strings.ContainsAny(tag, "[]()") {
		return Type{}, fmt.Errorf("%w: %q (arrays and tuples are not supported)", ErrUnsupportedType, tag)
	}

	switch {
	case strings.HasPrefix(tag, "uint"):
		n, err := sizeSuffix(tag, "uint")
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return Type{}, fmt.Errorf("%w: %q", ErrUnsupportedType, tag)
		}
		return Type{Kind: KindUint, Size: n}, nil
	case strings.HasPrefix(tag, "int"):
		n, err := sizeSuffix(tag, "int")
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return Type{}, fmt.Errorf("%w: %q", ErrUnsupportedType, tag)
		}
		return Type{Kind: KindInt, Size: n}, nil
	case strings.HasPrefix(tag, "bytes"):
		n, err := sizeSuffix(tag, "bytes")
		if err != nil || n < 1 || n > 32 {
			return Type{}, fmt.Errorf("%w: %q", ErrUnsupportedType, tag)
		}
		return Type{Kind: KindFixedBytes, Size: n}, nil
	}
	return Type{}, fmt.Errorf("%w: %q", ErrUnsupportedType, tag)
}

// ParseTypes parses an ordered list of type tags.
func ParseTypes(tags []string) ([]Type, error) {
	types := make([]Type, len(tags))
	for i, tag := range tags {
		t, err := ParseType(tag)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

// MustParseTypes is ParseTypes for package-level tables; it panics on error.
func MustParseTypes(tags ...string) []Type {
	types, err := ParseTypes(tags)
	if err != nil {
		panic(err)
	}
	return types
}

func sizeSuffix(tag, prefix string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(tag, prefix))
}

// String returns the canonical tag used in signatures.
func (t Type) String() string {
	switch t.Kind {
	case KindAddress:
		return "address"
	case KindUint:
		return "uint" + strconv.Itoa(t.Size)
	case KindInt:
		return "int" + strconv.Itoa(t.Size)
	case KindBool:
		return "bool"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(t.Size)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	}
	return "unknown"
}

// IsDynamic reports whether the type is encoded in the tail of a tuple.
func (t Type) IsDynamic() bool {
	return t.Kind == KindBytes || t.Kind == KindString
}

// TypeNames renders types as canonical tags.
func TypeNames(types []Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
