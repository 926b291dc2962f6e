package calldata

import (
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
)

// Encoder builds call data for functions of one contract interface.
type Encoder struct {
	iface *contract.Interface
}

// NewEncoder creates an Encoder bound to iface.
func NewEncoder(iface *contract.Interface) *Encoder {
	return &Encoder{iface: iface}
}

// Encode resolves ref (a bare name or a full signature) against the
// interface and returns the 0x-prefixed call data.
func (e *Encoder) Encode(ref string, args ...string) (string, error) {
	data, err := e.EncodeBytes(ref, args...)
	if err != nil {
		return "", err
	}
	return abicodec.Add0x(abicodec.ToHexString(data)), nil
}

// EncodeBytes is Encode returning raw bytes.
func (e *Encoder) EncodeBytes(ref string, args ...string) ([]byte, error) {
	fn, err := e.iface.Function(ref, len(args))
	if err != nil {
		return nil, err
	}
	return EncodeFunction(fn, args...)
}

// EncodeFunction encodes a call to an already-resolved function.
func EncodeFunction(fn *contract.FunctionSignature, args ...string) ([]byte, error) {
	if len(args) != len(fn.Types) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", contract.ErrArityMismatch, fn.Signature(), len(fn.Types), len(args))
	}
	return EncodeCall(fn.Name, fn.Types, args)
}

// EncodeCall concatenates the selector of name(types) with the encoded
// argument tuple.
func EncodeCall(name string, types []abicodec.Type, args []string) ([]byte, error) {
	body, err := abicodec.EncodeArguments(types, args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", abicodec.Signature(name, types), err)
	}
	sel := abicodec.Selector(name, types)
	return append(sel[:], body...), nil
}

// EncodeSignature encodes a call from a bare signature such as
// "transfer(address,uint256)", without an interface.
func EncodeSignature(sig string, args ...string) (string, error) {
	name, types, err := abicodec.ParseSignature(sig)
	if err != nil {
		return "", err
	}
	if len(types) != len(args) {
		return "", fmt.Errorf("%w: %s takes %d arguments, got %d", contract.ErrArityMismatch, abicodec.Signature(name, types), len(types), len(args))
	}
	data, err := EncodeCall(name, types, args)
	if err != nil {
		return "", err
	}
	return abicodec.Add0x(abicodec.ToHexString(data)), nil
}
