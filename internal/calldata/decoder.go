package calldata

import (
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecodedCall is a decoded function call. Types and Inputs have the same
// length and Inputs[i] re-encodes to the original bytes under Types[i].
type DecodedCall struct {
	Name   string   `json:"name"`
	Types  []string `json:"types"`
	Inputs []string `json:"inputs"`
}

// Signature returns the canonical signature of the decoded function.
func (c *DecodedCall) Signature() string {
	return c.Name + "(" + strings.Join(c.Types, ",") + ")"
}

// Decoder maps call data back to functions of one contract interface.
type Decoder struct {
	iface *contract.Interface
}

// NewDecoder creates a Decoder bound to iface.
func NewDecoder(iface *contract.Interface) *Decoder {
	return &Decoder{iface: iface}
}

// Decode decodes hex call data, with or without the 0x prefix.
func (d *Decoder) Decode(input string) (*DecodedCall, error) {
	data, err := ParseHex(input)
	if err != nil {
		return nil, err
	}
	return d.DecodeBytes(data)
}

// DecodeBytes decodes raw call data.
func (d *Decoder) DecodeBytes(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: call data is %d bytes, shorter than a selector", abicodec.ErrMalformedInput, len(data))
	}

	var sel [4]byte
	copy(sel[:], data[:4])
	fn, err := d.iface.FunctionBySelector(sel)
	if err != nil {
		return nil, err
	}

	values, err := abicodec.DecodeArguments(fn.Types, data[4:])
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fn.Signature(), err)
	}

	call := &DecodedCall{
		Name:   fn.Name,
		Types:  abicodec.TypeNames(fn.Types),
		Inputs: make([]string, len(values)),
	}
	for i, v := range values {
		call.Inputs[i] = abicodec.Stringify(fn.Types[i], v)
	}
	return call, nil
}

// DecodeReturn decodes a function's return data into stringified values.
func DecodeReturn(fn *contract.FunctionSignature, data []byte) ([]string, error) {
	if len(fn.Outputs) == 0 {
		return nil, nil
	}
	values, err := abicodec.DecodeArguments(fn.Outputs, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s return data: %w", fn.Signature(), err)
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = abicodec.Stringify(fn.Outputs[i], v)
	}
	return out, nil
}

// ParseHex decodes a hex string with or without the 0x prefix.
func ParseHex(input string) ([]byte, error) {
	data, err := hexutil.Decode(abicodec.Add0x(strings.TrimSpace(input)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", abicodec.ErrMalformedInput, err)
	}
	return data, nil
}
