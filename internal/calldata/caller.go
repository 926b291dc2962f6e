package calldata

import (
	"context"
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
)

// Reader executes read-only calls against a ledger.
type Reader interface {
	Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error)
}

// Caller calls view/pure functions of one deployed contract and returns
// decoded results as strings.
type Caller struct {
	reader  Reader
	iface   *contract.Interface
	address common.Address
}

// NewCaller creates a Caller for the contract at address.
func NewCaller(reader Reader, iface *contract.Interface, address common.Address) *Caller {
	return &Caller{reader: reader, iface: iface, address: address}
}

// Address returns the contract address calls are sent to.
func (c *Caller) Address() common.Address {
	return c.address
}

// Call invokes a read function as from. ref is a bare name or a full
// signature.
func (c *Caller) Call(ctx context.Context, from common.Address, ref string, args ...string) ([]string, error) {
	fn, err := c.iface.Function(ref, len(args))
	if err != nil {
		return nil, err
	}
	if !fn.IsRead() {
		return nil, fmt.Errorf("function %q is not a read function (stateMutability: %s)", fn.Signature(), fn.StateMutability)
	}

	data, err := EncodeFunction(fn, args...)
	if err != nil {
		return nil, err
	}

	result, err := c.reader.Call(ctx, from, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", fn.Signature(), c.address.Hex(), err)
	}

	return DecodeReturn(fn, result)
}

// CallOne is Call for functions with exactly one return value.
func (c *Caller) CallOne(ctx context.Context, from common.Address, ref string, args ...string) (string, error) {
	out, err := c.Call(ctx, from, ref, args...)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%s returned %d values, expected 1", ref, len(out))
	}
	return out[0], nil
}
