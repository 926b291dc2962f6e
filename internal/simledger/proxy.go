package simledger

import (
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
)

// world is the account set one call executes against.
type world struct {
	accounts map[common.Address]*account
}

func revert(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", chain.ErrReverted, fmt.Sprintf(format, args...))
}

func (w *world) dispatch(from, to common.Address, data []byte) ([]byte, []chain.LogEntry, error) {
	acct, ok := w.accounts[to]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoCode, to.Hex())
	}
	if acct.proxy != nil {
		return w.proxyCall(to, acct, from, data)
	}
	return execToken(acct.version, acct.storage, to, from, data)
}

// proxyCall applies the transparent proxy rules: the admin may only reach
// the admin functions and everyone else is delegated to the implementation.
func (w *world) proxyCall(self common.Address, acct *account, from common.Address, data []byte) ([]byte, []chain.LogEntry, error) {
	p := acct.proxy
	if from != p.admin {
		return w.delegate(self, acct, from, data)
	}

	iface := VersionProxy.iface()
	fn, args, err := decodeCall(iface, data)
	if err != nil {
		return nil, nil, revert("Cannot call fallback function from the proxy admin")
	}

	var logs []chain.LogEntry
	switch fn.Name {
	case "admin":
		return encodeReturn(fn, p.admin.Hex())

	case "implementation":
		return encodeReturn(fn, p.implementation.Hex())

	case "changeAdmin":
		newAdmin := args[0].(common.Address)
		if newAdmin == (common.Address{}) {
			return nil, nil, revert("Cannot change the admin of a proxy to the zero address")
		}
		lg, err := newLog(iface, self, "AdminChanged", p.admin.Hex(), newAdmin.Hex())
		if err != nil {
			return nil, nil, err
		}
		p.admin = newAdmin
		return nil, []chain.LogEntry{lg}, nil

	case "upgradeTo", "upgradeToAndCall":
		lg, err := w.upgrade(self, p, args[0].(common.Address))
		if err != nil {
			return nil, nil, err
		}
		logs = append(logs, lg)
		if fn.Name == "upgradeTo" {
			return nil, logs, nil
		}

		// The initializer runs as a call from the proxy to itself.
		_, initLogs, err := w.delegate(self, acct, self, args[1].([]byte))
		if err != nil {
			return nil, nil, err
		}
		return nil, append(logs, initLogs...), nil
	}

	return nil, nil, revert("Cannot call fallback function from the proxy admin")
}

func (w *world) upgrade(self common.Address, p *proxyState, impl common.Address) (chain.LogEntry, error) {
	target, ok := w.accounts[impl]
	if !ok || target.proxy != nil {
		return chain.LogEntry{}, revert("Cannot set a proxy implementation to a non-contract address")
	}
	lg, err := newLog(VersionProxy.iface(), self, "Upgraded", impl.Hex())
	if err != nil {
		return chain.LogEntry{}, err
	}
	p.implementation = impl
	return lg, nil
}

// delegate runs the implementation code against the proxy's storage.
func (w *world) delegate(self common.Address, acct *account, from common.Address, data []byte) ([]byte, []chain.LogEntry, error) {
	impl, ok := w.accounts[acct.proxy.implementation]
	if !ok {
		return nil, nil, revert("implementation %s has no code", acct.proxy.implementation.Hex())
	}
	return execToken(impl.version, acct.storage, self, from, data)
}

func decodeCall(iface *contract.Interface, data []byte) (*contract.FunctionSignature, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, revert("call data shorter than a selector")
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	fn, err := iface.FunctionBySelector(sel)
	if err != nil {
		return nil, nil, revert("unrecognized selector 0x%x", sel)
	}
	args, err := abicodec.DecodeArguments(fn.Types, data[4:])
	if err != nil {
		return nil, nil, revert("decoding %s: %v", fn.Signature(), err)
	}
	return fn, args, nil
}

func encodeReturn(fn *contract.FunctionSignature, values ...string) ([]byte, []chain.LogEntry, error) {
	out, err := abicodec.EncodeArguments(fn.Outputs, values)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s return: %w", fn.Name, err)
	}
	return out, nil, nil
}

// newLog builds a log for event name with values in declaration order.
// Indexed values become topics, the rest the ABI-encoded data.
func newLog(iface *contract.Interface, self common.Address, name string, values ...string) (chain.LogEntry, error) {
	ev, err := iface.Event(name)
	if err != nil {
		return chain.LogEntry{}, err
	}
	if len(values) != len(ev.Inputs) {
		return chain.LogEntry{}, fmt.Errorf("event %s takes %d values, got %d", name, len(ev.Inputs), len(values))
	}

	topics := []common.Hash{ev.Topic()}
	var (
		dataTypes []abicodec.Type
		dataVals  []string
	)
	for i, in := range ev.Inputs {
		if in.Indexed {
			word, err := abicodec.EncodeValue(in.Type, values[i])
			if err != nil {
				return chain.LogEntry{}, err
			}
			topics = append(topics, common.BytesToHash(word))
			continue
		}
		dataTypes = append(dataTypes, in.Type)
		dataVals = append(dataVals, values[i])
	}
	data, err := abicodec.EncodeArguments(dataTypes, dataVals)
	if err != nil {
		return chain.LogEntry{}, err
	}
	return chain.LogEntry{Address: self, Topics: topics, Data: data}, nil
}
