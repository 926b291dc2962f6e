package upgrade

import (
	"context"
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Backend executes calls and transactions. Reverts surface as
// chain.ErrReverted.
type Backend interface {
	Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error)
	Transact(ctx context.Context, from, to common.Address, data []byte) error
}

// Transition points Proxy at NewImplementation, optionally running InitCall
// against the new implementation in the same transaction.
type Transition struct {
	Proxy             common.Address
	NewImplementation common.Address
	InitCall          []byte
	// Interface of the new implementation, used by later captures.
	// Nil keeps the current one.
	Interface *contract.Interface
}

// Operation is a state-changing call sent through the proxy, followed by
// reads that must show its effect.
type Operation struct {
	From     common.Address
	Function string
	Args     []string
	Expect   []Expectation
}

func (o Operation) String() string {
	return Probe{Function: o.Function, Args: o.Args}.Label()
}

// Expectation is the value a probe must read after an operation.
type Expectation struct {
	Probe Probe
	Want  string
}

// Verifier tracks one proxy through an upgrade cycle.
type Verifier struct {
	backend    Backend
	proxy      common.Address
	token      *contract.Interface
	proxyIface *contract.Interface
	state      State
	log        logrus.FieldLogger
}

// New creates a Verifier for a proxy whose current implementation exposes
// token. The proxy is assumed deployed and initialized.
func New(backend Backend, proxy common.Address, token *contract.Interface, log logrus.FieldLogger) *Verifier {
	return &Verifier{
		backend:    backend,
		proxy:      proxy,
		token:      token,
		proxyIface: contract.MustBuiltinInterface(contract.BuiltinProxy),
		state:      StateDeployed,
		log:        log.WithFields(logrus.Fields{"module": "upgrade", "proxy": proxy.Hex()}),
	}
}

// State returns the current lifecycle stage.
func (v *Verifier) State() State { return v.state }

// Proxy returns the tracked proxy address.
func (v *Verifier) Proxy() common.Address { return v.proxy }

// Capture reads every probe through the proxy.
func (v *Verifier) Capture(ctx context.Context, probes []Probe) (*Snapshot, error) {
	snap := newSnapshot()
	for _, p := range probes {
		raw, values, err := v.read(ctx, p)
		if err != nil {
			return nil, err
		}
		snap.set(p.Label(), raw, values)
	}
	v.log.WithFields(logrus.Fields{"fields": snap.Len(), "state": v.state.String()}).Debug("Captured state")
	return snap, nil
}

func (v *Verifier) read(ctx context.Context, p Probe) ([]byte, []string, error) {
	fn, err := v.token.Function(p.Function, len(p.Args))
	if err != nil {
		return nil, nil, err
	}
	data, err := calldata.EncodeFunction(fn, p.Args...)
	if err != nil {
		return nil, nil, err
	}
	raw, err := v.backend.Call(ctx, p.From, v.proxy, data)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", p.Label(), err)
	}
	values, err := calldata.DecodeReturn(fn, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", p.Label(), err)
	}
	return raw, values, nil
}

// Mutate sends every operation through the proxy and checks its
// expectations. It stops at the first failure.
func (v *Verifier) Mutate(ctx context.Context, ops []Operation) error {
	if err := checkTransition(v.state, StateMutated); err != nil {
		return err
	}
	enc := calldata.NewEncoder(v.token)
	for i, op := range ops {
		data, err := enc.EncodeBytes(op.Function, op.Args...)
		if err != nil {
			return fmt.Errorf("operation %d %s: %w", i, op, err)
		}
		if err := v.backend.Transact(ctx, op.From, v.proxy, data); err != nil {
			return fmt.Errorf("operation %d %s from %s: %w", i, op, op.From.Hex(), err)
		}
		for _, exp := range op.Expect {
			_, values, err := v.read(ctx, exp.Probe)
			if err != nil {
				return fmt.Errorf("operation %d %s: %w", i, op, err)
			}
			got := Field{Values: values}.Value()
			if got != exp.Want {
				return fmt.Errorf("%w: after %s, %s = %s, want %s",
					ErrExpectationFailed, op, exp.Probe.Label(), got, exp.Want)
			}
		}
		v.log.WithFields(logrus.Fields{"op": op.String(), "from": op.From.Hex()}).Debug("Operation applied")
	}
	v.state = StateMutated
	return nil
}

// Upgrade sends upgradeTo, or upgradeToAndCall when t carries an
// initializer, from admin and confirms implementation() afterwards. A
// rejected upgrade leaves the verifier in its previous state; an accepted
// one moves it to StateUpgraded even when the confirmation read fails.
func (v *Verifier) Upgrade(ctx context.Context, admin common.Address, t Transition) error {
	if t.Proxy != (common.Address{}) && t.Proxy != v.proxy {
		return fmt.Errorf("transition targets proxy %s, verifier tracks %s", t.Proxy.Hex(), v.proxy.Hex())
	}
	if err := checkTransition(v.state, StateUpgrading); err != nil {
		return err
	}
	prev := v.state
	v.state = StateUpgrading

	data, err := v.upgradeCall(t.NewImplementation, t.InitCall)
	if err != nil {
		v.state = prev
		return err
	}

	log := v.log.WithFields(logrus.Fields{"admin": admin.Hex(), "implementation": t.NewImplementation.Hex()})
	if err := v.backend.Transact(ctx, admin, v.proxy, data); err != nil {
		v.state = prev
		return fmt.Errorf("upgrading %s to %s: %w", v.proxy.Hex(), t.NewImplementation.Hex(), err)
	}

	// The swap is on chain once the transaction lands, whether or not the
	// confirmation read below succeeds.
	if err := checkTransition(v.state, StateUpgraded); err != nil {
		return err
	}
	v.state = StateUpgraded
	if t.Interface != nil {
		v.token = t.Interface
	}

	impl, err := v.Implementation(ctx, admin)
	if err != nil {
		return fmt.Errorf("confirming upgrade of %s (state %s): %w", v.proxy.Hex(), v.state, err)
	}
	if impl != t.NewImplementation {
		return fmt.Errorf("%w: implementation() is %s after upgrade, want %s",
			ErrStateMismatch, impl.Hex(), t.NewImplementation.Hex())
	}
	log.WithField("initializer", len(t.InitCall) > 0).Info("Proxy upgraded")
	return nil
}

func (v *Verifier) upgradeCall(impl common.Address, init []byte) ([]byte, error) {
	enc := calldata.NewEncoder(v.proxyIface)
	if len(init) == 0 {
		return enc.EncodeBytes("upgradeTo", impl.Hex())
	}
	return enc.EncodeBytes("upgradeToAndCall", impl.Hex(), abicodec.Add0x(abicodec.ToHexString(init)))
}

// Implementation reads implementation() as admin, the only caller the
// proxy answers admin functions for.
func (v *Verifier) Implementation(ctx context.Context, admin common.Address) (common.Address, error) {
	out, err := v.adminRead(ctx, admin, "implementation")
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(out), nil
}

func (v *Verifier) adminRead(ctx context.Context, from common.Address, name string) (string, error) {
	return calldata.NewCaller(v.backend, v.proxyIface, v.proxy).CallOne(ctx, from, name)
}

// Diff is one field that did not match.
type Diff struct {
	Label  string
	Before string
	After  string
	// Want is set for fields written by the initializer.
	Want string
}

func (d Diff) String() string {
	if d.Want != "" {
		return fmt.Sprintf("%s: got %s, initializer wrote %s", d.Label, d.After, d.Want)
	}
	return fmt.Sprintf("%s: %s -> %s", d.Label, d.Before, d.After)
}

// Report is the outcome of Verify.
type Report struct {
	Preserved   int
	Initialized int
	Diffs       []Diff
}

// OK reports whether every field matched.
func (r *Report) OK() bool { return len(r.Diffs) == 0 }

const missing = "<missing>"

// Verify compares pre- and post-upgrade snapshots. Every pre field must read
// back byte-identical unless the initializer wrote it; initialized maps
// those labels to the decoded value they must now hold.
func Verify(pre, post *Snapshot, initialized map[string]string) (*Report, error) {
	r := &Report{}
	for p := pre.fields.Oldest(); p != nil; p = p.Next() {
		if _, ok := initialized[p.Key]; ok {
			continue
		}
		after, ok := post.Get(p.Key)
		switch {
		case !ok:
			r.Diffs = append(r.Diffs, Diff{Label: p.Key, Before: p.Value.Value(), After: missing})
		case after.Raw != p.Value.Raw:
			r.Diffs = append(r.Diffs, Diff{Label: p.Key, Before: p.Value.Value(), After: after.Value()})
		default:
			r.Preserved++
		}
	}

	for _, label := range sortedKeys(initialized) {
		want := initialized[label]
		before := missing
		if f, ok := pre.Get(label); ok {
			before = f.Value()
		}
		after, ok := post.Get(label)
		if !ok {
			r.Diffs = append(r.Diffs, Diff{Label: label, Before: before, After: missing, Want: want})
			continue
		}
		if after.Value() != want {
			r.Diffs = append(r.Diffs, Diff{Label: label, Before: before, After: after.Value(), Want: want})
			continue
		}
		r.Initialized++
	}

	if !r.OK() {
		return r, fmt.Errorf("%w: %d field(s) differ, first %s", ErrStateMismatch, len(r.Diffs), r.Diffs[0])
	}
	return r, nil
}
