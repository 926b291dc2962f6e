// Package simledger is an in-memory ledger that executes FiatToken and
// transparent proxy calls with the access rules of the deployed contracts.
// It serves the scanner and the upgrade verifier without a node.
package simledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Version selects the token implementation code.
type Version int

// Implementations the ledger can execute.
const (
	// VersionProxy marks a proxy account; it has no token code.
	VersionProxy Version = iota
	// VersionV1 is FiatTokenV1.
	VersionV1
	// VersionV2 is V1 plus initV2 and the newBool/newAddress/newUint fields.
	VersionV2
)

func (v Version) String() string {
	switch v {
	case VersionV1:
		return contract.BuiltinFiatToken
	case VersionV2:
		return contract.BuiltinFiatTokenV2
	}
	return contract.BuiltinProxy
}

func (v Version) iface() *contract.Interface {
	return contract.MustBuiltinInterface(v.String())
}

// ErrNoCode is returned for calls to an address without a contract.
var ErrNoCode = errors.New("no contract at address")

// Ledger is an in-memory chain. Every successful Transact mines one block
// and a failed Transact leaves no trace.
type Ledger struct {
	mu       sync.Mutex
	block    uint64
	accounts map[common.Address]*account
	nonces   map[common.Address]uint64
	logs     []chain.LogEntry
	log      logrus.FieldLogger
}

// New creates an empty ledger at block 0.
func New(log logrus.FieldLogger) *Ledger {
	return &Ledger{
		accounts: make(map[common.Address]*account),
		nonces:   make(map[common.Address]uint64),
		log:      log.WithField("module", "simledger"),
	}
}

// Deploy creates an uninitialized token implementation from deployer.
func (l *Ledger) Deploy(deployer common.Address, v Version) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	addr := l.nextAddress(deployer)
	l.accounts[addr] = &account{version: v, storage: newTokenState()}
	l.block++
	l.log.WithFields(logrus.Fields{"address": addr.Hex(), "code": v.String()}).Debug("Deployed implementation")
	return addr
}

// DeployProxy creates a proxy pointing at impl. The deployer becomes the
// proxy admin.
func (l *Ledger) DeployProxy(deployer, impl common.Address) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.accounts[impl]; !ok || a.proxy != nil {
		return common.Address{}, fmt.Errorf("%w: implementation %s", ErrNoCode, impl.Hex())
	}
	addr := l.nextAddress(deployer)
	l.accounts[addr] = &account{
		version: VersionProxy,
		proxy:   &proxyState{admin: deployer, implementation: impl},
		storage: newTokenState(),
	}
	l.block++
	l.log.WithFields(logrus.Fields{"proxy": addr.Hex(), "implementation": impl.Hex()}).Debug("Deployed proxy")
	return addr, nil
}

func (l *Ledger) nextAddress(deployer common.Address) common.Address {
	n := l.nonces[deployer]
	l.nonces[deployer] = n + 1
	return crypto.CreateAddress(deployer, n)
}

// Mine advances the chain by n empty blocks.
func (l *Ledger) Mine(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block += n
}

// BlockNumber returns the latest block number.
func (l *Ledger) BlockNumber(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block, nil
}

// FilterLogs returns the recorded logs matching q in block order.
func (l *Ledger) FilterLogs(ctx context.Context, q chain.LogQuery) ([]chain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []chain.LogEntry
	for _, lg := range l.logs {
		n := uint64(lg.BlockNumber)
		if n < q.FromBlock || n > q.ToBlock || lg.Address != q.Address {
			continue
		}
		if len(q.Topic0) > 0 && !containsHash(q.Topic0, lg.Topics[0]) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func containsHash(set []common.Hash, h common.Hash) bool {
	for _, s := range set {
		if s == h {
			return true
		}
	}
	return false
}

// Call executes data against to without committing any change.
func (l *Ledger) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	world := l.fork()
	out, _, err := world.dispatch(from, to, data)
	return out, err
}

// Transact executes data against to and mines it in a new block. Reverts
// roll back every change the transaction made.
func (l *Ledger) Transact(ctx context.Context, from, to common.Address, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	world := l.fork()
	_, emitted, err := world.dispatch(from, to, data)
	if err != nil {
		l.log.WithFields(logrus.Fields{"from": from.Hex(), "to": to.Hex()}).WithError(err).Debug("Transaction reverted")
		return err
	}

	l.block++
	l.accounts = world.accounts
	txHash := crypto.Keccak256Hash(from.Bytes(), to.Bytes(), data, new(big.Int).SetUint64(l.block).Bytes())
	for i, lg := range emitted {
		lg.BlockNumber = hexutil.Uint64(l.block)
		lg.TxHash = txHash
		lg.LogIndex = hexutil.Uint(i)
		l.logs = append(l.logs, lg)
	}
	return nil
}

// Logs returns a copy of every recorded log.
func (l *Ledger) Logs() []chain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]chain.LogEntry(nil), l.logs...)
}

// fork copies the account set so a transaction can be discarded on revert.
func (l *Ledger) fork() *world {
	accounts := make(map[common.Address]*account, len(l.accounts))
	for addr, a := range l.accounts {
		accounts[addr] = a.clone()
	}
	return &world{accounts: accounts}
}
