package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/progress"
	"github.com/circlefin/stablecoin-evm-sub003/internal/retry"
	"github.com/circlefin/stablecoin-evm-sub003/internal/simledger"
	"github.com/circlefin/stablecoin-evm-sub003/internal/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	roles = simledger.Roles{
		ProxyAdmin:   common.HexToAddress("0x2F560290FEF1B3Ada194b6aA9c40aa71f8e95598"),
		Owner:        common.HexToAddress("0xE11BA2b4D45Eaed5996Cd0823791E0C93114882d"),
		MasterMinter: common.HexToAddress("0x3E5e9111Ae8eB78Fe1CC3bb8915d5D461F3Ef9A9"),
		Pauser:       common.HexToAddress("0xACa94ef8bD5ffEE41947b4585a84BdA5a3d3DA6E"),
		Blacklister:  common.HexToAddress("0xd03ea8624C8C5987235048901fB614fDcA89b117"),
	}

	acctA = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	acctB = common.HexToAddress("0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0")
	acctC = common.HexToAddress("0x22d491Bde2303f2f43325b2108D26f1eAbA1e32b")

	errTransient = errors.New("503 service unavailable")
)

// flakyLedger fails FilterLogs for windows starting at chosen blocks and
// the first failCalls eth_calls. A negative count fails forever.
type flakyLedger struct {
	*simledger.Ledger

	mu        sync.Mutex
	failLogs  map[uint64]int
	failCalls int
	queries   []chain.LogQuery
}

func (f *flakyLedger) FilterLogs(ctx context.Context, q chain.LogQuery) ([]chain.LogEntry, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	n := f.failLogs[q.FromBlock]
	if n > 0 {
		f.failLogs[q.FromBlock] = n - 1
	}
	f.mu.Unlock()
	if n != 0 {
		return nil, errTransient
	}
	return f.Ledger.FilterLogs(ctx, q)
}

func (f *flakyLedger) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	n := f.failCalls
	if n > 0 {
		f.failCalls--
	}
	f.mu.Unlock()
	if n != 0 {
		return nil, errTransient
	}
	return f.Ledger.Call(ctx, from, to, data)
}

type fixture struct {
	ledger *flakyLedger
	token  simledger.Token
	store  *snapshot.Store
	dir    string
}

func newFixture(t *testing.T, format snapshot.Format) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	l := simledger.New(log)
	tok, err := l.DeployToken(context.Background(), roles, simledger.DefaultTokenParams)
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := snapshot.NewStore(filepath.Join(dir, "blacklist.json"), format)
	require.NoError(t, err)

	return &fixture{
		ledger: &flakyLedger{Ledger: l, failLogs: map[uint64]int{}},
		token:  tok,
		store:  store,
		dir:    dir,
	}
}

func (f *fixture) tx(t *testing.T, from common.Address, ref string, args ...string) {
	t.Helper()
	iface := contract.MustBuiltinInterface(contract.BuiltinFiatToken)
	data, err := calldata.NewEncoder(iface).EncodeBytes(ref, args...)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Transact(context.Background(), from, f.token.Proxy, data))
}

func (f *fixture) scanner(t *testing.T, cfg Config, opts ...Option) *Scanner {
	t.Helper()
	log, _ := test.NewNullLogger()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	}
	return New(cfg, f.ledger, f.store, log, opts...)
}

func (f *fixture) persisted(t *testing.T) []common.Address {
	t.Helper()
	snap, err := f.store.Load()
	require.NoError(t, err)
	return snap.Addresses
}

func TestScanKeepsOnlyCurrentlyBlacklisted(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex())
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.tx(t, roles.Blacklister, "blacklist", acctC.Hex())
	f.tx(t, roles.Blacklister, "unBlacklist", acctB.Hex())

	res, err := f.scanner(t, Config{WindowSize: 10000}).Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)

	assert.Equal(t, []common.Address{acctA, acctC}, f.persisted(t))
	assert.Equal(t, []common.Address{acctA, acctC}, res.Added)
	assert.Equal(t, 1, res.Windows)
	assert.Equal(t, 3, res.Candidates)
}

func TestScanSplitsWindows(t *testing.T) {
	f := newFixture(t, snapshot.FormatAsOf)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.ledger.Mine(10)
	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex())
	latest, err := f.ledger.BlockNumber(context.Background())
	require.NoError(t, err)

	var reports []Progress
	s := f.scanner(t, Config{WindowSize: 4}, WithProgress(func(p Progress) { reports = append(reports, p) }))
	res, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)

	want := windowCount(0, latest, 4)
	assert.Equal(t, want, res.Windows)
	require.Len(t, reports, want)
	assert.Equal(t, uint64(0), reports[0].FromBlock)
	assert.Equal(t, uint64(3), reports[0].ToBlock)
	assert.Equal(t, latest, reports[len(reports)-1].ToBlock)
	for i := 1; i < len(reports); i++ {
		assert.Equal(t, reports[i-1].ToBlock+1, reports[i].FromBlock, "windows are contiguous")
	}

	snap, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acctA, acctB}, snap.Addresses)
	assert.Equal(t, latest, snap.AsOfBlock)
}

func TestScanIsIdempotent(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())

	s := f.scanner(t, Config{WindowSize: 3})
	_, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)
	res, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)

	assert.Empty(t, res.Added)
	assert.Equal(t, []common.Address{acctA}, f.persisted(t))
}

func TestScanReconcilesUnblacklisted(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex())

	log, _ := test.NewNullLogger()
	cursors, err := progress.Open(filepath.Join(f.dir, "progress.db"), log)
	require.NoError(t, err)
	defer cursors.Close()

	s := f.scanner(t, Config{WindowSize: 100, Reconcile: true}, WithCursors(cursors))
	_, err = s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true})
	require.NoError(t, err)
	require.Equal(t, []common.Address{acctA, acctB}, f.persisted(t))

	first, err := cursors.Get(s.cursorKey(Request{Contract: f.token.Proxy}))
	require.NoError(t, err)

	f.tx(t, roles.Blacklister, "unBlacklist", acctA.Hex())
	res, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true})
	require.NoError(t, err)

	assert.Equal(t, first.LastBlock+1, res.FromBlock)
	assert.Equal(t, []common.Address{acctA}, res.Removed)
	assert.Equal(t, []common.Address{acctB}, f.persisted(t))
}

func openCursors(t *testing.T, dir string) *progress.Manager {
	t.Helper()
	log, _ := test.NewNullLogger()
	cursors, err := progress.Open(filepath.Join(dir, "progress.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { cursors.Close() })
	return cursors
}

func TestResumeIntoAnotherSnapshotRescans(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.ledger.Mine(10)
	cursors := openCursors(t, f.dir)

	req := Request{Contract: f.token.Proxy, Resume: true, Network: "development"}
	_, err := f.scanner(t, Config{WindowSize: 5}, WithCursors(cursors)).Scan(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []common.Address{acctA}, f.persisted(t))

	other, err := snapshot.NewStore(filepath.Join(f.dir, "other.json"), snapshot.FormatList)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	res, err := New(Config{WindowSize: 5}, f.ledger, other, log, WithCursors(cursors)).Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.FromBlock)

	snap, err := other.Load()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acctA}, snap.Addresses)
}

func TestResumeIsScopedByNetwork(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	s := f.scanner(t, Config{WindowSize: 100}, WithCursors(openCursors(t, f.dir)))

	_, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true, Network: "sepolia"})
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true, Network: "mainnet"})
	require.NoError(t, err)
	assert.False(t, res.UpToDate)
	assert.Equal(t, uint64(0), res.FromBlock)
}

func TestResumeIgnoresCursorWhenSnapshotIsGone(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	s := f.scanner(t, Config{WindowSize: 100}, WithCursors(openCursors(t, f.dir)))
	req := Request{Contract: f.token.Proxy, Resume: true}

	_, err := s.Scan(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.store.Path()))

	res, err := s.Scan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.FromBlock)
	assert.Equal(t, []common.Address{acctA}, f.persisted(t))
}

func TestResumePastEndBlockLeavesSnapshotAlone(t *testing.T) {
	f := newFixture(t, snapshot.FormatAsOf)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.ledger.Mine(5)
	s := f.scanner(t, Config{WindowSize: 100}, WithCursors(openCursors(t, f.dir)))

	first, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true})
	require.NoError(t, err)
	before, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex())
	res, err := s.Scan(context.Background(), Request{Contract: f.token.Proxy, Resume: true, EndBlock: 3})
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Equal(t, first.ToBlock, res.FromBlock)
	assert.Equal(t, first.ToBlock, res.ToBlock)
	assert.Zero(t, res.Windows)

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestScanWithoutReconcileIgnoresUnblacklisted(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.tx(t, roles.Blacklister, "unBlacklist", acctA.Hex())

	res, err := f.scanner(t, Config{WindowSize: 100}).Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Empty(t, f.persisted(t))

	for _, q := range f.ledger.queries {
		assert.Len(t, q.Topic0, 1)
	}
}

func TestScanRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.ledger.failLogs[0] = 2
	f.ledger.failCalls = 2

	_, err := f.scanner(t, Config{WindowSize: 10000}).Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acctA}, f.persisted(t))
}

func TestScanAbortKeepsPersistedWindows(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex()) // block 4
	f.ledger.Mine(10)
	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex()) // block 15
	f.ledger.failLogs[10] = -1

	_, err := f.scanner(t, Config{WindowSize: 5}).Scan(context.Background(), Request{Contract: f.token.Proxy})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "window 10-14")

	// Windows 0-4 and 5-9 were persisted before the failure.
	assert.Equal(t, []common.Address{acctA}, f.persisted(t))
}

func TestScanAbortsWhenLiveCheckFails(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex())
	f.ledger.failCalls = -1

	_, err := f.scanner(t, Config{WindowSize: 10000}).Scan(context.Background(), Request{Contract: f.token.Proxy})
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "isBlacklisted "+acctA.Hex())
	assert.Empty(t, f.persisted(t), "unconfirmed addresses are never persisted")
}

func TestScanEndBlockAndRange(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.tx(t, roles.Blacklister, "blacklist", acctA.Hex()) // block 4
	f.tx(t, roles.Blacklister, "blacklist", acctB.Hex()) // block 5

	res, err := f.scanner(t, Config{WindowSize: 10000}).Scan(context.Background(), Request{Contract: f.token.Proxy, EndBlock: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.ToBlock)
	assert.Equal(t, []common.Address{acctA}, f.persisted(t))

	_, err = f.scanner(t, Config{}).Scan(context.Background(), Request{Contract: f.token.Proxy, StartBlock: 1000})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestScanHonoursCancellationBetweenWindows(t *testing.T) {
	f := newFixture(t, snapshot.FormatList)
	f.ledger.Mine(20)

	ctx, cancel := context.WithCancel(context.Background())
	s := f.scanner(t, Config{WindowSize: 5, WindowDelay: time.Hour}, WithProgress(func(Progress) { cancel() }))

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx, Request{Contract: f.token.Proxy})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after cancel")
	}
}

func TestWindowCount(t *testing.T) {
	assert.Equal(t, 0, windowCount(5, 4, 10))
	assert.Equal(t, 1, windowCount(0, 0, 10))
	assert.Equal(t, 1, windowCount(0, 9, 10))
	assert.Equal(t, 2, windowCount(0, 10, 10))
	assert.Equal(t, 3, windowCount(100, 120, 10))
}
