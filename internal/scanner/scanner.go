// Package scanner rebuilds the set of currently blacklisted accounts of a
// token from its Blacklisted event history, confirming every candidate with a
// live isBlacklisted read before it is persisted.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/progress"
	"github.com/circlefin/stablecoin-evm-sub003/internal/retry"
	"github.com/circlefin/stablecoin-evm-sub003/internal/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRange is returned when the start block is past the end block.
var ErrInvalidRange = errors.New("invalid block range")

// Ledger is the chain access the scanner needs.
type Ledger interface {
	calldata.Reader
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q chain.LogQuery) ([]chain.LogEntry, error)
}

// Config tunes a scan.
type Config struct {
	WindowSize  uint64        `mapstructure:"windowSize" default:"10000"`
	WindowDelay time.Duration `mapstructure:"windowDelay" default:"200ms"`
	// Reconcile also follows UnBlacklisted events and drops persisted
	// addresses that are no longer blacklisted.
	Reconcile bool         `mapstructure:"reconcile" default:"true"`
	Retry     retry.Policy `mapstructure:"retry"`
}

// Request selects what to scan.
type Request struct {
	Contract   common.Address
	StartBlock uint64
	// EndBlock of zero scans to the latest block.
	EndBlock uint64
	// Resume starts after the last persisted window when one is recorded
	// for this network, contract and snapshot file.
	Resume bool
	// Network scopes the resume cursor.
	Network string
}

// Progress is reported after every persisted window.
type Progress struct {
	Window    int
	Windows   int
	FromBlock uint64
	ToBlock   uint64
	Added     int
	Removed   int
}

// Result summarizes a completed scan.
type Result struct {
	FromBlock  uint64
	ToBlock    uint64
	Windows    int
	Candidates int
	Added      []common.Address
	Removed    []common.Address
	// UpToDate is set when a resumed scan had no blocks left before the
	// end block. FromBlock and ToBlock are then both the cursor block.
	UpToDate bool
}

// Scanner walks the event history in fixed block windows.
type Scanner struct {
	cfg     Config
	ledger  Ledger
	store   *snapshot.Store
	iface   *contract.Interface
	cursors *progress.Manager
	retrier *retry.Retrier
	log     logrus.FieldLogger

	onWindow func(Progress)
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithInterface replaces the built-in FiatToken interface, e.g. with one
// loaded from a deployment artifact.
func WithInterface(iface *contract.Interface) Option {
	return func(s *Scanner) { s.iface = iface }
}

// WithCursors persists the last completed window so a scan can resume.
func WithCursors(m *progress.Manager) Option {
	return func(s *Scanner) { s.cursors = m }
}

// WithProgress registers a callback run after every persisted window.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scanner) { s.onWindow = fn }
}

// New creates a Scanner that persists into store.
func New(cfg Config, ledger Ledger, store *snapshot.Store, log logrus.FieldLogger, opts ...Option) *Scanner {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 10000
	}
	s := &Scanner{
		cfg:    cfg,
		ledger: ledger,
		store:  store,
		iface:  contract.MustBuiltinInterface(contract.BuiltinFiatToken),
		log:    log.WithField("module", "scanner"),
		sleep:  sleepContext,
	}
	s.retrier = retry.New(cfg.Retry, log, retry.NonRetryable(chain.ErrReverted))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan processes [start, end] window by window. Each window's confirmed
// addresses are merged into the snapshot before the next window starts, so
// an aborted scan keeps everything it already persisted.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	blacklisted, err := s.iface.Event("Blacklisted")
	if err != nil {
		return nil, err
	}
	topics := []common.Hash{blacklisted.Topic()}
	var unblacklisted *contract.EventSignature
	if s.cfg.Reconcile {
		if unblacklisted, err = s.iface.Event("UnBlacklisted"); err != nil {
			return nil, err
		}
		topics = append(topics, unblacklisted.Topic())
	}

	from, to, err := s.blockRange(ctx, req)
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("contract", req.Contract.Hex())
	if from > to {
		log.WithFields(logrus.Fields{"cursor": from - 1, "end": to}).Info("Cursor already past the end block, nothing to scan")
		return &Result{FromBlock: from - 1, ToBlock: from - 1, UpToDate: true}, nil
	}
	res := &Result{FromBlock: from, ToBlock: to}
	windows := windowCount(from, to, s.cfg.WindowSize)
	log.WithFields(logrus.Fields{"from": from, "to": to, "windows": windows}).Info("Starting blacklist scan")

	caller := calldata.NewCaller(s.ledger, s.iface, req.Contract)

	for w, start := 0, from; w < windows; w++ {
		end := start + s.cfg.WindowSize - 1
		if end > to || end < start {
			end = to
		}
		wlog := log.WithFields(logrus.Fields{"from": start, "to": end})

		var logs []chain.LogEntry
		err := s.retrier.Do(ctx, fmt.Sprintf("getLogs %d-%d", start, end), func(ctx context.Context) error {
			var err error
			logs, err = s.ledger.FilterLogs(ctx, chain.LogQuery{
				Address: req.Contract, Topic0: topics, FromBlock: start, ToBlock: end,
			})
			return err
		})
		if err != nil {
			return res, fmt.Errorf("window %d-%d: %w", start, end, err)
		}

		added, removed, candidates, err := s.processWindow(ctx, caller, logs, blacklisted, unblacklisted, end)
		if err != nil {
			return res, fmt.Errorf("window %d-%d: %w", start, end, err)
		}
		res.Windows++
		res.Candidates += candidates
		res.Added = append(res.Added, added...)
		res.Removed = append(res.Removed, removed...)

		if s.cursors != nil {
			if err := s.cursors.Advance(s.cursorKey(req), end, len(added)); err != nil {
				return res, fmt.Errorf("saving scan cursor: %w", err)
			}
		}
		wlog.WithFields(logrus.Fields{"logs": len(logs), "added": len(added), "removed": len(removed)}).Debug("Window persisted")
		if s.onWindow != nil {
			s.onWindow(Progress{
				Window: w + 1, Windows: windows, FromBlock: start, ToBlock: end,
				Added: len(added), Removed: len(removed),
			})
		}

		if w+1 < windows && s.cfg.WindowDelay > 0 {
			if err := s.sleep(ctx, s.cfg.WindowDelay); err != nil {
				return res, err
			}
		}
		start = end + 1
	}

	log.WithFields(logrus.Fields{"added": len(res.Added), "removed": len(res.Removed), "candidates": res.Candidates}).
		Info("Blacklist scan complete")
	return res, nil
}

// processWindow confirms the window's candidates and persists the outcome.
func (s *Scanner) processWindow(
	ctx context.Context,
	caller *calldata.Caller,
	logs []chain.LogEntry,
	blacklisted, unblacklisted *contract.EventSignature,
	asOf uint64,
) (added, removed []common.Address, candidates int, err error) {
	listed, delisted := s.candidates(logs, blacklisted, unblacklisted)
	candidates = len(listed) + len(delisted)

	var confirmed []common.Address
	for _, a := range listed {
		ok, err := s.isBlacklisted(ctx, caller, a)
		if err != nil {
			return nil, nil, candidates, err
		}
		if ok {
			confirmed = append(confirmed, a)
		}
	}

	var cleared []common.Address
	if len(delisted) > 0 {
		snap, err := s.store.Load()
		if err != nil {
			return nil, nil, candidates, err
		}
		for _, a := range delisted {
			if !snap.Contains(a) {
				continue
			}
			ok, err := s.isBlacklisted(ctx, caller, a)
			if err != nil {
				return nil, nil, candidates, err
			}
			if !ok {
				cleared = append(cleared, a)
			}
		}
	}

	added, err = s.store.Merge(confirmed, asOf)
	if err != nil {
		return nil, nil, candidates, err
	}
	if len(cleared) > 0 {
		removed, err = s.store.Remove(cleared, asOf)
		if err != nil {
			return added, nil, candidates, err
		}
	}
	return added, removed, candidates, nil
}

// candidates extracts the accounts named by the window's events, each list
// deduplicated in first-seen order.
func (s *Scanner) candidates(logs []chain.LogEntry, blacklisted, unblacklisted *contract.EventSignature) (listed, delisted []common.Address) {
	seenListed := make(map[common.Address]bool)
	seenDelisted := make(map[common.Address]bool)

	for _, lg := range logs {
		ev, err := s.iface.DecodeLog(lg.Topics, lg.Data)
		if err != nil {
			s.log.WithError(err).WithField("tx", lg.TxHash.Hex()).Warn("Skipping undecodable log")
			continue
		}
		raw, ok := ev.Field("_account")
		if !ok || !common.IsHexAddress(raw) {
			s.log.WithField("tx", lg.TxHash.Hex()).Warn("Skipping log without an account")
			continue
		}
		a := common.HexToAddress(raw)

		switch {
		case ev.Name == blacklisted.Name:
			if !seenListed[a] {
				seenListed[a] = true
				listed = append(listed, a)
			}
		case unblacklisted != nil && ev.Name == unblacklisted.Name:
			if !seenDelisted[a] {
				seenDelisted[a] = true
				delisted = append(delisted, a)
			}
		}
	}
	return listed, delisted
}

func (s *Scanner) isBlacklisted(ctx context.Context, caller *calldata.Caller, a common.Address) (bool, error) {
	var out string
	err := s.retrier.Do(ctx, "isBlacklisted "+a.Hex(), func(ctx context.Context) error {
		var err error
		out, err = caller.CallOne(ctx, common.Address{}, "isBlacklisted", a.Hex())
		return err
	})
	if err != nil {
		return false, err
	}
	return out == "true", nil
}

// blockRange resolves the inclusive range to scan.
func (s *Scanner) blockRange(ctx context.Context, req Request) (uint64, uint64, error) {
	var latest uint64
	err := s.retrier.Do(ctx, "blockNumber", func(ctx context.Context) error {
		var err error
		latest, err = s.ledger.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	to := latest
	if req.EndBlock != 0 && req.EndBlock < latest {
		to = req.EndBlock
	}
	from := req.StartBlock

	resumed := false
	if req.Resume && s.cursors != nil {
		key := s.cursorKey(req)
		c, err := s.cursors.Get(key)
		switch {
		case err == nil && !s.store.Exists():
			// The windows behind the cursor were merged into a file that is
			// gone; rescan them.
			s.log.WithFields(logrus.Fields{"cursor": key, "snapshot": s.store.Path()}).
				Warn("Snapshot file missing, ignoring resume cursor")
		case err == nil:
			if c.LastBlock+1 > from {
				from = c.LastBlock + 1
				resumed = true
			}
			s.log.WithFields(logrus.Fields{"contract": req.Contract.Hex(), "cursor": c.LastBlock}).Info("Resuming scan")
		case !errors.Is(err, progress.ErrNoCursor):
			return 0, 0, err
		}
	}
	if from > to && !resumed {
		return 0, 0, fmt.Errorf("%w: start %d is after end %d", ErrInvalidRange, from, to)
	}
	return from, to, nil
}

// cursorKey scopes a resume cursor to the network, the contract and the
// snapshot file the windows were merged into, e.g.
// "mainnet/0xA0b8...eB48@/data/blacklist.json".
func (s *Scanner) cursorKey(req Request) string {
	path := s.store.Path()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return req.Network + "/" + req.Contract.Hex() + "@" + path
}

func windowCount(from, to, size uint64) int {
	if from > to {
		return 0
	}
	return int((to-from)/size) + 1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
