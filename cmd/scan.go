package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/progress"
	"github.com/circlefin/stablecoin-evm-sub003/internal/scanner"
	"github.com/circlefin/stablecoin-evm-sub003/internal/snapshot"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	scanContract   string
	scanAddress    string
	scanStartBlock uint64
	scanEndBlock   uint64
	scanResume     bool
	scanFormat     string
	scanOutput     string
	scanWindowSize uint64
	scanNoProgress bool
)

// dialLedger connects the scanner to a node. Tests replace it.
var dialLedger = func(ctx context.Context, url string) (scanner.Ledger, func(), error) {
	client, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return chain.NewBackend(client, nil, log), client.Close, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan-blacklist",
	Short: "Rebuild the list of currently blacklisted addresses from events",
	Long: `Walk Blacklisted events in fixed block windows, confirm each
candidate with a live isBlacklisted call and merge the confirmed
addresses into the snapshot file after every window.

The token is given by --address, or by --contract which is looked up in
the deployment registry for the current network. A registry entry also
supplies the start block and artifact.

Examples:
  stablecoin scan-blacklist --address 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --start-block 6082465
  stablecoin scan-blacklist --contract FiatTokenProxy --network mainnet --resume
  stablecoin scan-blacklist --contract FiatTokenProxy --format asof --output blacklist.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, iface, err := resolveScanTarget()
		if err != nil {
			return err
		}

		format := cfg.Snapshot.Format
		if scanFormat != "" {
			format = scanFormat
		}
		f, err := snapshot.ParseFormat(format)
		if err != nil {
			return err
		}
		path := cfg.Snapshot.Path
		if scanOutput != "" {
			path = scanOutput
		}
		store, err := snapshot.NewStore(path, f)
		if err != nil {
			return err
		}

		scanCfg := cfg.Scan
		if scanWindowSize > 0 {
			scanCfg.WindowSize = scanWindowSize
		}

		if err := cfg.EnsureDataDir(); err != nil {
			return err
		}
		cursors, err := progress.Open(cfg.ProgressPath(), log)
		if err != nil {
			return err
		}
		defer cursors.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		url, err := rpcURL(ctx)
		if err != nil {
			return err
		}
		ledger, closeFn, err := dialLedger(ctx, url)
		if err != nil {
			return err
		}
		defer closeFn()

		opts := []scanner.Option{scanner.WithCursors(cursors), scanner.WithInterface(iface)}
		var bar *ui.ScanBar
		if !scanNoProgress {
			bar = ui.NewScanBar(os.Stderr)
			opts = append(opts, scanner.WithProgress(bar.Update))
		}

		res, err := scanner.New(scanCfg, ledger, store, log, opts...).Scan(ctx, scanner.Request{
			Contract:   target.address,
			StartBlock: target.startBlock,
			EndBlock:   scanEndBlock,
			Resume:     scanResume,
			Network:    cfg.Network,
		})
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			if res != nil && res.Windows > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn(fmt.Sprintf("%d windows persisted to %s before the failure", res.Windows, store.Path())))
			}
			return err
		}

		snap, err := store.Load()
		if err != nil {
			return err
		}
		blocks := fmt.Sprintf("%d-%d", res.FromBlock, res.ToBlock)
		if res.UpToDate {
			blocks = fmt.Sprintf("up to date (scanned to %d)", res.ToBlock)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Blacklist Scan", [][2]string{
			{"Contract", ui.Addr(target.address.Hex())},
			{"Network", ui.Network(cfg.Network)},
			{"Blocks", blocks},
			{"Windows", fmt.Sprintf("%d", res.Windows)},
			{"Candidates", fmt.Sprintf("%d", res.Candidates)},
			{"Added", fmt.Sprintf("%d", len(res.Added))},
			{"Removed", fmt.Sprintf("%d", len(res.Removed))},
			{"Blacklisted", ui.Val(fmt.Sprintf("%d", len(snap.Addresses)))},
			{"Snapshot", store.Path()},
		}))
		return nil
	},
}

type scanTarget struct {
	address    common.Address
	startBlock uint64
}

// resolveScanTarget validates the token address, or finds it in the
// deployment registry, without touching the network.
func resolveScanTarget() (scanTarget, *contract.Interface, error) {
	if scanAddress != "" {
		addr, err := parseAddress("--address", scanAddress)
		if err != nil {
			return scanTarget{}, nil, err
		}
		return scanTarget{address: addr, startBlock: scanStartBlock}, contract.MustBuiltinInterface(contract.BuiltinFiatToken), nil
	}
	if scanContract == "" {
		return scanTarget{}, nil, fmt.Errorf("pass --address or --contract")
	}

	reg := contract.NewRegistry(cfg.DeploymentsPath())
	if err := reg.Load(); err != nil {
		return scanTarget{}, nil, err
	}
	entry, err := reg.Get(scanContract, cfg.Network)
	if err != nil {
		return scanTarget{}, nil, err
	}
	addr, err := parseAddress(scanContract, entry.Address)
	if err != nil {
		return scanTarget{}, nil, err
	}

	iface, err := entryInterface(entry)
	if err != nil {
		return scanTarget{}, nil, err
	}

	start := scanStartBlock
	if start == 0 {
		start = entry.DeployedBlock
	}
	return scanTarget{address: addr, startBlock: start}, iface, nil
}

func init() {
	scanCmd.Flags().StringVar(&scanContract, "contract", "", "deployment registry name of the token")
	scanCmd.Flags().StringVar(&scanAddress, "address", "", "token (proxy) address")
	scanCmd.Flags().Uint64Var(&scanStartBlock, "start-block", 0, "first block to scan (default: registry deployed block)")
	scanCmd.Flags().Uint64Var(&scanEndBlock, "end-block", 0, "last block to scan (default: latest)")
	scanCmd.Flags().BoolVar(&scanResume, "resume", false, "continue after the last persisted window")
	scanCmd.Flags().StringVar(&scanFormat, "format", "", "snapshot format: list or asof (default: config snapshot.format)")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "snapshot file (default: config snapshot.path)")
	scanCmd.Flags().Uint64Var(&scanWindowSize, "window-size", 0, "blocks per getLogs window (default: config scan.windowSize)")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "hide the progress bar")
	scanCmd.MarkFlagsMutuallyExclusive("contract", "address")
}
