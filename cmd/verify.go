package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/config"
	"github.com/circlefin/stablecoin-evm-sub003/internal/simledger"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/circlefin/stablecoin-evm-sub003/internal/upgrade"
	"github.com/circlefin/stablecoin-evm-sub003/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	verifySimulated   bool
	verifyProxy       string
	verifyNewImpl     string
	verifyMinter      string
	verifyAccountA    string
	verifyAccountB    string
	verifyBlacklisted string
	verifyAmount      string
	verifyNewUint     string
	verifyKeys        string
	verifyYes         bool
)

// Scenario accounts used by --simulated (ganache accounts 0, 1, 2 and 5).
var (
	simMinter      = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	simAccountA    = common.HexToAddress("0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0")
	simAccountB    = common.HexToAddress("0x22d491Bde2303f2f43325b2108D26f1eAbA1e32b")
	simBlacklisted = common.HexToAddress("0x95cED938F7991cd0dFcb48F0a06a40FA1aF46EBC")
)

var verifyCmd = &cobra.Command{
	Use:   "verify-upgrade",
	Short: "Verify that a proxy upgrade preserves token state",
	Long: `Run the upgrade scenario: check the proxy's access control, mint,
transfer, approve, blacklist, pause and unpause through the proxy, snapshot
the token, upgrade to the new implementation with
initV2(true, pauser, 12), then compare every field and re-check access
control.

--simulated runs against an in-memory ledger deployed with the resolved
role holders. Otherwise the proxy and new implementation must already be
deployed and every sender's key must be in the keystore (see
"roles import-key") or in STABLECOIN_KEY_<NAME>.

Examples:
  stablecoin verify-upgrade --simulated
  stablecoin verify-upgrade --network sepolia --proxy 0x... --new-impl 0x... \
      --minter 0x... --account-a 0x... --account-b 0x... --blacklisted 0x...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Roles are resolved before any network access.
		roles, err := config.ResolveRoles(vp, cfg.Network, networks)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var (
			backend upgrade.Backend
			sc      upgrade.Scenario
		)
		if verifySimulated {
			backend, sc, err = simulatedScenario(ctx, roles)
		} else {
			var closeFn func()
			backend, sc, closeFn, err = liveScenario(ctx, cmd, roles)
			if closeFn != nil {
				defer closeFn()
			}
		}
		if err != nil {
			return err
		}
		sc.Amount, sc.NewUint = verifyAmount, verifyNewUint

		res, err := upgrade.RunScenario(ctx, backend, sc, log)
		renderScenario(cmd, sc, res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("upgrade preserved state at "+sc.Proxy.Hex()))
		return nil
	},
}

// simulatedScenario deploys the token and the V2 implementation on an
// in-memory ledger with the resolved role holders.
func simulatedScenario(ctx context.Context, roles *config.Roles) (upgrade.Backend, upgrade.Scenario, error) {
	ledger := simledger.New(log)
	token, err := ledger.DeployToken(ctx, simledger.Roles{
		ProxyAdmin:   roles.ProxyAdmin,
		Owner:        roles.Owner,
		MasterMinter: roles.MasterMinter,
		Pauser:       roles.Pauser,
		Blacklister:  roles.Blacklister,
	}, simledger.DefaultTokenParams)
	if err != nil {
		return nil, upgrade.Scenario{}, fmt.Errorf("deploying simulated token: %w", err)
	}
	v2 := ledger.Deploy(roles.ProxyAdmin, simledger.VersionV2)

	return ledger, upgrade.Scenario{
		Proxy:             token.Proxy,
		NewImplementation: v2,
		Admin:             roles.ProxyAdmin,
		MasterMinter:      roles.MasterMinter,
		Pauser:            roles.Pauser,
		Blacklister:       roles.Blacklister,
		Minter:            simMinter,
		AccountA:          simAccountA,
		AccountB:          simAccountB,
		Blacklisted:       simBlacklisted,
	}, nil
}

// liveScenario validates every address flag, loads the sender keys and
// only then dials the node.
func liveScenario(ctx context.Context, cmd *cobra.Command, roles *config.Roles) (upgrade.Backend, upgrade.Scenario, func(), error) {
	sc := upgrade.Scenario{
		Admin:        roles.ProxyAdmin,
		MasterMinter: roles.MasterMinter,
		Pauser:       roles.Pauser,
		Blacklister:  roles.Blacklister,
	}
	for _, f := range []struct {
		name, value string
		dst         *common.Address
	}{
		{"--proxy", verifyProxy, &sc.Proxy},
		{"--new-impl", verifyNewImpl, &sc.NewImplementation},
		{"--minter", verifyMinter, &sc.Minter},
		{"--account-a", verifyAccountA, &sc.AccountA},
		{"--account-b", verifyAccountB, &sc.AccountB},
		{"--blacklisted", verifyBlacklisted, &sc.Blacklisted},
	} {
		if f.value == "" {
			return nil, sc, nil, fmt.Errorf("%s is required without --simulated", f.name)
		}
		addr, err := parseAddress(f.name, f.value)
		if err != nil {
			return nil, sc, nil, err
		}
		*f.dst = addr
	}

	signer := wallet.NewSigner()
	if _, err := signer.Load(openKeystore(), splitList(verifyKeys)...); err != nil {
		return nil, sc, nil, err
	}
	for _, sender := range []common.Address{sc.Admin, sc.MasterMinter, sc.Pauser, sc.Blacklister, sc.Minter, sc.AccountA, sc.AccountB} {
		if !signer.Has(sender) {
			return nil, sc, nil, fmt.Errorf("%w %s", wallet.ErrNoKey, sender.Hex())
		}
	}

	if networks.IsProduction(cfg.Network) && !verifyYes {
		prompt := fmt.Sprintf("This sends real transactions through %s on %s. Continue?", sc.Proxy.Hex(), cfg.Network)
		if !ui.ConfirmDanger(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
			return nil, sc, nil, errors.New("aborted")
		}
	}

	url, err := rpcURL(ctx)
	if err != nil {
		return nil, sc, nil, err
	}
	client, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, sc, nil, err
	}
	backend := chain.NewBackend(client, signer, log)
	backend.PollInterval = cfg.Chain.PollInterval
	backend.ReceiptTimeout = cfg.Chain.ReceiptTimeout
	return backend, sc, client.Close, nil
}

func renderScenario(cmd *cobra.Command, sc upgrade.Scenario, res *upgrade.ScenarioResult) {
	out := cmd.OutOrStdout()
	if res == nil {
		return
	}

	if res.Access != nil {
		tbl := ui.NewTable(ui.Column{Title: "Access check"}, ui.Column{Title: "Result"}, ui.Column{Title: "Detail"})
		for _, c := range res.Access.Checks {
			if c.Passed {
				tbl.AddRow(c.Name, "pass", c.Detail)
				continue
			}
			tbl.AddStyledRow(ui.StyleError, c.Name, "FAIL", c.Detail)
		}
		fmt.Fprintln(out, tbl.Render())
	}

	if res.Report == nil {
		return
	}
	pairs := [][2]string{
		{"Proxy", ui.Addr(sc.Proxy.Hex())},
		{"Implementation", ui.Addr(sc.NewImplementation.Hex())},
		{"Preserved", fmt.Sprintf("%d fields", res.Report.Preserved)},
		{"Initialized", fmt.Sprintf("%d fields", res.Report.Initialized)},
	}
	if res.Post != nil {
		pairs = append(pairs, [2]string{"Total supply", tokenAmount(res.Post, "totalSupply()")})
		for _, label := range []string{"newBool()", "newAddress()", "newUint()"} {
			if f, ok := res.Post.Get(label); ok {
				pairs = append(pairs, [2]string{label, ui.Val(f.Value())})
			}
		}
	}
	fmt.Fprintln(out, ui.KeyValueBlock("Upgrade State", pairs))

	if len(res.Report.Diffs) > 0 {
		tbl := ui.NewTable(ui.Column{Title: "Field"}, ui.Column{Title: "Before"}, ui.Column{Title: "After"}, ui.Column{Title: "Want"})
		for _, d := range res.Report.Diffs {
			tbl.AddStyledRow(ui.StyleError, d.Label, d.Before, d.After, d.Want)
		}
		fmt.Fprintln(out, tbl.Render())
	}
}

// tokenAmount renders a raw amount field in whole tokens, e.g. "0.00005 USDC".
func tokenAmount(snap *upgrade.Snapshot, label string) string {
	f, ok := snap.Get(label)
	if !ok {
		return "-"
	}
	dec, ok := snap.Get("decimals()")
	if !ok {
		return f.Value()
	}
	var decimals int32
	if _, err := fmt.Sscan(dec.Value(), &decimals); err != nil {
		return f.Value()
	}
	amount, err := upgrade.FormatUnits(f.Value(), decimals)
	if err != nil {
		return f.Value()
	}
	if sym, ok := snap.Get("symbol()"); ok {
		amount += " " + sym.Value()
	}
	return amount
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	verifyCmd.Flags().BoolVar(&verifySimulated, "simulated", false, "run against an in-memory ledger")
	verifyCmd.Flags().StringVar(&verifyProxy, "proxy", "", "FiatTokenProxy address")
	verifyCmd.Flags().StringVar(&verifyNewImpl, "new-impl", "", "address of the implementation to upgrade to")
	verifyCmd.Flags().StringVar(&verifyMinter, "minter", "", "account configured as minter")
	verifyCmd.Flags().StringVar(&verifyAccountA, "account-a", "", "account minted to")
	verifyCmd.Flags().StringVar(&verifyAccountB, "account-b", "", "account transferred to")
	verifyCmd.Flags().StringVar(&verifyBlacklisted, "blacklisted", "", "account blacklisted during the scenario")
	verifyCmd.Flags().StringVar(&verifyAmount, "amount", "50", "raw amount minted and transferred")
	verifyCmd.Flags().StringVar(&verifyNewUint, "new-uint", "12", "initV2 uint argument")
	verifyCmd.Flags().StringVar(&verifyKeys, "keys", "proxyAdmin,masterMinter,pauser,blacklister,minter,accountA,accountB", "comma-separated keystore names to load")
	verifyCmd.Flags().BoolVarP(&verifyYes, "yes", "y", false, "skip the production confirmation")
}
