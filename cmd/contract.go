package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	contractArtifact      string
	contractDeployedBlock uint64
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Manage recorded deployments",
}

// ── contract add ──────────────────────────────────────────────────────────────

var contractAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Record a deployment on the current network",
	Long: `Record where a contract is deployed so scan-blacklist and contract
call can find it by name.

The interface is loaded from <artifactsDir>/<artifact>.json or a built-in
(see: stablecoin contract builtins). --artifact defaults to the name.

Examples:
  stablecoin contract add FiatTokenProxy 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --network mainnet --deployed-block 6082465 --artifact FiatTokenV1
  stablecoin contract add FiatTokenV1 0x0882477e7895bdC5cea7cB1552ed914aB157Fe56`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		addr, err := parseAddress(name, args[1])
		if err != nil {
			return err
		}

		entry := &contract.Entry{
			Name:          name,
			Network:       cfg.Network,
			Address:       addr.Hex(),
			DeployedBlock: contractDeployedBlock,
			Artifact:      contractArtifact,
		}
		// The interface must resolve now rather than at scan time.
		if _, err := entryInterface(entry); err != nil {
			return err
		}

		if err := cfg.EnsureDataDir(); err != nil {
			return err
		}
		reg := contract.NewRegistry(cfg.DeploymentsPath())
		if err := reg.Load(); err != nil {
			return err
		}
		if err := reg.Add(entry); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Contract %q recorded on %s at %s", name, cfg.Network, ui.Addr(entry.Address))))
		return nil
	},
}

// ── contract remove ───────────────────────────────────────────────────────────

var contractRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Forget a deployment on the current network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := contract.NewRegistry(cfg.DeploymentsPath())
		if err := reg.Load(); err != nil {
			return err
		}
		if err := reg.Remove(args[0], cfg.Network); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Contract %q removed from %s", args[0], cfg.Network)))
		return nil
	},
}

// ── contract list ─────────────────────────────────────────────────────────────

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded deployments on every network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		reg := contract.NewRegistry(cfg.DeploymentsPath())
		if err := reg.Load(); err != nil {
			return err
		}

		entries := reg.All()
		if len(entries) == 0 {
			fmt.Fprintln(out, ui.Meta("No deployments recorded yet."))
			fmt.Fprintln(out, ui.Meta("Add one with: stablecoin contract add <name> <address>"))
			return nil
		}

		t := ui.NewTable(
			ui.Column{Title: "Name"},
			ui.Column{Title: "Network"},
			ui.Column{Title: "Address", Width: 42},
			ui.Column{Title: "Artifact"},
			ui.Column{Title: "Deployed"},
		)
		for _, e := range entries {
			t.AddRow(e.Name, e.Network, e.Address, e.ArtifactName(), fmt.Sprintf("%d", e.DeployedBlock))
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintln(out, ui.Meta(fmt.Sprintf("%d deployment(s) recorded", len(entries))))
		return nil
	},
}

// ── contract builtins ─────────────────────────────────────────────────────────

var contractBuiltinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List the bundled contract interfaces",
	Long: `List the contract interfaces bundled into the binary. Any command
taking --contract accepts the ID or the contract name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Built-in Contract Interfaces"))

		t := ui.NewTable(
			ui.Column{Title: "ID"},
			ui.Column{Title: "Name"},
			ui.Column{Title: "Functions"},
			ui.Column{Title: "Events"},
			ui.Column{Title: "Description"},
		)
		for _, b := range contract.AllBuiltins() {
			iface, err := b.Artifact.Interface()
			if err != nil {
				return err
			}
			t.AddRow(b.ID, b.Artifact.ContractName,
				fmt.Sprintf("%d", len(iface.Functions())),
				fmt.Sprintf("%d", len(iface.Events())),
				b.Description)
		}
		fmt.Fprintln(out, t.Render())
		return nil
	},
}

// ── contract call ─────────────────────────────────────────────────────────────

var contractCallCmd = &cobra.Command{
	Use:   "call <name> <function> [args...]",
	Short: "Call a read-only function of a recorded deployment",
	Long: `Call a view function through the deployment recorded under <name>
on the current network and print the decoded return values.

Examples:
  stablecoin contract call FiatTokenProxy isBlacklisted 0x95cED938F7991cd0dFcb48F0a06a40FA1aF46EBC
  stablecoin contract call FiatTokenProxy "balanceOf(address)" 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ref, funcArgs := args[0], args[1], args[2:]

		reg := contract.NewRegistry(cfg.DeploymentsPath())
		if err := reg.Load(); err != nil {
			return err
		}
		entry, err := reg.Get(name, cfg.Network)
		if err != nil {
			return err
		}
		iface, err := entryInterface(entry)
		if err != nil {
			return err
		}

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

		spin := ui.NewSpinner(os.Stderr, fmt.Sprintf("Calling %s.%s on %s...", name, ref, cfg.Network))
		spin.Start()
		caller := calldata.NewCaller(ledger, iface, common.HexToAddress(entry.Address))
		results, err := caller.Call(ctx, common.Address{}, ref, funcArgs...)
		spin.Stop()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", ui.StyleTitle.Render(fmt.Sprintf("%s.%s · %s", name, ref, cfg.Network)), ui.Meta("→ result"))
		for i, r := range results {
			fmt.Fprintf(out, "  [%d]  %s\n", i, ui.Val(r))
		}
		return nil
	},
}

// entryInterface loads the interface of a recorded deployment. A proxy is
// called through the token it forwards to.
func entryInterface(e *contract.Entry) (*contract.Interface, error) {
	name := e.ArtifactName()
	if name == "FiatTokenProxy" || name == contract.BuiltinProxy {
		return contract.MustBuiltinInterface(contract.BuiltinFiatToken), nil
	}
	return loadInterface(name, "")
}

func init() {
	contractAddCmd.Flags().StringVar(&contractArtifact, "artifact", "", "artifact holding the interface (default: name)")
	contractAddCmd.Flags().Uint64Var(&contractDeployedBlock, "deployed-block", 0, "block the contract was created in")

	contractCmd.AddCommand(
		contractAddCmd,
		contractRemoveCmd,
		contractListCmd,
		contractBuiltinsCmd,
		contractCallCmd,
	)
}
