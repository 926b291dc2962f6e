package cmd

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/config"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/circlefin/stablecoin-evm-sub003/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// openKeystore returns the role key store. Tests replace it.
var openKeystore = func() wallet.KeyStore {
	return wallet.DefaultKeystore(filepath.Join(cfg.DataDir, "keys"))
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the role holders for the current network",
	Long: `Show the proxy admin, owner, master minter, pauser, blacklister and
lost-and-found accounts the current network resolves to.

Production networks (mainnet, production) require every holder to be set
through its environment variable or the roles section of stablecoin.yaml.
Other networks fall back to the well-known ganache accounts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roles, err := config.ResolveRoles(vp, cfg.Network, networks)
		if err != nil {
			return err
		}

		tbl := ui.NewTable(ui.Column{Title: "Role"}, ui.Column{Title: "Address"}, ui.Column{Title: "Source"})
		roles.Each(func(env string, addr common.Address) {
			source := "env/config"
			if fallbackFor(env) == addr && vp.GetString(roleKey(env)) == "" {
				source = "ganache fallback"
			}
			tbl.AddRow(env, addr.Hex(), source)
		})

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.StyleTitle.Render("Roles on ")+ui.Network(cfg.Network))
		fmt.Fprintln(out, tbl.Render())
		return nil
	},
}

var rolesImportKeyCmd = &cobra.Command{
	Use:   "import-key <name>",
	Short: "Store a signing key for a role in the OS keychain",
	Long: `Read a hex private key from stdin and store it under <name>, e.g.
proxyAdmin or masterMinter. verify-upgrade loads keys by these names.

The STABLECOIN_KEY_<NAME> environment variable overrides a stored key.

Examples:
  stablecoin roles import-key proxyAdmin < admin.key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading key from stdin: %w", err)
		}
		hexKey := strings.TrimSpace(line)

		// Derive the address first so a bad key never reaches the keychain.
		addr, err := wallet.NewSigner().AddKey(hexKey)
		if err != nil {
			return err
		}

		ref, err := openKeystore().Store(name, hexKey)
		if err != nil {
			return fmt.Errorf("storing %s key: %w", name, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("stored %s key for %s as %s", name, ui.Addr(addr.Hex()), ref)))
		return nil
	},
}

func fallbackFor(env string) common.Address {
	for _, r := range config.RoleSettings {
		if r.Env == env {
			return r.Fallback
		}
	}
	return common.Address{}
}

func roleKey(env string) string {
	for _, r := range config.RoleSettings {
		if r.Env == env {
			return r.Key
		}
	}
	return ""
}

func init() {
	rolesCmd.AddCommand(rolesImportKeyCmd)
}
