package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/config"
	"github.com/circlefin/stablecoin-evm-sub003/internal/rpc"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/circlefin/stablecoin-evm-sub003/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config
	vp      *viper.Viper
	verbose bool
	network string

	log      = logrus.New()
	networks = chain.NewRegistry()
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "stablecoin",
	Short: "Tooling for the FiatToken stablecoin",
	Long: `stablecoin encodes and decodes FiatToken call data, rebuilds the
blacklist from on-chain events and verifies that proxy upgrades preserve
token state.

Settings come from stablecoin.yaml (working directory or ~/.stablecoin)
and STABLECOIN_* environment variables. Role holders are read from
PROXY_ADMIN_ADDRESS, OWNER_ADDRESS, MASTERMINTER_ADDRESS, PAUSER_ADDRESS,
BLACKLISTER_ADDRESS and LOST_AND_FOUND_ADDRESS; production networks
require all of them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		vp = viper.New()
		var err error
		cfg, err = config.Load(vp, cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if network != "" {
			cfg.Network = strings.ToLower(network)
		}
		return setupLogger(cfg.LogLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), ui.Banner())
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	if verbose {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// rpcURL returns the configured RPC endpoint, or the network's best
// endpoint by the configured selection.
func rpcURL(ctx context.Context) (string, error) {
	if cfg.RPCURL != "" {
		return cfg.RPCURL, nil
	}
	n, err := networks.GetByName(cfg.Network)
	if err != nil {
		return "", fmt.Errorf("%w: %s (set rpcUrl or STABLECOIN_RPCURL)", err, cfg.Network)
	}
	algo, err := rpc.ParseAlgorithm(cfg.RPCSelect)
	if err != nil {
		return "", err
	}
	return rpc.Best(ctx, n.RPCs, algo, log)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./stablecoin.yaml or ~/.stablecoin/stablecoin.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&network, "network", "n", "", "target network (overrides config)")

	// Register all sub-commands.
	rootCmd.AddCommand(
		selectorCmd,
		encodeCmd,
		decodeCmd,
		checksumCmd,
		scanCmd,
		verifyCmd,
		rolesCmd,
		contractCmd,
	)
}
