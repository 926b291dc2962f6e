package config

import (
	"time"

	"github.com/circlefin/stablecoin-evm-sub003/internal/scanner"
)

// Config holds all stablecoin CLI configuration. Fields are filled from
// struct defaults, then stablecoin.yaml, then STABLECOIN_* variables.
type Config struct {
	Network      string `mapstructure:"network"      default:"development"`
	RPCURL       string `mapstructure:"rpcUrl"`                          // overrides the network's RPC list
	RPCSelect    string `mapstructure:"rpcSelect"    default:"fastest"` // "fastest" | "failover" among the network's RPCs
	LogLevel     string `mapstructure:"logLevel"     default:"info"`
	DataDir      string `mapstructure:"dataDir"`                         // defaults to ~/.stablecoin
	ArtifactsDir string `mapstructure:"artifactsDir" default:"build/contracts"`

	Scan     scanner.Config `mapstructure:"scan"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Chain    ChainConfig    `mapstructure:"chain"`

	// internal: the config file actually read, if any
	file string
}

// SnapshotConfig selects where and how the blacklist snapshot is written.
type SnapshotConfig struct {
	Path   string `mapstructure:"path"   default:"blacklist.remote.json"`
	Format string `mapstructure:"format" default:"list"` // "list" | "asof"
}

// ChainConfig tunes transaction submission on live networks.
type ChainConfig struct {
	PollInterval   time.Duration `mapstructure:"pollInterval"   default:"2s"`
	ReceiptTimeout time.Duration `mapstructure:"receiptTimeout" default:"2m"`
}
