package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. STABLECOIN_NETWORK.
	EnvPrefix = "STABLECOIN"

	configName     = "stablecoin"
	deploymentFile = "deployments.json"
	progressFile   = "progress.db"
)

// keys lists every setting that may come from the environment. Viper only
// consults AutomaticEnv for keys it already knows about.
var keys = []string{
	"network",
	"rpcUrl",
	"rpcSelect",
	"logLevel",
	"dataDir",
	"artifactsDir",
	"scan.windowSize",
	"scan.windowDelay",
	"scan.reconcile",
	"scan.retry.maxAttempts",
	"scan.retry.baseDelay",
	"snapshot.path",
	"snapshot.format",
	"chain.pollInterval",
	"chain.receiptTimeout",
}

// Load builds the configuration. file names an explicit config file; when
// empty, stablecoin.yaml is looked up in the working directory and the data
// directory and is optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := defaultDataDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	cfg.Network = strings.ToLower(cfg.Network)
	return cfg, nil
}

// File returns the config file that was read, or "" when none was.
func (c *Config) File() string { return c.file }

// EnsureDataDir creates the data directory.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("could not create data dir: %w", err)
	}
	return nil
}

// DeploymentsPath is the deployment registry file.
func (c *Config) DeploymentsPath() string {
	return filepath.Join(c.DataDir, deploymentFile)
}

// ProgressPath is the scan cursor database.
func (c *Config) ProgressPath() string {
	return filepath.Join(c.DataDir, progressFile)
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home dir: %w", err)
	}
	return filepath.Join(home, ".stablecoin"), nil
}
