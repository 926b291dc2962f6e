package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRoleEnv(t *testing.T) {
	t.Helper()
	for _, r := range config.RoleSettings {
		t.Setenv(r.Env, "")
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Network)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fastest", cfg.RPCSelect)
	assert.Equal(t, "build/contracts", cfg.ArtifactsDir)
	assert.Equal(t, uint64(10000), cfg.Scan.WindowSize)
	assert.Equal(t, 200*time.Millisecond, cfg.Scan.WindowDelay)
	assert.True(t, cfg.Scan.Reconcile)
	assert.Equal(t, 5, cfg.Scan.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Scan.Retry.BaseDelay)
	assert.Equal(t, "blacklist.remote.json", cfg.Snapshot.Path)
	assert.Equal(t, "list", cfg.Snapshot.Format)
	assert.Equal(t, 2*time.Second, cfg.Chain.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Chain.ReceiptTimeout)
	assert.Equal(t, "", cfg.File())
	assert.Equal(t, ".stablecoin", filepath.Base(cfg.DataDir))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: Sepolia
rpcUrl: http://node:8545
dataDir: `+dir+`
scan:
  windowSize: 500
  windowDelay: 1s
  reconcile: false
  retry:
    maxAttempts: 2
snapshot:
  format: asof
`), 0o600))

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Network)
	assert.Equal(t, "http://node:8545", cfg.RPCURL)
	assert.Equal(t, uint64(500), cfg.Scan.WindowSize)
	assert.Equal(t, time.Second, cfg.Scan.WindowDelay)
	assert.False(t, cfg.Scan.Reconcile)
	assert.Equal(t, 2, cfg.Scan.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Scan.Retry.BaseDelay, "unset keys keep defaults")
	assert.Equal(t, "asof", cfg.Snapshot.Format)
	assert.Equal(t, path, cfg.File())
	assert.Equal(t, filepath.Join(dir, "deployments.json"), cfg.DeploymentsPath())
	assert.Equal(t, filepath.Join(dir, "progress.db"), cfg.ProgressPath())
}

func TestLoadDiscoversConfigInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stablecoin.yaml"), []byte("logLevel: debug\n"), 0o600))

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotEmpty(t, cfg.File())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stablecoin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: sepolia\nscan:\n  windowSize: 500\n"), 0o600))

	t.Setenv("STABLECOIN_NETWORK", "mainnet")
	t.Setenv("STABLECOIN_SCAN_WINDOWSIZE", "42")
	t.Setenv("STABLECOIN_SCAN_RETRY_BASEDELAY", "250ms")

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, uint64(42), cfg.Scan.WindowSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Retry.BaseDelay)
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	cfg := &config.Config{DataDir: dir}
	require.NoError(t, cfg.EnsureDataDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveRolesFallsBackOffProduction(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv("PAUSER_ADDRESS", "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")

	roles, err := config.ResolveRoles(viper.New(), "development", chain.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x2F560290FEF1B3Ada194b6aA9c40aa71f8e95598"), roles.ProxyAdmin)
	assert.Equal(t, common.HexToAddress("0xE11BA2b4D45Eaed5996Cd0823791E0C93114882d"), roles.Owner)
	assert.Equal(t, common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"), roles.Pauser)

	var envs []string
	roles.Each(func(env string, addr common.Address) {
		envs = append(envs, env)
		assert.NotEqual(t, common.Address{}, addr, env)
	})
	assert.Len(t, envs, 6)
	assert.Equal(t, "PROXY_ADMIN_ADDRESS", envs[0])
}

func TestResolveRolesProductionRequiresEveryRole(t *testing.T) {
	for _, network := range []string{"mainnet", "production", "MAINNET"} {
		t.Run(network, func(t *testing.T) {
			clearRoleEnv(t)
			t.Setenv("OWNER_ADDRESS", "0xE11BA2b4D45Eaed5996Cd0823791E0C93114882d")

			_, err := config.ResolveRoles(viper.New(), network, chain.NewRegistry())
			require.ErrorIs(t, err, config.ErrMissingRoleConfig)
			assert.Contains(t, err.Error(), "PROXY_ADMIN_ADDRESS")
			assert.Contains(t, err.Error(), "LOST_AND_FOUND_ADDRESS")
			assert.NotContains(t, err.Error(), "OWNER_ADDRESS")
		})
	}
}

func TestResolveRolesProductionComplete(t *testing.T) {
	clearRoleEnv(t)
	holder := "0x28a8746e75304c0780E011BEd21C72cD78cd535E"
	for _, r := range config.RoleSettings {
		t.Setenv(r.Env, holder)
	}

	roles, err := config.ResolveRoles(viper.New(), "mainnet", chain.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(holder), roles.LostAndFound)
	assert.Equal(t, common.HexToAddress(holder), roles.ProxyAdmin)
}

func TestResolveRolesFromConfigFile(t *testing.T) {
	clearRoleEnv(t)
	v := viper.New()
	v.Set("roles.blacklister", "0x95cED938F7991cd0dFcb48F0a06a40FA1aF46EBC")

	roles, err := config.ResolveRoles(v, "sepolia", chain.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x95cED938F7991cd0dFcb48F0a06a40FA1aF46EBC"), roles.Blacklister)
}

func TestResolveRolesRejectsMalformedAddress(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv("MASTERMINTER_ADDRESS", "0x1234")

	_, err := config.ResolveRoles(viper.New(), "development", chain.NewRegistry())
	require.ErrorIs(t, err, config.ErrInvalidRoleAddress)
	assert.Contains(t, err.Error(), "MASTERMINTER_ADDRESS")
}
