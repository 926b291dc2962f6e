package cmd

import (
	"testing"

	"github.com/circlefin/stablecoin-evm-sub003/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolesFallback(t *testing.T) {
	isolate(t)
	out, err := execute(t, "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "PROXY_ADMIN_ADDRESS")
	assert.Contains(t, out, ganacheRoles.ProxyAdmin.Hex())
	assert.Contains(t, out, "ganache fallback")
	assert.NotContains(t, out, "env/config")
}

func TestRolesFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OWNER_ADDRESS", simAccountB.Hex())
	out, err := execute(t, "roles")
	require.NoError(t, err)
	assert.Contains(t, out, simAccountB.Hex())
	assert.Contains(t, out, "env/config")
}

func TestRolesImportKey(t *testing.T) {
	isolate(t)
	ks := useKeystore(t)

	out, err := executeWithInput(t, "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d\n", "roles", "import-key", "proxyAdmin")
	require.NoError(t, err)
	assert.Contains(t, out, "0x90F8")
	assert.Contains(t, out, wallet.Ref("proxyAdmin"))

	got, err := ks.Retrieve(wallet.Ref("proxyAdmin"))
	require.NoError(t, err)
	assert.Contains(t, got, "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d")
}

func TestRolesImportKeyRejectsBadKey(t *testing.T) {
	isolate(t)
	ks := useKeystore(t)

	_, err := executeWithInput(t, "not-a-key\n", "roles", "import-key", "pauser")
	require.Error(t, err)
	_, err = ks.Retrieve(wallet.Ref("pauser"))
	assert.ErrorIs(t, err, wallet.ErrKeyNotFound)
}
