package chain_test

import (
	"testing"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetByName(t *testing.T) {
	registry := chain.NewRegistry()

	tests := []struct {
		name       string
		chainID    int64
		production bool
	}{
		{"development", 1337, false},
		{"sepolia", 11155111, false},
		{"mainnet", 1, true},
		{"production", 1, true},
		{"Mainnet", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := registry.GetByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.chainID, n.ChainID)
			assert.Equal(t, tt.production, n.Production)
			assert.Equal(t, tt.production, registry.IsProduction(tt.name))
		})
	}
}

func TestRegistryGetUnknownNetwork(t *testing.T) {
	registry := chain.NewRegistry()
	_, err := registry.GetByName("unknownnet")
	assert.ErrorIs(t, err, chain.ErrNetworkNotFound)
	assert.False(t, registry.IsProduction("unknownnet"))
}

func TestRegistryGetByChainIDPrefersFirst(t *testing.T) {
	registry := chain.NewRegistry()
	n, err := registry.GetByChainID(1)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", n.Name)

	_, err = registry.GetByChainID(999999)
	assert.ErrorIs(t, err, chain.ErrNetworkNotFound)
}

func TestAllNetworksHaveRPC(t *testing.T) {
	registry := chain.NewRegistry()
	all := registry.All()
	require.Len(t, all, 4)
	assert.Equal(t, "development", all[0].Name)
	for _, n := range all {
		assert.NotEmpty(t, n.DefaultRPC(), "network %s has no RPC", n.Name)
	}
	assert.Equal(t, "", (&chain.Network{}).DefaultRPC())
}
