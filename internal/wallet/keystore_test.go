package wallet

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ganache deterministic account #0. Never fund on mainnet.
const (
	testPrivKeyHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
	testSignerAddr = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
)

// testKeystore returns a file-backed Keystore isolated to a temp directory.
func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      "stablecoin-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("testpass"),
	})
	require.NoError(t, err)
	return NewKeystore(ring)
}

func TestNormaliseHexKey(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"0xabc123", "abc123"},
		{"0Xabc123", "abc123"},
		{"abc123", "abc123"},
		{"  0xabc  ", "abc"},
		{"0x", ""},
		{"", ""},
		{"0x" + testPrivKeyHex, testPrivKeyHex},
	} {
		assert.Equal(t, tc.want, normaliseHexKey(tc.in), tc.in)
	}
}

func TestRefAndEnvVar(t *testing.T) {
	assert.Equal(t, "stablecoin.proxyAdmin", Ref("proxyAdmin"))
	assert.Equal(t, "STABLECOIN_KEY_PROXYADMIN", EnvVar(Ref("proxyAdmin")))
	assert.Equal(t, "STABLECOIN_KEY_LOST_AND_FOUND", EnvVar(Ref("lost-and-found")))
}

func TestKeystoreRoundTrip(t *testing.T) {
	ks := testKeystore(t)

	ref, err := ks.Store("owner", "0x"+testPrivKeyHex)
	require.NoError(t, err)
	assert.Equal(t, "stablecoin.owner", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got, "stored without prefix")

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NoError(t, ks.Delete(ref), "deleting twice is fine")
}

func TestKeystoreRetrieveEnvVarOverride(t *testing.T) {
	t.Setenv("STABLECOIN_KEY_PAUSER", "0x"+testPrivKeyHex)

	ks := &Keystore{ring: nil}
	got, err := ks.Retrieve(Ref("pauser"))
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)
}

func TestKeystoreNilRing(t *testing.T) {
	ks := &Keystore{ring: nil}
	_, err := ks.Retrieve(Ref("ghost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STABLECOIN_KEY_GHOST")

	_, err = ks.Store("ghost", testPrivKeyHex)
	assert.Error(t, err)
	assert.NoError(t, ks.Delete(Ref("ghost")))
}

func TestInMemoryKeystore(t *testing.T) {
	ks := NewInMemoryKeystore()
	ref, err := ks.Store("blacklister", " 0x"+testPrivKeyHex+" ")
	require.NoError(t, err)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
