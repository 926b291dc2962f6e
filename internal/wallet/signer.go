package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNoKey is returned when asked to sign for an address without a key.
	ErrNoKey = errors.New("no signing key for address")
	// ErrInvalidKey is returned for keys that are not secp256k1 private keys.
	ErrInvalidKey = errors.New("invalid private key")
)

// Signer holds role keys and signs transactions for their addresses.
type Signer struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewSigner creates an empty Signer.
func NewSigner() *Signer {
	return &Signer{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

// AddKey registers a hex private key and returns its address.
func (s *Signer) AddKey(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	s.keys[addr] = key
	s.mu.Unlock()
	return addr, nil
}

// Load retrieves the keys stored under names and registers them. It returns
// the address each name resolved to.
func (s *Signer) Load(ks KeyStore, names ...string) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(names))
	for _, name := range names {
		hexKey, err := ks.Retrieve(Ref(name))
		if err != nil {
			return nil, fmt.Errorf("retrieving %s key: %w", name, err)
		}
		addr, err := s.AddKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("%s key: %w", name, err)
		}
		out[name] = addr
	}
	return out, nil
}

// Has reports whether a key is held for addr.
func (s *Signer) Has(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[addr]
	return ok
}

// Addresses returns every address a key is held for, sorted.
func (s *Signer) Addresses() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Address, 0, len(s.keys))
	for a := range s.keys {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// SignTx signs tx as from for chainID.
func (s *Signer) SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	key, ok := s.keys[from]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoKey, from.Hex())
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}
