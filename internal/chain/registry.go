package chain

import (
	"errors"
	"sort"
	"strings"
)

// ErrNetworkNotFound is returned when a network is not in the registry.
var ErrNetworkNotFound = errors.New("network not found")

// Network holds the metadata for one deployment target.
type Network struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	ChainID     int64    `json:"chain_id"`
	RPCs        []string `json:"rpcs"`
	Explorer    string   `json:"explorer,omitempty"`
	// Production networks require every role holder to be configured
	// explicitly.
	Production bool `json:"production"`
}

// DefaultRPC returns the first registered RPC endpoint.
func (n *Network) DefaultRPC() string {
	if len(n.RPCs) == 0 {
		return ""
	}
	return n.RPCs[0]
}

// Registry is the network registry.
type Registry struct {
	networks []Network
	byName   map[string]*Network
	byID     map[int64]*Network
}

// NewRegistry returns the registry of known networks.
func NewRegistry() *Registry {
	networks := allNetworks()
	r := &Registry{
		networks: networks,
		byName:   make(map[string]*Network, len(networks)),
		byID:     make(map[int64]*Network, len(networks)),
	}
	for i := range r.networks {
		n := &r.networks[i]
		r.byName[n.Name] = n
		if _, dup := r.byID[n.ChainID]; !dup {
			r.byID[n.ChainID] = n
		}
	}
	return r
}

// All returns every network sorted by name.
func (r *Registry) All() []Network {
	out := make([]Network, len(r.networks))
	copy(out, r.networks)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetByName finds a network by its slug name (e.g. "sepolia").
func (r *Registry) GetByName(name string) (*Network, error) {
	n, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// GetByChainID finds the first network registered for a chain ID.
func (r *Registry) GetByChainID(id int64) (*Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// IsProduction reports whether name is a production network. Unknown names
// are treated as non-production.
func (r *Registry) IsProduction(name string) bool {
	n, err := r.GetByName(name)
	return err == nil && n.Production
}

// --- network data ---

func allNetworks() []Network {
	return []Network{
		{
			Name: "development", DisplayName: "Local ganache", ChainID: 1337,
			RPCs: []string{"http://127.0.0.1:8545"},
		},
		{
			Name: "sepolia", DisplayName: "Ethereum Sepolia", ChainID: 11155111,
			RPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			Explorer: "https://sepolia.etherscan.io",
		},
		{
			Name: "mainnet", DisplayName: "Ethereum", ChainID: 1,
			RPCs:       []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			Explorer:   "https://etherscan.io",
			Production: true,
		},
		{
			Name: "production", DisplayName: "Ethereum (production alias)", ChainID: 1,
			RPCs:       []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			Explorer:   "https://etherscan.io",
			Production: true,
		},
	}
}
