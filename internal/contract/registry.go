package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrContractNotFound is returned when a deployment is not registered.
var ErrContractNotFound = errors.New("contract not found")

// Entry is one recorded deployment of a contract on a network.
type Entry struct {
	Name    string `json:"name"`
	Network string `json:"network"`
	Address string `json:"address"`
	// DeployedBlock is the block the contract was created in; scans that are
	// not given a start block begin here.
	DeployedBlock uint64 `json:"deployedBlock,omitempty"`
	// Artifact names the compiled artifact (<artifactsDir>/<Artifact>.json)
	// holding the interface. Defaults to Name.
	Artifact string `json:"artifact,omitempty"`
}

// ArtifactName returns the artifact the entry's interface is loaded from.
func (e *Entry) ArtifactName() string {
	if e.Artifact != "" {
		return e.Artifact
	}
	return e.Name
}

// Registry stores and retrieves deployment entries.
type Registry struct {
	path      string
	contracts map[string]*Entry // key: "name@network"
}

// NewRegistry creates a Registry backed by a JSON file.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:      path,
		contracts: make(map[string]*Entry),
	}
}

// Load reads stored deployments from disk. A missing file is an empty registry.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing deployment registry %s: %w", r.path, err)
	}

	for i := range entries {
		e := &entries[i]
		r.contracts[key(e.Name, e.Network)] = e
	}
	return nil
}

// Save writes all deployments to disk, sorted for stable diffs.
func (r *Registry) Save() error {
	entries := make([]Entry, 0, len(r.contracts))
	for _, e := range r.All() {
		entries = append(entries, *e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}

// Add adds or updates a deployment. The address must be a valid 20-byte hex
// address; it is stored checksummed.
func (r *Registry) Add(e *Entry) error {
	if !common.IsHexAddress(e.Address) {
		return fmt.Errorf("invalid address %q for %s on %s", e.Address, e.Name, e.Network)
	}
	e.Address = common.HexToAddress(e.Address).Hex()
	r.contracts[key(e.Name, e.Network)] = e
	return nil
}

// Get returns a deployment by name and network.
func (r *Registry) Get(name, network string) (*Entry, error) {
	e, ok := r.contracts[key(name, network)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotFound, name, network)
	}
	return e, nil
}

// GetByName returns all deployments of a contract across networks.
func (r *Registry) GetByName(name string) []*Entry {
	var out []*Entry
	for _, e := range r.All() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// All returns every deployment sorted by name, then network.
func (r *Registry) All() []*Entry {
	out := make([]*Entry, 0, len(r.contracts))
	for _, e := range r.contracts {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Network < out[j].Network
	})
	return out
}

// Remove deletes a deployment.
func (r *Registry) Remove(name, network string) error {
	k := key(name, network)
	if _, ok := r.contracts[k]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrContractNotFound, name, network)
	}
	delete(r.contracts, k)
	return nil
}

func key(name, network string) string {
	return name + "@" + network
}
