package upgrade

import (
	"sort"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/ethereum/go-ethereum/common"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Probe is a read function called through the proxy to sample state.
type Probe struct {
	Function string
	Args     []string
	// From is the caller. It must not be the proxy admin.
	From common.Address
}

// Label identifies the probe in snapshots and reports, e.g.
// "balanceOf(0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1)".
func (p Probe) Label() string {
	return p.Function + "(" + strings.Join(p.Args, ",") + ")"
}

// Field is one captured probe result.
type Field struct {
	// Raw is the 0x-prefixed return data.
	Raw    string
	Values []string
}

// Value joins the decoded return values.
func (f Field) Value() string {
	return strings.Join(f.Values, ",")
}

// Snapshot holds probe results in capture order.
type Snapshot struct {
	fields *orderedmap.OrderedMap[string, Field]
}

func newSnapshot() *Snapshot {
	return &Snapshot{fields: orderedmap.New[string, Field]()}
}

func (s *Snapshot) set(label string, raw []byte, values []string) {
	s.fields.Set(label, Field{Raw: abicodec.Add0x(abicodec.ToHexString(raw)), Values: values})
}

// Get returns the field captured under label.
func (s *Snapshot) Get(label string) (Field, bool) {
	return s.fields.Get(label)
}

// Len returns the number of captured fields.
func (s *Snapshot) Len() int {
	return s.fields.Len()
}

// Labels returns every label in capture order.
func (s *Snapshot) Labels() []string {
	out := make([]string, 0, s.fields.Len())
	for p := s.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// TokenProbes samples the FiatToken V1 globals and, for every account, its
// balance, blacklist and minter state and the allowances between accounts.
func TokenProbes(accounts ...common.Address) []Probe {
	probes := []Probe{
		{Function: "name"},
		{Function: "symbol"},
		{Function: "currency"},
		{Function: "decimals"},
		{Function: "totalSupply"},
		{Function: "paused"},
		{Function: "owner"},
		{Function: "masterMinter"},
		{Function: "pauser"},
		{Function: "blacklister"},
	}
	for _, a := range accounts {
		probes = append(probes,
			Probe{Function: "balanceOf", Args: []string{a.Hex()}},
			Probe{Function: "isBlacklisted", Args: []string{a.Hex()}},
			Probe{Function: "isMinter", Args: []string{a.Hex()}},
			Probe{Function: "minterAllowance", Args: []string{a.Hex()}},
		)
	}
	for _, owner := range accounts {
		for _, spender := range accounts {
			if owner == spender {
				continue
			}
			probes = append(probes, Probe{Function: "allowance", Args: []string{owner.Hex(), spender.Hex()}})
		}
	}
	return probes
}

// NewFieldProbes samples the fields added by the V2 test implementation.
func NewFieldProbes() []Probe {
	return []Probe{{Function: "newBool"}, {Function: "newAddress"}, {Function: "newUint"}}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
