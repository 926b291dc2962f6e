package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRoleConfig is returned when a production network is targeted
	// without every role holder set.
	ErrMissingRoleConfig = errors.New("missing role configuration")
	// ErrInvalidRoleAddress is returned when a role holder is not an address.
	ErrInvalidRoleAddress = errors.New("invalid role address")
)

// Roles are the accounts a token deployment assigns.
type Roles struct {
	ProxyAdmin   common.Address
	Owner        common.Address
	MasterMinter common.Address
	Pauser       common.Address
	Blacklister  common.Address
	LostAndFound common.Address
}

// Role describes one role holder setting.
type Role struct {
	Key      string // viper key, also the roles.<key> entry in stablecoin.yaml
	Env      string
	Fallback common.Address // well-known ganache account used off production
	field    func(*Roles) *common.Address
}

// RoleSettings lists the role holders in deployment order.
var RoleSettings = []Role{
	{"roles.proxyAdmin", "PROXY_ADMIN_ADDRESS", common.HexToAddress("0x2F560290FEF1B3Ada194b6aA9c40aa71f8e95598"),
		func(r *Roles) *common.Address { return &r.ProxyAdmin }},
	{"roles.owner", "OWNER_ADDRESS", common.HexToAddress("0xE11BA2b4D45Eaed5996Cd0823791E0C93114882d"),
		func(r *Roles) *common.Address { return &r.Owner }},
	{"roles.masterMinter", "MASTERMINTER_ADDRESS", common.HexToAddress("0x3E5e9111Ae8eB78Fe1CC3bb8915d5D461F3Ef9A9"),
		func(r *Roles) *common.Address { return &r.MasterMinter }},
	{"roles.pauser", "PAUSER_ADDRESS", common.HexToAddress("0xACa94ef8bD5ffEE41947b4585a84BdA5a3d3DA6E"),
		func(r *Roles) *common.Address { return &r.Pauser }},
	{"roles.blacklister", "BLACKLISTER_ADDRESS", common.HexToAddress("0xd03ea8624C8C5987235048901fB614fDcA89b117"),
		func(r *Roles) *common.Address { return &r.Blacklister }},
	{"roles.lostAndFound", "LOST_AND_FOUND_ADDRESS", common.HexToAddress("0x1dF62f291b2E969fB0849d99D9Ce41e2F137006e"),
		func(r *Roles) *common.Address { return &r.LostAndFound }},
}

// ResolveRoles reads the role holders for network. Production networks
// require every role to be set; the rest fall back to ganache accounts for
// any role left unset. It never touches the network.
func ResolveRoles(v *viper.Viper, network string, reg *chain.Registry) (*Roles, error) {
	production := reg.IsProduction(network)

	roles := &Roles{}
	var missing []string
	for _, r := range RoleSettings {
		if err := v.BindEnv(r.Key, r.Env); err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(v.GetString(r.Key))
		if raw == "" {
			if production {
				missing = append(missing, r.Env)
				continue
			}
			*r.field(roles) = r.Fallback
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidRoleAddress, r.Env, raw)
		}
		*r.field(roles) = common.HexToAddress(raw)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w for %s: set %s", ErrMissingRoleConfig, network, strings.Join(missing, ", "))
	}
	return roles, nil
}

// Each calls fn with every role's env name and resolved holder, in
// deployment order.
func (r *Roles) Each(fn func(env string, addr common.Address)) {
	for _, s := range RoleSettings {
		fn(s.Env, *s.field(r))
	}
}
