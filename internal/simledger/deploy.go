package simledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/ethereum/go-ethereum/common"
)

// Roles are the accounts a token deployment is wired with.
type Roles struct {
	ProxyAdmin   common.Address
	Owner        common.Address
	MasterMinter common.Address
	Pauser       common.Address
	Blacklister  common.Address
}

// TokenParams are the initialize arguments besides the roles.
type TokenParams struct {
	Name     string
	Symbol   string
	Currency string
	Decimals uint8
}

// DefaultTokenParams mirrors the USD Coin deployment.
var DefaultTokenParams = TokenParams{Name: "USD//C", Symbol: "USDC", Currency: "USD", Decimals: 6}

// Token is a deployed proxy and its first implementation.
type Token struct {
	Proxy          common.Address
	Implementation common.Address
}

// DeployToken deploys a V1 implementation and a proxy from the proxy admin,
// then initializes the token through the proxy from the owner.
func (l *Ledger) DeployToken(ctx context.Context, roles Roles, params TokenParams) (Token, error) {
	impl := l.Deploy(roles.ProxyAdmin, VersionV1)
	proxy, err := l.DeployProxy(roles.ProxyAdmin, impl)
	if err != nil {
		return Token{}, err
	}

	data, err := calldata.NewEncoder(VersionV1.iface()).EncodeBytes("initialize",
		params.Name, params.Symbol, params.Currency, strconv.Itoa(int(params.Decimals)),
		roles.MasterMinter.Hex(), roles.Pauser.Hex(), roles.Blacklister.Hex(), roles.Owner.Hex(),
	)
	if err != nil {
		return Token{}, fmt.Errorf("encoding initialize: %w", err)
	}
	if err := l.Transact(ctx, roles.Owner, proxy, data); err != nil {
		return Token{}, fmt.Errorf("initializing token at %s: %w", proxy.Hex(), err)
	}
	return Token{Proxy: proxy, Implementation: impl}, nil
}
