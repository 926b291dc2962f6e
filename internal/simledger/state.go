package simledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// tokenState is the FiatToken storage layout. It lives at whichever address
// the code executes against: the proxy for delegated calls.
type tokenState struct {
	initialized bool

	name     string
	symbol   string
	currency string
	decimals uint8

	owner        common.Address
	masterMinter common.Address
	pauser       common.Address
	blacklister  common.Address
	paused       bool

	totalSupply   *big.Int
	balances      map[common.Address]*big.Int
	allowed       map[common.Address]map[common.Address]*big.Int
	minters       map[common.Address]bool
	minterAllowed map[common.Address]*big.Int
	blacklisted   map[common.Address]bool

	// Fields introduced by the upgraded implementation.
	initializedV2 bool
	newBool       bool
	newAddress    common.Address
	newUint       *big.Int
}

func newTokenState() *tokenState {
	return &tokenState{
		totalSupply:   new(big.Int),
		balances:      make(map[common.Address]*big.Int),
		allowed:       make(map[common.Address]map[common.Address]*big.Int),
		minters:       make(map[common.Address]bool),
		minterAllowed: make(map[common.Address]*big.Int),
		blacklisted:   make(map[common.Address]bool),
		newUint:       new(big.Int),
	}
}

func (s *tokenState) clone() *tokenState {
	c := *s
	c.totalSupply = new(big.Int).Set(s.totalSupply)
	c.newUint = new(big.Int).Set(s.newUint)

	c.balances = make(map[common.Address]*big.Int, len(s.balances))
	for k, v := range s.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	c.allowed = make(map[common.Address]map[common.Address]*big.Int, len(s.allowed))
	for owner, m := range s.allowed {
		inner := make(map[common.Address]*big.Int, len(m))
		for spender, v := range m {
			inner[spender] = new(big.Int).Set(v)
		}
		c.allowed[owner] = inner
	}
	c.minters = make(map[common.Address]bool, len(s.minters))
	for k, v := range s.minters {
		c.minters[k] = v
	}
	c.minterAllowed = make(map[common.Address]*big.Int, len(s.minterAllowed))
	for k, v := range s.minterAllowed {
		c.minterAllowed[k] = new(big.Int).Set(v)
	}
	c.blacklisted = make(map[common.Address]bool, len(s.blacklisted))
	for k, v := range s.blacklisted {
		c.blacklisted[k] = v
	}
	return &c
}

func (s *tokenState) balanceOf(a common.Address) *big.Int {
	if b, ok := s.balances[a]; ok {
		return b
	}
	return new(big.Int)
}

func (s *tokenState) allowance(owner, spender common.Address) *big.Int {
	if v, ok := s.allowed[owner][spender]; ok {
		return v
	}
	return new(big.Int)
}

func (s *tokenState) setAllowance(owner, spender common.Address, v *big.Int) {
	if s.allowed[owner] == nil {
		s.allowed[owner] = make(map[common.Address]*big.Int)
	}
	s.allowed[owner][spender] = v
}

func (s *tokenState) minterAllowance(m common.Address) *big.Int {
	if v, ok := s.minterAllowed[m]; ok {
		return v
	}
	return new(big.Int)
}

// proxyState is the admin slot and implementation slot of a transparent
// proxy.
type proxyState struct {
	admin          common.Address
	implementation common.Address
}

// account is one deployed contract.
type account struct {
	version Version
	proxy   *proxyState
	storage *tokenState
}

func (a *account) clone() *account {
	c := &account{version: a.version, storage: a.storage.clone()}
	if a.proxy != nil {
		p := *a.proxy
		c.proxy = &p
	}
	return c
}
