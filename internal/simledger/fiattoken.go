package simledger

import (
	"math/big"
	"strconv"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
)

// tokenCall is one FiatToken function invocation against a storage slot set.
type tokenCall struct {
	st      *tokenState
	version Version
	iface   *contract.Interface
	self    common.Address
	sender  common.Address
	logs    []chain.LogEntry
}

func execToken(v Version, st *tokenState, self, sender common.Address, data []byte) ([]byte, []chain.LogEntry, error) {
	iface := v.iface()
	fn, args, err := decodeCall(iface, data)
	if err != nil {
		return nil, nil, err
	}

	t := &tokenCall{st: st, version: v, iface: iface, self: self, sender: sender}
	values, err := t.run(fn.Name, args)
	if err != nil {
		return nil, nil, err
	}
	out, _, err := encodeReturn(fn, values...)
	if err != nil {
		return nil, nil, err
	}
	return out, t.logs, nil
}

func (t *tokenCall) emit(name string, values ...string) error {
	lg, err := newLog(t.iface, t.self, name, values...)
	if err != nil {
		return err
	}
	t.logs = append(t.logs, lg)
	return nil
}

func addr(v interface{}) common.Address { return v.(common.Address) }
func amount(v interface{}) *big.Int      { return v.(*big.Int) }

func boolString(b bool) string { return strconv.FormatBool(b) }

var zeroAddress common.Address

func (t *tokenCall) run(name string, args []interface{}) ([]string, error) {
	st := t.st

	switch name {
	// --- views ---
	case "name":
		return []string{st.name}, nil
	case "symbol":
		return []string{st.symbol}, nil
	case "currency":
		return []string{st.currency}, nil
	case "decimals":
		return []string{strconv.Itoa(int(st.decimals))}, nil
	case "totalSupply":
		return []string{st.totalSupply.String()}, nil
	case "balanceOf":
		return []string{st.balanceOf(addr(args[0])).String()}, nil
	case "allowance":
		return []string{st.allowance(addr(args[0]), addr(args[1])).String()}, nil
	case "isMinter":
		return []string{boolString(st.minters[addr(args[0])])}, nil
	case "minterAllowance":
		return []string{st.minterAllowance(addr(args[0])).String()}, nil
	case "isBlacklisted":
		return []string{boolString(st.blacklisted[addr(args[0])])}, nil
	case "paused":
		return []string{boolString(st.paused)}, nil
	case "owner":
		return []string{st.owner.Hex()}, nil
	case "masterMinter":
		return []string{st.masterMinter.Hex()}, nil
	case "pauser":
		return []string{st.pauser.Hex()}, nil
	case "blacklister":
		return []string{st.blacklister.Hex()}, nil
	case "newBool":
		return []string{boolString(st.newBool)}, nil
	case "newAddress":
		return []string{st.newAddress.Hex()}, nil
	case "newUint":
		return []string{st.newUint.String()}, nil

	// --- initializers ---
	case "initialize":
		return nil, t.initialize(args)
	case "initV2":
		if st.initializedV2 {
			return nil, revert("contract is already initialized")
		}
		st.initializedV2 = true
		st.newBool = args[0].(bool)
		st.newAddress = addr(args[1])
		st.newUint = new(big.Int).Set(amount(args[2]))
		return nil, nil

	// --- minting ---
	case "configureMinter":
		if err := t.requireMasterMinter(); err != nil {
			return nil, err
		}
		if err := t.whenNotPaused(); err != nil {
			return nil, err
		}
		minter, allowance := addr(args[0]), amount(args[1])
		st.minters[minter] = true
		st.minterAllowed[minter] = new(big.Int).Set(allowance)
		return []string{"true"}, t.emit("MinterConfigured", minter.Hex(), allowance.String())

	case "removeMinter":
		if err := t.requireMasterMinter(); err != nil {
			return nil, err
		}
		minter := addr(args[0])
		st.minters[minter] = false
		st.minterAllowed[minter] = new(big.Int)
		return []string{"true"}, t.emit("MinterRemoved", minter.Hex())

	case "mint":
		return t.mint(addr(args[0]), amount(args[1]))

	case "burn":
		return nil, t.burn(amount(args[0]))

	// --- transfers ---
	case "transfer":
		if err := t.whenNotPaused(); err != nil {
			return nil, err
		}
		if err := t.notBlacklisted(t.sender, addr(args[0])); err != nil {
			return nil, err
		}
		return []string{"true"}, t.transfer(t.sender, addr(args[0]), amount(args[1]))

	case "approve":
		if err := t.whenNotPaused(); err != nil {
			return nil, err
		}
		spender, value := addr(args[0]), amount(args[1])
		if err := t.notBlacklisted(t.sender, spender); err != nil {
			return nil, err
		}
		st.setAllowance(t.sender, spender, new(big.Int).Set(value))
		return []string{"true"}, t.emit("Approval", t.sender.Hex(), spender.Hex(), value.String())

	case "transferFrom":
		if err := t.whenNotPaused(); err != nil {
			return nil, err
		}
		from, to, value := addr(args[0]), addr(args[1]), amount(args[2])
		if err := t.notBlacklisted(t.sender, from, to); err != nil {
			return nil, err
		}
		allowed := st.allowance(from, t.sender)
		if value.Cmp(allowed) > 0 {
			return nil, revert("FiatToken: transfer amount exceeds allowance")
		}
		if err := t.transfer(from, to, value); err != nil {
			return nil, err
		}
		st.setAllowance(from, t.sender, new(big.Int).Sub(allowed, value))
		return []string{"true"}, nil

	// --- pausing ---
	case "pause", "unpause":
		if t.sender != st.pauser {
			return nil, revert("Pausable: caller is not the pauser")
		}
		st.paused = name == "pause"
		event := "Unpause"
		if st.paused {
			event = "Pause"
		}
		return nil, t.emit(event)

	// --- blacklisting ---
	case "blacklist", "unBlacklist":
		if t.sender != st.blacklister {
			return nil, revert("Blacklistable: caller is not the blacklister")
		}
		account := addr(args[0])
		st.blacklisted[account] = name == "blacklist"
		event := "UnBlacklisted"
		if name == "blacklist" {
			event = "Blacklisted"
		}
		return nil, t.emit(event, account.Hex())

	// --- role management ---
	case "updatePauser":
		return nil, t.updateRole(&st.pauser, addr(args[0]), "pauser", "PauserChanged")
	case "updateBlacklister":
		return nil, t.updateRole(&st.blacklister, addr(args[0]), "blacklister", "BlacklisterChanged")
	case "updateMasterMinter":
		return nil, t.updateRole(&st.masterMinter, addr(args[0]), "masterMinter", "MasterMinterChanged")
	case "transferOwnership":
		if err := t.requireOwner(); err != nil {
			return nil, err
		}
		newOwner := addr(args[0])
		if newOwner == zeroAddress {
			return nil, revert("Ownable: new owner is the zero address")
		}
		prev := st.owner
		st.owner = newOwner
		return nil, t.emit("OwnershipTransferred", prev.Hex(), newOwner.Hex())
	}

	return nil, revert("%s is not implemented by %s", name, t.version)
}

func (t *tokenCall) initialize(args []interface{}) error {
	st := t.st
	if st.initialized {
		return revert("FiatToken: contract is already initialized")
	}
	masterMinter, pauser, blacklister, owner := addr(args[4]), addr(args[5]), addr(args[6]), addr(args[7])
	roles := []struct {
		name string
		addr common.Address
	}{
		{"masterMinter", masterMinter}, {"pauser", pauser}, {"blacklister", blacklister}, {"owner", owner},
	}
	for _, r := range roles {
		if r.addr == zeroAddress {
			return revert("FiatToken: new %s is the zero address", r.name)
		}
	}

	decimals := amount(args[3])
	if !decimals.IsUint64() || decimals.Uint64() > 255 {
		return revert("FiatToken: decimals out of range")
	}

	st.name = args[0].(string)
	st.symbol = args[1].(string)
	st.currency = args[2].(string)
	st.decimals = uint8(decimals.Uint64())
	st.masterMinter = masterMinter
	st.pauser = pauser
	st.blacklister = blacklister
	st.owner = owner
	st.initialized = true
	return nil
}

func (t *tokenCall) mint(to common.Address, value *big.Int) ([]string, error) {
	st := t.st
	if err := t.whenNotPaused(); err != nil {
		return nil, err
	}
	if !st.minters[t.sender] {
		return nil, revert("FiatToken: caller is not a minter")
	}
	if err := t.notBlacklisted(t.sender, to); err != nil {
		return nil, err
	}
	if to == zeroAddress {
		return nil, revert("FiatToken: mint to the zero address")
	}
	if value.Sign() <= 0 {
		return nil, revert("FiatToken: mint amount not greater than 0")
	}
	allowance := st.minterAllowance(t.sender)
	if value.Cmp(allowance) > 0 {
		return nil, revert("FiatToken: mint amount exceeds minterAllowance")
	}

	st.totalSupply = new(big.Int).Add(st.totalSupply, value)
	st.balances[to] = new(big.Int).Add(st.balanceOf(to), value)
	st.minterAllowed[t.sender] = new(big.Int).Sub(allowance, value)

	if err := t.emit("Mint", t.sender.Hex(), to.Hex(), value.String()); err != nil {
		return nil, err
	}
	return []string{"true"}, t.emit("Transfer", zeroAddress.Hex(), to.Hex(), value.String())
}

func (t *tokenCall) burn(value *big.Int) error {
	st := t.st
	if err := t.whenNotPaused(); err != nil {
		return err
	}
	if !st.minters[t.sender] {
		return revert("FiatToken: caller is not a minter")
	}
	if err := t.notBlacklisted(t.sender); err != nil {
		return err
	}
	balance := st.balanceOf(t.sender)
	if value.Sign() <= 0 {
		return revert("FiatToken: burn amount not greater than 0")
	}
	if value.Cmp(balance) > 0 {
		return revert("FiatToken: burn amount exceeds balance")
	}

	st.totalSupply = new(big.Int).Sub(st.totalSupply, value)
	st.balances[t.sender] = new(big.Int).Sub(balance, value)

	if err := t.emit("Burn", t.sender.Hex(), value.String()); err != nil {
		return err
	}
	return t.emit("Transfer", t.sender.Hex(), zeroAddress.Hex(), value.String())
}

func (t *tokenCall) transfer(from, to common.Address, value *big.Int) error {
	st := t.st
	if to == zeroAddress {
		return revert("FiatToken: transfer to the zero address")
	}
	balance := st.balanceOf(from)
	if value.Cmp(balance) > 0 {
		return revert("FiatToken: transfer amount exceeds balance")
	}
	st.balances[from] = new(big.Int).Sub(balance, value)
	st.balances[to] = new(big.Int).Add(st.balanceOf(to), value)
	return t.emit("Transfer", from.Hex(), to.Hex(), value.String())
}

func (t *tokenCall) updateRole(slot *common.Address, next common.Address, role, event string) error {
	if err := t.requireOwner(); err != nil {
		return err
	}
	if next == zeroAddress {
		return revert("FiatToken: new %s is the zero address", role)
	}
	*slot = next
	return t.emit(event, next.Hex())
}

func (t *tokenCall) whenNotPaused() error {
	if t.st.paused {
		return revert("Pausable: paused")
	}
	return nil
}

func (t *tokenCall) notBlacklisted(accounts ...common.Address) error {
	for _, a := range accounts {
		if t.st.blacklisted[a] {
			return revert("Blacklistable: account %s is blacklisted", a.Hex())
		}
	}
	return nil
}

func (t *tokenCall) requireOwner() error {
	if t.sender != t.st.owner {
		return revert("Ownable: caller is not the owner")
	}
	return nil
}

func (t *tokenCall) requireMasterMinter() error {
	if t.sender != t.st.masterMinter {
		return revert("FiatToken: caller is not the masterMinter")
	}
	return nil
}
