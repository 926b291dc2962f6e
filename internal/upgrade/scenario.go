package upgrade

import (
	"context"
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Scenario is the end-to-end upgrade exercise: mint to A, move everything
// to B, touch approve, blacklist and pause, then upgrade to the V2 test
// implementation with initV2(true, pauser, 12).
type Scenario struct {
	Proxy             common.Address
	NewImplementation common.Address

	Admin        common.Address
	MasterMinter common.Address
	Pauser       common.Address
	Blacklister  common.Address

	Minter   common.Address
	AccountA common.Address
	AccountB common.Address
	// Blacklisted is blacklisted during the mutation phase.
	Blacklisted common.Address

	// Amount is the raw amount minted to A. Defaults to 50.
	Amount string
	// NewUint is the initV2 uint argument. Defaults to 12.
	NewUint string
}

// ScenarioResult carries every intermediate artefact of a run.
type ScenarioResult struct {
	Access *AccessReport
	Pre    *Snapshot
	Post   *Snapshot
	Report *Report
}

func (s *Scenario) setDefaults() {
	if s.Amount == "" {
		s.Amount = "50"
	}
	if s.NewUint == "" {
		s.NewUint = "12"
	}
}

func (s *Scenario) operations() []Operation {
	bal := func(a common.Address) Probe { return Probe{Function: "balanceOf", Args: []string{a.Hex()}} }
	return []Operation{
		{From: s.MasterMinter, Function: "configureMinter", Args: []string{s.Minter.Hex(), s.Amount},
			Expect: []Expectation{{Probe{Function: "minterAllowance", Args: []string{s.Minter.Hex()}}, s.Amount}}},
		{From: s.Minter, Function: "mint", Args: []string{s.AccountA.Hex(), s.Amount},
			Expect: []Expectation{{bal(s.AccountA), s.Amount}, {Probe{Function: "totalSupply"}, s.Amount}}},
		{From: s.AccountA, Function: "transfer", Args: []string{s.AccountB.Hex(), s.Amount},
			Expect: []Expectation{{bal(s.AccountA), "0"}, {bal(s.AccountB), s.Amount}}},
		{From: s.AccountB, Function: "approve", Args: []string{s.AccountA.Hex(), s.Amount},
			Expect: []Expectation{{Probe{Function: "allowance", Args: []string{s.AccountB.Hex(), s.AccountA.Hex()}}, s.Amount}}},
		{From: s.Blacklister, Function: "blacklist", Args: []string{s.Blacklisted.Hex()},
			Expect: []Expectation{{Probe{Function: "isBlacklisted", Args: []string{s.Blacklisted.Hex()}}, "true"}}},
		{From: s.Pauser, Function: "pause",
			Expect: []Expectation{{Probe{Function: "paused"}, "true"}}},
		{From: s.Pauser, Function: "unpause",
			Expect: []Expectation{{Probe{Function: "paused"}, "false"}}},
	}
}

// RunScenario runs the scenario against a freshly deployed and initialized
// proxy. It checks access control before and after the upgrade, then
// verifies the post-upgrade state.
func RunScenario(ctx context.Context, backend Backend, sc Scenario, log logrus.FieldLogger) (*ScenarioResult, error) {
	sc.setDefaults()
	v1 := contract.MustBuiltinInterface(contract.BuiltinFiatToken)
	v2 := contract.MustBuiltinInterface(contract.BuiltinFiatTokenV2)

	v := New(backend, sc.Proxy, v1, log)
	res := &ScenarioResult{}
	access := AccessParams{Admin: sc.Admin, NonAdmin: sc.AccountA, Candidate: sc.NewImplementation}

	var err error
	if res.Access, err = v.CheckAccessControl(ctx, access); err != nil {
		return res, fmt.Errorf("before upgrade: %w", err)
	}
	if err := v.Mutate(ctx, sc.operations()); err != nil {
		return res, err
	}

	accounts := []common.Address{sc.Minter, sc.AccountA, sc.AccountB, sc.Blacklisted}
	if res.Pre, err = v.Capture(ctx, TokenProbes(accounts...)); err != nil {
		return res, err
	}

	init, err := calldata.NewEncoder(v2).EncodeBytes("initV2", "true", sc.Pauser.Hex(), sc.NewUint)
	if err != nil {
		return res, err
	}
	err = v.Upgrade(ctx, sc.Admin, Transition{
		Proxy:             sc.Proxy,
		NewImplementation: sc.NewImplementation,
		InitCall:          init,
		Interface:         v2,
	})
	if err != nil {
		return res, err
	}

	probes := append(TokenProbes(accounts...), NewFieldProbes()...)
	if res.Post, err = v.Capture(ctx, probes); err != nil {
		return res, err
	}
	res.Report, err = Verify(res.Pre, res.Post, map[string]string{
		"newBool()":    "true",
		"newAddress()": sc.Pauser.Hex(),
		"newUint()":    sc.NewUint,
	})
	if err != nil {
		return res, err
	}

	// The rejected paths must still be rejected by the new implementation.
	after, err := v.CheckAccessControl(ctx, access)
	if err != nil {
		return res, fmt.Errorf("after upgrade: %w", err)
	}
	res.Access.Checks = append(res.Access.Checks, after.Checks...)
	return res, nil
}
