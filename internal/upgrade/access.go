package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Check is the outcome of one rejected-path probe.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// AccessReport lists the access control checks in the order they ran.
type AccessReport struct {
	Checks []Check
}

// OK reports whether every check passed.
func (r *AccessReport) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r *AccessReport) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// AccessParams names the accounts and contracts the checks use.
type AccessParams struct {
	Admin    common.Address
	NonAdmin common.Address
	// Candidate is a deployed implementation the rejected upgrades target.
	Candidate common.Address
	// RevertingInit is an initializer that must revert. Defaults to
	// transferOwnership(address(0)).
	RevertingInit []byte
}

// CheckAccessControl verifies that the proxy rejects every privileged path
// it must reject and that none of the attempts moved implementation(). It
// never leaves state behind when the proxy behaves. Any unexpected success
// is reported as a failed check and ErrAccessControl.
func (v *Verifier) CheckAccessControl(ctx context.Context, p AccessParams) (*AccessReport, error) {
	before, err := v.Implementation(ctx, p.Admin)
	if err != nil {
		return nil, err
	}

	init := p.RevertingInit
	if len(init) == 0 {
		if init, err = calldata.NewEncoder(v.token).EncodeBytes("transferOwnership", common.Address{}.Hex()); err != nil {
			return nil, err
		}
	}

	upgradeTo, err := v.upgradeCall(p.Candidate, nil)
	if err != nil {
		return nil, err
	}
	toZero, err := v.upgradeCall(common.Address{}, nil)
	if err != nil {
		return nil, err
	}
	withInit, err := v.upgradeCall(p.Candidate, init)
	if err != nil {
		return nil, err
	}
	business, err := calldata.NewEncoder(v.token).EncodeBytes("totalSupply")
	if err != nil {
		return nil, err
	}
	adminSel, err := calldata.NewEncoder(v.proxyIface).EncodeBytes("admin")
	if err != nil {
		return nil, err
	}
	implSel, err := calldata.NewEncoder(v.proxyIface).EncodeBytes("implementation")
	if err != nil {
		return nil, err
	}

	steps := []struct {
		name  string
		write bool
		from  common.Address
		data  []byte
	}{
		{"non-admin upgrade is rejected", true, p.NonAdmin, upgradeTo},
		{"upgrade to the zero address is rejected", true, p.Admin, toZero},
		{"reverting initializer rolls the upgrade back", true, p.Admin, withInit},
		{"admin cannot reach business functions", false, p.Admin, business},
		{"non-admin cannot read admin()", false, p.NonAdmin, adminSel},
		{"non-admin cannot read implementation()", false, p.NonAdmin, implSel},
	}

	report := &AccessReport{}
	for _, s := range steps {
		if s.write {
			err = v.backend.Transact(ctx, s.from, v.proxy, s.data)
		} else {
			_, err = v.backend.Call(ctx, s.from, v.proxy, s.data)
		}

		c := Check{Name: s.name}
		switch {
		case err == nil:
			c.Detail = "call succeeded"
		case errors.Is(err, chain.ErrReverted):
			c.Passed = true
			c.Detail = err.Error()
		default:
			return report, fmt.Errorf("%s: %w", s.name, err)
		}

		if s.write {
			after, err := v.Implementation(ctx, p.Admin)
			if err != nil {
				return report, err
			}
			if after != before {
				c.Passed = false
				c.Detail = fmt.Sprintf("implementation() moved from %s to %s", before.Hex(), after.Hex())
			}
		}

		v.log.WithFields(logrus.Fields{"check": c.Name, "passed": c.Passed}).Debug("Access control check")
		report.Checks = append(report.Checks, c)
	}

	if !report.OK() {
		failed := report.Failed()
		return report, fmt.Errorf("%w: %d check(s) failed, first %q: %s",
			ErrAccessControl, len(failed), failed[0].Name, failed[0].Detail)
	}
	return report, nil
}
