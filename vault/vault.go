// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vault is the pooled-yield facade. Depositors share the
// growth of an externally managed balance proportionally to their
// principal. Growth already distributed is tracked so a settlement
// never counts the same yield twice, and implausible balance readings
// trip the circuit breaker instead of minting entitlements.
package vault

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

var logger = log.WithContext("pkg", "vault")

// Transferrer moves funds between the vault and depositors, invoked
// strictly after state effects.
type Transferrer interface {
	TransferIn(from tera.Address, amount *big.Int) error
	TransferOut(to tera.Address, amount *big.Int) error
}

// Vault composes an external-income ledger with the policy guard.
type Vault struct {
	st     *state.State
	ledger *ledger.Ledger
	guard  *policy.Guard
	mover  Transferrer
}

// New creates a vault over the given balance source. staleness bounds
// the age of balance readings, deviationBPS the per-settlement growth
// considered plausible.
func New(addr tera.Address, st *state.State, guard *policy.Guard, source ledger.BalanceSource, mover Transferrer, staleness, deviationBPS uint64) *Vault {
	return &Vault{
		st:     st,
		ledger: ledger.New(addr, st, ledger.WithExternalSource(source, staleness, deviationBPS)),
		guard:  guard,
		mover:  mover,
	}
}

// Init establishes the yield stream.
func (v *Vault) Init(now uint64) error {
	return v.ledger.Init(now, nil)
}

func accountKey(participant tera.Address) tera.Bytes32 {
	return tera.BytesToBytes32(participant.Bytes())
}

func (v *Vault) run(fn func() error) error {
	checkpoint := v.st.NewCheckpoint()
	if err := fn(); err != nil {
		v.st.RevertTo(checkpoint)
		return err
	}
	return nil
}

// settleThenRun persists the settlement, including any breaker trip it
// observes, before opening the checkpoint. A denied operation reverts
// only its own effects; the trip stays on record until reset.
func (v *Vault) settleThenRun(now uint64, fn func() error) error {
	if err := v.ledger.Settle(now); err != nil {
		return err
	}
	return v.run(fn)
}

// Deposit adds principal for the participant.
func (v *Vault) Deposit(now uint64, participant tera.Address, amount *big.Int) error {
	return v.settleThenRun(now, func() error {
		if err := v.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := v.guard.UseAction(participant, now); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return errs.New(errs.InvalidAmount, "deposit amount must be positive")
		}
		acc, err := v.ledger.Account(accountKey(participant))
		if err != nil {
			return err
		}
		after := new(big.Int).Add(acc.Principal, amount)
		if err := v.guard.CheckAmountBounds(after); err != nil {
			return err
		}
		stream, err := v.ledger.Stream()
		if err != nil {
			return err
		}
		if err := v.guard.CheckCapacity(stream.TotalPrincipal, amount); err != nil {
			return err
		}
		if err := v.ledger.Deposit(now, accountKey(participant), amount); err != nil {
			return err
		}
		if err := v.mover.TransferIn(participant, amount); err != nil {
			return err
		}
		logger.Info("vault deposit", "participant", participant, "amount", amount)
		return nil
	})
}

// Withdraw removes principal after the lockup, counting against the
// daily allowance.
func (v *Vault) Withdraw(now uint64, participant tera.Address, amount *big.Int) error {
	return v.settleThenRun(now, func() error {
		if err := v.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := v.guard.UseAction(participant, now); err != nil {
			return err
		}
		acc, err := v.ledger.Account(accountKey(participant))
		if err != nil {
			return err
		}
		if err := v.guard.CheckLockup(now, acc.OpenedAt); err != nil {
			return err
		}
		if err := v.guard.UseAllowance(participant, now, amount); err != nil {
			return err
		}
		if err := v.ledger.Withdraw(now, accountKey(participant), amount); err != nil {
			return err
		}
		if err := v.mover.TransferOut(participant, amount); err != nil {
			return err
		}
		logger.Info("vault withdrawal", "participant", participant, "amount", amount)
		return nil
	})
}

// ClaimYield pays out the participant's share of distributed growth.
func (v *Vault) ClaimYield(now uint64, participant tera.Address) (*big.Int, error) {
	var claimed *big.Int
	err := v.settleThenRun(now, func() error {
		if err := v.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := v.guard.UseAction(participant, now); err != nil {
			return err
		}
		amount, err := v.ledger.Claim(now, accountKey(participant))
		if err != nil {
			return err
		}
		if err := v.guard.UseAllowance(participant, now, amount); err != nil {
			return err
		}
		if err := v.mover.TransferOut(participant, amount); err != nil {
			return err
		}
		claimed = amount
		logger.Info("yield claimed", "participant", participant, "amount", amount)
		return nil
	})
	return claimed, err
}

// Harvest reads the external balance and distributes any new growth.
// Called from the settlement scheduler.
func (v *Vault) Harvest(now uint64) error {
	return v.run(func() error {
		return v.ledger.Settle(now)
	})
}

// Pending reports the participant's settled, unclaimed yield. Growth
// not yet harvested is not included; a view never consults the
// external source.
func (v *Vault) Pending(now uint64, participant tera.Address) (*big.Int, error) {
	return v.ledger.PendingEntitlement(now, accountKey(participant))
}

// AccountOf returns the participant's ledger account.
func (v *Vault) AccountOf(participant tera.Address) (*ledger.Account, error) {
	return v.ledger.Account(accountKey(participant))
}

// Stream returns the vault's stream record, including the breaker
// flag and distributed yield to date.
func (v *Vault) Stream() (*ledger.Stream, error) {
	return v.ledger.Stream()
}

// ResetBreaker rearms a tripped circuit breaker. Requires
// CapBreakerReset; the operator is expected to have reconciled the
// external balance first.
func (v *Vault) ResetBreaker(caller tera.Address) error {
	return v.run(func() error {
		if err := v.guard.Require(caller, policy.CapBreakerReset); err != nil {
			return err
		}
		if err := v.ledger.ResetBreaker(); err != nil {
			return err
		}
		logger.Warn("vault breaker reset", "caller", caller)
		return nil
	})
}

// SetPaused pauses or resumes mutations. Requires CapPause.
func (v *Vault) SetPaused(caller tera.Address, paused bool) error {
	return v.run(func() error {
		if err := v.guard.Require(caller, policy.CapPause); err != nil {
			return err
		}
		if err := v.ledger.SetPaused(paused); err != nil {
			return err
		}
		logger.Warn("vault pause state changed", "caller", caller, "paused", paused)
		return nil
	})
}

// Ledger exposes the underlying ledger for read paths.
func (v *Vault) Ledger() *ledger.Ledger {
	return v.ledger
}
