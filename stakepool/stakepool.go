// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakepool is the shared-rate pool facade. Each participant
// holds one account keyed by their address; the pool's fixed reward
// rate is split across principals proportionally by the ledger.
//
// Every mutation follows the same shape: policy checks first, ledger
// effects second, the external fund transfer strictly last. The whole
// sequence runs under a state checkpoint, so a failure at any phase
// leaves no partial writes behind.
package stakepool

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

var logger = log.WithContext("pkg", "stakepool")

// Transferrer moves funds between the pool and the outside world. It
// is invoked only after all state effects succeeded; an error reverts
// them.
type Transferrer interface {
	TransferIn(from tera.Address, amount *big.Int) error
	TransferOut(to tera.Address, amount *big.Int) error
}

// Pool composes the ledger and the policy guard for one staking pool.
type Pool struct {
	st     *state.State
	ledger *ledger.Ledger
	guard  *policy.Guard
	mover  Transferrer
}

// New creates a pool facade. Ledger and guard share the pool address;
// their slots do not collide.
func New(addr tera.Address, st *state.State, guard *policy.Guard, mover Transferrer) *Pool {
	return &Pool{
		st:     st,
		ledger: ledger.New(addr, st),
		guard:  guard,
		mover:  mover,
	}
}

// Init establishes the reward stream.
func (p *Pool) Init(now uint64, rate *big.Int) error {
	return p.ledger.Init(now, rate)
}

// Ledger exposes the underlying ledger for read paths.
func (p *Pool) Ledger() *ledger.Ledger {
	return p.ledger
}

func accountKey(participant tera.Address) tera.Bytes32 {
	return tera.BytesToBytes32(participant.Bytes())
}

// run executes fn under a checkpoint and reverts every state write if
// it fails.
func (p *Pool) run(fn func() error) error {
	checkpoint := p.st.NewCheckpoint()
	if err := fn(); err != nil {
		p.st.RevertTo(checkpoint)
		return err
	}
	return nil
}

// Stake adds principal for the participant. The resulting principal
// must stay within the configured bounds and pool capacity. Funds are
// pulled in only after the ledger accepted the deposit.
func (p *Pool) Stake(now uint64, participant tera.Address, amount *big.Int) error {
	return p.run(func() error {
		if err := p.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := p.guard.UseAction(participant, now); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return errs.New(errs.InvalidAmount, "stake amount must be positive")
		}
		acc, err := p.ledger.Account(accountKey(participant))
		if err != nil {
			return err
		}
		after := new(big.Int).Add(acc.Principal, amount)
		if err := p.guard.CheckAmountBounds(after); err != nil {
			return err
		}
		stream, err := p.ledger.Stream()
		if err != nil {
			return err
		}
		if err := p.guard.CheckCapacity(stream.TotalPrincipal, amount); err != nil {
			return err
		}
		if err := p.ledger.Deposit(now, accountKey(participant), amount); err != nil {
			return err
		}
		if err := p.mover.TransferIn(participant, amount); err != nil {
			return err
		}
		logger.Info("stake accepted", "participant", participant, "amount", amount)
		return nil
	})
}

// Unstake removes principal. The lockup must have expired and the
// amount counts against the participant's daily allowance. A partial
// unstake may not leave the principal below the minimum.
func (p *Pool) Unstake(now uint64, participant tera.Address, amount *big.Int) error {
	return p.run(func() error {
		if err := p.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := p.guard.UseAction(participant, now); err != nil {
			return err
		}
		acc, err := p.ledger.Account(accountKey(participant))
		if err != nil {
			return err
		}
		if err := p.guard.CheckLockup(now, acc.OpenedAt); err != nil {
			return err
		}
		if err := p.guard.UseAllowance(participant, now, amount); err != nil {
			return err
		}
		if err := p.ledger.Withdraw(now, accountKey(participant), amount); err != nil {
			return err
		}
		acc, err = p.ledger.Account(accountKey(participant))
		if err != nil {
			return err
		}
		if acc.Principal.Sign() > 0 {
			if err := p.guard.CheckAmountBounds(acc.Principal); err != nil {
				return err
			}
		}
		if err := p.mover.TransferOut(participant, amount); err != nil {
			return err
		}
		logger.Info("unstake accepted", "participant", participant, "amount", amount)
		return nil
	})
}

// ClaimRewards pays out the participant's accrued entitlement.
func (p *Pool) ClaimRewards(now uint64, participant tera.Address) (*big.Int, error) {
	var claimed *big.Int
	err := p.run(func() error {
		if err := p.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := p.guard.UseAction(participant, now); err != nil {
			return err
		}
		amount, err := p.ledger.Claim(now, accountKey(participant))
		if err != nil {
			return err
		}
		if err := p.guard.UseAllowance(participant, now, amount); err != nil {
			return err
		}
		if err := p.mover.TransferOut(participant, amount); err != nil {
			return err
		}
		claimed = amount
		logger.Info("rewards claimed", "participant", participant, "amount", amount)
		return nil
	})
	return claimed, err
}

// Exit claims everything, withdraws the full principal and closes the
// account. Lockup and daily allowance apply to the combined outflow.
func (p *Pool) Exit(now uint64, participant tera.Address) (*big.Int, error) {
	var total *big.Int
	err := p.run(func() error {
		if err := p.guard.CheckFrozen(participant); err != nil {
			return err
		}
		if err := p.guard.UseAction(participant, now); err != nil {
			return err
		}
		key := accountKey(participant)
		acc, err := p.ledger.Account(key)
		if err != nil {
			return err
		}
		if err := p.guard.CheckLockup(now, acc.OpenedAt); err != nil {
			return err
		}
		principal := new(big.Int).Set(acc.Principal)

		var claimed = new(big.Int)
		if pending, err := p.ledger.PendingEntitlement(now, key); err != nil {
			return err
		} else if pending.Sign() > 0 || acc.Claimable.Sign() > 0 {
			if claimed, err = p.ledger.Claim(now, key); err != nil {
				return err
			}
		}
		if principal.Sign() > 0 {
			if err := p.ledger.Withdraw(now, key, principal); err != nil {
				return err
			}
		}
		outflow := new(big.Int).Add(principal, claimed)
		if err := p.guard.UseAllowance(participant, now, outflow); err != nil {
			return err
		}
		if err := p.ledger.Close(now, key); err != nil {
			return err
		}
		if outflow.Sign() > 0 {
			if err := p.mover.TransferOut(participant, outflow); err != nil {
				return err
			}
		}
		total = outflow
		logger.Info("participant exited", "participant", participant, "outflow", outflow)
		return nil
	})
	return total, err
}

// Settle advances the pool's accrual to now. Safe to call from a
// scheduler at any frequency.
func (p *Pool) Settle(now uint64) error {
	return p.run(func() error {
		return p.ledger.Settle(now)
	})
}

// Pending reports the participant's claimable entitlement projected
// to now, without writing state.
func (p *Pool) Pending(now uint64, participant tera.Address) (*big.Int, error) {
	return p.ledger.PendingEntitlement(now, accountKey(participant))
}

// AccountOf returns the participant's ledger account.
func (p *Pool) AccountOf(participant tera.Address) (*ledger.Account, error) {
	return p.ledger.Account(accountKey(participant))
}

// SetRate changes the pool's reward rate. Requires CapBounds. Accrual
// up to now is settled under the old rate first.
func (p *Pool) SetRate(caller tera.Address, now uint64, rate *big.Int) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapBounds); err != nil {
			return err
		}
		if err := p.ledger.SetRate(now, rate); err != nil {
			return err
		}
		logger.Info("rate changed", "caller", caller, "rate", rate)
		return nil
	})
}

// SetPaused pauses or resumes mutations. Requires CapPause.
func (p *Pool) SetPaused(caller tera.Address, paused bool) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapPause); err != nil {
			return err
		}
		if err := p.ledger.SetPaused(paused); err != nil {
			return err
		}
		logger.Warn("pause state changed", "caller", caller, "paused", paused)
		return nil
	})
}

// SetFrozen freezes or unfreezes a participant. Requires CapFreeze.
func (p *Pool) SetFrozen(caller, participant tera.Address, frozen bool) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapFreeze); err != nil {
			return err
		}
		if err := p.guard.SetFrozen(participant, frozen); err != nil {
			return err
		}
		logger.Warn("freeze state changed", "caller", caller, "participant", participant, "frozen", frozen)
		return nil
	})
}

// Deactivate force-closes a participant's account, crediting accrual
// to date and releasing the principal from the pool total. Requires
// CapDeactivate.
func (p *Pool) Deactivate(caller tera.Address, now uint64, participant tera.Address) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapDeactivate); err != nil {
			return err
		}
		if err := p.ledger.Deactivate(now, accountKey(participant)); err != nil {
			return err
		}
		logger.Warn("participant deactivated", "caller", caller, "participant", participant)
		return nil
	})
}

// SetParam updates a governance parameter in the given store.
// Requires CapBounds.
func (p *Pool) SetParam(caller tera.Address, store *params.Params, key tera.Bytes32, value *big.Int) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapBounds); err != nil {
			return err
		}
		store.Set(key, value)
		logger.Info("parameter changed", "caller", caller, "key", key.AbbrevString(), "value", value)
		return nil
	})
}

// ResetBreaker rearms a tripped circuit breaker. Requires
// CapBreakerReset.
func (p *Pool) ResetBreaker(caller tera.Address) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapBreakerReset); err != nil {
			return err
		}
		if err := p.ledger.ResetBreaker(); err != nil {
			return err
		}
		logger.Warn("circuit breaker reset", "caller", caller)
		return nil
	})
}
