// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package mining is the hash-rate pool facade. Miners open positions
// denominated in hash-rate units; the oracle values the committed
// units into principal at open time, and the ledger accrues a fixed
// per-unit rate against it. Positions are individually keyed, listed
// per owner through the registry, and redeem through the same
// check/effect/transfer phases as the staking pool.
package mining

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/oracle"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/registry"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

var logger = log.WithContext("pkg", "mining")

// Payer settles reward payouts outside the ledger. Called strictly
// after all state effects.
type Payer interface {
	Pay(to tera.Address, amount *big.Int) error
}

// Pool composes the registry, a per-unit ledger, the oracle and the
// policy guard for one mining pool.
type Pool struct {
	st       *state.State
	ledger   *ledger.Ledger
	registry *registry.Registry
	guard    *policy.Guard
	oracle   *oracle.Oracle
	payer    Payer
	symbol   string
}

// New creates a mining pool facade. symbol names the oracle feed used
// to value hash-rate units.
func New(addr tera.Address, st *state.State, guard *policy.Guard, o *oracle.Oracle, payer Payer, symbol string) *Pool {
	return &Pool{
		st:       st,
		ledger:   ledger.New(addr, st, ledger.WithPerUnitRate()),
		registry: registry.New(addr, st),
		guard:    guard,
		oracle:   o,
		payer:    payer,
		symbol:   symbol,
	}
}

// Init establishes the per-unit reward stream.
func (p *Pool) Init(now uint64, rate *big.Int) error {
	return p.ledger.Init(now, rate)
}

func (p *Pool) run(fn func() error) error {
	checkpoint := p.st.NewCheckpoint()
	if err := fn(); err != nil {
		p.st.RevertTo(checkpoint)
		return err
	}
	return nil
}

// Open values the committed units at the current oracle price and
// opens an active position. A stale or out-of-bounds quote denies the
// open outright.
func (p *Pool) Open(now uint64, id tera.Bytes32, owner tera.Address, units *big.Int) error {
	return p.run(func() error {
		if err := p.guard.CheckFrozen(owner); err != nil {
			return err
		}
		if err := p.guard.UseAction(owner, now); err != nil {
			return err
		}
		if units == nil || units.Sign() <= 0 {
			return errs.New(errs.InvalidAmount, "units must be positive")
		}
		principal, err := p.oracle.Convert(now, p.symbol, units)
		if err != nil {
			return err
		}
		if err := p.guard.CheckAmountBounds(principal); err != nil {
			return err
		}
		stream, err := p.ledger.Stream()
		if err != nil {
			return err
		}
		if err := p.guard.CheckCapacity(stream.TotalPrincipal, principal); err != nil {
			return err
		}
		if err := p.registry.Open(now, id, owner, principal); err != nil {
			return err
		}
		if err := p.ledger.Deposit(now, id, principal); err != nil {
			return err
		}
		logger.Info("position opened", "id", id.AbbrevString(), "owner", owner, "units", units, "principal", principal)
		return nil
	})
}

func (p *Pool) owned(id tera.Bytes32, caller tera.Address) (*registry.Position, error) {
	pos, err := p.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if pos.Owner != caller {
		return nil, errs.New(errs.Forbidden, "position %v is not owned by caller", id)
	}
	return pos, nil
}

// Redeem pays out the position's accrued rewards.
func (p *Pool) Redeem(now uint64, id tera.Bytes32, caller tera.Address) (*big.Int, error) {
	var redeemed *big.Int
	err := p.run(func() error {
		if err := p.guard.CheckFrozen(caller); err != nil {
			return err
		}
		if err := p.guard.UseAction(caller, now); err != nil {
			return err
		}
		pos, err := p.owned(id, caller)
		if err != nil {
			return err
		}
		if err := p.guard.CheckLockup(now, pos.OpenedAt); err != nil {
			return err
		}
		amount, err := p.ledger.Claim(now, id)
		if err != nil {
			return err
		}
		if err := p.guard.UseAllowance(caller, now, amount); err != nil {
			return err
		}
		if err := p.payer.Pay(caller, amount); err != nil {
			return err
		}
		redeemed = amount
		logger.Info("position redeemed", "id", id.AbbrevString(), "amount", amount)
		return nil
	})
	return redeemed, err
}

// Reduce lowers the position's committed principal without retiring
// it, for miners scaling down committed hash rate. Rewards already
// accrued against the full principal settle first and stay claimable.
// The lockup applies to reducing just as it does to redeeming.
func (p *Pool) Reduce(now uint64, id tera.Bytes32, caller tera.Address, amount *big.Int) error {
	return p.run(func() error {
		if err := p.guard.CheckFrozen(caller); err != nil {
			return err
		}
		if err := p.guard.UseAction(caller, now); err != nil {
			return err
		}
		pos, err := p.owned(id, caller)
		if err != nil {
			return err
		}
		if err := p.guard.CheckLockup(now, pos.OpenedAt); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 || amount.Cmp(pos.Principal) >= 0 {
			return errs.New(errs.InvalidAmount, "reduction must be positive and below the position's principal")
		}
		if err := p.ledger.Withdraw(now, id, amount); err != nil {
			return err
		}
		remaining := new(big.Int).Sub(pos.Principal, amount)
		if err := p.registry.SetPrincipal(id, remaining); err != nil {
			return err
		}
		logger.Info("position reduced", "id", id.AbbrevString(), "amount", amount, "remaining", remaining)
		return nil
	})
}

// Close pays out any remaining rewards and retires the position. The
// lockup applies to closing just as it does to redeeming.
func (p *Pool) Close(now uint64, id tera.Bytes32, caller tera.Address) (*big.Int, error) {
	var paid *big.Int
	err := p.run(func() error {
		if err := p.guard.CheckFrozen(caller); err != nil {
			return err
		}
		if err := p.guard.UseAction(caller, now); err != nil {
			return err
		}
		pos, err := p.owned(id, caller)
		if err != nil {
			return err
		}
		if err := p.guard.CheckLockup(now, pos.OpenedAt); err != nil {
			return err
		}

		rewards := new(big.Int)
		pending, err := p.ledger.PendingEntitlement(now, id)
		if err != nil {
			return err
		}
		if pending.Sign() > 0 {
			if rewards, err = p.ledger.Claim(now, id); err != nil {
				return err
			}
		}
		if err := p.guard.UseAllowance(caller, now, rewards); err != nil {
			return err
		}
		if pos.Principal.Sign() > 0 {
			if err := p.ledger.Withdraw(now, id, pos.Principal); err != nil {
				return err
			}
		}
		if err := p.ledger.Close(now, id); err != nil {
			return err
		}
		if _, err := p.registry.Close(now, id); err != nil {
			return err
		}
		if rewards.Sign() > 0 {
			if err := p.payer.Pay(caller, rewards); err != nil {
				return err
			}
		}
		paid = rewards
		logger.Info("position closed", "id", id.AbbrevString(), "rewards", rewards)
		return nil
	})
	return paid, err
}

// Settle advances the pool's accrual to now.
func (p *Pool) Settle(now uint64) error {
	return p.run(func() error {
		return p.ledger.Settle(now)
	})
}

// PositionInfo is a registry record joined with its accrual state.
type PositionInfo struct {
	ID        tera.Bytes32
	Owner     tera.Address
	Principal *big.Int
	OpenedAt  uint64
	ClosedAt  uint64
	Status    registry.Status
	Pending   *big.Int
}

// Position returns the position joined with its pending entitlement.
func (p *Pool) Position(now uint64, id tera.Bytes32) (*PositionInfo, error) {
	pos, err := p.registry.Get(id)
	if err != nil {
		return nil, err
	}
	pending, err := p.ledger.PendingEntitlement(now, id)
	if err != nil {
		return nil, err
	}
	return &PositionInfo{
		ID:        id,
		Owner:     pos.Owner,
		Principal: pos.Principal,
		OpenedAt:  pos.OpenedAt,
		ClosedAt:  pos.ClosedAt,
		Status:    pos.Status,
		Pending:   pending,
	}, nil
}

// List returns the owner's open positions with pending entitlements.
func (p *Pool) List(now uint64, owner tera.Address) ([]*PositionInfo, error) {
	var infos []*PositionInfo
	err := p.registry.ListFor(owner, func(id tera.Bytes32, pos *registry.Position) error {
		pending, err := p.ledger.PendingEntitlement(now, id)
		if err != nil {
			return err
		}
		infos = append(infos, &PositionInfo{
			ID:        id,
			Owner:     pos.Owner,
			Principal: pos.Principal,
			OpenedAt:  pos.OpenedAt,
			ClosedAt:  pos.ClosedAt,
			Status:    pos.Status,
			Pending:   pending,
		})
		return nil
	})
	return infos, err
}

// Deactivate force-closes a position administratively, crediting
// accrual to date. Requires CapDeactivate.
func (p *Pool) Deactivate(caller tera.Address, now uint64, id tera.Bytes32) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapDeactivate); err != nil {
			return err
		}
		if err := p.ledger.Deactivate(now, id); err != nil {
			return err
		}
		if _, err := p.registry.Close(now, id); err != nil {
			return err
		}
		logger.Warn("position deactivated", "caller", caller, "id", id.AbbrevString())
		return nil
	})
}

// SetRate changes the per-unit rate. Requires CapBounds.
func (p *Pool) SetRate(caller tera.Address, now uint64, rate *big.Int) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapBounds); err != nil {
			return err
		}
		return p.ledger.SetRate(now, rate)
	})
}

// SetPaused pauses or resumes mutations. Requires CapPause.
func (p *Pool) SetPaused(caller tera.Address, paused bool) error {
	return p.run(func() error {
		if err := p.guard.Require(caller, policy.CapPause); err != nil {
			return err
		}
		return p.ledger.SetPaused(paused)
	})
}

// Ledger exposes the underlying ledger for read paths.
func (p *Pool) Ledger() *ledger.Ledger {
	return p.ledger
}
