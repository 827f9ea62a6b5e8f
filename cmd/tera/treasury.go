// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

var (
	slotBalances = storage.SlotOf([]byte("treasury-balances"))
	slotCustody  = storage.SlotOf([]byte("treasury-custody"))
	slotObserved = storage.SlotOf([]byte("treasury-observed"))
)

// treasury is the in-process settlement book. Participant balances and
// per-pool custody live in the same journaled state as the ledgers, so
// a reverted operation also reverts its transfers and one flush
// commits both sides atomically.
type treasury struct {
	balances *storage.Mapping[tera.Address, *big.Int]
	custody  *storage.Mapping[tera.Address, *big.Int]
	observed *storage.Mapping[tera.Address, uint64]
	now      func() uint64
}

func newTreasury(addr tera.Address, st *state.State, now func() uint64) *treasury {
	ctx := storage.NewContext(addr, st)
	return &treasury{
		balances: storage.NewMapping[tera.Address, *big.Int](ctx, slotBalances),
		custody:  storage.NewMapping[tera.Address, *big.Int](ctx, slotCustody),
		observed: storage.NewMapping[tera.Address, uint64](ctx, slotObserved),
		now:      now,
	}
}

func (t *treasury) balanceOf(addr tera.Address) (*big.Int, error) {
	v, err := t.balances.Get(addr)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return new(big.Int), nil
	}
	return v, nil
}

func (t *treasury) credit(addr tera.Address, amount *big.Int) error {
	v, err := t.balanceOf(addr)
	if err != nil {
		return err
	}
	return t.balances.Set(addr, new(big.Int).Add(v, amount))
}

func (t *treasury) debit(addr tera.Address, amount *big.Int) error {
	v, err := t.balanceOf(addr)
	if err != nil {
		return err
	}
	if v.Cmp(amount) < 0 {
		return errs.New(errs.InvalidAmount, "insufficient balance: have %v, need %v", v, amount)
	}
	return t.balances.Set(addr, new(big.Int).Sub(v, amount))
}

func (t *treasury) custodyOf(pool tera.Address) (*big.Int, error) {
	v, err := t.custody.Get(pool)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return new(big.Int), nil
	}
	return v, nil
}

func (t *treasury) setCustody(pool tera.Address, value *big.Int) error {
	if err := t.custody.Set(pool, value); err != nil {
		return err
	}
	return t.observed.Set(pool, t.now())
}

// BalanceOf implements ledger.BalanceSource over the custody book.
func (t *treasury) BalanceOf(owner tera.Address) (*big.Int, uint64, error) {
	v, err := t.custodyOf(owner)
	if err != nil {
		return nil, 0, err
	}
	at, err := t.observed.Get(owner)
	if err != nil {
		return nil, 0, err
	}
	return v, at, nil
}

// bookFor binds the treasury to one pool's custody column. Books with
// emission enabled may pay out more than custody holds; the difference
// is issued on the spot. The vault book is strict, a custody shortfall
// there is a real discrepancy the circuit breaker must see.
func (t *treasury) bookFor(pool tera.Address, emission bool) *book {
	return &book{t: t, pool: pool, emission: emission}
}

type book struct {
	t        *treasury
	pool     tera.Address
	emission bool
}

func (b *book) TransferIn(from tera.Address, amount *big.Int) error {
	if err := b.t.debit(from, amount); err != nil {
		return err
	}
	held, err := b.t.custodyOf(b.pool)
	if err != nil {
		return err
	}
	return b.t.setCustody(b.pool, new(big.Int).Add(held, amount))
}

func (b *book) TransferOut(to tera.Address, amount *big.Int) error {
	held, err := b.t.custodyOf(b.pool)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		if !b.emission {
			return errs.New(errs.InvalidAmount, "custody shortfall: have %v, need %v", held, amount)
		}
		held = new(big.Int).Set(amount)
	}
	if err := b.t.setCustody(b.pool, new(big.Int).Sub(held, amount)); err != nil {
		return err
	}
	return b.t.credit(to, amount)
}

// Pay implements mining.Payer; reward payouts are emissions.
func (b *book) Pay(to tera.Address, amount *big.Int) error {
	return b.TransferOut(to, amount)
}
