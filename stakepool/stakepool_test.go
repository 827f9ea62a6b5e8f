// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakepool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

var (
	poolAddr   = tera.BytesToAddress([]byte("pool"))
	paramsAddr = tera.BytesToAddress([]byte("params"))
	admin      = tera.BytesToAddress([]byte("admin"))
	alice      = tera.BytesToAddress([]byte("alice"))
	bob        = tera.BytesToAddress([]byte("bob"))
)

// fakeMover records transfers and can be told to fail, for checking
// that a failed external transfer reverts all state effects.
type fakeMover struct {
	in, out *big.Int
	fail    bool
}

func newFakeMover() *fakeMover {
	return &fakeMover{in: new(big.Int), out: new(big.Int)}
}

func (m *fakeMover) TransferIn(_ tera.Address, amount *big.Int) error {
	if m.fail {
		return errors.New("transfer rejected")
	}
	m.in.Add(m.in, amount)
	return nil
}

func (m *fakeMover) TransferOut(_ tera.Address, amount *big.Int) error {
	if m.fail {
		return errors.New("transfer rejected")
	}
	m.out.Add(m.out, amount)
	return nil
}

type fixture struct {
	pool   *Pool
	params *params.Params
	guard  *policy.Guard
	mover  *fakeMover
}

func newFixture(t *testing.T, rate int64) *fixture {
	t.Helper()
	st := state.New(kv.NewMemStore())
	p := params.New(paramsAddr, st)
	g := policy.New(poolAddr, st, p)
	g.Init(admin)
	mover := newFakeMover()
	pool := New(poolAddr, st, g, mover)
	require.NoError(t, pool.Init(0, big.NewInt(rate)))
	return &fixture{pool: pool, params: p, guard: g, mover: mover}
}

func TestStakeAccrueClaim(t *testing.T) {
	f := newFixture(t, 100)

	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))
	require.NoError(t, f.pool.Stake(10, bob, big.NewInt(1000)))
	assert.Equal(t, big.NewInt(2000), f.mover.in)

	got, err := f.pool.ClaimRewards(20, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), got)
	assert.Equal(t, big.NewInt(1500), f.mover.out)
}

func TestStakeBounds(t *testing.T) {
	f := newFixture(t, 100)
	f.params.Set(tera.KeyMinPrincipal, big.NewInt(100))
	f.params.Set(tera.KeyMaxPrincipal, big.NewInt(1000))

	assert.True(t, errs.IsKind(f.pool.Stake(0, alice, big.NewInt(50)), errs.InvalidAmount))
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(600)))

	// the bound applies to the resulting principal
	err := f.pool.Stake(1, alice, big.NewInt(500))
	assert.True(t, errs.IsKind(err, errs.InvalidAmount))
	require.NoError(t, f.pool.Stake(1, alice, big.NewInt(400)))
}

func TestStakeCapacity(t *testing.T) {
	f := newFixture(t, 100)
	f.params.Set(tera.KeyPoolCapacity, big.NewInt(1500))

	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))
	err := f.pool.Stake(0, bob, big.NewInt(600))
	assert.True(t, errs.IsKind(err, errs.CapacityExceeded))

	// denied stake left nothing behind, a fitting one still works
	require.NoError(t, f.pool.Stake(0, bob, big.NewInt(500)))
}

func TestUnstakeLockup(t *testing.T) {
	f := newFixture(t, 0)
	f.params.SetUint64(tera.KeyLockupPeriod, 100)

	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))

	err := f.pool.Unstake(99, alice, big.NewInt(1000))
	assert.True(t, errs.IsKind(err, errs.LockupActive))

	// principal unchanged by the denial
	acc, err2 := f.pool.AccountOf(alice)
	require.NoError(t, err2)
	assert.Equal(t, big.NewInt(1000), acc.Principal)

	require.NoError(t, f.pool.Unstake(100, alice, big.NewInt(1000)))
	assert.Equal(t, big.NewInt(1000), f.mover.out)
}

func TestDailyCapLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, 0)
	f.params.Set(tera.KeyDailyCap, big.NewInt(500))

	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))
	require.NoError(t, f.pool.Unstake(10, alice, big.NewInt(400)))

	err := f.pool.Unstake(20, alice, big.NewInt(200))
	assert.True(t, errs.IsKind(err, errs.CapExceeded))
	acc, err2 := f.pool.AccountOf(alice)
	require.NoError(t, err2)
	assert.Equal(t, big.NewInt(600), acc.Principal)

	// within the remaining allowance it still goes through
	require.NoError(t, f.pool.Unstake(30, alice, big.NewInt(100)))

	// the next day refills
	require.NoError(t, f.pool.Unstake(tera.DayWindow, alice, big.NewInt(500)))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, 0)
	f.params.SetUint64(tera.KeyRateWindow, 60)
	f.params.SetUint64(tera.KeyRateCeiling, 2)

	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(100)))
	require.NoError(t, f.pool.Stake(1, alice, big.NewInt(100)))
	err := f.pool.Stake(2, alice, big.NewInt(100))
	assert.True(t, errs.IsKind(err, errs.RateLimited))

	require.NoError(t, f.pool.Stake(60, alice, big.NewInt(100)))
}

func TestFrozenParticipant(t *testing.T) {
	f := newFixture(t, 100)
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))

	require.NoError(t, f.pool.SetFrozen(admin, alice, true))
	assert.True(t, errs.IsKind(f.pool.Stake(1, alice, big.NewInt(1)), errs.ParticipantFrozen))
	_, err := f.pool.ClaimRewards(10, alice)
	assert.True(t, errs.IsKind(err, errs.ParticipantFrozen))

	// accrual continues while frozen
	require.NoError(t, f.pool.SetFrozen(admin, alice, false))
	got, err := f.pool.ClaimRewards(10, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), got)
}

func TestTransferFailureRevertsState(t *testing.T) {
	f := newFixture(t, 100)
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))

	f.mover.fail = true
	_, err := f.pool.ClaimRewards(10, alice)
	require.Error(t, err)

	// the claim was rolled back, entitlement is still there
	f.mover.fail = false
	got, err := f.pool.ClaimRewards(10, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), got)
}

func TestExit(t *testing.T) {
	f := newFixture(t, 100)
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))

	total, err := f.pool.Exit(10, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), total) // 1000 principal + 1000 rewards
	assert.Equal(t, big.NewInt(2000), f.mover.out)

	acc, err := f.pool.AccountOf(alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusClosed, acc.Status)
}

func TestAdminCapabilities(t *testing.T) {
	f := newFixture(t, 100)

	assert.True(t, errs.IsKind(f.pool.SetPaused(alice, true), errs.Forbidden))
	assert.True(t, errs.IsKind(f.pool.SetRate(alice, 0, big.NewInt(1)), errs.Forbidden))
	assert.True(t, errs.IsKind(f.pool.ResetBreaker(alice), errs.Forbidden))
	assert.True(t, errs.IsKind(f.pool.Deactivate(alice, 0, bob), errs.Forbidden))

	require.NoError(t, f.pool.SetPaused(admin, true))
	assert.True(t, errs.IsKind(f.pool.Stake(0, alice, big.NewInt(1)), errs.Paused))
	require.NoError(t, f.pool.SetPaused(admin, false))

	// delegated capability works for exactly what was granted
	require.NoError(t, f.guard.Grant(admin, bob, policy.CapPause))
	require.NoError(t, f.pool.SetPaused(bob, true))
	assert.True(t, errs.IsKind(f.pool.SetRate(bob, 0, big.NewInt(1)), errs.Forbidden))
}

func TestRateChangeSettlesUnderOldRate(t *testing.T) {
	f := newFixture(t, 100)
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))

	// 10s at rate 100, then 10s at rate 50
	require.NoError(t, f.pool.SetRate(admin, 10, big.NewInt(50)))
	got, err := f.pool.ClaimRewards(20, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), got)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t, 100)
	require.NoError(t, f.pool.Stake(0, alice, big.NewInt(1000)))
	require.NoError(t, f.pool.Stake(0, bob, big.NewInt(1000)))

	require.NoError(t, f.pool.Deactivate(admin, 10, alice))

	acc, err := f.pool.AccountOf(alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusClosed, acc.Status)
	assert.Equal(t, big.NewInt(500), acc.TotalEarned)

	// remaining participant now earns the full rate
	got, err := f.pool.ClaimRewards(20, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), got)
}
