// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

var (
	poolAddr = tera.BytesToAddress([]byte("pool"))
	keyA     = tera.BytesToBytes32([]byte("alice"))
	keyB     = tera.BytesToBytes32([]byte("bob"))
)

func newSharedLedger(t *testing.T, rate int64) *Ledger {
	st := state.New(kv.NewMemStore())
	l := New(poolAddr, st)
	require.NoError(t, l.Init(0, big.NewInt(rate)))
	return l
}

type fakeSource struct {
	balance    *big.Int
	observedAt uint64
	err        error
}

func (f *fakeSource) BalanceOf(tera.Address) (*big.Int, uint64, error) {
	return f.balance, f.observedAt, f.err
}

func newVaultLedger(t *testing.T, source *fakeSource) *Ledger {
	st := state.New(kv.NewMemStore())
	l := New(poolAddr, st, WithExternalSource(source, 60, 5000))
	require.NoError(t, l.Init(0, nil))
	return l
}

func TestProportionalSplit(t *testing.T) {
	// pool with rate 100 units/second: A deposits 1000 at t=0,
	// B deposits 1000 at t=10, both claim at t=20.
	l := newSharedLedger(t, 100)

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))
	require.NoError(t, l.Deposit(10, keyB, big.NewInt(1000)))

	gotA, err := l.Claim(20, keyA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), gotA)

	gotB, err := l.Claim(20, keyB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), gotB)
}

func TestConservation(t *testing.T) {
	l := newSharedLedger(t, 100)

	checkTotal := func() {
		s, err := l.Stream()
		require.NoError(t, err)
		accA, err := l.Account(keyA)
		require.NoError(t, err)
		accB, err := l.Account(keyB)
		require.NoError(t, err)
		sum := new(big.Int).Add(accA.Principal, accB.Principal)
		assert.Equal(t, s.TotalPrincipal, sum, "sum of principals must equal TotalPrincipal")
	}

	require.NoError(t, l.Deposit(1, keyA, big.NewInt(700)))
	checkTotal()
	require.NoError(t, l.Deposit(2, keyB, big.NewInt(300)))
	checkTotal()
	require.NoError(t, l.Withdraw(3, keyA, big.NewInt(200)))
	checkTotal()
	require.NoError(t, l.Withdraw(4, keyB, big.NewInt(300)))
	checkTotal()
}

func TestSettleIdempotent(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))

	require.NoError(t, l.Settle(10))
	s1, err := l.Stream()
	require.NoError(t, err)

	// settling twice at the same timestamp changes nothing
	require.NoError(t, l.Settle(10))
	s2, err := l.Stream()
	require.NoError(t, err)

	assert.Equal(t, s1.AccrualIndex, s2.AccrualIndex)
	assert.Equal(t, s1.LastSettlement, s2.LastSettlement)
}

func TestMonotonicIndex(t *testing.T) {
	l := newSharedLedger(t, 7)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(13)))

	last := new(big.Int)
	lastTime := uint64(0)
	for _, now := range []uint64{3, 3, 9, 9, 27, 28} {
		require.NoError(t, l.Settle(now))
		s, err := l.Stream()
		require.NoError(t, err)
		assert.True(t, s.AccrualIndex.Cmp(last) >= 0, "index must not decrease")
		assert.True(t, s.LastSettlement >= lastTime, "settlement time must not decrease")
		last = s.AccrualIndex
		lastTime = s.LastSettlement
	}
}

func TestZeroPrincipalSettle(t *testing.T) {
	l := newSharedLedger(t, 100)

	require.NoError(t, l.Settle(100))
	s, err := l.Stream()
	require.NoError(t, err)
	assert.Zero(t, s.AccrualIndex.Sign(), "index must not move with zero principal")
	assert.Equal(t, uint64(100), s.LastSettlement)

	// the dormant period is not credited retroactively
	require.NoError(t, l.Deposit(100, keyA, big.NewInt(1000)))
	_, err = l.Claim(100, keyA)
	assert.True(t, errs.IsKind(err, errs.NoEntitlement))
}

func TestClaimZeroElapsed(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(5, keyA, big.NewInt(1000)))

	// zero elapsed time with a positive rate yields exactly zero
	_, err := l.Claim(5, keyA)
	assert.True(t, errs.IsKind(err, errs.NoEntitlement))
}

func TestFairSplitRoundsDown(t *testing.T) {
	l := newSharedLedger(t, 1)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1)))
	require.NoError(t, l.Deposit(0, keyB, big.NewInt(2)))

	// 1 unit/sec for 4s over principal 3: entitlements in ratio 1:2,
	// truncated down in aggregate (4 units accrued, 3 assigned)
	pendingA, err := l.PendingEntitlement(4, keyA)
	require.NoError(t, err)
	pendingB, err := l.PendingEntitlement(4, keyB)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(1), pendingA)
	assert.Equal(t, big.NewInt(2), pendingB)
	total := new(big.Int).Add(pendingA, pendingB)
	assert.True(t, total.Cmp(big.NewInt(4)) < 0, "truncation dust stays with the pool")
}

func TestWithdraw(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))

	err := l.Withdraw(10, keyA, big.NewInt(2000))
	assert.True(t, errs.IsKind(err, errs.InsufficientPrincipal))

	// withdrawal leaves claimable untouched
	require.NoError(t, l.Withdraw(10, keyA, big.NewInt(1000)))
	acc, err := l.Account(keyA)
	require.NoError(t, err)
	assert.Zero(t, acc.Principal.Sign())
	assert.Equal(t, big.NewInt(1000), acc.Claimable)

	got, err := l.Claim(10, keyA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), got)
}

func TestDepositInvalidAmount(t *testing.T) {
	l := newSharedLedger(t, 100)

	assert.True(t, errs.IsKind(l.Deposit(0, keyA, big.NewInt(0)), errs.InvalidAmount))
	assert.True(t, errs.IsKind(l.Deposit(0, keyA, big.NewInt(-5)), errs.InvalidAmount))
	assert.True(t, errs.IsKind(l.Deposit(0, keyA, nil), errs.InvalidAmount))

	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	assert.True(t, errs.IsKind(l.Deposit(0, keyA, huge), errs.Overflow))
}

func TestCloseLifecycle(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))

	// close requires zero principal and zero claimable
	err := l.Close(10, keyA)
	assert.True(t, errs.IsKind(err, errs.InvalidAmount))

	require.NoError(t, l.Withdraw(10, keyA, big.NewInt(1000)))
	_, err = l.Claim(10, keyA)
	require.NoError(t, err)
	require.NoError(t, l.Close(10, keyA))

	// closed is terminal
	assert.True(t, errs.IsKind(l.Deposit(11, keyA, big.NewInt(1)), errs.PositionClosed))
	assert.True(t, errs.IsKind(l.Withdraw(11, keyA, big.NewInt(1)), errs.PositionClosed))
	_, err = l.Claim(11, keyA)
	assert.True(t, errs.IsKind(err, errs.PositionClosed))
}

func TestDeactivatePreservesTotalEarned(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))

	require.NoError(t, l.Deactivate(10, keyA))

	acc, err := l.Account(keyA)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, acc.Status)
	assert.Zero(t, acc.Principal.Sign())
	assert.Equal(t, big.NewInt(1000), acc.TotalEarned, "audit total survives deactivation")

	s, err := l.Stream()
	require.NoError(t, err)
	assert.Zero(t, s.TotalPrincipal.Sign())
}

func TestPaused(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))
	require.NoError(t, l.SetPaused(true))

	assert.True(t, errs.IsKind(l.Deposit(1, keyA, big.NewInt(1)), errs.Paused))
	assert.True(t, errs.IsKind(l.Withdraw(1, keyA, big.NewInt(1)), errs.Paused))

	require.NoError(t, l.SetPaused(false))
	require.NoError(t, l.Deposit(1, keyA, big.NewInt(1)))
}

func TestVaultYieldAttribution(t *testing.T) {
	source := &fakeSource{balance: big.NewInt(0), observedAt: 0}
	l := newVaultLedger(t, source)

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(500)))

	// external balance grows to 550 before the next settlement:
	// exactly 50 must be attributed as yield
	source.balance = big.NewInt(550)
	source.observedAt = 10
	require.NoError(t, l.Settle(10))

	got, err := l.Claim(10, keyA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), got)

	// the payout leaves the pooled balance; settling again without
	// further growth must not double-count
	source.balance = big.NewInt(500)
	source.observedAt = 20
	require.NoError(t, l.Settle(20))
	_, err = l.Claim(20, keyA)
	assert.True(t, errs.IsKind(err, errs.NoEntitlement))
}

func TestVaultBreakerOnBalanceDrop(t *testing.T) {
	source := &fakeSource{balance: big.NewInt(0), observedAt: 0}
	l := newVaultLedger(t, source)

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(500)))

	// external balance shrinking below principal trips the breaker
	source.balance = big.NewInt(400)
	source.observedAt = 10
	require.NoError(t, l.Settle(10))

	s, err := l.Stream()
	require.NoError(t, err)
	assert.True(t, s.Tripped)
	assert.Zero(t, s.AccrualIndex.Sign())

	// tripped: all mutating operations are denied
	assert.True(t, errs.IsKind(l.Deposit(11, keyA, big.NewInt(1)), errs.CircuitBreakerActive))
	assert.True(t, errs.IsKind(l.Withdraw(11, keyA, big.NewInt(1)), errs.CircuitBreakerActive))
	_, err = l.Claim(11, keyA)
	assert.True(t, errs.IsKind(err, errs.CircuitBreakerActive))

	// until explicitly reset, once the external balance recovers
	source.balance = big.NewInt(500)
	source.observedAt = 12
	require.NoError(t, l.ResetBreaker())
	require.NoError(t, l.Deposit(12, keyA, big.NewInt(1)))
}

func TestVaultBreakerPersistsFromDeniedMutation(t *testing.T) {
	source := &fakeSource{balance: big.NewInt(0), observedAt: 0}
	l := newVaultLedger(t, source)

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(500)))

	// the shortfall is first seen by the settlement inside a deposit;
	// the denied call must still leave the trip on record
	source.balance = big.NewInt(400)
	source.observedAt = 10
	err := l.Deposit(10, keyB, big.NewInt(100))
	assert.True(t, errs.IsKind(err, errs.CircuitBreakerActive))

	s, err := l.Stream()
	require.NoError(t, err)
	assert.True(t, s.Tripped)

	// a recovered balance alone does not rearm the breaker
	source.balance = big.NewInt(600)
	source.observedAt = 12
	err = l.Deposit(12, keyB, big.NewInt(100))
	assert.True(t, errs.IsKind(err, errs.CircuitBreakerActive))

	require.NoError(t, l.ResetBreaker())
	require.NoError(t, l.Deposit(13, keyB, big.NewInt(100)))
}

func TestVaultBreakerOnAnomalousJump(t *testing.T) {
	source := &fakeSource{balance: big.NewInt(0), observedAt: 0}
	l := newVaultLedger(t, source) // 5000 bps threshold

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))

	// +60% in one settlement exceeds the 50% deviation threshold
	source.balance = big.NewInt(1600)
	source.observedAt = 10
	require.NoError(t, l.Settle(10))

	s, err := l.Stream()
	require.NoError(t, err)
	assert.True(t, s.Tripped)
	assert.Zero(t, s.AccrualIndex.Sign(), "anomalous growth must not be distributed")
}

func TestVaultStaleSource(t *testing.T) {
	source := &fakeSource{balance: big.NewInt(0), observedAt: 0}
	l := newVaultLedger(t, source) // 60s staleness threshold

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(500)))

	source.balance = big.NewInt(550)
	source.observedAt = 10
	err := l.Settle(100)
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))

	// a failed settlement must not corrupt the stream
	s, serr := l.Stream()
	require.NoError(t, serr)
	assert.Zero(t, s.AccrualIndex.Sign())
	assert.Equal(t, uint64(0), s.LastSettlement)

	// a later caller with fresh data settles fine
	source.observedAt = 100
	require.NoError(t, l.Settle(100))
	got, err := l.Claim(100, keyA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), got)
}

func TestPerUnitAccrual(t *testing.T) {
	st := state.New(kv.NewMemStore())
	l := New(poolAddr, st, WithPerUnitRate())
	// 2 reward units per principal unit per second, precision-scaled
	rate := new(big.Int).Mul(big.NewInt(2), tera.PrecisionBig())
	require.NoError(t, l.Init(0, rate))

	require.NoError(t, l.Deposit(0, keyA, big.NewInt(10)))
	require.NoError(t, l.Deposit(0, keyB, big.NewInt(40)))

	// per-unit accrual is independent of pool size
	gotA, err := l.Claim(5, keyA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), gotA) // 10 * 2 * 5

	gotB, err := l.Claim(5, keyB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), gotB) // 40 * 2 * 5
}

func TestPolicyFailureLeavesStateUnchanged(t *testing.T) {
	l := newSharedLedger(t, 100)
	require.NoError(t, l.Deposit(0, keyA, big.NewInt(1000)))
	require.NoError(t, l.Settle(10))

	before, err := l.Stream()
	require.NoError(t, err)
	accBefore, err := l.Account(keyA)
	require.NoError(t, err)

	// a rejected withdrawal leaves principal, claimable and index intact
	err = l.Withdraw(10, keyA, big.NewInt(5000))
	assert.True(t, errs.IsKind(err, errs.InsufficientPrincipal))

	after, err := l.Stream()
	require.NoError(t, err)
	accAfter, err := l.Account(keyA)
	require.NoError(t, err)

	assert.Equal(t, before.TotalPrincipal, after.TotalPrincipal)
	assert.Equal(t, before.AccrualIndex, after.AccrualIndex)
	assert.Equal(t, accBefore.Principal, accAfter.Principal)
	assert.Equal(t, accBefore.Claimable, accAfter.Claimable)
}
