// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package policy enforces participation rules on top of the ledger:
// amount bounds, pool capacity, lockup periods, per-participant rate
// limits and daily allowances, freezing, and administrative
// capabilities. All thresholds come from the governance parameter
// store and may change at runtime; checks always read the current
// value.
package policy

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/metrics"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

var (
	slotRecords = storage.SlotOf([]byte("policy-records"))
	slotGrants  = storage.SlotOf([]byte("policy-grants"))
	slotOwner   = storage.SlotOf([]byte("policy-owner"))

	metricDenials = metrics.CounterVec("policy_denials_total", []string{"reason"})
)

// Capability is a bit in the administrative permission mask.
type Capability uint64

const (
	CapPause Capability = 1 << iota
	CapFreeze
	CapBounds
	CapBreakerReset
	CapDeactivate
	CapGrant
)

// Record tracks a participant's rolling limits. Windows reset lazily
// when a check observes that the current window differs from the
// recorded one.
type Record struct {
	Window    uint64
	Count     uint64
	Day       uint64
	DayAmount *big.Int
	Frozen    bool
}

func (r *Record) normalize() {
	if r.DayAmount == nil {
		r.DayAmount = &big.Int{}
	}
}

// Guard binds policy storage for one pool.
type Guard struct {
	ctx     *storage.Context
	records *storage.Mapping[tera.Address, *Record]
	grants  *storage.Mapping[tera.Address, uint64]
	owner   *storage.AddressSlot
	params  *params.Params
}

// New creates a policy guard bound to the given address.
func New(addr tera.Address, st *state.State, p *params.Params) *Guard {
	ctx := storage.NewContext(addr, st)
	return &Guard{
		ctx:     ctx,
		records: storage.NewMapping[tera.Address, *Record](ctx, slotRecords),
		grants:  storage.NewMapping[tera.Address, uint64](ctx, slotGrants),
		owner:   storage.NewAddressSlot(ctx, slotOwner),
		params:  p,
	}
}

// Init establishes the owner, who holds every capability and is the
// only party able to grant or revoke them until CapGrant is delegated.
func (g *Guard) Init(owner tera.Address) {
	g.owner.Set(owner)
}

func (g *Guard) record(participant tera.Address) (*Record, error) {
	r, err := g.records.Get(participant)
	if err != nil {
		return nil, err
	}
	r.normalize()
	return r, nil
}

// Record returns the participant's current limit record.
func (g *Guard) Record(participant tera.Address) (*Record, error) {
	return g.record(participant)
}

// CheckFrozen rejects any operation by a frozen participant. This is
// checked before all other policy rules.
func (g *Guard) CheckFrozen(participant tera.Address) error {
	r, err := g.record(participant)
	if err != nil {
		return err
	}
	if r.Frozen {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "frozen"})
		return errs.New(errs.ParticipantFrozen, "participant %v is frozen", participant)
	}
	return nil
}

// CheckAmountBounds validates a principal amount against the
// configured minimum and maximum. A zero maximum disables the upper
// bound.
func (g *Guard) CheckAmountBounds(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errs.New(errs.InvalidAmount, "amount must be positive")
	}
	minP, err := g.params.Get(tera.KeyMinPrincipal)
	if err != nil {
		return err
	}
	if amount.Cmp(minP) < 0 {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "below_minimum"})
		return errs.New(errs.InvalidAmount, "amount %v below minimum principal %v", amount, minP)
	}
	maxP, err := g.params.Get(tera.KeyMaxPrincipal)
	if err != nil {
		return err
	}
	if maxP.Sign() > 0 && amount.Cmp(maxP) > 0 {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "above_maximum"})
		return errs.New(errs.InvalidAmount, "amount %v above maximum principal %v", amount, maxP)
	}
	return nil
}

// CheckCapacity rejects a deposit that would push the pool's total
// principal past its configured capacity. A zero capacity means
// unbounded.
func (g *Guard) CheckCapacity(totalPrincipal, amount *big.Int) error {
	capacity, err := g.params.Get(tera.KeyPoolCapacity)
	if err != nil {
		return err
	}
	if capacity.Sign() == 0 {
		return nil
	}
	after := new(big.Int).Add(totalPrincipal, amount)
	if after.Cmp(capacity) > 0 {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "capacity"})
		return errs.New(errs.CapacityExceeded, "pool capacity %v exceeded by total %v", capacity, after)
	}
	return nil
}

// CheckLockup rejects a withdrawal while the lockup period since the
// position opened has not elapsed.
func (g *Guard) CheckLockup(now, openedAt uint64) error {
	lockup, err := g.params.GetUint64(tera.KeyLockupPeriod)
	if err != nil {
		return err
	}
	if lockup == 0 {
		return nil
	}
	if now < openedAt+lockup {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "lockup"})
		return errs.New(errs.LockupActive, "lockup active until %d", openedAt+lockup)
	}
	return nil
}

// UseAction counts one mutating operation against the participant's
// rate-limit window, denying once the per-window ceiling is reached.
// Callers run this before touching the ledger so a later failure
// reverts the count along with everything else.
func (g *Guard) UseAction(participant tera.Address, now uint64) error {
	windowSize, err := g.params.GetUint64(tera.KeyRateWindow)
	if err != nil {
		return err
	}
	ceiling, err := g.params.GetUint64(tera.KeyRateCeiling)
	if err != nil {
		return err
	}
	if windowSize == 0 || ceiling == 0 {
		return nil
	}
	r, err := g.record(participant)
	if err != nil {
		return err
	}
	window := now / windowSize
	if r.Window != window {
		r.Window = window
		r.Count = 0
	}
	if r.Count >= ceiling {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "rate_limited"})
		return errs.New(errs.RateLimited, "rate limit of %d actions per window reached", ceiling)
	}
	r.Count++
	return g.records.Set(participant, r)
}

// UseAllowance counts an outgoing amount against the participant's
// daily cap. A zero cap disables the limit.
func (g *Guard) UseAllowance(participant tera.Address, now uint64, amount *big.Int) error {
	dailyCap, err := g.params.Get(tera.KeyDailyCap)
	if err != nil {
		return err
	}
	if dailyCap.Sign() == 0 {
		return nil
	}
	r, err := g.record(participant)
	if err != nil {
		return err
	}
	day := now / tera.DayWindow
	if r.Day != day {
		r.Day = day
		r.DayAmount = &big.Int{}
	}
	spent := new(big.Int).Add(r.DayAmount, amount)
	if spent.Cmp(dailyCap) > 0 {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "daily_cap"})
		return errs.New(errs.CapExceeded, "daily cap %v exceeded by %v", dailyCap, spent)
	}
	r.DayAmount = spent
	return g.records.Set(participant, r)
}

// SetFrozen freezes or unfreezes a participant.
func (g *Guard) SetFrozen(participant tera.Address, frozen bool) error {
	r, err := g.record(participant)
	if err != nil {
		return err
	}
	r.Frozen = frozen
	return g.records.Set(participant, r)
}

// Frozen reports whether the participant is frozen.
func (g *Guard) Frozen(participant tera.Address) (bool, error) {
	r, err := g.record(participant)
	if err != nil {
		return false, err
	}
	return r.Frozen, nil
}

func (g *Guard) mask(addr tera.Address) (Capability, error) {
	owner, err := g.owner.Get()
	if err != nil {
		return 0, err
	}
	if addr == owner && owner != (tera.Address{}) {
		return ^Capability(0), nil
	}
	m, err := g.grants.Get(addr)
	return Capability(m), err
}

// Require fails with Forbidden unless the caller holds the capability.
func (g *Guard) Require(caller tera.Address, c Capability) error {
	m, err := g.mask(caller)
	if err != nil {
		return err
	}
	if m&c == 0 {
		metricDenials.AddWithLabel(1, map[string]string{"reason": "forbidden"})
		return errs.New(errs.Forbidden, "caller %v lacks required capability", caller)
	}
	return nil
}

// Grant adds capabilities to the grantee's mask. The caller needs
// CapGrant.
func (g *Guard) Grant(caller, grantee tera.Address, c Capability) error {
	if err := g.Require(caller, CapGrant); err != nil {
		return err
	}
	m, err := g.grants.Get(grantee)
	if err != nil {
		return err
	}
	return g.grants.Set(grantee, m|uint64(c))
}

// Revoke removes capabilities from the grantee's mask. The caller
// needs CapGrant.
func (g *Guard) Revoke(caller, grantee tera.Address, c Capability) error {
	if err := g.Require(caller, CapGrant); err != nil {
		return err
	}
	m, err := g.grants.Get(grantee)
	if err != nil {
		return err
	}
	return g.grants.Set(grantee, m&^uint64(c))
}
