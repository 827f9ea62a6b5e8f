// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry tracks the lifecycle of individually keyed
// positions. A position is opened once under a caller-chosen id,
// accrues through its ledger account while active, and is closed
// exactly once. Closed records are kept for auditing but leave the
// owner's list so listings stay proportional to open positions.
package registry

import (
	"math/big"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/metrics"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

var (
	slotPositions = storage.SlotOf([]byte("positions"))
	slotHeads     = storage.SlotOf([]byte("owner-heads"))
	slotTails     = storage.SlotOf([]byte("owner-tails"))
	slotCounts    = storage.SlotOf([]byte("owner-counts"))
	slotTotal     = storage.SlotOf([]byte("total-open"))

	metricOpen = metrics.GaugeVec("registry_open_positions", []string{"pool"})
)

// Registry binds position storage for one pool.
type Registry struct {
	ctx       *storage.Context
	positions *storage.Mapping[tera.Bytes32, *Position]
	heads     *storage.Mapping[tera.Address, tera.Bytes32]
	tails     *storage.Mapping[tera.Address, tera.Bytes32]
	counts    *storage.Mapping[tera.Address, uint64]
	total     *storage.Uint64
}

// New creates a registry bound to the given address.
func New(addr tera.Address, st *state.State) *Registry {
	ctx := storage.NewContext(addr, st)
	return &Registry{
		ctx:       ctx,
		positions: storage.NewMapping[tera.Bytes32, *Position](ctx, slotPositions),
		heads:     storage.NewMapping[tera.Address, tera.Bytes32](ctx, slotHeads),
		tails:     storage.NewMapping[tera.Address, tera.Bytes32](ctx, slotTails),
		counts:    storage.NewMapping[tera.Address, uint64](ctx, slotCounts),
		total:     storage.NewUint64(ctx, slotTotal),
	}
}

func (r *Registry) listFor(owner tera.Address) *ownerList {
	return &ownerList{
		owner:     owner,
		heads:     r.heads,
		tails:     r.tails,
		counts:    r.counts,
		positions: r.positions,
	}
}

// Open creates an active position under id. Ids are single-use: an id
// that ever held a position, open or closed, cannot be reused.
func (r *Registry) Open(now uint64, id tera.Bytes32, owner tera.Address, principal *big.Int) error {
	if id.IsZero() {
		return errs.New(errs.InvalidAmount, "position id must not be zero")
	}
	if principal == nil || principal.Sign() <= 0 {
		return errs.New(errs.InvalidAmount, "principal must be positive")
	}
	existing, err := r.positions.Get(id)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return errs.New(errs.PositionClosed, "position id %v already used", id)
	}

	pos := &Position{
		Owner:     owner,
		Principal: principal,
		OpenedAt:  now,
		Status:    StatusActive,
	}
	if err := r.listFor(owner).add(id, pos); err != nil {
		return err
	}
	return r.bumpTotal(1)
}

// Get returns the position under id, closed ones included.
func (r *Registry) Get(id tera.Bytes32) (*Position, error) {
	pos, err := r.positions.Get(id)
	if err != nil {
		return nil, err
	}
	if pos.IsEmpty() {
		return nil, errs.New(errs.PositionNotFound, "no position under id %v", id)
	}
	pos.normalize()
	return pos, nil
}

// Close transitions an active position to closed and unlinks it from
// its owner's list. The record itself is retained.
func (r *Registry) Close(now uint64, id tera.Bytes32) (*Position, error) {
	pos, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if pos.Status == StatusClosed {
		return nil, errs.New(errs.PositionClosed, "position %v already closed", id)
	}

	pos.Status = StatusClosed
	pos.ClosedAt = now
	if err := r.listFor(pos.Owner).remove(id, pos); err != nil {
		return nil, err
	}
	return pos, r.bumpTotal(-1)
}

// SetPrincipal updates the mirrored principal of an active position.
func (r *Registry) SetPrincipal(id tera.Bytes32, principal *big.Int) error {
	pos, err := r.Get(id)
	if err != nil {
		return err
	}
	if pos.Status != StatusActive {
		return errs.New(errs.PositionClosed, "position %v is closed", id)
	}
	pos.Principal = principal
	return r.positions.Set(id, pos)
}

// ListFor walks the owner's open positions in insertion order.
func (r *Registry) ListFor(owner tera.Address, callback func(tera.Bytes32, *Position) error) error {
	return r.listFor(owner).iter(callback)
}

// CountFor returns the number of open positions of the owner.
func (r *Registry) CountFor(owner tera.Address) (uint64, error) {
	return r.counts.Get(owner)
}

// TotalOpen returns the number of open positions across all owners.
func (r *Registry) TotalOpen() (uint64, error) {
	return r.total.Get()
}

func (r *Registry) bumpTotal(delta int64) error {
	total, err := r.total.Get()
	if err != nil {
		return err
	}
	total = uint64(int64(total) + delta)
	r.total.Set(total)
	metricOpen.SetWithLabel(int64(total), map[string]string{"pool": r.ctx.Address().String()})
	return nil
}
