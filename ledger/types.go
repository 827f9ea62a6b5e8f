// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
)

// Status of an account within a stream.
type Status uint8

const (
	StatusNone   = Status(iota) // 0 -> default value, never deposited
	StatusActive                // holds principal and accrues
	StatusClosed                // terminal, immutable except for reads
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	default:
		return "none"
	}
}

// Stream is the shared reward stream record of a pool.
//
// AccrualIndex is the cumulative reward per unit of principal, scaled
// by tera.AccrualPrecision. It only moves inside a settlement, is
// monotonically non-decreasing, and stays put while TotalPrincipal is
// zero so a dormant period is never credited retroactively.
type Stream struct {
	TotalPrincipal   *big.Int
	AccrualIndex     *big.Int
	LastSettlement   uint64
	Rate             *big.Int // per-second reward; unused by external-income streams
	DistributedYield *big.Int // external income already folded into the index
	Tripped          bool     // circuit breaker, sticky until reset
	Paused           bool     // administrative pause
}

// normalize allocates zero values for fields decoded from an empty slot.
func (s *Stream) normalize() {
	if s.TotalPrincipal == nil {
		s.TotalPrincipal = new(big.Int)
	}
	if s.AccrualIndex == nil {
		s.AccrualIndex = new(big.Int)
	}
	if s.Rate == nil {
		s.Rate = new(big.Int)
	}
	if s.DistributedYield == nil {
		s.DistributedYield = new(big.Int)
	}
}

// Account is the per-position accrual record.
//
// Snapshot holds the stream's AccrualIndex at the account's last
// settlement; newly accrued entitlement is
// (AccrualIndex - Snapshot) * Principal / precision.
type Account struct {
	Principal   *big.Int
	Snapshot    *big.Int
	Claimable   *big.Int
	TotalEarned *big.Int // lifetime entitlement, kept after close for audit
	OpenedAt    uint64
	LastClaimAt uint64
	Status      Status
}

func (a *Account) normalize() {
	if a.Principal == nil {
		a.Principal = new(big.Int)
	}
	if a.Snapshot == nil {
		a.Snapshot = new(big.Int)
	}
	if a.Claimable == nil {
		a.Claimable = new(big.Int)
	}
	if a.TotalEarned == nil {
		a.TotalEarned = new(big.Int)
	}
}

// IsEmpty returns whether the entry can be treated as empty.
func (a *Account) IsEmpty() bool {
	return a.Status == StatusNone
}
