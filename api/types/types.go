// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package types defines the wire representations shared by the REST
// handlers. Amounts travel as decimal or 0x-prefixed strings so
// clients never lose precision to floating point.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/tera"
)

// Amount is a big integer in transit.
type Amount = math.HexOrDecimal256

// ToAmount converts a big.Int for a response.
func ToAmount(v *big.Int) *Amount {
	if v == nil {
		v = new(big.Int)
	}
	return (*Amount)(v)
}

// FromAmount converts a request amount back to a big.Int. A missing
// amount yields nil, which the facades reject as invalid.
func FromAmount(a *Amount) *big.Int {
	if a == nil {
		return nil
	}
	return (*big.Int)(a)
}

// Stream is the wire form of a ledger stream.
type Stream struct {
	TotalPrincipal   *Amount `json:"totalPrincipal"`
	AccrualIndex     *Amount `json:"accrualIndex"`
	Rate             *Amount `json:"rate"`
	DistributedYield *Amount `json:"distributedYield"`
	LastSettlement   uint64  `json:"lastSettlement"`
	Tripped          bool    `json:"tripped"`
	Paused           bool    `json:"paused"`
}

// ConvertStream builds the wire form of a stream record.
func ConvertStream(s *ledger.Stream) *Stream {
	return &Stream{
		TotalPrincipal:   ToAmount(s.TotalPrincipal),
		AccrualIndex:     ToAmount(s.AccrualIndex),
		Rate:             ToAmount(s.Rate),
		DistributedYield: ToAmount(s.DistributedYield),
		LastSettlement:   s.LastSettlement,
		Tripped:          s.Tripped,
		Paused:           s.Paused,
	}
}

// Account is the wire form of a ledger account.
type Account struct {
	Principal   *Amount `json:"principal"`
	Claimable   *Amount `json:"claimable"`
	TotalEarned *Amount `json:"totalEarned"`
	Pending     *Amount `json:"pending"`
	OpenedAt    uint64  `json:"openedAt"`
	LastClaimAt uint64  `json:"lastClaimAt"`
	Status      string  `json:"status"`
}

// ConvertAccount builds the wire form of an account, joined with its
// projected pending entitlement.
func ConvertAccount(acc *ledger.Account, pending *big.Int) *Account {
	return &Account{
		Principal:   ToAmount(acc.Principal),
		Claimable:   ToAmount(acc.Claimable),
		TotalEarned: ToAmount(acc.TotalEarned),
		Pending:     ToAmount(pending),
		OpenedAt:    acc.OpenedAt,
		LastClaimAt: acc.LastClaimAt,
		Status:      acc.Status.String(),
	}
}

// Position is the wire form of a mining position.
type Position struct {
	ID        tera.Bytes32 `json:"id"`
	Owner     tera.Address `json:"owner"`
	Principal *Amount      `json:"principal"`
	Pending   *Amount      `json:"pending"`
	OpenedAt  uint64       `json:"openedAt"`
	ClosedAt  uint64       `json:"closedAt,omitempty"`
	Status    string       `json:"status"`
}

// ConvertPosition builds the wire form of a position.
func ConvertPosition(info *mining.PositionInfo) *Position {
	return &Position{
		ID:        info.ID,
		Owner:     info.Owner,
		Principal: ToAmount(info.Principal),
		Pending:   ToAmount(info.Pending),
		OpenedAt:  info.OpenedAt,
		ClosedAt:  info.ClosedAt,
		Status:    info.Status.String(),
	}
}
