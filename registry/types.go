// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/terahash/tera/tera"
)

// Status of a position's lifecycle. Transitions only move forward:
// none -> active -> closed.
type Status uint8

const (
	StatusNone Status = iota
	StatusActive
	StatusClosed
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

// Position is the registry record for one opened position. Principal
// here mirrors what the position's ledger account holds and is kept
// for listing without touching the ledger.
type Position struct {
	Owner     tera.Address
	Principal *big.Int
	OpenedAt  uint64
	ClosedAt  uint64
	Status    Status

	Next *tera.Bytes32 `rlp:"nil"` // doubly linked list
	Prev *tera.Bytes32 `rlp:"nil"` // doubly linked list
}

func (p *Position) normalize() {
	if p.Principal == nil {
		p.Principal = &big.Int{}
	}
}

// IsEmpty returns true if the position was never opened.
func (p *Position) IsEmpty() bool {
	return p.Status == StatusNone
}
