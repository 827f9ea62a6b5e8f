// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package storage provides typed storage primitives for ledger
// contracts, similar to declaring variables and mappings in a smart
// contract: each value lives at a slot position under a contract
// address, encoded with RLP.
package storage

import (
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

// Context binds a contract address to a state instance.
type Context struct {
	address tera.Address
	state   *state.State
}

// NewContext creates a storage context.
func NewContext(address tera.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

// Address returns the contract address owning the storage.
func (c *Context) Address() tera.Address {
	return c.address
}

// State returns the underlying state.
func (c *Context) State() *state.State {
	return c.state
}

// SlotOf derives a storage slot position from name parts.
func SlotOf(parts ...[]byte) tera.Bytes32 {
	if len(parts) == 1 && len(parts[0]) <= 32 {
		return tera.BytesToBytes32(parts[0])
	}
	return tera.Blake2b(parts...)
}
