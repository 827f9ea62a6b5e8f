// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"math/big"

	"github.com/terahash/tera/tera"
)

// Uint256 is a wrapper for storage and retrieval of a big integer at a
// fixed slot, like declaring a uint256 in a smart contract.
type Uint256 struct {
	context *Context
	pos     tera.Bytes32
}

// NewUint256 creates a Uint256 at the given slot.
func NewUint256(context *Context, pos tera.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	stored, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(stored.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) {
	u.context.state.SetStorage(u.context.address, u.pos, tera.BytesToBytes32(value.Bytes()))
}

func (u *Uint256) Add(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(stored.Add(stored, value))
	return nil
}

func (u *Uint256) Sub(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(stored.Sub(stored, value))
	return nil
}

// Uint64 is a wrapper for storage and retrieval of a uint64 at a fixed
// slot. Used for timestamps and counters.
type Uint64 struct {
	context *Context
	pos     tera.Bytes32
}

// NewUint64 creates a Uint64 at the given slot.
func NewUint64(context *Context, pos tera.Bytes32) *Uint64 {
	return &Uint64{context: context, pos: pos}
}

func (u *Uint64) Get() (uint64, error) {
	stored, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(stored.Bytes()).Uint64(), nil
}

func (u *Uint64) Set(value uint64) {
	u.context.state.SetStorage(u.context.address, u.pos, tera.BytesToBytes32(new(big.Int).SetUint64(value).Bytes()))
}

// Bool is a wrapper for storage and retrieval of a flag at a fixed slot.
type Bool struct {
	inner *Uint64
}

// NewBool creates a Bool at the given slot.
func NewBool(context *Context, pos tera.Bytes32) *Bool {
	return &Bool{inner: NewUint64(context, pos)}
}

func (b *Bool) Get() (bool, error) {
	v, err := b.inner.Get()
	return v != 0, err
}

func (b *Bool) Set(value bool) {
	if value {
		b.inner.Set(1)
	} else {
		b.inner.Set(0)
	}
}

// Bytes32Slot is a wrapper for storage and retrieval of a Bytes32 value
// at a fixed slot. Used for linked list head/tail pointers.
type Bytes32Slot struct {
	context *Context
	pos     tera.Bytes32
}

// NewBytes32Slot creates a Bytes32Slot at the given slot.
func NewBytes32Slot(context *Context, pos tera.Bytes32) *Bytes32Slot {
	return &Bytes32Slot{context: context, pos: pos}
}

func (s *Bytes32Slot) Get() (tera.Bytes32, error) {
	return s.context.state.GetStorage(s.context.address, s.pos)
}

func (s *Bytes32Slot) Set(value tera.Bytes32) {
	s.context.state.SetStorage(s.context.address, s.pos, value)
}

// AddressSlot is a wrapper for storage and retrieval of an address at a
// fixed slot.
type AddressSlot struct {
	context *Context
	pos     tera.Bytes32
}

// NewAddressSlot creates an AddressSlot at the given slot.
func NewAddressSlot(context *Context, pos tera.Bytes32) *AddressSlot {
	return &AddressSlot{context: context, pos: pos}
}

func (s *AddressSlot) Get() (tera.Address, error) {
	stored, err := s.context.state.GetStorage(s.context.address, s.pos)
	if err != nil {
		return tera.Address{}, err
	}
	return tera.BytesToAddress(stored.Bytes()), nil
}

func (s *AddressSlot) Set(addr tera.Address) {
	s.context.state.SetStorage(s.context.address, s.pos, tera.BytesToBytes32(addr.Bytes()))
}
