// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/terahash/tera/tera"
)

// Key is anything usable as a mapping key.
type Key interface {
	Bytes() []byte
}

// Mapping is a key/value storage abstraction for ledger contracts,
// similar to a mapping in Solidity. Slot positions are derived from
// the key and the mapping's base position via blake2b.
type Mapping[K Key, V any] struct {
	context *Context
	basePos tera.Bytes32
}

// NewMapping creates a mapping rooted at the given base position.
func NewMapping[K Key, V any](context *Context, pos tera.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

// Get decodes the value stored under key. An unset slot yields the
// zero value (pointer types get a freshly allocated element).
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	position := tera.Blake2b(key.Bytes(), m.basePos.Bytes())
	err = m.context.state.DecodeStorage(m.context.address, position, func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set encodes and stores the value under key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	position := tera.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.address, position, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Clear deletes the slot under key.
func (m *Mapping[K, V]) Clear(key K) error {
	position := tera.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.address, position, func() ([]byte, error) {
		return nil, nil
	})
}
