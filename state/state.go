// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/stackedmap"
	"github.com/terahash/tera/tera"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// storageKey addresses one storage slot of one contract.
type storageKey struct {
	addr tera.Address
	key  tera.Bytes32
}

func (k storageKey) persistKey() []byte {
	return append(k.addr.Bytes(), k.key.Bytes()...)
}

// State manages contract storage with checkpoint/revert semantics.
// All reads pass through the journal overlay; nothing hits the store
// until Stage(...).Commit().
type State struct {
	store kv.Store
	sm    *stackedmap.StackedMap
}

// New creates a state object backed by the given store.
func New(store kv.Store) *State {
	st := &State{store: store}
	st.sm = stackedmap.New(func(key any) (any, bool, error) {
		return st.storeGetter(key)
	})
	// base layer; never popped
	st.sm.Push()
	return st
}

// storeGetter implements stackedmap.MapGetter.
func (s *State) storeGetter(key any) (any, bool, error) {
	k, ok := key.(storageKey)
	if !ok {
		return nil, false, &Error{fmt.Errorf("unexpected key type %T", key)}
	}
	raw, err := s.store.Get(k.persistKey())
	if err != nil {
		if s.store.IsNotFound(err) {
			return rlp.RawValue(nil), true, nil
		}
		return nil, false, &Error{err}
	}
	return rlp.RawValue(raw), true, nil
}

// GetRawStorage gets the RLP encoded storage value for the given slot.
func (s *State) GetRawStorage(addr tera.Address, key tera.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, err
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage sets the RLP encoded storage value for the given slot.
// An empty value marks the slot deleted.
func (s *State) SetRawStorage(addr tera.Address, key tera.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage gets the plain Bytes32 value stored at the given slot.
func (s *State) GetStorage(addr tera.Address, key tera.Bytes32) (tera.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return tera.Bytes32{}, err
	}
	if len(raw) == 0 {
		return tera.Bytes32{}, nil
	}
	var content []byte
	if err := rlp.DecodeBytes(raw, &content); err != nil {
		return tera.Bytes32{}, &Error{err}
	}
	return tera.BytesToBytes32(content), nil
}

// SetStorage sets a plain Bytes32 value at the given slot.
// Leading zero bytes are trimmed before encoding; a zero value clears the slot.
func (s *State) SetStorage(addr tera.Address, key, value tera.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	trimmed := value.Bytes()
	for len(trimmed) > 0 && trimmed[0] == 0 {
		trimmed = trimmed[1:]
	}
	data, _ := rlp.EncodeToBytes(trimmed)
	s.SetRawStorage(addr, key, data)
}

// EncodeStorage sets the storage value encoded by the given enc callback.
// An empty returned value marks the slot deleted.
func (s *State) EncodeStorage(addr tera.Address, key tera.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage gets the storage value and decodes it via the dec callback.
// The callback receives an empty slice for an unset slot.
func (s *State) DecodeStorage(addr tera.Address, key tera.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of the current state.
// It returns the checkpoint to be passed to RevertTo.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts all writes after the given checkpoint.
func (s *State) RevertTo(checkpoint int) {
	s.sm.PopTo(checkpoint)
}

// Flush commits all pending changes and resets the journal to a fresh
// base layer. Used by long-running services to bound journal growth;
// checkpoints taken before a flush are invalidated.
func (s *State) Flush() error {
	if err := s.Stage().Commit(); err != nil {
		return err
	}
	s.sm = stackedmap.New(func(key any) (any, bool, error) {
		return s.storeGetter(key)
	})
	s.sm.Push()
	return nil
}

// Stage flattens the journal into a commitable stage.
func (s *State) Stage() *Stage {
	changes := make(map[storageKey]rlp.RawValue)
	s.sm.Journal(func(key, value any) bool {
		changes[key.(storageKey)] = value.(rlp.RawValue)
		return true
	})
	return &Stage{store: s.store, changes: changes}
}
