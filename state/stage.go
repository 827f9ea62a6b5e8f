// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/terahash/tera/kv"
)

// Stage is a snapshot of pending state changes, ready to be committed
// to the backing store in one atomic batch.
type Stage struct {
	store   kv.Store
	changes map[storageKey]rlp.RawValue
}

// Len returns the number of dirty slots.
func (s *Stage) Len() int {
	return len(s.changes)
}

// Commit writes all changes to the backing store atomically.
func (s *Stage) Commit() error {
	batch := s.store.NewBatch()
	for key, raw := range s.changes {
		if len(raw) == 0 {
			if err := batch.Delete(key.persistKey()); err != nil {
				return &Error{err}
			}
			continue
		}
		if err := batch.Put(key.persistKey(), raw); err != nil {
			return &Error{err}
		}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}
	return nil
}
