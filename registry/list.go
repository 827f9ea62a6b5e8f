// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

// ownerList is a doubly linked list of one owner's open positions,
// threaded through the Position records themselves. Head, tail and
// count live in per-owner mappings so listing an owner never scans
// other owners' positions.
type ownerList struct {
	owner     tera.Address
	heads     *storage.Mapping[tera.Address, tera.Bytes32]
	tails     *storage.Mapping[tera.Address, tera.Bytes32]
	counts    *storage.Mapping[tera.Address, uint64]
	positions *storage.Mapping[tera.Bytes32, *Position]
}

// add appends the position to the tail of the owner's list.
func (l *ownerList) add(id tera.Bytes32, pos *Position) error {
	pos.Next = nil
	pos.Prev = nil

	oldTailID, err := l.tails.Get(l.owner)
	if err != nil {
		return err
	}
	if oldTailID.IsZero() {
		// list is empty, this entry becomes head and tail
		if err := l.heads.Set(l.owner, id); err != nil {
			return err
		}
		if err := l.tails.Set(l.owner, id); err != nil {
			return err
		}
		if err := l.positions.Set(id, pos); err != nil {
			return err
		}
		return l.bump(1)
	}

	oldTail, err := l.positions.Get(oldTailID)
	if err != nil {
		return err
	}
	oldTail.Next = &id
	pos.Prev = &oldTailID

	if err := l.positions.Set(oldTailID, oldTail); err != nil {
		return err
	}
	if err := l.positions.Set(id, pos); err != nil {
		return err
	}
	if err := l.tails.Set(l.owner, id); err != nil {
		return err
	}
	return l.bump(1)
}

// remove unlinks the position and persists it with cleared pointers.
func (l *ownerList) remove(id tera.Bytes32, pos *Position) error {
	prev := pos.Prev
	next := pos.Next

	if prev == nil || prev.IsZero() {
		head := tera.Bytes32{}
		if next != nil {
			head = *next
		}
		if err := l.heads.Set(l.owner, head); err != nil {
			return err
		}
	} else {
		prevEntry, err := l.positions.Get(*prev)
		if err != nil {
			return err
		}
		prevEntry.Next = next
		if err := l.positions.Set(*prev, prevEntry); err != nil {
			return err
		}
	}

	if next == nil || next.IsZero() {
		tail := tera.Bytes32{}
		if prev != nil {
			tail = *prev
		}
		if err := l.tails.Set(l.owner, tail); err != nil {
			return err
		}
	} else {
		nextEntry, err := l.positions.Get(*next)
		if err != nil {
			return err
		}
		nextEntry.Prev = prev
		if err := l.positions.Set(*next, nextEntry); err != nil {
			return err
		}
	}

	pos.Next = nil
	pos.Prev = nil
	if err := l.positions.Set(id, pos); err != nil {
		return err
	}
	return l.bump(-1)
}

func (l *ownerList) bump(delta int64) error {
	count, err := l.counts.Get(l.owner)
	if err != nil {
		return err
	}
	return l.counts.Set(l.owner, uint64(int64(count)+delta))
}

// iter walks the list from head to tail.
func (l *ownerList) iter(callback func(tera.Bytes32, *Position) error) error {
	ptr, err := l.heads.Get(l.owner)
	if err != nil {
		return err
	}
	for !ptr.IsZero() {
		entry, err := l.positions.Get(ptr)
		if err != nil {
			return err
		}
		if entry.IsEmpty() {
			break
		}
		if err := callback(ptr, entry); err != nil {
			return err
		}
		if entry.Next == nil || entry.Next.IsZero() {
			break
		}
		ptr = *entry.Next
	}
	return nil
}
