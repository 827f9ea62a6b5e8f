// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap provides a map with save-restore/snapshot-revert
// semantics. It backs the ledger state so that a failed operation can
// be rolled back without partial writes.
package stackedmap

// StackedMap maintains maps in a stack.
// Each map inherits the key/value pairs of maps at lower levels.
type StackedMap struct {
	src            MapGetter
	mapStack       mapStack
	keyRevisionMap map[any]*stack
}

type level struct {
	kvs     map[any]any
	journal []*JournalEntry
}

func newLevel() *level {
	return &level{kvs: make(map[any]any)}
}

// JournalEntry entry of the write journal.
type JournalEntry struct {
	Key   any
	Value any
}

// MapGetter defines the getter of the backing source.
type MapGetter func(key any) (value any, exist bool, err error)

// New creates an instance of StackedMap. src acts as the source of data.
func New(src MapGetter) *StackedMap {
	return &StackedMap{
		src,
		mapStack{},
		make(map[any]*stack),
	}
}

// Depth returns the depth of the stack.
func (sm *StackedMap) Depth() int {
	return len(sm.mapStack)
}

// Push pushes a new map on the stack and returns the stack depth before push.
func (sm *StackedMap) Push() int {
	sm.mapStack.push(newLevel())
	return len(sm.mapStack) - 1
}

// Pop pops the map at the top of the stack.
// It reverts all Put operations since the last Push.
func (sm *StackedMap) Pop() {
	top := sm.mapStack.top()
	for key := range top.kvs {
		revs := sm.keyRevisionMap[key]
		revs.pop()
		if len(*revs) == 0 {
			delete(sm.keyRevisionMap, key)
		}
	}
	sm.mapStack.pop()
}

// PopTo pops maps until the stack depth reaches depth.
func (sm *StackedMap) PopTo(depth int) {
	for len(sm.mapStack) > depth {
		sm.Pop()
	}
}

// Get gets the value for the given key.
// The second return value indicates whether the key was found.
func (sm *StackedMap) Get(key any) (any, bool, error) {
	if revs, ok := sm.keyRevisionMap[key]; ok {
		lvl := sm.mapStack[revs.top()]
		if v, ok := lvl.kvs[key]; ok {
			return v, true, nil
		}
	}
	return sm.src(key)
}

// Put puts a key/value pair into the map at the stack top.
// It panics if the stack is empty.
func (sm *StackedMap) Put(key, value any) {
	top := sm.mapStack.top()
	top.kvs[key] = value
	top.journal = append(top.journal, &JournalEntry{Key: key, Value: value})

	// record key revision for fast access
	rev := len(sm.mapStack) - 1
	if revs, ok := sm.keyRevisionMap[key]; ok {
		revs.push(rev)
	} else {
		sm.keyRevisionMap[key] = &stack{rev}
	}
}

// Journal iterates the journal of all Put operations, bottom-up.
// The iteration stops when the callback returns false.
func (sm *StackedMap) Journal(cb func(key, value any) bool) {
	for _, lvl := range sm.mapStack {
		for _, entry := range lvl.journal {
			if !cb(entry.Key, entry.Value) {
				return
			}
		}
	}
}

type mapStack []*level

func (s *mapStack) pop()          { *s = (*s)[:len(*s)-1] }
func (s *mapStack) push(l *level) { *s = append(*s, l) }
func (s mapStack) top() *level    { return s[len(s)-1] }

type stack []int

func (s *stack) pop()       { *s = (*s)[:len(*s)-1] }
func (s *stack) push(v int) { *s = append(*s, v) }
func (s stack) top() int    { return s[len(s)-1] }
