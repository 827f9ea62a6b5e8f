// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	store := NewMemStore()
	defer store.Close()

	_, err := store.Get([]byte("missing"))
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	has, err := store.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.Delete([]byte("k")))
	_, err = store.Get([]byte("k"))
	assert.True(t, store.IsNotFound(err))
}

func TestBatch(t *testing.T) {
	store := NewMemStore()
	defer store.Close()

	batch := store.NewBatch()
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Put([]byte("b"), []byte("2")))
	assert.Equal(t, 2, batch.Len())

	// nothing visible before write
	_, err := store.Get([]byte("a"))
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, batch.Write())
	got, err := store.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestBucket(t *testing.T) {
	store := NewMemStore()
	defer store.Close()

	b1 := Bucket("x-").NewStore(store)
	b2 := Bucket("y-").NewStore(store)

	require.NoError(t, b1.Put([]byte("k"), []byte("1")))
	require.NoError(t, b2.Put([]byte("k"), []byte("2")))

	got, err := b1.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	it := b2.Iterate(Range{})
	defer it.Release()
	require.True(t, it.Next())
	assert.Equal(t, []byte("k"), it.Key())
	assert.Equal(t, []byte("2"), it.Value())
	assert.False(t, it.Next())
}
