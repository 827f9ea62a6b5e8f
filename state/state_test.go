// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/tera"
	"github.com/terahash/tera/test/datagen"
)

var (
	testAddr = tera.BytesToAddress([]byte("contract"))
	testKey  = tera.BytesToBytes32([]byte("slot"))
)

func TestStorageRoundTrip(t *testing.T) {
	st := New(kv.NewMemStore())

	got, err := st.GetStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	value := tera.BytesToBytes32([]byte{1, 2, 3})
	st.SetStorage(testAddr, testKey, value)

	got, err = st.GetStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// zero value clears the slot
	st.SetStorage(testAddr, testKey, tera.Bytes32{})
	raw, err := st.GetRawStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestCheckpointRevert(t *testing.T) {
	st := New(kv.NewMemStore())

	st.SetStorage(testAddr, testKey, tera.BytesToBytes32([]byte{1}))
	cp := st.NewCheckpoint()
	st.SetStorage(testAddr, testKey, tera.BytesToBytes32([]byte{2}))

	got, err := st.GetStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.Equal(t, tera.BytesToBytes32([]byte{2}), got)

	st.RevertTo(cp)
	got, err = st.GetStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.Equal(t, tera.BytesToBytes32([]byte{1}), got)
}

func TestStageCommit(t *testing.T) {
	store := kv.NewMemStore()

	st := New(store)
	st.SetStorage(testAddr, testKey, tera.BytesToBytes32([]byte{7}))
	require.NoError(t, st.Stage().Commit())

	// a fresh state sees the committed value
	st2 := New(store)
	got, err := st2.GetStorage(testAddr, testKey)
	require.NoError(t, err)
	assert.Equal(t, tera.BytesToBytes32([]byte{7}), got)
}

func TestFlush(t *testing.T) {
	store := kv.NewMemStore()
	st := New(store)

	keys := make([]tera.Bytes32, 8)
	values := make([]tera.Bytes32, 8)
	for i := range keys {
		keys[i], values[i] = datagen.RandBytes32(), datagen.RandBytes32()
		st.SetStorage(testAddr, keys[i], values[i])
	}
	require.NoError(t, st.Flush())

	for i := range keys {
		got, err := New(store).GetStorage(testAddr, keys[i])
		require.NoError(t, err)
		assert.Equal(t, values[i], got)
	}

	// the journal restarts; checkpoint/revert keeps working on the
	// same instance
	cp := st.NewCheckpoint()
	st.SetStorage(testAddr, keys[0], datagen.RandBytes32())
	st.RevertTo(cp)

	got, err := st.GetStorage(testAddr, keys[0])
	require.NoError(t, err)
	assert.Equal(t, values[0], got)
}
