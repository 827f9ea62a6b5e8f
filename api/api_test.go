// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terahash/tera/api/types"
	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/oracle"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/stakepool"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
	"github.com/terahash/tera/vault"
)

var (
	adminAddr = tera.BytesToAddress([]byte("admin"))
	alice     = tera.BytesToAddress([]byte("alice"))
)

// nilMover satisfies every transfer interface without moving anything.
type nilMover struct{}

func (nilMover) TransferIn(tera.Address, *big.Int) error  { return nil }
func (nilMover) TransferOut(tera.Address, *big.Int) error { return nil }
func (nilMover) Pay(tera.Address, *big.Int) error         { return nil }

type staticSource struct{}

func (staticSource) BalanceOf(tera.Address) (*big.Int, uint64, error) {
	return new(big.Int), 0, nil
}

type staticFeed struct{}

func (staticFeed) Rate(string) (*big.Int, uint64, error) {
	return tera.PrecisionBig(), 0, nil
}

type testServer struct {
	url  string
	now  uint64
	http *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := state.New(kv.NewMemStore())
	p := params.New(tera.BytesToAddress([]byte("params")), st)
	guard := policy.New(tera.BytesToAddress([]byte("guard")), st, p)
	guard.Init(adminAddr)

	ts := &testServer{}
	now := func() uint64 { return ts.now }

	staking := stakepool.New(tera.BytesToAddress([]byte("staking")), st, guard, nilMover{})
	require.NoError(t, staking.Init(0, big.NewInt(100)))
	m := mining.New(tera.BytesToAddress([]byte("mining")), st, guard, oracle.New(staticFeed{}, p), nilMover{}, "ths")
	require.NoError(t, m.Init(0, tera.PrecisionBig()))
	v := vault.New(tera.BytesToAddress([]byte("vault")), st, guard, staticSource{}, nilMover{}, 0, 0)
	require.NoError(t, v.Init(0))

	handler, subs := New(Config{
		Staking: staking,
		Mining:  m,
		Vault:   v,
		Params:  p,
		Now:     now,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Cleanup(subs.Close)
	ts.url = srv.URL
	ts.http = srv
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body any) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(ts.url+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func (ts *testServer) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	res, err := http.Get(ts.url + path)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func TestStakingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.post(t, "/pools/staking/stake", map[string]any{
		"participant": alice.String(),
		"amount":      "1000",
	})
	require.Equal(t, http.StatusOK, status)

	ts.now = 10
	status, body := ts.get(t, "/pools/staking/accounts/"+alice.String())
	require.Equal(t, http.StatusOK, status)
	var acc types.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, "active", acc.Status)
	assert.Equal(t, big.NewInt(1000), types.FromAmount(acc.Principal))
	assert.Equal(t, big.NewInt(1000), types.FromAmount(acc.Pending))

	status, body = ts.post(t, "/pools/staking/claim", map[string]any{"participant": alice.String()})
	require.Equal(t, http.StatusOK, status)
	var claim struct {
		Claimed *types.Amount `json:"claimed"`
	}
	require.NoError(t, json.Unmarshal(body, &claim))
	assert.Equal(t, big.NewInt(1000), types.FromAmount(claim.Claimed))

	status, body = ts.get(t, "/pools/staking")
	require.Equal(t, http.StatusOK, status)
	var stream types.Stream
	require.NoError(t, json.Unmarshal(body, &stream))
	assert.Equal(t, big.NewInt(1000), types.FromAmount(stream.TotalPrincipal))
}

func TestStakingErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	// nothing staked: claim has no entitlement
	status, _ := ts.post(t, "/pools/staking/stake", map[string]any{
		"participant": alice.String(),
		"amount":      "1000",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.post(t, "/pools/staking/claim", map[string]any{"participant": alice.String()})
	assert.Equal(t, http.StatusBadRequest, status)

	// unknown fields are rejected by strict parsing
	status, _ = ts.post(t, "/pools/staking/stake", map[string]any{
		"participant": alice.String(),
		"amount":      "10",
		"bogus":       true,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// paused pool maps to 503
	status, _ = ts.post(t, "/admin/pause", map[string]any{
		"caller": adminAddr.String(),
		"pool":   "staking",
		"paused": true,
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.post(t, "/pools/staking/stake", map[string]any{
		"participant": alice.String(),
		"amount":      "10",
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	// non-admin caller maps to 403
	status, _ = ts.post(t, "/admin/pause", map[string]any{
		"caller": alice.String(),
		"pool":   "staking",
		"paused": false,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPositionsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	posID := tera.BytesToBytes32([]byte("p1"))

	status, body := ts.post(t, "/positions", map[string]any{
		"id":    posID.String(),
		"owner": alice.String(),
		"units": "100",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var pos types.Position
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.Equal(t, "active", pos.Status)
	assert.Equal(t, big.NewInt(100), types.FromAmount(pos.Principal))

	ts.now = 10
	status, body = ts.get(t, fmt.Sprintf("/positions/%v", posID))
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.Equal(t, big.NewInt(1000), types.FromAmount(pos.Pending))

	status, body = ts.get(t, "/positions?owner="+alice.String())
	require.Equal(t, http.StatusOK, status)
	var list []*types.Position
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	status, _ = ts.post(t, fmt.Sprintf("/positions/%v/redeem", posID), map[string]any{"caller": alice.String()})
	require.Equal(t, http.StatusOK, status)

	// unknown position maps to 404
	missing := tera.BytesToBytes32([]byte("missing"))
	status, _ = ts.get(t, fmt.Sprintf("/positions/%v", missing))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestParamEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.post(t, "/admin/params", map[string]any{
		"caller": adminAddr.String(),
		"key":    "minPrincipal",
		"value":  "500",
	})
	require.Equal(t, http.StatusOK, status)

	// stakes below the new minimum are denied
	status, _ = ts.post(t, "/pools/staking/stake", map[string]any{
		"participant": alice.String(),
		"amount":      "100",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.post(t, "/admin/params", map[string]any{
		"caller": adminAddr.String(),
		"key":    "unknown",
		"value":  "1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}
