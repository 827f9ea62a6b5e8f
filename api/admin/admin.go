// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin exposes the capability-guarded administrative
// operations: pausing, freezing, rate and parameter changes, breaker
// resets and forced deactivations. The capability check itself lives
// in the policy guard; handlers only carry the caller through.
package admin

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/terahash/tera/api/restutil"
	"github.com/terahash/tera/api/types"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/stakepool"
	"github.com/terahash/tera/tera"
	"github.com/terahash/tera/vault"
)

// Admin is the handler set for administrative endpoints.
type Admin struct {
	staking *stakepool.Pool
	mining  *mining.Pool
	vault   *vault.Vault
	params  *params.Params
	now     func() uint64
}

// New creates the admin handler.
func New(staking *stakepool.Pool, m *mining.Pool, v *vault.Vault, p *params.Params, now func() uint64) *Admin {
	return &Admin{staking: staking, mining: m, vault: v, params: p, now: now}
}

type pauseRequest struct {
	Caller tera.Address `json:"caller"`
	Pool   string       `json:"pool"`
	Paused bool         `json:"paused"`
}

func (a *Admin) handlePause(w http.ResponseWriter, req *http.Request) error {
	var body pauseRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	var err error
	switch body.Pool {
	case "staking":
		err = a.staking.SetPaused(body.Caller, body.Paused)
	case "mining":
		err = a.mining.SetPaused(body.Caller, body.Paused)
	case "vault":
		err = a.vault.SetPaused(body.Caller, body.Paused)
	default:
		return restutil.BadRequest(errors.Errorf("unknown pool %q", body.Pool))
	}
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

type freezeRequest struct {
	Caller      tera.Address `json:"caller"`
	Participant tera.Address `json:"participant"`
	Frozen      bool         `json:"frozen"`
}

func (a *Admin) handleFreeze(w http.ResponseWriter, req *http.Request) error {
	var body freezeRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := a.staking.SetFrozen(body.Caller, body.Participant, body.Frozen); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

type rateRequest struct {
	Caller tera.Address  `json:"caller"`
	Pool   string        `json:"pool"`
	Rate   *types.Amount `json:"rate"`
}

func (a *Admin) handleSetRate(w http.ResponseWriter, req *http.Request) error {
	var body rateRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	var err error
	switch body.Pool {
	case "staking":
		err = a.staking.SetRate(body.Caller, a.now(), types.FromAmount(body.Rate))
	case "mining":
		err = a.mining.SetRate(body.Caller, a.now(), types.FromAmount(body.Rate))
	default:
		return restutil.BadRequest(errors.Errorf("pool %q has no rate", body.Pool))
	}
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

type breakerRequest struct {
	Caller tera.Address `json:"caller"`
}

func (a *Admin) handleResetBreaker(w http.ResponseWriter, req *http.Request) error {
	var body breakerRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := a.vault.ResetBreaker(body.Caller); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

type deactivateRequest struct {
	Caller      tera.Address  `json:"caller"`
	Pool        string        `json:"pool"`
	Participant *tera.Address `json:"participant,omitempty"`
	Position    *tera.Bytes32 `json:"position,omitempty"`
}

func (a *Admin) handleDeactivate(w http.ResponseWriter, req *http.Request) error {
	var body deactivateRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	var err error
	switch body.Pool {
	case "staking":
		if body.Participant == nil {
			return restutil.BadRequest(errors.New("participant required"))
		}
		err = a.staking.Deactivate(body.Caller, a.now(), *body.Participant)
	case "mining":
		if body.Position == nil {
			return restutil.BadRequest(errors.New("position required"))
		}
		err = a.mining.Deactivate(body.Caller, a.now(), *body.Position)
	default:
		return restutil.BadRequest(errors.Errorf("unknown pool %q", body.Pool))
	}
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

type paramRequest struct {
	Caller tera.Address  `json:"caller"`
	Key    string        `json:"key"`
	Value  *types.Amount `json:"value"`
}

func (a *Admin) handleSetParam(w http.ResponseWriter, req *http.Request) error {
	var body paramRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	key, ok := params.KeyByName(body.Key)
	if !ok {
		return restutil.BadRequest(errors.Errorf("unknown parameter %q", body.Key))
	}
	if body.Value == nil {
		return restutil.BadRequest(errors.New("value required"))
	}
	if err := a.staking.SetParam(body.Caller, a.params, key, types.FromAmount(body.Value)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

// Mount attaches the handlers under pathPrefix.
func (a *Admin) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/pause").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handlePause))
	sub.Path("/freeze").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handleFreeze))
	sub.Path("/rate").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handleSetRate))
	sub.Path("/breaker/reset").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handleResetBreaker))
	sub.Path("/deactivate").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handleDeactivate))
	sub.Path("/params").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(a.handleSetParam))
}
