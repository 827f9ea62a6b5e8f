// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package positions exposes the mining pool's positions over REST.
package positions

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/terahash/tera/api/restutil"
	"github.com/terahash/tera/api/types"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/tera"
)

// Positions is the handler set for position endpoints.
type Positions struct {
	pool *mining.Pool
	now  func() uint64
}

// New creates the positions handler.
func New(pool *mining.Pool, now func() uint64) *Positions {
	return &Positions{pool: pool, now: now}
}

type openRequest struct {
	ID    tera.Bytes32  `json:"id"`
	Owner tera.Address  `json:"owner"`
	Units *types.Amount `json:"units"`
}

type callerRequest struct {
	Caller tera.Address `json:"caller"`
}

func parseID(req *http.Request) (tera.Bytes32, error) {
	id, err := tera.ParseBytes32(mux.Vars(req)["id"])
	if err != nil {
		return tera.Bytes32{}, restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	return id, nil
}

func (p *Positions) handleOpen(w http.ResponseWriter, req *http.Request) error {
	var body openRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.pool.Open(p.now(), body.ID, body.Owner, types.FromAmount(body.Units)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	info, err := p.pool.Position(p.now(), body.ID)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, types.ConvertPosition(info))
}

func (p *Positions) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	info, err := p.pool.Position(p.now(), id)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, types.ConvertPosition(info))
}

func (p *Positions) handleList(w http.ResponseWriter, req *http.Request) error {
	owner, err := tera.ParseAddress(req.URL.Query().Get("owner"))
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "owner"))
	}
	infos, err := p.pool.List(p.now(), owner)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	out := make([]*types.Position, 0, len(infos))
	for _, info := range infos {
		out = append(out, types.ConvertPosition(info))
	}
	return restutil.WriteJSON(w, out)
}

func (p *Positions) handleRedeem(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body callerRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	redeemed, err := p.pool.Redeem(p.now(), id, body.Caller)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"redeemed": types.ToAmount(redeemed)})
}

type reduceRequest struct {
	Caller tera.Address  `json:"caller"`
	Amount *types.Amount `json:"amount"`
}

func (p *Positions) handleReduce(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body reduceRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.pool.Reduce(p.now(), id, body.Caller, types.FromAmount(body.Amount)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	info, err := p.pool.Position(p.now(), id)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, types.ConvertPosition(info))
}

func (p *Positions) handleClose(w http.ResponseWriter, req *http.Request) error {
	id, err := parseID(req)
	if err != nil {
		return err
	}
	var body callerRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	paid, err := p.pool.Close(p.now(), id, body.Caller)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"rewards": types.ToAmount(paid)})
}

// Mount attaches the handlers under pathPrefix.
func (p *Positions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleOpen))
	sub.Path("").
		Methods(http.MethodGet).
		Queries("owner", "{owner}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleList))
	sub.Path("/{id}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGet))
	sub.Path("/{id}/redeem").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleRedeem))
	sub.Path("/{id}/reduce").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleReduce))
	sub.Path("/{id}/close").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleClose))
}
