// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pools exposes the staking pool and the vault over REST.
package pools

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/terahash/tera/api/restutil"
	"github.com/terahash/tera/api/types"
	"github.com/terahash/tera/stakepool"
	"github.com/terahash/tera/tera"
	"github.com/terahash/tera/vault"
)

// Pools is the handler set for pool-level endpoints.
type Pools struct {
	staking *stakepool.Pool
	vault   *vault.Vault
	now     func() uint64
}

// New creates the pools handler. now supplies the settlement clock.
func New(staking *stakepool.Pool, v *vault.Vault, now func() uint64) *Pools {
	return &Pools{staking: staking, vault: v, now: now}
}

type moveRequest struct {
	Participant tera.Address  `json:"participant"`
	Amount      *types.Amount `json:"amount,omitempty"`
}

func parseAddress(req *http.Request, name string) (tera.Address, error) {
	addr, err := tera.ParseAddress(mux.Vars(req)[name])
	if err != nil {
		return tera.Address{}, restutil.BadRequest(errors.WithMessage(err, name))
	}
	return addr, nil
}

func (p *Pools) handleStakingStream(w http.ResponseWriter, _ *http.Request) error {
	s, err := p.staking.Ledger().Stream()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, types.ConvertStream(s))
}

func (p *Pools) handleStakingAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req, "address")
	if err != nil {
		return err
	}
	acc, err := p.staking.AccountOf(addr)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	pending, err := p.staking.Pending(p.now(), addr)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, types.ConvertAccount(acc, pending))
}

func (p *Pools) handleStake(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.staking.Stake(p.now(), body.Participant, types.FromAmount(body.Amount)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

func (p *Pools) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.staking.Unstake(p.now(), body.Participant, types.FromAmount(body.Amount)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

func (p *Pools) handleClaim(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	claimed, err := p.staking.ClaimRewards(p.now(), body.Participant)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"claimed": types.ToAmount(claimed)})
}

func (p *Pools) handleExit(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	paid, err := p.staking.Exit(p.now(), body.Participant)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"paidOut": types.ToAmount(paid)})
}

func (p *Pools) handleVaultStream(w http.ResponseWriter, _ *http.Request) error {
	s, err := p.vault.Stream()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, types.ConvertStream(s))
}

func (p *Pools) handleVaultAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req, "address")
	if err != nil {
		return err
	}
	acc, err := p.vault.AccountOf(addr)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	pending, err := p.vault.Pending(p.now(), addr)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, types.ConvertAccount(acc, pending))
}

func (p *Pools) handleVaultDeposit(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.vault.Deposit(p.now(), body.Participant, types.FromAmount(body.Amount)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

func (p *Pools) handleVaultWithdraw(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.vault.Withdraw(p.now(), body.Participant, types.FromAmount(body.Amount)); err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"ok": true})
}

func (p *Pools) handleVaultClaim(w http.ResponseWriter, req *http.Request) error {
	var body moveRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	claimed, err := p.vault.ClaimYield(p.now(), body.Participant)
	if err != nil {
		return restutil.FromTaxonomy(err)
	}
	return restutil.WriteJSON(w, restutil.M{"claimed": types.ToAmount(claimed)})
}

// Mount attaches the handlers under pathPrefix.
func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/staking").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleStakingStream))
	sub.Path("/staking/accounts/{address}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleStakingAccount))
	sub.Path("/staking/stake").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleStake))
	sub.Path("/staking/unstake").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleUnstake))
	sub.Path("/staking/claim").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleClaim))
	sub.Path("/staking/exit").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleExit))

	sub.Path("/vault").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleVaultStream))
	sub.Path("/vault/accounts/{address}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleVaultAccount))
	sub.Path("/vault/deposit").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleVaultDeposit))
	sub.Path("/vault/withdraw").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleVaultWithdraw))
	sub.Path("/vault/claim").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(p.handleVaultClaim))
}
