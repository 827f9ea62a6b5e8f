// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package params implements the governance parameter store consulted
// by policy checks. Values are addressed by well-known keys and
// adjustable at runtime through the administrative interface.
package params

import (
	"math/big"

	"github.com/terahash/tera/state"
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

// Params binder of the parameter store.
type Params struct {
	ctx *storage.Context
}

// New creates a params instance.
func New(addr tera.Address, st *state.State) *Params {
	return &Params{ctx: storage.NewContext(addr, st)}
}

// Get returns the parameter value for the key, zero if unset.
func (p *Params) Get(key tera.Bytes32) (*big.Int, error) {
	stored, err := p.ctx.State().GetStorage(p.ctx.Address(), key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(stored.Bytes()), nil
}

// GetUint64 returns the parameter value as uint64.
func (p *Params) GetUint64(key tera.Bytes32) (uint64, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// Set updates the parameter value for the key.
func (p *Params) Set(key tera.Bytes32, value *big.Int) {
	p.ctx.State().SetStorage(p.ctx.Address(), key, tera.BytesToBytes32(value.Bytes()))
}

// SetUint64 updates the parameter value from a uint64.
func (p *Params) SetUint64(key tera.Bytes32, value uint64) {
	p.Set(key, new(big.Int).SetUint64(value))
}

var keysByName = map[string]tera.Bytes32{
	"minPrincipal":      tera.KeyMinPrincipal,
	"maxPrincipal":      tera.KeyMaxPrincipal,
	"poolCapacity":      tera.KeyPoolCapacity,
	"lockupPeriod":      tera.KeyLockupPeriod,
	"rateWindow":        tera.KeyRateWindow,
	"rateCeiling":       tera.KeyRateCeiling,
	"dailyCap":          tera.KeyDailyCap,
	"deviationBPS":      tera.KeyDeviationBPS,
	"priceStaleness":    tera.KeyPriceStaleness,
	"priceFloor":        tera.KeyPriceFloor,
	"priceCeiling":      tera.KeyPriceCeiling,
	"priceDeviationBPS": tera.KeyPriceDeviationBPS,
}

// KeyByName resolves the external name of a governance parameter.
func KeyByName(name string) (tera.Bytes32, bool) {
	key, ok := keysByName[name]
	return key, ok
}
