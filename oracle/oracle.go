// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package oracle validates external price data before it reaches any
// accounting path. The feed is never trusted: every quote passes
// independent staleness, bounds and deviation checks regardless of
// what the feed claims about its own validity, and any failure is
// reported as stale-or-invalid so callers fail closed.
package oracle

import (
	"math/big"

	lru "github.com/hashicorp/golang-lru"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/fixedpoint"
	"github.com/terahash/tera/metrics"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/tera"
)

const historySize = 512

var metricRejections = metrics.CounterVec("oracle_rejections_total", []string{"reason"})

// Feed supplies raw quotes. Implementations report the price of one
// unit of the symbol and the time the quote was observed.
type Feed interface {
	Rate(symbol string) (price *big.Int, observedAt uint64, err error)
}

// Sample is an accepted quote.
type Sample struct {
	Price      *big.Int
	ObservedAt uint64
}

// Oracle wraps a feed with the validity checks and keeps the last
// accepted sample per symbol for deviation checks and for serving
// reads when the feed is down.
type Oracle struct {
	feed    Feed
	params  *params.Params
	history *lru.Cache
}

// New creates an oracle over the given feed.
func New(feed Feed, p *params.Params) *Oracle {
	history, _ := lru.New(historySize)
	return &Oracle{feed: feed, params: p, history: history}
}

func reject(reason, format string, args ...any) error {
	metricRejections.AddWithLabel(1, map[string]string{"reason": reason})
	return errs.New(errs.StaleOrInvalidData, format, args...)
}

// Price fetches, validates and records a quote for the symbol.
func (o *Oracle) Price(now uint64, symbol string) (*big.Int, error) {
	price, observedAt, err := o.feed.Rate(symbol)
	if err != nil {
		return nil, reject("feed_error", "feed failed for %s: %v", symbol, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, reject("non_positive", "non-positive price for %s", symbol)
	}
	if observedAt > now {
		return nil, reject("future", "quote for %s observed in the future", symbol)
	}

	staleness, err := o.params.GetUint64(tera.KeyPriceStaleness)
	if err != nil {
		return nil, err
	}
	if staleness > 0 && now-observedAt > staleness {
		return nil, reject("stale", "quote for %s is %ds old, limit %ds", symbol, now-observedAt, staleness)
	}

	floor, err := o.params.Get(tera.KeyPriceFloor)
	if err != nil {
		return nil, err
	}
	if price.Cmp(floor) < 0 {
		return nil, reject("below_floor", "price %v for %s below floor %v", price, symbol, floor)
	}
	ceiling, err := o.params.Get(tera.KeyPriceCeiling)
	if err != nil {
		return nil, err
	}
	if ceiling.Sign() > 0 && price.Cmp(ceiling) > 0 {
		return nil, reject("above_ceiling", "price %v for %s above ceiling %v", price, symbol, ceiling)
	}

	deviationBPS, err := o.params.Get(tera.KeyPriceDeviationBPS)
	if err != nil {
		return nil, err
	}
	if deviationBPS.Sign() > 0 {
		if last, ok := o.LastAccepted(symbol); ok {
			diff := new(big.Int).Sub(price, last.Price)
			diff.Abs(diff)
			bps := diff.Mul(diff, new(big.Int).SetUint64(tera.BPSDivisor))
			bps.Div(bps, last.Price)
			if bps.Cmp(deviationBPS) > 0 {
				return nil, reject("deviation", "price %v for %s deviates %v bps from last accepted %v", price, symbol, bps, last.Price)
			}
		}
	}

	o.history.Add(symbol, &Sample{Price: price, ObservedAt: observedAt})
	return price, nil
}

// Convert values an amount of units at the symbol's current price.
// The result is units*price scaled down by the accrual precision, so
// feeds quote prices in precision-scaled fractions per unit.
func (o *Oracle) Convert(now uint64, symbol string, units *big.Int) (*big.Int, error) {
	price, err := o.Price(now, symbol)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(units, price, tera.PrecisionBig())
}

// LastAccepted returns the most recent sample that passed validation.
func (o *Oracle) LastAccepted(symbol string) (*Sample, bool) {
	v, ok := o.history.Get(symbol)
	if !ok {
		return nil, false
	}
	return v.(*Sample), true
}
