// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package oracle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
)

type fakeFeed struct {
	price      *big.Int
	observedAt uint64
	err        error
}

func (f *fakeFeed) Rate(string) (*big.Int, uint64, error) {
	return f.price, f.observedAt, f.err
}

func newOracle(t *testing.T, feed *fakeFeed) (*Oracle, *params.Params) {
	t.Helper()
	st := state.New(kv.NewMemStore())
	p := params.New(tera.BytesToAddress([]byte("params")), st)
	p.SetUint64(tera.KeyPriceStaleness, 60)
	return New(feed, p), p
}

func TestPriceAccepted(t *testing.T) {
	feed := &fakeFeed{price: big.NewInt(1000), observedAt: 90}
	o, _ := newOracle(t, feed)

	got, err := o.Price(100, "ths")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), got)

	last, ok := o.LastAccepted("ths")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1000), last.Price)
	assert.Equal(t, uint64(90), last.ObservedAt)
}

func TestPriceFailsClosed(t *testing.T) {
	feed := &fakeFeed{price: big.NewInt(1000), observedAt: 90}
	o, p := newOracle(t, feed)

	// feed error
	feed.err = errors.New("connection refused")
	_, err := o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
	feed.err = nil

	// non-positive price
	feed.price = big.NewInt(0)
	_, err = o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
	feed.price = big.NewInt(1000)

	// observed in the future
	feed.observedAt = 200
	_, err = o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))

	// stale beyond the configured limit
	feed.observedAt = 30
	_, err = o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
	feed.observedAt = 90

	// bounds
	p.Set(tera.KeyPriceFloor, big.NewInt(500))
	p.Set(tera.KeyPriceCeiling, big.NewInt(2000))
	feed.price = big.NewInt(499)
	_, err = o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
	feed.price = big.NewInt(2001)
	_, err = o.Price(100, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))

	// nothing was ever accepted
	_, ok := o.LastAccepted("ths")
	assert.False(t, ok)
}

func TestPriceDeviation(t *testing.T) {
	feed := &fakeFeed{price: big.NewInt(1000), observedAt: 90}
	o, p := newOracle(t, feed)
	p.SetUint64(tera.KeyPriceDeviationBPS, 1000) // 10%

	_, err := o.Price(100, "ths")
	require.NoError(t, err)

	// 11% jump rejected, last accepted unchanged
	feed.price = big.NewInt(1110)
	feed.observedAt = 100
	_, err = o.Price(110, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
	last, ok := o.LastAccepted("ths")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1000), last.Price)

	// 10% exactly passes and becomes the new reference
	feed.price = big.NewInt(1100)
	_, err = o.Price(110, "ths")
	require.NoError(t, err)
	last, _ = o.LastAccepted("ths")
	assert.Equal(t, big.NewInt(1100), last.Price)

	// drops are measured the same way
	feed.price = big.NewInt(900)
	feed.observedAt = 120
	_, err = o.Price(120, "ths")
	assert.True(t, errs.IsKind(err, errs.StaleOrInvalidData))
}

func TestConvert(t *testing.T) {
	// price of 2.5 per unit, precision-scaled
	price := new(big.Int).Mul(big.NewInt(25), new(big.Int).SetUint64(tera.AccrualPrecision/10))
	feed := &fakeFeed{price: price, observedAt: 100}
	o, _ := newOracle(t, feed)

	got, err := o.Convert(100, "ths", big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2500), got)
}

func TestRetryable(t *testing.T) {
	feed := &fakeFeed{err: errors.New("down")}
	o, _ := newOracle(t, feed)
	_, err := o.Price(100, "ths")
	assert.True(t, errs.KindOf(err).Retryable())
}
