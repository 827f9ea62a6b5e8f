// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terahash/tera/errs"
)

func TestMulDiv(t *testing.T) {
	out, err := MulDiv(big.NewInt(1000), big.NewInt(500), big.NewInt(2000))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(250), out)

	// truncates toward zero, protocol keeps the dust
	out, err = MulDiv(big.NewInt(10), big.NewInt(10), big.NewInt(3))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(33), out)

	_, err = MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	assert.True(t, errs.IsKind(err, errs.InvalidAmount))

	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	_, err = MulDiv(huge, huge, big.NewInt(1))
	assert.True(t, errs.IsKind(err, errs.Overflow))
}

func TestAddSub(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := Add(max, big.NewInt(1))
	assert.True(t, errs.IsKind(err, errs.Overflow))

	out, err := Add(big.NewInt(3), big.NewInt(4))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(7), out)

	_, err = Sub(big.NewInt(3), big.NewInt(4))
	assert.True(t, errs.IsKind(err, errs.InsufficientPrincipal))

	out, err = Sub(big.NewInt(4), big.NewInt(3))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1), out)
}

func TestMulOverflow(t *testing.T) {
	big129 := new(big.Int).Lsh(big.NewInt(1), 129)
	_, err := Mul(big129, big129)
	assert.True(t, errs.IsKind(err, errs.Overflow))

	out, err := Mul(big.NewInt(6), big.NewInt(7))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(42), out)
}

func TestCheckMagnitude(t *testing.T) {
	assert.NoError(t, CheckMagnitude(big.NewInt(1)))
	assert.True(t, errs.IsKind(CheckMagnitude(big.NewInt(-1)), errs.InvalidAmount))
	assert.True(t, errs.IsKind(CheckMagnitude(nil), errs.InvalidAmount))

	over := new(big.Int).Add(MaxMagnitude, big.NewInt(1))
	assert.True(t, errs.IsKind(CheckMagnitude(over), errs.Overflow))
	assert.NoError(t, CheckMagnitude(new(big.Int).Set(MaxMagnitude)))
}
