// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fixedpoint provides overflow-checked arithmetic for the
// ratio/share computations of the accrual engine.
//
// All divisions truncate toward zero. By convention the protocol
// retains the truncation remainder: entitlement rounding favors the
// pool, so repeated small claims can never drain more than the exact
// proportional share.
package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/terahash/tera/errs"
)

// MaxMagnitude bounds any caller-influenced operand. Keeping operands
// below 2^128 guarantees a product of two of them fits 256 bits.
var MaxMagnitude = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// CheckMagnitude rejects nil, negative or overflow-risking magnitudes.
// Every entry point that multiplies two caller-influenced values must
// pre-validate both with it instead of relying on wraparound being
// "impossible in practice".
func CheckMagnitude(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return errs.New(errs.InvalidAmount, "negative or missing magnitude")
	}
	if v.Cmp(MaxMagnitude) > 0 {
		return errs.New(errs.Overflow, "magnitude exceeds %s", MaxMagnitude)
	}
	return nil
}

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, errs.New(errs.InvalidAmount, "negative or missing operand")
	}
	w, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errs.New(errs.Overflow, "operand exceeds 256 bits")
	}
	return w, nil
}

// Add returns a+b, rejecting 256-bit overflow.
func Add(a, b *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	sum, carry := new(uint256.Int).AddOverflow(x, y)
	if carry {
		return nil, errs.New(errs.Overflow, "addition overflow")
	}
	return sum.ToBig(), nil
}

// Sub returns a-b, rejecting results below zero.
func Sub(a, b *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	if x.Lt(y) {
		return nil, errs.New(errs.InsufficientPrincipal, "subtraction underflow")
	}
	return new(uint256.Int).Sub(x, y).ToBig(), nil
}

// Mul returns a*b, rejecting 256-bit overflow.
func Mul(a, b *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	prod, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, errs.New(errs.Overflow, "multiplication overflow")
	}
	return prod.ToBig(), nil
}

// MulDiv returns floor(a*b/denom).
//
// The product is checked against 256 bits before division; denom must
// be nonzero. The remainder is discarded (protocol keeps the dust).
func MulDiv(a, b, denom *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	d, err := toWord(denom)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, errs.New(errs.InvalidAmount, "division by zero")
	}
	prod, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, errs.New(errs.Overflow, "multiplication overflow")
	}
	return prod.Div(prod, d).ToBig(), nil
}
