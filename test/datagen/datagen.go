// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package datagen provides random fixtures for tests.
package datagen

import (
	"crypto/rand"
	"math/big"

	"github.com/terahash/tera/tera"
)

func RandBytes32() tera.Bytes32 {
	var b32 tera.Bytes32
	rand.Read(b32[:])
	return b32
}

func RandAddress() tera.Address {
	var addr tera.Address
	rand.Read(addr[:])
	return addr
}

// RandAmount returns a positive amount below max.
func RandAmount(max int64) *big.Int {
	n, err := rand.Int(rand.Reader, big.NewInt(max-1))
	if err != nil {
		panic(err)
	}
	return n.Add(n, big.NewInt(1))
}
