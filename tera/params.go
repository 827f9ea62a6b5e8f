// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tera

import "math/big"

// Constants of the accrual protocol.
const (
	// AccrualPrecision is the fixed-point scale of the accrual index
	// (reward per unit of principal).
	AccrualPrecision uint64 = 1e12

	// DayWindow is the width of the daily policy window in seconds.
	DayWindow uint64 = 24 * 60 * 60

	// BPSDivisor basis point denominator used by deviation thresholds.
	BPSDivisor uint64 = 10_000
)

// Keys of governance params.
var (
	KeyMinPrincipal      = BytesToBytes32([]byte("min-principal"))
	KeyMaxPrincipal      = BytesToBytes32([]byte("max-principal"))
	KeyPoolCapacity      = BytesToBytes32([]byte("pool-capacity"))
	KeyLockupPeriod      = BytesToBytes32([]byte("lockup-period"))
	KeyRateWindow        = BytesToBytes32([]byte("rate-window"))
	KeyRateCeiling       = BytesToBytes32([]byte("rate-ceiling"))
	KeyDailyCap          = BytesToBytes32([]byte("daily-cap"))
	KeyDeviationBPS      = BytesToBytes32([]byte("deviation-bps"))
	KeyPriceStaleness    = BytesToBytes32([]byte("price-staleness"))
	KeyPriceFloor        = BytesToBytes32([]byte("price-floor"))
	KeyPriceCeiling      = BytesToBytes32([]byte("price-ceiling"))
	KeyPriceDeviationBPS = BytesToBytes32([]byte("price-deviation-bps"))
)

// InitialAccrualIndex the accrual index of a fresh reward stream.
var InitialAccrualIndex = big.NewInt(0)

// PrecisionBig returns the accrual precision as a big.Int.
// A fresh copy is returned since big.Int is mutable.
func PrecisionBig() *big.Int {
	return new(big.Int).SetUint64(AccrualPrecision)
}
