// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// encodeStream RLP-encodes the stream. A never-touched stream encodes
// to nil so the slot stays unset.
func encodeStream(s *Stream) ([]byte, error) {
	if s.LastSettlement == 0 &&
		s.TotalPrincipal.Sign() == 0 &&
		s.AccrualIndex.Sign() == 0 &&
		s.Rate.Sign() == 0 &&
		s.DistributedYield.Sign() == 0 &&
		!s.Tripped && !s.Paused {
		return nil, nil
	}
	return rlp.EncodeToBytes(s)
}

// decodeStream fills s from raw storage bytes.
func decodeStream(raw []byte, s *Stream) error {
	if len(raw) == 0 {
		*s = Stream{}
		return nil
	}
	return rlp.DecodeBytes(raw, s)
}
