// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package errs defines the operational error taxonomy of the accrual
// protocol. Every mutating entry point surfaces one of these kinds so
// callers can tell routine policy denials apart from terminal failures.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an operational failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// InvalidAmount zero, out-of-bounds or overflow-risking magnitude.
	InvalidAmount
	// InsufficientPrincipal withdraw/decrease exceeds holdings.
	InsufficientPrincipal
	// NoEntitlement claim with zero claimable.
	NoEntitlement
	// LockupActive withdrawal attempted before lockup expiry.
	LockupActive
	// RateLimited action ceiling reached within the current window.
	RateLimited
	// CapExceeded daily cumulative amount cap reached.
	CapExceeded
	// ParticipantFrozen the participant is frozen, checked before all other policies.
	ParticipantFrozen
	// CircuitBreakerActive the pool's breaker tripped and has not been reset.
	CircuitBreakerActive
	// StaleOrInvalidData external price/balance data failed its validity contract.
	StaleOrInvalidData
	// CapacityExceeded pool-wide principal cap would be exceeded.
	CapacityExceeded
	// PositionNotFound no position under the given key.
	PositionNotFound
	// PositionClosed the position is closed and immutable.
	PositionClosed
	// Overflow arithmetic would exceed the numeric range.
	Overflow
	// Paused the pool is administratively paused.
	Paused
	// Forbidden caller lacks the required capability.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case InvalidAmount:
		return "invalid amount"
	case InsufficientPrincipal:
		return "insufficient principal"
	case NoEntitlement:
		return "no entitlement"
	case LockupActive:
		return "lockup active"
	case RateLimited:
		return "rate limited"
	case CapExceeded:
		return "cap exceeded"
	case ParticipantFrozen:
		return "participant frozen"
	case CircuitBreakerActive:
		return "circuit breaker active"
	case StaleOrInvalidData:
		return "stale or invalid external data"
	case CapacityExceeded:
		return "capacity exceeded"
	case PositionNotFound:
		return "position not found"
	case PositionClosed:
		return "position closed"
	case Overflow:
		return "arithmetic overflow"
	case Paused:
		return "paused"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Retryable reports whether the condition may clear on its own,
// so off-chain tooling can distinguish "try again later" from
// "this will never succeed".
func (k Kind) Retryable() bool {
	switch k {
	case RateLimited, CapExceeded, LockupActive, StaleOrInvalidData, Paused:
		return true
	default:
		return false
	}
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string {
	if e.msg == "" {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.msg
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Bare creates an error of the given kind with no extra message.
func Bare(kind Kind) error {
	return &kindError{kind: kind}
}

// KindOf extracts the kind of err, unwrapping as needed.
// KindUnknown is returned for errors outside the taxonomy.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
