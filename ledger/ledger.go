// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger implements the accrual engine shared by the staking
// pool, the tokenized mining positions and the yield vault: one reward
// stream per pool, one account per position key, entitlement computed
// from a cumulative reward-per-unit-principal index.
//
// Every mutating entry point settles the stream before touching any
// principal. The ordering is enforced structurally: all mutators are
// funneled through one internal helper, so the accrual index always
// reflects time elapsed under the old TotalPrincipal.
package ledger

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/terahash/tera/errs"
	"github.com/terahash/tera/fixedpoint"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/metrics"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/storage"
	"github.com/terahash/tera/tera"
)

var (
	logger = log.WithContext("pkg", "ledger")

	slotStream   = storage.SlotOf([]byte("stream"))
	slotAccounts = storage.SlotOf([]byte("accounts"))

	metricSettlements = metrics.CounterVec("ledger_settlements_total", []string{"pool"})
	metricTrips       = metrics.CounterVec("ledger_breaker_trips_total", []string{"pool"})
	metricPrincipal   = metrics.GaugeVec("ledger_total_principal", []string{"pool"})
)

// Mode selects how a stream earns income.
type Mode uint8

const (
	// ModeShared distributes a pool-wide per-second rate across all
	// principal proportionally (staking pool).
	ModeShared Mode = iota
	// ModePerUnit accrues a fixed precision-scaled rate per unit of
	// principal per second, independent of pool size (mining positions).
	ModePerUnit
	// ModeExternal attributes the observed growth of an external
	// pooled balance (lending vault).
	ModeExternal
)

// BalanceSource supplies the externally pooled balance observed by
// ModeExternal streams. Implementations must report when the balance
// was observed so stale data can be rejected.
type BalanceSource interface {
	BalanceOf(owner tera.Address) (balance *big.Int, observedAt uint64, err error)
}

// Ledger maintains one reward stream and its accounts.
type Ledger struct {
	ctx      *storage.Context
	accounts *storage.Mapping[tera.Bytes32, *Account]

	mode         Mode
	source       BalanceSource
	staleness    uint64 // max age of a source observation in seconds
	deviationBPS uint64 // growth beyond this trips the breaker; 0 disables
}

// Option tunes ledger construction.
type Option func(*Ledger)

// WithExternalSource switches the stream to external income mode.
func WithExternalSource(source BalanceSource, staleness, deviationBPS uint64) Option {
	return func(l *Ledger) {
		l.mode = ModeExternal
		l.source = source
		l.staleness = staleness
		l.deviationBPS = deviationBPS
	}
}

// WithPerUnitRate switches the stream to per-unit-principal rate mode.
func WithPerUnitRate() Option {
	return func(l *Ledger) {
		l.mode = ModePerUnit
	}
}

// New creates a ledger bound to the pool address.
func New(addr tera.Address, st *state.State, opts ...Option) *Ledger {
	ctx := storage.NewContext(addr, st)
	l := &Ledger{
		ctx:      ctx,
		accounts: storage.NewMapping[tera.Bytes32, *Account](ctx, slotAccounts),
		mode:     ModeShared,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Address returns the pool address.
func (l *Ledger) Address() tera.Address {
	return l.ctx.Address()
}

// Mode returns the stream's income mode.
func (l *Ledger) Mode() Mode {
	return l.mode
}

//
// Storage access
//

func (l *Ledger) getStream() (*Stream, error) {
	var s Stream
	if err := l.ctx.State().DecodeStorage(l.ctx.Address(), slotStream, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return decodeStream(raw, &s)
	}); err != nil {
		return nil, errors.Wrap(err, "failed to get stream")
	}
	s.normalize()
	return &s, nil
}

func (l *Ledger) setStream(s *Stream) error {
	return l.ctx.State().EncodeStorage(l.ctx.Address(), slotStream, func() ([]byte, error) {
		return encodeStream(s)
	})
}

func (l *Ledger) getAccount(key tera.Bytes32) (*Account, error) {
	acc, err := l.accounts.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	acc.normalize()
	return acc, nil
}

func (l *Ledger) setAccount(key tera.Bytes32, acc *Account) error {
	if err := l.accounts.Set(key, acc); err != nil {
		return errors.Wrap(err, "failed to set account")
	}
	return nil
}

//
// Settlement
//

// settleStream brings the stream's accrual index up to now.
// It is a pure function of elapsed time, rate and TotalPrincipal
// (or of observed external balance growth); per-account ordering
// cannot affect it. Idempotent at equal timestamps.
func (l *Ledger) settleStream(s *Stream, now uint64) error {
	if now <= s.LastSettlement {
		// same execution instant, or a host clock anomaly: no-op
		return nil
	}
	elapsed := now - s.LastSettlement

	// Time always advances, even with zero principal or a tripped
	// breaker, so a dormant period is never credited retroactively.
	defer func() { s.LastSettlement = now }()

	if s.TotalPrincipal.Sign() == 0 || s.Tripped {
		return nil
	}

	var delta *big.Int
	switch l.mode {
	case ModeShared:
		incremental, err := fixedpoint.Mul(new(big.Int).SetUint64(elapsed), s.Rate)
		if err != nil {
			return err
		}
		if delta, err = fixedpoint.MulDiv(incremental, tera.PrecisionBig(), s.TotalPrincipal); err != nil {
			return err
		}

	case ModePerUnit:
		var err error
		if delta, err = fixedpoint.Mul(new(big.Int).SetUint64(elapsed), s.Rate); err != nil {
			return err
		}

	case ModeExternal:
		var err error
		if delta, err = l.externalDelta(s, now); err != nil {
			return err
		}
	}

	index, err := fixedpoint.Add(s.AccrualIndex, delta)
	if err != nil {
		return err
	}
	s.AccrualIndex = index
	metricSettlements.AddWithLabel(1, map[string]string{"pool": l.ctx.Address().String()})
	return nil
}

// externalDelta attributes the growth of the external pooled balance
// since the last settlement. Yield already distributed is tracked
// explicitly, so settling twice cannot double-count it. A shrinking
// balance, or a jump beyond the deviation threshold, trips the breaker
// instead of distributing.
func (l *Ledger) externalDelta(s *Stream, now uint64) (*big.Int, error) {
	balance, observedAt, err := l.source.BalanceOf(l.ctx.Address())
	if err != nil {
		return nil, errs.New(errs.StaleOrInvalidData, "balance source: %s", err)
	}
	if balance == nil || balance.Sign() < 0 {
		return nil, errs.New(errs.StaleOrInvalidData, "balance source returned invalid balance")
	}
	if observedAt > now || (l.staleness > 0 && now-observedAt > l.staleness) {
		return nil, errs.New(errs.StaleOrInvalidData, "balance observed at %d, now %d", observedAt, now)
	}

	expected, err := fixedpoint.Add(s.TotalPrincipal, s.DistributedYield)
	if err != nil {
		return nil, err
	}

	if balance.Cmp(expected) < 0 {
		l.trip(s, "external balance decreased", balance, expected)
		return new(big.Int), nil
	}

	growth := new(big.Int).Sub(balance, expected)
	if growth.Sign() == 0 {
		return new(big.Int), nil
	}

	if l.deviationBPS > 0 && expected.Sign() > 0 {
		bps, err := fixedpoint.MulDiv(growth, new(big.Int).SetUint64(tera.BPSDivisor), expected)
		if err != nil {
			return nil, err
		}
		if bps.Uint64() > l.deviationBPS {
			l.trip(s, "external balance jump beyond threshold", balance, expected)
			return new(big.Int), nil
		}
	}

	delta, err := fixedpoint.MulDiv(growth, tera.PrecisionBig(), s.TotalPrincipal)
	if err != nil {
		return nil, err
	}
	// the full growth is marked distributed; index truncation dust
	// stays with the protocol
	if s.DistributedYield, err = fixedpoint.Add(s.DistributedYield, growth); err != nil {
		return nil, err
	}
	return delta, nil
}

func (l *Ledger) trip(s *Stream, reason string, balance, expected *big.Int) {
	s.Tripped = true
	metricTrips.AddWithLabel(1, map[string]string{"pool": l.ctx.Address().String()})
	logger.Warn("circuit breaker tripped",
		"pool", l.ctx.Address(),
		"reason", reason,
		"balance", balance,
		"expected", expected,
	)
}

// creditEntitlement folds the index movement since the account's last
// settlement into its claimable balance. Truncation rounds down; the
// remainder stays with the pool.
func creditEntitlement(s *Stream, acc *Account) error {
	if acc.Status == StatusActive && acc.Principal.Sign() > 0 {
		indexDelta := new(big.Int).Sub(s.AccrualIndex, acc.Snapshot)
		if indexDelta.Sign() > 0 {
			pending, err := fixedpoint.MulDiv(acc.Principal, indexDelta, tera.PrecisionBig())
			if err != nil {
				return err
			}
			if acc.Claimable, err = fixedpoint.Add(acc.Claimable, pending); err != nil {
				return err
			}
			if acc.TotalEarned, err = fixedpoint.Add(acc.TotalEarned, pending); err != nil {
				return err
			}
		}
	}
	acc.Snapshot = new(big.Int).Set(s.AccrualIndex)
	return nil
}

// settled is the single funnel every mutator goes through:
// settle the stream, credit the account's pending entitlement, apply
// fn, then persist. If any step fails nothing is written, except a
// breaker trip first observed here, which is persisted regardless.
func (l *Ledger) settled(now uint64, key tera.Bytes32, fn func(s *Stream, acc *Account) error) error {
	s, err := l.getStream()
	if err != nil {
		return err
	}
	wasTripped := s.Tripped
	if err := l.settleStream(s, now); err != nil {
		return err
	}
	acc, err := l.getAccount(key)
	if err != nil {
		return err
	}
	if err := creditEntitlement(s, acc); err != nil {
		return err
	}
	if err := fn(s, acc); err != nil {
		// A trip observed by this settlement outlives the denied
		// operation; it stays until an explicit reset.
		if s.Tripped && !wasTripped {
			if werr := l.setStream(s); werr != nil {
				return werr
			}
		}
		return err
	}
	if err := l.setAccount(key, acc); err != nil {
		return err
	}
	if err := l.setStream(s); err != nil {
		return err
	}
	if s.TotalPrincipal.IsInt64() {
		metricPrincipal.SetWithLabel(s.TotalPrincipal.Int64(), map[string]string{"pool": l.ctx.Address().String()})
	}
	return nil
}

// checkOperable rejects mutations on paused or tripped streams.
func checkOperable(s *Stream) error {
	if s.Tripped {
		return errs.Bare(errs.CircuitBreakerActive)
	}
	if s.Paused {
		return errs.Bare(errs.Paused)
	}
	return nil
}

//
// Mutating operations
//

// Init configures a fresh stream. Rate is the pool-wide per-second
// reward (ModeShared) or the precision-scaled per-unit rate
// (ModePerUnit); ignored by ModeExternal.
func (l *Ledger) Init(now uint64, rate *big.Int) error {
	s, err := l.getStream()
	if err != nil {
		return err
	}
	if s.LastSettlement != 0 {
		return errors.New("stream already initialized")
	}
	if rate != nil {
		if err := fixedpoint.CheckMagnitude(rate); err != nil {
			return err
		}
		s.Rate = new(big.Int).Set(rate)
	}
	s.LastSettlement = now
	return l.setStream(s)
}

// Settle brings the stream up to date. Idempotent, callable by anyone,
// any number of times; settling twice at one timestamp equals settling
// once.
func (l *Ledger) Settle(now uint64) error {
	s, err := l.getStream()
	if err != nil {
		return err
	}
	if err := l.settleStream(s, now); err != nil {
		return err
	}
	return l.setStream(s)
}

// Deposit settles, credits pending entitlement, then adds amount to
// the account's principal and the stream's total. A fresh key opens a
// new account; a closed one is rejected.
func (l *Ledger) Deposit(now uint64, key tera.Bytes32, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errs.New(errs.InvalidAmount, "deposit amount must be positive")
	}
	if err := fixedpoint.CheckMagnitude(amount); err != nil {
		return err
	}
	return l.settled(now, key, func(s *Stream, acc *Account) error {
		if err := checkOperable(s); err != nil {
			return err
		}
		switch acc.Status {
		case StatusNone:
			acc.Status = StatusActive
			acc.OpenedAt = now
			acc.Snapshot = new(big.Int).Set(s.AccrualIndex)
		case StatusClosed:
			return errs.Bare(errs.PositionClosed)
		}

		var err error
		if acc.Principal, err = fixedpoint.Add(acc.Principal, amount); err != nil {
			return err
		}
		if s.TotalPrincipal, err = fixedpoint.Add(s.TotalPrincipal, amount); err != nil {
			return err
		}
		return nil
	})
}

// Withdraw settles, credits pending entitlement, then removes amount
// from the account's principal and the stream's total. Claimable is
// left untouched; paying it out is a separate, explicit claim.
func (l *Ledger) Withdraw(now uint64, key tera.Bytes32, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errs.New(errs.InvalidAmount, "withdraw amount must be positive")
	}
	return l.settled(now, key, func(s *Stream, acc *Account) error {
		if err := checkOperable(s); err != nil {
			return err
		}
		if err := requireActive(acc); err != nil {
			return err
		}
		if amount.Cmp(acc.Principal) > 0 {
			return errs.New(errs.InsufficientPrincipal, "withdraw %s exceeds principal %s", amount, acc.Principal)
		}

		var err error
		if acc.Principal, err = fixedpoint.Sub(acc.Principal, amount); err != nil {
			return err
		}
		if s.TotalPrincipal, err = fixedpoint.Sub(s.TotalPrincipal, amount); err != nil {
			return err
		}
		return nil
	})
}

// Claim settles, credits pending entitlement, then zeroes and returns
// the claimable balance. Claiming zero is a caller error, not a silent
// no-op. In external-income mode the claimed amount leaves the pooled
// balance, so it is released from the distributed-yield tracking too;
// otherwise the next settlement would read the payout as a shortfall.
func (l *Ledger) Claim(now uint64, key tera.Bytes32) (*big.Int, error) {
	var out *big.Int
	err := l.settled(now, key, func(s *Stream, acc *Account) error {
		if err := checkOperable(s); err != nil {
			return err
		}
		if err := requireActive(acc); err != nil {
			return err
		}
		if acc.Claimable.Sign() == 0 {
			return errs.Bare(errs.NoEntitlement)
		}
		out = acc.Claimable
		acc.Claimable = new(big.Int)
		acc.LastClaimAt = now
		if l.mode == ModeExternal {
			var err error
			if s.DistributedYield, err = fixedpoint.Sub(s.DistributedYield, out); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close marks a fully withdrawn, fully claimed account closed.
func (l *Ledger) Close(now uint64, key tera.Bytes32) error {
	return l.settled(now, key, func(s *Stream, acc *Account) error {
		if err := requireActive(acc); err != nil {
			return err
		}
		if acc.Principal.Sign() != 0 || acc.Claimable.Sign() != 0 {
			return errs.New(errs.InvalidAmount, "close requires zero principal and zero claimable")
		}
		acc.Status = StatusClosed
		return nil
	})
}

// Deactivate force-closes an account administratively. Pending
// entitlement up to now is credited to TotalEarned for audit, then the
// position stops accruing and becomes immutable. Remaining principal
// is released from the stream's total.
func (l *Ledger) Deactivate(now uint64, key tera.Bytes32) error {
	return l.settled(now, key, func(s *Stream, acc *Account) error {
		if err := requireActive(acc); err != nil {
			return err
		}
		var err error
		if s.TotalPrincipal, err = fixedpoint.Sub(s.TotalPrincipal, acc.Principal); err != nil {
			return err
		}
		acc.Principal = new(big.Int)
		acc.Status = StatusClosed
		return nil
	})
}

// SetRate settles under the old rate, then applies the new one.
func (l *Ledger) SetRate(now uint64, rate *big.Int) error {
	if err := fixedpoint.CheckMagnitude(rate); err != nil {
		return err
	}
	s, err := l.getStream()
	if err != nil {
		return err
	}
	if err := l.settleStream(s, now); err != nil {
		return err
	}
	s.Rate = new(big.Int).Set(rate)
	return l.setStream(s)
}

// SetPaused toggles the administrative pause flag.
func (l *Ledger) SetPaused(paused bool) error {
	s, err := l.getStream()
	if err != nil {
		return err
	}
	s.Paused = paused
	return l.setStream(s)
}

// ResetBreaker clears a tripped circuit breaker.
func (l *Ledger) ResetBreaker() error {
	s, err := l.getStream()
	if err != nil {
		return err
	}
	s.Tripped = false
	return l.setStream(s)
}

func requireActive(acc *Account) error {
	switch acc.Status {
	case StatusNone:
		return errs.Bare(errs.PositionNotFound)
	case StatusClosed:
		return errs.Bare(errs.PositionClosed)
	default:
		return nil
	}
}

//
// Views
//

// Stream returns a copy of the stream record.
func (l *Ledger) Stream() (*Stream, error) {
	return l.getStream()
}

// Account returns a copy of the account record.
func (l *Ledger) Account(key tera.Bytes32) (*Account, error) {
	return l.getAccount(key)
}

// PendingEntitlement reports claimable plus the entitlement that a
// settlement at now would credit. Rate-based projections are pure;
// external-income streams report settled-to-date only, since a view
// must not consult the external source.
func (l *Ledger) PendingEntitlement(now uint64, key tera.Bytes32) (*big.Int, error) {
	s, err := l.getStream()
	if err != nil {
		return nil, err
	}
	if l.mode != ModeExternal {
		projected := *s
		if err := l.settleStream(&projected, now); err != nil {
			return nil, err
		}
		s = &projected
	}
	acc, err := l.getAccount(key)
	if err != nil {
		return nil, err
	}
	if err := creditEntitlement(s, acc); err != nil {
		return nil, err
	}
	return acc.Claimable, nil
}
