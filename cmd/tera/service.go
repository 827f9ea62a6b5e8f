// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/terahash/tera/api"
	"github.com/terahash/tera/api/subscriptions"
	"github.com/terahash/tera/co"
	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/oracle"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/policy"
	"github.com/terahash/tera/stakepool"
	"github.com/terahash/tera/state"
	"github.com/terahash/tera/tera"
	"github.com/terahash/tera/vault"
)

var logger = log.WithContext("pkg", "main")

// Well-known addresses partitioning the storage space. The treasury
// and each pool get their own column; none of them collide.
var (
	paramsAddr   = tera.BytesToAddress([]byte("params"))
	policyAddr   = tera.BytesToAddress([]byte("policy"))
	stakingAddr  = tera.BytesToAddress([]byte("staking-pool"))
	miningAddr   = tera.BytesToAddress([]byte("mining-pool"))
	vaultAddr    = tera.BytesToAddress([]byte("yield-vault"))
	treasuryAddr = tera.BytesToAddress([]byte("treasury"))
)

// quoteFeed serves the statically configured work-unit price.
type quoteFeed struct {
	symbol string
	price  *big.Int
	now    func() uint64
}

func (f *quoteFeed) Rate(symbol string) (*big.Int, uint64, error) {
	if symbol != f.symbol {
		return nil, 0, errors.Errorf("unknown symbol %q", symbol)
	}
	return f.price, f.now(), nil
}

// service owns the store, the journaled state and the pool facades.
// State is not safe for concurrent use, so every request and every
// settlement run serializes on mu and flushes before releasing it.
type service struct {
	config *Config
	store  kv.Store
	st     *state.State
	mu     sync.Mutex

	params   *params.Params
	guard    *policy.Guard
	treasury *treasury
	staking  *stakepool.Pool
	mining   *mining.Pool
	vault    *vault.Vault

	handler http.Handler
	subs    *subscriptions.Subscriptions
	cron    *cron.Cron
	goes    co.Goes
}

func now() uint64 {
	return uint64(time.Now().Unix())
}

func newService(config *Config, store kv.Store, ctx *cli.Context) (*service, error) {
	st := state.New(store)
	p := params.New(paramsAddr, st)
	guard := policy.New(policyAddr, st, p)
	tr := newTreasury(treasuryAddr, st, now)

	miningPrice, err := parseAmount(config.Mining.QuotePrice)
	if err != nil {
		return nil, err
	}
	feed := &quoteFeed{symbol: config.Mining.Symbol, price: miningPrice, now: now}

	s := &service{
		config:   config,
		store:    store,
		st:       st,
		params:   p,
		guard:    guard,
		treasury: tr,
		staking:  stakepool.New(stakingAddr, st, guard, tr.bookFor(stakingAddr, true)),
		mining:   mining.New(miningAddr, st, guard, oracle.New(feed, p), tr.bookFor(miningAddr, true), config.Mining.Symbol),
		vault:    vault.New(vaultAddr, st, guard, tr, tr.bookFor(vaultAddr, false), config.Vault.StalenessSeconds, config.Vault.DeviationBPS),
	}
	if err := s.bootstrap(); err != nil {
		return nil, err
	}

	var origins []string
	if domains := ctx.String(apiCorsFlag.Name); domains != "" {
		origins = strings.Split(domains, ",")
	}
	handler, subs := api.New(api.Config{
		Staking:        s.staking,
		Mining:         s.mining,
		Vault:          s.vault,
		Params:         s.params,
		Now:            now,
		AllowedOrigins: origins,
		LogRequests:    ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:  ctx.Bool(enableMetricsFlag.Name),
	})
	s.subs = subs
	s.handler = s.serialize(handler)
	// a snapshot for early subscribers; nothing else runs yet
	s.subs.Announce()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(config.Settlement.Cron, s.settle); err != nil {
		return nil, errors.Wrapf(err, "bad settlement cron spec %q", config.Settlement.Cron)
	}
	return s, nil
}

// bootstrap initializes reward streams, governance parameters and
// genesis balances on the first boot, then persists. The owner is
// re-read from the config on every boot so it can be rotated.
func (s *service) bootstrap() error {
	owner, err := s.config.owner()
	if err != nil {
		return err
	}
	s.guard.Init(owner)

	stream, err := s.staking.Ledger().Stream()
	if err != nil {
		return err
	}
	if stream.LastSettlement == 0 {
		if err := s.genesis(); err != nil {
			return err
		}
	}
	return s.st.Flush()
}

func (s *service) genesis() error {
	at := now()

	initial, err := s.config.initialParams()
	if err != nil {
		return err
	}
	for key, value := range initial {
		s.params.Set(key, value)
	}

	stakingRate, err := parseAmount(s.config.Staking.Rate)
	if err != nil {
		return errors.WithMessage(err, "config: staking rate")
	}
	if err := s.staking.Init(at, stakingRate); err != nil {
		return err
	}
	miningRate, err := parseAmount(s.config.Mining.Rate)
	if err != nil {
		return errors.WithMessage(err, "config: mining rate")
	}
	if err := s.mining.Init(at, miningRate); err != nil {
		return err
	}
	if err := s.vault.Init(at); err != nil {
		return err
	}

	for raw, amount := range s.config.Allocations {
		addr, err := tera.ParseAddress(raw)
		if err != nil {
			return errors.WithMessagef(err, "config: allocation %q", raw)
		}
		value, err := parseAmount(amount)
		if err != nil {
			return errors.WithMessagef(err, "config: allocation %q", raw)
		}
		if err := s.treasury.credit(addr, value); err != nil {
			return err
		}
	}
	custodyAddrs := map[string]tera.Address{
		"staking": stakingAddr,
		"mining":  miningAddr,
		"vault":   vaultAddr,
	}
	for name, amount := range s.config.Custody {
		pool, ok := custodyAddrs[name]
		if !ok {
			return errors.Errorf("config: unknown custody pool %q", name)
		}
		value, err := parseAmount(amount)
		if err != nil {
			return errors.WithMessagef(err, "config: custody %q", name)
		}
		if err := s.treasury.setCustody(pool, value); err != nil {
			return err
		}
	}
	logger.Info("genesis written", "owner", s.config.Owner, "params", len(initial))
	return nil
}

// serialize funnels requests through the state lock and flushes the
// journal after each one. Failed operations revert inside the facades,
// so whatever remains in the journal here is committed state.
func (s *service) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// websocket subscribers hold their connection open and only
		// read the hub's cached snapshot, never the state
		if strings.HasPrefix(req.URL.Path, "/subscriptions") {
			next.ServeHTTP(w, req)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		next.ServeHTTP(w, req)
		if err := s.st.Flush(); err != nil {
			logger.Error("state flush failed", "err", err)
		}
	})
}

// settle brings every stream up to date and wakes subscribers. Vault
// harvest failures (stale custody reading, tripped breaker) are
// expected conditions, logged and retried on the next tick.
func (s *service) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := now()
	if err := s.staking.Settle(at); err != nil {
		logger.Warn("staking settlement failed", "err", err)
	}
	if err := s.mining.Settle(at); err != nil {
		logger.Warn("mining settlement failed", "err", err)
	}
	if err := s.vault.Harvest(at); err != nil {
		logger.Warn("vault harvest failed", "err", err)
	}
	if err := s.st.Flush(); err != nil {
		logger.Error("state flush failed", "err", err)
		return
	}
	s.subs.Announce()
}

// run serves the API until ctx is canceled, then drains and commits.
func (s *service) run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{Handler: s.handler}

	s.goes.Go(func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	})
	s.cron.Start()
	logger.Info("API server started", "addr", "http://"+listener.Addr().String())

	<-ctx.Done()

	logger.Info("shutting down...")
	<-s.cron.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown", "err", err)
	}
	s.subs.Close()
	s.goes.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Flush()
}
