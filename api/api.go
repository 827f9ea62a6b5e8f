// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the REST surface of the accrual service.
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/terahash/tera/api/admin"
	"github.com/terahash/tera/api/pools"
	"github.com/terahash/tera/api/positions"
	"github.com/terahash/tera/api/subscriptions"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/metrics"
	"github.com/terahash/tera/mining"
	"github.com/terahash/tera/params"
	"github.com/terahash/tera/stakepool"
	"github.com/terahash/tera/vault"
)

// Config carries everything the handlers need.
type Config struct {
	Staking *stakepool.Pool
	Mining  *mining.Pool
	Vault   *vault.Vault
	Params  *params.Params
	Now     func() uint64

	AllowedOrigins []string
	LogRequests    bool
	EnableMetrics  bool
}

// New assembles the router and returns the root handler plus the
// subscriptions hub, which the settlement scheduler announces to.
func New(config Config) (http.Handler, *subscriptions.Subscriptions) {
	router := mux.NewRouter()

	pools.New(config.Staking, config.Vault, config.Now).
		Mount(router, "/pools")
	positions.New(config.Mining, config.Now).
		Mount(router, "/positions")
	admin.New(config.Staking, config.Mining, config.Vault, config.Params, config.Now).
		Mount(router, "/admin")

	subs := subscriptions.New([]subscriptions.Source{
		{Name: "staking", Ledger: config.Staking.Ledger()},
		{Name: "mining", Ledger: config.Mining.Ledger()},
		{Name: "vault", Ledger: config.Vault.Ledger()},
	}, config.Now)
	subs.Mount(router, "/subscriptions")

	if config.EnableMetrics {
		router.Path("/metrics").Handler(metrics.HTTPHandler())
	}

	var handler http.Handler = router
	if config.LogRequests {
		handler = RequestLoggerHandler(handler, log.WithContext("pkg", "api"))
	}
	handler = handlers.CORS(
		handlers.AllowedOrigins(config.AllowedOrigins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(handler)

	return handler, subs
}
