// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/terahash/tera/params"
	"github.com/terahash/tera/tera"
)

// Config describes the pools one daemon instance serves. Everything
// under params applies at first boot only; later changes go through
// the admin API and persist in the database.
type Config struct {
	Owner string `yaml:"owner"`

	Staking struct {
		Rate string `yaml:"rate"` // pool-wide reward units per second
	} `yaml:"staking"`

	Mining struct {
		Rate       string `yaml:"rate"` // precision-scaled reward per principal unit per second
		Symbol     string `yaml:"symbol"`
		QuotePrice string `yaml:"quotePrice"` // precision-scaled price of one work unit
	} `yaml:"mining"`

	Vault struct {
		StalenessSeconds uint64 `yaml:"stalenessSeconds"`
		DeviationBPS     uint64 `yaml:"deviationBPS"`
	} `yaml:"vault"`

	Settlement struct {
		Cron string `yaml:"cron"`
	} `yaml:"settlement"`

	// Initial governance parameters, keyed by their external names.
	Params map[string]string `yaml:"params"`

	// Genesis treasury balances, address -> amount.
	Allocations map[string]string `yaml:"allocations"`

	// Genesis custody balances, pool name -> amount. Seeds the pooled
	// holdings backing the yield vault and the reward payers.
	Custody map[string]string `yaml:"custody"`
}

func defaultConfig() *Config {
	var config Config
	config.Mining.Symbol = "THS"
	config.Mining.QuotePrice = tera.PrecisionBig().String()
	config.Settlement.Cron = "@every 30s"
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return config, nil
}

// parseAmount accepts decimal or 0x-prefixed hex.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := math.ParseBig256(s)
	if !ok {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, errors.Errorf("negative amount %q", s)
	}
	return v, nil
}

func (c *Config) owner() (tera.Address, error) {
	if c.Owner == "" {
		return tera.Address{}, errors.New("config: owner address required")
	}
	addr, err := tera.ParseAddress(c.Owner)
	if err != nil {
		return tera.Address{}, errors.WithMessage(err, "config: owner")
	}
	return addr, nil
}

func (c *Config) initialParams() (map[tera.Bytes32]*big.Int, error) {
	out := make(map[tera.Bytes32]*big.Int, len(c.Params))
	for name, raw := range c.Params {
		key, ok := params.KeyByName(name)
		if !ok {
			return nil, errors.Errorf("config: unknown parameter %q", name)
		}
		value, err := parseAmount(raw)
		if err != nil {
			return nil, errors.WithMessagef(err, "config: parameter %q", name)
		}
		out[key] = value
	}
	return out, nil
}
