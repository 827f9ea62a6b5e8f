// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/terahash/tera/kv"
	"github.com/terahash/tera/log"
	"github.com/terahash/tera/metrics"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Tera",
		Usage:     "Reward accrual service of the Terahash pools",
		Copyright: "2025 Terahash",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "run in memory, for test & dev",
				Flags: []cli.Flag{
					configFlag,
					apiAddrFlag,
					apiCorsFlag,
					verbosityFlag,
					enableAPILogsFlag,
					enableMetricsFlag,
				},
				Action: soloAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()
	initLogger(ctx)
	initMetrics(ctx)

	config, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}

	dataDir := ctx.String(dataDirFlag.Name)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir at '%v': %v", dataDir, err)
	}
	store, err := kv.OpenLevelDB(filepath.Join(dataDir, "accrual.db"), kv.Options{})
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing database..."); store.Close() }()

	srv, err := newService(config, store, ctx)
	if err != nil {
		return err
	}
	return srv.run(handleExitSignal(), ctx.String(apiAddrFlag.Name))
}

func soloAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()
	initLogger(ctx)
	initMetrics(ctx)

	config, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}

	srv, err := newService(config, kv.NewMemStore(), ctx)
	if err != nil {
		return err
	}
	return srv.run(handleExitSignal(), ctx.String(apiAddrFlag.Name))
}

func initLogger(ctx *cli.Context) {
	level, ok := log.ParseLevel(ctx.String(verbosityFlag.Name))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown verbosity %q, using info\n", ctx.String(verbosityFlag.Name))
		return
	}
	log.SetLevel(level)
}

func initMetrics(ctx *cli.Context) {
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}
}

// handleExitSignal returns a context canceled on SIGINT or SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".tera")
	}
	return ""
}
