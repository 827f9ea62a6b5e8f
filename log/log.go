// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log provides the process-wide structured logger.
// Packages obtain a contextual logger via WithContext and never hold
// handlers directly, so verbosity can be switched at runtime.
package log

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// Logger is the logging handle handed out to packages.
type Logger = *slog.Logger

var (
	level atomic.Int64
	root  atomic.Pointer[slog.Logger]
)

func init() {
	level.Store(int64(slog.LevelInfo))
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	root.Store(slog.New(newTerminalHandler(os.Stderr, &level, useColor)))
}

// Root returns the root logger.
func Root() Logger {
	return root.Load()
}

// WithContext returns a logger carrying the given key/value context.
func WithContext(args ...any) Logger {
	return Root().With(args...)
}

// SetLevel adjusts the global verbosity at runtime.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// Level returns the current global verbosity.
func Level() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps a verbosity name to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// Convenience forwarders on the root logger.

func Debug(msg string, args ...any) { Root().Debug(msg, args...) }
func Info(msg string, args ...any)  { Root().Info(msg, args...) }
func Warn(msg string, args ...any)  { Root().Warn(msg, args...) }
func Error(msg string, args ...any) { Root().Error(msg, args...) }
