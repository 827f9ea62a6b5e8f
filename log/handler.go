// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const termTimeFormat = "01-02|15:04:05.000"

// terminalHandler renders records in the compact single-line format
// used by node operators: LEVEL[time] message key=value ...
type terminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      *atomic.Int64
	useColor bool
	attrs    []slog.Attr
}

func newTerminalHandler(wr io.Writer, lvl *atomic.Int64, useColor bool) *terminalHandler {
	return &terminalHandler{
		wr:       wr,
		lvl:      lvl,
		useColor: useColor,
	}
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.Level(h.lvl.Load())
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.levelTag(r.Level))
	b.WriteByte('[')
	b.WriteString(r.Time.Format(termTimeFormat))
	b.WriteString("] ")
	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(a.Value))
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.wr, b.String())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &terminalHandler{
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    merged,
	}
}

func (h *terminalHandler) WithGroup(string) slog.Handler {
	// groups are not used in this codebase
	return h
}

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorGreen  = "\x1b[32m"
	colorCyan   = "\x1b[36m"
)

func (h *terminalHandler) levelTag(level slog.Level) string {
	tag, color := "INFO ", colorGreen
	switch {
	case level >= slog.LevelError:
		tag, color = "ERROR", colorRed
	case level >= slog.LevelWarn:
		tag, color = "WARN ", colorYellow
	case level < slog.LevelInfo:
		tag, color = "DEBUG", colorCyan
	}
	if !h.useColor {
		return tag
	}
	return color + tag + colorReset
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		s := fmt.Sprintf("%v", v.Any())
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
}
