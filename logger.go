// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package postfx

import (
	"log/slog"

	"github.com/gogpu/postfx/internal/logx"
)

// SetLogger configures the logger for postfx and all its sub-packages.
// By default, postfx produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by postfx:
//   - [slog.LevelDebug]: per-frame diagnostics (mip count, level sizes, targets created)
//   - [slog.LevelInfo]: lifecycle events (pool destroyed, renderer created)
//   - [slog.LevelWarn]: skipped frames and resource release problems
//
// Example:
//
//	postfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logx.Set(l)
}

// Logger returns the current logger used by postfx.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logx.Logger()
}
