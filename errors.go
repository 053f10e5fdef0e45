// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package postfx

import (
	"errors"

	"github.com/gogpu/postfx/transient"
)

// Configuration errors. Execute returns them before recording anything and
// the frame is skipped for that camera.
var (
	// ErrMissingMaterial is returned when the uber or bloom material is nil.
	ErrMissingMaterial = errors.New("postfx: missing material")

	// ErrInvalidDescriptor is returned for descriptors with degenerate
	// dimensions. It is the same value as transient.ErrInvalidDescriptor.
	ErrInvalidDescriptor = transient.ErrInvalidDescriptor

	// ErrNoSettingsProvider is returned when the pass has no settings stack.
	ErrNoSettingsProvider = errors.New("postfx: no settings provider")

	// ErrNotSetup is returned when Execute runs before Setup.
	ErrNotSetup = errors.New("postfx: pass not set up")

	// ErrMissingCamera is returned when rendering data has no camera.
	ErrMissingCamera = errors.New("postfx: rendering data has no camera")

	// ErrNilContext is returned when Execute gets a nil render context.
	ErrNilContext = errors.New("postfx: render context is nil")
)
