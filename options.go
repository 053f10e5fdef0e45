// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package postfx

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/shaderprop"
)

// Option configures a Pass during creation.
//
// Example:
//
//	pass := postfx.NewPass(stack, uber, bloom,
//	    postfx.WithRenderPassEvent(postfx.AfterRenderingTransparents),
//	    postfx.WithHDRFormat(gputypes.TextureFormatBGRA8Unorm))
type Option func(*options)

type options struct {
	event     RenderPassEvent
	hdrFormat gputypes.TextureFormat
	constants *shaderprop.Constants
	pool      *cmdbuf.Pool
}

func defaultOptions() options {
	return options{
		event:     BeforeRenderingPostProcessing,
		hdrFormat: gputypes.TextureFormatRGBA8Unorm,
		constants: shaderprop.Default(),
		pool:      cmdbuf.DefaultPool,
	}
}

// WithRenderPassEvent sets when the pass runs in the camera's queue.
func WithRenderPassEvent(e RenderPassEvent) Option {
	return func(o *options) {
		o.event = e
	}
}

// WithHDRFormat sets the color format of the bloom pyramid targets.
func WithHDRFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.hdrFormat = f
	}
}

// WithConstants sets the property ID table. Nil keeps the default table.
func WithConstants(c *shaderprop.Constants) Option {
	return func(o *options) {
		if c != nil {
			o.constants = c
		}
	}
}

// WithCommandBufferPool sets the pool Execute takes its command buffer
// from. Nil keeps cmdbuf.DefaultPool.
func WithCommandBufferPool(p *cmdbuf.Pool) Option {
	return func(o *options) {
		if p != nil {
			o.pool = p
		}
	}
}
