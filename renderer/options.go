// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package renderer

import (
	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/shaderprop"
)

// DrawObjectsConfig configures an opaque or transparent draw pass.
type DrawObjectsConfig struct {
	Name      string
	Opaque    bool
	Event     postfx.RenderPassEvent
	LayerMask LayerMask
	Stencil   StencilState
	Reference int

	// Target is the color attachment the pass draws into.
	Target cmdbuf.RenderTargetIdentifier
}

// DrawObjectsFactory creates a draw pass for cfg.
type DrawObjectsFactory func(cfg DrawObjectsConfig) postfx.ScriptablePass

// SkyboxFactory creates a skybox pass that runs at event.
type SkyboxFactory func(event postfx.RenderPassEvent) postfx.ScriptablePass

// Option configures a Renderer.
type Option func(*options)

type options struct {
	opaque      DrawObjectsFactory
	transparent DrawObjectsFactory
	skybox      SkyboxFactory
	postOpts    []postfx.Option
	constants   *shaderprop.Constants
	pool        *cmdbuf.Pool
}

func defaultOptions() options {
	return options{
		opaque:      emptyDrawPass,
		transparent: emptyDrawPass,
		skybox:      emptySkyboxPass,
		constants:   shaderprop.Default(),
		pool:        cmdbuf.DefaultPool,
	}
}

// WithOpaquePass sets the factory of the opaque draw pass.
func WithOpaquePass(f DrawObjectsFactory) Option {
	return func(o *options) {
		if f != nil {
			o.opaque = f
		}
	}
}

// WithTransparentPass sets the factory of the transparent draw pass.
func WithTransparentPass(f DrawObjectsFactory) Option {
	return func(o *options) {
		if f != nil {
			o.transparent = f
		}
	}
}

// WithSkyboxPass sets the factory of the skybox pass.
func WithSkyboxPass(f SkyboxFactory) Option {
	return func(o *options) {
		if f != nil {
			o.skybox = f
		}
	}
}

// WithPostProcessOptions passes options to the post-processing pass.
func WithPostProcessOptions(opts ...postfx.Option) Option {
	return func(o *options) {
		o.postOpts = append(o.postOpts, opts...)
	}
}

// WithConstants sets the property ID table shared by the renderer and the
// post-processing pass. Nil keeps shaderprop.Default().
func WithConstants(c *shaderprop.Constants) Option {
	return func(o *options) {
		if c != nil {
			o.constants = c
		}
	}
}

// WithCommandBufferPool sets the pool the renderer's own buffers come from.
// Nil keeps cmdbuf.DefaultPool.
func WithCommandBufferPool(p *cmdbuf.Pool) Option {
	return func(o *options) {
		if p != nil {
			o.pool = p
		}
	}
}
