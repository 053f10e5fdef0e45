// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package bloom

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
	"github.com/gogpu/postfx/transient"
)

// ErrMissingMaterial is returned when the builder has no bloom material.
var ErrMissingMaterial = errors.New("bloom: material is nil")

// Builder records the bloom pyramid into a command buffer.
type Builder struct {
	constants *shaderprop.Constants
	material  *material.Material
	format    gputypes.TextureFormat
}

// NewBuilder creates a builder that renders with mat into targets of format.
// A nil constants table uses shaderprop.Default().
func NewBuilder(mat *material.Material, format gputypes.TextureFormat, constants *shaderprop.Constants) (*Builder, error) {
	if mat == nil {
		return nil, ErrMissingMaterial
	}
	if constants == nil {
		constants = shaderprop.Default()
	}
	return &Builder{constants: constants, material: mat, format: format}, nil
}

// Material returns the bloom material.
func (b *Builder) Material() *material.Material { return b.material }

// Result describes a recorded pyramid.
type Result struct {
	MipCount    int
	Levels      []Size
	Downsamples int // iterations of the downsample chain
	Upsamples   int // iterations of the upsample chain

	// Final is level-0 up. It stays allocated; the composite stage
	// releases it after reading it.
	Final shaderprop.ID
}

// Render records the pyramid for source, whose descriptor is base.
//
// Every level's down and up targets are allocated before the prefilter.
// All of them are released before Render returns except level-0 up, which
// is bound to _Bloom_Texture. Nothing is recorded if base is invalid.
func (b *Builder) Render(cb *cmdbuf.CommandBuffer, source cmdbuf.RenderTargetIdentifier, base transient.Descriptor, params Parameters) (Result, error) {
	if err := base.Validate(); err != nil {
		return Result{}, err
	}

	c := b.constants
	mat := b.material
	mat.SetVector(c.BloomParams(), params.Vector())

	tw, th, mipCount := PyramidDepth(base.Width, base.Height)
	levels := LevelSizes(tw, th, mipCount)

	for i, s := range levels {
		desc := base.Derived(s.Width, s.Height, b.format, 0)
		cb.GetTemporaryRT(c.MipDown(i), desc, transient.FilterBilinear)
		cb.GetTemporaryRT(c.MipUp(i), desc, transient.FilterBilinear)
	}

	cb.BlitDiscard(source, cmdbuf.Temporary(c.MipDown(0)), mat, shaders.PassPrefilter)

	// Downsample: each level is a 2x downsample with a horizontal blur into
	// up[i], then a vertical blur back into down[i].
	res := Result{MipCount: mipCount, Levels: levels, Final: c.MipUp(0)}
	lastDown := c.MipDown(0)
	for i := 1; i < mipCount-1; i++ {
		up, down := c.MipUp(i), c.MipDown(i)
		cb.BlitDiscard(cmdbuf.Temporary(lastDown), cmdbuf.Temporary(up), mat, shaders.PassDownsample)
		cb.BlitDiscard(cmdbuf.Temporary(up), cmdbuf.Temporary(down), mat, shaders.PassBlur)
		lastDown = down
		res.Downsamples++
	}

	// Upsample from the coarsest blurred level back to level 0.
	for i := mipCount - 3; i >= 0; i-- {
		cb.SetGlobalTexture(c.MainTexLowMip(), cmdbuf.Temporary(lowMipFor(c, i, mipCount)))
		cb.BlitDiscard(cmdbuf.Temporary(c.MipDown(i)), cmdbuf.Temporary(c.MipUp(i)), mat, shaders.PassUpsample)
		res.Upsamples++
	}
	if res.Upsamples == 0 {
		cb.BlitDiscard(cmdbuf.Temporary(c.MipDown(0)), cmdbuf.Temporary(c.MipUp(0)), nil, 0)
	}

	for i := 0; i < mipCount; i++ {
		cb.ReleaseTemporaryRT(c.MipDown(i))
		if i > 0 {
			cb.ReleaseTemporaryRT(c.MipUp(i))
		}
	}

	cb.SetGlobalTexture(c.BloomTexture(), cmdbuf.Temporary(res.Final))

	logx.Logger().Debug("bloom: pyramid recorded",
		"source", base.String(), "mip_count", mipCount,
		"level0", levels[0], "downsamples", res.Downsamples, "upsamples", res.Upsamples)
	return res, nil
}
