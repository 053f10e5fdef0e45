// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package postfx

import (
	"errors"
	"fmt"

	"github.com/gogpu/postfx/bloom"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/composite"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/transient"
)

// Profiling scope and command buffer names.
const (
	renderTag  = "Render PostProcessing Effects"
	uberScope  = "Uber"
	bloomScope = "Bloom"
)

// Pass renders the post-processing stack (bloom, then the uber composite)
// for one camera.
//
// Call Setup, Configure and Execute in that order every frame. A Pass is
// not safe for concurrent use; give each camera its own.
type Pass struct {
	opts     options
	settings SettingsProvider

	bloom       *bloom.Builder
	composite   *composite.Stage
	materialErr error

	state         FrameRenderState
	setup         bool
	resetHistory  bool
	isStereo      bool
	allocatedDest bool
}

// NewPass creates a pass reading bloom settings from settings and drawing
// with the given uber and bloom materials.
//
// Missing materials or settings are not rejected here: Execute reports them
// and skips the frame, so a misconfigured pass never records commands.
func NewPass(settings SettingsProvider, uber, bloomMat *material.Material, opts ...Option) *Pass {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pass{
		opts:         o,
		settings:     settings,
		resetHistory: true,
	}
	_ = p.SetMaterials(uber, bloomMat)
	return p
}

// SetMaterials replaces the uber and bloom materials. A missing material is
// reported here and again by every Execute until it is replaced.
func (p *Pass) SetMaterials(uber, bloomMat *material.Material) error {
	var bloomErr, uberErr error
	p.bloom, bloomErr = bloom.NewBuilder(bloomMat, p.opts.hdrFormat, p.opts.constants)
	p.composite, uberErr = composite.NewStage(uber, p.opts.constants)
	p.materialErr = nil
	if err := errors.Join(bloomErr, uberErr); err != nil {
		p.materialErr = fmt.Errorf("%w: %w", ErrMissingMaterial, err)
	}
	return p.materialErr
}

// Event returns when the pass runs in the camera's queue.
func (p *Pass) Event() RenderPassEvent { return p.opts.event }

// Setup records the frame's base descriptor and its source and destination
// targets. Calling it again with the same arguments changes nothing.
func (p *Pass) Setup(desc transient.Descriptor, source, destination cmdbuf.RenderTargetIdentifier) {
	p.state.Descriptor = desc
	p.state.Source = source
	p.state.Destination = destination
	p.setup = true
}

// Configure allocates the destination when it is not the camera target.
// The destination is single-sample and has no depth.
func (p *Pass) Configure(cb *cmdbuf.CommandBuffer, cameraDesc transient.Descriptor) error {
	if p.state.Destination.IsCameraTarget() {
		return nil
	}
	desc := cameraDesc
	desc.SampleCount = 1
	desc.DepthBits = 0
	if err := desc.Validate(); err != nil {
		return err
	}
	cb.GetTemporaryRT(p.state.Destination.ID, desc, transient.FilterPoint)
	p.allocatedDest = true
	return nil
}

// FrameCleanup releases the destination if Configure allocated it.
func (p *Pass) FrameCleanup(cb *cmdbuf.CommandBuffer) {
	if !p.allocatedDest {
		return
	}
	cb.ReleaseTemporaryRT(p.state.Destination.ID)
	p.allocatedDest = false
}

// ResetHistory makes the next Execute treat prior-frame state as invalid.
func (p *Pass) ResetHistory() { p.resetHistory = true }

// HistoryReset reports whether the next Execute starts without history.
func (p *Pass) HistoryReset() bool { return p.resetHistory }

// IsStereo reports whether the last executed frame was stereo.
func (p *Pass) IsStereo() bool { return p.isStereo }

// State returns the frame state captured by Setup.
func (p *Pass) State() FrameRenderState {
	s := p.state
	s.Stereo = p.isStereo
	s.ResetHistory = p.resetHistory
	return s
}

// CanRunOnTile reports whether the effect stack is compatible with tile-based
// deferred rendering. No effect currently is.
func (p *Pass) CanRunOnTile() bool { return false }

// Execute records bloom and the composite for the camera in rd and submits
// them through ctx.
//
// Configuration errors are returned before anything is recorded. Errors from
// ctx abandon the frame and leave the history flag set.
func (p *Pass) Execute(ctx RenderContext, rd *RenderingData) error {
	if err := p.validate(ctx, rd); err != nil {
		Logger().Warn("postfx: skipping post-processing", "err", err)
		return err
	}

	settings, ok := p.settings.Bloom()
	if !ok {
		settings = bloom.DefaultSettings()
	}
	params := bloom.NewParameters(settings)
	p.isStereo = rd.CameraData.IsStereo

	cb := p.opts.pool.Get(renderTag)
	defer p.opts.pool.Put(cb)

	if err := p.render(cb, rd, params); err != nil {
		return err
	}
	if err := ctx.ExecuteCommandBuffer(cb); err != nil {
		return fmt.Errorf("postfx: execute %q: %w", renderTag, err)
	}

	p.resetHistory = false
	return nil
}

func (p *Pass) validate(ctx RenderContext, rd *RenderingData) error {
	switch {
	case !p.setup:
		return ErrNotSetup
	case p.materialErr != nil:
		return p.materialErr
	case p.settings == nil:
		return ErrNoSettingsProvider
	case ctx == nil:
		return ErrNilContext
	case rd == nil || rd.CameraData.Camera == nil:
		return ErrMissingCamera
	}
	return p.state.Descriptor.Validate()
}

func (p *Pass) render(cb *cmdbuf.CommandBuffer, rd *RenderingData, params bloom.Parameters) error {
	c := p.opts.constants
	cb.SetGlobalMatrix(c.FullscreenProjMat(), cmdbuf.GPUProjection(cmdbuf.Identity4()))

	uber := cmdbuf.BeginScope(cb, uberScope)
	defer uber.End()

	res, err := p.renderBloom(cb, params)
	if err != nil {
		return err
	}

	cam := rd.CameraData.Camera
	p.composite.Render(cb, composite.Input{
		Source:     p.state.Source,
		Bloom:      res.Final,
		Params:     params,
		Output:     p.state.Destination,
		Stereo:     p.isStereo,
		PixelRect:  cam.PixelRect,
		View:       cam.View,
		Projection: cam.Projection,
	})

	Logger().Debug("postfx: recorded frame",
		"camera", cam.Name, "mip_count", res.MipCount, "commands", cb.Len(), "stereo", p.isStereo)
	return nil
}

func (p *Pass) renderBloom(cb *cmdbuf.CommandBuffer, params bloom.Parameters) (bloom.Result, error) {
	scope := cmdbuf.BeginScope(cb, bloomScope)
	defer scope.End()
	return p.bloom.Render(cb, p.state.Source, p.state.Descriptor, params)
}

var (
	_ ScriptablePass = (*Pass)(nil)
	_ FrameCleaner   = (*Pass)(nil)
)
