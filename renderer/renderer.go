// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package renderer schedules a camera's passes: opaque objects, an optional
// skybox, transparent objects, then post-processing.
//
// The renderer owns the camera color attachment. Scene passes draw into it
// and the post-processing pass resolves it to the camera target:
//
//	r, err := renderer.New(renderer.NewData(), material.StandardLibrary(), stack,
//	    renderer.WithOpaquePass(newOpaquePass))
//	if err != nil {
//	    return err
//	}
//	if err := r.Setup(ctx, rd); err != nil {
//	    return err
//	}
//	return r.Execute(ctx, rd)
//
// Object drawing belongs to the host. Passes it supplies through the
// factory options are configured from [Data].
package renderer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/transient"
)

// Command buffer names.
const (
	createCameraTexturesTag = "Create Camera Texture"
	clearTag                = "Clear Camera Target"
	configureTag            = "Configure Pass"
	finishTag               = "Finish Rendering"
)

// depthStencilBits is the depth precision of the camera color attachment.
const depthStencilBits = 32

// ErrNilData is returned when creating a renderer without configuration.
var ErrNilData = errors.New("renderer: configuration data is nil")

// Renderer renders one camera at a time. Call Setup then Execute every
// frame. A Renderer is not safe for concurrent use.
type Renderer struct {
	opts options

	stencil   StencilState
	reference int

	opaque      postfx.ScriptablePass
	skybox      postfx.ScriptablePass
	transparent postfx.ScriptablePass
	post        *postfx.Pass

	cameraColor cmdbuf.RenderTargetIdentifier
	activeColor cmdbuf.RenderTargetIdentifier
	activeDepth cmdbuf.RenderTargetIdentifier

	queue             []postfx.ScriptablePass
	desc              transient.Descriptor
	clearFlags        postfx.ClearFlags
	backBufferSamples int
	setup             bool
}

// New creates a renderer from data, resolving its material references in
// lib. A nil lib uses material.StandardLibrary().
func New(data *Data, lib *material.Library, settings postfx.SettingsProvider, opts ...Option) (*Renderer, error) {
	if data == nil {
		return nil, ErrNilData
	}
	if lib == nil {
		lib = material.StandardLibrary()
	}
	uber, bloomMat, err := data.Materials(lib)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	stencilData := data.DefaultStencilState()
	r := &Renderer{
		opts:        o,
		stencil:     NewStencilState(stencilData),
		reference:   stencilData.Reference,
		cameraColor: cmdbuf.Temporary(o.constants.CameraColorTexture()),
		activeColor: cmdbuf.CameraTarget,
		activeDepth: cmdbuf.CameraTarget,
	}

	// Built-in passes use the "before" events so host passes injected at
	// the same event run after them.
	r.opaque = o.opaque(DrawObjectsConfig{
		Name:      "Render Opaques",
		Opaque:    true,
		Event:     postfx.BeforeRenderingOpaques,
		LayerMask: data.OpaqueLayerMask(),
		Stencil:   r.stencil,
		Reference: r.reference,
		Target:    r.cameraColor,
	})
	r.skybox = o.skybox(postfx.BeforeRenderingSkybox)
	r.transparent = o.transparent(DrawObjectsConfig{
		Name:      "Render Transparents",
		Event:     postfx.BeforeRenderingTransparents,
		LayerMask: data.TransparentLayerMask(),
		Stencil:   r.stencil,
		Reference: r.reference,
		Target:    r.cameraColor,
	})

	postOpts := append([]postfx.Option{
		postfx.WithRenderPassEvent(postfx.BeforeRenderingPostProcessing),
		postfx.WithConstants(o.constants),
	}, o.postOpts...)
	r.post = postfx.NewPass(settings, uber, bloomMat, postOpts...)

	logx.Logger().Info("renderer: created",
		"uber", uber.Name(), "bloom", bloomMat.Name(), "stencil_override", r.stencil.Enabled)
	return r, nil
}

// PostProcessPass returns the post-processing pass.
func (r *Renderer) PostProcessPass() *postfx.Pass { return r.post }

// StencilState returns the stencil state given to the draw passes.
func (r *Renderer) StencilState() StencilState { return r.stencil }

// ColorTarget returns the active camera color attachment.
func (r *Renderer) ColorTarget() cmdbuf.RenderTargetIdentifier { return r.activeColor }

// DepthTarget returns the active camera depth attachment.
func (r *Renderer) DepthTarget() cmdbuf.RenderTargetIdentifier { return r.activeDepth }

// BackBufferSamples returns the MSAA sample count requested for the back
// buffer, or 0 if no main game camera has been set up.
func (r *Renderer) BackBufferSamples() int { return r.backBufferSamples }

// Queue returns the events of the enqueued passes in queue order.
func (r *Renderer) Queue() []postfx.RenderPassEvent {
	events := make([]postfx.RenderPassEvent, len(r.queue))
	for i, p := range r.queue {
		events[i] = p.Event()
	}
	return events
}

// Setup creates the camera color attachment and enqueues the frame's
// passes for the camera in rd.
func (r *Renderer) Setup(ctx postfx.RenderContext, rd *postfx.RenderingData) error {
	switch {
	case ctx == nil:
		return postfx.ErrNilContext
	case rd == nil || rd.CameraData.Camera == nil:
		return postfx.ErrMissingCamera
	}
	cd := rd.CameraData
	cam := cd.Camera
	desc := cd.TargetDescriptor
	if err := desc.Validate(); err != nil {
		return err
	}

	r.queue = r.queue[:0]
	r.setup = false
	r.activeColor = r.cameraColor
	r.activeDepth = cmdbuf.CameraTarget

	if err := r.createCameraRenderTarget(ctx, desc); err != nil {
		return err
	}

	// Rendering goes through an intermediate texture, so the back buffer
	// never needs MSAA.
	if cam.IsMain && cam.Type == postfx.CameraTypeGame && cd.TargetTexture == nil {
		r.setupBackBuffer(1, cd.IsStereo)
	}

	r.enqueue(r.opaque)
	if cam.ClearFlags == postfx.ClearSkybox && cam.HasSkybox {
		r.enqueue(r.skybox)
	}
	r.enqueue(r.transparent)
	if cd.PostProcessEnabled {
		r.post.Setup(desc, r.activeColor, cmdbuf.CameraTarget)
		r.enqueue(r.post)
	}

	r.desc = desc
	r.clearFlags = cam.ClearFlags
	r.setup = true
	logx.Logger().Debug("renderer: camera set up",
		"camera", cam.Name, "desc", desc.String(), "passes", len(r.queue))
	return nil
}

// Execute runs the queued passes in event order, Configure then Execute for
// each, and finishes the frame even when a pass fails.
func (r *Renderer) Execute(ctx postfx.RenderContext, rd *postfx.RenderingData) (err error) {
	if !r.setup {
		return postfx.ErrNotSetup
	}
	if ctx == nil {
		return postfx.ErrNilContext
	}
	defer func() {
		err = errors.Join(err, r.finish(ctx))
	}()

	sort.SliceStable(r.queue, func(i, j int) bool {
		return r.queue[i].Event() < r.queue[j].Event()
	})

	if err := r.clearCameraTarget(ctx); err != nil {
		return err
	}
	for _, p := range r.queue {
		if err := r.configure(ctx, p); err != nil {
			return fmt.Errorf("renderer: configure %s: %w", p.Event(), err)
		}
		if err := p.Execute(ctx, rd); err != nil {
			return fmt.Errorf("renderer: execute %s: %w", p.Event(), err)
		}
	}
	return nil
}

// FinishRendering records the release of the camera attachments that are
// not the camera target.
func (r *Renderer) FinishRendering(cb *cmdbuf.CommandBuffer) {
	if r.activeColor != cmdbuf.CameraTarget {
		cb.ReleaseTemporaryRT(r.activeColor.ID)
		r.activeColor = cmdbuf.CameraTarget
	}
	if r.activeDepth != cmdbuf.CameraTarget {
		cb.ReleaseTemporaryRT(r.activeDepth.ID)
		r.activeDepth = cmdbuf.CameraTarget
	}
}

// EnqueuePass adds a host pass to the current frame. Call it after Setup;
// passes at the same event as a built-in pass run after it.
func (r *Renderer) EnqueuePass(p postfx.ScriptablePass) {
	if p != nil {
		r.enqueue(p)
	}
}

func (r *Renderer) enqueue(p postfx.ScriptablePass) {
	r.queue = append(r.queue, p)
}

func (r *Renderer) createCameraRenderTarget(ctx postfx.RenderContext, desc transient.Descriptor) error {
	if r.activeColor == cmdbuf.CameraTarget {
		return nil
	}
	cb := r.opts.pool.Get(createCameraTexturesTag)
	defer r.opts.pool.Put(cb)

	colorDesc := desc
	colorDesc.DepthBits = depthStencilBits
	cb.GetTemporaryRT(r.activeColor.ID, colorDesc, transient.FilterBilinear)
	if err := ctx.ExecuteCommandBuffer(cb); err != nil {
		r.activeColor = cmdbuf.CameraTarget
		return fmt.Errorf("renderer: %s: %w", createCameraTexturesTag, err)
	}
	return nil
}

func (r *Renderer) setupBackBuffer(samples int, stereo bool) {
	if r.backBufferSamples != samples {
		logx.Logger().Debug("renderer: back buffer samples changed",
			"from", r.backBufferSamples, "to", samples, "stereo", stereo)
	}
	r.backBufferSamples = samples
}

// clearCameraTarget binds the color attachment with load actions following
// the camera clear flags.
func (r *Renderer) clearCameraTarget(ctx postfx.RenderContext) error {
	actions := cmdbuf.LoadStore()
	switch r.clearFlags {
	case postfx.ClearSkybox, postfx.ClearColor:
		actions.ColorLoad = cmdbuf.LoadActionClear
		actions.DepthLoad = cmdbuf.LoadActionClear
	case postfx.ClearDepth:
		actions.DepthLoad = cmdbuf.LoadActionClear
	}

	cb := r.opts.pool.Get(clearTag)
	defer r.opts.pool.Put(cb)
	cb.SetRenderTarget(r.activeColor, actions)
	return ctx.ExecuteCommandBuffer(cb)
}

func (r *Renderer) configure(ctx postfx.RenderContext, p postfx.ScriptablePass) error {
	cb := r.opts.pool.Get(configureTag)
	defer r.opts.pool.Put(cb)
	if err := p.Configure(cb, r.desc); err != nil {
		return err
	}
	if cb.Len() == 0 {
		return nil
	}
	return ctx.ExecuteCommandBuffer(cb)
}

// finish lets passes release their frame targets, releases the camera
// attachments and empties the queue.
func (r *Renderer) finish(ctx postfx.RenderContext) error {
	cb := r.opts.pool.Get(finishTag)
	defer r.opts.pool.Put(cb)

	for _, p := range r.queue {
		if c, ok := p.(postfx.FrameCleaner); ok {
			c.FrameCleanup(cb)
		}
	}
	r.FinishRendering(cb)
	r.queue = r.queue[:0]
	r.setup = false

	if cb.Len() == 0 {
		return nil
	}
	if err := ctx.ExecuteCommandBuffer(cb); err != nil {
		return fmt.Errorf("renderer: %s: %w", finishTag, err)
	}
	return nil
}
