// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/chewxy/math32"

	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
	"github.com/gogpu/postfx/transient"
)

// Name is the registry name of the software backend.
const Name = "software"

func init() {
	cmdbuf.Register(Name, func() (cmdbuf.Backend, error) {
		return NewDevice(), nil
	})
}

var (
	// ErrNoRenderTarget is returned when drawing before a target is bound.
	ErrNoRenderTarget = errors.New("software: no render target bound")

	// ErrUnboundTexture is returned when a target or global texture does
	// not resolve to a live texture.
	ErrUnboundTexture = errors.New("software: texture not bound")

	// ErrUnsupported is returned for materials and meshes the device
	// cannot evaluate.
	ErrUnsupported = errors.New("software: unsupported")

	// ErrSampleMismatch is returned when EndSample does not close the
	// innermost open sample.
	ErrSampleMismatch = errors.New("software: mismatched profiling sample")
)

// Stats counts device work since creation.
type Stats struct {
	Buffers  int // executed command buffers
	Commands int // played-back commands
	Blits    int
	Draws    int
	Clears   int
}

// Option configures a Device.
type Option func(*deviceOptions)

type deviceOptions struct {
	width, height int
	textureLimit  int
	constants     *shaderprop.Constants
	poolOpts      []transient.PoolOption
}

// WithCameraSize sets the camera target size. The default is 1x1.
func WithCameraSize(width, height int) Option {
	return func(o *deviceOptions) {
		o.width, o.height = width, height
	}
}

// WithTextureLimit caps the number of live transient textures. Allocations
// beyond the cap fail with transient.ErrAllocationFailed.
func WithTextureLimit(n int) Option {
	return func(o *deviceOptions) {
		o.textureLimit = n
	}
}

// WithConstants sets the property ID table used to find global textures
// and material properties. Nil keeps shaderprop.Default().
func WithConstants(c *shaderprop.Constants) Option {
	return func(o *deviceOptions) {
		if c != nil {
			o.constants = c
		}
	}
}

// WithPoolOptions configures the transient pool.
func WithPoolOptions(opts ...transient.PoolOption) Option {
	return func(o *deviceOptions) {
		o.poolOpts = append(o.poolOpts, opts...)
	}
}

// Device is a CPU [cmdbuf.Backend] and render context.
//
// ExecuteCommandBuffer calls are serialized. Accessors are safe for
// concurrent use.
type Device struct {
	exec sync.Mutex // serializes playback

	mu        sync.Mutex
	constants *shaderprop.Constants
	factory   *Factory
	pool      *transient.Pool
	tracker   *transient.Tracker
	camera    *Texture

	target  cmdbuf.RenderTargetIdentifier
	bound   *Texture
	actions cmdbuf.AttachmentActions

	globals  map[shaderprop.ID]cmdbuf.RenderTargetIdentifier
	matrices map[shaderprop.ID]cmdbuf.Matrix4
	view     cmdbuf.Matrix4
	proj     cmdbuf.Matrix4
	viewport cmdbuf.Rect
	samples  []string
	stats    Stats
}

// NewDevice creates a device.
func NewDevice(opts ...Option) *Device {
	o := deviceOptions{width: 1, height: 1, constants: shaderprop.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	factory := NewFactory(o.textureLimit)
	// NewPool only fails for a nil factory.
	pool, _ := transient.NewPool(factory, append([]transient.PoolOption{
		transient.WithLabelPrefix(Name),
	}, o.poolOpts...)...)

	return &Device{
		constants: o.constants,
		factory:   factory,
		pool:      pool,
		tracker:   transient.NewTracker(pool),
		camera:    NewTexture(o.width, o.height),
		globals:   make(map[shaderprop.ID]cmdbuf.RenderTargetIdentifier),
		matrices:  make(map[shaderprop.ID]cmdbuf.Matrix4),
		view:      cmdbuf.Identity4(),
		proj:      cmdbuf.Identity4(),
	}
}

// ExecuteCommandBuffer plays cb back on the device.
//
// When playback fails, targets the buffer allocated and did not release are
// returned to the pool and profiling samples it opened are closed, so the
// next buffer starts from the state this one started from.
func (d *Device) ExecuteCommandBuffer(cb *cmdbuf.CommandBuffer) error {
	d.exec.Lock()
	defer d.exec.Unlock()

	d.mu.Lock()
	depth := len(d.samples)
	d.mu.Unlock()
	d.tracker.Reset()

	err := cb.Playback(d)

	d.mu.Lock()
	d.stats.Buffers++
	d.stats.Commands += cb.Len()
	if err != nil {
		d.samples = d.samples[:min(depth, len(d.samples))]
	}
	d.mu.Unlock()

	if err != nil {
		released := d.tracker.Rollback()
		logx.Logger().Warn("software: playback failed",
			"buffer", cb.Name(), "released", released, "err", err)
	}
	return err
}

// Camera returns the camera target.
func (d *Device) Camera() *Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.camera
}

// ResizeCamera replaces the camera target with a cleared one of the given
// size.
func (d *Device) ResizeCamera(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound == d.camera {
		d.bound = nil
	}
	d.camera = NewTexture(width, height)
}

// Texture resolves target to its texture.
func (d *Device) Texture(target cmdbuf.RenderTargetIdentifier) (*Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.resolve(target)
	return s.tex, err
}

// WritePixels replaces the contents of target with linear RGBA float
// pixels, row-major. The size must match the target.
func (d *Device) WritePixels(target cmdbuf.RenderTargetIdentifier, width, height int, pix []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.resolve(target)
	if err != nil {
		return err
	}
	if s.tex.width != width || s.tex.height != height || len(pix) < width*height*4 {
		return fmt.Errorf("%w: write %dx%d pixels into %dx%d", ErrUnsupported, width, height, s.tex.width, s.tex.height)
	}
	copy(s.tex.pix, pix)
	return nil
}

// ReadCamera returns the camera target clamped to 8-bit RGBA.
func (d *Device) ReadCamera() (image.Image, error) {
	return d.Camera().Image(), nil
}

// GlobalTexture returns the target bound to a global texture property.
func (d *Device) GlobalTexture(id shaderprop.ID) (cmdbuf.RenderTargetIdentifier, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.globals[id]
	return t, ok
}

// GlobalMatrix returns a global matrix property.
func (d *Device) GlobalMatrix(id shaderprop.ID) (cmdbuf.Matrix4, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.matrices[id]
	return m, ok
}

// ViewProjection returns the current view and projection matrices.
func (d *Device) ViewProjection() (view, proj cmdbuf.Matrix4) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view, d.proj
}

// Viewport returns the current viewport.
func (d *Device) Viewport() cmdbuf.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// Actions returns the attachment actions of the current target.
func (d *Device) Actions() cmdbuf.AttachmentActions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actions
}

// OpenSamples returns the profiling samples not yet ended, outermost first.
func (d *Device) OpenSamples() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.samples...)
}

// Stats returns a snapshot of device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Pool returns the transient target pool.
func (d *Device) Pool() *transient.Pool { return d.pool }

// LiveTextures returns the number of transient textures alive.
func (d *Device) LiveTextures() int { return d.factory.Live() }

// EndFrame ends the frame on the transient pool and returns the number of
// idle textures destroyed.
func (d *Device) EndFrame() int { return d.pool.EndFrame() }

// Destroy releases every transient texture.
func (d *Device) Destroy() { d.pool.Destroy() }

// GetTemporaryRT allocates a transient target.
func (d *Device) GetTemporaryRT(id shaderprop.ID, desc transient.Descriptor, filter transient.FilterMode) error {
	_, err := d.tracker.Allocate(id, desc, filter)
	return err
}

// ReleaseTemporaryRT returns a transient target to the pool.
func (d *Device) ReleaseTemporaryRT(id shaderprop.ID) error {
	return d.tracker.Release(id)
}

// SetRenderTarget binds target and resets the viewport to cover it.
func (d *Device) SetRenderTarget(target cmdbuf.RenderTargetIdentifier, actions cmdbuf.AttachmentActions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.resolve(target)
	if err != nil {
		return err
	}
	d.bind(target, s.tex, actions)
	return nil
}

// SetGlobalTexture binds target to a global texture property.
func (d *Device) SetGlobalTexture(id shaderprop.ID, target cmdbuf.RenderTargetIdentifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if target.Kind == cmdbuf.TargetCurrentActive {
		target = d.target
	}
	d.globals[id] = target
	return nil
}

// SetGlobalMatrix sets a global matrix property.
func (d *Device) SetGlobalMatrix(id shaderprop.ID, m cmdbuf.Matrix4) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matrices[id] = m
	return nil
}

// SetViewProjectionMatrices sets the view and projection matrices.
func (d *Device) SetViewProjectionMatrices(view, proj cmdbuf.Matrix4) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view, d.proj = view, proj
	return nil
}

// SetViewport sets the viewport in pixels of the current target.
func (d *Device) SetViewport(r cmdbuf.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = r
	return nil
}

// Blit runs pass of mat over the whole of dst with src as the main texture.
func (d *Device) Blit(src, dst cmdbuf.RenderTargetIdentifier, mat *material.Material, pass int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	main, err := d.resolve(src)
	if err != nil {
		return err
	}
	if dst.Kind != cmdbuf.TargetCurrentActive {
		out, err := d.resolve(dst)
		if err != nil {
			return err
		}
		d.bind(dst, out.tex, cmdbuf.LoadStore())
	}
	if d.bound == nil {
		return ErrNoRenderTarget
	}

	k, err := d.kernelFor(main, mat, pass)
	if err != nil {
		return err
	}
	run(d.bound, fullRegion(d.bound), k)
	d.stats.Blits++
	return nil
}

// DrawMesh draws the full-screen mesh into the viewport of the current
// target. The main texture is the global _BlitTex.
func (d *Device) DrawMesh(mesh material.Mesh, _ cmdbuf.Matrix4, mat *material.Material, pass int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mesh != material.MeshFullscreen {
		return fmt.Errorf("%w: mesh %s", ErrUnsupported, mesh)
	}
	if mat == nil {
		return fmt.Errorf("%w: nil material for DrawMesh", ErrUnsupported)
	}
	if d.bound == nil {
		return ErrNoRenderTarget
	}
	main, err := d.global(d.constants.BlitTex())
	if err != nil {
		return err
	}
	k, err := d.kernelFor(main, mat, pass)
	if err != nil {
		return err
	}
	run(d.bound, d.viewportRegion(), k)
	d.stats.Draws++
	return nil
}

// BeginSample opens a profiling sample.
func (d *Device) BeginSample(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, name)
	return nil
}

// EndSample closes the innermost profiling sample.
func (d *Device) EndSample(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.samples)
	if n == 0 || d.samples[n-1] != name {
		return fmt.Errorf("%w: end %q", ErrSampleMismatch, name)
	}
	d.samples = d.samples[:n-1]
	return nil
}

// bind makes tex the current target. The caller must hold d.mu.
func (d *Device) bind(target cmdbuf.RenderTargetIdentifier, tex *Texture, actions cmdbuf.AttachmentActions) {
	if target.Kind != cmdbuf.TargetCurrentActive {
		d.target = target
		d.bound = tex
	}
	d.actions = actions
	d.viewport = cmdbuf.Rect{W: float32(tex.width), H: float32(tex.height)}
	if actions.ColorLoad == cmdbuf.LoadActionClear {
		tex.Fill([4]float32{})
		d.stats.Clears++
	}
}

// resolve finds the texture behind target. The caller must hold d.mu.
func (d *Device) resolve(target cmdbuf.RenderTargetIdentifier) (sampler, error) {
	switch target.Kind {
	case cmdbuf.TargetCamera:
		return sampler{tex: d.camera, filter: transient.FilterBilinear}, nil
	case cmdbuf.TargetCurrentActive:
		if d.bound == nil {
			return sampler{}, ErrNoRenderTarget
		}
		return d.resolve(d.target)
	case cmdbuf.TargetTemporary:
		h, ok := d.pool.Lookup(target.ID)
		if !ok {
			return sampler{}, fmt.Errorf("%w: %s", ErrUnboundTexture, target)
		}
		tex, ok := h.Texture.(*Texture)
		if !ok {
			return sampler{}, fmt.Errorf("%w: %s", transient.ErrForeignTexture, target)
		}
		return sampler{tex: tex, filter: h.Filter}, nil
	default:
		return sampler{}, fmt.Errorf("%w: %s", ErrUnboundTexture, target)
	}
}

// global resolves a global texture property. The caller must hold d.mu.
func (d *Device) global(id shaderprop.ID) (sampler, error) {
	target, ok := d.globals[id]
	if !ok {
		return sampler{}, fmt.Errorf("%w: global %s", ErrUnboundTexture, id)
	}
	return d.resolve(target)
}

// kernelFor selects the kernel for pass of mat. The caller must hold d.mu.
func (d *Device) kernelFor(main sampler, mat *material.Material, pass int) (kernel, error) {
	if mat == nil {
		return copyKernel(main), nil
	}
	if err := mat.ValidatePass(pass); err != nil {
		return nil, err
	}
	c := d.constants
	switch mat.Program().Name {
	case shaders.BloomName:
		params := mat.Vector(c.BloomParams())
		switch pass {
		case shaders.PassPrefilter:
			return prefilterKernel(main, params), nil
		case shaders.PassDownsample:
			return downsampleKernel(main), nil
		case shaders.PassBlur:
			return blurKernel(main), nil
		default:
			low, err := d.global(c.MainTexLowMip())
			if err != nil {
				return nil, err
			}
			return upsampleKernel(main, low, params[0]), nil
		}
	case shaders.UberName:
		scene := main
		if s, err := d.global(c.BlitTex()); err == nil {
			scene = s
		}
		bloomTex, err := d.global(c.BloomTexture())
		if err != nil {
			return nil, err
		}
		return uberKernel(scene, bloomTex, mat.Float(c.BloomIntensity())), nil
	default:
		return nil, fmt.Errorf("%w: material %s", ErrUnsupported, mat.Name())
	}
}

// viewportRegion clips the viewport to the current target. The caller must
// hold d.mu.
func (d *Device) viewportRegion() region {
	full := fullRegion(d.bound)
	v := d.viewport
	if v.W <= 0 || v.H <= 0 {
		return full
	}
	r := region{
		x0: int(math32.Floor(v.X)),
		y0: int(math32.Floor(v.Y)),
		x1: int(math32.Ceil(v.X + v.W)),
		y1: int(math32.Ceil(v.Y + v.H)),
	}
	r.x0, r.y0 = max(r.x0, full.x0), max(r.y0, full.y0)
	r.x1, r.y1 = min(r.x1, full.x1), min(r.y1, full.y1)
	return r
}

var _ cmdbuf.Backend = (*Device)(nil)
