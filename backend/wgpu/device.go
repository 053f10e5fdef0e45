// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
	"github.com/gogpu/postfx/transient"
)

// Name is the registry name of the wgpu backend.
const Name = "wgpu"

func init() {
	cmdbuf.Register(Name, func() (cmdbuf.Backend, error) {
		d, err := Open()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

var (
	// ErrNilQueue is returned when creating a device without a queue.
	ErrNilQueue = errors.New("wgpu: hal queue is nil")

	// ErrNoAdapter is returned by Open when no HAL backend exposes an
	// adapter.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter")

	// ErrNoRenderTarget is returned when drawing before a target is bound.
	ErrNoRenderTarget = errors.New("wgpu: no render target bound")

	// ErrUnboundTexture is returned when a target or global texture does
	// not resolve to a live texture.
	ErrUnboundTexture = errors.New("wgpu: texture not bound")

	// ErrUnsupported is returned for materials, meshes, targets and copies
	// the device cannot encode.
	ErrUnsupported = errors.New("wgpu: unsupported")

	// ErrSampleMismatch is returned when EndSample does not close the
	// innermost open sample.
	ErrSampleMismatch = errors.New("wgpu: mismatched profiling sample")
)

// Stats counts device work since creation.
type Stats struct {
	Buffers  int // submitted or failed command buffers
	Commands int // played-back commands
	Passes   int // render passes begun
	Draws    int
	Copies   int // texture-to-texture blits
	Clears   int // render passes that only clear
}

// Option configures a Device.
type Option func(*deviceOptions)

type deviceOptions struct {
	width, height int
	cameraFormat  gputypes.TextureFormat
	constants     *shaderprop.Constants
	poolOpts      []transient.PoolOption
	depthStencil  *hal.DepthStencilState
	backend       gputypes.Backend
	backendSet    bool
}

// WithCameraSize sets the camera target size. The default is 1x1.
func WithCameraSize(width, height int) Option {
	return func(o *deviceOptions) {
		o.width, o.height = width, height
	}
}

// WithCameraFormat sets the camera target format. The default is
// RGBA8Unorm.
func WithCameraFormat(format gputypes.TextureFormat) Option {
	return func(o *deviceOptions) {
		o.cameraFormat = format
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

// WithDepthStencil sets the depth-stencil state of pipelines that render
// into targets with a depth attachment.
func WithDepthStencil(ds *hal.DepthStencilState) Option {
	return func(o *deviceOptions) {
		o.depthStencil = ds
	}
}

// WithBackend makes Open use one HAL backend instead of the most capable
// registered one.
func WithBackend(b gputypes.Backend) Option {
	return func(o *deviceOptions) {
		o.backend, o.backendSet = b, true
	}
}

// Device is a wgpu HAL [cmdbuf.Backend] and render context. Each executed
// command buffer is encoded into one HAL command buffer, submitted and
// waited on.
//
// ExecuteCommandBuffer calls are serialized. Accessors are safe for
// concurrent use.
type Device struct {
	exec sync.Mutex // serializes playback

	mu        sync.Mutex
	device    hal.Device
	queue     hal.Queue
	release   func() // destroys the device and instance created by Open
	constants *shaderprop.Constants
	factory   *transient.HALFactory
	pool      *transient.Pool
	tracker   *transient.Tracker
	pipelines *pipelines

	cameraDesc transient.Descriptor
	camera     *transient.HALTexture // created on first use

	encoder hal.CommandEncoder // non-nil during playback
	garbage []func()           // per-draw resources freed after submit

	target  cmdbuf.RenderTargetIdentifier
	bound   *transient.HALTexture
	actions cmdbuf.AttachmentActions
	drawn   bool // a pass has run on bound since it was bound

	lastPass *hal.RenderPassDescriptor

	globals   map[shaderprop.ID]cmdbuf.RenderTargetIdentifier
	matrices  map[shaderprop.ID]cmdbuf.Matrix4
	view      cmdbuf.Matrix4
	proj      cmdbuf.Matrix4
	viewport  cmdbuf.Rect
	samples   []string
	stats     Stats
	destroyed bool
}

// Open creates a device on the first adapter of the most capable HAL
// backend linked into the binary. Import a backend package such as
// github.com/gogpu/wgpu/hal/vulkan to make it available.
func Open(opts ...Option) (*Device, error) {
	o := resolveOptions(opts)

	var (
		backend hal.Backend
		err     error
	)
	if o.backendSet {
		var ok bool
		if backend, ok = hal.GetBackend(o.backend); !ok {
			return nil, fmt.Errorf("%w: backend %v not registered", ErrNoAdapter, o.backend)
		}
	} else if backend, err = hal.SelectBestBackend(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d, err := NewDevice(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	logx.Logger().Info("wgpu: device opened",
		"backend", backend.Variant().String(), "adapter", selected.Info.Name)
	return d, nil
}

// NewDevice creates a device on an existing HAL device and queue. The
// caller keeps ownership of both.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}
	factory, err := transient.NewHALFactory(device)
	if err != nil {
		return nil, err
	}
	return newDevice(factory, device, queue, resolveOptions(opts))
}

// NewDeviceFromProvider creates a device on the GPU shared by a host
// application. The provider must expose HalDevice() and HalQueue(), as
// gogpu's context provider does. The camera format defaults to the
// provider's surface format.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	factory, err := transient.NewHALFactoryFromProvider(provider)
	if err != nil {
		return nil, err
	}
	device := provider.(interface{ HalDevice() any }).HalDevice().(hal.Device)
	hq, ok := provider.(interface{ HalQueue() any })
	if !ok {
		factory.Destroy()
		return nil, transient.ErrNoHalAccess
	}
	queue, ok := hq.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		factory.Destroy()
		return nil, ErrNilQueue
	}

	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithCameraFormat(f)}, opts...)
	}
	d, err := newDevice(factory, device, queue, resolveOptions(opts))
	if err != nil {
		return nil, err
	}
	info := provider.AdapterInfo()
	logx.Logger().Debug("wgpu: device shared by host", "adapter", info.Name, "type", info.Type)
	return d, nil
}

func newDevice(factory *transient.HALFactory, device hal.Device, queue hal.Queue, o deviceOptions) (*Device, error) {
	pool, err := transient.NewPool(factory, append([]transient.PoolOption{
		transient.WithLabelPrefix(Name),
	}, o.poolOpts...)...)
	if err != nil {
		return nil, err
	}
	pl, err := newPipelines(device, o.depthStencil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}

	cameraDesc := transient.NewDescriptor(max(o.width, 1), max(o.height, 1), o.cameraFormat)
	return &Device{
		device:     device,
		queue:      queue,
		constants:  o.constants,
		factory:    factory,
		pool:       pool,
		tracker:    transient.NewTracker(pool),
		pipelines:  pl,
		cameraDesc: cameraDesc,
		globals:    make(map[shaderprop.ID]cmdbuf.RenderTargetIdentifier),
		matrices:   make(map[shaderprop.ID]cmdbuf.Matrix4),
		view:       cmdbuf.Identity4(),
		proj:       cmdbuf.Identity4(),
	}, nil
}

func resolveOptions(opts []Option) deviceOptions {
	o := deviceOptions{
		width:        1,
		height:       1,
		cameraFormat: gputypes.TextureFormatRGBA8Unorm,
		constants:    shaderprop.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ExecuteCommandBuffer encodes cb, submits it and waits for the GPU.
//
// When playback fails the encoding is discarded, targets the buffer
// allocated and did not release are returned to the pool and profiling
// samples it opened are closed.
func (d *Device) ExecuteCommandBuffer(cb *cmdbuf.CommandBuffer) error {
	d.exec.Lock()
	defer d.exec.Unlock()

	d.mu.Lock()
	depth := len(d.samples)
	d.mu.Unlock()
	d.tracker.Reset()

	err := d.encode(cb)

	d.mu.Lock()
	d.stats.Buffers++
	d.stats.Commands += cb.Len()
	if err != nil {
		d.samples = d.samples[:min(depth, len(d.samples))]
	}
	d.freeGarbage()
	d.mu.Unlock()

	if err != nil {
		released := d.tracker.Rollback()
		logx.Logger().Warn("wgpu: playback failed",
			"buffer", cb.Name(), "released", released, "err", err)
	}
	return err
}

// encode plays cb back into a new HAL command encoder and submits it.
func (d *Device) encode(cb *cmdbuf.CommandBuffer) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: cb.Name()})
	if err != nil {
		return fmt.Errorf("wgpu: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(cb.Name()); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	d.mu.Lock()
	d.encoder = encoder
	d.mu.Unlock()

	err = cb.Playback(d)

	d.mu.Lock()
	if err == nil {
		d.flushClear()
	}
	d.encoder = nil
	d.mu.Unlock()

	if err != nil {
		encoder.DiscardEncoding()
		return err
	}

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	// Uniform buffers and bind groups of this buffer are freed next.
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	return nil
}

// ResizeCamera replaces the camera target with one of the given size. The
// new target is created on first use.
func (d *Device) ResizeCamera(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.camera != nil {
		if d.bound == d.camera {
			d.bound = nil
		}
		d.factory.DestroyTexture(d.camera)
		d.camera = nil
	}
	d.cameraDesc = d.cameraDesc.Resized(max(width, 1), max(height, 1))
}

// CameraDescriptor returns the descriptor of the camera target.
func (d *Device) CameraDescriptor() transient.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cameraDesc
}

// SetDepthStencil replaces the depth-stencil state of pipelines that render
// into targets with a depth attachment. Nil restores Always/Keep.
func (d *Device) SetDepthStencil(ds *hal.DepthStencilState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines.setDepthStencil(ds)
}

// GlobalTexture returns the target bound to a global texture property.
func (d *Device) GlobalTexture(id shaderprop.ID) (cmdbuf.RenderTargetIdentifier, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.globals[id]
	return t, ok
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

// LastPass returns the descriptor of the most recent render pass, or nil.
func (d *Device) LastPass() *hal.RenderPassDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastPass
}

// PipelineCount returns the number of render pipelines created so far.
func (d *Device) PipelineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipelines.len()
}

// Pool returns the transient target pool.
func (d *Device) Pool() *transient.Pool { return d.pool }

// LiveTextures returns the number of HAL textures alive, the camera
// included.
func (d *Device) LiveTextures() int { return d.factory.Live() }

// EndFrame ends the frame on the transient pool and returns the number of
// idle textures destroyed.
func (d *Device) EndFrame() int { return d.pool.EndFrame() }

// Destroy releases every GPU resource the device created. Devices from
// Open also destroy their HAL device and instance.
func (d *Device) Destroy() {
	d.exec.Lock()
	defer d.exec.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true

	d.pool.Destroy()
	if d.camera != nil {
		d.factory.DestroyTexture(d.camera)
		d.camera = nil
	}
	d.bound = nil
	d.pipelines.destroy()
	d.factory.Destroy()
	if d.release != nil {
		d.release()
		d.release = nil
	}
}

// GetTemporaryRT allocates a transient target. Stereo targets are array
// textures, which the pipelines cannot sample, and are rejected.
func (d *Device) GetTemporaryRT(id shaderprop.ID, desc transient.Descriptor, filter transient.FilterMode) error {
	if desc.Stereo {
		return fmt.Errorf("%w: stereo target %s", ErrUnsupported, id)
	}
	d.mu.Lock()
	d.flushClear()
	d.mu.Unlock()
	_, err := d.tracker.Allocate(id, desc, filter)
	return err
}

// ReleaseTemporaryRT returns a transient target to the pool.
func (d *Device) ReleaseTemporaryRT(id shaderprop.ID) error {
	d.mu.Lock()
	d.flushClear()
	d.mu.Unlock()
	return d.tracker.Release(id)
}

// SetRenderTarget binds target. A Clear load action takes effect on the
// next render pass, or on its own when nothing is drawn before the target
// changes.
func (d *Device) SetRenderTarget(target cmdbuf.RenderTargetIdentifier, actions cmdbuf.AttachmentActions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, err := d.resolve(target)
	if err != nil {
		return err
	}
	d.bind(target, tex, actions)
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
// A nil material copies src into dst, which must then match in size and
// format.
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
		d.bind(dst, out, cmdbuf.LoadStore())
	}
	if d.bound == nil {
		return ErrNoRenderTarget
	}
	if mat == nil {
		return d.copy(main, d.bound)
	}
	return d.draw(main, mat, pass, fullRect(d.bound))
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
	return d.draw(main, mat, pass, d.viewportRect())
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
func (d *Device) bind(target cmdbuf.RenderTargetIdentifier, tex *transient.HALTexture, actions cmdbuf.AttachmentActions) {
	d.flushClear()
	if target.Kind != cmdbuf.TargetCurrentActive {
		d.target = target
		d.bound = tex
	}
	d.actions = actions
	d.drawn = false
	d.viewport = fullRect(tex)
}

// flushClear runs a pass with no draws when the bound target still owes a
// clear. The caller must hold d.mu.
func (d *Device) flushClear() {
	if d.encoder == nil || d.bound == nil || d.drawn {
		return
	}
	if d.actions.ColorLoad != cmdbuf.LoadActionClear && d.actions.DepthLoad != cmdbuf.LoadActionClear {
		return
	}
	d.beginPass("clear", false).End()
	d.stats.Clears++
}

// beginPass opens a render pass on the bound target. The first pass after
// a bind uses the bound load actions, later ones load. A pass that draws
// stores its color even when the store action is DontCare, which only
// releases the previous contents. The caller must hold d.mu.
func (d *Device) beginPass(label string, draws bool) hal.RenderPassEncoder {
	t, a := d.bound, d.actions
	colorLoad, depthLoad := a.ColorLoad.ToWGPU(), a.DepthLoad.ToWGPU()
	if d.drawn {
		colorLoad, depthLoad = gputypes.LoadOpLoad, gputypes.LoadOpLoad
	}
	colorStore := a.ColorStore.ToWGPU()
	if draws {
		colorStore = gputypes.StoreOpStore
	}

	desc := &hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       t.ColorView,
				LoadOp:     colorLoad,
				StoreOp:    colorStore,
				ClearValue: gputypes.Color{},
			},
		},
	}
	if t.DepthView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              t.DepthView,
			DepthLoadOp:       depthLoad,
			DepthStoreOp:      a.DepthStore.ToWGPU(),
			DepthClearValue:   1,
			StencilLoadOp:     depthLoad,
			StencilStoreOp:    a.DepthStore.ToWGPU(),
			StencilClearValue: 0,
		}
	}
	d.drawn = true
	d.stats.Passes++
	d.lastPass = desc
	return d.encoder.BeginRenderPass(desc)
}

// draw encodes one full-screen triangle for pass of mat. The caller must
// hold d.mu.
func (d *Device) draw(main *transient.HALTexture, mat *material.Material, pass int, vp cmdbuf.Rect) error {
	if err := mat.ValidatePass(pass); err != nil {
		return err
	}

	c := d.constants
	var (
		secondary *transient.HALTexture
		uniforms  []byte
	)
	switch mat.Program().Name {
	case shaders.BloomName:
		// Passes without a low mip bind the main texture twice.
		secondary = main
		if pass == shaders.PassUpsample {
			low, err := d.global(c.MainTexLowMip())
			if err != nil {
				return err
			}
			secondary = low
		}
		uniforms = bloomUniforms(mat.Vector(c.BloomParams()), main.Descriptor())
	case shaders.UberName:
		if s, err := d.global(c.BlitTex()); err == nil {
			main = s
		}
		bloomTex, err := d.global(c.BloomTexture())
		if err != nil {
			return err
		}
		secondary = bloomTex
		proj, ok := d.matrices[c.FullscreenProjMat()]
		if !ok {
			proj = cmdbuf.Identity4()
		}
		uniforms = uberUniforms(proj, mat.Float(c.BloomIntensity()))
	default:
		return fmt.Errorf("%w: material %s", ErrUnsupported, mat.Name())
	}
	if main == d.bound || secondary == d.bound {
		return fmt.Errorf("%w: %s samples its own render target", ErrUnsupported, mat.Name())
	}

	pipeline, err := d.pipelines.get(mat.Program(), pass, d.bound.Descriptor())
	if err != nil {
		return err
	}

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: mat.Name() + "_uniforms",
		Size:  uint64(len(uniforms)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}
	if err := d.queue.WriteBuffer(buf, 0, uniforms); err != nil {
		d.device.DestroyBuffer(buf)
		return fmt.Errorf("wgpu: write uniforms: %w", err)
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  mat.Name() + "_bind_group",
		Layout: d.pipelines.groupLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Size: uint64(len(uniforms))}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: main.Sampler.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: main.ColorView.NativeHandle()}},
			{Binding: 3, Resource: gputypes.TextureViewBinding{TextureView: secondary.ColorView.NativeHandle()}},
		},
	})
	if err != nil {
		d.device.DestroyBuffer(buf)
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	d.garbage = append(d.garbage, func() {
		d.device.DestroyBindGroup(group)
		d.device.DestroyBuffer(buf)
	})

	rp := d.beginPass(mat.Name(), true)
	rp.SetViewport(vp.X, vp.Y, vp.W, vp.H, 0, 1)
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
	d.stats.Draws++
	return nil
}

// copy encodes a texture-to-texture copy. The caller must hold d.mu.
func (d *Device) copy(src, dst *transient.HALTexture) error {
	if src == dst {
		return nil
	}
	sd, dd := src.Descriptor(), dst.Descriptor()
	if sd.Width != dd.Width || sd.Height != dd.Height || sd.Format != dd.Format || sd.SampleCount != dd.SampleCount {
		return fmt.Errorf("%w: copy %s to %s", ErrUnsupported, sd, dd)
	}
	d.encoder.CopyTextureToTexture(src.Color, dst.Color, []hal.TextureCopy{
		{
			SrcBase: hal.ImageCopyTexture{Texture: src.Color, Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: dst.Color, Aspect: gputypes.TextureAspectAll},
			Size:    extent(dd),
		},
	})
	// The copy overwrites the target, so no clear is owed.
	d.drawn = true
	d.stats.Copies++
	return nil
}

// freeGarbage destroys per-draw resources. The caller must hold d.mu.
func (d *Device) freeGarbage() {
	for _, free := range d.garbage {
		free()
	}
	d.garbage = d.garbage[:0]
}

// resolve finds the texture behind target. The caller must hold d.mu.
func (d *Device) resolve(target cmdbuf.RenderTargetIdentifier) (*transient.HALTexture, error) {
	switch target.Kind {
	case cmdbuf.TargetCamera:
		return d.cameraTexture()
	case cmdbuf.TargetCurrentActive:
		if d.bound == nil {
			return nil, ErrNoRenderTarget
		}
		return d.resolve(d.target)
	case cmdbuf.TargetTemporary:
		h, ok := d.pool.Lookup(target.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundTexture, target)
		}
		tex, ok := h.Texture.(*transient.HALTexture)
		if !ok {
			return nil, fmt.Errorf("%w: %s", transient.ErrForeignTexture, target)
		}
		return tex, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnboundTexture, target)
	}
}

// global resolves a global texture property. The caller must hold d.mu.
func (d *Device) global(id shaderprop.ID) (*transient.HALTexture, error) {
	target, ok := d.globals[id]
	if !ok {
		return nil, fmt.Errorf("%w: global %s", ErrUnboundTexture, id)
	}
	return d.resolve(target)
}

// cameraTexture returns the camera target, creating it on first use. The
// caller must hold d.mu.
func (d *Device) cameraTexture() (*transient.HALTexture, error) {
	if d.camera != nil {
		return d.camera, nil
	}
	tex, err := d.factory.CreateTexture(Name+"_camera", d.cameraDesc, transient.FilterBilinear)
	if err != nil {
		return nil, fmt.Errorf("%w: camera: %w", transient.ErrAllocationFailed, err)
	}
	d.camera, _ = tex.(*transient.HALTexture)
	return d.camera, nil
}

// viewportRect clips the viewport to the current target. The caller must
// hold d.mu.
func (d *Device) viewportRect() cmdbuf.Rect {
	full := fullRect(d.bound)
	v := d.viewport
	if v.W <= 0 || v.H <= 0 {
		return full
	}
	v.X, v.Y = max(v.X, 0), max(v.Y, 0)
	v.W, v.H = min(v.W, full.W-v.X), min(v.H, full.H-v.Y)
	if v.W <= 0 || v.H <= 0 {
		return full
	}
	return v
}

func fullRect(t *transient.HALTexture) cmdbuf.Rect {
	return cmdbuf.Rect{W: float32(t.Width()), H: float32(t.Height())}
}

func extent(desc transient.Descriptor) hal.Extent3D {
	//nolint:gosec // G115: dimensions are validated positive
	return hal.Extent3D{
		Width:              uint32(desc.Width),
		Height:             uint32(desc.Height),
		DepthOrArrayLayers: 1,
	}
}

var _ cmdbuf.Backend = (*Device)(nil)
