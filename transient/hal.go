// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package transient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/internal/logx"
)

// HAL factory errors.
var (
	// ErrNilDevice is returned when creating a factory without a device.
	ErrNilDevice = errors.New("transient: hal device is nil")

	// ErrNoHalAccess is returned when a device provider does not expose
	// its HAL device.
	ErrNoHalAccess = errors.New("transient: provider does not expose a hal.Device")

	// ErrForeignTexture is returned when destroying a texture that was not
	// created by this factory.
	ErrForeignTexture = errors.New("transient: texture not created by this factory")
)

// colorUsage is the usage of every transient color target. Targets are
// rendered into by one pass and sampled by the next. Copies in both
// directions serve copy blits, uploads and readback.
const colorUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// HALTexture is a transient target backed by wgpu HAL resources.
type HALTexture struct {
	Color     hal.Texture
	ColorView hal.TextureView

	// Depth and DepthView are nil when the descriptor has no depth bits.
	Depth     hal.Texture
	DepthView hal.TextureView

	// Sampler matches the filter mode requested at allocation.
	Sampler hal.Sampler

	desc Descriptor
}

// Width returns the target width in pixels.
func (t *HALTexture) Width() int { return t.desc.Width }

// Height returns the target height in pixels.
func (t *HALTexture) Height() int { return t.desc.Height }

// Descriptor returns the descriptor the texture was created with.
func (t *HALTexture) Descriptor() Descriptor { return t.desc }

// HALFactory creates transient targets on a wgpu HAL device.
// Samplers are shared per filter mode and live until Destroy.
//
// HALFactory is safe for concurrent use.
type HALFactory struct {
	mu       sync.Mutex
	device   hal.Device
	samplers map[FilterMode]hal.Sampler
	created  int
}

// NewHALFactory creates a factory on device.
func NewHALFactory(device hal.Device) (*HALFactory, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &HALFactory{
		device:   device,
		samplers: make(map[FilterMode]hal.Sampler),
	}, nil
}

// NewHALFactoryFromProvider creates a factory on the device shared by a host
// application. The provider must also expose HalDevice() returning a
// hal.Device, as gogpu's context provider does.
func NewHALFactoryFromProvider(provider gpucontext.DeviceProvider) (*HALFactory, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	hp, ok := provider.(interface{ HalDevice() any })
	if !ok {
		return nil, ErrNoHalAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoHalAccess
	}
	return NewHALFactory(device)
}

// CreateTexture creates the color attachment, an optional depth-stencil
// attachment and binds a sampler for filter.
func (f *HALFactory) CreateTexture(label string, desc Descriptor, filter FilterMode) (Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	//nolint:gosec // G115: dimensions are validated positive
	size := hal.Extent3D{
		Width:              uint32(desc.Width),
		Height:             uint32(desc.Height),
		DepthOrArrayLayers: uint32(desc.Layers()),
	}
	//nolint:gosec // G115: sample count is validated positive
	samples := uint32(desc.SampleCount)

	t := &HALTexture{desc: desc}

	color, err := f.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         colorUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("create color texture %q: %w", label, err)
	}
	t.Color = color

	view, err := f.device.CreateTextureView(color, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		f.destroy(t)
		return nil, fmt.Errorf("create color view %q: %w", label, err)
	}
	t.ColorView = view

	if desc.DepthBits > 0 {
		depth, err := f.device.CreateTexture(&hal.TextureDescriptor{
			Label:         label + "_depth",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   samples,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatDepth24PlusStencil8,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			f.destroy(t)
			return nil, fmt.Errorf("create depth texture %q: %w", label, err)
		}
		t.Depth = depth

		depthView, err := f.device.CreateTextureView(depth, &hal.TextureViewDescriptor{
			Label: label + "_depth_view",
		})
		if err != nil {
			f.destroy(t)
			return nil, fmt.Errorf("create depth view %q: %w", label, err)
		}
		t.DepthView = depthView
	}

	sampler, err := f.sampler(filter)
	if err != nil {
		f.destroy(t)
		return nil, err
	}
	t.Sampler = sampler

	f.created++
	return t, nil
}

// DestroyTexture releases the views and textures of a HALTexture.
// Textures from other factories are ignored.
func (f *HALFactory) DestroyTexture(tex Texture) {
	t, ok := tex.(*HALTexture)
	if !ok || t == nil {
		logx.Logger().Warn("transient: destroy skipped", "err", ErrForeignTexture)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy(t)
	f.created--
}

// Live returns the number of textures created and not yet destroyed.
func (f *HALFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Destroy releases the shared samplers. Textures must be destroyed first,
// typically through Pool.Destroy.
func (f *HALFactory) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for mode, s := range f.samplers {
		f.device.DestroySampler(s)
		delete(f.samplers, mode)
	}
}

// sampler returns the shared sampler for filter. The caller must hold f.mu.
func (f *HALFactory) sampler(filter FilterMode) (hal.Sampler, error) {
	if s, ok := f.samplers[filter]; ok {
		return s, nil
	}
	minMag, mip := filter.ToWGPU()
	s, err := f.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "transient_sampler_" + filter.String(),
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    minMag,
		MinFilter:    minMag,
		MipmapFilter: mip,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s sampler: %w", filter, err)
	}
	f.samplers[filter] = s
	return s, nil
}

// destroy releases whatever parts of t exist. The caller must hold f.mu.
func (f *HALFactory) destroy(t *HALTexture) {
	if t.DepthView != nil {
		f.device.DestroyTextureView(t.DepthView)
		t.DepthView = nil
	}
	if t.Depth != nil {
		f.device.DestroyTexture(t.Depth)
		t.Depth = nil
	}
	if t.ColorView != nil {
		f.device.DestroyTextureView(t.ColorView)
		t.ColorView = nil
	}
	if t.Color != nil {
		f.device.DestroyTexture(t.Color)
		t.Color = nil
	}
	t.Sampler = nil
}

var _ Factory = (*HALFactory)(nil)
