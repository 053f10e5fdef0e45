// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/cmdbuf"
)

// copyRowAlignment is the row pitch alignment of texture-to-buffer copies.
const copyRowAlignment = 256

// WritePixels uploads linear RGBA float pixels, row-major, into target.
// The size must match the target. Values are converted to the target
// format: 16- and 32-bit float formats keep HDR values, 8-bit formats
// clamp to [0, 1].
func (d *Device) WritePixels(target cmdbuf.RenderTargetIdentifier, width, height int, pix []float32) error {
	d.exec.Lock()
	defer d.exec.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.resolve(target)
	if err != nil {
		return err
	}
	desc := tex.Descriptor()
	if desc.Width != width || desc.Height != height || len(pix) < width*height*4 {
		return fmt.Errorf("%w: write %dx%d pixels into %s", ErrUnsupported, width, height, desc)
	}

	data, bpp, err := encodePixels(desc.Format, pix[:width*height*4])
	if err != nil {
		return err
	}
	size := extent(desc)
	//nolint:gosec // G115: dimensions are validated positive
	layout := &hal.ImageDataLayout{
		BytesPerRow:  uint32(width * bpp),
		RowsPerImage: uint32(height),
	}
	dst := &hal.ImageCopyTexture{Texture: tex.Color, Aspect: gputypes.TextureAspectAll}
	if err := d.queue.WriteTexture(dst, data, layout, &size); err != nil {
		return fmt.Errorf("wgpu: write texture: %w", err)
	}
	return nil
}

// ReadCamera copies the camera target back to the CPU. The camera format
// must be RGBA8Unorm or BGRA8Unorm.
func (d *Device) ReadCamera() (image.Image, error) {
	d.exec.Lock()
	defer d.exec.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	cam, err := d.cameraTexture()
	if err != nil {
		return nil, err
	}
	desc := cam.Descriptor()
	bgra := desc.Format == gputypes.TextureFormatBGRA8Unorm
	if desc.Format != gputypes.TextureFormatRGBA8Unorm && !bgra {
		return nil, fmt.Errorf("%w: read back %s", ErrUnsupported, desc)
	}

	w, h := desc.Width, desc.Height
	pitch := (w*4 + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	//nolint:gosec // G115: dimensions are validated positive
	size := uint64(pitch * h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: Name + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: Name + "_readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(Name + "_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	//nolint:gosec // G115: dimensions are validated positive
	encoder.CopyTextureToBuffer(cam.Color, staging, []hal.BufferTextureCopy{
		{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(pitch), RowsPerImage: uint32(h)},
			TextureBase:  hal.ImageCopyTexture{Texture: cam.Color, Aspect: gputypes.TextureAspectAll},
			Size:         extent(desc),
		},
	})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("wgpu: submit readback: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("wgpu: wait idle: %w", err)
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("wgpu: map readback buffer: %w", err)
	}
	defer func() { _ = d.device.UnmapBuffer(staging) }()
	src := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src[y*pitch : y*pitch+w*4]
		out := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(out, row)
		if bgra {
			for i := 0; i < len(out); i += 4 {
				out[i], out[i+2] = out[i+2], out[i]
			}
		}
	}
	return img, nil
}

// encodePixels converts RGBA float pixels to the texel layout of format and
// returns the bytes per pixel.
func encodePixels(format gputypes.TextureFormat, pix []float32) ([]byte, int, error) {
	switch format {
	case gputypes.TextureFormatRGBA32Float:
		out := make([]byte, len(pix)*4)
		for i, v := range pix {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
		return out, 16, nil
	case gputypes.TextureFormatRGBA16Float:
		out := make([]byte, len(pix)*2)
		for i, v := range pix {
			binary.LittleEndian.PutUint16(out[i*2:], float16(v))
		}
		return out, 8, nil
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		out := make([]byte, len(pix))
		for i, v := range pix {
			out[i] = unorm8(v)
		}
		if format == gputypes.TextureFormatBGRA8Unorm {
			for i := 0; i < len(out); i += 4 {
				out[i], out[i+2] = out[i+2], out[i]
			}
		}
		return out, 4, nil
	default:
		return nil, 0, fmt.Errorf("%w: upload to %s", ErrUnsupported, format)
	}
}

// float16 rounds v to the nearest IEEE 754 half. Values beyond the half
// range become infinity and NaN stays NaN.
func float16(v float32) uint16 {
	bits := math.Float32bits(v)
	sign := uint16(bits>>16) & 0x8000
	exp := int((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case (bits>>23)&0xff == 0xff: // Inf or NaN
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		// Subnormal: shift in the implicit bit and round to nearest even.
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := mant >> shift
		rem := mant & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	}

	half := uint32(exp)<<10 | mant>>13
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		// A carry into the exponent yields the next binade or infinity.
		half++
	}
	return sign | uint16(half)
}

func unorm8(v float32) uint8 {
	switch {
	case !(v > 0): // also NaN
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
