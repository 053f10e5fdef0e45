// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package transient allocates short-lived render targets scoped to a frame.
//
// Targets are requested by shader property ID with a [Descriptor] and a
// [FilterMode], and returned with Release. A [Pool] keeps released textures
// around so later allocations with an identical descriptor reuse them, and
// destroys textures that stay idle for too many frames.
//
// The pool does not create textures itself; it delegates to a [Factory].
// [HALFactory] creates real GPU textures through gogpu/wgpu's HAL, and the
// software backend provides a CPU factory.
package transient

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Descriptor errors.
var (
	// ErrInvalidDescriptor is returned for descriptors with non-positive
	// dimensions or sample counts.
	ErrInvalidDescriptor = errors.New("transient: invalid descriptor")
)

// Descriptor describes a render target.
// Descriptors are comparable and used as pool keys.
type Descriptor struct {
	// Width is the target width in pixels.
	Width int

	// Height is the target height in pixels.
	Height int

	// Format is the color format.
	Format gputypes.TextureFormat

	// DepthBits is the depth-stencil precision; 0 means no depth attachment.
	DepthBits int

	// SampleCount is the MSAA sample count. Use 1 for no multisampling.
	SampleCount int

	// Stereo allocates one slice per eye.
	Stereo bool
}

// NewDescriptor returns a single-sample, depthless descriptor.
func NewDescriptor(width, height int, format gputypes.TextureFormat) Descriptor {
	return Descriptor{
		Width:       width,
		Height:      height,
		Format:      format,
		SampleCount: 1,
	}
}

// Validate reports whether the descriptor can be allocated.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	if d.SampleCount < 1 {
		return fmt.Errorf("%w: sample count %d", ErrInvalidDescriptor, d.SampleCount)
	}
	if d.DepthBits < 0 {
		return fmt.Errorf("%w: depth bits %d", ErrInvalidDescriptor, d.DepthBits)
	}
	return nil
}

// Resized returns a copy of d with the given size.
func (d Descriptor) Resized(width, height int) Descriptor {
	d.Width = width
	d.Height = height
	return d
}

// Derived returns a descriptor that inherits d's stereo layout and replaces
// size, format and depth. Derived targets are always single-sample.
func (d Descriptor) Derived(width, height int, format gputypes.TextureFormat, depthBits int) Descriptor {
	d.Width = width
	d.Height = height
	d.Format = format
	d.DepthBits = depthBits
	d.SampleCount = 1
	return d
}

// Layers returns the number of array layers a target needs.
func (d Descriptor) Layers() int {
	if d.Stereo {
		return 2
	}
	return 1
}

// String returns a compact description for logs.
func (d Descriptor) String() string {
	s := fmt.Sprintf("%dx%d %v", d.Width, d.Height, d.Format)
	if d.DepthBits > 0 {
		s += fmt.Sprintf(" depth%d", d.DepthBits)
	}
	if d.SampleCount > 1 {
		s += fmt.Sprintf(" msaa%d", d.SampleCount)
	}
	if d.Stereo {
		s += " stereo"
	}
	return s
}

// FilterMode selects how a target is sampled.
type FilterMode uint8

const (
	// FilterPoint samples the nearest texel.
	FilterPoint FilterMode = iota

	// FilterBilinear interpolates between the four nearest texels.
	FilterBilinear

	// FilterTrilinear additionally interpolates between mip levels.
	FilterTrilinear
)

// String returns the filter name.
func (f FilterMode) String() string {
	switch f {
	case FilterPoint:
		return "Point"
	case FilterBilinear:
		return "Bilinear"
	case FilterTrilinear:
		return "Trilinear"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// ToWGPU returns the sampler min/mag filter and the mipmap filter for f.
func (f FilterMode) ToWGPU() (filter, mipmap gputypes.FilterMode) {
	switch f {
	case FilterBilinear:
		return gputypes.FilterModeLinear, gputypes.FilterModeNearest
	case FilterTrilinear:
		return gputypes.FilterModeLinear, gputypes.FilterModeLinear
	default:
		return gputypes.FilterModeNearest, gputypes.FilterModeNearest
	}
}
