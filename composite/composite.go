// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package composite records the final uber pass that adds bloom to the scene
// color and writes the camera output.
package composite

import (
	"errors"

	"github.com/gogpu/postfx/bloom"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
)

// ErrMissingMaterial is returned when the stage has no uber material.
var ErrMissingMaterial = errors.New("composite: material is nil")

// Input is everything the stage needs for one camera.
type Input struct {
	// Source is the scene color bound to _BlitTex.
	Source cmdbuf.RenderTargetIdentifier

	// Bloom is the final bloom target. The stage releases it.
	Bloom shaderprop.ID

	Params bloom.Parameters

	// Output is the resolved camera output. For an overlay camera in a
	// stack the caller passes the base camera's target.
	Output cmdbuf.RenderTargetIdentifier

	Stereo bool

	// PixelRect, View and Projection come from the camera and are used by
	// the mono path only.
	PixelRect  cmdbuf.Rect
	View       cmdbuf.Matrix4
	Projection cmdbuf.Matrix4
}

// Stage records the uber composite.
type Stage struct {
	constants *shaderprop.Constants
	material  *material.Material
}

// NewStage creates a stage drawing with the uber material mat.
// A nil constants table uses shaderprop.Default().
func NewStage(mat *material.Material, constants *shaderprop.Constants) (*Stage, error) {
	if mat == nil {
		return nil, ErrMissingMaterial
	}
	if constants == nil {
		constants = shaderprop.Default()
	}
	return &Stage{constants: constants, material: mat}, nil
}

// Material returns the uber material.
func (s *Stage) Material() *material.Material { return s.material }

// Render records the composite into cb.
//
// The output is bound with every attachment DontCare since the pass
// rewrites the whole frame. Stereo output uses a plain blit and lets the
// platform apply per-eye viewports. Mono output draws a full-screen mesh
// under identity view and projection, then restores the camera matrices
// from in.View and in.Projection.
func (s *Stage) Render(cb *cmdbuf.CommandBuffer, in Input) {
	c := s.constants
	mat := s.material

	mat.SetFloat(c.BloomIntensity(), in.Params.Intensity)
	mat.SetVector(c.BloomParams(), in.Params.Vector())

	cb.SetGlobalTexture(c.BlitTex(), in.Source)
	cb.SetGlobalTexture(c.BloomTexture(), cmdbuf.Temporary(in.Bloom))
	cb.SetRenderTarget(in.Output, cmdbuf.DiscardAll())

	if in.Stereo {
		cb.Blit(in.Source, cmdbuf.CurrentActive, mat, 0)
	} else {
		identity := cmdbuf.Identity4()
		cb.SetViewProjectionMatrices(identity, identity)
		cb.SetViewport(in.PixelRect)
		cb.DrawMesh(material.MeshFullscreen, identity, mat, 0)
		cb.SetViewProjectionMatrices(in.View, in.Projection)
	}

	cb.ReleaseTemporaryRT(in.Bloom)
}
