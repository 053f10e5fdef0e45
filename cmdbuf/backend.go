// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

import (
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/transient"
)

// Backend executes played-back commands. Each method corresponds to one
// command type and returns an error to stop playback.
//
// Backends are created via the registry using NewBackend(name) and
// register themselves in init():
//
//	func init() {
//	    cmdbuf.Register("software", func() (cmdbuf.Backend, error) {
//	        return NewDevice(), nil
//	    })
//	}
type Backend interface {
	// Resource methods

	// GetTemporaryRT allocates or rebinds a transient target.
	// Allocation failures must wrap transient.ErrAllocationFailed.
	GetTemporaryRT(id shaderprop.ID, desc transient.Descriptor, filter transient.FilterMode) error

	// ReleaseTemporaryRT returns a transient target to the allocator.
	ReleaseTemporaryRT(id shaderprop.ID) error

	// State methods

	SetRenderTarget(target RenderTargetIdentifier, actions AttachmentActions) error
	SetGlobalTexture(id shaderprop.ID, target RenderTargetIdentifier) error
	SetGlobalMatrix(id shaderprop.ID, m Matrix4) error
	SetViewProjectionMatrices(view, proj Matrix4) error
	SetViewport(r Rect) error

	// Drawing methods

	// Blit runs pass of mat over the full target, sampling src as the main
	// texture. A nil mat copies src.
	Blit(src, dst RenderTargetIdentifier, mat *material.Material, pass int) error

	// DrawMesh draws mesh into the current target.
	DrawMesh(mesh material.Mesh, m Matrix4, mat *material.Material, pass int) error

	// Profiling methods

	BeginSample(name string) error
	EndSample(name string) error
}
