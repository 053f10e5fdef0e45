// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cmdbuf records GPU work as an ordered list of typed commands.
//
// A [CommandBuffer] is filled by one thread during a frame and submitted
// as a unit. Recording never touches the GPU; a [Backend] executes the
// commands in order when the buffer is played back. Each command is a plain
// struct, so recorded buffers can be inspected in tests and logs.
//
// # Example
//
//	cb := cmdbuf.GetBuffer("PostFX")
//	defer cmdbuf.PutBuffer(cb)
//
//	scope := cmdbuf.BeginScope(cb, "Bloom")
//	cb.GetTemporaryRT(id, desc, transient.FilterBilinear)
//	cb.SetRenderTarget(cmdbuf.Temporary(id), cmdbuf.DiscardAll())
//	cb.Blit(src, cmdbuf.CurrentActive, mat, 0)
//	scope.End()
//
//	err := cb.Playback(backend)
package cmdbuf

import (
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/transient"
)

// CommandType identifies the type of a command.
type CommandType uint8

const (
	// Resource commands
	CmdGetTemporaryRT     CommandType = iota // Allocate a transient target
	CmdReleaseTemporaryRT                    // Release a transient target

	// State commands
	CmdSetRenderTarget           // Bind a render target with load/store actions
	CmdSetGlobalTexture          // Bind a target to a texture property
	CmdSetGlobalMatrix           // Set a matrix property
	CmdSetViewProjectionMatrices // Override view and projection
	CmdSetViewport               // Set the viewport rectangle

	// Drawing commands
	CmdBlit     // Full-screen pass from a source target
	CmdDrawMesh // Draw a built-in mesh with a material

	// Profiling commands
	CmdBeginSample // Open a profiling scope
	CmdEndSample   // Close a profiling scope
)

var commandTypeNames = [...]string{
	CmdGetTemporaryRT:            "GetTemporaryRT",
	CmdReleaseTemporaryRT:        "ReleaseTemporaryRT",
	CmdSetRenderTarget:           "SetRenderTarget",
	CmdSetGlobalTexture:          "SetGlobalTexture",
	CmdSetGlobalMatrix:           "SetGlobalMatrix",
	CmdSetViewProjectionMatrices: "SetViewProjectionMatrices",
	CmdSetViewport:               "SetViewport",
	CmdBlit:                      "Blit",
	CmdDrawMesh:                  "DrawMesh",
	CmdBeginSample:               "BeginSample",
	CmdEndSample:                 "EndSample",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// GetTemporaryRTCommand allocates a transient target.
type GetTemporaryRTCommand struct {
	ID         shaderprop.ID
	Descriptor transient.Descriptor
	Filter     transient.FilterMode
}

// Type implements Command.
func (GetTemporaryRTCommand) Type() CommandType { return CmdGetTemporaryRT }

// ReleaseTemporaryRTCommand releases a transient target.
type ReleaseTemporaryRTCommand struct {
	ID shaderprop.ID
}

// Type implements Command.
func (ReleaseTemporaryRTCommand) Type() CommandType { return CmdReleaseTemporaryRT }

// SetRenderTargetCommand binds a color target and its depth attachment.
type SetRenderTargetCommand struct {
	Target  RenderTargetIdentifier
	Actions AttachmentActions
}

// Type implements Command.
func (SetRenderTargetCommand) Type() CommandType { return CmdSetRenderTarget }

// SetGlobalTextureCommand binds a target to a texture property for all
// materials.
type SetGlobalTextureCommand struct {
	ID     shaderprop.ID
	Target RenderTargetIdentifier
}

// Type implements Command.
func (SetGlobalTextureCommand) Type() CommandType { return CmdSetGlobalTexture }

// SetGlobalMatrixCommand sets a matrix property for all materials.
type SetGlobalMatrixCommand struct {
	ID     shaderprop.ID
	Matrix Matrix4
}

// Type implements Command.
func (SetGlobalMatrixCommand) Type() CommandType { return CmdSetGlobalMatrix }

// SetViewProjectionMatricesCommand replaces the view and projection matrices.
type SetViewProjectionMatricesCommand struct {
	View       Matrix4
	Projection Matrix4
}

// Type implements Command.
func (SetViewProjectionMatricesCommand) Type() CommandType { return CmdSetViewProjectionMatrices }

// SetViewportCommand sets the viewport.
type SetViewportCommand struct {
	Rect Rect
}

// Type implements Command.
func (SetViewportCommand) Type() CommandType { return CmdSetViewport }

// BlitCommand draws Source into Dest with a material pass.
// A nil Material copies the source.
type BlitCommand struct {
	Source   RenderTargetIdentifier
	Dest     RenderTargetIdentifier
	Material *material.Material
	Pass     int
}

// Type implements Command.
func (BlitCommand) Type() CommandType { return CmdBlit }

// DrawMeshCommand draws a mesh into the current target.
type DrawMeshCommand struct {
	Mesh     material.Mesh
	Matrix   Matrix4
	Material *material.Material
	Pass     int
}

// Type implements Command.
func (DrawMeshCommand) Type() CommandType { return CmdDrawMesh }

// BeginSampleCommand opens a named profiling scope.
type BeginSampleCommand struct {
	Name string
}

// Type implements Command.
func (BeginSampleCommand) Type() CommandType { return CmdBeginSample }

// EndSampleCommand closes the named profiling scope.
type EndSampleCommand struct {
	Name string
}

// Type implements Command.
func (EndSampleCommand) Type() CommandType { return CmdEndSample }
