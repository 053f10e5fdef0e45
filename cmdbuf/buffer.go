// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

import (
	"fmt"

	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/transient"
)

// CommandBuffer is an ordered list of recorded commands.
//
// A CommandBuffer is not safe for concurrent use; one thread records it.
type CommandBuffer struct {
	name     string
	commands []Command
	samples  []string
}

// New creates an empty command buffer.
func New(name string) *CommandBuffer {
	return &CommandBuffer{name: name}
}

// Name returns the buffer name used in logs and errors.
func (cb *CommandBuffer) Name() string { return cb.name }

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int { return len(cb.commands) }

// Commands returns a copy of the recorded commands.
func (cb *CommandBuffer) Commands() []Command {
	out := make([]Command, len(cb.commands))
	copy(out, cb.commands)
	return out
}

// Count returns how many commands of type t were recorded.
func (cb *CommandBuffer) Count(t CommandType) int {
	n := 0
	for _, c := range cb.commands {
		if c.Type() == t {
			n++
		}
	}
	return n
}

// OpenSamples returns the number of profiling scopes begun and not ended.
func (cb *CommandBuffer) OpenSamples() int { return len(cb.samples) }

// Clear removes all commands and keeps the name.
func (cb *CommandBuffer) Clear() {
	clear(cb.commands)
	cb.commands = cb.commands[:0]
	cb.samples = cb.samples[:0]
}

func (cb *CommandBuffer) add(c Command) {
	cb.commands = append(cb.commands, c)
}

// GetTemporaryRT records the allocation of a transient target.
func (cb *CommandBuffer) GetTemporaryRT(id shaderprop.ID, desc transient.Descriptor, filter transient.FilterMode) {
	cb.add(GetTemporaryRTCommand{ID: id, Descriptor: desc, Filter: filter})
}

// ReleaseTemporaryRT records the release of a transient target.
func (cb *CommandBuffer) ReleaseTemporaryRT(id shaderprop.ID) {
	cb.add(ReleaseTemporaryRTCommand{ID: id})
}

// SetRenderTarget records binding target with the given actions.
func (cb *CommandBuffer) SetRenderTarget(target RenderTargetIdentifier, actions AttachmentActions) {
	cb.add(SetRenderTargetCommand{Target: target, Actions: actions})
}

// SetGlobalTexture records binding target to the texture property id.
func (cb *CommandBuffer) SetGlobalTexture(id shaderprop.ID, target RenderTargetIdentifier) {
	cb.add(SetGlobalTextureCommand{ID: id, Target: target})
}

// SetGlobalMatrix records setting the matrix property id.
func (cb *CommandBuffer) SetGlobalMatrix(id shaderprop.ID, m Matrix4) {
	cb.add(SetGlobalMatrixCommand{ID: id, Matrix: m})
}

// SetViewProjectionMatrices records replacing the view and projection.
func (cb *CommandBuffer) SetViewProjectionMatrices(view, proj Matrix4) {
	cb.add(SetViewProjectionMatricesCommand{View: view, Projection: proj})
}

// SetViewport records setting the viewport.
func (cb *CommandBuffer) SetViewport(r Rect) {
	cb.add(SetViewportCommand{Rect: r})
}

// Blit records a full-screen pass from src into dst.
func (cb *CommandBuffer) Blit(src, dst RenderTargetIdentifier, mat *material.Material, pass int) {
	cb.add(BlitCommand{Source: src, Dest: dst, Material: mat, Pass: pass})
}

// BlitDiscard binds dst with every attachment DontCare and blits src into
// it. Use it when the pass overwrites every pixel of dst.
func (cb *CommandBuffer) BlitDiscard(src, dst RenderTargetIdentifier, mat *material.Material, pass int) {
	cb.SetRenderTarget(dst, DiscardAll())
	cb.Blit(src, CurrentActive, mat, pass)
}

// DrawMesh records drawing mesh with transform m.
func (cb *CommandBuffer) DrawMesh(mesh material.Mesh, m Matrix4, mat *material.Material, pass int) {
	cb.add(DrawMeshCommand{Mesh: mesh, Matrix: m, Material: mat, Pass: pass})
}

// BeginSample records opening a profiling scope. Prefer [BeginScope].
func (cb *CommandBuffer) BeginSample(name string) {
	cb.samples = append(cb.samples, name)
	cb.add(BeginSampleCommand{Name: name})
}

// EndSample records closing a profiling scope.
func (cb *CommandBuffer) EndSample(name string) {
	if n := len(cb.samples); n > 0 {
		cb.samples = cb.samples[:n-1]
	}
	cb.add(EndSampleCommand{Name: name})
}

// Playback executes the recorded commands on backend in order. It stops at
// the first failing command.
func (cb *CommandBuffer) Playback(backend Backend) error {
	for i, cmd := range cb.commands {
		if err := apply(backend, cmd); err != nil {
			return fmt.Errorf("cmdbuf: %s: command %d (%s): %w", cb.name, i, cmd.Type(), err)
		}
	}
	return nil
}

func apply(b Backend, cmd Command) error {
	switch c := cmd.(type) {
	case GetTemporaryRTCommand:
		return b.GetTemporaryRT(c.ID, c.Descriptor, c.Filter)
	case ReleaseTemporaryRTCommand:
		return b.ReleaseTemporaryRT(c.ID)
	case SetRenderTargetCommand:
		return b.SetRenderTarget(c.Target, c.Actions)
	case SetGlobalTextureCommand:
		return b.SetGlobalTexture(c.ID, c.Target)
	case SetGlobalMatrixCommand:
		return b.SetGlobalMatrix(c.ID, c.Matrix)
	case SetViewProjectionMatricesCommand:
		return b.SetViewProjectionMatrices(c.View, c.Projection)
	case SetViewportCommand:
		return b.SetViewport(c.Rect)
	case BlitCommand:
		return b.Blit(c.Source, c.Dest, c.Material, c.Pass)
	case DrawMeshCommand:
		return b.DrawMesh(c.Mesh, c.Matrix, c.Material, c.Pass)
	case BeginSampleCommand:
		return b.BeginSample(c.Name)
	case EndSampleCommand:
		return b.EndSample(c.Name)
	default:
		return fmt.Errorf("unknown command type %T", cmd)
	}
}
