// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package postfx renders bloom and the final composite for a camera.
//
// # Overview
//
// postfx records post-processing work into a command buffer. A [Pass] owns
// the per-camera lifecycle: Setup stores the frame's targets and
// descriptor, Configure pre-allocates the destination when it is not the
// camera target, and Execute records the bloom pyramid and the uber
// composite inside profiling scopes and submits them to a [RenderContext].
//
// # Quick Start
//
//	stack := volume.NewStack()
//	pass := postfx.NewPass(stack, material.NewUber(), material.NewBloom())
//
//	pass.Setup(cameraDesc, cmdbuf.Temporary(colorID), cmdbuf.CameraTarget)
//	if err := pass.Configure(cb, cameraDesc); err != nil { ... }
//	if err := pass.Execute(ctx, renderingData); err != nil { ... }
//
// # Architecture
//
// The library is organized into:
//   - Pass scheduling: Pass, FrameRenderState, RenderingData (this package)
//   - Bloom pyramid: bloom
//   - Uber composite: composite
//   - Recording: cmdbuf, material, shaders, shaderprop
//   - Transient targets: transient (pooling, wgpu HAL factory)
//   - Settings: volume
//   - Orchestration: renderer
//   - Execution: backend/software
//
// # Errors
//
// Configuration errors are reported before any command is recorded and the
// frame is skipped. Allocation failures surface from
// RenderContext.ExecuteCommandBuffer and abandon the frame; the next frame
// starts from clean state.
package postfx
