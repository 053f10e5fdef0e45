// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu plays back post-processing command buffers on a wgpu HAL
// device.
//
// Every bloom subpass and the composite get a render pipeline built from
// the WGSL programs in package shaders, compiled to SPIR-V by naga. Each
// Blit or DrawMesh is one render pass whose load and store ops come from
// the bound attachment actions. Blits without a material are texture
// copies. Transient targets are served by a [transient.Pool] over a
// [transient.HALFactory].
//
// The package registers itself as "wgpu". The registry factory opens the
// most capable HAL backend linked into the binary:
//
//	import (
//	    _ "github.com/gogpu/postfx/backend/wgpu"
//	    _ "github.com/gogpu/wgpu/hal/vulkan"
//	)
//
//	b, err := cmdbuf.NewBackend("wgpu")
//
// Hosts that already own a device wrap it with [NewDevice].
package wgpu
