// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software plays back post-processing command buffers on the CPU.
//
// The device evaluates the same passes as the WGSL programs in package
// shaders with float math, which makes it a reference for tests and a
// fallback for headless tools. It registers itself as "software":
//
//	import _ "github.com/gogpu/postfx/backend/software"
//
//	b := cmdbuf.MustBackend("software")
//
// Transient targets are served by a [transient.Pool] over a [Factory], so
// allocation behavior matches the GPU path.
package software
