// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package renderer

import (
	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/transient"
)

// emptyPass is the draw pass used when the host supplies none. It records
// nothing.
type emptyPass struct {
	event postfx.RenderPassEvent
}

func emptyDrawPass(cfg DrawObjectsConfig) postfx.ScriptablePass {
	return emptyPass{event: cfg.Event}
}

func emptySkyboxPass(event postfx.RenderPassEvent) postfx.ScriptablePass {
	return emptyPass{event: event}
}

func (p emptyPass) Event() postfx.RenderPassEvent { return p.event }

func (emptyPass) Configure(*cmdbuf.CommandBuffer, transient.Descriptor) error { return nil }

func (emptyPass) Execute(postfx.RenderContext, *postfx.RenderingData) error { return nil }
