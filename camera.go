// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package postfx

import (
	"fmt"

	"github.com/gogpu/postfx/bloom"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/transient"
)

// RenderPassEvent orders passes within a camera. Lower events run first.
type RenderPassEvent int

const (
	BeforeRendering               RenderPassEvent = 0
	BeforeRenderingOpaques        RenderPassEvent = 250
	AfterRenderingOpaques         RenderPassEvent = 300
	BeforeRenderingSkybox         RenderPassEvent = 350
	AfterRenderingSkybox          RenderPassEvent = 400
	BeforeRenderingTransparents   RenderPassEvent = 450
	AfterRenderingTransparents    RenderPassEvent = 500
	BeforeRenderingPostProcessing RenderPassEvent = 550
	AfterRenderingPostProcessing  RenderPassEvent = 600
	AfterRendering                RenderPassEvent = 1000
)

var eventNames = map[RenderPassEvent]string{
	BeforeRendering:               "BeforeRendering",
	BeforeRenderingOpaques:        "BeforeRenderingOpaques",
	AfterRenderingOpaques:         "AfterRenderingOpaques",
	BeforeRenderingSkybox:         "BeforeRenderingSkybox",
	AfterRenderingSkybox:          "AfterRenderingSkybox",
	BeforeRenderingTransparents:   "BeforeRenderingTransparents",
	AfterRenderingTransparents:    "AfterRenderingTransparents",
	BeforeRenderingPostProcessing: "BeforeRenderingPostProcessing",
	AfterRenderingPostProcessing:  "AfterRenderingPostProcessing",
	AfterRendering:                "AfterRendering",
}

func (e RenderPassEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("RenderPassEvent(%d)", int(e))
}

// CameraType distinguishes game cameras from editor views.
type CameraType uint8

const (
	CameraTypeGame CameraType = iota
	CameraTypeSceneView
	CameraTypePreview
)

// ClearFlags is what a camera clears to before drawing.
type ClearFlags uint8

const (
	ClearSkybox ClearFlags = iota
	ClearColor
	ClearDepth
	ClearNothing
)

// Camera is the subset of camera state the post-processing and renderer
// passes read.
type Camera struct {
	Name       string
	Type       CameraType
	IsMain     bool
	ClearFlags ClearFlags

	// HasSkybox reports whether a skybox material is assigned.
	HasSkybox bool

	// PixelRect is the viewport in pixels.
	PixelRect cmdbuf.Rect

	// View is the world-to-camera matrix.
	View       cmdbuf.Matrix4
	Projection cmdbuf.Matrix4
}

// CameraData is the per-frame camera state supplied by the host.
type CameraData struct {
	Camera *Camera

	// TargetDescriptor describes the camera color target.
	TargetDescriptor transient.Descriptor

	IsStereo           bool
	PostProcessEnabled bool

	// TargetTexture is the camera's explicit render texture; nil renders
	// to the back buffer.
	TargetTexture *cmdbuf.RenderTargetIdentifier
}

// RenderingData is passed to every pass's Execute.
type RenderingData struct {
	CameraData CameraData
}

// RenderContext submits recorded command buffers.
type RenderContext interface {
	// ExecuteCommandBuffer schedules cb. The buffer may be reused once it
	// returns. Allocation failures wrap transient.ErrAllocationFailed.
	ExecuteCommandBuffer(cb *cmdbuf.CommandBuffer) error
}

// SettingsProvider resolves effect settings for the current frame.
type SettingsProvider interface {
	// Bloom returns the active bloom settings. ok is false when nothing
	// configures bloom and defaults should be used.
	Bloom() (settings bloom.Settings, ok bool)
}

// ScriptablePass is a unit of camera rendering scheduled by a renderer in
// the fixed order Configure, then Execute.
type ScriptablePass interface {
	// Event orders the pass in the camera's queue.
	Event() RenderPassEvent

	// Configure records target allocations the pass needs before Execute.
	Configure(cb *cmdbuf.CommandBuffer, cameraDesc transient.Descriptor) error

	// Execute records and submits the pass's work.
	Execute(ctx RenderContext, rd *RenderingData) error
}

// FrameCleaner is implemented by passes that hold targets until the end of
// the camera's frame.
type FrameCleaner interface {
	FrameCleanup(cb *cmdbuf.CommandBuffer)
}

// FrameRenderState is the per-camera, per-frame state captured by Setup.
type FrameRenderState struct {
	Descriptor   transient.Descriptor
	Source       cmdbuf.RenderTargetIdentifier
	Destination  cmdbuf.RenderTargetIdentifier
	Stereo       bool
	ResetHistory bool
}
