// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx/shaderprop"
)

// TargetKind distinguishes transient targets from built-in targets.
type TargetKind uint8

const (
	// TargetTemporary is a transient target addressed by property ID.
	TargetTemporary TargetKind = iota

	// TargetCamera is the camera's final output. For an overlay camera in a
	// stack it resolves to the base camera's target.
	TargetCamera

	// TargetCurrentActive is whatever the last SetRenderTarget bound.
	TargetCurrentActive
)

// RenderTargetIdentifier names a render target in recorded commands.
type RenderTargetIdentifier struct {
	Kind TargetKind
	ID   shaderprop.ID
}

var (
	// CameraTarget identifies the camera's output target.
	CameraTarget = RenderTargetIdentifier{Kind: TargetCamera}

	// CurrentActive identifies the currently bound render target.
	CurrentActive = RenderTargetIdentifier{Kind: TargetCurrentActive}
)

// Temporary identifies the transient target bound to id.
func Temporary(id shaderprop.ID) RenderTargetIdentifier {
	return RenderTargetIdentifier{Kind: TargetTemporary, ID: id}
}

// IsCameraTarget reports whether r is the camera's output target.
func (r RenderTargetIdentifier) IsCameraTarget() bool {
	return r.Kind == TargetCamera
}

func (r RenderTargetIdentifier) String() string {
	switch r.Kind {
	case TargetTemporary:
		return r.ID.String()
	case TargetCamera:
		return "CameraTarget"
	case TargetCurrentActive:
		return "CurrentActive"
	default:
		return fmt.Sprintf("Target(%d,%d)", r.Kind, r.ID)
	}
}

// LoadAction is what happens to attachment contents when a target is bound.
type LoadAction uint8

const (
	LoadActionLoad     LoadAction = iota // keep previous contents
	LoadActionClear                      // clear to the clear value
	LoadActionDontCare                   // contents are undefined
)

// ToWGPU maps the action to a WebGPU load op. WebGPU has no "don't care"
// load, and a clear is the cheapest defined equivalent on tilers.
func (a LoadAction) ToWGPU() gputypes.LoadOp {
	if a == LoadActionLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func (a LoadAction) String() string {
	switch a {
	case LoadActionLoad:
		return "Load"
	case LoadActionClear:
		return "Clear"
	case LoadActionDontCare:
		return "DontCare"
	default:
		return fmt.Sprintf("LoadAction(%d)", uint8(a))
	}
}

// StoreAction is what happens to attachment contents when a target is
// unbound.
type StoreAction uint8

const (
	StoreActionStore    StoreAction = iota // write back to memory
	StoreActionDontCare                    // discard
)

// ToWGPU maps the action to a WebGPU store op.
func (a StoreAction) ToWGPU() gputypes.StoreOp {
	if a == StoreActionStore {
		return gputypes.StoreOpStore
	}
	return gputypes.StoreOpDiscard
}

func (a StoreAction) String() string {
	switch a {
	case StoreActionStore:
		return "Store"
	case StoreActionDontCare:
		return "DontCare"
	default:
		return fmt.Sprintf("StoreAction(%d)", uint8(a))
	}
}

// AttachmentActions are the load and store actions of a color target and
// its depth-stencil attachment.
type AttachmentActions struct {
	ColorLoad  LoadAction
	ColorStore StoreAction
	DepthLoad  LoadAction
	DepthStore StoreAction
}

// LoadStore keeps previous contents and stores results.
func LoadStore() AttachmentActions {
	return AttachmentActions{
		ColorLoad:  LoadActionLoad,
		ColorStore: StoreActionStore,
		DepthLoad:  LoadActionLoad,
		DepthStore: StoreActionStore,
	}
}

// DiscardAll marks every attachment DontCare on load and store, for passes
// that overwrite the whole target.
func DiscardAll() AttachmentActions {
	return AttachmentActions{
		ColorLoad:  LoadActionDontCare,
		ColorStore: StoreActionDontCare,
		DepthLoad:  LoadActionDontCare,
		DepthStore: StoreActionDontCare,
	}
}

// Rect is a viewport rectangle in pixels.
type Rect struct {
	X, Y, W, H float32
}
