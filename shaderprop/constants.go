// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shaderprop

import (
	"fmt"
	"sync"
)

// MaxPyramidSize is the maximum number of bloom pyramid levels.
const MaxPyramidSize = 8

// Property names bound by the post-processing passes.
const (
	NameMainTex           = "_MainTex"
	NameMainTexLowMip     = "_MainTexLowMip"
	NameBloomParams       = "_Bloom_Params"
	NameBloomIntensity    = "_Bloom_Intensity"
	NameBloomTexture      = "_Bloom_Texture"
	NameBlitTex           = "_BlitTex"
	NameFullscreenProjMat = "_FullscreenProjMat"
	NameCameraColorTex    = "_CameraColorTexture"
	NameAfterPostProcess  = "_AfterPostProcessTexture"

	mipUpPrefix   = "_BloomMipUp"
	mipDownPrefix = "_BloomMipDown"
)

// Constants is the read-only table of property IDs used by the
// post-processing passes, including the per-level bloom pyramid IDs.
//
// A Constants value is built once and never mutated afterwards, so a single
// table can be shared by every pass and frame without synchronization.
type Constants struct {
	mainTex           ID
	mainTexLowMip     ID
	bloomParams       ID
	bloomIntensity    ID
	bloomTexture      ID
	blitTex           ID
	fullscreenProjMat ID
	cameraColorTex    ID
	afterPostProcess  ID

	mipUp   [MaxPyramidSize]ID
	mipDown [MaxPyramidSize]ID
}

// NewConstants resolves every post-processing property name and the
// per-level pyramid names.
func NewConstants() *Constants {
	c := &Constants{
		mainTex:           PropertyToID(NameMainTex),
		mainTexLowMip:     PropertyToID(NameMainTexLowMip),
		bloomParams:       PropertyToID(NameBloomParams),
		bloomIntensity:    PropertyToID(NameBloomIntensity),
		bloomTexture:      PropertyToID(NameBloomTexture),
		blitTex:           PropertyToID(NameBlitTex),
		fullscreenProjMat: PropertyToID(NameFullscreenProjMat),
		cameraColorTex:    PropertyToID(NameCameraColorTex),
		afterPostProcess:  PropertyToID(NameAfterPostProcess),
	}
	for i := 0; i < MaxPyramidSize; i++ {
		c.mipUp[i] = PropertyToID(fmt.Sprintf("%s%d", mipUpPrefix, i))
		c.mipDown[i] = PropertyToID(fmt.Sprintf("%s%d", mipDownPrefix, i))
	}
	return c
}

var (
	defaultOnce      sync.Once
	defaultConstants *Constants
)

// Default returns the process-wide constants table, building it on first use.
func Default() *Constants {
	defaultOnce.Do(func() {
		defaultConstants = NewConstants()
	})
	return defaultConstants
}

// MainTex is the source texture bound by a blit.
func (c *Constants) MainTex() ID { return c.mainTex }

// MainTexLowMip is the coarser pyramid level read during upsampling.
func (c *Constants) MainTexLowMip() ID { return c.mainTexLowMip }

// BloomParams is the (scatter, threshold, knee, denominator) vector.
func (c *Constants) BloomParams() ID { return c.bloomParams }

// BloomIntensity is the composite bloom multiplier.
func (c *Constants) BloomIntensity() ID { return c.bloomIntensity }

// BloomTexture is the final bloom result read by the composite.
func (c *Constants) BloomTexture() ID { return c.bloomTexture }

// BlitTex is the scene color read by the composite.
func (c *Constants) BlitTex() ID { return c.blitTex }

// FullscreenProjMat is the projection used by full-screen mesh draws.
func (c *Constants) FullscreenProjMat() ID { return c.fullscreenProjMat }

// CameraColorTexture is the intermediate camera color attachment.
func (c *Constants) CameraColorTexture() ID { return c.cameraColorTex }

// AfterPostProcessTexture is the intermediate post-processing output used
// when post-processing does not resolve directly to the camera target.
func (c *Constants) AfterPostProcessTexture() ID { return c.afterPostProcess }

// MipUp returns the ID of the "up" target of pyramid level i.
// It panics if i is outside [0, MaxPyramidSize).
func (c *Constants) MipUp(i int) ID { return c.mipUp[i] }

// MipDown returns the ID of the "down" target of pyramid level i.
// It panics if i is outside [0, MaxPyramidSize).
func (c *Constants) MipDown(i int) ID { return c.mipDown[i] }
