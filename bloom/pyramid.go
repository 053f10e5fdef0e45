// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package bloom

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/postfx/shaderprop"
)

// Size is the pixel size of one pyramid level.
type Size struct {
	Width, Height int
}

// PyramidDepth returns the level-0 size and the number of pyramid levels for
// a source of width x height.
//
// Level 0 is half the source, floored at 1 pixel. The depth is
// floor(log2(max(tw, th)) - 1) clamped to [1, MaxPyramidSize], so larger
// frames get deeper pyramids.
func PyramidDepth(width, height int) (tw, th, mipCount int) {
	tw = max(1, width>>1)
	th = max(1, height>>1)
	maxSize := max(tw, th)
	iterations := int(math32.Floor(math32.Log2(float32(maxSize)) - 1))
	mipCount = min(max(iterations, 1), shaderprop.MaxPyramidSize)
	return tw, th, mipCount
}

// LevelSizes returns the size of every level: level 0 is (tw, th) and each
// following level halves the previous one, floored at 1.
func LevelSizes(tw, th, mipCount int) []Size {
	sizes := make([]Size, mipCount)
	for i := range sizes {
		if i > 0 {
			tw = max(1, tw>>1)
			th = max(1, th>>1)
		}
		sizes[i] = Size{Width: tw, Height: th}
	}
	return sizes
}

// lowMipFor returns the coarser level combined into up[i] during upsampling:
// the last downsampled level for the deepest step, otherwise the previous
// upsample result.
func lowMipFor(c *shaderprop.Constants, i, mipCount int) shaderprop.ID {
	if i == mipCount-2 {
		return c.MipDown(i + 1)
	}
	return c.MipUp(i + 1)
}
