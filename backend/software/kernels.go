// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/postfx/transient"
)

// clampMax keeps prefiltered color in half-float range.
const clampMax = 65472.0

// Horizontal 9-tap gaussian, center last.
var downsampleWeights = [5]float32{0.01621622, 0.05405405, 0.12162162, 0.19459459, 0.22702703}

// Vertical 9-tap gaussian folded into 5 bilinear taps.
var (
	blurOffsets = [3]float32{0, 1.38461538, 3.23076923}
	blurWeights = [3]float32{0.22702703, 0.31621622, 0.07027027}
)

// sampler is a texture bound with the filter it was allocated with.
type sampler struct {
	tex    *Texture
	filter transient.FilterMode
}

func (s sampler) sample(u, v float32) [4]float32 {
	return s.tex.Sample(u, v, s.filter)
}

// kernel computes one output pixel from its normalized coordinates.
type kernel func(u, v float32) [4]float32

// region is a pixel rectangle of the destination.
type region struct {
	x0, y0, x1, y1 int
}

func fullRegion(t *Texture) region {
	return region{x1: t.width, y1: t.height}
}

// run evaluates k for every pixel of r and writes the results into dst once
// all pixels are computed, so k may sample dst.
func run(dst *Texture, r region, k kernel) {
	w, h := r.x1-r.x0, r.y1-r.y0
	if w <= 0 || h <= 0 {
		return
	}
	out := make([][4]float32, w*h)
	for y := 0; y < h; y++ {
		v := (float32(y) + 0.5) / float32(h)
		for x := 0; x < w; x++ {
			u := (float32(x) + 0.5) / float32(w)
			out[y*w+x] = k(u, v)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(r.x0+x, r.y0+y, out[y*w+x])
		}
	}
}

func copyKernel(src sampler) kernel {
	return src.sample
}

// prefilterKernel keeps the part of each pixel above the threshold, with a
// quadratic soft knee. params is scatter, threshold, knee, denominator.
func prefilterKernel(src sampler, params [4]float32) kernel {
	threshold, knee, denom := params[1], params[2], params[3]
	return func(u, v float32) [4]float32 {
		c := src.sample(u, v)
		r := math32.Min(c[0], clampMax)
		g := math32.Min(c[1], clampMax)
		b := math32.Min(c[2], clampMax)

		brightness := math32.Max(r, math32.Max(g, b))
		soft := math32.Min(math32.Max(brightness-threshold+knee, 0), 2*knee)
		soft = soft * soft / denom
		m := math32.Max(brightness-threshold, soft) / math32.Max(brightness, 0.0001)
		return [4]float32{r * m, g * m, b * m, 1}
	}
}

// downsampleKernel halves resolution with a horizontal gaussian. Taps are
// spaced one destination texel apart.
func downsampleKernel(src sampler) kernel {
	texel := 2 / float32(src.tex.width)
	return func(u, v float32) [4]float32 {
		var out [4]float32
		for i := -4; i <= 4; i++ {
			w := downsampleWeights[4-abs(i)]
			c := src.sample(u+float32(i)*texel, v)
			out[0] += c[0] * w
			out[1] += c[1] * w
			out[2] += c[2] * w
		}
		out[3] = 1
		return out
	}
}

// blurKernel is the vertical gaussian at source resolution.
func blurKernel(src sampler) kernel {
	texel := 1 / float32(src.tex.height)
	return func(u, v float32) [4]float32 {
		var out [4]float32
		for i := -2; i <= 2; i++ {
			k := abs(i)
			off := blurOffsets[k] * texel
			if i < 0 {
				off = -off
			}
			c := src.sample(u, v+off)
			out[0] += c[0] * blurWeights[k]
			out[1] += c[1] * blurWeights[k]
			out[2] += c[2] * blurWeights[k]
		}
		out[3] = 1
		return out
	}
}

// upsampleKernel blends the level with the coarser one by scatter.
func upsampleKernel(high, low sampler, scatter float32) kernel {
	return func(u, v float32) [4]float32 {
		h := high.sample(u, v)
		l := low.sample(u, v)
		return [4]float32{
			h[0] + (l[0]-h[0])*scatter,
			h[1] + (l[1]-h[1])*scatter,
			h[2] + (l[2]-h[2])*scatter,
			1,
		}
	}
}

// uberKernel adds bloom scaled by intensity to the scene, keeping scene
// alpha.
func uberKernel(scene, bloom sampler, intensity float32) kernel {
	return func(u, v float32) [4]float32 {
		s := scene.sample(u, v)
		b := bloom.sample(u, v)
		return [4]float32{
			s[0] + b[0]*intensity,
			s[1] + b[1]*intensity,
			s[2] + b[2]*intensity,
			s[3],
		}
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
