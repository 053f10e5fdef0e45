// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"

	"github.com/gogpu/postfx/transient"
)

// Texture is a linear float RGBA image. Values are not clamped, so a
// texture can hold HDR scene color.
type Texture struct {
	width  int
	height int
	pix    []float32 // RGBA, row-major
	label  string
}

// NewTexture returns a zeroed texture. Dimensions below 1 are raised to 1.
func NewTexture(width, height int) *Texture {
	width = max(width, 1)
	height = max(height, 1)
	return &Texture{
		width:  width,
		height: height,
		pix:    make([]float32, width*height*4),
	}
}

// Width returns the width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the height in pixels.
func (t *Texture) Height() int { return t.height }

// Label returns the debug label given at creation.
func (t *Texture) Label() string { return t.label }

// Pixels returns the backing RGBA slice, row-major. Writes to it change
// the texture.
func (t *Texture) Pixels() []float32 { return t.pix }

// At returns the pixel at (x, y), clamping coordinates to the edges.
func (t *Texture) At(x, y int) [4]float32 {
	x = min(max(x, 0), t.width-1)
	y = min(max(y, 0), t.height-1)
	i := (y*t.width + x) * 4
	return [4]float32{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

// Set stores c at (x, y). Out-of-range coordinates are ignored.
func (t *Texture) Set(x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= t.width || y >= t.height {
		return
	}
	i := (y*t.width + x) * 4
	copy(t.pix[i:i+4], c[:])
}

// Fill sets every pixel to c.
func (t *Texture) Fill(c [4]float32) {
	for i := 0; i < len(t.pix); i += 4 {
		copy(t.pix[i:i+4], c[:])
	}
}

// Sample reads the texture at normalized coordinates with clamp-to-edge
// addressing. Pixel centers sit at (i+0.5)/size.
func (t *Texture) Sample(u, v float32, filter transient.FilterMode) [4]float32 {
	fx := u*float32(t.width) - 0.5
	fy := v*float32(t.height) - 0.5
	if filter == transient.FilterPoint {
		return t.At(int(math32.Floor(fx+0.5)), int(math32.Floor(fy+0.5)))
	}

	x0 := math32.Floor(fx)
	y0 := math32.Floor(fy)
	tx := fx - x0
	ty := fy - y0
	ix, iy := int(x0), int(y0)

	c00 := t.At(ix, iy)
	c10 := t.At(ix+1, iy)
	c01 := t.At(ix, iy+1)
	c11 := t.At(ix+1, iy+1)

	var out [4]float32
	for k := range out {
		top := c00[k] + (c10[k]-c00[k])*tx
		bottom := c01[k] + (c11[k]-c01[k])*tx
		out[k] = top + (bottom-top)*ty
	}
	return out
}

// Image converts the texture to 8-bit RGBA, clamping each channel to [0, 1].
func (t *Texture) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c := t.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: unorm8(c[0]),
				G: unorm8(c[1]),
				B: unorm8(c[2]),
				A: unorm8(c[3]),
			})
		}
	}
	return img
}

// Load replaces the texture contents with src, scaling it bilinearly to the
// texture size when the bounds differ.
func (t *Texture) Load(src image.Image) {
	dst := image.NewRGBA64(image.Rect(0, 0, t.width, t.height))
	sb := src.Bounds()
	if sb.Dx() == t.width && sb.Dy() == t.height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	}
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c := dst.RGBA64At(x, y)
			a := float32(c.A) / 0xffff
			var r, g, b float32
			if a > 0 {
				r = float32(c.R) / 0xffff / a
				g = float32(c.G) / 0xffff / a
				b = float32(c.B) / 0xffff / a
			}
			t.Set(x, y, [4]float32{r, g, b, a})
		}
	}
}

func unorm8(v float32) uint8 {
	v = math32.Min(math32.Max(v, 0), 1)
	return uint8(v*255 + 0.5)
}

var _ transient.Texture = (*Texture)(nil)
