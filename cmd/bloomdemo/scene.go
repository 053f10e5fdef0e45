// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/bloom"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/transient"
	"github.com/gogpu/postfx/volume"
)

var errInvalidScene = errors.New("bloomdemo: invalid scene")

// Light is an emissive disc in normalized frame coordinates. Color may
// exceed 1 to feed the bloom threshold.
type Light struct {
	X      float32    `yaml:"x"`
	Y      float32    `yaml:"y"`
	Radius float32    `yaml:"radius"`
	Color  [3]float32 `yaml:"color"`
}

// Scene is the demo description read from YAML.
type Scene struct {
	Width      int              `yaml:"width"`
	Height     int              `yaml:"height"`
	Frames     int              `yaml:"frames"`
	Stereo     bool             `yaml:"stereo"`
	Input      string           `yaml:"input"`
	Exposure   float32          `yaml:"exposure"`
	Background [3]float32       `yaml:"background"`
	Bloom      bloom.Settings   `yaml:"bloom"`
	Volumes    []*volume.Volume `yaml:"volumes"`
	Lights     []Light          `yaml:"lights"`
}

func defaultScene() *Scene {
	return &Scene{
		Width:      640,
		Height:     360,
		Frames:     1,
		Exposure:   1,
		Background: [3]float32{0.02, 0.02, 0.05},
		Bloom:      bloom.Settings{Threshold: 1, Scatter: 0.7, Intensity: 1},
		Lights: []Light{
			{X: 0.25, Y: 0.5, Radius: 0.04, Color: [3]float32{6, 3, 1}},
			{X: 0.5, Y: 0.4, Radius: 0.02, Color: [3]float32{1, 4, 8}},
			{X: 0.75, Y: 0.6, Radius: 0.06, Color: [3]float32{0.8, 0.8, 0.8}},
		},
	}
}

// loadScene reads a scene, keeping defaults for missing keys.
func loadScene(r io.Reader) (*Scene, error) {
	s := defaultScene()
	if err := yaml.NewDecoder(r).Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("bloomdemo: parse scene: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scene) validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", errInvalidScene, s.Width, s.Height)
	case s.Frames <= 0:
		return fmt.Errorf("%w: %d frames", errInvalidScene, s.Frames)
	}
	for i, l := range s.Lights {
		if l.Radius <= 0 {
			return fmt.Errorf("%w: light %d radius %v", errInvalidScene, i, l.Radius)
		}
	}
	return nil
}

// stack builds the settings stack: scene bloom as defaults plus volumes.
func (s *Scene) stack() (*volume.Stack, error) {
	st := volume.NewStack()
	st.SetDefaults(s.Bloom)
	for _, v := range s.Volumes {
		if err := st.Add(v); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// renderingData describes the main camera for one frame.
func (s *Scene) renderingData() *postfx.RenderingData {
	desc := transient.NewDescriptor(s.Width, s.Height, gputypes.TextureFormatRGBA8Unorm)
	desc.Stereo = s.Stereo
	return &postfx.RenderingData{CameraData: postfx.CameraData{
		Camera: &postfx.Camera{
			Name:       "Main Camera",
			Type:       postfx.CameraTypeGame,
			IsMain:     true,
			ClearFlags: postfx.ClearColor,
			PixelRect:  cmdbuf.Rect{W: float32(s.Width), H: float32(s.Height)},
			View:       cmdbuf.Identity4(),
			Projection: cmdbuf.Identity4(),
		},
		TargetDescriptor:   desc,
		IsStereo:           s.Stereo,
		PostProcessEnabled: true,
	}}
}

// loadInput decodes the scene's input image, if any.
func (s *Scene) loadInput() (image.Image, error) {
	if s.Input == "" {
		return nil, nil
	}
	f, err := os.Open(s.Input)
	if err != nil {
		return nil, fmt.Errorf("bloomdemo: open input: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("bloomdemo: decode %s: %w", s.Input, err)
	}
	return img, nil
}

// paint draws the scene into tex: the input image scaled by exposure (or
// the background) plus the lights.
func (s *Scene) paint(tex *software.Texture, input image.Image) {
	if input != nil {
		tex.Load(input)
	} else {
		bg := s.Background
		tex.Fill([4]float32{bg[0], bg[1], bg[2], 1})
	}

	w, h := float32(tex.Width()), float32(tex.Height())
	aspect := w / h
	for y := 0; y < tex.Height(); y++ {
		v := (float32(y) + 0.5) / h
		for x := 0; x < tex.Width(); x++ {
			u := (float32(x) + 0.5) / w
			c := tex.At(x, y)
			if input != nil {
				c[0] *= s.Exposure
				c[1] *= s.Exposure
				c[2] *= s.Exposure
			}
			for _, l := range s.Lights {
				dx, dy := (u-l.X)*aspect, v-l.Y
				d := math32.Sqrt(dx*dx + dy*dy)
				// Solid disc with a one-radius falloff.
				f := 1 - math32.Min(math32.Max((d-l.Radius)/l.Radius, 0), 1)
				c[0] += l.Color[0] * f
				c[1] += l.Color[1] * f
				c[2] += l.Color[2] * f
			}
			tex.Set(x, y, c)
		}
	}
}

// scenePass paints the scene on the CPU and uploads it into the camera
// color attachment.
type scenePass struct {
	event  postfx.RenderPassEvent
	device frameDevice
	target cmdbuf.RenderTargetIdentifier
	scene  *Scene
	input  image.Image
	canvas *software.Texture
}

func (p *scenePass) Event() postfx.RenderPassEvent { return p.event }

func (p *scenePass) Configure(*cmdbuf.CommandBuffer, transient.Descriptor) error { return nil }

func (p *scenePass) Execute(postfx.RenderContext, *postfx.RenderingData) error {
	w, h := p.scene.Width, p.scene.Height
	if p.canvas == nil || p.canvas.Width() != w || p.canvas.Height() != h {
		p.canvas = software.NewTexture(w, h)
	}
	p.scene.paint(p.canvas, p.input)
	return p.device.WritePixels(p.target, w, h, p.canvas.Pixels())
}
