// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command bloomdemo renders an HDR scene through the forward renderer and
// the post-processing stack and writes a PNG. The playback backend is
// picked by name from the cmdbuf registry.
//
//	bloomdemo -scene scene.yaml -output bloom.png -v
//	bloomdemo -backend wgpu -output bloom.png
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // Vulkan HAL for the wgpu backend

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend/software"
	_ "github.com/gogpu/postfx/backend/wgpu" // registers "wgpu"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/renderer"
)

// frameDevice is what the demo needs from a playback backend beyond
// command buffer execution.
type frameDevice interface {
	cmdbuf.Backend
	postfx.RenderContext
	ResizeCamera(width, height int)
	WritePixels(target cmdbuf.RenderTargetIdentifier, width, height int, pix []float32) error
	ReadCamera() (image.Image, error)
	EndFrame() int
	Destroy()
}

// depthStencilSetter is implemented by backends that build depth-tested
// pipelines.
type depthStencilSetter interface {
	SetDepthStencil(ds *hal.DepthStencilState)
}

func main() {
	var (
		scenePath    = flag.String("scene", "", "YAML scene file (built-in scene if empty)")
		rendererPath = flag.String("renderer", "", "YAML renderer configuration")
		output       = flag.String("output", "bloom.png", "output file")
		backend      = flag.String("backend", software.Name, "playback backend: "+strings.Join(cmdbuf.Backends(), ", "))
		width        = flag.Int("width", 0, "override scene width")
		height       = flag.Int("height", 0, "override scene height")
		verbose      = flag.Bool("v", false, "log debug output to stderr")
	)
	flag.Parse()

	if *verbose {
		postfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	scene, err := readScene(*scenePath)
	if err != nil {
		log.Fatal(err)
	}
	if *width > 0 {
		scene.Width = *width
	}
	if *height > 0 {
		scene.Height = *height
	}
	if err := scene.validate(); err != nil {
		log.Fatal(err)
	}

	data, err := readRendererData(*rendererPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(*backend, scene, data, *output); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	log.Printf("Bloom saved to %s (%dx%d, %s)\n", *output, scene.Width, scene.Height, *backend)
}

func readScene(path string) (*Scene, error) {
	if path == "" {
		return defaultScene(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bloomdemo: open scene: %w", err)
	}
	defer f.Close()
	return loadScene(f)
}

func readRendererData(path string) (*renderer.Data, error) {
	if path == "" {
		return renderer.NewData(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bloomdemo: open renderer data: %w", err)
	}
	defer f.Close()
	return renderer.LoadData(f)
}

// openDevice creates the named backend with a camera of the given size.
func openDevice(name string, width, height int) (frameDevice, error) {
	b, err := cmdbuf.NewBackend(name)
	if err != nil {
		return nil, err
	}
	device, ok := b.(frameDevice)
	if !ok {
		if d, ok := b.(interface{ Destroy() }); ok {
			d.Destroy()
		}
		return nil, fmt.Errorf("bloomdemo: backend %q cannot upload or read back pixels", name)
	}
	device.ResizeCamera(width, height)
	return device, nil
}

// run renders every frame of scene on the named backend and writes the
// last one to output.
func run(backend string, scene *Scene, data *renderer.Data, output string) error {
	device, err := openDevice(backend, scene.Width, scene.Height)
	if err != nil {
		return err
	}
	defer device.Destroy()

	input, err := scene.loadInput()
	if err != nil {
		return err
	}
	stack, err := scene.stack()
	if err != nil {
		return err
	}

	r, err := renderer.New(data, nil, stack,
		renderer.WithOpaquePass(func(cfg renderer.DrawObjectsConfig) postfx.ScriptablePass {
			return &scenePass{
				event:  cfg.Event,
				device: device,
				target: cfg.Target,
				scene:  scene,
				input:  input,
			}
		}))
	if err != nil {
		return err
	}
	if ds, ok := device.(depthStencilSetter); ok {
		ds.SetDepthStencil(r.StencilState().DepthStencil(gputypes.TextureFormatDepth24PlusStencil8))
	}

	rd := scene.renderingData()
	for frame := 0; frame < scene.Frames; frame++ {
		if err := r.Setup(device, rd); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		if err := r.Execute(device, rd); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		device.EndFrame()
	}

	img, err := device.ReadCamera()
	if err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
