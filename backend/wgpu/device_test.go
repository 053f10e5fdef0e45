package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/bloom"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
	"github.com/gogpu/postfx/transient"
	"github.com/gogpu/postfx/volume"
)

var (
	sceneID  = shaderprop.PropertyToID("_WGPUTestScene")
	targetID = shaderprop.PropertyToID("_WGPUTestTarget")
)

// newTestDevice creates a device on the noop HAL backend.
func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	d, err := NewDevice(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		t.Fatalf("NewDevice() error = %v", err)
	}
	t.Cleanup(func() {
		d.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return d
}

// skipKnownNagaLimits skips the test when naga cannot compile the programs.
func skipKnownNagaLimits(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, shaders.ErrCompile) {
		t.Skipf("Skipping: naga limitation: %v", err)
	}
}

func hdrDesc(w, h int) transient.Descriptor {
	return transient.NewDescriptor(w, h, gputypes.TextureFormatRGBA16Float)
}

// allocateScene allocates the HDR scene target.
func allocateScene(t *testing.T, d *Device, w, h int) {
	t.Helper()
	cb := cmdbuf.New("scene")
	cb.GetTemporaryRT(sceneID, hdrDesc(w, h), transient.FilterBilinear)
	if err := d.ExecuteCommandBuffer(cb); err != nil {
		t.Fatalf("allocate scene: %v", err)
	}
}

// executePass runs the post-processing pass from the scene into the camera.
func executePass(d *Device, w, h int) error {
	stack := volume.NewStack()
	stack.SetDefaults(bloom.Settings{Threshold: 1, Scatter: 0.5, Intensity: 1})
	p := postfx.NewPass(stack, material.NewUber(), material.NewBloom())
	p.Setup(hdrDesc(w, h), cmdbuf.Temporary(sceneID), cmdbuf.CameraTarget)
	rd := &postfx.RenderingData{CameraData: postfx.CameraData{
		Camera: &postfx.Camera{
			Name:       "Main Camera",
			IsMain:     true,
			PixelRect:  cmdbuf.Rect{W: float32(w), H: float32(h)},
			View:       cmdbuf.Identity4(),
			Projection: cmdbuf.Identity4(),
		},
		TargetDescriptor:   transient.NewDescriptor(w, h, gputypes.TextureFormatRGBA8Unorm),
		PostProcessEnabled: true,
	}}
	return p.Execute(d, rd)
}

func TestOpenRegistered(t *testing.T) {
	if !cmdbuf.IsRegistered(Name) {
		t.Fatalf("backend %q not registered", Name)
	}
	// Only the noop HAL backend is linked into the test binary.
	b, err := cmdbuf.NewBackend(Name)
	if err != nil {
		t.Fatalf("NewBackend(%q) error = %v", Name, err)
	}
	d, ok := b.(*Device)
	if !ok {
		t.Fatalf("NewBackend(%q) = %T, want *Device", Name, b)
	}
	d.Destroy()
	d.Destroy()
}

func TestOpenUnregisteredBackend(t *testing.T) {
	_, err := Open(WithBackend(gputypes.BackendVulkan))
	if !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Open(Vulkan) error = %v, want %v", err, ErrNoAdapter)
	}
}

func TestNewDeviceNil(t *testing.T) {
	if _, err := NewDevice(nil, nil); !errors.Is(err, ErrNilQueue) {
		t.Errorf("NewDevice(nil, nil) error = %v, want %v", err, ErrNilQueue)
	}
}

func TestExecutePass(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		draws, copies int
		pipelines     int
	}{
		// 256x128: six levels, four downsample steps and four upsamples.
		{"full pyramid", 256, 128, 1 + 4*2 + 4 + 1, 0, 4 + 1},
		// 8x8: one level, so the bloom result is a copy of the prefilter.
		{"single level", 8, 8, 1 + 1, 1, 1 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, WithCameraSize(tt.width, tt.height))
			allocateScene(t, d, tt.width, tt.height)

			err := executePass(d, tt.width, tt.height)
			skipKnownNagaLimits(t, err)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			st := d.Stats()
			if st.Draws != tt.draws || st.Copies != tt.copies {
				t.Errorf("draws, copies = %d, %d; want %d, %d", st.Draws, st.Copies, tt.draws, tt.copies)
			}
			if st.Passes != st.Draws {
				t.Errorf("passes = %d, want one per draw (%d)", st.Passes, st.Draws)
			}
			if got := d.PipelineCount(); got != tt.pipelines {
				t.Errorf("PipelineCount() = %d, want %d", got, tt.pipelines)
			}
			if ps := d.Pool().Stats(); ps.Live != 1 {
				t.Errorf("pool live = %d, want only the scene", ps.Live)
			}
			if s := d.OpenSamples(); len(s) != 0 {
				t.Errorf("open samples = %v", s)
			}

			// The composite binds the camera DiscardAll and draws into it.
			last := d.LastPass()
			if last == nil || len(last.ColorAttachments) != 1 {
				t.Fatalf("LastPass() = %+v", last)
			}
			ca := last.ColorAttachments[0]
			if ca.LoadOp != gputypes.LoadOpClear || ca.StoreOp != gputypes.StoreOpStore {
				t.Errorf("composite ops = %v/%v, want Clear/Store", ca.LoadOp, ca.StoreOp)
			}
			if last.DepthStencilAttachment != nil {
				t.Error("camera pass has a depth attachment")
			}

			// A second frame reuses every pipeline.
			if err := executePass(d, tt.width, tt.height); err != nil {
				t.Fatalf("second Execute() error = %v", err)
			}
			if got := d.PipelineCount(); got != tt.pipelines {
				t.Errorf("PipelineCount() after second frame = %d, want %d", got, tt.pipelines)
			}
		})
	}
}

func TestAttachmentActions(t *testing.T) {
	clearColor := cmdbuf.LoadStore()
	clearColor.ColorLoad = cmdbuf.LoadActionClear
	clearColor.DepthStore = cmdbuf.StoreActionDontCare

	tests := []struct {
		name       string
		actions    cmdbuf.AttachmentActions
		load       gputypes.LoadOp
		depthLoad  gputypes.LoadOp
		depthStore gputypes.StoreOp
	}{
		{"load store", cmdbuf.LoadStore(), gputypes.LoadOpLoad, gputypes.LoadOpLoad, gputypes.StoreOpStore},
		{"discard all", cmdbuf.DiscardAll(), gputypes.LoadOpClear, gputypes.LoadOpClear, gputypes.StoreOpDiscard},
		{"clear color", clearColor, gputypes.LoadOpClear, gputypes.LoadOpLoad, gputypes.StoreOpDiscard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			allocateScene(t, d, 16, 16)

			desc := hdrDesc(16, 16)
			desc.DepthBits = 24
			mat := material.NewBloom()
			cb := cmdbuf.New("actions")
			cb.GetTemporaryRT(targetID, desc, transient.FilterBilinear)
			cb.SetRenderTarget(cmdbuf.Temporary(targetID), tt.actions)
			cb.Blit(cmdbuf.Temporary(sceneID), cmdbuf.CurrentActive, mat, shaders.PassPrefilter)
			err := d.ExecuteCommandBuffer(cb)
			skipKnownNagaLimits(t, err)
			if err != nil {
				t.Fatalf("ExecuteCommandBuffer() error = %v", err)
			}

			first := d.LastPass()
			ca, ds := first.ColorAttachments[0], first.DepthStencilAttachment
			if ca.LoadOp != tt.load || ca.StoreOp != gputypes.StoreOpStore {
				t.Errorf("color ops = %v/%v, want %v/Store", ca.LoadOp, ca.StoreOp, tt.load)
			}
			if ds == nil {
				t.Fatal("depth target rendered without a depth attachment")
			}
			if ds.DepthLoadOp != tt.depthLoad || ds.DepthStoreOp != tt.depthStore {
				t.Errorf("depth ops = %v/%v, want %v/%v", ds.DepthLoadOp, ds.DepthStoreOp, tt.depthLoad, tt.depthStore)
			}

			// Later passes on the same binding keep what the first one drew.
			cb.Clear()
			cb.Blit(cmdbuf.Temporary(sceneID), cmdbuf.CurrentActive, mat, shaders.PassPrefilter)
			if err := d.ExecuteCommandBuffer(cb); err != nil {
				t.Fatal(err)
			}
			second := d.LastPass()
			if second.ColorAttachments[0].LoadOp != gputypes.LoadOpLoad || second.DepthStencilAttachment.DepthLoadOp != gputypes.LoadOpLoad {
				t.Errorf("second pass loads = %v/%v, want Load/Load",
					second.ColorAttachments[0].LoadOp, second.DepthStencilAttachment.DepthLoadOp)
			}
		})
	}
}

func TestClearWithoutDraw(t *testing.T) {
	d := newTestDevice(t, WithCameraSize(8, 8))
	actions := cmdbuf.LoadStore()
	actions.ColorLoad = cmdbuf.LoadActionClear

	cb := cmdbuf.New("clear")
	cb.SetRenderTarget(cmdbuf.CameraTarget, actions)
	if err := d.ExecuteCommandBuffer(cb); err != nil {
		t.Fatalf("ExecuteCommandBuffer() error = %v", err)
	}
	st := d.Stats()
	if st.Clears != 1 || st.Passes != 1 || st.Draws != 0 {
		t.Errorf("stats = %+v, want one clear-only pass", st)
	}
	ca := d.LastPass().ColorAttachments[0]
	if ca.LoadOp != gputypes.LoadOpClear || ca.StoreOp != gputypes.StoreOpStore {
		t.Errorf("clear ops = %v/%v, want Clear/Store", ca.LoadOp, ca.StoreOp)
	}

	// A bind that loads owes nothing.
	cb.Clear()
	cb.SetRenderTarget(cmdbuf.CameraTarget, cmdbuf.LoadStore())
	if err := d.ExecuteCommandBuffer(cb); err != nil {
		t.Fatal(err)
	}
	if got := d.Stats().Passes; got != 1 {
		t.Errorf("passes after load bind = %d, want 1", got)
	}
}

func TestDepthStencilPipelines(t *testing.T) {
	d := newTestDevice(t)
	allocateScene(t, d, 16, 16)

	desc := hdrDesc(16, 16)
	desc.DepthBits = 24
	cb := cmdbuf.New("depth")
	cb.GetTemporaryRT(targetID, desc, transient.FilterBilinear)
	cb.BlitDiscard(cmdbuf.Temporary(sceneID), cmdbuf.Temporary(targetID), material.NewBloom(), shaders.PassPrefilter)
	draw := func() {
		t.Helper()
		err := d.ExecuteCommandBuffer(cb)
		skipKnownNagaLimits(t, err)
		if err != nil {
			t.Fatalf("ExecuteCommandBuffer() error = %v", err)
		}
	}

	draw()
	if got := d.PipelineCount(); got != 1 {
		t.Fatalf("PipelineCount() = %d, want 1", got)
	}
	d.SetDepthStencil(&hal.DepthStencilState{
		DepthCompare: gputypes.CompareFunctionLessEqual,
		StencilFront: hal.StencilFaceState{Compare: gputypes.CompareFunctionEqual},
		StencilBack:  hal.StencilFaceState{Compare: gputypes.CompareFunctionEqual},
	})
	if got := d.PipelineCount(); got != 0 {
		t.Errorf("PipelineCount() after SetDepthStencil = %d, want 0", got)
	}
	if got := d.pipelines.depthStencil.Format; got != depthFormat {
		t.Errorf("depth format = %v, want %v", got, depthFormat)
	}
	draw()
	if got := d.PipelineCount(); got != 1 {
		t.Errorf("PipelineCount() after redraw = %d, want 1", got)
	}
}

func TestRecoversAfterFailedFrame(t *testing.T) {
	d := newTestDevice(t, WithCameraSize(64, 64))
	allocateScene(t, d, 64, 64)
	missing := shaderprop.PropertyToID("_WGPUTestMissing")

	cb := cmdbuf.New("broken")
	cb.BeginSample("frame")
	cb.GetTemporaryRT(targetID, hdrDesc(32, 32), transient.FilterBilinear)
	cb.BlitDiscard(cmdbuf.Temporary(missing), cmdbuf.Temporary(targetID), material.NewBloom(), shaders.PassPrefilter)
	cb.EndSample("frame")

	err := d.ExecuteCommandBuffer(cb)
	if !errors.Is(err, ErrUnboundTexture) {
		t.Fatalf("ExecuteCommandBuffer() error = %v, want %v", err, ErrUnboundTexture)
	}
	if s := d.OpenSamples(); len(s) != 0 {
		t.Errorf("open samples after failure = %v", s)
	}
	if live := d.Pool().Stats().Live; live != 1 {
		t.Errorf("pool live after failure = %d, want only the scene", live)
	}

	for frame := 0; frame < 2; frame++ {
		err := executePass(d, 64, 64)
		skipKnownNagaLimits(t, err)
		if err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		d.EndFrame()
	}
	if live := d.Pool().Stats().Live; live != 1 {
		t.Errorf("pool live = %d, want only the scene", live)
	}
}

func TestPlaybackErrors(t *testing.T) {
	tests := []struct {
		name   string
		record func(cb *cmdbuf.CommandBuffer)
		want   error
	}{
		{
			name: "draw without target",
			record: func(cb *cmdbuf.CommandBuffer) {
				cb.DrawMesh(material.MeshFullscreen, cmdbuf.Identity4(), material.NewUber(), 0)
			},
			want: ErrNoRenderTarget,
		},
		{
			name: "stereo target",
			record: func(cb *cmdbuf.CommandBuffer) {
				desc := hdrDesc(8, 8)
				desc.Stereo = true
				cb.GetTemporaryRT(targetID, desc, transient.FilterBilinear)
			},
			want: ErrUnsupported,
		},
		{
			name: "copy size mismatch",
			record: func(cb *cmdbuf.CommandBuffer) {
				cb.GetTemporaryRT(targetID, hdrDesc(4, 4), transient.FilterBilinear)
				cb.Blit(cmdbuf.Temporary(sceneID), cmdbuf.Temporary(targetID), nil, 0)
			},
			want: ErrUnsupported,
		},
		{
			name: "feedback loop",
			record: func(cb *cmdbuf.CommandBuffer) {
				cb.SetRenderTarget(cmdbuf.Temporary(sceneID), cmdbuf.LoadStore())
				cb.Blit(cmdbuf.Temporary(sceneID), cmdbuf.CurrentActive, material.NewBloom(), shaders.PassBlur)
			},
			want: ErrUnsupported,
		},
		{
			name: "mismatched sample",
			record: func(cb *cmdbuf.CommandBuffer) {
				cb.BeginSample("a")
				cb.EndSample("b")
			},
			want: ErrSampleMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			allocateScene(t, d, 8, 8)
			cb := cmdbuf.New(tt.name)
			tt.record(cb)
			if err := d.ExecuteCommandBuffer(cb); !errors.Is(err, tt.want) {
				t.Errorf("ExecuteCommandBuffer() error = %v, want %v", err, tt.want)
			}
			if live := d.Pool().Stats().Live; live != 1 {
				t.Errorf("pool live = %d, want only the scene", live)
			}
		})
	}
}

func TestResizeCamera(t *testing.T) {
	d := newTestDevice(t, WithCameraSize(4, 4))
	if err := d.WritePixels(cmdbuf.CameraTarget, 4, 4, make([]float32, 4*4*4)); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	live := d.LiveTextures()

	d.ResizeCamera(8, 2)
	if got := d.LiveTextures(); got != live-1 {
		t.Errorf("LiveTextures() after resize = %d, want %d", got, live-1)
	}
	if desc := d.CameraDescriptor(); desc.Width != 8 || desc.Height != 2 {
		t.Errorf("camera = %s, want 8x2", desc)
	}
	img, err := d.ReadCamera()
	if err != nil {
		t.Fatalf("ReadCamera() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 2 {
		t.Errorf("ReadCamera() bounds = %v, want 8x2", b)
	}
}

func TestWritePixels(t *testing.T) {
	tests := []struct {
		name    string
		format  gputypes.TextureFormat
		w, h    int
		wantErr error
	}{
		{"hdr", gputypes.TextureFormatRGBA16Float, 4, 4, nil},
		{"float", gputypes.TextureFormatRGBA32Float, 4, 4, nil},
		{"bgra", gputypes.TextureFormatBGRA8Unorm, 4, 4, nil},
		{"size mismatch", gputypes.TextureFormatRGBA16Float, 2, 4, ErrUnsupported},
		{"packed float", gputypes.TextureFormatRG11B10Ufloat, 4, 4, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			cb := cmdbuf.New("alloc")
			cb.GetTemporaryRT(targetID, transient.NewDescriptor(4, 4, tt.format), transient.FilterPoint)
			if err := d.ExecuteCommandBuffer(cb); err != nil {
				t.Fatal(err)
			}
			err := d.WritePixels(cmdbuf.Temporary(targetID), tt.w, tt.h, make([]float32, tt.w*tt.h*4))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("WritePixels() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadCameraFormat(t *testing.T) {
	d := newTestDevice(t, WithCameraFormat(gputypes.TextureFormatRGBA16Float))
	if _, err := d.ReadCamera(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ReadCamera() error = %v, want %v", err, ErrUnsupported)
	}
}
