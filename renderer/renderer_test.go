package renderer

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/transient"
	"github.com/gogpu/postfx/volume"
)

// recordingContext keeps a copy of every submitted buffer.
type recordingContext struct {
	buffers []recorded
}

type recorded struct {
	name     string
	commands []cmdbuf.Command
}

func (c *recordingContext) ExecuteCommandBuffer(cb *cmdbuf.CommandBuffer) error {
	c.buffers = append(c.buffers, recorded{name: cb.Name(), commands: cb.Commands()})
	return nil
}

func (c *recordingContext) named(name string) []recorded {
	var out []recorded
	for _, b := range c.buffers {
		if b.name == name {
			out = append(out, b)
		}
	}
	return out
}

// logPass appends its name to a shared log when executed.
type logPass struct {
	name  string
	event postfx.RenderPassEvent
	log   *[]string
}

func (p *logPass) Event() postfx.RenderPassEvent { return p.event }

func (p *logPass) Configure(*cmdbuf.CommandBuffer, transient.Descriptor) error { return nil }

func (p *logPass) Execute(postfx.RenderContext, *postfx.RenderingData) error {
	*p.log = append(*p.log, p.name)
	return nil
}

func loggingOptions(log *[]string) []Option {
	return []Option{
		WithOpaquePass(func(cfg DrawObjectsConfig) postfx.ScriptablePass {
			return &logPass{name: "opaque", event: cfg.Event, log: log}
		}),
		WithTransparentPass(func(cfg DrawObjectsConfig) postfx.ScriptablePass {
			return &logPass{name: "transparent", event: cfg.Event, log: log}
		}),
		WithSkyboxPass(func(e postfx.RenderPassEvent) postfx.ScriptablePass {
			return &logPass{name: "skybox", event: e, log: log}
		}),
	}
}

func renderingData(w, h int) *postfx.RenderingData {
	return &postfx.RenderingData{CameraData: postfx.CameraData{
		Camera: &postfx.Camera{
			Name:       "Main",
			Type:       postfx.CameraTypeGame,
			IsMain:     true,
			ClearFlags: postfx.ClearColor,
			PixelRect:  cmdbuf.Rect{W: float32(w), H: float32(h)},
			View:       cmdbuf.Identity4(),
			Projection: cmdbuf.Identity4(),
		},
		TargetDescriptor:   transient.NewDescriptor(w, h, gputypes.TextureFormatRGBA8Unorm),
		PostProcessEnabled: true,
	}}
}

func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(NewData(), nil, volume.NewStack(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, nil, volume.NewStack()); !errors.Is(err, ErrNilData) {
		t.Errorf("New(nil) error = %v, want %v", err, ErrNilData)
	}
	d := NewData()
	d.SetUberMaterial("Nope")
	if _, err := New(d, material.StandardLibrary(), volume.NewStack()); !errors.Is(err, material.ErrUnknownMaterial) {
		t.Errorf("New() error = %v, want %v", err, material.ErrUnknownMaterial)
	}
}

func TestSetupQueue(t *testing.T) {
	tests := []struct {
		name      string
		clear     postfx.ClearFlags
		hasSkybox bool
		post      bool
		want      []postfx.RenderPassEvent
	}{
		{
			name: "color clear with post", clear: postfx.ClearColor, hasSkybox: true, post: true,
			want: []postfx.RenderPassEvent{postfx.BeforeRenderingOpaques, postfx.BeforeRenderingTransparents, postfx.BeforeRenderingPostProcessing},
		},
		{
			name: "skybox clear with skybox", clear: postfx.ClearSkybox, hasSkybox: true, post: true,
			want: []postfx.RenderPassEvent{postfx.BeforeRenderingOpaques, postfx.BeforeRenderingSkybox, postfx.BeforeRenderingTransparents, postfx.BeforeRenderingPostProcessing},
		},
		{
			name: "skybox clear without skybox", clear: postfx.ClearSkybox, post: false,
			want: []postfx.RenderPassEvent{postfx.BeforeRenderingOpaques, postfx.BeforeRenderingTransparents},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			rd := renderingData(64, 64)
			rd.CameraData.Camera.ClearFlags = tt.clear
			rd.CameraData.Camera.HasSkybox = tt.hasSkybox
			rd.CameraData.PostProcessEnabled = tt.post

			if err := r.Setup(&recordingContext{}, rd); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			got := r.Queue()
			if len(got) != len(tt.want) {
				t.Fatalf("Queue() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Queue()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSetupCreatesCameraColor(t *testing.T) {
	r := newTestRenderer(t)
	ctx := &recordingContext{}
	if err := r.Setup(ctx, renderingData(128, 64)); err != nil {
		t.Fatal(err)
	}
	created := ctx.named(createCameraTexturesTag)
	if len(created) != 1 || len(created[0].commands) != 1 {
		t.Fatalf("create buffers = %+v, want one GetTemporaryRT", created)
	}
	cmd, ok := created[0].commands[0].(cmdbuf.GetTemporaryRTCommand)
	if !ok {
		t.Fatalf("command = %T, want GetTemporaryRTCommand", created[0].commands[0])
	}
	if cmd.ID != shaderprop.Default().CameraColorTexture() {
		t.Errorf("ID = %v, want _CameraColorTexture", cmd.ID)
	}
	if cmd.Descriptor.DepthBits != depthStencilBits || cmd.Filter != transient.FilterBilinear {
		t.Errorf("descriptor = %s, filter = %s; want depth 32 bilinear", cmd.Descriptor, cmd.Filter)
	}
	if r.ColorTarget() != cmdbuf.Temporary(cmd.ID) || r.DepthTarget() != cmdbuf.CameraTarget {
		t.Errorf("targets = %s, %s", r.ColorTarget(), r.DepthTarget())
	}
}

func TestBackBufferSamples(t *testing.T) {
	target := cmdbuf.Temporary(shaderprop.PropertyToID("_RendererTestTarget"))
	tests := []struct {
		name   string
		mutate func(cd *postfx.CameraData)
		want   int
	}{
		{"main game camera", func(*postfx.CameraData) {}, 1},
		{"not main", func(cd *postfx.CameraData) { cd.Camera.IsMain = false }, 0},
		{"scene view", func(cd *postfx.CameraData) { cd.Camera.Type = postfx.CameraTypeSceneView }, 0},
		{"render texture", func(cd *postfx.CameraData) { cd.TargetTexture = &target }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			rd := renderingData(32, 32)
			tt.mutate(&rd.CameraData)
			if err := r.Setup(&recordingContext{}, rd); err != nil {
				t.Fatal(err)
			}
			if got := r.BackBufferSamples(); got != tt.want {
				t.Errorf("BackBufferSamples() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExecuteOrderAndFinish(t *testing.T) {
	var log []string
	r := newTestRenderer(t, loggingOptions(&log)...)
	ctx := &recordingContext{}
	rd := renderingData(64, 64)
	rd.CameraData.PostProcessEnabled = false
	rd.CameraData.Camera.ClearFlags = postfx.ClearSkybox
	rd.CameraData.Camera.HasSkybox = true

	if err := r.Setup(ctx, rd); err != nil {
		t.Fatal(err)
	}
	// Host pass enqueued out of order runs by event.
	r.EnqueuePass(&logPass{name: "early", event: postfx.BeforeRendering, log: &log})
	r.EnqueuePass(&logPass{name: "late-opaque", event: postfx.BeforeRenderingOpaques, log: &log})
	if err := r.Execute(ctx, rd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"early", "opaque", "late-opaque", "skybox", "transparent"}
	if len(log) != len(want) {
		t.Fatalf("executed %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("executed[%d] = %s, want %s", i, log[i], want[i])
		}
	}

	finish := ctx.named(finishTag)
	if len(finish) != 1 {
		t.Fatalf("finish buffers = %d, want 1", len(finish))
	}
	rel, ok := finish[0].commands[len(finish[0].commands)-1].(cmdbuf.ReleaseTemporaryRTCommand)
	if !ok || rel.ID != shaderprop.Default().CameraColorTexture() {
		t.Errorf("finish does not release the camera color: %+v", finish[0].commands)
	}
	if r.ColorTarget() != cmdbuf.CameraTarget {
		t.Errorf("ColorTarget() = %s after finish, want camera target", r.ColorTarget())
	}
	if len(r.Queue()) != 0 {
		t.Errorf("queue not emptied: %v", r.Queue())
	}
}

func TestClearActions(t *testing.T) {
	tests := []struct {
		clear     postfx.ClearFlags
		colorLoad cmdbuf.LoadAction
		depthLoad cmdbuf.LoadAction
	}{
		{postfx.ClearSkybox, cmdbuf.LoadActionClear, cmdbuf.LoadActionClear},
		{postfx.ClearColor, cmdbuf.LoadActionClear, cmdbuf.LoadActionClear},
		{postfx.ClearDepth, cmdbuf.LoadActionLoad, cmdbuf.LoadActionClear},
		{postfx.ClearNothing, cmdbuf.LoadActionLoad, cmdbuf.LoadActionLoad},
	}
	for _, tt := range tests {
		r := newTestRenderer(t)
		ctx := &recordingContext{}
		rd := renderingData(16, 16)
		rd.CameraData.PostProcessEnabled = false
		rd.CameraData.Camera.ClearFlags = tt.clear
		if err := r.Setup(ctx, rd); err != nil {
			t.Fatal(err)
		}
		if err := r.Execute(ctx, rd); err != nil {
			t.Fatal(err)
		}
		clears := ctx.named(clearTag)
		if len(clears) != 1 {
			t.Fatalf("clear buffers = %d, want 1", len(clears))
		}
		cmd := clears[0].commands[0].(cmdbuf.SetRenderTargetCommand)
		if cmd.Actions.ColorLoad != tt.colorLoad || cmd.Actions.DepthLoad != tt.depthLoad {
			t.Errorf("clear flags %d: actions = %+v", tt.clear, cmd.Actions)
		}
	}
}

func TestSetupExecuteErrors(t *testing.T) {
	r := newTestRenderer(t)
	ctx := &recordingContext{}

	if err := r.Execute(ctx, renderingData(8, 8)); !errors.Is(err, postfx.ErrNotSetup) {
		t.Errorf("Execute before Setup error = %v, want %v", err, postfx.ErrNotSetup)
	}
	if err := r.Setup(nil, renderingData(8, 8)); !errors.Is(err, postfx.ErrNilContext) {
		t.Errorf("Setup(nil ctx) error = %v, want %v", err, postfx.ErrNilContext)
	}
	if err := r.Setup(ctx, &postfx.RenderingData{}); !errors.Is(err, postfx.ErrMissingCamera) {
		t.Errorf("Setup(no camera) error = %v, want %v", err, postfx.ErrMissingCamera)
	}
	if err := r.Setup(ctx, renderingData(0, 8)); !errors.Is(err, transient.ErrInvalidDescriptor) {
		t.Errorf("Setup(0 width) error = %v, want %v", err, transient.ErrInvalidDescriptor)
	}
	if len(ctx.buffers) != 0 {
		t.Errorf("failed setups submitted %d buffers", len(ctx.buffers))
	}
}

func TestDrawPassConfig(t *testing.T) {
	d := NewData()
	d.SetOpaqueLayerMask(0b11)
	d.SetTransparentLayerMask(0b100)
	d.SetDefaultStencilState(StencilStateData{Override: true, Reference: 7, Compare: CompareEqual})

	var configs []DrawObjectsConfig
	capture := func(cfg DrawObjectsConfig) postfx.ScriptablePass {
		configs = append(configs, cfg)
		return emptyDrawPass(cfg)
	}
	if _, err := New(d, nil, volume.NewStack(), WithOpaquePass(capture), WithTransparentPass(capture)); err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 {
		t.Fatalf("factories called %d times, want 2", len(configs))
	}
	opaque, transparent := configs[0], configs[1]
	if !opaque.Opaque || opaque.LayerMask != 0b11 || opaque.Event != postfx.BeforeRenderingOpaques {
		t.Errorf("opaque config = %+v", opaque)
	}
	if transparent.Opaque || transparent.LayerMask != 0b100 || transparent.Event != postfx.BeforeRenderingTransparents {
		t.Errorf("transparent config = %+v", transparent)
	}
	for _, cfg := range configs {
		if !cfg.Stencil.Enabled || cfg.Stencil.Compare != CompareEqual || cfg.Reference != 7 {
			t.Errorf("%s stencil = %+v ref %d", cfg.Name, cfg.Stencil, cfg.Reference)
		}
		if cfg.Target != cmdbuf.Temporary(shaderprop.Default().CameraColorTexture()) {
			t.Errorf("%s target = %s", cfg.Name, cfg.Target)
		}
	}
}

// fillPass writes a constant color into its target on the software device.
type fillPass struct {
	event  postfx.RenderPassEvent
	dev    *software.Device
	target cmdbuf.RenderTargetIdentifier
	value  float32
}

func (p *fillPass) Event() postfx.RenderPassEvent { return p.event }

func (p *fillPass) Configure(*cmdbuf.CommandBuffer, transient.Descriptor) error { return nil }

func (p *fillPass) Execute(postfx.RenderContext, *postfx.RenderingData) error {
	tex, err := p.dev.Texture(p.target)
	if err != nil {
		return err
	}
	tex.Fill([4]float32{p.value, p.value, p.value, 1})
	return nil
}

func TestRenderSoftwareEndToEnd(t *testing.T) {
	const w, h = 64, 48
	dev := software.NewDevice(software.WithCameraSize(w, h))
	defer dev.Destroy()

	stack := volume.NewStack()
	if err := stack.Add(&volume.Volume{
		Name:   "global",
		Weight: 1,
		Bloom: volume.BloomOverrides{
			Threshold: volume.Override(1),
			Scatter:   volume.Override(0.5),
			Intensity: volume.Override(1),
		},
	}); err != nil {
		t.Fatal(err)
	}

	r, err := New(NewData(), nil, stack, WithOpaquePass(func(cfg DrawObjectsConfig) postfx.ScriptablePass {
		return &fillPass{event: cfg.Event, dev: dev, target: cfg.Target, value: 2}
	}))
	if err != nil {
		t.Fatal(err)
	}

	rd := renderingData(w, h)
	for frame := 0; frame < 2; frame++ {
		if err := r.Setup(dev, rd); err != nil {
			t.Fatalf("frame %d: Setup() error = %v", frame, err)
		}
		if err := r.Execute(dev, rd); err != nil {
			t.Fatalf("frame %d: Execute() error = %v", frame, err)
		}
		dev.EndFrame()
	}

	// A uniform 2.0 scene above threshold 1 blooms to 1.0.
	got := dev.Camera().At(w/2, h/2)
	if got[0] < 2.999 || got[0] > 3.001 {
		t.Errorf("camera center = %v, want 3", got[0])
	}
	stats := dev.Pool().Stats()
	if stats.Live != 0 {
		t.Errorf("live targets after frame = %d, want 0", stats.Live)
	}
	if stats.Reused == 0 {
		t.Error("second frame reused no targets")
	}
	if r.PostProcessPass().HistoryReset() {
		t.Error("history still reset after successful frames")
	}
	if open := dev.OpenSamples(); len(open) != 0 {
		t.Errorf("open samples = %v", open)
	}
}

func TestRenderAllocationFailureReleasesCameraColor(t *testing.T) {
	dev := software.NewDevice(software.WithCameraSize(64, 64), software.WithTextureLimit(2))
	defer dev.Destroy()

	r := newTestRenderer(t)
	rd := renderingData(64, 64)
	if err := r.Setup(dev, rd); err != nil {
		t.Fatal(err)
	}
	err := r.Execute(dev, rd)
	if !errors.Is(err, transient.ErrAllocationFailed) {
		t.Fatalf("Execute() error = %v, want %v", err, transient.ErrAllocationFailed)
	}
	if _, ok := dev.Pool().Lookup(shaderprop.Default().CameraColorTexture()); ok {
		t.Error("camera color still allocated after failed frame")
	}
	if live := dev.Pool().Stats().Live; live != 0 {
		t.Errorf("live targets after failed frame = %d, want 0", live)
	}
	if open := dev.OpenSamples(); len(open) != 0 {
		t.Errorf("open samples after failed frame = %v, want none", open)
	}
	if !r.PostProcessPass().HistoryReset() {
		t.Error("failed frame cleared the history reset flag")
	}
}
