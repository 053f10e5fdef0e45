// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/cmdbuf"
	"github.com/gogpu/postfx/shaders"
	"github.com/gogpu/postfx/transient"
)

// Uniform block sizes of the two programs.
const (
	bloomUniformSize = 32 // params vec4, texel_size vec4
	uberUniformSize  = 80 // fullscreen_proj mat4x4, bloom vec4
)

// depthFormat is the depth-stencil format of every transient target.
const depthFormat = gputypes.TextureFormatDepth24PlusStencil8

// pipelineKey identifies one render pipeline variant.
type pipelineKey struct {
	program string
	pass    int
	format  gputypes.TextureFormat
	samples int
	depth   bool
}

// pipelines owns the shared layouts, one shader module per program and
// one render pipeline per program pass and target shape.
//
// Both programs bind at group 0: a uniform block, a sampler, the main
// texture and a secondary texture (the low mip or the bloom result).
type pipelines struct {
	device       hal.Device
	groupLayout  hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	modules      map[string]hal.ShaderModule
	cache        map[pipelineKey]hal.RenderPipeline
	depthStencil hal.DepthStencilState
}

func newPipelines(device hal.Device, depthStencil *hal.DepthStencilState) (*pipelines, error) {
	groupLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "postfx_bind_group_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "postfx_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{groupLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(groupLayout)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	p := &pipelines{
		device:      device,
		groupLayout: groupLayout,
		pipeLayout:  pipeLayout,
		modules:     make(map[string]hal.ShaderModule),
		cache:       make(map[pipelineKey]hal.RenderPipeline),
	}
	p.setDepthStencil(depthStencil)
	return p, nil
}

// get returns the pipeline for pass of prog rendering into targets shaped
// like desc, creating it on first use.
func (p *pipelines) get(prog *shaders.Program, pass int, desc transient.Descriptor) (hal.RenderPipeline, error) {
	key := pipelineKey{
		program: prog.Name,
		pass:    pass,
		format:  desc.Format,
		samples: desc.SampleCount,
		depth:   desc.DepthBits > 0,
	}
	if pl, ok := p.cache[key]; ok {
		return pl, nil
	}

	entry, err := prog.FragmentEntry(pass)
	if err != nil {
		return nil, err
	}
	module, err := p.module(prog)
	if err != nil {
		return nil, err
	}

	pd := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s_%s", prog.Name, entry),
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: prog.VertexEntry,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: entry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    desc.Format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			//nolint:gosec // G115: sample count is validated positive
			Count: uint32(desc.SampleCount),
			Mask:  0xFFFFFFFF,
		},
	}
	if key.depth {
		ds := p.depthStencil
		pd.DepthStencil = &ds
	}

	pl, err := p.device.CreateRenderPipeline(pd)
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", pd.Label, err)
	}
	p.cache[key] = pl
	return pl, nil
}

// module returns the shader module of prog, compiling it on first use.
func (p *pipelines) module(prog *shaders.Program) (hal.ShaderModule, error) {
	if m, ok := p.modules[prog.Name]; ok {
		return m, nil
	}
	m, err := shaders.CreateModule(p.device, prog)
	if err != nil {
		return nil, err
	}
	p.modules[prog.Name] = m
	return m, nil
}

// setDepthStencil replaces the state of pipelines that render into targets
// with a depth attachment. Nil restores Always/Keep. Cached depth variants
// are dropped.
func (p *pipelines) setDepthStencil(ds *hal.DepthStencilState) {
	if ds == nil {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		ds = &hal.DepthStencilState{
			DepthCompare: gputypes.CompareFunctionAlways,
			StencilFront: keep,
			StencilBack:  keep,
		}
	}
	p.depthStencil = *ds
	p.depthStencil.Format = depthFormat

	for key, pl := range p.cache {
		if key.depth {
			p.device.DestroyRenderPipeline(pl)
			delete(p.cache, key)
		}
	}
}

// len returns the number of cached pipelines.
func (p *pipelines) len() int { return len(p.cache) }

func (p *pipelines) destroy() {
	for key, pl := range p.cache {
		p.device.DestroyRenderPipeline(pl)
		delete(p.cache, key)
	}
	for name, m := range p.modules {
		p.device.DestroyShaderModule(m)
		delete(p.modules, name)
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.groupLayout != nil {
		p.device.DestroyBindGroupLayout(p.groupLayout)
		p.groupLayout = nil
	}
}

// bloomUniforms packs the bloom block: the material parameters followed by
// the texel size of the main texture.
func bloomUniforms(params [4]float32, main transient.Descriptor) []byte {
	w, h := float32(main.Width), float32(main.Height)
	buf := make([]byte, bloomUniformSize)
	putFloats(buf, params[:]...)
	putFloats(buf[16:], 1/w, 1/h, w, h)
	return buf
}

// uberUniforms packs the composite block. Only bloom.x, the intensity, is
// read by the shader.
func uberUniforms(proj cmdbuf.Matrix4, intensity float32) []byte {
	buf := make([]byte, uberUniformSize)
	putFloats(buf, proj[:]...)
	putFloats(buf[64:], intensity, 0, 0, 0)
	return buf
}

func putFloats(buf []byte, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
