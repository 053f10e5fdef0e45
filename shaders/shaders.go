// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shaders embeds the WGSL programs used by the post-processing
// passes and compiles them to SPIR-V with naga.
//
// Each [Program] has one vertex entry point and one fragment entry point per
// pass. Pass indices are the numbers recorded in blit and draw commands.
package shaders

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed bloom.wgsl
var bloomWGSL string

//go:embed uber.wgsl
var uberWGSL string

// Bloom program pass indices.
const (
	PassPrefilter  = 0 // threshold into the first pyramid level
	PassDownsample = 1 // 2x downsample + horizontal blur
	PassBlur       = 2 // vertical blur
	PassUpsample   = 3 // combine with the coarser level
)

// Program names.
const (
	BloomName = "PostFX/Bloom"
	UberName  = "PostFX/UberPost"
)

var (
	// ErrInvalidPass is returned for pass indices outside a program.
	ErrInvalidPass = errors.New("shaders: invalid pass index")

	// ErrEmptySource is returned when a program has no WGSL source.
	ErrEmptySource = errors.New("shaders: empty source")

	// ErrCompile wraps naga failures reported by Program.SPIRV.
	ErrCompile = errors.New("shaders: compile failed")
)

// Program is a WGSL module with a shared vertex stage and one fragment
// entry point per pass. SPIR-V is compiled on first use and cached.
type Program struct {
	Name        string
	Source      string
	VertexEntry string
	Passes      []string

	once  sync.Once
	spirv []uint32
	err   error
}

// PassCount returns the number of passes.
func (p *Program) PassCount() int { return len(p.Passes) }

// FragmentEntry returns the fragment entry point of pass.
func (p *Program) FragmentEntry(pass int) (string, error) {
	if pass < 0 || pass >= len(p.Passes) {
		return "", fmt.Errorf("%w: %s has %d passes, got %d", ErrInvalidPass, p.Name, len(p.Passes), pass)
	}
	return p.Passes[pass], nil
}

// SPIRV returns the compiled module.
func (p *Program) SPIRV() ([]uint32, error) {
	p.once.Do(func() {
		p.spirv, p.err = Compile(p.Source)
		if p.err != nil {
			p.err = fmt.Errorf("%w: %s: %w", ErrCompile, p.Name, p.err)
		}
	})
	return p.spirv, p.err
}

var (
	bloomProgram = &Program{
		Name:        BloomName,
		Source:      bloomWGSL,
		VertexEntry: "vs_main",
		Passes:      []string{"fs_prefilter", "fs_downsample", "fs_blur", "fs_upsample"},
	}
	uberProgram = &Program{
		Name:        UberName,
		Source:      uberWGSL,
		VertexEntry: "vs_main",
		Passes:      []string{"fs_main"},
	}
)

// Bloom returns the four-pass bloom program.
func Bloom() *Program { return bloomProgram }

// Uber returns the single-pass composite program.
func Uber() *Program { return uberProgram }

// Compile compiles WGSL source to little-endian SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	if wgsl == "" {
		return nil, ErrEmptySource
	}
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// CreateModule compiles p and creates a shader module on device.
func CreateModule(device hal.Device, p *Program) (hal.ShaderModule, error) {
	code, err := p.SPIRV()
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: p.Name,
		Source: hal.ShaderSource{
			SPIRV: code,
		},
	})
}
