// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package material binds per-material uniform values to a shader program.
//
// A [Material] stores float and vector values keyed by shader property ID.
// Values are read when a command buffer is played back, not when a command
// is recorded, so a value set after recording a blit still applies to it.
package material

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
)

var (
	// ErrNilProgram is returned when creating a material without a program.
	ErrNilProgram = errors.New("material: program is nil")

	// ErrUnknownMaterial is returned when a library lookup fails.
	ErrUnknownMaterial = errors.New("material: unknown material")
)

// Material is a shader program with its uniform values.
//
// Material is safe for concurrent use.
type Material struct {
	name    string
	program *shaders.Program

	mu      sync.RWMutex
	floats  map[shaderprop.ID]float32
	vectors map[shaderprop.ID][4]float32
}

// New creates a material named name using program.
func New(name string, program *shaders.Program) (*Material, error) {
	if program == nil {
		return nil, ErrNilProgram
	}
	return &Material{
		name:    name,
		program: program,
		floats:  make(map[shaderprop.ID]float32),
		vectors: make(map[shaderprop.ID][4]float32),
	}, nil
}

// NewBloom creates a material for the bloom program.
func NewBloom() *Material {
	m, _ := New(shaders.BloomName, shaders.Bloom())
	return m
}

// NewUber creates a material for the uber composite program.
func NewUber() *Material {
	m, _ := New(shaders.UberName, shaders.Uber())
	return m
}

// Name returns the material name.
func (m *Material) Name() string { return m.name }

// Program returns the shader program.
func (m *Material) Program() *shaders.Program { return m.program }

// PassCount returns the number of passes in the program.
func (m *Material) PassCount() int { return m.program.PassCount() }

// ValidatePass reports whether pass exists in the program.
func (m *Material) ValidatePass(pass int) error {
	_, err := m.program.FragmentEntry(pass)
	return err
}

// SetFloat sets a float uniform.
func (m *Material) SetFloat(id shaderprop.ID, v float32) {
	m.mu.Lock()
	m.floats[id] = v
	m.mu.Unlock()
}

// Float returns a float uniform, or 0 when unset.
func (m *Material) Float(id shaderprop.ID) float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.floats[id]
}

// SetVector sets a four-component uniform.
func (m *Material) SetVector(id shaderprop.ID, v [4]float32) {
	m.mu.Lock()
	m.vectors[id] = v
	m.mu.Unlock()
}

// Vector returns a vector uniform, or zero when unset.
func (m *Material) Vector(id shaderprop.ID) [4]float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vectors[id]
}

// HasProperty reports whether a float or vector is set for id.
func (m *Material) HasProperty(id shaderprop.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, f := m.floats[id]
	_, v := m.vectors[id]
	return f || v
}

func (m *Material) String() string {
	return fmt.Sprintf("Material(%s)", m.name)
}

// Mesh identifies a built-in mesh drawn by DrawMesh commands.
type Mesh uint8

const (
	// MeshFullscreen covers the viewport with a single triangle.
	MeshFullscreen Mesh = iota
)

func (m Mesh) String() string {
	if m == MeshFullscreen {
		return "Fullscreen"
	}
	return fmt.Sprintf("Mesh(%d)", uint8(m))
}

// Library resolves materials by name, for configuration assets that store
// material references.
type Library struct {
	mu        sync.RWMutex
	materials map[string]*Material
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{materials: make(map[string]*Material)}
}

// StandardLibrary returns a library holding fresh bloom and uber materials.
func StandardLibrary() *Library {
	l := NewLibrary()
	l.Add(NewBloom())
	l.Add(NewUber())
	return l
}

// Add registers m under its name, replacing any previous material.
func (l *Library) Add(m *Material) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.materials[m.Name()] = m
}

// Lookup returns the material named name.
func (l *Library) Lookup(name string) (*Material, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.materials[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return m, nil
}

// Names returns the registered names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.materials))
	for name := range l.materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
