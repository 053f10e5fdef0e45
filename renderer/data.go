// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package renderer

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/postfx/material"
	"github.com/gogpu/postfx/shaders"
)

// LayerMask selects object layers, one bit per layer.
type LayerMask int32

// AllLayers selects every layer.
const AllLayers LayerMask = -1

// Contains reports whether layer is selected.
func (m LayerMask) Contains(layer int) bool {
	return layer >= 0 && layer < 32 && m&(1<<layer) != 0
}

// ErrMaterialNotSet is returned when a material reference is empty.
var ErrMaterialNotSet = errors.New("renderer: material reference not set")

// Data is the renderer configuration asset.
//
// Every setter marks the asset dirty until it is saved. Data is not safe
// for concurrent use.
type Data struct {
	uberMaterial         string
	bloomMaterial        string
	opaqueLayerMask      LayerMask
	transparentLayerMask LayerMask
	stencil              StencilStateData
	dirty                bool
}

// NewData returns a configuration that draws every layer, leaves stencil
// alone and references the standard materials.
func NewData() *Data {
	return &Data{
		uberMaterial:         shaders.UberName,
		bloomMaterial:        shaders.BloomName,
		opaqueLayerMask:      AllLayers,
		transparentLayerMask: AllLayers,
		stencil:              DefaultStencilStateData(),
	}
}

// UberMaterial returns the name of the composite material.
func (d *Data) UberMaterial() string { return d.uberMaterial }

// SetUberMaterial sets the name of the composite material.
func (d *Data) SetUberMaterial(name string) {
	d.dirty = true
	d.uberMaterial = name
}

// BloomMaterial returns the name of the bloom material.
func (d *Data) BloomMaterial() string { return d.bloomMaterial }

// SetBloomMaterial sets the name of the bloom material.
func (d *Data) SetBloomMaterial(name string) {
	d.dirty = true
	d.bloomMaterial = name
}

// OpaqueLayerMask returns the layers drawn by the opaque pass.
func (d *Data) OpaqueLayerMask() LayerMask { return d.opaqueLayerMask }

// SetOpaqueLayerMask sets the layers drawn by the opaque pass.
func (d *Data) SetOpaqueLayerMask(m LayerMask) {
	d.dirty = true
	d.opaqueLayerMask = m
}

// TransparentLayerMask returns the layers drawn by the transparent pass.
func (d *Data) TransparentLayerMask() LayerMask { return d.transparentLayerMask }

// SetTransparentLayerMask sets the layers drawn by the transparent pass.
func (d *Data) SetTransparentLayerMask(m LayerMask) {
	d.dirty = true
	d.transparentLayerMask = m
}

// DefaultStencilState returns the stencil configuration of the draw passes.
func (d *Data) DefaultStencilState() StencilStateData { return d.stencil }

// SetDefaultStencilState sets the stencil configuration of the draw passes.
func (d *Data) SetDefaultStencilState(s StencilStateData) {
	d.dirty = true
	d.stencil = s
}

// IsDirty reports whether the asset changed since it was loaded or saved.
func (d *Data) IsDirty() bool { return d.dirty }

// Materials resolves the material references in lib.
func (d *Data) Materials(lib *material.Library) (uber, bloom *material.Material, err error) {
	if d.uberMaterial == "" || d.bloomMaterial == "" {
		return nil, nil, ErrMaterialNotSet
	}
	if uber, err = lib.Lookup(d.uberMaterial); err != nil {
		return nil, nil, fmt.Errorf("renderer: uber material: %w", err)
	}
	if bloom, err = lib.Lookup(d.bloomMaterial); err != nil {
		return nil, nil, fmt.Errorf("renderer: bloom material: %w", err)
	}
	return uber, bloom, nil
}

// dataFile is the YAML layout of Data. Pointer fields tell an absent key
// from a zero value.
type dataFile struct {
	UberMaterial         string            `yaml:"uber_material,omitempty"`
	BloomMaterial        string            `yaml:"bloom_material,omitempty"`
	OpaqueLayerMask      *LayerMask        `yaml:"opaque_layer_mask,omitempty"`
	TransparentLayerMask *LayerMask        `yaml:"transparent_layer_mask,omitempty"`
	Stencil              *StencilStateData `yaml:"stencil,omitempty"`
}

// Save writes the asset as YAML and clears the dirty flag.
func (d *Data) Save(w io.Writer) error {
	opaque, transparent, stencil := d.opaqueLayerMask, d.transparentLayerMask, d.stencil
	f := dataFile{
		UberMaterial:         d.uberMaterial,
		BloomMaterial:        d.bloomMaterial,
		OpaqueLayerMask:      &opaque,
		TransparentLayerMask: &transparent,
		Stencil:              &stencil,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("renderer: save data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("renderer: save data: %w", err)
	}
	d.dirty = false
	return nil
}

// LoadData reads an asset written by Save. Missing keys take the values of
// NewData. The result is not dirty.
func LoadData(r io.Reader) (*Data, error) {
	var f dataFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("renderer: load data: %w", err)
	}
	d := NewData()
	if f.UberMaterial != "" {
		d.uberMaterial = f.UberMaterial
	}
	if f.BloomMaterial != "" {
		d.bloomMaterial = f.BloomMaterial
	}
	if f.OpaqueLayerMask != nil {
		d.opaqueLayerMask = *f.OpaqueLayerMask
	}
	if f.TransparentLayerMask != nil {
		d.transparentLayerMask = *f.TransparentLayerMask
	}
	if f.Stencil != nil {
		d.stencil = *f.Stencil
		if d.stencil.Compare == CompareDisabled {
			d.stencil.Compare = CompareAlways
		}
	}
	return d, nil
}
