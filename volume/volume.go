// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package volume resolves effect settings from prioritized, weighted
// volumes layered over defaults.
//
// Volumes are applied from lowest to highest priority. Each overridden
// parameter moves the running value toward the volume's value by the
// volume's weight; parameters no volume overrides keep their defaults.
package volume

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chewxy/math32"

	"github.com/gogpu/postfx/bloom"
)

var (
	// ErrNilVolume is returned when adding a nil volume.
	ErrNilVolume = errors.New("volume: volume is nil")

	// ErrDuplicateVolume is returned when adding a name twice.
	ErrDuplicateVolume = errors.New("volume: duplicate volume name")
)

// FloatParameter is a float setting a volume may override.
type FloatParameter struct {
	Value    float32 `yaml:"value"`
	Override bool    `yaml:"override"`
}

// Override returns an overriding parameter with value v.
func Override(v float32) FloatParameter {
	return FloatParameter{Value: v, Override: true}
}

// BloomOverrides are the bloom parameters of one volume.
type BloomOverrides struct {
	Threshold FloatParameter `yaml:"threshold"`
	Scatter   FloatParameter `yaml:"scatter"`
	Intensity FloatParameter `yaml:"intensity"`
}

func (b BloomOverrides) any() bool {
	return b.Threshold.Override || b.Scatter.Override || b.Intensity.Override
}

// Volume is a named set of overrides.
type Volume struct {
	Name     string         `yaml:"name"`
	Priority float32        `yaml:"priority"`
	Weight   float32        `yaml:"weight"`
	Bloom    BloomOverrides `yaml:"bloom"`
}

// Stack holds the defaults and the active volumes.
//
// Stack is safe for concurrent use.
type Stack struct {
	mu       sync.RWMutex
	defaults bloom.Settings
	volumes  []*Volume
}

// NewStack returns a stack with bloom.DefaultSettings and no volumes.
func NewStack() *Stack {
	return &Stack{defaults: bloom.DefaultSettings()}
}

// SetDefaults replaces the bloom defaults.
func (s *Stack) SetDefaults(d bloom.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
}

// Add adds v to the stack. Names must be unique.
func (s *Stack) Add(v *Volume) error {
	if v == nil {
		return ErrNilVolume
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.volumes {
		if existing.Name == v.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateVolume, v.Name)
		}
	}
	s.volumes = append(s.volumes, v)
	return nil
}

// Remove removes the volume named name and reports whether it existed.
func (s *Stack) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.volumes {
		if v.Name == name {
			s.volumes = append(s.volumes[:i], s.volumes[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the volume names in priority order.
func (s *Stack) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sorted()
	names := make([]string, len(sorted))
	for i, v := range sorted {
		names[i] = v.Name
	}
	return names
}

// Bloom returns the blended bloom settings. ok is false when no volume with
// a positive weight overrides any bloom parameter.
func (s *Stack) Bloom() (bloom.Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.defaults
	ok := false
	for _, v := range s.sorted() {
		w := math32.Min(math32.Max(v.Weight, 0), 1)
		if w == 0 || !v.Bloom.any() {
			continue
		}
		ok = true
		out.Threshold = blend(out.Threshold, v.Bloom.Threshold, w)
		out.Scatter = blend(out.Scatter, v.Bloom.Scatter, w)
		out.Intensity = blend(out.Intensity, v.Bloom.Intensity, w)
	}
	return out, ok
}

// sorted returns the volumes by ascending priority, keeping insertion order
// for ties. The caller must hold s.mu.
func (s *Stack) sorted() []*Volume {
	out := make([]*Volume, len(s.volumes))
	copy(out, s.volumes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func blend(current float32, p FloatParameter, w float32) float32 {
	if !p.Override {
		return current
	}
	return current + (p.Value-current)*w
}
