// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package bloom builds the bloom mip pyramid.
//
// [Builder.Render] records a prefilter pass into half resolution, a
// downsample chain of separable gaussian blurs, and an upsample chain that
// combines each level with the coarser one. The result is a single texture
// bound to _Bloom_Texture for the composite stage.
package bloom

import "github.com/chewxy/math32"

// Settings are the user-facing bloom controls.
type Settings struct {
	// Threshold filters out pixels under this gamma-space brightness.
	Threshold float32 `yaml:"threshold"`

	// Scatter sets how far the glow spreads, in [0, 1].
	Scatter float32 `yaml:"scatter"`

	// Intensity scales the bloom added to the scene.
	Intensity float32 `yaml:"intensity"`
}

// DefaultSettings returns the settings used when no volume overrides bloom.
// Intensity 0 makes bloom invisible until enabled.
func DefaultSettings() Settings {
	return Settings{
		Threshold: 0.9,
		Scatter:   0.7,
		Intensity: 0,
	}
}

// Clamped returns s with every field in its valid range.
func (s Settings) Clamped() Settings {
	s.Threshold = math32.Max(s.Threshold, 0)
	s.Scatter = saturate(s.Scatter)
	s.Intensity = math32.Max(s.Intensity, 0)
	return s
}

// Parameters are the per-frame values derived from Settings. They are
// recomputed every frame because settings may change at runtime.
type Parameters struct {
	Threshold            float32 // linear-space threshold
	ThresholdKnee        float32 // 0.5 * Threshold
	ThresholdDenominator float32 // 4 * ThresholdKnee + 0.0001
	Scatter              float32 // Settings.Scatter mapped to [0.05, 0.95]
	Intensity            float32
}

const (
	minScatter     = 0.05
	maxScatter     = 0.95
	kneeEpsilon    = 0.0001
	kneeMultiplier = 0.5
)

// NewParameters derives frame parameters from s.
func NewParameters(s Settings) Parameters {
	s = s.Clamped()
	p := linearParameters(GammaToLinear(s.Threshold))
	p.Scatter = lerp(minScatter, maxScatter, s.Scatter)
	p.Intensity = s.Intensity
	return p
}

// linearParameters derives the knee terms from a linear threshold.
func linearParameters(threshold float32) Parameters {
	knee := threshold * kneeMultiplier
	return Parameters{
		Threshold:            threshold,
		ThresholdKnee:        knee,
		ThresholdDenominator: 4*knee + kneeEpsilon,
	}
}

// Vector packs the parameters the way the bloom program reads
// _Bloom_Params: scatter, threshold, knee, denominator.
func (p Parameters) Vector() [4]float32 {
	return [4]float32{p.Scatter, p.Threshold, p.ThresholdKnee, p.ThresholdDenominator}
}

// GammaToLinear converts an sRGB-encoded value to linear space. Values
// above 1 use a plain 2.2 power curve.
func GammaToLinear(v float32) float32 {
	switch {
	case v <= 0.04045:
		return v / 12.92
	case v < 1:
		return math32.Pow((v+0.055)/1.055, 2.4)
	default:
		return math32.Pow(v, 2.2)
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func saturate(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}
