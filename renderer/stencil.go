// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package renderer

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"gopkg.in/yaml.v3"
)

// CompareFunction is a stencil comparison.
type CompareFunction uint8

const (
	CompareDisabled CompareFunction = iota
	CompareNever
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

var compareNames = [...]string{
	CompareDisabled:     "Disabled",
	CompareNever:        "Never",
	CompareLess:         "Less",
	CompareEqual:        "Equal",
	CompareLessEqual:    "LessEqual",
	CompareGreater:      "Greater",
	CompareNotEqual:     "NotEqual",
	CompareGreaterEqual: "GreaterEqual",
	CompareAlways:       "Always",
}

func (c CompareFunction) String() string {
	if int(c) < len(compareNames) {
		return compareNames[c]
	}
	return fmt.Sprintf("CompareFunction(%d)", uint8(c))
}

// ToWGPU maps c to a WebGPU compare function. Disabled compares Always.
func (c CompareFunction) ToWGPU() gputypes.CompareFunction {
	switch c {
	case CompareNever:
		return gputypes.CompareFunctionNever
	case CompareLess:
		return gputypes.CompareFunctionLess
	case CompareEqual:
		return gputypes.CompareFunctionEqual
	case CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	case CompareGreater:
		return gputypes.CompareFunctionGreater
	case CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case CompareGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

// MarshalYAML writes the function by name.
func (c CompareFunction) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML reads a function name, case-insensitively.
func (c *CompareFunction) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseEnum(node, compareNames[:])
	if err != nil {
		return fmt.Errorf("compare function: %w", err)
	}
	*c = CompareFunction(v)
	return nil
}

// StencilOp is what a stencil test does to the stored value.
type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrementSaturate
	StencilDecrementSaturate
	StencilInvert
	StencilIncrementWrap
	StencilDecrementWrap
)

var stencilOpNames = [...]string{
	StencilKeep:              "Keep",
	StencilZero:              "Zero",
	StencilReplace:           "Replace",
	StencilIncrementSaturate: "IncrementSaturate",
	StencilDecrementSaturate: "DecrementSaturate",
	StencilInvert:            "Invert",
	StencilIncrementWrap:     "IncrementWrap",
	StencilDecrementWrap:     "DecrementWrap",
}

func (op StencilOp) String() string {
	if int(op) < len(stencilOpNames) {
		return stencilOpNames[op]
	}
	return fmt.Sprintf("StencilOp(%d)", uint8(op))
}

// ToWGPU maps op to a HAL stencil operation.
func (op StencilOp) ToWGPU() hal.StencilOperation {
	switch op {
	case StencilZero:
		return hal.StencilOperationZero
	case StencilReplace:
		return hal.StencilOperationReplace
	case StencilIncrementSaturate:
		return hal.StencilOperationIncrementClamp
	case StencilDecrementSaturate:
		return hal.StencilOperationDecrementClamp
	case StencilInvert:
		return hal.StencilOperationInvert
	case StencilIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case StencilDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

// MarshalYAML writes the operation by name.
func (op StencilOp) MarshalYAML() (any, error) {
	return op.String(), nil
}

// UnmarshalYAML reads an operation name, case-insensitively.
func (op *StencilOp) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseEnum(node, stencilOpNames[:])
	if err != nil {
		return fmt.Errorf("stencil op: %w", err)
	}
	*op = StencilOp(v)
	return nil
}

func parseEnum(node *yaml.Node, names []string) (int, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: expected a name", node.Line)
	}
	for i, name := range names {
		if strings.EqualFold(name, node.Value) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("line %d: unknown value %q", node.Line, node.Value)
}

// StencilStateData is the stencil section of the renderer configuration.
type StencilStateData struct {
	Override  bool            `yaml:"override"`
	Reference int             `yaml:"reference"`
	Compare   CompareFunction `yaml:"compare"`
	Pass      StencilOp       `yaml:"pass"`
	Fail      StencilOp       `yaml:"fail"`
	ZFail     StencilOp       `yaml:"zfail"`
}

// DefaultStencilStateData returns a non-overriding state that always passes
// and keeps the stored value.
func DefaultStencilStateData() StencilStateData {
	return StencilStateData{Compare: CompareAlways}
}

// StencilState is the stencil configuration used by draw passes. Enabled
// states read and write all eight stencil bits.
type StencilState struct {
	Enabled bool
	Compare CompareFunction
	Pass    StencilOp
	Fail    StencilOp
	ZFail   StencilOp
}

// DefaultStencilState returns a disabled state that always passes.
func DefaultStencilState() StencilState {
	return StencilState{Compare: CompareAlways}
}

// NewStencilState builds the state draw passes use from configuration data.
// The state is enabled only when d overrides stencil.
func NewStencilState(d StencilStateData) StencilState {
	s := DefaultStencilState()
	s.Enabled = d.Override
	s.Compare = d.Compare
	s.Pass = d.Pass
	s.Fail = d.Fail
	s.ZFail = d.ZFail
	return s
}

// DepthStencil returns the HAL depth-stencil state for a target of format.
// Both faces share s. A disabled state always passes and writes nothing.
func (s StencilState) DepthStencil(format gputypes.TextureFormat) *hal.DepthStencilState {
	state := &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: true,
		DepthCompare:      gputypes.CompareFunctionLessEqual,
	}
	if !s.Enabled {
		face := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		state.StencilFront, state.StencilBack = face, face
		return state
	}
	face := hal.StencilFaceState{
		Compare:     s.Compare.ToWGPU(),
		FailOp:      s.Fail.ToWGPU(),
		DepthFailOp: s.ZFail.ToWGPU(),
		PassOp:      s.Pass.ToWGPU(),
	}
	state.StencilFront, state.StencilBack = face, face
	state.StencilReadMask = 0xFF
	state.StencilWriteMask = 0xFF
	return state
}
