package material

import (
	"errors"
	"testing"

	"github.com/gogpu/postfx/shaderprop"
	"github.com/gogpu/postfx/shaders"
)

func TestNewNilProgram(t *testing.T) {
	if _, err := New("x", nil); !errors.Is(err, ErrNilProgram) {
		t.Errorf("New(nil) error = %v, want %v", err, ErrNilProgram)
	}
}

func TestMaterialValues(t *testing.T) {
	m := NewBloom()
	params := shaderprop.PropertyToID("_TestMaterialParams")
	intensity := shaderprop.PropertyToID("_TestMaterialIntensity")

	if m.HasProperty(params) {
		t.Error("fresh material reports a property")
	}
	m.SetVector(params, [4]float32{0.5, 1, 0.5, 2.0001})
	m.SetFloat(intensity, 1.5)

	if got := m.Vector(params); got != [4]float32{0.5, 1, 0.5, 2.0001} {
		t.Errorf("Vector() = %v", got)
	}
	if got := m.Float(intensity); got != 1.5 {
		t.Errorf("Float() = %v, want 1.5", got)
	}
	if got := m.Float(params); got != 0 {
		t.Errorf("Float() of a vector property = %v, want 0", got)
	}
	if !m.HasProperty(params) || !m.HasProperty(intensity) {
		t.Error("HasProperty() = false after set")
	}
}

func TestMaterialPasses(t *testing.T) {
	bloom, uber := NewBloom(), NewUber()
	if bloom.PassCount() != 4 || uber.PassCount() != 1 {
		t.Errorf("PassCount() = %d, %d; want 4, 1", bloom.PassCount(), uber.PassCount())
	}
	if err := bloom.ValidatePass(shaders.PassUpsample); err != nil {
		t.Errorf("ValidatePass(%d) error = %v", shaders.PassUpsample, err)
	}
	if err := uber.ValidatePass(1); !errors.Is(err, shaders.ErrInvalidPass) {
		t.Errorf("ValidatePass(1) error = %v, want %v", err, shaders.ErrInvalidPass)
	}
}

func TestLibrary(t *testing.T) {
	l := StandardLibrary()
	names := l.Names()
	if len(names) != 2 || names[0] != shaders.BloomName || names[1] != shaders.UberName {
		t.Errorf("Names() = %v", names)
	}
	m, err := l.Lookup(shaders.UberName)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Program() != shaders.Uber() {
		t.Error("uber material bound to the wrong program")
	}
	if _, err := l.Lookup("missing"); !errors.Is(err, ErrUnknownMaterial) {
		t.Errorf("Lookup(missing) error = %v, want %v", err, ErrUnknownMaterial)
	}
}

func TestMeshString(t *testing.T) {
	if s := MeshFullscreen.String(); s != "Fullscreen" {
		t.Errorf("String() = %q", s)
	}
	if s := Mesh(7).String(); s != "Mesh(7)" {
		t.Errorf("String() = %q", s)
	}
}
