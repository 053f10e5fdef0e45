package transient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx/shaderprop"
)

type fakeTexture struct {
	label string
	desc  Descriptor
}

func (t *fakeTexture) Width() int  { return t.desc.Width }
func (t *fakeTexture) Height() int { return t.desc.Height }

// fakeFactory counts creations and can be told to fail after n textures,
// or when n textures are alive.
type fakeFactory struct {
	created   int
	destroyed int
	failAfter int // -1 never fails
	liveLimit int // 0 is unlimited
}

func newFakeFactory() *fakeFactory { return &fakeFactory{failAfter: -1} }

var errOutOfMemory = errors.New("out of memory")

func (f *fakeFactory) CreateTexture(label string, desc Descriptor, _ FilterMode) (Texture, error) {
	if f.failAfter >= 0 && f.created >= f.failAfter {
		return nil, errOutOfMemory
	}
	if f.liveLimit > 0 && f.created-f.destroyed >= f.liveLimit {
		return nil, errOutOfMemory
	}
	f.created++
	return &fakeTexture{label: label, desc: desc}, nil
}

func (f *fakeFactory) DestroyTexture(Texture) { f.destroyed++ }

func newTestPool(t *testing.T, opts ...PoolOption) (*Pool, *fakeFactory) {
	t.Helper()
	f := newFakeFactory()
	p, err := NewPool(f, opts...)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	return p, f
}

func TestNewPoolNilFactory(t *testing.T) {
	if _, err := NewPool(nil); !errors.Is(err, ErrNilFactory) {
		t.Errorf("NewPool(nil) error = %v, want %v", err, ErrNilFactory)
	}
}

func TestPoolAllocateIdempotent(t *testing.T) {
	p, f := newTestPool(t)
	id := shaderprop.PropertyToID("_TestPoolIdempotent")
	desc := NewDescriptor(64, 32, gputypes.TextureFormatRGBA8Unorm)

	h1, err := p.Allocate(id, desc, FilterBilinear)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	h2, err := p.Allocate(id, desc, FilterBilinear)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if h1.Texture != h2.Texture {
		t.Error("second Allocate() with the same descriptor returned a new texture")
	}
	if f.created != 1 {
		t.Errorf("created = %d, want 1", f.created)
	}
	if s := p.Stats(); s.Live != 1 {
		t.Errorf("Stats().Live = %d, want 1", s.Live)
	}
}

func TestPoolAllocateResizes(t *testing.T) {
	p, f := newTestPool(t)
	id := shaderprop.PropertyToID("_TestPoolResize")
	desc := NewDescriptor(64, 32, gputypes.TextureFormatRGBA8Unorm)

	if _, err := p.Allocate(id, desc, FilterBilinear); err != nil {
		t.Fatal(err)
	}
	h, err := p.Allocate(id, desc.Resized(128, 64), FilterBilinear)
	if err != nil {
		t.Fatal(err)
	}
	if h.Texture.Width() != 128 || h.Texture.Height() != 64 {
		t.Errorf("resized texture = %dx%d, want 128x64", h.Texture.Width(), h.Texture.Height())
	}
	if f.created != 2 {
		t.Errorf("created = %d, want 2", f.created)
	}
	s := p.Stats()
	if s.Live != 1 || s.Free != 1 {
		t.Errorf("Stats() live=%d free=%d, want 1 and 1", s.Live, s.Free)
	}
}

func TestPoolReleaseAndReuse(t *testing.T) {
	p, f := newTestPool(t)
	a := shaderprop.PropertyToID("_TestPoolReuseA")
	b := shaderprop.PropertyToID("_TestPoolReuseB")
	desc := NewDescriptor(16, 16, gputypes.TextureFormatRGBA8Unorm)

	ha, err := p.Allocate(a, desc, FilterPoint)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Release(a); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	hb, err := p.Allocate(b, desc, FilterPoint)
	if err != nil {
		t.Fatal(err)
	}
	if ha.Texture != hb.Texture {
		t.Error("released texture was not reused")
	}
	if f.created != 1 {
		t.Errorf("created = %d, want 1", f.created)
	}
	if s := p.Stats(); s.Reused != 1 {
		t.Errorf("Stats().Reused = %d, want 1", s.Reused)
	}

	// A different filter is a different key.
	c := shaderprop.PropertyToID("_TestPoolReuseC")
	if _, err := p.Allocate(c, desc, FilterBilinear); err != nil {
		t.Fatal(err)
	}
	if f.created != 2 {
		t.Errorf("created = %d after filter change, want 2", f.created)
	}
}

func TestPoolReleaseNotAllocated(t *testing.T) {
	p, _ := newTestPool(t)
	err := p.Release(shaderprop.PropertyToID("_TestPoolNeverAllocated"))
	if !errors.Is(err, ErrNotAllocated) {
		t.Errorf("Release() error = %v, want %v", err, ErrNotAllocated)
	}
}

func TestPoolAllocateInvalidDescriptor(t *testing.T) {
	p, f := newTestPool(t)
	_, err := p.Allocate(shaderprop.PropertyToID("_TestPoolInvalid"), Descriptor{Width: 0, Height: 4, SampleCount: 1}, FilterPoint)
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("Allocate() error = %v, want %v", err, ErrInvalidDescriptor)
	}
	if f.created != 0 {
		t.Errorf("factory called for invalid descriptor")
	}
}

func TestPoolAllocationFailure(t *testing.T) {
	p, f := newTestPool(t)
	f.failAfter = 0
	_, err := p.Allocate(shaderprop.PropertyToID("_TestPoolFail"), NewDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm), FilterPoint)
	if !errors.Is(err, ErrAllocationFailed) {
		t.Errorf("Allocate() error = %v, want %v", err, ErrAllocationFailed)
	}
	if !errors.Is(err, errOutOfMemory) {
		t.Errorf("Allocate() error = %v, want wrapped factory error", err)
	}
	if s := p.Stats(); s.Live != 0 || s.Allocations != 0 {
		t.Errorf("Stats() after failure = %+v, want no live targets", s)
	}
}

func TestPoolEvictsReleasedOnFailure(t *testing.T) {
	p, f := newTestPool(t)
	f.liveLimit = 2
	big := NewDescriptor(64, 64, gputypes.TextureFormatRGBA8Unorm)
	small := NewDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm)
	a := shaderprop.PropertyToID("_TestPoolEvictA")
	b := shaderprop.PropertyToID("_TestPoolEvictB")

	for _, id := range []shaderprop.ID{a, b} {
		if _, err := p.Allocate(id, big, FilterBilinear); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []shaderprop.ID{a, b} {
		if err := p.Release(id); err != nil {
			t.Fatal(err)
		}
	}
	if s := p.Stats(); s.Free != 2 {
		t.Fatalf("Free = %d, want 2 parked textures", s.Free)
	}

	// Nothing matches the small descriptor and the factory is full.
	if _, err := p.Allocate(a, small, FilterBilinear); err != nil {
		t.Fatalf("Allocate() with released textures to evict error = %v", err)
	}
	s := p.Stats()
	if s.Free != 0 || s.Live != 1 || f.destroyed != 2 {
		t.Errorf("after eviction Free = %d, Live = %d, destroyed = %d; want 0, 1, 2", s.Free, s.Live, f.destroyed)
	}

	// With nothing left to evict the failure surfaces.
	if _, err := p.Allocate(b, small, FilterPoint); err != nil {
		t.Fatal(err)
	}
	c := shaderprop.PropertyToID("_TestPoolEvictC")
	if _, err := p.Allocate(c, small, FilterPoint); !errors.Is(err, ErrAllocationFailed) {
		t.Errorf("Allocate() beyond the limit error = %v, want %v", err, ErrAllocationFailed)
	}
}

func TestPoolEndFrameTrimsIdle(t *testing.T) {
	p, f := newTestPool(t, WithMaxIdleFrames(1))
	id := shaderprop.PropertyToID("_TestPoolTrim")
	desc := NewDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm)

	if _, err := p.Allocate(id, desc, FilterPoint); err != nil {
		t.Fatal(err)
	}
	if err := p.Release(id); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		frame   uint64
		trimmed int
	}{
		{1, 0},
		{2, 1},
		{3, 0},
	}
	for _, tt := range tests {
		if got := p.EndFrame(); got != tt.trimmed {
			t.Errorf("EndFrame() at frame %d = %d, want %d", tt.frame, got, tt.trimmed)
		}
		if got := p.Frame(); got != tt.frame {
			t.Errorf("Frame() = %d, want %d", got, tt.frame)
		}
	}
	if f.destroyed != 1 {
		t.Errorf("destroyed = %d, want 1", f.destroyed)
	}
}

func TestPoolEndFrameKeepsLive(t *testing.T) {
	p, f := newTestPool(t, WithMaxIdleFrames(0))
	id := shaderprop.PropertyToID("_TestPoolKeepLive")
	if _, err := p.Allocate(id, NewDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm), FilterPoint); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		p.EndFrame()
	}
	if f.destroyed != 0 {
		t.Errorf("live target destroyed by EndFrame")
	}
	if _, ok := p.Lookup(id); !ok {
		t.Error("Lookup() lost a live target")
	}
}

func TestPoolDestroy(t *testing.T) {
	p, f := newTestPool(t)
	desc := NewDescriptor(8, 8, gputypes.TextureFormatRGBA8Unorm)
	for i := 0; i < 3; i++ {
		id := shaderprop.PropertyToID(fmt.Sprintf("_TestPoolDestroy%d", i))
		if _, err := p.Allocate(id, desc, FilterPoint); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			if err := p.Release(id); err != nil {
				t.Fatal(err)
			}
		}
	}
	p.Destroy()
	p.Destroy()
	if f.destroyed != f.created {
		t.Errorf("destroyed = %d, created = %d; want equal", f.destroyed, f.created)
	}
	if _, err := p.Allocate(shaderprop.PropertyToID("_TestPoolAfterDestroy"), desc, FilterPoint); !errors.Is(err, ErrPoolDestroyed) {
		t.Errorf("Allocate() after Destroy error = %v, want %v", err, ErrPoolDestroyed)
	}
	if err := p.Release(shaderprop.PropertyToID("_TestPoolDestroy1")); !errors.Is(err, ErrPoolDestroyed) {
		t.Errorf("Release() after Destroy error = %v, want %v", err, ErrPoolDestroyed)
	}
}

func TestPoolLabelPrefix(t *testing.T) {
	p, _ := newTestPool(t, WithLabelPrefix("bloom"))
	id := shaderprop.PropertyToID("_TestPoolLabel")
	h, err := p.Allocate(id, NewDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm), FilterPoint)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.Texture.(*fakeTexture).label, "bloom:_TestPoolLabel"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
}
