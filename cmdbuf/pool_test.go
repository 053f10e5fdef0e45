package cmdbuf

import "testing"

func TestPoolGetReturnsEmpty(t *testing.T) {
	p := NewPool()
	cb := p.Get("first")
	cb.BeginSample("x")
	cb.EndSample("x")
	p.Put(cb)

	cb = p.Get("second")
	if cb.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cb.Len())
	}
	if cb.Name() != "second" {
		t.Errorf("Name() = %q, want %q", cb.Name(), "second")
	}
	p.Put(nil)
}

func TestPoolWarmup(t *testing.T) {
	p := NewPool()
	p.Warmup(4)
	if cb := p.Get("warm"); cb == nil || cb.Len() != 0 {
		t.Error("Get() after Warmup returned an unusable buffer")
	}
}

func TestDefaultPool(t *testing.T) {
	cb := GetBuffer("default")
	defer PutBuffer(cb)
	if cb.Name() != "default" {
		t.Errorf("Name() = %q", cb.Name())
	}
}
