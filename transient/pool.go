// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package transient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/shaderprop"
)

// Pool errors.
var (
	// ErrAllocationFailed wraps factory failures such as GPU memory exhaustion.
	// It is not recoverable within the frame.
	ErrAllocationFailed = errors.New("transient: allocation failed")

	// ErrNotAllocated is returned when releasing an ID that holds no target.
	ErrNotAllocated = errors.New("transient: target not allocated")

	// ErrPoolDestroyed is returned when using a destroyed pool.
	ErrPoolDestroyed = errors.New("transient: pool destroyed")

	// ErrNilFactory is returned when creating a pool without a factory.
	ErrNilFactory = errors.New("transient: factory is nil")
)

// Texture is a render target created by a [Factory].
type Texture interface {
	Width() int
	Height() int
}

// Factory creates and destroys the textures backing transient targets.
type Factory interface {
	// CreateTexture creates a texture for desc. The filter mode is passed so
	// factories can attach a matching sampler.
	CreateTexture(label string, desc Descriptor, filter FilterMode) (Texture, error)

	// DestroyTexture releases a texture previously returned by CreateTexture.
	DestroyTexture(tex Texture)
}

// Handle identifies an allocated transient target.
type Handle struct {
	ID         shaderprop.ID
	Texture    Texture
	Descriptor Descriptor
	Filter     FilterMode
}

// Allocator requests and releases transient targets by property ID.
//
// Allocation is idempotent per ID within a frame: allocating a live ID with
// the same descriptor returns the same target, and allocating it with a
// different descriptor replaces (resizes) the target.
type Allocator interface {
	Allocate(id shaderprop.ID, desc Descriptor, filter FilterMode) (Handle, error)
	Release(id shaderprop.ID) error
}

// Stats counts pool activity since creation.
type Stats struct {
	Allocations int // Allocate calls that returned a target
	Releases    int // successful Release calls
	Created     int // textures created by the factory
	Reused      int // allocations served from released textures
	Destroyed   int // textures returned to the factory
	Live        int // targets currently allocated
	Free        int // released textures kept for reuse
}

type poolKey struct {
	desc   Descriptor
	filter FilterMode
}

type poolEntry struct {
	key      poolKey
	tex      Texture
	lastUsed uint64
}

const defaultMaxIdleFrames = 2

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	maxIdleFrames uint64
	labelPrefix   string
}

// WithMaxIdleFrames sets how many frames a released texture may stay unused
// before EndFrame destroys it. Zero destroys released textures at the next
// EndFrame.
func WithMaxIdleFrames(n int) PoolOption {
	return func(o *poolOptions) {
		if n < 0 {
			n = 0
		}
		o.maxIdleFrames = uint64(n)
	}
}

// WithLabelPrefix sets the prefix of debug labels given to created textures.
func WithLabelPrefix(prefix string) PoolOption {
	return func(o *poolOptions) {
		o.labelPrefix = prefix
	}
}

// Pool is an [Allocator] that reuses released textures across frames.
//
// Pool is safe for concurrent use, but targets are keyed by property ID only,
// so cameras recording concurrently must use separate pools.
type Pool struct {
	mu        sync.Mutex
	factory   Factory
	opts      poolOptions
	live      map[shaderprop.ID]*poolEntry
	free      map[poolKey][]*poolEntry
	frame     uint64
	stats     Stats
	destroyed bool
}

// NewPool creates a pool backed by factory.
func NewPool(factory Factory, opts ...PoolOption) (*Pool, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	o := poolOptions{
		maxIdleFrames: defaultMaxIdleFrames,
		labelPrefix:   "transient",
	}
	for _, opt := range opts {
		opt(&o)
	}
	logx.Logger().Info("transient: pool created",
		"label_prefix", o.labelPrefix, "max_idle_frames", o.maxIdleFrames)
	return &Pool{
		factory: factory,
		opts:    o,
		live:    make(map[shaderprop.ID]*poolEntry),
		free:    make(map[poolKey][]*poolEntry),
	}, nil
}

// Allocate binds a target matching desc and filter to id. When the factory
// fails, released textures are destroyed and creation is retried once.
func (p *Pool) Allocate(id shaderprop.ID, desc Descriptor, filter FilterMode) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return Handle{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return Handle{}, ErrPoolDestroyed
	}

	key := poolKey{desc: desc, filter: filter}
	if e, ok := p.live[id]; ok {
		if e.key == key {
			p.stats.Allocations++
			return handleOf(id, e), nil
		}
		// Descriptor changed: give the old texture back and rebind.
		delete(p.live, id)
		p.putFree(e)
	}

	e := p.takeFree(key)
	if e == nil {
		label := fmt.Sprintf("%s:%v", p.opts.labelPrefix, id)
		tex, err := p.factory.CreateTexture(label, desc, filter)
		if err != nil && p.evictFree() > 0 {
			tex, err = p.factory.CreateTexture(label, desc, filter)
		}
		if err != nil {
			logx.Logger().Warn("transient: texture creation failed",
				"id", id, "desc", desc.String(), "err", err)
			return Handle{}, fmt.Errorf("%w: %v %s: %w", ErrAllocationFailed, id, desc, err)
		}
		e = &poolEntry{key: key, tex: tex}
		p.stats.Created++
		logx.Logger().Debug("transient: created texture", "id", id, "desc", desc.String(), "filter", filter)
	}

	e.lastUsed = p.frame
	p.live[id] = e
	p.stats.Allocations++
	return handleOf(id, e), nil
}

// Release returns the target bound to id to the pool.
func (p *Pool) Release(id shaderprop.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return ErrPoolDestroyed
	}
	e, ok := p.live[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotAllocated, id)
	}
	delete(p.live, id)
	e.lastUsed = p.frame
	p.putFree(e)
	p.stats.Releases++
	return nil
}

// Lookup returns the target currently bound to id.
func (p *Pool) Lookup(id shaderprop.ID) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live[id]
	if !ok {
		return Handle{}, false
	}
	return handleOf(id, e), true
}

// EndFrame advances the frame counter and destroys released textures that
// have been idle for longer than the configured limit. It returns the
// number of textures destroyed.
func (p *Pool) EndFrame() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return 0
	}
	p.frame++
	trimmed := 0
	for key, list := range p.free {
		kept := list[:0]
		for _, e := range list {
			if p.frame-e.lastUsed > p.opts.maxIdleFrames {
				p.factory.DestroyTexture(e.tex)
				p.stats.Destroyed++
				trimmed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(p.free, key)
		} else {
			p.free[key] = kept
		}
	}
	if trimmed > 0 {
		logx.Logger().Debug("transient: trimmed idle textures", "count", trimmed, "frame", p.frame)
	}
	return trimmed
}

// Frame returns the number of completed frames.
func (p *Pool) Frame() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Live = len(p.live)
	s.Free = 0
	for _, list := range p.free {
		s.Free += len(list)
	}
	return s
}

// Destroy releases every texture, live or free. The pool cannot be used
// afterwards. Destroy is safe to call more than once.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	for id, e := range p.live {
		p.factory.DestroyTexture(e.tex)
		p.stats.Destroyed++
		delete(p.live, id)
	}
	for key, list := range p.free {
		for _, e := range list {
			p.factory.DestroyTexture(e.tex)
			p.stats.Destroyed++
		}
		delete(p.free, key)
	}
	p.destroyed = true
}

// takeFree pops a released texture matching key. The caller must hold p.mu.
func (p *Pool) takeFree(key poolKey) *poolEntry {
	list := p.free[key]
	if len(list) == 0 {
		return nil
	}
	e := list[len(list)-1]
	if len(list) == 1 {
		delete(p.free, key)
	} else {
		p.free[key] = list[:len(list)-1]
	}
	p.stats.Reused++
	return e
}

// evictFree destroys every released texture so a failed creation can be
// retried with their memory. The caller must hold p.mu.
func (p *Pool) evictFree() int {
	n := 0
	for key, list := range p.free {
		for _, e := range list {
			p.factory.DestroyTexture(e.tex)
			p.stats.Destroyed++
			n++
		}
		delete(p.free, key)
	}
	if n > 0 {
		logx.Logger().Debug("transient: evicted released textures", "count", n)
	}
	return n
}

// putFree parks a texture for reuse. The caller must hold p.mu.
func (p *Pool) putFree(e *poolEntry) {
	p.free[e.key] = append(p.free[e.key], e)
}

func handleOf(id shaderprop.ID, e *poolEntry) Handle {
	return Handle{
		ID:         id,
		Texture:    e.tex,
		Descriptor: e.key.desc,
		Filter:     e.key.filter,
	}
}

var _ Allocator = (*Pool)(nil)
