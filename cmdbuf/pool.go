// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

import "sync"

// Pool manages reusable command buffers so per-frame recording does not
// allocate once warmed up.
//
//	cb := pool.Get("PostFX")
//	defer pool.Put(cb)
type Pool struct {
	pool sync.Pool
}

// NewPool creates a new command buffer pool.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return New("")
			},
		},
	}
}

// Get returns an empty buffer named name.
func (p *Pool) Get(name string) *CommandBuffer {
	cb := p.pool.Get().(*CommandBuffer)
	cb.Clear()
	cb.name = name
	return cb
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
func (p *Pool) Put(cb *CommandBuffer) {
	if cb == nil {
		return
	}
	cb.Clear()
	p.pool.Put(cb)
}

// Warmup pre-allocates count buffers.
func (p *Pool) Warmup(count int) {
	buffers := make([]*CommandBuffer, count)
	for i := range buffers {
		buffers[i] = p.Get("")
	}
	for _, cb := range buffers {
		p.Put(cb)
	}
}

// DefaultPool is the process-wide command buffer pool.
var DefaultPool = NewPool()

// GetBuffer returns a buffer from the default pool.
func GetBuffer(name string) *CommandBuffer {
	return DefaultPool.Get(name)
}

// PutBuffer returns a buffer to the default pool.
func PutBuffer(cb *CommandBuffer) {
	DefaultPool.Put(cb)
}
