// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"errors"
	"sync"

	"github.com/gogpu/postfx/internal/logx"
	"github.com/gogpu/postfx/transient"
)

// ErrTextureLimit is returned when a factory's texture limit is reached.
var ErrTextureLimit = errors.New("software: texture limit reached")

// Factory creates CPU textures for a transient.Pool. The texture format is
// ignored: every texture stores float RGBA.
//
// Factory is safe for concurrent use.
type Factory struct {
	mu    sync.Mutex
	limit int // 0 means unlimited
	live  int
}

// NewFactory returns a factory that keeps at most limit textures alive.
// A limit of 0 means unlimited.
func NewFactory(limit int) *Factory {
	return &Factory{limit: max(limit, 0)}
}

// CreateTexture allocates a texture for desc.
func (f *Factory) CreateTexture(label string, desc transient.Descriptor, _ transient.FilterMode) (transient.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limit > 0 && f.live >= f.limit {
		return nil, ErrTextureLimit
	}
	f.live++
	t := NewTexture(desc.Width, desc.Height)
	t.label = label
	return t, nil
}

// DestroyTexture forgets a texture created by f.
func (f *Factory) DestroyTexture(tex transient.Texture) {
	if _, ok := tex.(*Texture); !ok {
		logx.Logger().Warn("software: destroy skipped", "err", transient.ErrForeignTexture)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live--
}

// Live returns the number of textures alive.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

var _ transient.Factory = (*Factory)(nil)
