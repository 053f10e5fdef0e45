// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package transient

import "github.com/gogpu/postfx/shaderprop"

// Tracker is an [Allocator] that remembers which targets were allocated
// through it and are still held, so a command buffer that fails partway can
// give them back.
//
// Backends reset a Tracker before each command buffer and call Rollback when
// playback fails. Tracker is not safe for concurrent use.
type Tracker struct {
	alloc Allocator
	held  []shaderprop.ID
}

// NewTracker wraps alloc.
func NewTracker(alloc Allocator) *Tracker {
	return &Tracker{alloc: alloc}
}

// Allocate allocates through the wrapped allocator and records id.
func (t *Tracker) Allocate(id shaderprop.ID, desc Descriptor, filter FilterMode) (Handle, error) {
	h, err := t.alloc.Allocate(id, desc, filter)
	if err != nil {
		return h, err
	}
	if t.index(id) < 0 {
		t.held = append(t.held, id)
	}
	return h, nil
}

// Release releases through the wrapped allocator and forgets id.
func (t *Tracker) Release(id shaderprop.ID) error {
	if err := t.alloc.Release(id); err != nil {
		return err
	}
	if i := t.index(id); i >= 0 {
		t.held = append(t.held[:i], t.held[i+1:]...)
	}
	return nil
}

// Held returns the IDs allocated since the last Reset and not released.
func (t *Tracker) Held() []shaderprop.ID {
	return append([]shaderprop.ID(nil), t.held...)
}

// Rollback releases every held target, newest first, and returns how many
// were released.
func (t *Tracker) Rollback() int {
	n := 0
	for i := len(t.held) - 1; i >= 0; i-- {
		if t.alloc.Release(t.held[i]) == nil {
			n++
		}
	}
	t.held = t.held[:0]
	return n
}

// Reset forgets held targets without releasing them.
func (t *Tracker) Reset() { t.held = t.held[:0] }

func (t *Tracker) index(id shaderprop.ID) int {
	for i, h := range t.held {
		if h == id {
			return i
		}
	}
	return -1
}

var _ Allocator = (*Tracker)(nil)
