// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

// Scope is an open profiling scope. End it with defer so the command stream
// stays balanced on every return path:
//
//	scope := cmdbuf.BeginScope(cb, "Bloom")
//	defer scope.End()
type Scope struct {
	cb    *CommandBuffer
	name  string
	ended bool
}

// BeginScope records BeginSample(name) and returns the open scope.
func BeginScope(cb *CommandBuffer, name string) *Scope {
	cb.BeginSample(name)
	return &Scope{cb: cb, name: name}
}

// End records EndSample once. Later calls do nothing.
func (s *Scope) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.cb.EndSample(s.name)
}
