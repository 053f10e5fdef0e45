// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cmdbuf

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// BackendFactory creates a new backend instance. Backends that open a
// device report failure through the error.
type BackendFactory func() (Backend, error)

// ErrUnknownBackend is returned by NewBackend for unregistered names.
var ErrUnknownBackend = errors.New("cmdbuf: unknown backend")

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// Register makes a backend available by name, following the database/sql
// driver pattern. It is typically called from init() in backend packages.
//
// Register panics if factory is nil or if name is already registered.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("cmdbuf: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("cmdbuf: Register called twice for " + name)
	}
	backends[name] = factory
}

// Unregister removes a backend. It is a no-op for unknown names.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// NewBackend creates a backend by registered name.
//
//	import _ "github.com/gogpu/postfx/backend/software"
//
//	b, err := cmdbuf.NewBackend("software")
func NewBackend(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownBackend, name)
	}
	b, err := factory()
	if err != nil {
		return nil, fmt.Errorf("cmdbuf: create backend %q: %w", name, err)
	}
	return b, nil
}

// MustBackend is like NewBackend but panics on error.
func MustBackend(name string) Backend {
	b, err := NewBackend(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Backends returns the registered names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}
