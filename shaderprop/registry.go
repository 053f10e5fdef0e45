// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shaderprop maps symbolic shader property names to numeric IDs.
//
// Property IDs are the handles used to bind textures, matrices and uniform
// values into recorded GPU commands. Resolving a name costs a map lookup
// under a lock, so hot paths resolve their names once through a [Constants]
// table and reuse the IDs every frame.
package shaderprop

import (
	"fmt"
	"sync"
)

// ID is an opaque handle for a named shader property.
// The zero value is [None] and never refers to a registered property.
type ID int32

// None is the invalid property ID.
const None ID = 0

// IsValid reports whether the ID refers to a registered property.
func (id ID) IsValid() bool {
	return id > None
}

// String returns the registered property name, or a placeholder for
// unregistered IDs.
func (id ID) String() string {
	if name, ok := Name(id); ok {
		return name
	}
	return fmt.Sprintf("ID(%d)", int32(id))
}

// Process-wide registry state. IDs are assigned in registration order
// starting at 1 and are never reused.
var (
	registryMu sync.RWMutex
	ids        = make(map[string]ID)
	names      = []string{""}
)

// PropertyToID returns the ID for name, registering it on first use.
// The same name always maps to the same ID for the lifetime of the process.
//
// PropertyToID is safe for concurrent use.
func PropertyToID(name string) ID {
	registryMu.RLock()
	id, ok := ids[name]
	registryMu.RUnlock()
	if ok {
		return id
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if id, ok := ids[name]; ok {
		return id
	}
	// #nosec G115 -- property count is bounded by the shader vocabulary
	id = ID(len(names))
	ids[name] = id
	names = append(names, name)
	return id
}

// Name returns the property name registered for id.
func Name(id ID) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if id <= None || int(id) >= len(names) {
		return "", false
	}
	return names[id], true
}

// Count returns the number of registered properties.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(names) - 1
}
