// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package material

import (
	"sort"
	"sync"
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		materials: make(map[string]Material),
	}
}

// Registry is a set of materials keyed by id, safe for concurrent use.
type Registry struct {
	mutex     sync.RWMutex
	materials map[string]Material
}

// Register inserts m. Registering a present material is a no-op.
func (r *Registry) Register(m Material) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.materials[m.ID()]; !ok {
		r.materials[m.ID()] = m
	}
}

// Unregister removes m if present.
func (r *Registry) Unregister(m Material) {
	r.mutex.Lock()
	delete(r.materials, m.ID())
	r.mutex.Unlock()
}

// Contains reports whether m is registered.
func (r *Registry) Contains(m Material) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.materials[m.ID()]
	return ok
}

// Len returns the number of registered materials.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.materials)
}

// Materials returns the registered materials ordered by id.
func (r *Registry) Materials() []Material {
	r.mutex.RLock()
	list := make([]Material, 0, len(r.materials))
	for _, m := range r.materials {
		list = append(list, m)
	}
	r.mutex.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID() < list[j].ID()
	})
	return list
}
