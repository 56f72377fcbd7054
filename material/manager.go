// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package material

import "github.com/devblok/korusync/frame"

// Offerer accepts tasks for the thread owning the graphics context.
type Offerer interface {
	OfferTask(frame.Task)
}

// OffererFunc adapts a function, typically (*frame.Queue).Submit, to an Offerer.
type OffererFunc func(frame.Task)

// OfferTask implements Offerer.
func (f OffererFunc) OfferTask(t frame.Task) {
	f(t)
}

// NewManager creates a manager offering its tasks to o. Each scene should
// have its own manager.
func NewManager(o Offerer) *Manager {
	return &Manager{
		registry: NewRegistry(),
		offerer:  o,
	}
}

// Manager manages materials in the context of a scene. It can be used from
// any goroutine: membership changes immediately, the GPU side follows when
// the owning thread runs the offered tasks.
type Manager struct {
	registry *Registry
	offerer  Offerer
}

// AddMaterial registers m and offers its attach. If the caller is the
// owning thread the attach has run when this returns.
func (m *Manager) AddMaterial(mat Material) {
	m.registry.Register(mat)
	m.offerer.OfferTask(Task{Op: OpAttach, Material: mat})
}

// RemoveMaterial unregisters m and offers its detach. A pending attach is
// not cancelled, both run in order.
func (m *Manager) RemoveMaterial(mat Material) {
	m.registry.Unregister(mat)
	m.offerer.OfferTask(Task{Op: OpDetach, Material: mat})
}

// HasMaterial reports whether mat is registered.
func (m *Manager) HasMaterial(mat Material) bool {
	return m.registry.Contains(mat)
}

// Materials returns the registered materials ordered by id.
func (m *Manager) Materials() []Material {
	return m.registry.Materials()
}

// Len returns the number of registered materials.
func (m *Manager) Len() int {
	return m.registry.Len()
}
