// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package headless implements a gfx.Device that keeps track of programs
// without talking to a GPU. It is useful for tools and tests that need the
// threading contract of a real device but no graphics driver.
package headless

import (
	"errors"
	"sync"

	"github.com/devblok/korusync/gfx"
)

// ErrWrongThread is returned when the device is used outside the owning thread.
var ErrWrongThread = errors.New("headless: device used off the owning thread")

// NewDevice creates a device. If owner is not nil every call is checked
// against it and fails with ErrWrongThread when it returns false.
func NewDevice(owner func() bool) *Device {
	return &Device{
		owner: owner,
		live:  make(map[*program]struct{}),
	}
}

// Device is a headless gfx.Device.
type Device struct {
	owner func() bool

	mutex    sync.Mutex
	live     map[*program]struct{}
	compiled int
	released int
}

// CompileProgram implements gfx.Device.
func (d *Device) CompileProgram(src gfx.ProgramSource) (gfx.Program, error) {
	if d.owner != nil && !d.owner() {
		return nil, ErrWrongThread
	}
	if src.Vertex == "" || src.Fragment == "" {
		return nil, gfx.ErrEmptySource
	}

	p := &program{device: d, name: src.Name}
	d.mutex.Lock()
	d.live[p] = struct{}{}
	d.compiled++
	d.mutex.Unlock()
	return p, nil
}

// Live returns the number of programs compiled and not yet released.
func (d *Device) Live() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.live)
}

// Compiled returns the number of programs ever compiled.
func (d *Device) Compiled() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.compiled
}

// Released returns the number of programs released.
func (d *Device) Released() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.released
}

// release panics off the owning thread, Release has no error to return.
func (d *Device) release(p *program) {
	if d.owner != nil && !d.owner() {
		panic(ErrWrongThread)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.live[p]; !ok {
		return
	}
	delete(d.live, p)
	d.released++
}

type program struct {
	device *Device
	name   string
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Release() {
	p.device.release(p)
}
