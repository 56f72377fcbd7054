// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
package gfx

import "errors"

// ErrEmptySource is returned by devices asked to compile a program
// with a missing shader stage.
var ErrEmptySource = errors.New("gfx: empty shader source")

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Resource describes a rendering resource that can be uniquely identified.
type Resource interface {
	Releasable

	// ID returns a resource id that uniquely identifies it.
	ID() string
}

// Loader describes a resource loader mechanism.
type Loader interface {

	// Load tries to find and load the resource
	// asociated with the provided id.
	Load(id string) (Resource, error)
}

// ProgramSource holds the shader stages of a program.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
}

// Program is a compiled shader program living on the device.
type Program interface {
	Releasable

	// Name returns the name of the source the program was compiled from.
	Name() string
}

// Device is the part of the graphics context that materials attach through.
// All of its methods must be called from the thread owning the context.
type Device interface {

	// CompileProgram compiles and links the given source.
	CompileProgram(src ProgramSource) (Program, error)
}
