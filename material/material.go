// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package material tracks the materials of a scene and moves their GPU side
// effects onto the thread owning the graphics context.
package material

import (
	"errors"
	"fmt"
	"sync"

	"github.com/devblok/korusync/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// package errors
var (
	ErrNotAttached = errors.New("material: not attached")
	ErrUnknownOp   = errors.New("material: unknown operation")
)

// Material is a GPU-bindable object. Attach and Detach are only valid on
// the thread owning the graphics context. Materials with the same ID are
// the same material.
type Material interface {
	ID() string
	Attach() error
	Detach() error
}

// Properties are the shading parameters of a Standard material.
type Properties struct {
	Diffuse   glm.Vec4
	Specular  glm.Vec4
	Shininess float32
}

// Uniform is the block a Standard material uploads for its program.
type Uniform struct {
	Diffuse   glm.Vec4
	Specular  glm.Vec4
	Shininess glm.Vec4
}

// DefaultProperties is a plain white, slightly shiny surface.
var DefaultProperties = Properties{
	Diffuse:   glm.Vec4{1, 1, 1, 1},
	Specular:  glm.Vec4{0.5, 0.5, 0.5, 1},
	Shininess: 16,
}

// NewStandard creates a material with a random id.
func NewStandard(dev gfx.Device, src gfx.ProgramSource, props Properties) *Standard {
	return newStandard(uuid.New(), dev, src, props)
}

// NewNamedStandard creates a material whose id is derived from its name,
// so materials created from the same name are the same material.
func NewNamedStandard(dev gfx.Device, src gfx.ProgramSource, props Properties) *Standard {
	return newStandard(uuid.NewSHA1(namespace, []byte(src.Name)), dev, src, props)
}

var namespace = uuid.MustParse("6f1d3c2e-5a0b-4c8e-9d7f-2b6a1e4c9f30")

func newStandard(id uuid.UUID, dev gfx.Device, src gfx.ProgramSource, props Properties) *Standard {
	return &Standard{
		id:     id,
		device: dev,
		source: src,
		props:  props,
	}
}

// Standard is a material backed by one shader program. Attach and Detach
// are reference counted, the program lives while the count is positive.
type Standard struct {
	id     uuid.UUID
	device gfx.Device
	source gfx.ProgramSource

	mutex   sync.RWMutex
	props   Properties
	program gfx.Program
	refs    int
}

// ID implements Material.
func (s *Standard) ID() string {
	return s.id.String()
}

// Name returns the name of the program source.
func (s *Standard) Name() string {
	return s.source.Name
}

func (s *Standard) String() string {
	return fmt.Sprintf("%s(%s)", s.source.Name, s.id)
}

// SetProperties replaces the shading parameters. Safe from any goroutine.
func (s *Standard) SetProperties(props Properties) {
	s.mutex.Lock()
	s.props = props
	s.mutex.Unlock()
}

// Properties returns the shading parameters.
func (s *Standard) Properties() Properties {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.props
}

// Uniform returns the values to upload for the program.
func (s *Standard) Uniform() Uniform {
	props := s.Properties()
	return Uniform{
		Diffuse:   props.Diffuse,
		Specular:  props.Specular,
		Shininess: glm.Vec4{props.Shininess, 0, 0, 0},
	}
}

// Attach compiles the program on first use.
func (s *Standard) Attach() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.refs == 0 {
		program, err := s.device.CompileProgram(s.source)
		if err != nil {
			return fmt.Errorf("material %s: attach: %w", s.source.Name, err)
		}
		s.program = program
	}
	s.refs++
	return nil
}

// Detach releases the program once every Attach has been matched.
func (s *Standard) Detach() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.refs == 0 {
		return fmt.Errorf("material %s: detach: %w", s.source.Name, ErrNotAttached)
	}
	s.refs--
	if s.refs == 0 {
		s.program.Release()
		s.program = nil
	}
	return nil
}

// Attached reports whether the material currently holds a program.
func (s *Standard) Attached() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.program != nil
}

// Program returns the compiled program, nil when detached.
func (s *Standard) Program() gfx.Program {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.program
}

// Release frees the program whatever the attach count is.
// Like Detach, it must run on the owning thread.
func (s *Standard) Release() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.program != nil {
		s.program.Release()
		s.program = nil
	}
	s.refs = 0
}
