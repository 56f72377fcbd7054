// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package material

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/devblok/korusync/gfx"
	"github.com/devblok/korusync/utility/kar"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"golang.org/x/exp/mmap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for material definitions that cannot be used.
var ErrInvalidDefinition = errors.New("material: invalid definition")

// Location of definitions inside a material pack.
const (
	DefinitionDir    = "materials/"
	DefinitionSuffix = ".yaml"
)

// Definition is the on-disk description of a Standard material.
// Shader paths are relative to the root of the pack.
type Definition struct {
	Name   string `yaml:"name"`
	Shader struct {
		Vertex   string `yaml:"vertex"`
		Fragment string `yaml:"fragment"`
	} `yaml:"shader"`
	Diffuse   []float32 `yaml:"diffuse,omitempty"`
	Specular  []float32 `yaml:"specular,omitempty"`
	Shininess *float32  `yaml:"shininess,omitempty"`
}

// Properties converts the definition values, unset ones take
// DefaultProperties.
func (d Definition) Properties() (Properties, error) {
	props := DefaultProperties
	var err error
	if d.Diffuse != nil {
		if props.Diffuse, err = vec4(d.Diffuse); err != nil {
			return Properties{}, fmt.Errorf("%w: %s: diffuse: %v", ErrInvalidDefinition, d.Name, err)
		}
	}
	if d.Specular != nil {
		if props.Specular, err = vec4(d.Specular); err != nil {
			return Properties{}, fmt.Errorf("%w: %s: specular: %v", ErrInvalidDefinition, d.Name, err)
		}
	}
	if d.Shininess != nil {
		props.Shininess = *d.Shininess
	}
	return props, nil
}

// vec4 accepts rgb or rgba, alpha defaults to 1.
func vec4(v []float32) (glm.Vec4, error) {
	switch len(v) {
	case 3:
		return glm.Vec4{v[0], v[1], v[2], 1}, nil
	case 4:
		return glm.Vec4{v[0], v[1], v[2], v[3]}, nil
	default:
		return glm.Vec4{}, fmt.Errorf("expected 3 or 4 components, got %d", len(v))
	}
}

// NewLibrary creates a library over an opened pack. Programs are compiled
// on dev when the materials attach.
func NewLibrary(ar *kar.Archive, dev gfx.Device) *Library {
	return &Library{
		archive: ar,
		device:  dev,
		loaded:  make(map[string]*Standard),
	}
}

// OpenLibrary memory maps the pack at file and creates a library over it.
func OpenLibrary(file string, dev gfx.Device) (*Library, error) {
	r, err := mmap.Open(file)
	if err != nil {
		return nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	lib := NewLibrary(ar, dev)
	lib.closer = r
	return lib, nil
}

// Library loads Standard materials from a kar pack. A material is loaded
// once, later loads return the same instance. Its id is derived from the
// name in the pack, so it is stable across loads of the same pack.
type Library struct {
	archive *kar.Archive
	device  gfx.Device
	closer  io.Closer

	mutex  sync.Mutex
	loaded map[string]*Standard
}

// Names returns the names of the materials defined in the pack.
func (l *Library) Names() []string {
	var names []string
	for _, file := range l.archive.Names() {
		if strings.HasPrefix(file, DefinitionDir) && strings.HasSuffix(file, DefinitionSuffix) {
			name := strings.TrimSuffix(strings.TrimPrefix(file, DefinitionDir), DefinitionSuffix)
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Definition reads the definition of the named material.
func (l *Library) Definition(name string) (Definition, error) {
	raw, err := l.archive.ReadAll(path.Join(DefinitionDir, name+DefinitionSuffix))
	if err != nil {
		return Definition{}, err
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, name, err)
	}
	if def.Name == "" {
		def.Name = name
	}
	return def, nil
}

// LoadMaterial loads the named material and its shader sources.
func (l *Library) LoadMaterial(name string) (*Standard, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if m, ok := l.loaded[name]; ok {
		return m, nil
	}

	def, err := l.Definition(name)
	if err != nil {
		return nil, err
	}
	props, err := def.Properties()
	if err != nil {
		return nil, err
	}
	if def.Shader.Vertex == "" || def.Shader.Fragment == "" {
		return nil, fmt.Errorf("%w: %s: missing shader stage", ErrInvalidDefinition, name)
	}
	vert, err := l.archive.ReadAll(def.Shader.Vertex)
	if err != nil {
		return nil, err
	}
	frag, err := l.archive.ReadAll(def.Shader.Fragment)
	if err != nil {
		return nil, err
	}

	// The id follows the pack name, definitions may share a display name.
	id := uuid.NewSHA1(namespace, []byte(name))
	m := newStandard(id, l.device, gfx.ProgramSource{
		Name:     def.Name,
		Vertex:   string(vert),
		Fragment: string(frag),
	}, props)
	l.loaded[name] = m
	return m, nil
}

// Load implements gfx.Loader, id is the material name.
func (l *Library) Load(id string) (gfx.Resource, error) {
	m, err := l.LoadMaterial(id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Close unmaps the pack when the library was opened from a file.
func (l *Library) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
