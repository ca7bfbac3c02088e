package semantics

import (
	"errors"
	"fmt"
)

// ErrDuplicateAlias is returned when an alias key is registered twice.
var ErrDuplicateAlias = errors.New("semantics: duplicate alias")

// Map is the per-chain alias table consulted by reflection in addition
// to the built-in names. A Map is rebuilt for every chain build and is
// not safe for concurrent mutation.
type Map struct {
	textures     map[string]TextureRef
	textureSizes map[string]TextureRef
	parameters   map[string]int
}

// NewMap returns an empty alias table.
func NewMap() *Map {
	return &Map{
		textures:     make(map[string]TextureRef),
		textureSizes: make(map[string]TextureRef),
		parameters:   make(map[string]int),
	}
}

// AddPass registers the four aliases of a named pass: <name>,
// <name>Size, <name>Feedback and <name>FeedbackSize.
func (m *Map) AddPass(name string, pass int) error {
	out := TextureRef{Semantic: PassOutput, Index: pass}
	fb := TextureRef{Semantic: PassFeedback, Index: pass}
	if err := addUnique(m.textures, name, out); err != nil {
		return err
	}
	if err := addUnique(m.textureSizes, name+"Size", out); err != nil {
		return err
	}
	if err := addUnique(m.textures, name+"Feedback", fb); err != nil {
		return err
	}
	return addUnique(m.textureSizes, name+"FeedbackSize", fb)
}

// AddLookup registers <id> and <id>Size for the lookup texture at index.
func (m *Map) AddLookup(id string, index int) error {
	ref := TextureRef{Semantic: User, Index: index}
	if err := addUnique(m.textures, id, ref); err != nil {
		return err
	}
	return addUnique(m.textureSizes, id+"Size", ref)
}

// AddParameter registers a float parameter id at its index in the chain
// parameter list.
func (m *Map) AddParameter(id string, index int) error {
	if _, ok := m.parameters[id]; ok {
		return fmt.Errorf("%w: parameter %q", ErrDuplicateAlias, id)
	}
	m.parameters[id] = index
	return nil
}

// Texture resolves a sampled texture name, aliases first.
func (m *Map) Texture(name string) (TextureRef, bool) {
	if m != nil {
		if ref, ok := m.textures[name]; ok {
			return ref, true
		}
	}
	return ParseTexture(name)
}

// TextureSize resolves a size companion name, aliases first.
func (m *Map) TextureSize(name string) (TextureRef, bool) {
	if m != nil {
		if ref, ok := m.textureSizes[name]; ok {
			return ref, true
		}
	}
	return ParseTextureSize(name)
}

// Parameter resolves a float parameter id to its chain index.
func (m *Map) Parameter(id string) (int, bool) {
	if m == nil {
		return 0, false
	}
	idx, ok := m.parameters[id]
	return idx, ok
}

// Len returns the number of registered aliases of all kinds.
func (m *Map) Len() int {
	return len(m.textures) + len(m.textureSizes) + len(m.parameters)
}

func addUnique(dst map[string]TextureRef, key string, ref TextureRef) error {
	if _, ok := dst[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAlias, key)
	}
	dst[key] = ref
	return nil
}
