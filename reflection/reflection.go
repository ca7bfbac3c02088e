// Package reflection maps the resources a pair of compiled filter shader
// stages declares onto the semantics catalog.
//
// The rules are strict: a filter pass may use one uniform block and one
// push constant block, sampled 2D textures and their samplers. Every
// active block member and every texture must resolve to a known
// semantic, so typos in shader sources fail the build instead of being
// silently ignored.
package reflection

import "github.com/gogpu/shaderchain/semantics"

// Limits of the binding model.
const (
	// MaxBindings bounds binding numbers in group 0.
	MaxBindings = 16

	// MaxPushSize is the push constant budget every device guarantees.
	MaxPushSize = 128

	// ResourceGroup holds the uniform block and textures.
	ResourceGroup = 0

	// SamplerGroup holds the sampler of each texture, at the texture's
	// binding number.
	SamplerGroup = 1
)

// StageMask is a set of shader stages.
type StageMask uint8

// Stage bits.
const (
	StageVertex StageMask = 1 << iota
	StageFragment

	StageAll = StageVertex | StageFragment
)

// Has reports whether every stage of o is in m.
func (m StageMask) Has(o StageMask) bool { return m&o == o }

func (m StageMask) String() string {
	switch m {
	case 0:
		return "none"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageAll:
		return "vertex|fragment"
	}
	return "invalid"
}

// Buffer locates one scalar or vector semantic inside the uniform and
// push constant blocks.
type Buffer struct {
	UBOOffset  uint32
	PushOffset uint32
	UBOActive  bool
	PushActive bool
	Components int
}

// Active reports whether the semantic is read by either block.
func (b Buffer) Active() bool { return b.UBOActive || b.PushActive }

// TextureBinding locates one texture semantic and its size companion.
type TextureBinding struct {
	// Binding is the group 0 binding number of the texture.
	Binding uint32
	Stages  StageMask

	// Sampled is set when the shader samples the texture. A binding can
	// exist only for its size companion.
	Sampled bool

	// Sampler is set when a group 1 sampler with the same binding number
	// is declared.
	Sampler bool

	SizeUBOOffset  uint32
	SizePushOffset uint32
	SizeUBOActive  bool
	SizePushActive bool
}

// SizeActive reports whether the size companion is read.
func (t TextureBinding) SizeActive() bool { return t.SizeUBOActive || t.SizePushActive }

// Reflection is the resource layout of one filter pass.
type Reflection struct {
	UBOBinding uint32
	UBOSize    uint32
	UBOStages  StageMask

	PushSize   uint32
	PushStages StageMask

	// Semantics is indexed by semantics.ID.
	Semantics [semantics.NumBuiltins]Buffer

	// Textures is indexed by semantics.Texture, then by array index.
	// Holes in arrayed semantics have neither Sampled nor an active size.
	Textures [semantics.NumTextures][]TextureBinding

	// Parameters is keyed by chain parameter index and holds only the
	// parameters the shader reads.
	Parameters map[int]Buffer
}

// Texture returns the binding of ref, if the shader uses it.
func (r *Reflection) Texture(ref semantics.TextureRef) (TextureBinding, bool) {
	list := r.Textures[ref.Semantic]
	if ref.Index < 0 || ref.Index >= len(list) {
		return TextureBinding{}, false
	}
	t := list[ref.Index]
	return t, t.Sampled || t.SizeActive()
}

// MaxIndex returns the highest used array index of an arrayed texture
// semantic, or -1.
func (r *Reflection) MaxIndex(sem semantics.Texture) int {
	list := r.Textures[sem]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Sampled || list[i].SizeActive() {
			return i
		}
	}
	return -1
}

// SampledTextures returns every sampled texture with its reference, in
// semantic then index order.
func (r *Reflection) SampledTextures() []SampledTexture {
	var out []SampledTexture
	for sem := semantics.Texture(0); sem < semantics.NumTextures; sem++ {
		for i, t := range r.Textures[sem] {
			if t.Sampled {
				out = append(out, SampledTexture{Ref: semantics.TextureRef{Semantic: sem, Index: i}, Binding: t})
			}
		}
	}
	return out
}

// SampledTexture pairs a texture reference with its binding.
type SampledTexture struct {
	Ref     semantics.TextureRef
	Binding TextureBinding
}
