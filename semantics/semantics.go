// Package semantics defines the fixed vocabulary of roles a filter shader
// can bind its uniforms and textures to.
//
// Scalar semantics are matched against uniform and push-constant block
// member names ("MVP", "OutputSize", ...). Texture semantics are matched
// against sampled texture names ("Source", "PassOutput2", ...) and their
// "Size" companions ("SourceSize", "PassOutputSize2", ...). Per-chain
// aliases for named passes and lookup textures live in a Map.
package semantics

import (
	"strconv"
	"strings"
)

// ID identifies a scalar or vector semantic.
type ID uint8

// Built-in scalar semantics.
const (
	MVP ID = iota
	OutputSize
	FinalViewportSize
	FrameCount
	FrameDirection
	Rotation
	TotalSubFrames
	CurrentSubFrame

	// FloatParameter marks a user tunable parameter. It never appears in
	// a Reflection's Semantics map; parameters are keyed by index instead.
	FloatParameter

	NumBuiltins = FloatParameter
)

// Shape is the type a semantic's member must be declared with.
type Shape uint8

// Shapes accepted by the catalog.
const (
	ShapeMat4 Shape = iota + 1 // mat4x4<f32>
	ShapeVec4                  // vec4<f32>
	ShapeUint                  // u32
	ShapeInt                   // i32
	ShapeFloat                 // f32
)

// Components returns the number of 32-bit components of the shape.
func (s Shape) Components() int {
	switch s {
	case ShapeMat4:
		return 16
	case ShapeVec4:
		return 4
	case ShapeUint, ShapeInt, ShapeFloat:
		return 1
	}
	return 0
}

// Size returns the byte size of the shape.
func (s Shape) Size() int { return s.Components() * 4 }

func (s Shape) String() string {
	switch s {
	case ShapeMat4:
		return "mat4x4<f32>"
	case ShapeVec4:
		return "vec4<f32>"
	case ShapeUint:
		return "u32"
	case ShapeInt:
		return "i32"
	case ShapeFloat:
		return "f32"
	}
	return "invalid"
}

var builtinNames = [...]string{
	MVP:               "MVP",
	OutputSize:        "OutputSize",
	FinalViewportSize: "FinalViewportSize",
	FrameCount:        "FrameCount",
	FrameDirection:    "FrameDirection",
	Rotation:          "Rotation",
	TotalSubFrames:    "TotalSubFrames",
	CurrentSubFrame:   "CurrentSubFrame",
	FloatParameter:    "FloatParameter",
}

var builtinShapes = [...]Shape{
	MVP:               ShapeMat4,
	OutputSize:        ShapeVec4,
	FinalViewportSize: ShapeVec4,
	FrameCount:        ShapeUint,
	FrameDirection:    ShapeInt,
	Rotation:          ShapeUint,
	TotalSubFrames:    ShapeUint,
	CurrentSubFrame:   ShapeUint,
	FloatParameter:    ShapeFloat,
}

// String returns the member name the semantic is matched by.
func (id ID) String() string {
	if int(id) < len(builtinNames) {
		return builtinNames[id]
	}
	return "ID(" + strconv.Itoa(int(id)) + ")"
}

// Shape returns the declared type the semantic requires.
func (id ID) Shape() Shape {
	if int(id) < len(builtinShapes) {
		return builtinShapes[id]
	}
	return 0
}

// Lookup resolves a built-in scalar semantic by member name.
func Lookup(name string) (ID, bool) {
	for id := ID(0); id < NumBuiltins; id++ {
		if builtinNames[id] == name {
			return id, true
		}
	}
	return 0, false
}

// Texture identifies a texture semantic.
type Texture uint8

// Texture semantics.
const (
	// Original is the untouched chain input.
	Original Texture = iota
	// Source is the previous pass output, or Original for pass 0.
	Source
	// OriginalHistory is the input of earlier frames; index 0 is Original.
	OriginalHistory
	// PassOutput is the output of an earlier pass in the same frame.
	PassOutput
	// PassFeedback is the output of a pass in the previous frame.
	PassFeedback
	// User is a lookup texture supplied by the preset.
	User

	NumTextures
)

// MaxHistory is the deepest OriginalHistory index a chain may read.
const MaxHistory = 128

var textureNames = [NumTextures]string{
	Original:        "Original",
	Source:          "Source",
	OriginalHistory: "OriginalHistory",
	PassOutput:      "PassOutput",
	PassFeedback:    "PassFeedback",
	User:            "User",
}

func (t Texture) String() string {
	if t < NumTextures {
		return textureNames[t]
	}
	return "Texture(" + strconv.Itoa(int(t)) + ")"
}

// Arrayed reports whether the semantic takes an index suffix.
func (t Texture) Arrayed() bool {
	switch t {
	case OriginalHistory, PassOutput, PassFeedback, User:
		return true
	}
	return false
}

// TextureRef names one texture: a semantic plus its array index.
type TextureRef struct {
	Semantic Texture
	Index    int
}

// Name returns the built-in texture name, e.g. "PassOutput2".
func (r TextureRef) Name() string {
	if !r.Semantic.Arrayed() {
		return r.Semantic.String()
	}
	return r.Semantic.String() + strconv.Itoa(r.Index)
}

// SizeName returns the built-in name of the size companion, e.g.
// "PassOutputSize2".
func (r TextureRef) SizeName() string {
	if !r.Semantic.Arrayed() {
		return r.Semantic.String() + "Size"
	}
	return r.Semantic.String() + "Size" + strconv.Itoa(r.Index)
}

// ParseTexture resolves a built-in texture name.
func ParseTexture(name string) (TextureRef, bool) {
	return parseTexture(name, "")
}

// ParseTextureSize resolves a built-in size companion name.
func ParseTextureSize(name string) (TextureRef, bool) {
	return parseTexture(name, "Size")
}

func parseTexture(name, suffix string) (TextureRef, bool) {
	// Longest prefixes first: "OriginalHistory" before "Original".
	for _, t := range [...]Texture{OriginalHistory, PassOutput, PassFeedback, User, Original, Source} {
		prefix := textureNames[t] + suffix
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if !t.Arrayed() {
			if rest == "" {
				return TextureRef{Semantic: t}, true
			}
			continue
		}
		idx, ok := parseIndex(rest)
		if !ok {
			continue
		}
		return TextureRef{Semantic: t, Index: idx}, true
	}
	return TextureRef{}, false
}

func parseIndex(s string) (int, bool) {
	if s == "" || len(s) > 4 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
