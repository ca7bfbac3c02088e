// Package crosscompile turns a validated pass stage into source or binary
// for one shading dialect.
//
// Before translation every stage input, output, block and sampled image is
// renamed to a fixed convention, so a back-end can locate resources in the
// generated code without knowing how the shader author spelled them:
//
//	vertex inputs            ATTRIBUTE_<location>
//	varyings                 TEXCOORD_<location>
//	fragment outputs         TARGET_<location>
//	uniform block            UBO_VERTEX, UBO_FRAGMENT
//	push constant block      PUSH_VERTEX, PUSH_FRAGMENT
//	textures                 TEXTURE_<binding>
//	samplers                 SAMPLER_<binding>
//	flattened block members  UBO_<member>, PUSH_<member>
package crosscompile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/shaderchain/semantics"
)

// Dialect selects the translator back-end.
type Dialect uint8

const (
	SPIRV Dialect = iota
	GLSL
	HLSL
	MSL
)

func (d Dialect) String() string {
	switch d {
	case SPIRV:
		return "spirv"
	case GLSL:
		return "glsl"
	case HLSL:
		return "hlsl"
	case MSL:
		return "msl"
	}
	return fmt.Sprintf("Dialect(%d)", d)
}

// ParseDialect maps a dialect name to its value.
func ParseDialect(name string) (Dialect, bool) {
	for d := SPIRV; d <= MSL; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}

// PushBinding is the uniform buffer binding that carries push constants on
// targets without native push constant support.
const PushBinding = 16

// EntryPoint is the entry point name every pass stage uses.
const EntryPoint = "main"

// ErrFlatten is returned when a block cannot be split into plain uniforms.
var ErrFlatten = errors.New("crosscompile: cannot flatten block")

// Options configure Translate.
type Options struct {
	Dialect Dialect

	// GLSLVersion defaults to GLSL 3.30 core.
	GLSLVersion glsl.Version

	// SPIRVVersion defaults to SPIR-V 1.3.
	SPIRVVersion spirv.Version

	// Flatten replaces the uniform and push blocks with one plain uniform
	// per member. Only the GLSL dialect honors it.
	Flatten bool

	// PushAsUniform moves the push constant block into a uniform buffer
	// at PushBinding.
	PushAsUniform bool

	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Block identifies the buffer a flattened uniform was taken from.
type Block uint8

const (
	BlockUBO Block = iota
	BlockPush
)

func (b Block) String() string {
	if b == BlockPush {
		return "push"
	}
	return "ubo"
}

// FlatUniform describes one plain uniform produced by flattening.
type FlatUniform struct {
	Block  Block
	Member string
	Offset uint32
	Shape  semantics.Shape
}

// Output is one translated stage.
type Output struct {
	Dialect Dialect
	Stage   ir.ShaderStage

	// Source holds GLSL, HLSL or MSL text.
	Source string

	// SPIRV holds the little endian words of a SPIR-V module.
	SPIRV []uint32

	// Bindings maps emitted resource names to binding numbers.
	Bindings map[string]uint32

	// Uniforms maps emitted names of flattened block members.
	Uniforms map[string]FlatUniform
}

// TranslateError reports a translator failure.
type TranslateError struct {
	Dialect Dialect
	Stage   ir.ShaderStage
	Err     error
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("crosscompile: %s %s stage: %v", e.Dialect, stageName(e.Stage), e.Err)
}

func (e *TranslateError) Unwrap() error { return e.Err }

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	}
	return "compute"
}

// Translate renames the stage's resources on a copy of m and runs the
// translator for opts.Dialect. Translator panics are reported as errors.
func Translate(m *ir.Module, stage ir.ShaderStage, opts Options) (out *Output, err error) {
	log := opts.logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error("crosscompile: translator panic", "dialect", opts.Dialect, "stage", stageName(stage), "panic", r)
			out, err = nil, &TranslateError{Dialect: opts.Dialect, Stage: stage, Err: fmt.Errorf("translator panic: %v", r)}
		}
	}()

	fail := func(err error) (*Output, error) {
		log.Error("crosscompile: translation failed", "dialect", opts.Dialect, "stage", stageName(stage), "err", err)
		return nil, &TranslateError{Dialect: opts.Dialect, Stage: stage, Err: err}
	}

	work := cloneModule(m)
	rn, err := renameResources(work, stage)
	if err != nil {
		return fail(err)
	}
	if opts.PushAsUniform && rn.push != nil && !(opts.Dialect == GLSL && opts.Flatten) {
		pushToUniform(work, *rn.push)
	}

	out = &Output{
		Dialect:  opts.Dialect,
		Stage:    stage,
		Bindings: make(map[string]uint32),
	}

	switch opts.Dialect {
	case SPIRV:
		err = translateSPIRV(work, opts, out)
	case GLSL:
		err = translateGLSL(work, rn, opts, out)
	case HLSL:
		err = translateHLSL(work, opts, out)
	case MSL:
		err = translateMSL(work, opts, out)
	default:
		err = fmt.Errorf("unknown dialect %d", opts.Dialect)
	}
	if err != nil {
		return fail(err)
	}
	if opts.Dialect != GLSL {
		recordBindings(work, out.Bindings)
	}
	log.Debug("crosscompile: translated stage", "dialect", opts.Dialect, "stage", stageName(stage),
		"bindings", len(out.Bindings), "uniforms", len(out.Uniforms))
	return out, nil
}

// recordBindings lists every bound resource of the renamed module under
// its conventional name.
func recordBindings(m *ir.Module, dst map[string]uint32) {
	for _, g := range m.GlobalVariables {
		if g.Binding != nil {
			dst[g.Name] = g.Binding.Binding
		}
	}
}
