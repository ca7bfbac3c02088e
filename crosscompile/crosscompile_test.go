package crosscompile

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decls = `
struct UBO {
	MVP: mat4x4<f32>,
	OutputSize: vec4<f32>,
	SourceSize: vec4<f32>,
}

struct Push {
	FrameCount: u32,
	Gamma: f32,
}

@group(0) @binding(0) var<uniform> ubo: UBO;
var<immediate> params: Push;
@group(0) @binding(2) var Source: texture_2d<f32>;
@group(1) @binding(2) var SourceSampler: sampler;
`

const vertexSrc = decls + `
struct VSOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@vertex
fn main(@location(0) pos: vec4<f32>, @location(1) uv: vec2<f32>) -> VSOut {
	return VSOut(ubo.MVP * pos, uv);
}
`

const fragmentSrc = decls + `
@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	let c = textureSample(Source, SourceSampler, uv);
	return c * params.Gamma * ubo.SourceSize.x + vec4<f32>(f32(params.FrameCount));
}
`

func lower(t *testing.T, src string) *ir.Module {
	t.Helper()
	ast, err := naga.Parse(src)
	require.NoError(t, err)
	m, err := naga.LowerWithSource(ast, src)
	require.NoError(t, err)
	return m
}

func TestTranslateGLSLFlatten(t *testing.T) {
	fs := lower(t, fragmentSrc)
	out, err := Translate(fs, ir.StageFragment, Options{Dialect: GLSL, Flatten: true})
	require.NoError(t, err)

	assert.NotContains(t, out.Source, "_group_0_binding_0")
	assert.Contains(t, out.Source, "UBO_SourceSize")
	assert.Contains(t, out.Source, "PUSH_Gamma")

	byMember := make(map[string]FlatUniform)
	for name, u := range out.Uniforms {
		assert.True(t, strings.HasPrefix(name, FlatUBOPrefix) || strings.HasPrefix(name, FlatPushPrefix), name)
		byMember[u.Member] = u
	}
	assert.Equal(t, FlatUniform{Block: BlockUBO, Member: "SourceSize", Offset: 80, Shape: semantics.ShapeVec4}, byMember["SourceSize"])
	assert.Equal(t, FlatUniform{Block: BlockPush, Member: "Gamma", Offset: 4, Shape: semantics.ShapeFloat}, byMember["Gamma"])
	assert.Equal(t, FlatUniform{Block: BlockPush, Member: "FrameCount", Offset: 0, Shape: semantics.ShapeUint}, byMember["FrameCount"])
	_, unused := byMember["OutputSize"]
	assert.False(t, unused, "members the stage never reads are not declared")

	found := false
	for name, b := range out.Bindings {
		if strings.HasPrefix(name, TexturePrefix) {
			found = true
			assert.Equal(t, uint32(2), b)
		}
	}
	assert.True(t, found, "texture binding recorded")
}

func TestTranslateBindingsRoundTrip(t *testing.T) {
	vs := lower(t, vertexSrc)
	fs := lower(t, fragmentSrc)
	names := semantics.NewMap()
	require.NoError(t, names.AddParameter("Gamma", 0))
	refl, err := reflection.Reflect(vs, fs, names, 0)
	require.NoError(t, err)

	want := make(map[uint32]bool)
	for _, tex := range refl.SampledTextures() {
		want[tex.Binding.Binding] = true
	}

	for _, d := range []Dialect{SPIRV, GLSL, HLSL, MSL} {
		t.Run(d.String(), func(t *testing.T) {
			out, err := Translate(fs, ir.StageFragment, Options{Dialect: d, Flatten: true, PushAsUniform: true})
			require.NoError(t, err)
			got := make(map[uint32]bool)
			for name, b := range out.Bindings {
				n, ok := ResourceBinding(name)
				if !ok || !strings.HasPrefix(name, TexturePrefix) {
					continue
				}
				assert.Equal(t, b, n, name)
				got[n] = true
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestTranslateSPIRV(t *testing.T) {
	fs := lower(t, fragmentSrc)
	out, err := Translate(fs, ir.StageFragment, Options{Dialect: SPIRV, PushAsUniform: true})
	require.NoError(t, err)

	require.NotEmpty(t, out.SPIRV)
	assert.Equal(t, uint32(0x07230203), out.SPIRV[0])
	assert.Equal(t, map[string]uint32{
		"UBO_FRAGMENT":  0,
		"PUSH_FRAGMENT": PushBinding,
		"TEXTURE_2":     2,
		"SAMPLER_2":     2,
	}, out.Bindings)
}

func TestTranslateTextDialects(t *testing.T) {
	vs := lower(t, vertexSrc)
	for _, d := range []Dialect{HLSL, MSL} {
		out, err := Translate(vs, ir.StageVertex, Options{Dialect: d, PushAsUniform: true})
		require.NoError(t, err, d.String())
		assert.NotEmpty(t, out.Source, d.String())
		assert.Equal(t, uint32(0), out.Bindings["UBO_VERTEX"])
	}
}

func TestTranslateLeavesInputUntouched(t *testing.T) {
	fs := lower(t, fragmentSrc)
	before := make([]string, len(fs.GlobalVariables))
	for i, g := range fs.GlobalVariables {
		before[i] = g.Name
	}
	exprs := len(fs.EntryPoints[0].Function.Expressions)

	_, err := Translate(fs, ir.StageFragment, Options{Dialect: GLSL, Flatten: true, PushAsUniform: true})
	require.NoError(t, err)

	require.Len(t, fs.GlobalVariables, len(before))
	for i, g := range fs.GlobalVariables {
		assert.Equal(t, before[i], g.Name)
	}
	assert.Len(t, fs.EntryPoints[0].Function.Expressions, exprs)
	for _, g := range fs.GlobalVariables {
		if g.Name == "params" {
			assert.Equal(t, ir.SpaceImmediate, g.Space)
		}
	}
}

func TestRenameInterface(t *testing.T) {
	vs := cloneModule(lower(t, vertexSrc))
	rn, err := renameResources(vs, ir.StageVertex)
	require.NoError(t, err)
	require.NotNil(t, rn.ubo)
	require.NotNil(t, rn.push)

	fn := vs.EntryPoints[rn.entry].Function
	assert.Equal(t, "ATTRIBUTE_0", fn.Arguments[0].Name)
	assert.Equal(t, "ATTRIBUTE_1", fn.Arguments[1].Name)

	out := vs.Types[fn.Result.Type].Inner.(ir.StructType)
	assert.Equal(t, "pos", out.Members[0].Name, "builtins keep their names")
	assert.Equal(t, "TEXCOORD_0", out.Members[1].Name)

	assert.Equal(t, "UBO_VERTEX", vs.GlobalVariables[*rn.ubo].Name)
	assert.Equal(t, "PUSH_VERTEX", vs.GlobalVariables[*rn.push].Name)
}

func TestTranslateFlattenWholeBlock(t *testing.T) {
	src := decls + `
@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	let u = ubo;
	return u.SourceSize;
}
`
	_, err := Translate(lower(t, src), ir.StageFragment, Options{Dialect: GLSL, Flatten: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFlatten), "got %v", err)

	var terr *TranslateError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, GLSL, terr.Dialect)
}

func TestTranslateMissingStage(t *testing.T) {
	_, err := Translate(lower(t, vertexSrc), ir.StageFragment, Options{Dialect: SPIRV})
	var terr *TranslateError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ir.StageFragment, terr.Stage)
}

func TestResourceBinding(t *testing.T) {
	tests := []struct {
		name string
		want uint32
		ok   bool
	}{
		{"TEXTURE_0", 0, true},
		{"TEXTURE_15_", 15, true},
		{"SAMPLER_3", 3, true},
		{"UBO_VERTEX", 0, false},
		{"TEXTURE_x", 0, false},
		{"Source", 0, false},
	}
	for _, tt := range tests {
		got, ok := ResourceBinding(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestUniformNames(t *testing.T) {
	src := `#version 330 core
uniform mat4 UBO_MVP;
uniform vec4 UBO_OutputSize;
layout(std140) uniform UBO_block_0Vertex { UBO _group_0_binding_0_vs; };
uniform sampler2D TEXTURE_2_;
uniform float weights[4];
smooth out vec2 _vs2fs_location0;
`
	assert.Equal(t, []string{"UBO_MVP", "UBO_OutputSize", "TEXTURE_2_", "weights"}, uniformNames(src))
}

func TestSPIRVWords(t *testing.T) {
	words, err := SPIRVWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1}, words)

	_, err = SPIRVWords([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	for d := SPIRV; d <= MSL; d++ {
		got, ok := ParseDialect(d.String())
		assert.True(t, ok)
		assert.Equal(t, d, got)
	}
	_, ok := ParseDialect("wgsl")
	assert.False(t, ok)
}
