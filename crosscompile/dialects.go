package crosscompile

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
)

func translateSPIRV(m *ir.Module, opts Options, out *Output) error {
	version := opts.SPIRVVersion
	if version == (spirv.Version{}) {
		version = spirv.Version1_3
	}
	code, err := naga.GenerateSPIRV(m, spirv.Options{Version: version})
	if err != nil {
		return err
	}
	words, err := SPIRVWords(code)
	if err != nil {
		return err
	}
	out.SPIRV = words
	return nil
}

// SPIRVWords converts a little endian SPIR-V byte stream into words.
func SPIRVWords(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("spirv: length %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words, nil
}

func translateGLSL(m *ir.Module, rn *renamed, opts Options, out *Output) error {
	flat := make(map[string]FlatUniform)
	if opts.Flatten {
		for _, b := range []struct {
			h     *ir.GlobalVariableHandle
			block Block
		}{{rn.ubo, BlockUBO}, {rn.push, BlockPush}} {
			if b.h == nil {
				continue
			}
			names, err := flattenBlock(m, *b.h, b.block)
			if err != nil {
				return err
			}
			for k, v := range names {
				flat[k] = v
			}
		}
	}

	// GLSL assigns texture units and block bindings through the API, so
	// the decorations go and the names carry the binding instead.
	textures := make(map[string]uint32)
	for i := range m.GlobalVariables {
		g := &m.GlobalVariables[i]
		if g.Binding == nil {
			continue
		}
		if _, ok := m.Types[g.Type].Inner.(ir.ImageType); ok {
			textures[g.Name] = g.Binding.Binding
		} else if g.Space == ir.SpaceUniform && !opts.Flatten {
			out.Bindings[g.Name] = g.Binding.Binding
		}
		g.Binding = nil
	}

	version := opts.GLSLVersion
	if version == (glsl.Version{}) {
		version = glsl.Version330
	}
	src, _, err := glsl.Compile(m, glsl.Options{
		LangVersion: version,
		EntryPoint:  EntryPoint,
	})
	if err != nil {
		return err
	}
	out.Source = src

	for _, name := range uniformNames(src) {
		key := name
		if _, ok := textures[key]; !ok {
			if _, ok := flat[key]; !ok {
				key = strings.TrimSuffix(name, "_")
			}
		}
		if b, ok := textures[key]; ok {
			out.Bindings[name] = b
		}
		if f, ok := flat[key]; ok {
			if out.Uniforms == nil {
				out.Uniforms = make(map[string]FlatUniform)
			}
			out.Uniforms[name] = f
		}
	}
	return nil
}

// uniformNames lists the identifiers of plain uniform declarations in
// GLSL source, in declaration order.
func uniformNames(src string) []string {
	var names []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		i := strings.Index(line, "uniform ")
		if i < 0 || (i > 0 && line[i-1] != ' ' && line[i-1] != ')') {
			continue
		}
		if !strings.HasSuffix(line, ";") || strings.ContainsAny(line, "{}") {
			continue
		}
		fields := strings.Fields(strings.TrimSuffix(line[i:], ";"))
		if len(fields) < 3 {
			continue
		}
		name := fields[len(fields)-1]
		if j := strings.IndexByte(name, '['); j >= 0 {
			name = name[:j]
		}
		names = append(names, name)
	}
	return names
}

func translateHLSL(m *ir.Module, opts Options, out *Output) error {
	o := hlsl.DefaultOptions()
	o.EntryPoint = EntryPoint
	for _, g := range m.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		key := hlsl.ResourceBinding{Group: g.Binding.Group, Binding: g.Binding.Binding}
		o.BindingMap[key] = hlsl.BindTarget{Space: uint8(g.Binding.Group), Register: g.Binding.Binding}
	}
	src, _, err := hlsl.Compile(m, o)
	if err != nil {
		return err
	}
	out.Source = src
	return nil
}

func translateMSL(m *ir.Module, opts Options, out *Output) error {
	res := make(map[ir.ResourceBinding]msl.BindTarget)
	var push *uint8
	for _, g := range m.GlobalVariables {
		if g.Space == ir.SpacePushConstant || g.Space == ir.SpaceImmediate {
			slot := uint8(PushBinding)
			push = &slot
			continue
		}
		if g.Binding == nil {
			continue
		}
		slot := uint8(g.Binding.Binding)
		var t msl.BindTarget
		switch m.Types[g.Type].Inner.(type) {
		case ir.ImageType:
			t.Texture = &slot
		case ir.SamplerType:
			t.Sampler = &msl.BindSamplerTarget{Slot: slot}
		default:
			t.Buffer = &slot
		}
		res[*g.Binding] = t
	}

	o := msl.DefaultOptions()
	o.PerEntryPointMap = map[string]msl.EntryPointResources{
		EntryPoint: {
			Resources:          res,
			PushConstantBuffer: push,
			ImmediatesBuffer:   push,
		},
	}
	src, _, err := msl.Compile(m, o)
	if err != nil {
		return err
	}
	out.Source = src
	return nil
}
