package crosscompile

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/naga/ir"
)

// Name prefixes of the renaming convention.
const (
	AttributePrefix = "ATTRIBUTE_"
	TexCoordPrefix  = "TEXCOORD_"
	TargetPrefix    = "TARGET_"
	TexturePrefix   = "TEXTURE_"
	SamplerPrefix   = "SAMPLER_"
	FlatUBOPrefix   = "UBO_"
	FlatPushPrefix  = "PUSH_"
)

// BlockName returns the conventional name of a stage's uniform or push block.
func BlockName(b Block, stage ir.ShaderStage) string {
	prefix := "UBO_"
	if b == BlockPush {
		prefix = "PUSH_"
	}
	if stage == ir.StageVertex {
		return prefix + "VERTEX"
	}
	return prefix + "FRAGMENT"
}

// ResourceBinding recovers the binding number encoded in an emitted texture
// or sampler name. GLSL identifiers that end in a digit carry a trailing
// underscore, which is ignored.
func ResourceBinding(name string) (uint32, bool) {
	name = strings.TrimSuffix(name, "_")
	for _, prefix := range []string{TexturePrefix, SamplerPrefix} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	return 0, false
}

// renamed records what renameResources found.
type renamed struct {
	entry    int
	ubo      *ir.GlobalVariableHandle
	push     *ir.GlobalVariableHandle
	textures []ir.GlobalVariableHandle
}

// cloneModule copies every part of m that translation rewrites.
func cloneModule(m *ir.Module) *ir.Module {
	c := *m
	c.Types = slices.Clone(m.Types)
	for i, t := range c.Types {
		if s, ok := t.Inner.(ir.StructType); ok {
			s.Members = slices.Clone(s.Members)
			c.Types[i].Inner = s
		}
	}
	c.GlobalVariables = slices.Clone(m.GlobalVariables)
	for i, g := range c.GlobalVariables {
		if g.Binding != nil {
			b := *g.Binding
			c.GlobalVariables[i].Binding = &b
		}
	}
	c.Functions = slices.Clone(m.Functions)
	for i := range c.Functions {
		cloneFunction(&c.Functions[i])
	}
	c.EntryPoints = slices.Clone(m.EntryPoints)
	for i := range c.EntryPoints {
		cloneFunction(&c.EntryPoints[i].Function)
	}
	return &c
}

func cloneFunction(fn *ir.Function) {
	fn.Arguments = slices.Clone(fn.Arguments)
	if fn.Result != nil {
		r := *fn.Result
		fn.Result = &r
	}
	fn.Expressions = slices.Clone(fn.Expressions)
	fn.ExpressionTypes = slices.Clone(fn.ExpressionTypes)
	if fn.NamedExpressions != nil {
		fn.NamedExpressions = maps.Clone(fn.NamedExpressions)
	}
}

// renameResources applies the naming convention to the entry point of the
// given stage and to the module's resources.
func renameResources(m *ir.Module, stage ir.ShaderStage) (*renamed, error) {
	rn := &renamed{entry: -1}
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage {
			rn.entry = i
			break
		}
	}
	if rn.entry < 0 {
		return nil, fmt.Errorf("no %s entry point", stageName(stage))
	}
	ep := &m.EntryPoints[rn.entry]
	ep.Name = EntryPoint
	fn := &ep.Function

	inPrefix, outPrefix := AttributePrefix, TexCoordPrefix
	if stage == ir.StageFragment {
		inPrefix, outPrefix = TexCoordPrefix, TargetPrefix
	}
	for i := range fn.Arguments {
		arg := &fn.Arguments[i]
		if loc, ok := location(arg.Binding); ok {
			arg.Name = inPrefix + strconv.Itoa(int(loc))
			continue
		}
		if arg.Binding == nil {
			renameMembers(m, arg.Type, inPrefix)
		}
	}
	if fn.Result != nil && fn.Result.Binding == nil {
		renameMembers(m, fn.Result.Type, outPrefix)
	}

	for h := range m.GlobalVariables {
		handle := ir.GlobalVariableHandle(h)
		g := &m.GlobalVariables[h]
		switch g.Space {
		case ir.SpaceUniform:
			g.Name = BlockName(BlockUBO, stage)
			rn.ubo = &handle
		case ir.SpacePushConstant, ir.SpaceImmediate:
			g.Name = BlockName(BlockPush, stage)
			rn.push = &handle
		case ir.SpaceHandle:
			if g.Binding == nil {
				continue
			}
			switch m.Types[g.Type].Inner.(type) {
			case ir.ImageType:
				g.Name = TexturePrefix + strconv.Itoa(int(g.Binding.Binding))
				rn.textures = append(rn.textures, handle)
			case ir.SamplerType:
				g.Name = SamplerPrefix + strconv.Itoa(int(g.Binding.Binding))
			}
		}
	}
	return rn, nil
}

func location(b *ir.Binding) (uint32, bool) {
	if b == nil {
		return 0, false
	}
	loc, ok := (*b).(ir.LocationBinding)
	return loc.Location, ok
}

// renameMembers renames the location-bound members of an interface struct.
func renameMembers(m *ir.Module, ty ir.TypeHandle, prefix string) {
	s, ok := m.Types[ty].Inner.(ir.StructType)
	if !ok {
		return
	}
	for i := range s.Members {
		if loc, ok := location(s.Members[i].Binding); ok {
			s.Members[i].Name = prefix + strconv.Itoa(int(loc))
		}
	}
	m.Types[ty].Inner = s
}

// pushToUniform turns the push constant block into a uniform buffer at
// PushBinding, rewriting every pointer into the old address space.
func pushToUniform(m *ir.Module, h ir.GlobalVariableHandle) {
	g := &m.GlobalVariables[h]
	from := g.Space
	g.Space = ir.SpaceUniform
	g.Binding = &ir.ResourceBinding{Group: 0, Binding: PushBinding}
	retargetSpace(m, from, ir.SpaceUniform)
}

func retargetSpace(m *ir.Module, from, to ir.AddressSpace) {
	swap := func(inner ir.TypeInner) (ir.TypeInner, bool) {
		switch p := inner.(type) {
		case ir.PointerType:
			if p.Space == from {
				p.Space = to
				return p, true
			}
		case ir.ValuePointerType:
			if p.Space == from {
				p.Space = to
				return p, true
			}
		}
		return inner, false
	}
	for i := range m.Types {
		if inner, ok := swap(m.Types[i].Inner); ok {
			m.Types[i].Inner = inner
		}
	}
	each := func(fn *ir.Function) {
		for i, res := range fn.ExpressionTypes {
			if res.Handle != nil || res.Value == nil {
				continue
			}
			if inner, ok := swap(res.Value); ok {
				fn.ExpressionTypes[i].Value = inner
			}
		}
	}
	for i := range m.Functions {
		each(&m.Functions[i])
	}
	for i := range m.EntryPoints {
		each(&m.EntryPoints[i].Function)
	}
}
