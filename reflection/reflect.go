package reflection

import (
	"fmt"
	"sort"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/semantics"
)

// Reflect validates a vertex and fragment module pair and maps their
// resources onto semantics. names carries the chain's aliases and may be
// nil. pass is the position of the pass in the chain; references to the
// output or feedback of pass pass or later are rejected.
func Reflect(vertex, fragment *ir.Module, names *semantics.Map, pass int) (*Reflection, error) {
	r := &reflector{
		names: names,
		pass:  pass,
		out: &Reflection{
			Parameters: make(map[int]Buffer),
		},
		bindings: make(map[uint32]string),
		offsets:  [2]map[uint32]string{make(map[uint32]string), make(map[uint32]string)},
	}

	stages := []*stage{
		{name: "vertex", mask: StageVertex, module: vertex, want: ir.StageVertex},
		{name: "fragment", mask: StageFragment, module: fragment, want: ir.StageFragment},
	}
	for _, st := range stages {
		if err := r.prepare(st); err != nil {
			return nil, err
		}
	}
	if err := r.checkVertexInputs(stages[0]); err != nil {
		return nil, err
	}
	if err := r.checkFragmentOutputs(stages[1]); err != nil {
		return nil, err
	}
	for _, st := range stages {
		if err := r.collect(st); err != nil {
			return nil, err
		}
	}
	return r.out, nil
}

type stage struct {
	name   string
	mask   StageMask
	module *ir.Module
	want   ir.ShaderStage
	ep     *ir.EntryPoint
	use    *usage

	ubo      *ir.GlobalVariableHandle
	push     *ir.GlobalVariableHandle
	textures []ir.GlobalVariableHandle
	samplers map[uint32]bool
}

type reflector struct {
	names *semantics.Map
	pass  int
	out   *Reflection

	uboSeen  bool
	bindings map[uint32]string    // binding number -> owner
	offsets  [2]map[uint32]string // [ubo, push] offset -> owner
}

const (
	blockUBO  = 0
	blockPush = 1
)

func (r *reflector) fail(st *stage, name string, cause error, format string, args ...any) error {
	e := &Error{Name: name, Msg: fmt.Sprintf(format, args...), Err: cause}
	if st != nil {
		e.Stage = st.name
	}
	return e
}

// prepare finds the entry point and sorts the stage's globals by kind.
func (r *reflector) prepare(st *stage) error {
	if st.module == nil {
		return r.fail(st, "", ErrStageInterface, "missing module")
	}
	for i := range st.module.EntryPoints {
		ep := &st.module.EntryPoints[i]
		if ep.Stage != st.want {
			continue
		}
		if st.ep != nil {
			return r.fail(st, ep.Name, ErrStageInterface, "more than one %s entry point", st.name)
		}
		st.ep = ep
	}
	if st.ep == nil {
		return r.fail(st, "", ErrStageInterface, "no %s entry point", st.name)
	}
	st.use = analyzeUsage(st.module, st.ep)

	for _, t := range st.module.Types {
		switch t.Inner.(type) {
		case ir.AtomicType:
			return r.fail(st, t.Name, ErrUnsupportedResource, "atomics are not allowed")
		case ir.BindingArrayType:
			return r.fail(st, t.Name, ErrUnsupportedResource, "binding arrays are not allowed")
		case ir.AccelerationStructureType, ir.RayQueryType:
			return r.fail(st, t.Name, ErrUnsupportedResource, "ray tracing resources are not allowed")
		}
	}

	st.samplers = make(map[uint32]bool)
	for h := range st.module.GlobalVariables {
		handle := ir.GlobalVariableHandle(h)
		g := &st.module.GlobalVariables[h]
		switch g.Space {
		case ir.SpaceFunction, ir.SpacePrivate:
		case ir.SpaceStorage:
			return r.fail(st, g.Name, ErrUnsupportedResource, "storage buffers are not allowed")
		case ir.SpaceWorkGroup, ir.SpaceTaskPayload:
			return r.fail(st, g.Name, ErrUnsupportedResource, "workgroup memory is not allowed")
		case ir.SpaceUniform:
			if st.ubo != nil {
				return r.fail(st, g.Name, ErrUnsupportedResource, "more than one uniform block")
			}
			if _, ok := st.module.Types[g.Type].Inner.(ir.StructType); !ok {
				return r.fail(st, g.Name, ErrUnsupportedResource, "uniforms must be declared in a struct block")
			}
			if err := r.checkBinding(st, g, ResourceGroup); err != nil {
				return err
			}
			st.ubo = &handle
		case ir.SpacePushConstant, ir.SpaceImmediate:
			if st.push != nil {
				return r.fail(st, g.Name, ErrUnsupportedResource, "more than one push constant block")
			}
			s, ok := st.module.Types[g.Type].Inner.(ir.StructType)
			if !ok {
				return r.fail(st, g.Name, ErrUnsupportedResource, "push constants must be declared in a struct block")
			}
			if s.Span > MaxPushSize {
				return r.fail(st, g.Name, ErrUnsupportedResource, "push constant block is %d bytes, limit is %d", s.Span, MaxPushSize)
			}
			st.push = &handle
		case ir.SpaceHandle:
			switch t := st.module.Types[g.Type].Inner.(type) {
			case ir.ImageType:
				if err := r.checkImage(st, g, t); err != nil {
					return err
				}
				if err := r.checkBinding(st, g, ResourceGroup); err != nil {
					return err
				}
				st.textures = append(st.textures, handle)
			case ir.SamplerType:
				if t.Comparison {
					return r.fail(st, g.Name, ErrUnsupportedResource, "comparison samplers are not allowed")
				}
				if err := r.checkBinding(st, g, SamplerGroup); err != nil {
					return err
				}
				st.samplers[g.Binding.Binding] = true
			default:
				return r.fail(st, g.Name, ErrUnsupportedResource, "unsupported handle resource")
			}
		default:
			return r.fail(st, g.Name, ErrUnsupportedResource, "unsupported address space %d", g.Space)
		}
	}

	for b := range st.samplers {
		found := false
		for _, h := range st.textures {
			if st.module.GlobalVariables[h].Binding.Binding == b {
				found = true
				break
			}
		}
		if !found {
			return r.fail(st, "", ErrBinding, "sampler at binding %d has no texture at the same binding", b)
		}
	}
	return nil
}

func (r *reflector) checkImage(st *stage, g *ir.GlobalVariable, t ir.ImageType) error {
	switch {
	case t.Class == ir.ImageClassStorage:
		return r.fail(st, g.Name, ErrUnsupportedResource, "storage images are not allowed")
	case t.Class != ir.ImageClassSampled:
		return r.fail(st, g.Name, ErrUnsupportedResource, "only sampled textures are allowed")
	case t.Dim != ir.Dim2D || t.Arrayed || t.Multisampled:
		return r.fail(st, g.Name, ErrUnsupportedResource, "only non-arrayed single-sampled 2D textures are allowed")
	}
	return nil
}

func (r *reflector) checkBinding(st *stage, g *ir.GlobalVariable, group uint32) error {
	if g.Binding == nil {
		return r.fail(st, g.Name, ErrBinding, "resource has no binding")
	}
	if g.Binding.Group != group {
		return r.fail(st, g.Name, ErrBinding, "resource is in group %d, want group %d", g.Binding.Group, group)
	}
	if g.Binding.Binding >= MaxBindings {
		return r.fail(st, g.Name, ErrBinding, "binding %d exceeds limit %d", g.Binding.Binding, MaxBindings-1)
	}
	return nil
}

func (r *reflector) checkVertexInputs(st *stage) error {
	var locs []uint32
	for _, arg := range st.ep.Function.Arguments {
		locs = append(locs, locations(st.module, arg.Binding, arg.Type)...)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	if len(locs) != 2 || locs[0] != 0 || locs[1] != 1 {
		return r.fail(st, "", ErrStageInterface, "vertex shader must have exactly two inputs at locations 0 and 1, got %v", locs)
	}
	return nil
}

func (r *reflector) checkFragmentOutputs(st *stage) error {
	var locs []uint32
	if res := st.ep.Function.Result; res != nil {
		locs = locations(st.module, res.Binding, res.Type)
	}
	if len(locs) != 1 || locs[0] != 0 {
		return r.fail(st, "", ErrStageInterface, "fragment shader must have exactly one output at location 0, got %v", locs)
	}
	return nil
}

// locations lists the @location values of a stage interface value,
// looking into struct members when the value itself is unbound.
func locations(m *ir.Module, b *ir.Binding, ty ir.TypeHandle) []uint32 {
	if b != nil {
		if loc, ok := (*b).(ir.LocationBinding); ok {
			return []uint32{loc.Location}
		}
		return nil
	}
	s, ok := m.Types[ty].Inner.(ir.StructType)
	if !ok {
		return nil
	}
	var out []uint32
	for _, mem := range s.Members {
		if mem.Binding == nil {
			continue
		}
		if loc, ok := (*mem.Binding).(ir.LocationBinding); ok {
			out = append(out, loc.Location)
		}
	}
	return out
}

// collect maps the stage's blocks and textures onto semantics.
func (r *reflector) collect(st *stage) error {
	if st.ubo != nil {
		g := &st.module.GlobalVariables[*st.ubo]
		binding := g.Binding.Binding
		if r.uboSeen && r.out.UBOBinding != binding {
			return r.fail(st, g.Name, ErrConflict, "uniform block binding %d differs from %d in the other stage", binding, r.out.UBOBinding)
		}
		if !r.uboSeen {
			if err := r.claimBinding(st, binding, "uniform block"); err != nil {
				return err
			}
		}
		r.uboSeen = true
		r.out.UBOBinding = binding
		active, err := r.collectBlock(st, *st.ubo, blockUBO)
		if err != nil {
			return err
		}
		span := st.module.Types[g.Type].Inner.(ir.StructType).Span
		if span > r.out.UBOSize {
			r.out.UBOSize = span
		}
		if active {
			r.out.UBOStages |= st.mask
		}
	}
	if st.push != nil {
		g := &st.module.GlobalVariables[*st.push]
		active, err := r.collectBlock(st, *st.push, blockPush)
		if err != nil {
			return err
		}
		span := st.module.Types[g.Type].Inner.(ir.StructType).Span
		if span > r.out.PushSize {
			r.out.PushSize = span
		}
		if active {
			r.out.PushStages |= st.mask
		}
	}
	for _, h := range st.textures {
		if err := r.collectTexture(st, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *reflector) collectBlock(st *stage, h ir.GlobalVariableHandle, block int) (bool, error) {
	s := st.module.Types[st.module.GlobalVariables[h].Type].Inner.(ir.StructType)
	active := false
	for i, mem := range s.Members {
		if !st.use.memberActive(h, uint32(i)) {
			continue
		}
		active = true
		if err := r.member(st, mem, block); err != nil {
			return false, err
		}
	}
	return active, nil
}

// member resolves one active block member: built-ins first, then
// texture size companions, then float parameters.
func (r *reflector) member(st *stage, mem ir.StructMember, block int) error {
	name := mem.Name
	inner := st.module.Types[mem.Type].Inner

	if id, ok := semantics.Lookup(name); ok {
		if !shapeOf(inner, id.Shape()) {
			return r.fail(st, name, ErrType, "must be declared as %s", id.Shape())
		}
		return r.setBuffer(st, &r.out.Semantics[id], name, name, mem.Offset, block, id.Shape())
	}

	if ref, ok := r.names.TextureSize(name); ok {
		if !shapeOf(inner, semantics.ShapeVec4) {
			return r.fail(st, name, ErrType, "texture size must be declared as %s", semantics.ShapeVec4)
		}
		if err := r.checkRef(st, name, ref); err != nil {
			return err
		}
		slot := r.textureSlot(ref)
		owner := "size of " + ref.Name()
		if err := r.claimOffset(st, name, owner, mem.Offset, block); err != nil {
			return err
		}
		if block == blockUBO {
			if slot.SizeUBOActive && slot.SizeUBOOffset != mem.Offset {
				return r.fail(st, name, ErrConflict, "uniform offset %d differs from %d in the other stage", mem.Offset, slot.SizeUBOOffset)
			}
			slot.SizeUBOOffset, slot.SizeUBOActive = mem.Offset, true
		} else {
			if slot.SizePushActive && slot.SizePushOffset != mem.Offset {
				return r.fail(st, name, ErrConflict, "push constant offset %d differs from %d in the other stage", mem.Offset, slot.SizePushOffset)
			}
			slot.SizePushOffset, slot.SizePushActive = mem.Offset, true
		}
		slot.Stages |= st.mask
		return nil
	}

	if idx, ok := r.names.Parameter(name); ok {
		if !shapeOf(inner, semantics.ShapeFloat) {
			return r.fail(st, name, ErrType, "parameter must be declared as %s", semantics.ShapeFloat)
		}
		buf := r.out.Parameters[idx]
		if err := r.setBuffer(st, &buf, name, "parameter "+name, mem.Offset, block, semantics.ShapeFloat); err != nil {
			return err
		}
		r.out.Parameters[idx] = buf
		return nil
	}

	return r.fail(st, name, ErrUnknownSemantic, "block member does not name a semantic, texture size or parameter")
}

func (r *reflector) setBuffer(st *stage, buf *Buffer, name, owner string, offset uint32, block int, shape semantics.Shape) error {
	if err := r.claimOffset(st, name, owner, offset, block); err != nil {
		return err
	}
	if block == blockUBO {
		if buf.UBOActive && buf.UBOOffset != offset {
			return r.fail(st, name, ErrConflict, "uniform offset %d differs from %d in the other stage", offset, buf.UBOOffset)
		}
		buf.UBOOffset, buf.UBOActive = offset, true
	} else {
		if buf.PushActive && buf.PushOffset != offset {
			return r.fail(st, name, ErrConflict, "push constant offset %d differs from %d in the other stage", offset, buf.PushOffset)
		}
		buf.PushOffset, buf.PushActive = offset, true
	}
	buf.Components = shape.Components()
	return nil
}

func (r *reflector) claimOffset(st *stage, name, owner string, offset uint32, block int) error {
	if prev, ok := r.offsets[block][offset]; ok && prev != owner {
		return r.fail(st, name, ErrConflict, "offset %d already used by %s", offset, prev)
	}
	r.offsets[block][offset] = owner
	return nil
}

func (r *reflector) claimBinding(st *stage, binding uint32, owner string) error {
	if prev, ok := r.bindings[binding]; ok && prev != owner {
		return r.fail(st, owner, ErrConflict, "binding %d already used by %s", binding, prev)
	}
	r.bindings[binding] = owner
	return nil
}

func (r *reflector) collectTexture(st *stage, h ir.GlobalVariableHandle) error {
	g := &st.module.GlobalVariables[h]
	ref, ok := r.names.Texture(g.Name)
	if !ok {
		return r.fail(st, g.Name, ErrUnknownSemantic, "texture does not name a texture semantic")
	}
	if err := r.checkRef(st, g.Name, ref); err != nil {
		return err
	}
	if !st.use.globals[h] {
		return nil
	}
	binding := g.Binding.Binding
	if err := r.claimBinding(st, binding, ref.Name()); err != nil {
		return err
	}
	slot := r.textureSlot(ref)
	if slot.Sampled && slot.Binding != binding {
		return r.fail(st, g.Name, ErrConflict, "binding %d differs from %d in the other stage", binding, slot.Binding)
	}
	slot.Binding = binding
	slot.Sampled = true
	slot.Stages |= st.mask
	if st.samplers[binding] {
		slot.Sampler = true
	}
	return nil
}

// checkRef rejects references to later passes and history deeper than
// semantics.MaxHistory.
func (r *reflector) checkRef(st *stage, name string, ref semantics.TextureRef) error {
	switch ref.Semantic {
	case semantics.PassOutput, semantics.PassFeedback:
		if ref.Index >= r.pass {
			return r.fail(st, name, ErrNonCausal, "pass %d cannot read %s", r.pass, ref.Name())
		}
	case semantics.OriginalHistory:
		if ref.Index > semantics.MaxHistory {
			return r.fail(st, name, ErrUnsupportedResource, "history depth %d exceeds %d", ref.Index, semantics.MaxHistory)
		}
	}
	return nil
}

func (r *reflector) textureSlot(ref semantics.TextureRef) *TextureBinding {
	list := r.out.Textures[ref.Semantic]
	for len(list) <= ref.Index {
		list = append(list, TextureBinding{})
	}
	r.out.Textures[ref.Semantic] = list
	return &list[ref.Index]
}

// ShapeOf classifies a 32-bit scalar, vec4 or 4x4 matrix type.
func ShapeOf(inner ir.TypeInner) (semantics.Shape, bool) {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	switch t := inner.(type) {
	case ir.MatrixType:
		if t.Columns == ir.Vec4 && t.Rows == ir.Vec4 && t.Scalar == f32 {
			return semantics.ShapeMat4, true
		}
	case ir.VectorType:
		if t.Size == ir.Vec4 && t.Scalar == f32 {
			return semantics.ShapeVec4, true
		}
	case ir.ScalarType:
		switch t {
		case f32:
			return semantics.ShapeFloat, true
		case ir.ScalarType{Kind: ir.ScalarUint, Width: 4}:
			return semantics.ShapeUint, true
		case ir.ScalarType{Kind: ir.ScalarSint, Width: 4}:
			return semantics.ShapeInt, true
		}
	}
	return 0, false
}

func shapeOf(inner ir.TypeInner, want semantics.Shape) bool {
	got, ok := ShapeOf(inner)
	return ok && got == want
}
