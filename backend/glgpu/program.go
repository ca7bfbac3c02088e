package glgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/semantics"
)

// uniform is one flattened block member with its location.
type uniform struct {
	name string
	loc  int32
	crosscompile.FlatUniform
}

// program is one linked pass.
type program struct {
	exec     *Executor
	label    string
	id       uint32
	uniforms []uniform
	textures []uint32 // reflected bindings, which are also texture units

	scratch [16]float32
}

// NewProgram links a pass and assigns its samplers to the texture units
// equal to their bindings.
func (e *Executor) NewProgram(desc *shaderchain.ProgramDesc) (shaderchain.Program, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if desc.Vertex == nil || desc.Fragment == nil || desc.Vertex.Source == "" || desc.Fragment.Source == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoGLSL, desc.Label)
	}
	id, err := e.gl.CreateProgram(desc.Vertex.Source, desc.Fragment.Source)
	if err != nil {
		return nil, fmt.Errorf("glgpu: %s: %w", desc.Label, err)
	}
	p := &program{exec: e, label: desc.Label, id: id}
	e.gl.UseProgram(id)

	stages := []*crosscompile.Output{desc.Vertex, desc.Fragment}
	units := make(map[string]uint32)
	flat := make(map[string]crosscompile.FlatUniform)
	for _, out := range stages {
		for name, b := range out.Bindings {
			units[name] = b
		}
		for name, u := range out.Uniforms {
			flat[name] = u
		}
	}
	for _, name := range sortedKeys(units) {
		loc := e.gl.UniformLocation(id, name)
		if loc < 0 {
			continue
		}
		e.gl.Uniform1i(loc, int32(units[name]))
	}
	for _, name := range sortedKeys(flat) {
		u := flat[name]
		if u.Shape == 0 {
			e.log.Debug("glgpu: uniform has no uploadable shape", "pass", desc.Label, "uniform", name)
			continue
		}
		loc := e.gl.UniformLocation(id, name)
		if loc < 0 {
			continue
		}
		p.uniforms = append(p.uniforms, uniform{name: name, loc: loc, FlatUniform: u})
	}
	if desc.Reflection != nil {
		for _, st := range desc.Reflection.SampledTextures() {
			p.textures = append(p.textures, st.Binding.Binding)
		}
	}
	return p, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Draw renders the pass. Offscreen passes clear and fill their framebuffer;
// the final pass draws into the caller's framebuffer without clearing.
func (p *program) Draw(dc *shaderchain.DrawCall) error {
	gl := p.exec.gl
	if dc.Target != nil {
		fb, err := p.exec.own(dc.Target)
		if err != nil {
			return err
		}
		gl.BindFramebuffer(fb.fbo)
		gl.Viewport(dc.Viewport.X, dc.Viewport.Y, dc.Viewport.Width, dc.Viewport.Height)
		gl.Clear()
	} else {
		t, err := finalTarget(dc.Final)
		if err != nil {
			return err
		}
		gl.BindFramebuffer(t.Framebuffer)
		gl.Viewport(dc.Viewport.X, dc.Viewport.Y, dc.Viewport.Width, dc.Viewport.Height)
	}

	gl.UseProgram(p.id)
	for _, u := range p.uniforms {
		data := dc.UBO
		if u.Block == crosscompile.BlockPush {
			data = dc.Push
		}
		p.upload(u, data)
	}
	if err := p.bind(dc.Textures); err != nil {
		return err
	}
	gl.DrawQuad(p.exec.quad)
	return nil
}

func finalTarget(t shaderchain.DrawTarget) (FinalTarget, error) {
	switch v := t.(type) {
	case nil:
		return FinalTarget{}, nil
	case FinalTarget:
		return v, nil
	case *FinalTarget:
		if v != nil {
			return *v, nil
		}
		return FinalTarget{}, nil
	}
	return FinalTarget{}, fmt.Errorf("%w, got %T", ErrTarget, t)
}

// upload reads one member from a packed little endian block image.
func (p *program) upload(u uniform, data []byte) {
	end := int(u.Offset) + u.Shape.Size()
	if end > len(data) {
		return
	}
	b := data[u.Offset:end]
	gl := p.exec.gl
	switch u.Shape {
	case semantics.ShapeUint:
		gl.Uniform1ui(u.loc, binary.LittleEndian.Uint32(b))
	case semantics.ShapeInt:
		gl.Uniform1i(u.loc, int32(binary.LittleEndian.Uint32(b)))
	case semantics.ShapeFloat:
		gl.Uniform1f(u.loc, math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case semantics.ShapeVec4, semantics.ShapeMat4:
		v := p.scratch[:u.Shape.Components()]
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		if u.Shape == semantics.ShapeMat4 {
			gl.UniformMatrix4fv(u.loc, v)
		} else {
			gl.Uniform4fv(u.loc, v)
		}
	}
}

// bind binds every reflected texture to its unit. Bindings the chain left
// unresolved read a 1x1 transparent texture.
func (p *program) bind(textures []shaderchain.BoundTexture) error {
	gl := p.exec.gl
	for _, unit := range p.textures {
		var img source = p.exec.empty
		desc := SamplerDesc{Filter: shaderchain.FilterNearest, MipFilter: shaderchain.FilterNearest}
		for _, t := range textures {
			if t.Binding != unit {
				continue
			}
			s, ok := t.Image.(source)
			if !ok {
				return fmt.Errorf("%w: binding %d of %s", ErrForeignImage, unit, p.label)
			}
			img = s
			desc = SamplerDesc{Filter: t.Filter, MipFilter: t.MipFilter, Wrap: t.Wrap}
			break
		}
		desc.Mipmapped = img.Levels() > 1
		gl.BindTexture(unit, img.glTexture())
		gl.BindSampler(unit, p.exec.sampler(desc))
	}
	return nil
}

// Release deletes the program.
func (p *program) Release() {
	if p.id == 0 {
		return
	}
	p.exec.gl.DeleteProgram(p.id)
	p.id = 0
}
