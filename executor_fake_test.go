package shaderchain

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/format"
)

// fakeImage carries a content stamp: the frame number that last wrote it.
type fakeImage struct {
	label   string
	size    Size
	format  format.Format
	content int
}

func (f *fakeImage) Size() Size            { return f.size }
func (f *fakeImage) Format() format.Format { return f.format }
func (f *fakeImage) Content() int          { return f.content }

type fakeFramebuffer struct {
	fakeImage
	levels   int
	resizes  int
	released bool
}

func (f *fakeFramebuffer) Resize(size Size, fm format.Format, levels int) (bool, error) {
	if f.size == size && f.format == fm && f.levels == levels {
		return false, nil
	}
	f.size, f.format, f.levels = size, fm, levels
	f.content = 0
	f.resizes++
	return true, nil
}

func (f *fakeFramebuffer) Levels() int { return f.levels }
func (f *fakeFramebuffer) Release()    { f.released = true }

type fakeTexture struct {
	fakeImage
	released bool
}

func (f *fakeTexture) Release() { f.released = true }

type recordedDraw struct {
	frame    int
	target   *fakeFramebuffer
	final    DrawTarget
	viewport Viewport
	ubo      []byte
	push     []byte
	textures map[uint32]BoundTexture
	contents map[uint32]int
}

type fakeProgram struct {
	exec     *fakeExecutor
	desc     *ProgramDesc
	draws    []recordedDraw
	released bool
}

func (p *fakeProgram) Draw(dc *DrawCall) error {
	d := recordedDraw{
		frame:    p.exec.frame,
		final:    dc.Final,
		viewport: dc.Viewport,
		ubo:      slices.Clone(dc.UBO),
		push:     slices.Clone(dc.Push),
		textures: make(map[uint32]BoundTexture),
		contents: make(map[uint32]int),
	}
	for _, t := range dc.Textures {
		d.textures[t.Binding] = t
		if c, ok := t.Image.(interface{ Content() int }); ok {
			d.contents[t.Binding] = c.Content()
		}
	}
	if dc.Target != nil {
		fb := dc.Target.(*fakeFramebuffer)
		d.target = fb
		fb.content = p.exec.frame
	}
	p.draws = append(p.draws, d)
	return nil
}

func (p *fakeProgram) Release() { p.released = true }

func (p *fakeProgram) last() recordedDraw { return p.draws[len(p.draws)-1] }

type fakeExecutor struct {
	frame        int
	programs     []*fakeProgram
	framebuffers []*fakeFramebuffer
	textures     []*fakeTexture
	clears       []string
	copies       []string
	mipmaps      []string
	closed       bool
	failProgram  bool
}

func (e *fakeExecutor) Target() compile.Target {
	return compile.Target{Dialect: crosscompile.SPIRV, PushAsUniform: true}
}

func (e *fakeExecutor) NewProgram(desc *ProgramDesc) (Program, error) {
	if e.failProgram {
		return nil, errors.New("fake: program creation failed")
	}
	p := &fakeProgram{exec: e, desc: desc}
	e.programs = append(e.programs, p)
	return p, nil
}

func (e *fakeExecutor) NewFramebuffer(label string) (Framebuffer, error) {
	fb := &fakeFramebuffer{fakeImage: fakeImage{label: label}}
	e.framebuffers = append(e.framebuffers, fb)
	return fb, nil
}

func (e *fakeExecutor) NewTexture(img *image.RGBA, opts TextureOptions) (Texture, error) {
	b := img.Bounds()
	t := &fakeTexture{fakeImage: fakeImage{
		label:  opts.Label,
		size:   Size{Width: b.Dx(), Height: b.Dy()},
		format: format.R8G8B8A8Unorm,
	}}
	e.textures = append(e.textures, t)
	return t, nil
}

func (e *fakeExecutor) Copy(_ Commands, dst Framebuffer, src Image) error {
	d := dst.(*fakeFramebuffer)
	d.content = src.(interface{ Content() int }).Content()
	e.copies = append(e.copies, d.label)
	return nil
}

func (e *fakeExecutor) Clear(_ Commands, fb Framebuffer) error {
	f := fb.(*fakeFramebuffer)
	f.content = 0
	e.clears = append(e.clears, f.label)
	return nil
}

func (e *fakeExecutor) GenerateMipmaps(_ Commands, fb Framebuffer) error {
	e.mipmaps = append(e.mipmaps, fb.(*fakeFramebuffer).label)
	return nil
}

func (e *fakeExecutor) Close() error {
	e.closed = true
	return nil
}

func (e *fakeExecutor) labels() []string {
	out := make([]string, len(e.framebuffers))
	for i, fb := range e.framebuffers {
		out[i] = fb.label
	}
	return out
}

// member is a block member of a generated test shader.
type member struct {
	name string
	typ  string // mat4x4<f32>, vec4<f32>, f32, u32 or i32
}

// testShader generates an annotated WGSL pass. The uniform block always
// starts with MVP, which the vertex stage reads; every other member and
// texture is read by the fragment stage.
type testShader struct {
	pragmas  []string
	ubo      []member
	push     []member
	textures []string
}

func (s testShader) source() string {
	var b strings.Builder
	b.WriteString("#version 450\n")
	for _, p := range s.pragmas {
		b.WriteString("#pragma " + p + "\n")
	}

	b.WriteString("struct UBO {\n\tMVP: mat4x4<f32>,\n")
	for _, m := range s.ubo {
		fmt.Fprintf(&b, "\t%s: %s,\n", m.name, m.typ)
	}
	b.WriteString("}\n@group(0) @binding(0) var<uniform> ubo: UBO;\n")
	if len(s.push) > 0 {
		b.WriteString("struct Push {\n")
		for _, m := range s.push {
			fmt.Fprintf(&b, "\t%s: %s,\n", m.name, m.typ)
		}
		b.WriteString("}\nvar<immediate> params: Push;\n")
	}
	for i, t := range s.textures {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: texture_2d<f32>;\n", i+1, t)
		fmt.Fprintf(&b, "@group(1) @binding(%d) var %sSampler: sampler;\n", i+1, t)
	}

	b.WriteString(`#pragma stage vertex
struct VSOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@vertex
fn main(@location(0) pos: vec4<f32>, @location(1) uv: vec2<f32>) -> VSOut {
	return VSOut(ubo.MVP * pos, uv);
}
#pragma stage fragment
@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	let c0 = vec4<f32>(0.0);
`)
	n := 0
	add := func(expr string) {
		fmt.Fprintf(&b, "\tlet c%d = c%d + %s;\n", n+1, n, expr)
		n++
	}
	for _, t := range s.textures {
		add(fmt.Sprintf("textureSample(%s, %sSampler, uv)", t, t))
	}
	for _, blk := range []struct {
		name    string
		members []member
	}{{"ubo", s.ubo}, {"params", s.push}} {
		for _, m := range blk.members {
			ref := blk.name + "." + m.name
			switch m.typ {
			case "vec4<f32>":
				add(ref)
			case "f32":
				add("vec4<f32>(" + ref + ")")
			default:
				add("vec4<f32>(f32(" + ref + "))")
			}
		}
	}
	fmt.Fprintf(&b, "\treturn c%d;\n}\n", n)
	return b.String()
}
