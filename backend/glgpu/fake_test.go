package glgpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shaderchain/format"
)

type fakeTexture struct {
	desc    TextureDesc
	uploads []int // levels
	mipmaps int
}

type fakeDraw struct {
	program  uint32
	fb       uint32
	viewport [4]int
	units    map[uint32]uint32 // unit -> texture
	samplers map[uint32]SamplerDesc
}

// fakeGL is a GL that records state changes and draws.
type fakeGL struct {
	next uint32

	programs     map[uint32][2]string
	locations    map[uint32]map[string]int32
	textures     map[uint32]*fakeTexture
	samplers     map[uint32]SamplerDesc
	framebuffers map[uint32]uint32 // fb -> texture
	quads        map[uint32][]float32

	// unsupported formats fail CreateTexture, incomplete ones fail
	// CreateFramebuffer.
	unsupported map[format.Format]bool
	incomplete  map[format.Format]bool
	failCompile bool

	program  uint32
	fb       uint32
	viewport [4]int
	units    map[uint32]uint32
	bound    map[uint32]uint32 // unit -> sampler

	uniforms map[int32]any // last value per location
	sets     map[int32]int
	clears   []uint32
	draws    []fakeDraw
}

func newFakeGL() *fakeGL {
	return &fakeGL{
		programs:     make(map[uint32][2]string),
		locations:    make(map[uint32]map[string]int32),
		textures:     make(map[uint32]*fakeTexture),
		samplers:     make(map[uint32]SamplerDesc),
		framebuffers: make(map[uint32]uint32),
		quads:        make(map[uint32][]float32),
		unsupported:  make(map[format.Format]bool),
		incomplete:   make(map[format.Format]bool),
		units:        make(map[uint32]uint32),
		bound:        make(map[uint32]uint32),
		uniforms:     make(map[int32]any),
		sets:         make(map[int32]int),
	}
}

func (g *fakeGL) name() uint32 {
	g.next++
	return g.next
}

// uniformNames lists the identifiers declared with "uniform" in GLSL.
func uniformNames(src string) []string {
	var names []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "uniform ") {
			continue
		}
		fields := strings.Fields(strings.TrimSuffix(line, ";"))
		names = append(names, fields[len(fields)-1])
	}
	return names
}

func (g *fakeGL) CreateProgram(vertex, fragment string) (uint32, error) {
	if g.failCompile {
		return 0, errors.New("0:1(1): error: syntax error")
	}
	id := g.name()
	g.programs[id] = [2]string{vertex, fragment}
	locs := make(map[string]int32)
	for _, src := range []string{vertex, fragment} {
		for _, n := range uniformNames(src) {
			if _, ok := locs[n]; !ok {
				locs[n] = int32(100*id) + int32(len(locs))
			}
		}
	}
	g.locations[id] = locs
	return id, nil
}

func (g *fakeGL) DeleteProgram(p uint32) { delete(g.programs, p) }
func (g *fakeGL) UseProgram(p uint32)    { g.program = p }

func (g *fakeGL) UniformLocation(p uint32, name string) int32 {
	if loc, ok := g.locations[p][name]; ok {
		return loc
	}
	return -1
}

func (g *fakeGL) set(loc int32, v any) {
	if loc < 0 {
		return
	}
	g.uniforms[loc] = v
	g.sets[loc]++
}

func (g *fakeGL) Uniform1f(loc int32, v float32) { g.set(loc, v) }
func (g *fakeGL) Uniform1i(loc int32, v int32)   { g.set(loc, v) }
func (g *fakeGL) Uniform1ui(loc int32, v uint32) { g.set(loc, v) }
func (g *fakeGL) Uniform4fv(loc int32, v []float32) {
	g.set(loc, append([]float32(nil), v...))
}
func (g *fakeGL) UniformMatrix4fv(loc int32, v []float32) {
	g.set(loc, append([]float32(nil), v...))
}

func (g *fakeGL) CreateTexture(desc TextureDesc) (uint32, error) {
	if g.unsupported[desc.Format] {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, desc.Format)
	}
	id := g.name()
	g.textures[id] = &fakeTexture{desc: desc}
	return id, nil
}

func (g *fakeGL) UploadTexture(tex uint32, level, width, height int, pix []byte) {
	t := g.textures[tex]
	if len(pix) != 4*width*height {
		panic(fmt.Sprintf("upload of %d bytes for %dx%d", len(pix), width, height))
	}
	t.uploads = append(t.uploads, level)
}

func (g *fakeGL) GenerateMipmap(tex uint32)    { g.textures[tex].mipmaps++ }
func (g *fakeGL) DeleteTexture(tex uint32)     { delete(g.textures, tex) }
func (g *fakeGL) BindTexture(unit, tex uint32) { g.units[unit] = tex }

func (g *fakeGL) CreateSampler(desc SamplerDesc) uint32 {
	id := g.name()
	g.samplers[id] = desc
	return id
}

func (g *fakeGL) DeleteSampler(s uint32)     { delete(g.samplers, s) }
func (g *fakeGL) BindSampler(unit, s uint32) { g.bound[unit] = s }

func (g *fakeGL) CreateFramebuffer(tex uint32) (uint32, error) {
	if g.incomplete[g.textures[tex].desc.Format] {
		return 0, ErrIncompleteFramebuffer
	}
	id := g.name()
	g.framebuffers[id] = tex
	return id, nil
}

func (g *fakeGL) DeleteFramebuffer(fb uint32) { delete(g.framebuffers, fb) }
func (g *fakeGL) BindFramebuffer(fb uint32)   { g.fb = fb }

func (g *fakeGL) Viewport(x, y, w, h int) { g.viewport = [4]int{x, y, w, h} }
func (g *fakeGL) Clear()                  { g.clears = append(g.clears, g.fb) }

func (g *fakeGL) CreateQuad(vertices []float32) (uint32, error) {
	id := g.name()
	g.quads[id] = vertices
	return id, nil
}

func (g *fakeGL) DeleteQuad(vao uint32) { delete(g.quads, vao) }

func (g *fakeGL) DrawQuad(vao uint32) {
	if _, ok := g.quads[vao]; !ok {
		panic("draw with deleted quad")
	}
	d := fakeDraw{
		program:  g.program,
		fb:       g.fb,
		viewport: g.viewport,
		units:    make(map[uint32]uint32),
		samplers: make(map[uint32]SamplerDesc),
	}
	for u, t := range g.units {
		d.units[u] = t
	}
	for u, s := range g.bound {
		d.samplers[u] = g.samplers[s]
	}
	g.draws = append(g.draws, d)
}

func (g *fakeGL) last() fakeDraw { return g.draws[len(g.draws)-1] }

// live returns the number of objects not yet deleted.
func (g *fakeGL) live() int {
	return len(g.programs) + len(g.textures) + len(g.samplers) + len(g.framebuffers) + len(g.quads)
}
