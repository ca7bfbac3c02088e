package shaderchain

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"
	"testing/fstest"

	"github.com/gogpu/shaderchain/format"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shaderFS(shaders map[string]testShader) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, s := range shaders {
		fsys[name] = &fstest.MapFile{Data: []byte(s.source())}
	}
	return fsys
}

func newTestChain(t *testing.T, shaders map[string]testShader, opts ...Option) (*Chain, *fakeExecutor) {
	t.Helper()
	exec := &fakeExecutor{}
	opts = append([]Option{WithFS(shaderFS(shaders))}, opts...)
	c := New(exec, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, exec
}

func floatAt(b []byte, off uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func uintAt(b []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func vec4At(b []byte, off uint32) [4]float32 {
	return [4]float32{floatAt(b, off), floatAt(b, off+4), floatAt(b, off+8), floatAt(b, off+12)}
}

func textureBinding(t *testing.T, r *reflection.Reflection, ref semantics.TextureRef) uint32 {
	t.Helper()
	tb, ok := r.Texture(ref)
	require.True(t, ok, "texture %s not reflected", ref.Name())
	return tb.Binding
}

// runFrame drives one full frame with the input stamped as frame n.
func runFrame(t *testing.T, c *Chain, exec *fakeExecutor, input *fakeImage, n int) {
	t.Helper()
	exec.frame = n
	input.content = n
	c.SetInput(input)
	require.NoError(t, c.RunOffscreen(nil))
	require.NoError(t, c.RunFinal(nil, "screen"))
	require.NoError(t, c.EndFrame(nil))
}

func newInput() *fakeImage {
	return &fakeImage{label: "input", size: Size{Width: 320, Height: 240}, format: format.R8G8B8A8Unorm}
}

func TestMinimalChain(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"final.wgsl": {
			ubo:      []member{{"OutputSize", "vec4<f32>"}, {"FinalViewportSize", "vec4<f32>"}},
			textures: []string{"Source"},
		},
	})
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("final.wgsl")}))
	assert.Equal(t, 0, c.HistoryDepth())
	assert.Empty(t, c.FeedbackPasses())
	assert.Empty(t, exec.framebuffers, "a single pass renders straight to the caller")

	input := newInput()
	c.SetInput(input)
	c.SetViewport(Viewport{X: 10, Y: 20, Width: 640, Height: 480})
	require.NoError(t, c.RunOffscreen(nil))
	require.Len(t, exec.programs, 1)
	assert.Empty(t, exec.programs[0].draws)

	require.NoError(t, c.RunFinal(nil, "screen"))
	prog := exec.programs[0]
	require.Len(t, prog.draws, 1)
	d := prog.last()
	assert.True(t, prog.desc.Final)
	assert.Nil(t, d.target)
	assert.Equal(t, "screen", d.final)
	assert.Equal(t, Viewport{X: 10, Y: 20, Width: 640, Height: 480}, d.viewport)

	r := c.Passes()[0].Reflection
	mvp := r.Semantics[semantics.MVP]
	require.True(t, mvp.UBOActive)
	for i, want := range identity {
		assert.Equal(t, want, floatAt(d.ubo, mvp.UBOOffset+uint32(4*i)), "MVP[%d]", i)
	}
	out := r.Semantics[semantics.OutputSize]
	assert.Equal(t, [4]float32{640, 480, 1.0 / 640, 1.0 / 480}, vec4At(d.ubo, out.UBOOffset))
	fvp := r.Semantics[semantics.FinalViewportSize]
	assert.Equal(t, [4]float32{640, 480, 1.0 / 640, 1.0 / 480}, vec4At(d.ubo, fvp.UBOOffset))

	src := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.Source})
	assert.Same(t, input, d.textures[src].Image)
	assert.Equal(t, FilterNearest, d.textures[src].Filter)
	assert.Equal(t, WrapClampToEdge, d.textures[src].Wrap)
}

func TestFinalPassUsesCallerMVP(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"a.wgsl": {textures: []string{"Source"}},
		"b.wgsl": {textures: []string{"Source"}},
	})
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("a.wgsl"), DefaultPassConfig("b.wgsl")}))

	m := identity
	m[0], m[5] = 2, -1
	c.SetMVP(&m)
	c.SetViewport(Viewport{Width: 100, Height: 100})
	runFrame(t, c, exec, newInput(), 1)

	mvp0 := c.Passes()[0].Reflection.Semantics[semantics.MVP]
	mvp1 := c.Passes()[1].Reflection.Semantics[semantics.MVP]
	assert.Equal(t, float32(1), floatAt(exec.programs[0].last().ubo, mvp0.UBOOffset), "offscreen passes use identity")
	assert.Equal(t, float32(2), floatAt(exec.programs[1].last().ubo, mvp1.UBOOffset))
	assert.Equal(t, float32(-1), floatAt(exec.programs[1].last().ubo, mvp1.UBOOffset+20))

	c.SetMVP(nil)
	runFrame(t, c, exec, newInput(), 2)
	assert.Equal(t, float32(1), floatAt(exec.programs[1].last().ubo, mvp1.UBOOffset))
}

func TestTwoPassFeedback(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"main.wgsl":  {pragmas: []string{"name Main"}, textures: []string{"Source"}},
		"final.wgsl": {ubo: []member{{"MainFeedbackSize", "vec4<f32>"}}, textures: []string{"Source", "MainFeedback"}},
	})
	main := DefaultPassConfig("main.wgsl")
	main.ScaleX = Scale{Type: ScaleSource, Factor: 2}
	main.ScaleY = Scale{Type: ScaleSource, Factor: 2}
	require.NoError(t, c.Build([]PassConfig{main, DefaultPassConfig("final.wgsl")}))

	assert.Equal(t, []int{0}, c.FeedbackPasses())
	assert.ElementsMatch(t, []string{"pass0", "feedback0"}, exec.labels())
	assert.Equal(t, "Main", c.Passes()[0].Name)

	r := c.Passes()[1].Reflection
	src := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.Source})
	fb := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.PassFeedback})

	c.SetViewport(Viewport{Width: 800, Height: 600})
	input := newInput()

	runFrame(t, c, exec, input, 1)
	assert.Equal(t, []string{"feedback0"}, exec.clears)
	first := exec.programs[1].last()
	assert.Equal(t, 1, first.contents[src])
	assert.Equal(t, 0, first.contents[fb], "feedback starts cleared")

	runFrame(t, c, exec, input, 2)
	second := exec.programs[1].last()
	assert.Equal(t, 2, second.contents[src])
	assert.Equal(t, 1, second.contents[fb], "feedback holds the previous frame")
	assert.Equal(t, []string{"feedback0"}, exec.clears, "the clear happens once")

	tb, _ := r.Texture(semantics.TextureRef{Semantic: semantics.PassFeedback})
	assert.Equal(t, [4]float32{640, 480, 1.0 / 640, 1.0 / 480}, vec4At(second.ubo, tb.SizeUBOOffset))
	assert.Equal(t, Size{Width: 640, Height: 480}, c.Passes()[0].Size)
}

func TestHistoryDepth(t *testing.T) {
	tests := []struct {
		name     string
		textures []string
		want     int
	}{
		{"none", []string{"Source"}, 0},
		{"live input only", []string{"OriginalHistory0"}, 0},
		{"two frames", []string{"Source", "OriginalHistory1", "OriginalHistory2"}, 2},
		{"deepest index wins", []string{"OriginalHistory3"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, exec := newTestChain(t, map[string]testShader{"p.wgsl": {textures: tt.textures}})
			require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))
			assert.Equal(t, tt.want, c.HistoryDepth())
			assert.Len(t, exec.framebuffers, tt.want)
		})
	}
}

func TestHistoryRing(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"p.wgsl": {textures: []string{"OriginalHistory1", "OriginalHistory2", "Original"}},
	})
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))
	r := c.Passes()[0].Reflection
	h1 := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.OriginalHistory, Index: 1})
	h2 := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.OriginalHistory, Index: 2})
	orig := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.Original})

	c.SetViewport(Viewport{Width: 64, Height: 64})
	input := newInput()
	want := [][3]int{{1, 0, 0}, {2, 1, 0}, {3, 2, 1}, {4, 3, 2}}
	for i, w := range want {
		runFrame(t, c, exec, input, i+1)
		d := exec.programs[0].last()
		assert.Equal(t, w, [3]int{d.contents[orig], d.contents[h1], d.contents[h2]}, "frame %d", i+1)
	}
	assert.ElementsMatch(t, []string{"history1", "history2"}, exec.clears)
	assert.Len(t, exec.copies, len(want))
}

func TestHistorySurvivesInputResize(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"p.wgsl": {textures: []string{"OriginalHistory1", "OriginalHistory2", "Original"}},
	})
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))
	r := c.Passes()[0].Reflection
	h1 := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.OriginalHistory, Index: 1})
	h2 := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.OriginalHistory, Index: 2})
	orig := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.Original})

	c.SetViewport(Viewport{Width: 64, Height: 64})
	input := newInput()
	runFrame(t, c, exec, input, 1)
	runFrame(t, c, exec, input, 2)

	input.size = Size{Width: 640, Height: 480}
	want := [][3]int{{3, 2, 1}, {4, 3, 2}, {5, 4, 3}}
	for i, w := range want {
		runFrame(t, c, exec, input, i+3)
		d := exec.programs[0].last()
		assert.Equal(t, w, [3]int{d.contents[orig], d.contents[h1], d.contents[h2]}, "frame %d", i+3)
	}
	for _, fb := range exec.framebuffers {
		assert.Equal(t, input.size, fb.size, "%s", fb.label)
		// one allocation at build plus one reallocation when recycled
		assert.Equal(t, 2, fb.resizes, "%s", fb.label)
	}
}

func TestBuildErrors(t *testing.T) {
	shaders := map[string]testShader{
		"ok.wgsl":      {textures: []string{"Source"}},
		"named.wgsl":   {pragmas: []string{"name Main"}, textures: []string{"Source"}},
		"future.wgsl":  {textures: []string{"PassOutput1"}},
		"self.wgsl":    {textures: []string{"PassFeedback0"}},
		"unknown.wgsl": {textures: []string{"Nonexistent"}},
		"gamma1.wgsl":  {pragmas: []string{`parameter Gamma "Gamma" 2.2 1.0 3.0 0.1`}, push: []member{{"Gamma", "f32"}}},
		"gamma1b.wgsl": {pragmas: []string{`parameter Gamma "Gamma" 2.2 1.0 3.0 0.1`}, push: []member{{"Gamma", "f32"}}},
		"gamma2.wgsl":  {pragmas: []string{`parameter Gamma "Gamma" 2.4 1.0 3.0 0.1`}, push: []member{{"Gamma", "f32"}}},
		"badtype.wgsl": {ubo: []member{{"FrameCount", "f32"}}},
		"lutname.wgsl": {pragmas: []string{"name Mask"}, textures: []string{"Source"}},
	}
	mask := image.NewRGBA(image.Rect(0, 0, 2, 2))

	tests := []struct {
		name   string
		passes []string
		opts   []Option
		want   error
	}{
		{"empty", nil, nil, ErrNoPasses},
		{"future pass output", []string{"future.wgsl", "ok.wgsl"}, nil, reflection.ErrNonCausal},
		{"own feedback", []string{"self.wgsl"}, nil, reflection.ErrNonCausal},
		{"unknown texture", []string{"unknown.wgsl"}, nil, reflection.ErrUnknownSemantic},
		{"duplicate pass alias", []string{"named.wgsl", "named.wgsl"}, nil, ErrDuplicateAlias},
		{"pass alias clashes with lookup", []string{"lutname.wgsl"}, []Option{WithLookupTextures(LookupTexture{ID: "Mask", Image: mask})}, ErrDuplicateAlias},
		{"conflicting parameters", []string{"gamma1.wgsl", "gamma2.wgsl"}, nil, ErrDuplicateParameter},
		{"wrong semantic type", []string{"badtype.wgsl"}, nil, reflection.ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, exec := newTestChain(t, shaders, tt.opts...)
			var configs []PassConfig
			for _, p := range tt.passes {
				configs = append(configs, DefaultPassConfig(p))
			}
			err := c.Build(configs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Nil(t, c.Passes())
			for _, p := range exec.programs {
				assert.True(t, p.released, "programs of a failed build are released")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		c, _ := newTestChain(t, shaders)
		assert.Error(t, c.Build([]PassConfig{DefaultPassConfig("nope.wgsl")}))
	})

	t.Run("identical parameters collapse", func(t *testing.T) {
		c, _ := newTestChain(t, shaders)
		require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("gamma1.wgsl"), DefaultPassConfig("gamma1b.wgsl")}))
		require.Len(t, c.Parameters(), 1)
		assert.Equal(t, "Gamma", c.Parameters()[0].ID)
	})
}

func TestFailedRebuildKeepsChain(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"ok.wgsl":     {textures: []string{"Source"}},
		"future.wgsl": {textures: []string{"PassOutput1"}},
	})
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("ok.wgsl")}))
	good := exec.programs[0]

	err := c.Build([]PassConfig{DefaultPassConfig("future.wgsl"), DefaultPassConfig("ok.wgsl")})
	require.ErrorIs(t, err, reflection.ErrNonCausal)
	assert.False(t, good.released)
	require.Len(t, c.Passes(), 1)

	c.SetViewport(Viewport{Width: 32, Height: 32})
	runFrame(t, c, exec, newInput(), 1)
	assert.Len(t, good.draws, 1)

	exec.failProgram = true
	require.Error(t, c.Rebuild())
	assert.False(t, good.released)

	exec.failProgram = false
	require.NoError(t, c.Rebuild())
	assert.True(t, good.released, "a successful rebuild releases the previous chain")
}

func TestParameters(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"p.wgsl": {
			pragmas: []string{
				`parameter Gamma "Gamma" 2.2 1.0 3.0 0.1`,
				`parameter Unused "Never read" 1.0 0.0 2.0`,
			},
			push:     []member{{"Gamma", "f32"}},
			textures: []string{"Source"},
		},
	}, WithParameters(map[string]float32{"Gamma": 2.5, "Missing": 1}))
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))

	params := c.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, float32(2.5), params[0].Value)
	assert.Equal(t, float32(2.2), params[0].Initial)
	assert.Equal(t, float32(1), params[1].Value)
	assert.InDelta(t, 0.2, params[1].Step, 1e-6)

	r := c.Passes()[0].Reflection
	gamma := r.Parameters[0]
	require.True(t, gamma.PushActive)
	_, unusedBound := r.Parameters[1]
	assert.False(t, unusedBound, "parameters the shader never reads are not bound")

	c.SetViewport(Viewport{Width: 16, Height: 16})
	input := newInput()
	runFrame(t, c, exec, input, 1)
	assert.Equal(t, float32(2.5), floatAt(exec.programs[0].last().push, gamma.PushOffset))

	require.NoError(t, c.SetParameter("Gamma", 1.5))
	runFrame(t, c, exec, input, 2)
	assert.Equal(t, float32(1.5), floatAt(exec.programs[0].last().push, gamma.PushOffset))

	assert.ErrorIs(t, c.SetParameter("Nope", 1), ErrUnknownParameter)
	assert.ErrorIs(t, c.ReplaceParameters(map[string]float32{"Gamma": 3, "Nope": 1}), ErrUnknownParameter)
	assert.Equal(t, float32(1.5), c.Parameters()[0].Value, "a failed replace changes nothing")

	require.NoError(t, c.ReplaceParameters(map[string]float32{"Gamma": 1.8, "Unused": 0.5}))
	require.NoError(t, c.Rebuild())
	assert.Equal(t, float32(1.8), c.Parameters()[0].Value, "live values survive a rebuild")
	assert.Equal(t, float32(0.5), c.Parameters()[1].Value)

	c.ResetParameters()
	assert.Equal(t, float32(2.2), c.Parameters()[0].Value)
}

func TestFrameCounters(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"p.wgsl": {
			ubo: []member{
				{"FrameCount", "u32"},
				{"FrameDirection", "i32"},
				{"Rotation", "u32"},
				{"TotalSubFrames", "u32"},
				{"CurrentSubFrame", "u32"},
			},
		},
	})
	cfg := DefaultPassConfig("p.wgsl")
	cfg.FrameCountMod = 4
	require.NoError(t, c.Build([]PassConfig{cfg}))

	c.SetViewport(Viewport{Width: 16, Height: 16})
	c.SetInput(newInput())
	c.SetFrame(FrameInfo{Count: 10, Direction: -1, Rotation: 3, TotalSubFrames: 2, CurrentSubFrame: 1})
	require.NoError(t, c.RunFinal(nil, nil))

	sem := c.Passes()[0].Reflection.Semantics
	ubo := exec.programs[0].last().ubo
	assert.Equal(t, uint32(2), uintAt(ubo, sem[semantics.FrameCount].UBOOffset))
	assert.Equal(t, int32(-1), int32(uintAt(ubo, sem[semantics.FrameDirection].UBOOffset)))
	assert.Equal(t, uint32(3), uintAt(ubo, sem[semantics.Rotation].UBOOffset))
	assert.Equal(t, uint32(2), uintAt(ubo, sem[semantics.TotalSubFrames].UBOOffset))
	assert.Equal(t, uint32(1), uintAt(ubo, sem[semantics.CurrentSubFrame].UBOOffset))
}

func TestPassOutputsAndMipmaps(t *testing.T) {
	c, exec := newTestChain(t, map[string]testShader{
		"a.wgsl": {pragmas: []string{"name First", "format R16G16B16A16_SFLOAT"}, textures: []string{"Source"}},
		"b.wgsl": {textures: []string{"Source"}},
		"c.wgsl": {ubo: []member{{"FirstSize", "vec4<f32>"}}, textures: []string{"Source", "First", "PassOutput1"}},
	})
	a := DefaultPassConfig("a.wgsl")
	a.ScaleX = Scale{Type: ScaleAbsolute, Factor: 256}
	a.ScaleY = Scale{Type: ScaleAbsolute, Factor: 128}
	a.MaxMipLevels = 4
	b := DefaultPassConfig("b.wgsl")
	b.MipmapInput = true
	b.Filter = FilterLinear
	b.ScaleX = Scale{Type: ScaleOriginal, Factor: 0.5}
	b.ScaleY = Scale{Type: ScaleOriginal, Factor: 0.5}
	b.SRGBFramebuffer = true
	final := DefaultPassConfig("c.wgsl")
	require.NoError(t, c.Build([]PassConfig{a, b, final}))

	c.SetViewport(Viewport{Width: 800, Height: 600})
	runFrame(t, c, exec, newInput(), 1)

	pass0 := exec.framebuffers[0]
	pass1 := exec.framebuffers[1]
	assert.Equal(t, Size{Width: 256, Height: 128}, pass0.size)
	assert.Equal(t, format.R16G16B16A16Sfloat, pass0.format)
	assert.Equal(t, 4, pass0.levels)
	assert.Equal(t, Size{Width: 160, Height: 120}, pass1.size)
	assert.Equal(t, format.R8G8B8A8Srgb, pass1.format)
	assert.Equal(t, 1, pass1.levels)
	assert.Equal(t, []string{"pass0"}, exec.mipmaps)

	r := c.Passes()[2].Reflection
	first := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.PassOutput, Index: 0})
	second := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.PassOutput, Index: 1})
	d := exec.programs[2].last()
	assert.Same(t, pass0, d.textures[first].Image)
	assert.Equal(t, FilterLinear, d.textures[first].Filter, "pass outputs sample like the consuming pass's source")
	assert.Same(t, pass1, d.textures[second].Image)
	tb, _ := r.Texture(semantics.TextureRef{Semantic: semantics.PassOutput})
	assert.Equal(t, [4]float32{256, 128, 1.0 / 256, 1.0 / 128}, vec4At(d.ubo, tb.SizeUBOOffset))
}

func TestLookupTextures(t *testing.T) {
	mask := image.NewRGBA(image.Rect(0, 0, 4, 2))
	c, exec := newTestChain(t, map[string]testShader{
		"p.wgsl": {ubo: []member{{"MaskSize", "vec4<f32>"}}, textures: []string{"Source", "Mask"}},
	}, WithLookupTextures(LookupTexture{ID: "Mask", Image: mask, Filter: FilterLinear, Wrap: WrapRepeat, Mipmap: true}))
	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))
	require.Len(t, exec.textures, 1)

	c.SetViewport(Viewport{Width: 16, Height: 16})
	runFrame(t, c, exec, newInput(), 1)

	r := c.Passes()[0].Reflection
	user := textureBinding(t, r, semantics.TextureRef{Semantic: semantics.User})
	d := exec.programs[0].last()
	assert.Same(t, exec.textures[0], d.textures[user].Image)
	assert.Equal(t, FilterLinear, d.textures[user].Filter)
	assert.Equal(t, WrapRepeat, d.textures[user].Wrap)
	tb, _ := r.Texture(semantics.TextureRef{Semantic: semantics.User})
	assert.Equal(t, [4]float32{4, 2, 0.25, 0.5}, vec4At(d.ubo, tb.SizeUBOOffset))

	require.NoError(t, c.Close())
	assert.True(t, exec.textures[0].released)
	assert.True(t, exec.closed)
}

func TestFrameStateErrors(t *testing.T) {
	c, _ := newTestChain(t, map[string]testShader{"p.wgsl": {textures: []string{"Source"}}})
	assert.ErrorIs(t, c.RunOffscreen(nil), ErrNotBuilt)
	assert.ErrorIs(t, c.SetParameter("x", 1), ErrNotBuilt)
	assert.ErrorIs(t, c.Rebuild(), ErrNotBuilt)

	require.NoError(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}))
	assert.ErrorIs(t, c.RunFinal(nil, nil), ErrNoInput)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.RunFinal(nil, nil), ErrClosed)
	assert.ErrorIs(t, c.Build([]PassConfig{DefaultPassConfig("p.wgsl")}), ErrClosed)
	assert.NoError(t, c.Close(), "closing twice is a no-op")
}

type syncExecutor struct {
	fakeExecutor
	index int
}

func (s *syncExecutor) SetSyncIndex(i int) { s.index = i }
func (s *syncExecutor) SyncIndices() int   { return 2 }

func TestSetSyncIndex(t *testing.T) {
	exec := &syncExecutor{}
	c := New(exec)
	c.SetSyncIndex(1)
	assert.Equal(t, 1, exec.index)

	New(&fakeExecutor{}).SetSyncIndex(1) // ignored without SyncIndexer
}
