// Package glcore implements glgpu.GL on an OpenGL 3.3 core context with
// go-gl.
package glcore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/backend/glgpu"
	"github.com/gogpu/shaderchain/format"
)

// Context issues GL calls on the current context. Create it, and use it,
// on the goroutine that owns the context.
type Context struct {
	vbos map[uint32]uint32 // vertex array -> buffer
}

var _ glgpu.GL = (*Context)(nil)

// New loads the GL function pointers of the current context.
func New() (*Context, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glcore: init: %w", err)
	}
	return &Context{vbos: make(map[uint32]uint32)}, nil
}

// Version returns the context's GL_VERSION string.
func (c *Context) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func compileShader(kind uint32, src string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(shader, n, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, errors.New(strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func (c *Context) CreateProgram(vertex, fragment string) (uint32, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, vertex)
	if err != nil {
		return 0, fmt.Errorf("glcore: vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(gl.FRAGMENT_SHADER, fragment)
	if err != nil {
		return 0, fmt.Errorf("glcore: fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(prog, n, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("glcore: link: %s", strings.TrimRight(log, "\x00"))
	}
	gl.DetachShader(prog, vs)
	gl.DetachShader(prog, fs)
	return prog, nil
}

func (c *Context) DeleteProgram(program uint32) { gl.DeleteProgram(program) }
func (c *Context) UseProgram(program uint32)    { gl.UseProgram(program) }

func (c *Context) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (c *Context) Uniform1f(loc int32, v float32)    { gl.Uniform1f(loc, v) }
func (c *Context) Uniform1i(loc int32, v int32)      { gl.Uniform1i(loc, v) }
func (c *Context) Uniform1ui(loc int32, v uint32)    { gl.Uniform1ui(loc, v) }
func (c *Context) Uniform4fv(loc int32, v []float32) { gl.Uniform4fv(loc, 1, &v[0]) }

func (c *Context) UniformMatrix4fv(loc int32, v []float32) {
	gl.UniformMatrix4fv(loc, 1, false, &v[0])
}

// textureFormat is the internal format, pixel format and component type
// of a format.Format.
type textureFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

var textureFormats = map[format.Format]textureFormat{
	format.R8Unorm:       {gl.R8, gl.RED, gl.UNSIGNED_BYTE},
	format.R8Uint:        {gl.R8UI, gl.RED_INTEGER, gl.UNSIGNED_BYTE},
	format.R8Sint:        {gl.R8I, gl.RED_INTEGER, gl.BYTE},
	format.R8G8Unorm:     {gl.RG8, gl.RG, gl.UNSIGNED_BYTE},
	format.R8G8Uint:      {gl.RG8UI, gl.RG_INTEGER, gl.UNSIGNED_BYTE},
	format.R8G8Sint:      {gl.RG8I, gl.RG_INTEGER, gl.BYTE},
	format.R8G8B8A8Unorm: {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	format.R8G8B8A8Uint:  {gl.RGBA8UI, gl.RGBA_INTEGER, gl.UNSIGNED_BYTE},
	format.R8G8B8A8Sint:  {gl.RGBA8I, gl.RGBA_INTEGER, gl.BYTE},
	format.R8G8B8A8Srgb:  {gl.SRGB8_ALPHA8, gl.RGBA, gl.UNSIGNED_BYTE},

	format.A2B10G10R10UnormPack32: {gl.RGB10_A2, gl.RGBA, gl.UNSIGNED_INT_2_10_10_10_REV},
	format.A2B10G10R10UintPack32:  {gl.RGB10_A2UI, gl.RGBA_INTEGER, gl.UNSIGNED_INT_2_10_10_10_REV},

	format.R16Uint:            {gl.R16UI, gl.RED_INTEGER, gl.UNSIGNED_SHORT},
	format.R16Sint:            {gl.R16I, gl.RED_INTEGER, gl.SHORT},
	format.R16Sfloat:          {gl.R16F, gl.RED, gl.HALF_FLOAT},
	format.R16G16Uint:         {gl.RG16UI, gl.RG_INTEGER, gl.UNSIGNED_SHORT},
	format.R16G16Sint:         {gl.RG16I, gl.RG_INTEGER, gl.SHORT},
	format.R16G16Sfloat:       {gl.RG16F, gl.RG, gl.HALF_FLOAT},
	format.R16G16B16A16Uint:   {gl.RGBA16UI, gl.RGBA_INTEGER, gl.UNSIGNED_SHORT},
	format.R16G16B16A16Sint:   {gl.RGBA16I, gl.RGBA_INTEGER, gl.SHORT},
	format.R16G16B16A16Sfloat: {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},

	format.R32Uint:            {gl.R32UI, gl.RED_INTEGER, gl.UNSIGNED_INT},
	format.R32Sint:            {gl.R32I, gl.RED_INTEGER, gl.INT},
	format.R32Sfloat:          {gl.R32F, gl.RED, gl.FLOAT},
	format.R32G32Uint:         {gl.RG32UI, gl.RG_INTEGER, gl.UNSIGNED_INT},
	format.R32G32Sint:         {gl.RG32I, gl.RG_INTEGER, gl.INT},
	format.R32G32Sfloat:       {gl.RG32F, gl.RG, gl.FLOAT},
	format.R32G32B32A32Uint:   {gl.RGBA32UI, gl.RGBA_INTEGER, gl.UNSIGNED_INT},
	format.R32G32B32A32Sint:   {gl.RGBA32I, gl.RGBA_INTEGER, gl.INT},
	format.R32G32B32A32Sfloat: {gl.RGBA32F, gl.RGBA, gl.FLOAT},
}

func (c *Context) CreateTexture(desc glgpu.TextureDesc) (uint32, error) {
	tf, ok := textureFormats[desc.Format]
	if !ok {
		return 0, fmt.Errorf("%w: %v", glgpu.ErrUnsupportedFormat, desc.Format)
	}
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	w, h := int32(desc.Width), int32(desc.Height)
	for level := range desc.Levels {
		gl.TexImage2D(gl.TEXTURE_2D, int32(level), tf.internal, w, h, 0, tf.format, tf.xtype, nil)
		w, h = max(w/2, 1), max(h/2, 1)
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_BASE_LEVEL, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(desc.Levels-1))
	if err := glError(); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("%w: %v: %v", glgpu.ErrUnsupportedFormat, desc.Format, err)
	}
	return tex, nil
}

func (c *Context) UploadTexture(tex uint32, level, width, height int, pix []byte) {
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.TexSubImage2D(gl.TEXTURE_2D, int32(level), 0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
}

func (c *Context) GenerateMipmap(tex uint32) {
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.GenerateMipmap(gl.TEXTURE_2D)
}

func (c *Context) DeleteTexture(tex uint32) { gl.DeleteTextures(1, &tex) }

func (c *Context) BindTexture(unit, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func minFilter(desc glgpu.SamplerDesc) int32 {
	linear := desc.Filter == shaderchain.FilterLinear
	if !desc.Mipmapped {
		if linear {
			return gl.LINEAR
		}
		return gl.NEAREST
	}
	mipLinear := desc.MipFilter == shaderchain.FilterLinear
	switch {
	case linear && mipLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	case linear:
		return gl.LINEAR_MIPMAP_NEAREST
	case mipLinear:
		return gl.NEAREST_MIPMAP_LINEAR
	}
	return gl.NEAREST_MIPMAP_NEAREST
}

func wrapMode(w shaderchain.Wrap) int32 {
	switch w {
	case shaderchain.WrapClampToBorder:
		return gl.CLAMP_TO_BORDER
	case shaderchain.WrapRepeat:
		return gl.REPEAT
	case shaderchain.WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

func (c *Context) CreateSampler(desc glgpu.SamplerDesc) uint32 {
	var s uint32
	gl.GenSamplers(1, &s)
	mag := int32(gl.NEAREST)
	if desc.Filter == shaderchain.FilterLinear {
		mag = gl.LINEAR
	}
	wrap := wrapMode(desc.Wrap)
	gl.SamplerParameteri(s, gl.TEXTURE_MIN_FILTER, minFilter(desc))
	gl.SamplerParameteri(s, gl.TEXTURE_MAG_FILTER, mag)
	gl.SamplerParameteri(s, gl.TEXTURE_WRAP_S, wrap)
	gl.SamplerParameteri(s, gl.TEXTURE_WRAP_T, wrap)
	border := [4]float32{}
	gl.SamplerParameterfv(s, gl.TEXTURE_BORDER_COLOR, &border[0])
	return s
}

func (c *Context) DeleteSampler(sampler uint32)     { gl.DeleteSamplers(1, &sampler) }
func (c *Context) BindSampler(unit, sampler uint32) { gl.BindSampler(unit, sampler) }

func (c *Context) CreateFramebuffer(tex uint32) (uint32, error) {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fb)
		return 0, fmt.Errorf("%w: status 0x%x", glgpu.ErrIncompleteFramebuffer, status)
	}
	return fb, nil
}

func (c *Context) DeleteFramebuffer(fb uint32) { gl.DeleteFramebuffers(1, &fb) }

func (c *Context) BindFramebuffer(fb uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.SCISSOR_TEST)
}

func (c *Context) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (c *Context) Clear() {
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

const quadStride = 6 * 4

func (c *Context) CreateQuad(vertices []float32) (uint32, error) {
	if len(vertices) == 0 || len(vertices)%6 != 0 {
		return 0, fmt.Errorf("glcore: quad needs 6 floats per vertex, got %d", len(vertices))
	}
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 4, gl.FLOAT, false, quadStride, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, quadStride, 16)
	gl.BindVertexArray(0)
	if err := glError(); err != nil {
		gl.DeleteBuffers(1, &vbo)
		gl.DeleteVertexArrays(1, &vao)
		return 0, fmt.Errorf("glcore: create quad: %w", err)
	}
	c.vbos[vao] = vbo
	return vao, nil
}

func (c *Context) DeleteQuad(vao uint32) {
	if vbo, ok := c.vbos[vao]; ok {
		gl.DeleteBuffers(1, &vbo)
		delete(c.vbos, vao)
	}
	gl.DeleteVertexArrays(1, &vao)
}

func (c *Context) DrawQuad(vao uint32) {
	gl.BindVertexArray(vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
}

// glError drains the GL error queue and reports the first error.
func glError() error {
	var first uint32
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		if first == 0 {
			first = e
		}
	}
	if first != 0 {
		return fmt.Errorf("GL error 0x%x", first)
	}
	return nil
}
