package glgpu

import (
	"errors"

	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/format"
)

// GL is the subset of OpenGL the executor uses. Object names are GL names;
// 0 is the default framebuffer.
type GL interface {
	// CreateProgram compiles and links a vertex and fragment shader. The
	// error carries the info log.
	CreateProgram(vertex, fragment string) (uint32, error)
	DeleteProgram(program uint32)
	UseProgram(program uint32)

	// UniformLocation returns -1 for names the linker dropped.
	UniformLocation(program uint32, name string) int32
	Uniform1f(loc int32, v float32)
	Uniform1i(loc int32, v int32)
	Uniform1ui(loc int32, v uint32)
	Uniform4fv(loc int32, v []float32)
	UniformMatrix4fv(loc int32, v []float32)

	// CreateTexture allocates every level of a 2D texture. Formats without
	// a GL equivalent fail with ErrUnsupportedFormat.
	CreateTexture(desc TextureDesc) (uint32, error)
	// UploadTexture replaces one level with tightly packed RGBA8 pixels.
	UploadTexture(tex uint32, level, width, height int, pix []byte)
	GenerateMipmap(tex uint32)
	DeleteTexture(tex uint32)
	BindTexture(unit, tex uint32)

	CreateSampler(desc SamplerDesc) uint32
	DeleteSampler(sampler uint32)
	BindSampler(unit, sampler uint32)

	// CreateFramebuffer attaches level 0 of tex as the only color
	// attachment. It fails with ErrIncompleteFramebuffer when the driver
	// cannot render to the texture.
	CreateFramebuffer(tex uint32) (uint32, error)
	DeleteFramebuffer(fb uint32)
	BindFramebuffer(fb uint32)
	Viewport(x, y, width, height int)
	// Clear fills the bound framebuffer with transparent black.
	Clear()

	// CreateQuad uploads a triangle strip with a vec4 position at
	// location 0 and a vec2 texture coordinate at location 1.
	CreateQuad(vertices []float32) (uint32, error)
	DeleteQuad(vao uint32)
	DrawQuad(vao uint32)
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Width, Height int
	Levels        int
	Format        format.Format
}

// SamplerDesc describes a sampler object.
type SamplerDesc struct {
	Filter    shaderchain.Filter
	MipFilter shaderchain.Filter
	Wrap      shaderchain.Wrap

	// Mipmapped selects a mipmap minification filter.
	Mipmapped bool
}

var (
	// ErrUnsupportedFormat is returned by CreateTexture for formats the
	// context has no internal format for.
	ErrUnsupportedFormat = errors.New("glgpu: unsupported texture format")

	// ErrIncompleteFramebuffer is returned by CreateFramebuffer when the
	// attachment is not renderable.
	ErrIncompleteFramebuffer = errors.New("glgpu: incomplete framebuffer")
)
