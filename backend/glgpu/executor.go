package glgpu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/format"
)

// Executor errors.
var (
	// ErrTarget is returned when the final pass target is not a FinalTarget.
	ErrTarget = errors.New("glgpu: final target must be a FinalTarget")

	// ErrForeignImage is returned for images created by another executor.
	ErrForeignImage = errors.New("glgpu: image was not created by this executor")

	// ErrEmptySize is returned when a framebuffer or texture has no pixels.
	ErrEmptySize = errors.New("glgpu: empty size")

	// ErrNoGLSL is returned when a program description carries no GLSL.
	ErrNoGLSL = errors.New("glgpu: program has no GLSL")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("glgpu: executor closed")
)

// fallbackFormat replaces formats the context cannot render to.
const fallbackFormat = format.R8G8B8A8Unorm

// Options configure an Executor.
type Options struct {
	// GLSLVersion defaults to GLSL 3.30 core.
	GLSLVersion glsl.Version

	Logger *slog.Logger
}

// FinalTarget is the DrawTarget of the final pass: the caller's
// framebuffer. A nil DrawTarget draws to the default framebuffer.
type FinalTarget struct {
	Framebuffer uint32
}

// Executor implements shaderchain.Executor on a GL context. It is not safe
// for concurrent use.
type Executor struct {
	gl   GL
	opts Options
	log  *slog.Logger

	quad     uint32
	samplers map[SamplerDesc]uint32
	blit     *blitter
	empty    *Texture
	closed   bool
}

var _ shaderchain.Executor = (*Executor)(nil)

// quadVertices is a full screen triangle strip. Texture coordinates follow
// GL's bottom-left origin so every pass samples what the previous one drew
// upright.
var quadVertices = []float32{
	-1, -1, 0, 1, 0, 0,
	1, -1, 0, 1, 1, 0,
	-1, 1, 0, 1, 0, 1,
	1, 1, 0, 1, 1, 1,
}

// New creates an executor on a current GL context.
func New(gl GL, opts Options) (*Executor, error) {
	if gl == nil {
		return nil, errors.New("glgpu: nil GL")
	}
	if opts.GLSLVersion == (glsl.Version{}) {
		opts.GLSLVersion = glsl.Version330
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Executor{
		gl:       gl,
		opts:     opts,
		log:      log,
		samplers: make(map[SamplerDesc]uint32),
	}
	quad, err := gl.CreateQuad(quadVertices)
	if err != nil {
		return nil, fmt.Errorf("glgpu: create quad: %w", err)
	}
	e.quad = quad
	empty, err := e.NewTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)), shaderchain.TextureOptions{Label: "empty"})
	if err != nil {
		gl.DeleteQuad(quad)
		return nil, fmt.Errorf("glgpu: create empty texture: %w", err)
	}
	e.empty = empty.(*Texture)
	return e, nil
}

// Target reports GLSL with flattened uniform blocks.
func (e *Executor) Target() compile.Target {
	return compile.Target{
		Dialect:     crosscompile.GLSL,
		Flatten:     true,
		GLSLVersion: e.opts.GLSLVersion,
	}
}

// WrapTexture wraps a caller-owned GL texture as a chain input.
func (e *Executor) WrapTexture(tex uint32, size shaderchain.Size, f format.Format) *Input {
	return &Input{tex: tex, size: size, format: f}
}

// NewFramebuffer returns an unallocated framebuffer.
func (e *Executor) NewFramebuffer(label string) (shaderchain.Framebuffer, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return &Framebuffer{exec: e, label: label}, nil
}

func (e *Executor) own(fb shaderchain.Framebuffer) (*Framebuffer, error) {
	f, ok := fb.(*Framebuffer)
	if !ok || f.exec != e {
		return nil, ErrForeignImage
	}
	return f, nil
}

// Copy draws src into dst.
func (e *Executor) Copy(_ shaderchain.Commands, dst shaderchain.Framebuffer, src shaderchain.Image) error {
	d, err := e.own(dst)
	if err != nil {
		return err
	}
	s, ok := src.(source)
	if !ok {
		return ErrForeignImage
	}
	if d.fbo == 0 {
		return fmt.Errorf("glgpu: copy into unallocated framebuffer %s", d.label)
	}
	b, err := e.blitter()
	if err != nil {
		return err
	}
	b.draw(d, s)
	return nil
}

// Clear fills fb with transparent black.
func (e *Executor) Clear(_ shaderchain.Commands, fb shaderchain.Framebuffer) error {
	f, err := e.own(fb)
	if err != nil {
		return err
	}
	if f.fbo == 0 {
		return nil
	}
	e.gl.BindFramebuffer(f.fbo)
	e.gl.Viewport(0, 0, f.size.Width, f.size.Height)
	e.gl.Clear()
	if f.levels > 1 {
		e.gl.GenerateMipmap(f.tex)
	}
	return nil
}

// GenerateMipmaps fills the lower levels of fb from level 0.
func (e *Executor) GenerateMipmaps(_ shaderchain.Commands, fb shaderchain.Framebuffer) error {
	f, err := e.own(fb)
	if err != nil {
		return err
	}
	if f.tex != 0 && f.levels > 1 {
		e.gl.GenerateMipmap(f.tex)
	}
	return nil
}

// sampler returns the shared sampler object for desc.
func (e *Executor) sampler(desc SamplerDesc) uint32 {
	if s, ok := e.samplers[desc]; ok {
		return s
	}
	s := e.gl.CreateSampler(desc)
	e.samplers[desc] = s
	return s
}

// Close deletes the executor's own objects. Programs, framebuffers and
// textures are deleted by their Release.
func (e *Executor) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.blit != nil {
		e.gl.DeleteProgram(e.blit.program)
		e.blit = nil
	}
	if e.empty != nil {
		e.empty.Release()
		e.empty = nil
	}
	for k, s := range e.samplers {
		e.gl.DeleteSampler(s)
		delete(e.samplers, k)
	}
	e.gl.DeleteQuad(e.quad)
	e.quad = 0
	e.gl.BindFramebuffer(0)
	return nil
}
