package glgpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/format"
)

// source is an image the executor can sample.
type source interface {
	shaderchain.Image
	glTexture() uint32
	Levels() int
}

// Input is a caller-owned texture used as the chain input.
type Input struct {
	tex    uint32
	size   shaderchain.Size
	format format.Format
}

func (in *Input) Size() shaderchain.Size { return in.size }
func (in *Input) Format() format.Format  { return in.format }
func (in *Input) Levels() int            { return 1 }
func (in *Input) glTexture() uint32      { return in.tex }

// Framebuffer is a chain-owned render target: a texture and a framebuffer
// object attached to its first level.
type Framebuffer struct {
	exec  *Executor
	label string

	size      shaderchain.Size
	requested format.Format
	format    format.Format
	levels    int

	tex uint32
	fbo uint32
}

var _ shaderchain.Framebuffer = (*Framebuffer)(nil)

func (f *Framebuffer) Size() shaderchain.Size { return f.size }
func (f *Framebuffer) Format() format.Format  { return f.format }
func (f *Framebuffer) Levels() int            { return f.levels }
func (f *Framebuffer) glTexture() uint32      { return f.tex }

// Resize reallocates the framebuffer when size, requested format or level
// count change. The old objects are deleted right away. A format the
// context cannot render to is replaced by R8G8B8A8_UNORM.
func (f *Framebuffer) Resize(size shaderchain.Size, fm format.Format, levels int) (bool, error) {
	if levels < 1 {
		levels = 1
	}
	if f.fbo != 0 && f.size == size && f.requested == fm && f.levels == levels {
		return false, nil
	}
	if size.Empty() {
		return false, fmt.Errorf("%w: %s %dx%d", ErrEmptySize, f.label, size.Width, size.Height)
	}
	tex, fbo, actual, err := f.exec.createTarget(f.label, size, fm, levels)
	if err != nil {
		return false, err
	}
	f.Release()
	f.size, f.requested, f.format, f.levels = size, fm, actual, levels
	f.tex, f.fbo = tex, fbo
	f.exec.log.Debug("glgpu: allocated framebuffer",
		"label", f.label, "width", size.Width, "height", size.Height,
		"format", actual, "levels", levels)
	return true, nil
}

// Release deletes the framebuffer's objects.
func (f *Framebuffer) Release() {
	if f.fbo != 0 {
		f.exec.gl.DeleteFramebuffer(f.fbo)
	}
	if f.tex != 0 {
		f.exec.gl.DeleteTexture(f.tex)
	}
	f.tex, f.fbo = 0, 0
	f.size, f.levels = shaderchain.Size{}, 0
}

// createTarget creates a texture and framebuffer object, falling back to
// R8G8B8A8_UNORM when the context rejects fm.
func (e *Executor) createTarget(label string, size shaderchain.Size, fm format.Format, levels int) (tex, fbo uint32, actual format.Format, err error) {
	create := func(f format.Format) (uint32, uint32, error) {
		tex, err := e.gl.CreateTexture(TextureDesc{Width: size.Width, Height: size.Height, Levels: levels, Format: f})
		if err != nil {
			return 0, 0, err
		}
		fbo, err := e.gl.CreateFramebuffer(tex)
		if err != nil {
			e.gl.DeleteTexture(tex)
			return 0, 0, err
		}
		return tex, fbo, nil
	}

	tex, fbo, err = create(fm)
	if err == nil {
		return tex, fbo, fm, nil
	}
	renderable := errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrIncompleteFramebuffer)
	if fm == fallbackFormat || !renderable {
		return 0, 0, 0, fmt.Errorf("glgpu: create %s: %w", label, err)
	}
	e.log.Warn("glgpu: framebuffer format unavailable, falling back",
		"label", label, "format", fm, "fallback", fallbackFormat, "reason", err)
	tex, fbo, err = create(fallbackFormat)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("glgpu: create %s with fallback format: %w", label, err)
	}
	return tex, fbo, fallbackFormat, nil
}

// Texture is an immutable lookup texture.
type Texture struct {
	exec   *Executor
	label  string
	size   shaderchain.Size
	levels int
	tex    uint32
}

func (t *Texture) Size() shaderchain.Size { return t.size }
func (t *Texture) Format() format.Format  { return format.R8G8B8A8Unorm }
func (t *Texture) Levels() int            { return t.levels }
func (t *Texture) glTexture() uint32      { return t.tex }

// Release deletes the texture.
func (t *Texture) Release() {
	if t.tex == 0 {
		return
	}
	t.exec.gl.DeleteTexture(t.tex)
	t.tex = 0
}

// NewTexture uploads img as an RGBA8 texture. With opts.Mipmap the lower
// levels are generated by the driver.
func (e *Executor) NewTexture(img *image.RGBA, opts shaderchain.TextureOptions) (shaderchain.Texture, error) {
	b := img.Bounds()
	size := shaderchain.Size{Width: b.Dx(), Height: b.Dy()}
	if size.Empty() {
		return nil, fmt.Errorf("%w: texture %s", ErrEmptySize, opts.Label)
	}
	levels := 1
	if opts.Mipmap {
		levels = shaderchain.MipLevels(size, 0)
	}
	tex, err := e.gl.CreateTexture(TextureDesc{Width: size.Width, Height: size.Height, Levels: levels, Format: format.R8G8B8A8Unorm})
	if err != nil {
		return nil, fmt.Errorf("glgpu: create texture %s: %w", opts.Label, err)
	}
	e.gl.UploadTexture(tex, 0, size.Width, size.Height, packed(img))
	if levels > 1 {
		e.gl.GenerateMipmap(tex)
	}
	return &Texture{exec: e, label: opts.Label, size: size, levels: levels, tex: tex}, nil
}

// packed returns img's pixels without row padding.
func packed(img *image.RGBA) []byte {
	b := img.Bounds()
	row := 4 * b.Dx()
	if img.Stride == row && b.Min == (image.Point{}) {
		return img.Pix[:row*b.Dy()]
	}
	pix := make([]byte, 0, row*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		pix = append(pix, img.Pix[off:off+row]...)
	}
	return pix
}
