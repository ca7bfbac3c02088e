package halgpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/format"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"
)

// source is an image the executor can sample or copy from.
type source interface {
	shaderchain.Image
	halTexture() hal.Texture
	halView() hal.TextureView
}

// Input is a caller-owned texture used as the chain input.
type Input struct {
	tex    hal.Texture
	view   hal.TextureView
	size   shaderchain.Size
	format format.Format
}

func (in *Input) Size() shaderchain.Size   { return in.size }
func (in *Input) Format() format.Format    { return in.format }
func (in *Input) halTexture() hal.Texture  { return in.tex }
func (in *Input) halView() hal.TextureView { return in.view }

// Framebuffer is a chain-owned render target.
type Framebuffer struct {
	exec  *Executor
	label string

	size      shaderchain.Size
	requested format.Format
	format    format.Format
	levels    int

	tex  hal.Texture
	view hal.TextureView // every level, for sampling

	// levelViews holds one view per level for rendering, nil when the
	// framebuffer has a single level.
	levelViews []hal.TextureView
}

var _ shaderchain.Framebuffer = (*Framebuffer)(nil)

func (f *Framebuffer) Size() shaderchain.Size   { return f.size }
func (f *Framebuffer) Format() format.Format    { return f.format }
func (f *Framebuffer) Levels() int              { return f.levels }
func (f *Framebuffer) halTexture() hal.Texture  { return f.tex }
func (f *Framebuffer) halView() hal.TextureView { return f.view }

// levelView returns the render view of mip level i.
func (f *Framebuffer) levelView(i int) hal.TextureView {
	if f.levelViews == nil {
		return f.view
	}
	return f.levelViews[i]
}

// Resize reallocates the framebuffer when size, requested format or level
// count change. The previous texture is retired to the current sync index.
// A format the device cannot render to is replaced by R8G8B8A8_UNORM.
func (f *Framebuffer) Resize(size shaderchain.Size, fm format.Format, levels int) (bool, error) {
	if levels < 1 {
		levels = 1
	}
	if f.tex != nil && f.size == size && f.requested == fm && f.levels == levels {
		return false, nil
	}
	if size.Empty() {
		return false, fmt.Errorf("%w: %s %dx%d", ErrEmptySize, f.label, size.Width, size.Height)
	}
	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	tex, actual, err := f.exec.createTexture(f.label, size, fm, levels, usage)
	if err != nil {
		return false, err
	}
	view, levelViews, err := f.exec.createViews(f.label, tex, actual, levels)
	if err != nil {
		f.exec.device.DestroyTexture(tex)
		return false, err
	}
	f.retire()
	f.size, f.requested, f.format, f.levels = size, fm, actual, levels
	f.tex, f.view, f.levelViews = tex, view, levelViews
	f.exec.log.Debug("halgpu: allocated framebuffer",
		"label", f.label, "width", size.Width, "height", size.Height,
		"format", actual, "levels", levels, "sync", f.exec.trash.index)
	return true, nil
}

func (f *Framebuffer) retire() {
	if f.tex == nil {
		return
	}
	dev := f.exec.device
	tex, view, levels := f.tex, f.view, f.levelViews
	f.exec.release(func() {
		destroyViews(dev, view, levels)
		dev.DestroyTexture(tex)
	})
	f.tex, f.view, f.levelViews = nil, nil, nil
}

// Release retires the framebuffer's storage.
func (f *Framebuffer) Release() {
	f.retire()
	f.size, f.levels = shaderchain.Size{}, 0
}

// Texture is an immutable lookup texture.
type Texture struct {
	exec   *Executor
	label  string
	size   shaderchain.Size
	levels int
	tex    hal.Texture
	view   hal.TextureView
}

func (t *Texture) Size() shaderchain.Size   { return t.size }
func (t *Texture) Format() format.Format    { return format.R8G8B8A8Unorm }
func (t *Texture) Levels() int              { return t.levels }
func (t *Texture) halTexture() hal.Texture  { return t.tex }
func (t *Texture) halView() hal.TextureView { return t.view }

// Release retires the texture.
func (t *Texture) Release() {
	if t.tex == nil {
		return
	}
	t.exec.release(t.destroy)
}

func (t *Texture) destroy() {
	if t.tex == nil {
		return
	}
	t.exec.device.DestroyTextureView(t.view)
	t.exec.device.DestroyTexture(t.tex)
	t.tex, t.view = nil, nil
}

// NewTexture uploads img as an RGBA8 texture. With opts.Mipmap the mip
// chain is filtered on the CPU and uploaded level by level.
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
	tf := format.R8G8B8A8Unorm.TextureFormat()
	tex, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label:         opts.Label,
		Size:          extent(size),
		MipLevelCount: uint32(levels),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        tf,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create texture %s: %w", opts.Label, err)
	}

	level := img
	for i := range levels {
		if i > 0 {
			level = downsample(level)
		}
		if err := e.upload(tex, uint32(i), level); err != nil {
			e.device.DestroyTexture(tex)
			return nil, fmt.Errorf("halgpu: upload texture %s level %d: %w", opts.Label, i, err)
		}
	}

	view, err := e.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           opts.Label,
		Format:          tf,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   uint32(levels),
		ArrayLayerCount: 1,
	})
	if err != nil {
		e.device.DestroyTexture(tex)
		return nil, fmt.Errorf("halgpu: create texture view %s: %w", opts.Label, err)
	}
	return &Texture{exec: e, label: opts.Label, size: size, levels: levels, tex: tex, view: view}, nil
}

func (e *Executor) upload(tex hal.Texture, level uint32, img *image.RGBA) error {
	b := img.Bounds()
	return e.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: level, Aspect: gputypes.TextureAspectAll},
		img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		&hal.ImageDataLayout{BytesPerRow: uint32(img.Stride), RowsPerImage: uint32(b.Dy())},
		&hal.Extent3D{Width: uint32(b.Dx()), Height: uint32(b.Dy()), DepthOrArrayLayers: 1},
	)
}

// downsample halves img, rounding down to at least one pixel.
func downsample(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, max(b.Dx()/2, 1), max(b.Dy()/2, 1)))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// createTexture creates a render target, falling back to R8G8B8A8_UNORM
// when fm is rejected by the format checker or by the device.
func (e *Executor) createTexture(label string, size shaderchain.Size, fm format.Format, levels int, usage gputypes.TextureUsage) (hal.Texture, format.Format, error) {
	create := func(f format.Format) (hal.Texture, error) {
		return e.device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          extent(size),
			MipLevelCount: uint32(levels),
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        f.TextureFormat(),
			Usage:         usage,
		})
	}

	var reason error
	tf := fm.TextureFormat()
	switch {
	case tf == gputypes.TextureFormatUndefined:
		reason = errors.New("no device format")
	case e.opts.FormatChecker != nil && !e.opts.FormatChecker(tf):
		reason = errors.New("not renderable")
	default:
		tex, err := create(fm)
		if err == nil {
			return tex, fm, nil
		}
		reason = err
	}
	if fm == fallbackFormat {
		return nil, 0, fmt.Errorf("halgpu: create %s: %w", label, reason)
	}
	e.log.Warn("halgpu: framebuffer format unavailable, falling back",
		"label", label, "format", fm, "fallback", fallbackFormat, "reason", reason)
	tex, err := create(fallbackFormat)
	if err != nil {
		return nil, 0, fmt.Errorf("halgpu: create %s with fallback format: %w", label, err)
	}
	return tex, fallbackFormat, nil
}

func (e *Executor) createViews(label string, tex hal.Texture, fm format.Format, levels int) (hal.TextureView, []hal.TextureView, error) {
	desc := func(base, count int) *hal.TextureViewDescriptor {
		return &hal.TextureViewDescriptor{
			Label:           label,
			Format:          fm.TextureFormat(),
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			BaseMipLevel:    uint32(base),
			MipLevelCount:   uint32(count),
			ArrayLayerCount: 1,
		}
	}
	view, err := e.device.CreateTextureView(tex, desc(0, levels))
	if err != nil {
		return nil, nil, fmt.Errorf("halgpu: create view %s: %w", label, err)
	}
	if levels == 1 {
		return view, nil, nil
	}
	levelViews := make([]hal.TextureView, 0, levels)
	for i := range levels {
		v, err := e.device.CreateTextureView(tex, desc(i, 1))
		if err != nil {
			destroyViews(e.device, view, levelViews)
			return nil, nil, fmt.Errorf("halgpu: create view %s level %d: %w", label, i, err)
		}
		levelViews = append(levelViews, v)
	}
	return view, levelViews, nil
}

func destroyViews(dev Device, view hal.TextureView, levels []hal.TextureView) {
	for _, v := range levels {
		dev.DestroyTextureView(v)
	}
	dev.DestroyTextureView(view)
}
