package halgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/format"
	"github.com/gogpu/wgpu/hal"
)

// Executor errors.
var (
	// ErrCommands is returned when the frame's commands are not a
	// hal.CommandEncoder.
	ErrCommands = errors.New("halgpu: commands must be a hal.CommandEncoder")

	// ErrTarget is returned when the final pass target is not a FinalTarget.
	ErrTarget = errors.New("halgpu: final target must be a FinalTarget")

	// ErrForeignImage is returned for images created by another executor.
	ErrForeignImage = errors.New("halgpu: image was not created by this executor")

	// ErrNoSurfaceFormat is returned when neither the final target nor the
	// options name the format of the final attachment.
	ErrNoSurfaceFormat = errors.New("halgpu: final target format unknown")

	// ErrEmptySize is returned when a framebuffer is sized to zero.
	ErrEmptySize = errors.New("halgpu: empty framebuffer size")
)

// fallbackFormat replaces formats the device cannot render to.
const fallbackFormat = format.R8G8B8A8Unorm

// DefaultFrames is the number of frames in flight when Options.Frames is 0.
const DefaultFrames = 2

// Options configure an Executor.
type Options struct {
	// Frames is the number of frames in flight, one sync index each.
	Frames int

	// SurfaceFormat is the attachment format of the final pass when the
	// FinalTarget does not name one.
	SurfaceFormat gputypes.TextureFormat

	// FormatChecker reports whether a format can be both rendered to and
	// sampled. nil accepts every format and relies on texture creation
	// errors alone.
	FormatChecker func(gputypes.TextureFormat) bool

	Logger *slog.Logger
}

// FinalTarget is the DrawTarget of the final pass: a render pass the caller
// has begun, and the format of its color attachment.
type FinalTarget struct {
	Pass   hal.RenderPassEncoder
	Format gputypes.TextureFormat
}

// Executor implements shaderchain.Executor on a HAL device. It is not safe
// for concurrent use.
type Executor struct {
	device Device
	queue  Queue
	opts   Options
	log    *slog.Logger
	trash  *disposal

	quad     hal.Buffer
	samplers map[samplerKey]hal.Sampler
	blit     *blitter
	empty    *Texture
	closed   bool
}

var (
	_ shaderchain.Executor    = (*Executor)(nil)
	_ shaderchain.SyncIndexer = (*Executor)(nil)
)

// New creates an executor. The device and queue stay owned by the caller.
func New(device Device, queue Queue, opts Options) (*Executor, error) {
	if device == nil || queue == nil {
		return nil, ErrNoHAL
	}
	if opts.Frames <= 0 {
		opts.Frames = DefaultFrames
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Executor{
		device:   device,
		queue:    queue,
		opts:     opts,
		log:      log,
		trash:    newDisposal(opts.Frames),
		samplers: make(map[samplerKey]hal.Sampler),
	}
	if err := e.createQuad(); err != nil {
		return nil, err
	}
	empty, err := e.NewTexture(image.NewRGBA(image.Rect(0, 0, 1, 1)), shaderchain.TextureOptions{Label: "empty"})
	if err != nil {
		e.device.DestroyBuffer(e.quad)
		return nil, fmt.Errorf("halgpu: create empty texture: %w", err)
	}
	e.empty = empty.(*Texture)
	return e, nil
}

// quadStride is a vec4 position followed by a vec2 texture coordinate.
const quadStride = 24

// quadVertices is a clip space triangle strip covering the target, with
// texture coordinates growing right and down.
var quadVertices = [4][6]float32{
	{-1, -1, 0, 1, 0, 1},
	{1, -1, 0, 1, 1, 1},
	{-1, 1, 0, 1, 0, 0},
	{1, 1, 0, 1, 1, 0},
}

func quadLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: quadStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 1},
		},
	}}
}

func (e *Executor) createQuad() error {
	data := make([]byte, 0, len(quadVertices)*quadStride)
	for _, v := range quadVertices {
		for _, f := range v {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "shaderchain quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("halgpu: create quad: %w", err)
	}
	if err := e.queue.WriteBuffer(buf, 0, data); err != nil {
		e.device.DestroyBuffer(buf)
		return fmt.Errorf("halgpu: upload quad: %w", err)
	}
	e.quad = buf
	return nil
}

// Target reports SPIR-V with the push block carried as a uniform buffer.
func (e *Executor) Target() compile.Target {
	return compile.Target{Dialect: crosscompile.SPIRV, PushAsUniform: true}
}

// SyncIndices returns the number of frames in flight.
func (e *Executor) SyncIndices() int { return e.opts.Frames }

// SetSyncIndex selects the resources of frame slot i and destroys whatever
// was retired the last time slot i was recording. The caller must have
// waited for the GPU to finish the previous frame that used slot i.
func (e *Executor) SetSyncIndex(i int) {
	n := e.opts.Frames
	i = ((i % n) + n) % n
	e.trash.advance(i)
}

// SyncIndex returns the current frame slot.
func (e *Executor) SyncIndex() int { return e.trash.index }

// release destroys fn's resources once no frame in flight can use them.
func (e *Executor) release(fn func()) {
	if e.closed {
		fn()
		return
	}
	e.trash.add(fn)
}

// WrapTexture wraps a caller-owned texture as a chain input. The texture
// must allow sampling and, when the chain keeps history, copying from.
func (e *Executor) WrapTexture(tex hal.Texture, view hal.TextureView, size shaderchain.Size, f format.Format) *Input {
	return &Input{tex: tex, view: view, size: size, format: f}
}

// NewFramebuffer returns an unallocated framebuffer.
func (e *Executor) NewFramebuffer(label string) (shaderchain.Framebuffer, error) {
	return &Framebuffer{exec: e, label: label}, nil
}

// Copy copies src into dst. Matching images use a texture copy, anything
// else is drawn through the blit pipeline.
func (e *Executor) Copy(cmd shaderchain.Commands, dst shaderchain.Framebuffer, src shaderchain.Image) error {
	enc, err := encoder(cmd)
	if err != nil {
		return err
	}
	d, ok := dst.(*Framebuffer)
	if !ok || d.exec != e {
		return ErrForeignImage
	}
	s, ok := src.(source)
	if !ok {
		return ErrForeignImage
	}
	if d.tex == nil {
		return fmt.Errorf("halgpu: copy into unallocated framebuffer %s", d.label)
	}
	if s.Format() == d.format && s.Size() == d.size {
		enc.CopyTextureToTexture(s.halTexture(), d.tex, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: s.halTexture(), Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: d.tex, Aspect: gputypes.TextureAspectAll},
			Size:    extent(d.size),
		}})
		return nil
	}
	b, err := e.blitter()
	if err != nil {
		return err
	}
	return b.draw(enc, d.levelView(0), d.format.TextureFormat(), s.halView(), "copy "+d.label)
}

// Clear fills every level of fb with transparent black.
func (e *Executor) Clear(cmd shaderchain.Commands, fb shaderchain.Framebuffer) error {
	enc, err := encoder(cmd)
	if err != nil {
		return err
	}
	f, ok := fb.(*Framebuffer)
	if !ok || f.exec != e {
		return ErrForeignImage
	}
	if f.tex == nil {
		return nil
	}
	for i := range f.levels {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: fmt.Sprintf("clear %s level %d", f.label, i),
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       f.levelView(i),
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{},
			}},
		})
		rp.End()
	}
	return nil
}

// GenerateMipmaps downsamples each level of fb from the one above it.
func (e *Executor) GenerateMipmaps(cmd shaderchain.Commands, fb shaderchain.Framebuffer) error {
	enc, err := encoder(cmd)
	if err != nil {
		return err
	}
	f, ok := fb.(*Framebuffer)
	if !ok || f.exec != e {
		return ErrForeignImage
	}
	if f.tex == nil || f.levels <= 1 {
		return nil
	}
	b, err := e.blitter()
	if err != nil {
		return err
	}
	tf := f.format.TextureFormat()
	for i := 1; i < f.levels; i++ {
		label := fmt.Sprintf("mip %s level %d", f.label, i)
		if err := b.draw(enc, f.levelView(i), tf, f.levelView(i-1), label); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for the device to go idle and destroys every resource the
// executor still holds. Programs, framebuffers and textures released
// before Close are destroyed here too.
func (e *Executor) Close() error {
	if e.closed {
		return nil
	}
	err := e.device.WaitIdle()
	if err != nil {
		e.log.Warn("halgpu: wait idle failed, destroying anyway", "err", err)
	}
	e.closed = true
	e.trash.drain()
	if e.empty != nil {
		e.empty.destroy()
		e.empty = nil
	}
	if e.blit != nil {
		e.blit.destroy()
		e.blit = nil
	}
	for k, s := range e.samplers {
		e.device.DestroySampler(s)
		delete(e.samplers, k)
	}
	if e.quad != nil {
		e.device.DestroyBuffer(e.quad)
		e.quad = nil
	}
	return err
}

func encoder(cmd shaderchain.Commands) (hal.CommandEncoder, error) {
	enc, ok := cmd.(hal.CommandEncoder)
	if !ok || enc == nil {
		return nil, fmt.Errorf("%w, got %T", ErrCommands, cmd)
	}
	return enc, nil
}

func extent(s shaderchain.Size) hal.Extent3D {
	return hal.Extent3D{Width: uint32(s.Width), Height: uint32(s.Height), DepthOrArrayLayers: 1}
}
