package shaderchain

import (
	"image"

	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/format"
	"github.com/gogpu/shaderchain/reflection"
)

// Size is a width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Viewport is the rectangle of the caller's target the final pass draws to.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Size returns the viewport dimensions.
func (v Viewport) Size() Size { return Size{Width: v.Width, Height: v.Height} }

// Image is a sampled texture. Executors define the concrete types and
// type-assert the images handed back to them; the chain input is created
// by the caller with the executor's own constructor.
type Image interface {
	Size() Size
	Format() format.Format
}

// Framebuffer is a render target owned by the chain. It starts empty and
// is (re)allocated by Resize.
type Framebuffer interface {
	Image

	// Resize reallocates storage when size, format or level count differ
	// from the current allocation and reports whether it did. The format
	// actually used may differ from the one requested if the executor had
	// to fall back; Format reports the result.
	Resize(size Size, f format.Format, levels int) (bool, error)

	// Levels returns the number of mip levels allocated.
	Levels() int

	Release()
}

// Texture is an immutable lookup texture.
type Texture interface {
	Image
	Release()
}

// TextureOptions control lookup texture creation.
type TextureOptions struct {
	Label  string
	Mipmap bool
}

// Commands is the executor specific recording context of one frame, for
// example a command encoder. The implicit back-end ignores it.
type Commands any

// DrawTarget is the caller-owned destination of the final pass, for
// example an open render pass. Executors define what they accept.
type DrawTarget any

// ProgramDesc describes one pass to an executor.
type ProgramDesc struct {
	Label      string
	Pass       int
	Final      bool
	Reflection *reflection.Reflection
	Vertex     *crosscompile.Output
	Fragment   *crosscompile.Output
}

// BoundTexture is a texture bound for one draw.
type BoundTexture struct {
	Binding   uint32
	Image     Image
	Filter    Filter
	MipFilter Filter
	Wrap      Wrap
}

// DrawCall is everything an executor needs to run one pass.
type DrawCall struct {
	Commands Commands

	// Target is nil for the final pass, which draws into Final instead.
	Target Framebuffer
	Final  DrawTarget

	Viewport Viewport
	UBO      []byte
	Push     []byte
	Textures []BoundTexture
}

// Program is a pass compiled for an executor.
type Program interface {
	Draw(dc *DrawCall) error
	Release()
}

// Executor is a GPU back-end that runs passes.
type Executor interface {
	// Target tells the orchestrator which dialect to translate to.
	Target() compile.Target

	NewProgram(desc *ProgramDesc) (Program, error)
	NewFramebuffer(label string) (Framebuffer, error)
	NewTexture(img *image.RGBA, opts TextureOptions) (Texture, error)

	// Copy copies src into dst. dst has already been resized to match.
	Copy(cmd Commands, dst Framebuffer, src Image) error

	// Clear fills fb with transparent black.
	Clear(cmd Commands, fb Framebuffer) error

	// GenerateMipmaps fills every level of fb below the first.
	GenerateMipmaps(cmd Commands, fb Framebuffer) error

	Close() error
}

// SyncIndexer is implemented by executors that keep several frames in
// flight. The caller advances the index once per frame, before recording.
type SyncIndexer interface {
	SetSyncIndex(i int)
	SyncIndices() int
}
