package shaderchain

import (
	"math"
	"math/bits"

	"github.com/gogpu/shaderchain/format"
)

// Filter selects texture filtering.
type Filter uint8

const (
	// FilterUnspecified lets the chain pick its default, nearest.
	FilterUnspecified Filter = iota
	FilterLinear
	FilterNearest
)

var filterNames = [...]string{
	FilterUnspecified: "unspecified",
	FilterLinear:      "linear",
	FilterNearest:     "nearest",
}

func (f Filter) String() string {
	if int(f) < len(filterNames) {
		return filterNames[f]
	}
	return "invalid"
}

// ParseFilter parses a filter name as written in presets.
func ParseFilter(s string) (Filter, bool) {
	for i, n := range filterNames {
		if n == s {
			return Filter(i), true
		}
	}
	return 0, false
}

func (f Filter) resolve() Filter {
	if f == FilterUnspecified {
		return FilterNearest
	}
	return f
}

// Wrap selects the texture address mode.
type Wrap uint8

const (
	WrapClampToEdge Wrap = iota
	WrapClampToBorder
	WrapRepeat
	WrapMirroredRepeat
)

var wrapNames = [...]string{
	WrapClampToEdge:    "clamp_to_edge",
	WrapClampToBorder:  "clamp_to_border",
	WrapRepeat:         "repeat",
	WrapMirroredRepeat: "mirrored_repeat",
}

func (w Wrap) String() string {
	if int(w) < len(wrapNames) {
		return wrapNames[w]
	}
	return "invalid"
}

// ParseWrap parses a wrap mode name as written in presets.
func ParseWrap(s string) (Wrap, bool) {
	for i, n := range wrapNames {
		if n == s {
			return Wrap(i), true
		}
	}
	return 0, false
}

// ScaleType is the reference an axis of a pass output is sized against.
type ScaleType uint8

const (
	// ScaleSource scales the previous pass output, or the chain input for
	// the first pass.
	ScaleSource ScaleType = iota
	// ScaleOriginal scales the chain input.
	ScaleOriginal
	// ScaleViewport scales the final viewport. Axes swap when the display
	// is rotated by 90 or 270 degrees.
	ScaleViewport
	// ScaleAbsolute uses Factor as a pixel count.
	ScaleAbsolute
)

var scaleNames = [...]string{
	ScaleSource:   "source",
	ScaleOriginal: "original",
	ScaleViewport: "viewport",
	ScaleAbsolute: "absolute",
}

func (s ScaleType) String() string {
	if int(s) < len(scaleNames) {
		return scaleNames[s]
	}
	return "invalid"
}

// ParseScaleType parses a scale type name as written in presets.
func ParseScaleType(s string) (ScaleType, bool) {
	for i, n := range scaleNames {
		if n == s {
			return ScaleType(i), true
		}
	}
	return 0, false
}

// Scale is the sizing policy of one axis.
type Scale struct {
	Type   ScaleType
	Factor float32
}

// PassConfig is the per-pass configuration a preset supplies.
type PassConfig struct {
	// Shader is the path of the annotated shader source.
	Shader string

	// Alias names the pass for other passes. It overrides #pragma name.
	Alias string

	ScaleX, ScaleY Scale

	// Filter and Wrap apply when this pass samples its Source.
	Filter    Filter
	MipFilter Filter
	Wrap      Wrap

	// Format overrides the format the shader declares.
	Format format.Format

	// FloatFramebuffer and SRGBFramebuffer select the output format when
	// neither Format nor the shader picks one.
	FloatFramebuffer bool
	SRGBFramebuffer  bool

	// MipmapInput requests a mip chain on this pass's Source.
	MipmapInput bool

	// MaxMipLevels caps the mip chain. Zero means no cap.
	MaxMipLevels int

	// FrameCountMod wraps FrameCount for this pass when non-zero.
	FrameCountMod uint32
}

// DefaultPassConfig returns a pass that fills the viewport, samples with
// nearest filtering and clamps to the edge.
func DefaultPassConfig(shader string) PassConfig {
	return PassConfig{
		Shader:    shader,
		ScaleX:    Scale{Type: ScaleViewport, Factor: 1},
		ScaleY:    Scale{Type: ScaleViewport, Factor: 1},
		Filter:    FilterNearest,
		MipFilter: FilterNearest,
		Wrap:      WrapClampToEdge,
	}
}

// outputFormat picks the framebuffer format: explicit override, then the
// preset flags with sRGB ahead of float, then the shader's declaration.
func (c *PassConfig) outputFormat(declared format.Format) format.Format {
	switch {
	case c.Format.Valid():
		return c.Format
	case c.SRGBFramebuffer:
		return format.R8G8B8A8Srgb
	case c.FloatFramebuffer:
		return format.R16G16B16A16Sfloat
	case declared.Valid():
		return declared
	}
	return format.Default
}

// OutputSize evaluates the scale policy of a pass. Rotation counts quarter
// turns. Each axis is rounded to the nearest pixel and is at least one.
func OutputSize(c *PassConfig, original, source Size, viewport Size, rotation uint32) Size {
	if rotation%2 == 1 {
		viewport.Width, viewport.Height = viewport.Height, viewport.Width
	}
	return Size{
		Width:  scaleAxis(c.ScaleX, original.Width, source.Width, viewport.Width),
		Height: scaleAxis(c.ScaleY, original.Height, source.Height, viewport.Height),
	}
}

func scaleAxis(s Scale, original, source, viewport int) int {
	var v float64
	switch s.Type {
	case ScaleOriginal:
		v = float64(original) * float64(s.Factor)
	case ScaleSource:
		v = float64(source) * float64(s.Factor)
	case ScaleViewport:
		v = float64(viewport) * float64(s.Factor)
	case ScaleAbsolute:
		v = float64(s.Factor)
	}
	return max(int(math.Round(v)), 1)
}

// MipLevels returns min(maxLevels, floor(log2(max(w, h))) + 1), at least
// one. A maxLevels of zero or less leaves the full chain.
func MipLevels(s Size, maxLevels int) int {
	m := max(s.Width, s.Height)
	if m <= 0 {
		return 1
	}
	n := bits.Len(uint(m))
	if maxLevels > 0 && maxLevels < n {
		n = maxLevels
	}
	return max(n, 1)
}
