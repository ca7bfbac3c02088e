// Package format holds the closed table of render target pixel formats a
// shader may request with "#pragma format", and their mapping onto
// WebGPU texture formats.
package format

import "github.com/gogpu/gputypes"

// Format identifies a render target pixel format by its table name.
type Format uint8

// Known formats. Unknown is the sentinel for "not declared".
const (
	Unknown Format = iota

	R8Unorm
	R8Uint
	R8Sint
	R8G8Unorm
	R8G8Uint
	R8G8Sint
	R8G8B8A8Unorm
	R8G8B8A8Uint
	R8G8B8A8Sint
	R8G8B8A8Srgb

	A2B10G10R10UnormPack32
	A2B10G10R10UintPack32

	R16Uint
	R16Sint
	R16Sfloat
	R16G16Uint
	R16G16Sint
	R16G16Sfloat
	R16G16B16A16Uint
	R16G16B16A16Sint
	R16G16B16A16Sfloat

	R32Uint
	R32Sint
	R32Sfloat
	R32G32Uint
	R32G32Sint
	R32G32Sfloat
	R32G32B32A32Uint
	R32G32B32A32Sint
	R32G32B32A32Sfloat

	count
)

// Default is the format used when neither the shader nor the pass
// configuration asks for one. It is also the universal fallback when a
// device cannot render to the requested format.
const Default = R8G8B8A8Unorm

var names = [count]string{
	Unknown: "UNKNOWN",

	R8Unorm:       "R8_UNORM",
	R8Uint:        "R8_UINT",
	R8Sint:        "R8_SINT",
	R8G8Unorm:     "R8G8_UNORM",
	R8G8Uint:      "R8G8_UINT",
	R8G8Sint:      "R8G8_SINT",
	R8G8B8A8Unorm: "R8G8B8A8_UNORM",
	R8G8B8A8Uint:  "R8G8B8A8_UINT",
	R8G8B8A8Sint:  "R8G8B8A8_SINT",
	R8G8B8A8Srgb:  "R8G8B8A8_SRGB",

	A2B10G10R10UnormPack32: "A2B10G10R10_UNORM_PACK32",
	A2B10G10R10UintPack32:  "A2B10G10R10_UINT_PACK32",

	R16Uint:            "R16_UINT",
	R16Sint:            "R16_SINT",
	R16Sfloat:          "R16_SFLOAT",
	R16G16Uint:         "R16G16_UINT",
	R16G16Sint:         "R16G16_SINT",
	R16G16Sfloat:       "R16G16_SFLOAT",
	R16G16B16A16Uint:   "R16G16B16A16_UINT",
	R16G16B16A16Sint:   "R16G16B16A16_SINT",
	R16G16B16A16Sfloat: "R16G16B16A16_SFLOAT",

	R32Uint:            "R32_UINT",
	R32Sint:            "R32_SINT",
	R32Sfloat:          "R32_SFLOAT",
	R32G32Uint:         "R32G32_UINT",
	R32G32Sint:         "R32G32_SINT",
	R32G32Sfloat:       "R32G32_SFLOAT",
	R32G32B32A32Uint:   "R32G32B32A32_UINT",
	R32G32B32A32Sint:   "R32G32B32A32_SINT",
	R32G32B32A32Sfloat: "R32G32B32A32_SFLOAT",
}

var textureFormats = [count]gputypes.TextureFormat{
	Unknown: gputypes.TextureFormatUndefined,

	R8Unorm:       gputypes.TextureFormatR8Unorm,
	R8Uint:        gputypes.TextureFormatR8Uint,
	R8Sint:        gputypes.TextureFormatR8Sint,
	R8G8Unorm:     gputypes.TextureFormatRG8Unorm,
	R8G8Uint:      gputypes.TextureFormatRG8Uint,
	R8G8Sint:      gputypes.TextureFormatRG8Sint,
	R8G8B8A8Unorm: gputypes.TextureFormatRGBA8Unorm,
	R8G8B8A8Uint:  gputypes.TextureFormatRGBA8Uint,
	R8G8B8A8Sint:  gputypes.TextureFormatRGBA8Sint,
	R8G8B8A8Srgb:  gputypes.TextureFormatRGBA8UnormSrgb,

	A2B10G10R10UnormPack32: gputypes.TextureFormatRGB10A2Unorm,
	A2B10G10R10UintPack32:  gputypes.TextureFormatRGB10A2Uint,

	R16Uint:            gputypes.TextureFormatR16Uint,
	R16Sint:            gputypes.TextureFormatR16Sint,
	R16Sfloat:          gputypes.TextureFormatR16Float,
	R16G16Uint:         gputypes.TextureFormatRG16Uint,
	R16G16Sint:         gputypes.TextureFormatRG16Sint,
	R16G16Sfloat:       gputypes.TextureFormatRG16Float,
	R16G16B16A16Uint:   gputypes.TextureFormatRGBA16Uint,
	R16G16B16A16Sint:   gputypes.TextureFormatRGBA16Sint,
	R16G16B16A16Sfloat: gputypes.TextureFormatRGBA16Float,

	R32Uint:            gputypes.TextureFormatR32Uint,
	R32Sint:            gputypes.TextureFormatR32Sint,
	R32Sfloat:          gputypes.TextureFormatR32Float,
	R32G32Uint:         gputypes.TextureFormatRG32Uint,
	R32G32Sint:         gputypes.TextureFormatRG32Sint,
	R32G32Sfloat:       gputypes.TextureFormatRG32Float,
	R32G32B32A32Uint:   gputypes.TextureFormatRGBA32Uint,
	R32G32B32A32Sint:   gputypes.TextureFormatRGBA32Sint,
	R32G32B32A32Sfloat: gputypes.TextureFormatRGBA32Float,
}

var byName = func() map[string]Format {
	m := make(map[string]Format, count)
	for f := Format(1); f < count; f++ {
		m[names[f]] = f
	}
	return m
}()

// Parse looks up a table name such as "R16G16B16A16_SFLOAT".
// Unrecognized names return Unknown.
func Parse(name string) Format {
	return byName[name]
}

// String returns the table name, or "UNKNOWN".
func (f Format) String() string {
	if f >= count {
		return names[Unknown]
	}
	return names[f]
}

// Valid reports whether f names a real format.
func (f Format) Valid() bool {
	return f > Unknown && f < count
}

// TextureFormat returns the equivalent WebGPU texture format, or
// TextureFormatUndefined for Unknown.
func (f Format) TextureFormat() gputypes.TextureFormat {
	if f >= count {
		return gputypes.TextureFormatUndefined
	}
	return textureFormats[f]
}

// IsFloat reports whether f stores floating point channels.
func (f Format) IsFloat() bool {
	switch f {
	case R16Sfloat, R16G16Sfloat, R16G16B16A16Sfloat,
		R32Sfloat, R32G32Sfloat, R32G32B32A32Sfloat:
		return true
	}
	return false
}

// IsInteger reports whether f stores unnormalized integer channels.
// Integer targets cannot be sampled with a filtering sampler.
func (f Format) IsInteger() bool {
	switch f {
	case R8Uint, R8Sint, R8G8Uint, R8G8Sint, R8G8B8A8Uint, R8G8B8A8Sint,
		A2B10G10R10UintPack32,
		R16Uint, R16Sint, R16G16Uint, R16G16Sint, R16G16B16A16Uint, R16G16B16A16Sint,
		R32Uint, R32Sint, R32G32Uint, R32G32Sint, R32G32B32A32Uint, R32G32B32A32Sint:
		return true
	}
	return false
}

// All returns every known format in table order.
func All() []Format {
	out := make([]Format, 0, count-1)
	for f := Format(1); f < count; f++ {
		out = append(out, f)
	}
	return out
}
