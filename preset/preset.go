// Package preset loads filter chain presets written in TOML.
//
// A preset lists the passes of a chain in order, the lookup textures every
// pass can sample and initial values for shader parameters:
//
//	[[pass]]
//	shader = "crt.slang"
//	alias = "Main"
//	filter = "linear"
//	scale_type = "source"
//	scale = 2.0
//
//	[[pass]]
//	shader = "blur.slang"
//
//	[[texture]]
//	id = "Mask"
//	path = "mask.png"
//	linear = true
//
//	[parameters]
//	Gamma = 2.4
//
// Relative paths are resolved against the directory of the preset file.
//
// Build loads a preset and builds a chain from it in one step. It is
// equivalent to Load, then Options passed to shaderchain.New, then
// Chain.Build with the preset's passes.
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/format"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned for presets that decode but cannot describe a chain.
var ErrInvalid = errors.New("preset: invalid preset")

// Texture is a lookup texture entry.
type Texture struct {
	ID        string
	Path      string
	Filter    shaderchain.Filter
	MipFilter shaderchain.Filter
	Wrap      shaderchain.Wrap
	Mipmap    bool
}

// Preset is a decoded preset with resolved paths.
type Preset struct {
	// Path is the preset file, empty when decoded from a reader.
	Path string

	Passes     []shaderchain.PassConfig
	Textures   []Texture
	Parameters map[string]float32
}

type passFile struct {
	Shader           string   `toml:"shader"`
	Alias            string   `toml:"alias"`
	Filter           string   `toml:"filter"`
	MipFilter        string   `toml:"mip_filter"`
	Wrap             string   `toml:"wrap"`
	ScaleType        string   `toml:"scale_type"`
	ScaleTypeX       string   `toml:"scale_type_x"`
	ScaleTypeY       string   `toml:"scale_type_y"`
	Scale            *float32 `toml:"scale"`
	ScaleX           *float32 `toml:"scale_x"`
	ScaleY           *float32 `toml:"scale_y"`
	Format           string   `toml:"format"`
	FloatFramebuffer bool     `toml:"float_framebuffer"`
	SRGBFramebuffer  bool     `toml:"srgb_framebuffer"`
	MipmapInput      bool     `toml:"mipmap_input"`
	MaxMipLevels     int      `toml:"max_mip_levels"`
	FrameCountMod    uint32   `toml:"frame_count_mod"`
}

type textureFile struct {
	ID     string `toml:"id"`
	Path   string `toml:"path"`
	Linear bool   `toml:"linear"`
	Mipmap bool   `toml:"mipmap"`
	Wrap   string `toml:"wrap"`
}

type presetFile struct {
	Pass       []passFile         `toml:"pass"`
	Texture    []textureFile      `toml:"texture"`
	Parameters map[string]float32 `toml:"parameters"`
}

// Load reads the preset at path.
func Load(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	defer f.Close()
	p, err := Decode(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	p.Path = path
	return p, nil
}

// Decode reads a preset from r. Relative paths are resolved against dir.
// Unknown keys are an error.
func Decode(r io.Reader, dir string) (*Preset, error) {
	var pf presetFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&pf); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("preset: unknown keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("preset: %w", err)
	}
	if len(pf.Pass) == 0 {
		return nil, fmt.Errorf("%w: no passes", ErrInvalid)
	}

	p := &Preset{Parameters: pf.Parameters}
	for i := range pf.Pass {
		cfg, err := pf.Pass[i].config(dir, i == len(pf.Pass)-1)
		if err != nil {
			return nil, fmt.Errorf("%w: pass %d: %v", ErrInvalid, i, err)
		}
		p.Passes = append(p.Passes, cfg)
	}
	seen := make(map[string]bool)
	for i, tf := range pf.Texture {
		t, err := tf.texture(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: texture %d: %v", ErrInvalid, i, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("%w: texture id %q used twice", ErrInvalid, t.ID)
		}
		seen[t.ID] = true
		p.Textures = append(p.Textures, t)
	}
	return p, nil
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// config converts one [[pass]] table. A pass without any scale type
// renders at source size, except the last pass which fills the viewport.
func (pf *passFile) config(dir string, last bool) (shaderchain.PassConfig, error) {
	if pf.Shader == "" {
		return shaderchain.PassConfig{}, errors.New("missing shader")
	}
	cfg := shaderchain.PassConfig{
		Shader:           resolve(dir, pf.Shader),
		Alias:            pf.Alias,
		Wrap:             shaderchain.WrapClampToBorder,
		FloatFramebuffer: pf.FloatFramebuffer,
		SRGBFramebuffer:  pf.SRGBFramebuffer,
		MipmapInput:      pf.MipmapInput,
		MaxMipLevels:     pf.MaxMipLevels,
		FrameCountMod:    pf.FrameCountMod,
	}

	var ok bool
	if pf.Filter != "" {
		if cfg.Filter, ok = shaderchain.ParseFilter(pf.Filter); !ok {
			return cfg, fmt.Errorf("unknown filter %q", pf.Filter)
		}
	}
	if pf.MipFilter != "" {
		if cfg.MipFilter, ok = shaderchain.ParseFilter(pf.MipFilter); !ok {
			return cfg, fmt.Errorf("unknown mip filter %q", pf.MipFilter)
		}
	}
	if pf.Wrap != "" {
		if cfg.Wrap, ok = shaderchain.ParseWrap(pf.Wrap); !ok {
			return cfg, fmt.Errorf("unknown wrap mode %q", pf.Wrap)
		}
	}
	if pf.Format != "" {
		if cfg.Format = format.Parse(pf.Format); !cfg.Format.Valid() {
			return cfg, fmt.Errorf("unknown format %q", pf.Format)
		}
	}
	if pf.MaxMipLevels < 0 {
		return cfg, fmt.Errorf("negative max_mip_levels %d", pf.MaxMipLevels)
	}

	typeX, typeY := pf.ScaleTypeX, pf.ScaleTypeY
	if pf.ScaleType != "" {
		typeX, typeY = pf.ScaleType, pf.ScaleType
	}
	if typeX == "" && typeY == "" {
		if last {
			typeX, typeY = "viewport", "viewport"
		} else {
			typeX, typeY = "source", "source"
		}
	}
	factorX, factorY := pf.ScaleX, pf.ScaleY
	if pf.Scale != nil {
		factorX, factorY = pf.Scale, pf.Scale
	}
	var err error
	if cfg.ScaleX, err = scale(typeX, factorX); err != nil {
		return cfg, fmt.Errorf("x axis: %w", err)
	}
	if cfg.ScaleY, err = scale(typeY, factorY); err != nil {
		return cfg, fmt.Errorf("y axis: %w", err)
	}
	return cfg, nil
}

// scale builds one axis policy. A missing type means source and a missing
// factor means 1.
func scale(typ string, factor *float32) (shaderchain.Scale, error) {
	s := shaderchain.Scale{Type: shaderchain.ScaleSource, Factor: 1}
	if typ != "" {
		t, ok := shaderchain.ParseScaleType(typ)
		if !ok {
			return s, fmt.Errorf("unknown scale type %q", typ)
		}
		s.Type = t
	}
	if factor != nil {
		s.Factor = *factor
	}
	if s.Factor <= 0 {
		return s, fmt.Errorf("scale factor %g is not positive", s.Factor)
	}
	return s, nil
}

func (tf *textureFile) texture(dir string) (Texture, error) {
	if tf.ID == "" {
		return Texture{}, errors.New("missing id")
	}
	if tf.Path == "" {
		return Texture{}, fmt.Errorf("%s: missing path", tf.ID)
	}
	t := Texture{
		ID:        tf.ID,
		Path:      resolve(dir, tf.Path),
		Filter:    shaderchain.FilterNearest,
		MipFilter: shaderchain.FilterNearest,
		Wrap:      shaderchain.WrapClampToBorder,
		Mipmap:    tf.Mipmap,
	}
	if tf.Linear {
		t.Filter, t.MipFilter = shaderchain.FilterLinear, shaderchain.FilterLinear
	}
	if tf.Wrap != "" {
		w, ok := shaderchain.ParseWrap(tf.Wrap)
		if !ok {
			return t, fmt.Errorf("%s: unknown wrap mode %q", tf.ID, tf.Wrap)
		}
		t.Wrap = w
	}
	return t, nil
}

// LookupTextures decodes every texture image.
func (p *Preset) LookupTextures() ([]shaderchain.LookupTexture, error) {
	luts := make([]shaderchain.LookupTexture, 0, len(p.Textures))
	for _, t := range p.Textures {
		img, err := LoadImage(t.Path)
		if err != nil {
			return nil, fmt.Errorf("preset: texture %s: %w", t.ID, err)
		}
		luts = append(luts, shaderchain.LookupTexture{
			ID:        t.ID,
			Image:     img,
			Filter:    t.Filter,
			MipFilter: t.MipFilter,
			Wrap:      t.Wrap,
			Mipmap:    t.Mipmap,
		})
	}
	return luts, nil
}

// Options returns the chain options the preset implies: its parameter
// values and its decoded lookup textures.
func (p *Preset) Options() ([]shaderchain.Option, error) {
	luts, err := p.LookupTextures()
	if err != nil {
		return nil, err
	}
	opts := []shaderchain.Option{shaderchain.WithLookupTextures(luts...)}
	if len(p.Parameters) > 0 {
		opts = append(opts, shaderchain.WithParameters(p.Parameters))
	}
	return opts, nil
}

// Files lists the preset file, every pass shader and every texture image.
// Include files are only known after a build; see WatchList.
func (p *Preset) Files() []string {
	var files []string
	if p.Path != "" {
		files = append(files, p.Path)
	}
	for _, c := range p.Passes {
		files = append(files, c.Shader)
	}
	for _, t := range p.Textures {
		files = append(files, t.Path)
	}
	return files
}

// WatchList returns the preset files plus every file the built passes read.
func WatchList(p *Preset, passes []shaderchain.PassInfo) []string {
	files := p.Files()
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	for _, info := range passes {
		for _, f := range info.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}
