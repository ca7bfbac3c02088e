package shaderchain

import (
	"image"
	"io/fs"
	"log/slog"

	"github.com/gogpu/shaderchain/compile"
)

// Option configures a Chain during creation.
//
// Example:
//
//	chain := shaderchain.New(exec,
//		shaderchain.WithLogger(slog.Default()),
//		shaderchain.WithParameters(map[string]float32{"Gamma": 2.4}),
//	)
type Option func(*options)

type options struct {
	compiler   compile.Compiler
	cacheSize  int
	fsys       fs.FS
	log        *slog.Logger
	parameters map[string]float32
	luts       []LookupTexture
}

func defaultOptions() options {
	return options{cacheSize: 64}
}

// LookupTexture is a user image every pass can sample by its id.
type LookupTexture struct {
	ID        string
	Image     *image.RGBA
	Filter    Filter
	MipFilter Filter
	Wrap      Wrap
	Mipmap    bool
}

// WithCompiler replaces the WGSL front-end. WithCache has no effect when a
// compiler is supplied.
func WithCompiler(c compile.Compiler) Option {
	return func(o *options) {
		o.compiler = c
	}
}

// WithCache sets how many compiled stages the default front-end keeps
// between builds. Zero disables the cache.
func WithCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithFS reads shader sources from fsys instead of the operating system.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithLogger sets the chain's logger. Without it the package logger is
// used (see SetLogger).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithParameters overrides the initial value of parameters by id. Ids no
// pass declares are logged and ignored.
func WithParameters(values map[string]float32) Option {
	return func(o *options) {
		o.parameters = values
	}
}

// WithLookupTextures registers lookup textures. Their ids become aliases
// for the User texture semantic, in order.
func WithLookupTextures(luts ...LookupTexture) Option {
	return func(o *options) {
		o.luts = append(o.luts, luts...)
	}
}
