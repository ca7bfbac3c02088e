package compile

import (
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/preprocess"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
)

// Target describes what an executor consumes.
type Target struct {
	Dialect       crosscompile.Dialect
	Flatten       bool
	PushAsUniform bool
	GLSLVersion   glsl.Version
}

func (t Target) options(log *slog.Logger) crosscompile.Options {
	return crosscompile.Options{
		Dialect:       t.Dialect,
		Flatten:       t.Flatten,
		PushAsUniform: t.PushAsUniform,
		GLSLVersion:   t.GLSLVersion,
		Logger:        log,
	}
}

// Parsed is a pass that has been assembled, scanned for metadata and
// compiled by the front-end, but not yet reflected. Reflection needs the
// chain's alias table, which in turn needs the metadata of every pass.
type Parsed struct {
	Path     string
	Files    []string
	Metadata *preprocess.Metadata
	Vertex   *ir.Module
	Fragment *ir.Module
}

// Program is a fully processed pass.
type Program struct {
	Path       string
	Files      []string
	Metadata   *preprocess.Metadata
	Reflection *reflection.Reflection
	Vertex     *crosscompile.Output
	Fragment   *crosscompile.Output
}

// Orchestrator runs the per-pass pipeline.
type Orchestrator struct {
	compiler Compiler
	fsys     fs.FS
	log      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCompiler replaces the default WGSL front-end.
func WithCompiler(c Compiler) Option {
	return func(o *Orchestrator) { o.compiler = c }
}

// WithFS reads shader files from fsys instead of the operating system.
func WithFS(fsys fs.FS) Option {
	return func(o *Orchestrator) { o.fsys = fsys }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates an Orchestrator. Without WithCompiler it uses a caching
// WGSLCompiler.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(o)
	}
	if o.compiler == nil {
		o.compiler = NewWGSLCompiler(WGSLOptions{CacheSize: 64, Logger: o.log})
	}
	return o
}

// Parse assembles the file at path, reads its metadata, splits it into
// stages and compiles both.
func (o *Orchestrator) Parse(path string) (*Parsed, error) {
	var (
		src *preprocess.Source
		err error
	)
	if o.fsys != nil {
		src, err = preprocess.AssembleFS(o.fsys, path, true)
	} else {
		src, err = preprocess.Assemble(path, true)
	}
	if err != nil {
		return nil, err
	}
	meta, err := preprocess.ParseMetadata(src)
	if err != nil {
		return nil, err
	}
	stages, err := preprocess.SplitStages(src)
	if err != nil {
		return nil, err
	}

	lm := preprocess.NewLineMap(src.Lines, path)
	vs, err := o.compiler.Compile(Unit{Stage: preprocess.Vertex, Lines: stages.Vertex, Map: lm})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	frag, err := o.compiler.Compile(Unit{Stage: preprocess.Fragment, Lines: stages.Fragment, Map: lm})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	o.log.Debug("compile: parsed pass", "path", path, "files", len(src.Files),
		"name", meta.Name, "parameters", len(meta.Parameters))
	return &Parsed{
		Path:     path,
		Files:    src.Files,
		Metadata: meta,
		Vertex:   vs,
		Fragment: frag,
	}, nil
}

// Finish reflects a parsed pass against the chain's alias table and
// translates both stages for target. pass is the pass's position in the
// chain.
func (o *Orchestrator) Finish(p *Parsed, names *semantics.Map, pass int, target Target) (*Program, error) {
	refl, err := reflection.Reflect(p.Vertex, p.Fragment, names, pass)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	opts := target.options(o.log)
	vs, err := crosscompile.Translate(p.Vertex, ir.StageVertex, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	frag, err := crosscompile.Translate(p.Fragment, ir.StageFragment, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return &Program{
		Path:       p.Path,
		Files:      p.Files,
		Metadata:   p.Metadata,
		Reflection: refl,
		Vertex:     vs,
		Fragment:   frag,
	}, nil
}

// Process runs Parse and Finish for a single pass.
func (o *Orchestrator) Process(path string, names *semantics.Map, pass int, target Target) (*Program, error) {
	p, err := o.Parse(path)
	if err != nil {
		return nil, err
	}
	return o.Finish(p, names, pass, target)
}
