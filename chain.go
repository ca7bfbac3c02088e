package shaderchain

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/format"
	"github.com/gogpu/shaderchain/preprocess"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
)

// Chain is a multi-pass filter chain bound to one executor. It is not safe
// for concurrent use; build and frame calls come from the rendering thread.
type Chain struct {
	exec    Executor
	opts    options
	log     *slog.Logger
	orch    *compile.Orchestrator
	configs []PassConfig
	state   *chainState
	frame   frameInput
	closed  bool
}

type chainState struct {
	passes     []*pass
	aliases    *semantics.Map
	history    []Framebuffer // history[k-1] holds OriginalHistory k
	luts       []*lookup
	params     []Parameter
	needsClear bool
	prepared   bool
}

type pass struct {
	index    int
	cfg      PassConfig
	name     string
	files    []string
	refl     *reflection.Reflection
	format   format.Format
	program  Program
	output   Framebuffer // nil for the final pass
	feedback Framebuffer // nil unless a later pass reads PassFeedback
	size     Size
	ubo      []byte
	push     []byte
}

type lookup struct {
	LookupTexture
	tex Texture
}

// New creates an unbuilt chain. The chain owns exec and closes it in Close.
func New(exec Executor, opts ...Option) *Chain {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = Logger()
	}
	compiler := o.compiler
	if compiler == nil {
		compiler = compile.NewWGSLCompiler(compile.WGSLOptions{CacheSize: o.cacheSize, Logger: log})
	}
	orchOpts := []compile.Option{compile.WithCompiler(compiler), compile.WithLogger(log)}
	if o.fsys != nil {
		orchOpts = append(orchOpts, compile.WithFS(o.fsys))
	}
	return &Chain{
		exec:  exec,
		opts:  o,
		log:   log,
		orch:  compile.New(orchOpts...),
		frame: defaultFrame(),
	}
}

// Build compiles every pass and allocates the chain's resources. On error
// the chain keeps its previous state, or stays unbuilt on the first build.
func (c *Chain) Build(configs []PassConfig) error {
	if c.closed {
		return ErrClosed
	}
	if len(configs) == 0 {
		return ErrNoPasses
	}
	start := time.Now()

	parsed := make([]*compile.Parsed, len(configs))
	metas := make([]*preprocess.Metadata, len(configs))
	for i, cfg := range configs {
		p, err := c.orch.Parse(cfg.Shader)
		if err != nil {
			return fmt.Errorf("shaderchain: pass %d: %w", i, err)
		}
		parsed[i], metas[i] = p, p.Metadata
	}
	decl, err := MergeParameters(metas)
	if err != nil {
		return err
	}
	names, err := Aliases(configs, metas, c.opts.luts, decl)
	if err != nil {
		return err
	}

	s := &chainState{aliases: names, needsClear: true}
	var prev []Parameter
	if c.state != nil {
		prev = c.state.params
	}
	var unknown []string
	s.params, unknown = liveParameters(decl, prev, c.opts.parameters)
	for _, id := range unknown {
		c.log.Warn("shaderchain: ignoring value for undeclared parameter", "id", id)
	}

	if err := c.allocate(s, configs, parsed); err != nil {
		s.release()
		return err
	}
	if c.state != nil {
		c.state.release()
	}
	c.state = s
	c.configs = slices.Clone(configs)

	c.log.Info("shaderchain: built chain",
		"passes", len(s.passes),
		"history", len(s.history),
		"feedback", len(s.feedbackPasses()),
		"parameters", len(s.params),
		"elapsed", time.Since(start))
	return nil
}

// Rebuild recompiles the passes of the last successful Build, picking up
// edited shader files. Live parameter values survive.
func (c *Chain) Rebuild() error {
	if c.configs == nil {
		return ErrNotBuilt
	}
	return c.Build(c.configs)
}

func passAlias(cfg PassConfig, meta *preprocess.Metadata) string {
	if cfg.Alias != "" {
		return cfg.Alias
	}
	return meta.Name
}

// Aliases builds the name table of a chain: pass aliases (the preset alias,
// else the shader's #pragma name), lookup texture ids and parameter ids.
// Only the IDs of luts are read.
func Aliases(configs []PassConfig, metas []*preprocess.Metadata, luts []LookupTexture, params []preprocess.Parameter) (*semantics.Map, error) {
	names := semantics.NewMap()
	for i := range configs {
		alias := passAlias(configs[i], metas[i])
		if alias == "" {
			continue
		}
		if err := names.AddPass(alias, i); err != nil {
			return nil, fmt.Errorf("%w: pass %d: %w", ErrDuplicateAlias, i, err)
		}
	}
	for i, l := range luts {
		if err := names.AddLookup(l.ID, i); err != nil {
			return nil, fmt.Errorf("%w: lookup texture %d: %w", ErrDuplicateAlias, i, err)
		}
	}
	for i, p := range params {
		if err := names.AddParameter(p.ID, i); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateAlias, err)
		}
	}
	return names, nil
}

func (c *Chain) allocate(s *chainState, configs []PassConfig, parsed []*compile.Parsed) error {
	target := c.exec.Target()
	last := len(configs) - 1
	for i, cfg := range configs {
		prog, err := c.orch.Finish(parsed[i], s.aliases, i, target)
		if err != nil {
			return fmt.Errorf("shaderchain: pass %d: %w", i, err)
		}
		p := &pass{
			index:  i,
			cfg:    cfg,
			name:   passAlias(cfg, prog.Metadata),
			files:  prog.Files,
			refl:   prog.Reflection,
			format: cfg.outputFormat(prog.Metadata.Format),
			ubo:    make([]byte, prog.Reflection.UBOSize),
			push:   make([]byte, prog.Reflection.PushSize),
		}
		s.passes = append(s.passes, p)
		p.program, err = c.exec.NewProgram(&ProgramDesc{
			Label:      fmt.Sprintf("pass%d", i),
			Pass:       i,
			Final:      i == last,
			Reflection: prog.Reflection,
			Vertex:     prog.Vertex,
			Fragment:   prog.Fragment,
		})
		if err != nil {
			return fmt.Errorf("shaderchain: pass %d: %w", i, err)
		}
		if i < last {
			if p.output, err = c.exec.NewFramebuffer(fmt.Sprintf("pass%d", i)); err != nil {
				return fmt.Errorf("shaderchain: pass %d: %w", i, err)
			}
		}
	}

	for k := 1; k <= s.historyDepth(); k++ {
		fb, err := c.exec.NewFramebuffer(fmt.Sprintf("history%d", k))
		if err != nil {
			return fmt.Errorf("shaderchain: history %d: %w", k, err)
		}
		s.history = append(s.history, fb)
	}

	for _, i := range s.feedbackPasses() {
		fb, err := c.exec.NewFramebuffer(fmt.Sprintf("feedback%d", i))
		if err != nil {
			return fmt.Errorf("shaderchain: feedback %d: %w", i, err)
		}
		s.passes[i].feedback = fb
	}

	for i, l := range c.opts.luts {
		if l.Image == nil {
			return fmt.Errorf("shaderchain: lookup texture %q has no image", l.ID)
		}
		tex, err := c.exec.NewTexture(l.Image, TextureOptions{Label: l.ID, Mipmap: l.Mipmap})
		if err != nil {
			return fmt.Errorf("shaderchain: lookup texture %d %q: %w", i, l.ID, err)
		}
		s.luts = append(s.luts, &lookup{LookupTexture: l, tex: tex})
	}
	return nil
}

// historyDepth is the largest OriginalHistory index any pass reads. Index
// zero is the live input and needs no storage.
func (s *chainState) historyDepth() int {
	depth := 0
	for _, p := range s.passes {
		depth = max(depth, p.refl.MaxIndex(semantics.OriginalHistory))
	}
	return depth
}

// feedbackPasses lists the non-final passes some pass reads through
// PassFeedback, in pass order.
func (s *chainState) feedbackPasses() []int {
	last := len(s.passes) - 1
	fed := make([]bool, len(s.passes))
	for _, p := range s.passes {
		for i, t := range p.refl.Textures[semantics.PassFeedback] {
			if i < last && (t.Sampled || t.SizeActive()) {
				fed[i] = true
			}
		}
	}
	var out []int
	for i, ok := range fed {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *chainState) release() {
	for _, p := range s.passes {
		if p.program != nil {
			p.program.Release()
		}
		if p.output != nil {
			p.output.Release()
		}
		if p.feedback != nil {
			p.feedback.Release()
		}
	}
	for _, fb := range s.history {
		fb.Release()
	}
	for _, l := range s.luts {
		l.tex.Release()
	}
}

// PassInfo describes a built pass.
type PassInfo struct {
	Name       string
	Shader     string
	Files      []string
	Format     format.Format
	Size       Size
	Reflection *reflection.Reflection
}

// Passes describes the built passes in execution order.
func (c *Chain) Passes() []PassInfo {
	if c.state == nil {
		return nil
	}
	out := make([]PassInfo, len(c.state.passes))
	for i, p := range c.state.passes {
		f := p.format
		if p.output != nil && p.output.Format().Valid() {
			f = p.output.Format()
		}
		out[i] = PassInfo{
			Name:       p.name,
			Shader:     p.cfg.Shader,
			Files:      p.files,
			Format:     f,
			Size:       p.size,
			Reflection: p.refl,
		}
	}
	return out
}

// HistoryDepth returns the number of stored history frames.
func (c *Chain) HistoryDepth() int {
	if c.state == nil {
		return 0
	}
	return len(c.state.history)
}

// FeedbackPasses returns the passes that keep a feedback framebuffer.
func (c *Chain) FeedbackPasses() []int {
	if c.state == nil {
		return nil
	}
	return c.state.feedbackPasses()
}

// Close releases every chain resource and closes the executor.
func (c *Chain) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.state != nil {
		c.state.release()
		c.state = nil
	}
	return c.exec.Close()
}
