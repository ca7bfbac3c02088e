// Command shaderc compiles one filter pass and prints what the chain would
// see: its metadata, its resource layout and the translated stages.
//
// Usage:
//
//	shaderc [-target spirv|glsl|hlsl|msl] [-flatten] [-o prefix] shader.slang
//	shaderc -preset crt.toml [-pass N] [-target ...] [-o prefix]
//
// With -preset the pass aliases, lookup textures and parameters of the
// whole preset are known, so passes that sample other passes by name
// compile. With -o the stages are written to prefix.vert.<ext> and
// prefix.frag.<ext> instead of standard output.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/compile"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/preprocess"
	"github.com/gogpu/shaderchain/preset"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

type config struct {
	target        crosscompile.Dialect
	flatten       bool
	pushAsUniform bool
	glslVersion   glsl.Version
	presetPath    string
	pass          int
	output        string
	shader        string
}

func parseFlags(args []string, stderr io.Writer) (*config, *slog.Logger, error) {
	fs := flag.NewFlagSet("shaderc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		target     = fs.String("target", "glsl", "output dialect: spirv, glsl, hlsl or msl")
		flatten    = fs.Bool("flatten", false, "split uniform blocks into plain uniforms (glsl)")
		push       = fs.Bool("push-as-uniform", false, "move push constants into a uniform buffer")
		version    = fs.Int("glsl-version", 330, "GLSL version: 330, 400, 410, 420, 430, 450 or 460")
		presetFile = fs.String("preset", "", "preset file supplying aliases, textures and parameters")
		pass       = fs.Int("pass", 0, "pass index within the preset")
		output     = fs.String("o", "", "write stages to `prefix`.vert.<ext> and prefix.frag.<ext>")
		verbose    = fs.Bool("v", false, "log compiler decisions to standard error")
	)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := &config{
		flatten:       *flatten,
		pushAsUniform: *push,
		presetPath:    *presetFile,
		pass:          *pass,
		output:        *output,
	}
	var ok bool
	if cfg.target, ok = crosscompile.ParseDialect(*target); !ok {
		return nil, nil, fmt.Errorf("unknown target %q", *target)
	}
	if cfg.glslVersion, ok = glslVersions[*version]; !ok {
		return nil, nil, fmt.Errorf("unsupported GLSL version %d", *version)
	}
	switch {
	case cfg.presetPath == "" && fs.NArg() != 1:
		fs.Usage()
		return nil, nil, errors.New("expected one shader file")
	case cfg.presetPath != "" && fs.NArg() != 0:
		return nil, nil, errors.New("a preset and a shader file are exclusive")
	case cfg.presetPath == "":
		cfg.shader = fs.Arg(0)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

var glslVersions = map[int]glsl.Version{
	330: glsl.Version330,
	400: glsl.Version400,
	410: glsl.Version410,
	420: glsl.Version420,
	430: glsl.Version430,
	450: glsl.Version450,
	460: glsl.Version460,
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, logger, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	orch := compile.New(compile.WithLogger(logger))
	target := compile.Target{
		Dialect:       cfg.target,
		Flatten:       cfg.flatten,
		PushAsUniform: cfg.pushAsUniform,
		GLSLVersion:   cfg.glslVersion,
	}

	var (
		passes []shaderchain.PassConfig
		luts   []shaderchain.LookupTexture
	)
	if cfg.presetPath == "" {
		passes = []shaderchain.PassConfig{shaderchain.DefaultPassConfig(cfg.shader)}
	} else {
		p, err := preset.Load(cfg.presetPath)
		if err != nil {
			return err
		}
		passes = p.Passes
		for _, t := range p.Textures {
			luts = append(luts, shaderchain.LookupTexture{ID: t.ID})
		}
	}
	prog, err := compilePass(orch, passes, luts, cfg.pass, target)
	if err != nil {
		return err
	}

	printMetadata(stdout, prog.Metadata)
	printReflection(stdout, prog.Reflection)
	if cfg.output != "" {
		return writeStages(stdout, cfg.output, prog)
	}
	for _, out := range []*crosscompile.Output{prog.Vertex, prog.Fragment} {
		fmt.Fprintf(stdout, "\n// %s stage\n", stageName(out))
		if out.Dialect == crosscompile.SPIRV {
			fmt.Fprintf(stdout, "// %d SPIR-V words, use -o to write them\n", len(out.SPIRV))
			continue
		}
		fmt.Fprint(stdout, out.Source)
	}
	return nil
}

// compilePass parses every pass to build the name table the chain would
// use, then finishes pass index.
func compilePass(orch *compile.Orchestrator, passes []shaderchain.PassConfig, luts []shaderchain.LookupTexture, index int, target compile.Target) (*compile.Program, error) {
	if index < 0 || index >= len(passes) {
		return nil, fmt.Errorf("pass %d out of range, the chain has %d", index, len(passes))
	}
	parsed := make([]*compile.Parsed, len(passes))
	metas := make([]*preprocess.Metadata, len(passes))
	for i, cfg := range passes {
		p, err := orch.Parse(cfg.Shader)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", i, err)
		}
		parsed[i], metas[i] = p, p.Metadata
	}
	params, err := shaderchain.MergeParameters(metas)
	if err != nil {
		return nil, err
	}
	names, err := shaderchain.Aliases(passes, metas, luts, params)
	if err != nil {
		return nil, err
	}
	return orch.Finish(parsed[index], names, index, target)
}

func stageName(out *crosscompile.Output) string {
	if out.Stage == ir.StageVertex {
		return "vertex"
	}
	return "fragment"
}

func printMetadata(w io.Writer, m *preprocess.Metadata) {
	name := m.Name
	if name == "" {
		name = "(none)"
	}
	fmt.Fprintf(w, "name:   %s\n", name)
	fmt.Fprintf(w, "format: %s\n", m.Format)
	for _, p := range m.Parameters {
		fmt.Fprintf(w, "parameter %s %q initial=%g range=[%g, %g] step=%g\n",
			p.ID, p.Description, p.Initial, p.Minimum, p.Maximum, p.Step)
	}
}

func printReflection(w io.Writer, r *reflection.Reflection) {
	if r.UBOSize > 0 {
		fmt.Fprintf(w, "ubo:    binding %d, %d bytes, %s\n", r.UBOBinding, r.UBOSize, r.UBOStages)
	}
	if r.PushSize > 0 {
		fmt.Fprintf(w, "push:   %d bytes, %s\n", r.PushSize, r.PushStages)
	}
	for id := semantics.ID(0); id < semantics.NumBuiltins; id++ {
		if b := r.Semantics[id]; b.Active() {
			fmt.Fprintf(w, "uniform %s%s\n", id, offsets(b.UBOActive, b.UBOOffset, b.PushActive, b.PushOffset))
		}
	}
	for _, st := range r.SampledTextures() {
		b := st.Binding
		fmt.Fprintf(w, "texture %s binding %d\n", st.Ref.Name(), b.Binding)
	}
	for sem := semantics.Texture(0); sem < semantics.NumTextures; sem++ {
		for i, b := range r.Textures[sem] {
			if b.SizeActive() {
				ref := semantics.TextureRef{Semantic: sem, Index: i}
				fmt.Fprintf(w, "uniform %s%s\n", ref.SizeName(),
					offsets(b.SizeUBOActive, b.SizeUBOOffset, b.SizePushActive, b.SizePushOffset))
			}
		}
	}
	for index, b := range r.Parameters {
		fmt.Fprintf(w, "parameter #%d%s\n", index, offsets(b.UBOActive, b.UBOOffset, b.PushActive, b.PushOffset))
	}
}

func offsets(ubo bool, uboOff uint32, push bool, pushOff uint32) string {
	var sb strings.Builder
	if ubo {
		fmt.Fprintf(&sb, " ubo+%d", uboOff)
	}
	if push {
		fmt.Fprintf(&sb, " push+%d", pushOff)
	}
	return sb.String()
}

var extensions = map[crosscompile.Dialect]string{
	crosscompile.SPIRV: "spv",
	crosscompile.GLSL:  "glsl",
	crosscompile.HLSL:  "hlsl",
	crosscompile.MSL:   "metal",
}

func writeStages(stdout io.Writer, prefix string, prog *compile.Program) error {
	for _, s := range []struct {
		name string
		out  *crosscompile.Output
	}{{"vert", prog.Vertex}, {"frag", prog.Fragment}} {
		path := fmt.Sprintf("%s.%s.%s", prefix, s.name, extensions[s.out.Dialect])
		data := []byte(s.out.Source)
		if s.out.Dialect == crosscompile.SPIRV {
			data = make([]byte, 4*len(s.out.SPIRV))
			for i, word := range s.out.SPIRV {
				binary.LittleEndian.PutUint32(data[4*i:], word)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	return nil
}
