// Package compile drives one filter pass from source file to translated
// stages: assembly, metadata, stage split, front-end compilation,
// reflection and cross compilation.
package compile

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/internal/cache"
	"github.com/gogpu/shaderchain/preprocess"
)

// ErrFrontEnd is the cause of every FrontEndError.
var ErrFrontEnd = errors.New("compile: front-end failed")

// Unit is one stage compile unit. Lines keeps the assembled line count;
// Map relates each line back to its original file and line.
type Unit struct {
	Stage preprocess.Stage
	Lines []string
	Map   preprocess.LineMap
}

// Compiler turns a compile unit into an IR module.
type Compiler interface {
	Compile(u Unit) (*ir.Module, error)
}

// FrontEndError is a front-end diagnostic mapped back to original source.
type FrontEndError struct {
	Stage  preprocess.Stage
	Pos    preprocess.Position // zero when the diagnostic has no location
	Column int
	Msg    string
}

func (e *FrontEndError) Error() string {
	if e.Pos.File == "" && e.Pos.Line == 0 {
		return fmt.Sprintf("%s stage: %s", e.Stage, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s stage: %s", e.Pos.File, e.Pos.Line, e.Column, e.Stage, e.Msg)
}

func (e *FrontEndError) Unwrap() error { return ErrFrontEnd }

// WGSLOptions configure a WGSLCompiler.
type WGSLOptions struct {
	// SkipValidation disables IR validation after lowering.
	SkipValidation bool

	// CacheSize bounds the number of cached modules. Zero disables caching.
	CacheSize int

	Logger *slog.Logger
}

// WGSLCompiler compiles units written in WGSL with preprocessor lines.
// Every line starting with '#' is blanked before parsing, so positions in
// the WGSL text equal assembled line numbers.
type WGSLCompiler struct {
	validate bool
	modules  *cache.Cache[cache.Key, *ir.Module]
	log      *slog.Logger
}

// NewWGSLCompiler returns a compiler backed by the naga WGSL front-end.
func NewWGSLCompiler(opts WGSLOptions) *WGSLCompiler {
	c := &WGSLCompiler{validate: !opts.SkipValidation, log: opts.Logger}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if opts.CacheSize > 0 {
		c.modules = cache.New[cache.Key, *ir.Module](opts.CacheSize)
	}
	return c
}

// CacheStats reports front-end cache counters. It returns zero stats when
// caching is disabled.
func (c *WGSLCompiler) CacheStats() cache.Stats {
	if c.modules == nil {
		return cache.Stats{}
	}
	return c.modules.Stats()
}

// Compile implements Compiler. Returned modules may be shared between
// calls and must be treated as read-only.
func (c *WGSLCompiler) Compile(u Unit) (*ir.Module, error) {
	text := wgslText(u.Lines)
	if c.modules == nil {
		return c.compile(u, text)
	}
	return c.modules.GetOrCreate(cache.KeyOf(u.Stage.String(), text), func() (*ir.Module, error) {
		return c.compile(u, text)
	})
}

func (c *WGSLCompiler) compile(u Unit, text string) (m *ir.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("compile: front-end panic", "stage", u.Stage, "panic", r)
			m, err = nil, &FrontEndError{Stage: u.Stage, Msg: fmt.Sprintf("front-end panic: %v", r)}
		}
	}()

	ast, err := naga.Parse(text)
	if err != nil {
		return nil, relocate(u, err)
	}
	m, err = naga.LowerWithSource(ast, text)
	if err != nil {
		return nil, relocate(u, err)
	}
	if c.validate {
		verrs, err := naga.Validate(m)
		if err != nil {
			return nil, relocate(u, err)
		}
		if len(verrs) > 0 {
			return nil, &FrontEndError{Stage: u.Stage, Msg: verrs[0].Error()}
		}
	}
	c.log.Debug("compile: lowered stage", "stage", u.Stage,
		"globals", len(m.GlobalVariables), "functions", len(m.Functions))
	return m, nil
}

func wgslText(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		b.WriteString(l)
	}
	return b.String()
}

var diagPos = regexp.MustCompile(`(?:line (\d+), column (\d+)|\b(\d+):(\d+)):\s*`)

// relocate maps the first line:column pair in a front-end message to the
// original file and line.
func relocate(u Unit, err error) error {
	msg := err.Error()
	loc := diagPos.FindStringSubmatchIndex(msg)
	if loc == nil {
		return &FrontEndError{Stage: u.Stage, Msg: msg}
	}
	sub := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return msg[loc[2*i]:loc[2*i+1]]
	}
	lineStr, colStr := sub(1), sub(2)
	if lineStr == "" {
		lineStr, colStr = sub(3), sub(4)
	}
	line, _ := strconv.Atoi(lineStr)
	col, _ := strconv.Atoi(colStr)

	fe := &FrontEndError{Stage: u.Stage, Column: col, Msg: msg[loc[1]:]}
	if line > 0 && line <= len(u.Lines) {
		fe.Pos = u.Map.At(line - 1)
	}
	return fe
}
