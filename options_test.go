package shaderchain

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/shaderchain/compile"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.cacheSize != 64 {
		t.Errorf("cacheSize = %d, want 64", o.cacheSize)
	}
	if o.compiler != nil || o.fsys != nil || o.log != nil {
		t.Error("optional collaborators should be unset")
	}
}

func TestOptionsApply(t *testing.T) {
	o := defaultOptions()
	log := slog.New(slog.DiscardHandler)
	fsys := shaderFS(nil)
	for _, opt := range []Option{
		WithCache(0),
		WithLogger(log),
		WithFS(fsys),
		WithParameters(map[string]float32{"Gamma": 2}),
		WithLookupTextures(LookupTexture{ID: "A"}),
		WithLookupTextures(LookupTexture{ID: "B"}, LookupTexture{ID: "C"}),
	} {
		opt(&o)
	}
	if o.cacheSize != 0 {
		t.Errorf("cacheSize = %d, want 0", o.cacheSize)
	}
	if o.log != log {
		t.Error("logger not set")
	}
	if o.parameters["Gamma"] != 2 {
		t.Errorf("parameters = %v", o.parameters)
	}
	var ids []string
	for _, l := range o.luts {
		ids = append(ids, l.ID)
	}
	if strings.Join(ids, ",") != "A,B,C" {
		t.Errorf("lookup textures = %v, want A,B,C in order", ids)
	}
}

// countingCompiler wraps the default front-end and counts compiled stages.
type countingCompiler struct {
	inner compile.Compiler
	calls int
}

func (c *countingCompiler) Compile(u compile.Unit) (*ir.Module, error) {
	c.calls++
	return c.inner.Compile(u)
}

func TestWithCompiler(t *testing.T) {
	cc := &countingCompiler{inner: compile.NewWGSLCompiler(compile.WGSLOptions{})}
	c, _ := newTestChain(t, map[string]testShader{
		"a.wgsl": {textures: []string{"Source"}},
	}, WithCompiler(cc))
	if err := c.Build([]PassConfig{DefaultPassConfig("a.wgsl")}); err != nil {
		t.Fatal(err)
	}
	if cc.calls != 2 {
		t.Errorf("compiled %d stages, want 2", cc.calls)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	c, _ := newTestChain(t, map[string]testShader{
		"a.wgsl": {textures: []string{"Source"}},
	}, WithLogger(log), WithParameters(map[string]float32{"Missing": 1}))
	if err := c.Build([]PassConfig{DefaultPassConfig("a.wgsl")}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"undeclared parameter", "id=Missing", "built chain"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
