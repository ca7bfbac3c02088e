package preset

import (
	"fmt"

	"github.com/gogpu/shaderchain"
)

// Build loads the preset at path and builds a chain from it on exec.
// Options in opts apply after the preset's own, so a caller's
// WithParameters replaces the preset values.
//
// On error no chain is returned and exec is not closed.
func Build(path string, exec shaderchain.Executor, opts ...shaderchain.Option) (*shaderchain.Chain, *Preset, error) {
	p, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	chain, err := p.NewChain(exec, opts...)
	if err != nil {
		return nil, p, err
	}
	return chain, p, nil
}

// NewChain builds a chain from an already loaded preset.
func (p *Preset) NewChain(exec shaderchain.Executor, opts ...shaderchain.Option) (*shaderchain.Chain, error) {
	own, err := p.Options()
	if err != nil {
		return nil, err
	}
	c := shaderchain.New(exec, append(own, opts...)...)
	if err := c.Build(p.Passes); err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	return c, nil
}
