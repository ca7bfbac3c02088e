package shaderchain

import (
	"fmt"
	"slices"

	"github.com/gogpu/shaderchain/preprocess"
)

// Parameter is a live float parameter of a built chain.
type Parameter struct {
	preprocess.Parameter
	Value float32
}

// MergeParameters collects the parameters of every pass in order.
// Declarations of the same id in different passes collapse to one when
// every field matches and fail with ErrDuplicateParameter otherwise.
func MergeParameters(metas []*preprocess.Metadata) ([]preprocess.Parameter, error) {
	var out []preprocess.Parameter
	seen := make(map[string]int)
	for pass, m := range metas {
		if m == nil {
			continue
		}
		for _, p := range m.Parameters {
			i, ok := seen[p.ID]
			if !ok {
				seen[p.ID] = len(out)
				out = append(out, p)
				continue
			}
			if out[i] != p {
				return nil, fmt.Errorf("%w: %q in pass %d differs from an earlier pass", ErrDuplicateParameter, p.ID, pass)
			}
		}
	}
	return out, nil
}

// Parameters returns a copy of the live parameter set.
func (c *Chain) Parameters() []Parameter {
	if c.state == nil {
		return nil
	}
	return append([]Parameter(nil), c.state.params...)
}

// SetParameter sets the live value of a parameter.
func (c *Chain) SetParameter(id string, v float32) error {
	if c.closed {
		return ErrClosed
	}
	if c.state == nil {
		return ErrNotBuilt
	}
	i, ok := c.state.paramIndex(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, id)
	}
	c.state.params[i].Value = v
	return nil
}

// ReplaceParameters sets several values at once. Nothing changes if any id
// is unknown.
func (c *Chain) ReplaceParameters(values map[string]float32) error {
	if c.closed {
		return ErrClosed
	}
	if c.state == nil {
		return ErrNotBuilt
	}
	for id := range values {
		if _, ok := c.state.paramIndex(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, id)
		}
	}
	for id, v := range values {
		i, _ := c.state.paramIndex(id)
		c.state.params[i].Value = v
	}
	return nil
}

// ResetParameters restores every parameter to its declared initial value.
func (c *Chain) ResetParameters() {
	if c.state == nil {
		return
	}
	for i := range c.state.params {
		c.state.params[i].Value = c.state.params[i].Initial
	}
}

func (s *chainState) paramIndex(id string) (int, bool) {
	for i, p := range s.params {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

// liveParameters seeds values for a new build: the previous chain's value
// when the id survives, then an override, then the declared initial.
func liveParameters(decl []preprocess.Parameter, prev []Parameter, overrides map[string]float32) ([]Parameter, []string) {
	old := make(map[string]float32, len(prev))
	for _, p := range prev {
		old[p.ID] = p.Value
	}
	out := make([]Parameter, len(decl))
	used := make(map[string]bool)
	for i, p := range decl {
		out[i] = Parameter{Parameter: p, Value: p.Initial}
		if v, ok := overrides[p.ID]; ok {
			out[i].Value = v
			used[p.ID] = true
		}
		if v, ok := old[p.ID]; ok {
			out[i].Value = v
		}
	}
	var unknown []string
	for id := range overrides {
		if !used[id] {
			unknown = append(unknown, id)
		}
	}
	slices.Sort(unknown)
	return out, unknown
}
