package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/shaderchain/format"
)

// Parameter is a user tunable float declared with #pragma parameter.
type Parameter struct {
	ID          string
	Description string
	Initial     float32
	Minimum     float32
	Maximum     float32
	Step        float32
}

// Metadata is what a shader declares about itself.
type Metadata struct {
	Name       string
	Format     format.Format
	Parameters []Parameter
}

// Parameter returns the declared parameter with the given id.
func (m *Metadata) Parameter(id string) (Parameter, bool) {
	for _, p := range m.Parameters {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// ParseMetadata scans every line of src for name, format and parameter
// pragmas.
func ParseMetadata(src *Source) (*Metadata, error) {
	root := ""
	if len(src.Files) > 0 {
		root = src.Files[0]
	}
	lines := NewLineMap(src.Lines, root)
	meta := &Metadata{}

	for i, line := range src.Lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, "#pragma") {
			continue
		}
		fail := func(cause error, msg string) error {
			pos := lines.At(i)
			return &SourceError{File: pos.File, Line: pos.Line, Content: line, Msg: msg, Err: cause}
		}

		directive, rest := cutWord(strings.TrimSpace(t[len("#pragma"):]))
		switch directive {
		case "name":
			name, extra := cutWord(rest)
			if name == "" || extra != "" {
				return nil, fail(nil, "malformed #pragma name")
			}
			if meta.Name != "" && meta.Name != name {
				return nil, fail(ErrDuplicateName, fmt.Sprintf("name %q already declared as %q", name, meta.Name))
			}
			meta.Name = name

		case "format":
			name, extra := cutWord(rest)
			if name == "" || extra != "" {
				return nil, fail(nil, "malformed #pragma format")
			}
			f := format.Parse(name)
			if f == format.Unknown {
				return nil, fail(ErrUnknownFormat, fmt.Sprintf("unknown format %q", name))
			}
			if meta.Format != format.Unknown && meta.Format != f {
				return nil, fail(ErrDuplicateFormat, fmt.Sprintf("format %s already declared as %s", f, meta.Format))
			}
			meta.Format = f

		case "parameter":
			p, err := parseParameter(rest)
			if err != nil {
				return nil, fail(nil, err.Error())
			}
			if prev, ok := meta.Parameter(p.ID); ok {
				if prev != p {
					return nil, fail(ErrDuplicateParameter, fmt.Sprintf("parameter %q redeclared with different values", p.ID))
				}
				continue
			}
			meta.Parameters = append(meta.Parameters, p)
		}
	}
	return meta, nil
}

// parseParameter parses `id "description" initial minimum maximum [step]`.
func parseParameter(s string) (Parameter, error) {
	id, rest := cutWord(s)
	if id == "" {
		return Parameter{}, fmt.Errorf("malformed #pragma parameter: missing id")
	}
	if !strings.HasPrefix(rest, `"`) {
		return Parameter{}, fmt.Errorf("malformed #pragma parameter %q: missing quoted description", id)
	}
	end := strings.IndexByte(rest[1:], '"')
	if end < 0 {
		return Parameter{}, fmt.Errorf("malformed #pragma parameter %q: unterminated description", id)
	}
	desc := rest[1 : end+1]
	fields := strings.Fields(rest[end+2:])
	if len(fields) < 3 || len(fields) > 4 {
		return Parameter{}, fmt.Errorf("malformed #pragma parameter %q: want initial, minimum, maximum and optional step", id)
	}
	vals := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return Parameter{}, fmt.Errorf("malformed #pragma parameter %q: %q is not a number", id, f)
		}
		vals[i] = float32(v)
	}
	p := Parameter{ID: id, Description: desc, Initial: vals[0], Minimum: vals[1], Maximum: vals[2]}
	if len(vals) == 4 {
		p.Step = vals[3]
	} else {
		p.Step = 0.1 * (p.Maximum - p.Minimum)
	}
	return p, nil
}

// cutWord splits off the first whitespace separated word.
func cutWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
