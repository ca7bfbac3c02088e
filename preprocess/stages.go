package preprocess

import (
	"fmt"
	"strings"
)

// Stage is a shader pipeline stage.
type Stage uint8

// Stages a filter pass is made of.
const (
	Vertex Stage = iota
	Fragment
)

func (s Stage) String() string {
	switch s {
	case Vertex:
		return "vertex"
	case Fragment:
		return "fragment"
	}
	return "unknown"
}

// Stages is the pair of per-stage compile units cut out of one file.
// Both keep the assembled line count so a LineMap built from the
// assembled source applies to either.
type Stages struct {
	Vertex   []string
	Fragment []string
}

// SplitStages cuts src into vertex and fragment sources. Lines before the
// first #pragma stage belong to both. Lines of the other stage and the
// name and format pragmas are blanked; preprocessor lines are kept so
// #line bookkeeping stays intact.
func SplitStages(src *Source) (*Stages, error) {
	root := ""
	if len(src.Files) > 0 {
		root = src.Files[0]
	}
	lm := NewLineMap(src.Lines, root)

	out := &Stages{
		Vertex:   make([]string, len(src.Lines)),
		Fragment: make([]string, len(src.Lines)),
	}
	vertex, fragment := true, true
	seen := [2]bool{}

	for i, line := range src.Lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "#pragma") {
			directive, rest := cutWord(strings.TrimSpace(t[len("#pragma"):]))
			switch directive {
			case "stage":
				stage, _ := cutWord(rest)
				switch stage {
				case "vertex":
					vertex, fragment = true, false
					seen[Vertex] = true
				case "fragment":
					vertex, fragment = false, true
					seen[Fragment] = true
				default:
					pos := lm.At(i)
					return nil, &SourceError{File: pos.File, Line: pos.Line, Content: line,
						Msg: fmt.Sprintf("unknown stage %q", stage)}
				}
				continue
			case "name", "format":
				continue
			}
		}
		if strings.HasPrefix(t, "#") {
			out.Vertex[i] = line
			out.Fragment[i] = line
			continue
		}
		if vertex {
			out.Vertex[i] = line
		}
		if fragment {
			out.Fragment[i] = line
		}
	}

	for _, s := range []Stage{Vertex, Fragment} {
		if !seen[s] {
			return nil, &SourceError{File: root, Msg: fmt.Sprintf("no %s stage", s), Err: ErrMissingStage}
		}
	}
	return out, nil
}
