// Package preprocess turns annotated shader files into compile units.
//
// Assemble expands #include directives and inserts #line directives so
// diagnostics can be traced back to the original files. ParseMetadata
// collects the #pragma name, format and parameter declarations, and
// SplitStages cuts an assembled file into vertex and fragment sources.
package preprocess

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineDirectiveExtension is emitted after the version line of a root file
// so line directives may carry file names.
const LineDirectiveExtension = "#extension GL_GOOGLE_cpp_style_line_directive : require"

// maxIncludeDepth bounds include recursion. Cycles are not detected
// otherwise.
const maxIncludeDepth = 64

// Source is an assembled shader file.
type Source struct {
	// Lines holds the expanded text, one entry per line, without
	// terminators. For root files Lines[0] is the #version directive.
	Lines []string

	// Files lists every file read, root first, in read order.
	Files []string
}

// Text joins the lines with newlines.
func (s *Source) Text() string {
	return strings.Join(s.Lines, "\n")
}

// Assemble reads path from the operating system and expands it.
// When root is set the first non-empty line must be a #version directive.
func Assemble(path string, root bool) (*Source, error) {
	a := &assembler{read: os.ReadFile, dir: filepath.Dir, join: filepath.Join}
	if err := a.run(path, root, 0); err != nil {
		return nil, err
	}
	return &Source{Lines: a.lines, Files: a.files}, nil
}

// AssembleFS is like Assemble but reads from fsys using slash separated
// paths.
func AssembleFS(fsys fs.FS, name string, root bool) (*Source, error) {
	a := &assembler{
		read: func(p string) ([]byte, error) { return fs.ReadFile(fsys, p) },
		dir:  path.Dir,
		join: path.Join,
	}
	if err := a.run(name, root, 0); err != nil {
		return nil, err
	}
	return &Source{Lines: a.lines, Files: a.files}, nil
}

type assembler struct {
	read  func(string) ([]byte, error)
	dir   func(string) string
	join  func(...string) string
	lines []string
	files []string
}

func (a *assembler) run(file string, root bool, depth int) error {
	if depth > maxIncludeDepth {
		return &SourceError{File: file, Msg: "include nesting too deep"}
	}
	raw, err := a.read(file)
	if err != nil {
		return fmt.Errorf("preprocess: read %s: %w", file, err)
	}
	lines, err := SplitLines(raw)
	if err != nil {
		return fmt.Errorf("preprocess: decode %s: %w", file, err)
	}
	if isBlank(lines) {
		return &SourceError{File: file, Msg: "shader source is empty"}
	}
	a.files = append(a.files, file)
	if depth > 0 {
		a.lines = append(a.lines, lineDirective(1, file))
	}

	start := 0
	if root {
		for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
			start++
		}
		if !strings.HasPrefix(strings.TrimSpace(lines[start]), "#version") {
			return &SourceError{File: file, Line: start + 1, Content: lines[start],
				Msg: "root shader must start with #version"}
		}
		a.lines = append(a.lines, lines[start], LineDirectiveExtension, lineDirective(start+2, file))
		start++
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#include"):
			name, ok := quoted(trimmed[len("#include"):])
			if !ok {
				return &SourceError{File: file, Line: i + 1, Content: line,
					Msg: "#include without quoted file name"}
			}
			if err := a.run(a.join(a.dir(file), name), false, depth+1); err != nil {
				return err
			}
			a.lines = append(a.lines, lineDirective(i+2, file))
		case strings.HasPrefix(trimmed, "#endif"), strings.HasPrefix(trimmed, "#pragma"):
			a.lines = append(a.lines, line, lineDirective(i+2, file))
		default:
			a.lines = append(a.lines, line)
		}
	}
	return nil
}

// SplitLines decodes raw file contents and splits them into lines.
// A byte order mark selects the encoding (UTF-8 or UTF-16) and is
// removed. CRLF and lone CR terminators become LF.
func SplitLines(raw []byte) ([]string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, err
	}
	decoded = bytes.ReplaceAll(decoded, []byte("\r\n"), []byte("\n"))
	decoded = bytes.ReplaceAll(decoded, []byte("\r"), []byte("\n"))
	text := strings.TrimSuffix(string(decoded), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// quoted returns the text between the first and the last double quote.
func quoted(s string) (string, bool) {
	first := strings.IndexByte(s, '"')
	last := strings.LastIndexByte(s, '"')
	if first < 0 || last <= first+1 {
		return "", false
	}
	return s[first+1 : last], true
}

func lineDirective(line int, file string) string {
	return "#line " + strconv.Itoa(line) + " " + strconv.Quote(file)
}
