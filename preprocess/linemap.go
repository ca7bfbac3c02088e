package preprocess

import (
	"strconv"
	"strings"
)

// Position is a location in an original source file.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	return p.File + ":" + strconv.Itoa(p.Line)
}

// LineMap maps assembled line indices back to original positions by
// interpreting the #line directives Assemble emitted.
type LineMap []Position

// NewLineMap builds the map for lines. Lines before the first #line
// directive are attributed to file.
func NewLineMap(lines []string, file string) LineMap {
	m := make(LineMap, len(lines))
	cur := Position{File: file, Line: 1}
	for i, l := range lines {
		m[i] = cur
		if n, f, ok := parseLineDirective(l); ok {
			cur.Line = n
			if f != "" {
				cur.File = f
			}
			continue
		}
		cur.Line++
	}
	return m
}

// At returns the original position of assembled line index i (0-based).
func (m LineMap) At(i int) Position {
	if i < 0 || i >= len(m) {
		return Position{}
	}
	return m[i]
}

func parseLineDirective(l string) (int, string, bool) {
	t := strings.TrimSpace(l)
	if !strings.HasPrefix(t, "#line ") {
		return 0, "", false
	}
	fields := strings.SplitN(strings.TrimSpace(t[len("#line "):]), " ", 2)
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}
	if len(fields) == 1 {
		return n, "", true
	}
	f, err := strconv.Unquote(strings.TrimSpace(fields[1]))
	if err != nil {
		return n, "", true
	}
	return n, f, true
}
