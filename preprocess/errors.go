package preprocess

import (
	"errors"
	"fmt"
)

// Causes carried by SourceError.Err.
var (
	ErrDuplicateName      = errors.New("preprocess: conflicting #pragma name")
	ErrDuplicateFormat    = errors.New("preprocess: conflicting #pragma format")
	ErrUnknownFormat      = errors.New("preprocess: unknown #pragma format")
	ErrDuplicateParameter = errors.New("preprocess: conflicting #pragma parameter")
	ErrMissingStage       = errors.New("preprocess: missing #pragma stage")
)

// SourceError reports a problem with one line of shader source.
type SourceError struct {
	File    string
	Line    int // 1-based; 0 when the error concerns the whole file
	Content string
	Msg     string
	Err     error
}

func (e *SourceError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Content != "" {
		return fmt.Sprintf("%s: %s: %q", loc, msg, e.Content)
	}
	return loc + ": " + msg
}

func (e *SourceError) Unwrap() error { return e.Err }
