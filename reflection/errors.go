package reflection

import (
	"errors"
	"fmt"
)

// Error causes. Every failure is returned as *Error wrapping one of these.
var (
	ErrUnsupportedResource = errors.New("reflection: unsupported resource")
	ErrStageInterface      = errors.New("reflection: invalid stage interface")
	ErrBinding             = errors.New("reflection: invalid binding")
	ErrUnknownSemantic     = errors.New("reflection: unknown semantic")
	ErrType                = errors.New("reflection: type mismatch")
	ErrNonCausal           = errors.New("reflection: non-causal pass reference")
	ErrConflict            = errors.New("reflection: conflicting declarations")
)

// Error reports why a shader pair was rejected.
type Error struct {
	Stage string // "vertex", "fragment" or "" for cross-stage checks
	Name  string // offending resource or member, if any
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var prefix string
	switch {
	case e.Stage != "" && e.Name != "":
		prefix = fmt.Sprintf("%s %q: ", e.Stage, e.Name)
	case e.Stage != "":
		prefix = e.Stage + ": "
	case e.Name != "":
		prefix = fmt.Sprintf("%q: ", e.Name)
	}
	return e.Err.Error() + ": " + prefix + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }
