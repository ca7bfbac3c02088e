package shaderchain

import "errors"

var (
	// ErrNoPasses is returned when a chain is built from an empty pass list.
	ErrNoPasses = errors.New("shaderchain: no passes")

	// ErrDuplicateAlias is returned when two passes or lookup textures
	// register the same alias.
	ErrDuplicateAlias = errors.New("shaderchain: duplicate alias")

	// ErrDuplicateParameter is returned when two passes declare the same
	// parameter with different fields.
	ErrDuplicateParameter = errors.New("shaderchain: conflicting parameter declarations")

	// ErrNotBuilt is returned by frame operations before a successful Build.
	ErrNotBuilt = errors.New("shaderchain: chain not built")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("shaderchain: chain closed")

	// ErrUnknownParameter is returned when setting a parameter no pass declares.
	ErrUnknownParameter = errors.New("shaderchain: unknown parameter")

	// ErrNoInput is returned when a frame runs before SetInput.
	ErrNoInput = errors.New("shaderchain: no input image")
)
