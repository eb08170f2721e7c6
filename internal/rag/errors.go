package rag

import "errors"

var (
	// ErrNotFound indicates a missing file or document.
	ErrNotFound = errors.New("not found")

	// ErrParse indicates a document yielded no usable text.
	ErrParse = errors.New("could not parse document")
)
