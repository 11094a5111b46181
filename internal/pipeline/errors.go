package pipeline

import "errors"

var (
	ErrInvalidDescriptor = errors.New("invalid pipeline descriptor")
	ErrLoad              = errors.New("failed to load pipeline descriptor")
)
