package image

import "errors"

var (
	ErrImage        = errors.New("image error")
	ErrNotFound     = errors.New("file not found in image")
	ErrNoEntrypoint = errors.New("image has no entry point")
	ErrModified     = errors.New("artifact content changed during packaging")
)
