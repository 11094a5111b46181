package launch

import "errors"

var (
	ErrLaunch          = errors.New("launch failed")
	ErrInvalidExitCode = errors.New("invalid exit code")
)
