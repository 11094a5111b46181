package cli

import "github.com/cruciblehq/kiln/internal/launch"

// Reports that a launched program finished with a non-zero exit code.
//
// It is not a failure of kiln itself: the caller is expected to exit with
// Code and log nothing.
type ExitError struct {
	Code launch.ExitCode
}

func (e *ExitError) Error() string {
	return "program exited with code " + e.Code.String()
}

// Converts a program exit code into the command result.
func exitResult(code launch.ExitCode) error {
	if code.IsSuccess() {
		return nil
	}
	return &ExitError{Code: code}
}
