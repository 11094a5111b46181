package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// A black-box runnable program.
type Program interface {

	// Runs the program to completion and returns its exit code.
	Run(ctx context.Context) (ExitCode, error)
}

// A host executable started with no arguments.
type Process struct {
	Path   string    // Absolute path of the executable.
	Env    []string  // Environment; nil means an empty environment.
	Dir    string    // Working directory; empty means the caller's.
	Stdin  io.Reader // Standard input; nil means no input.
	Stdout io.Writer // Standard output; nil discards output.
	Stderr io.Writer // Standard error; nil discards output.
}

// Runs the executable and returns its exit code.
//
// The file must exist, be a regular file, and carry at least one execute
// bit; otherwise [ErrLaunch] is returned and nothing is started. A process
// terminated by a signal reports 128 plus the signal number. Cancelling ctx
// kills the process.
func (p *Process) Run(ctx context.Context) (ExitCode, error) {
	if err := checkExecutable(p.Path); err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, p.Path)
	cmd.Args = []string{p.Path}
	cmd.Env = p.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Dir = p.Dir
	cmd.Stdin = p.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr

	slog.Debug("launching", "path", p.Path)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return FromSignal(int(status.Signal())), nil
	}
	return ExitCode(exitErr.ExitCode()), nil
}

// Returns an error unless path names an executable regular file.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrLaunch, path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrLaunch, path)
	}
	return nil
}
