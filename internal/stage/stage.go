// Package stage defines the contract between the build pipeline and the
// environments it runs in.
//
// A [Provider] starts build environments; an [Environment] is an isolated
// filesystem with a process runner, such as a containerd container or a
// private directory on the host. The pipeline only ever talks to these
// interfaces, so the same build and transfer logic applies to every backend.
package stage

import (
	"context"
	"io"
)

// Network mode for a build environment.
type Network string

const (
	NetworkHost Network = "host"
	NetworkNone Network = "none"
)

// Parameters for starting a build environment.
type Spec struct {
	ID       string  // Unique environment identifier.
	Image    string  // Base image reference or archive path. Backends may ignore it.
	Platform string  // OCI platform (e.g., "linux/amd64").
	Network  Network // Network mode.
}

// Output of a command execution inside an environment.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Starts build environments.
type Provider interface {
	Start(ctx context.Context, spec Spec) (Environment, error)
}

// An isolated filesystem with a command runner.
//
// Paths are absolute paths within the environment. Tar streams use paths
// relative to the destination directory (CopyTo) or to the parent of the
// copied path (CopyFrom).
type Environment interface {

	// Runs "shell -c command" with the given env and working directory. A
	// non-zero exit code is returned in the result, not as an error.
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*ExecResult, error)

	// Creates a directory, including parents.
	MkdirAll(ctx context.Context, path string) error

	// Removes a path and everything below it. Missing paths are not an error.
	RemoveAll(ctx context.Context, path string) error

	// Extracts a tar stream into destDir.
	CopyTo(ctx context.Context, r io.Reader, destDir string) error

	// Writes path as a tar stream to w.
	CopyFrom(ctx context.Context, w io.Writer, path string) error

	// Releases all resources. The environment is unusable afterwards.
	Destroy(ctx context.Context)
}
