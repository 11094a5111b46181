package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/cruciblehq/kiln/internal/archive"
	"github.com/cruciblehq/kiln/internal/stage"
)

// A build environment backed by a host directory.
type Dir struct {
	root    string        // Host directory standing in for the filesystem root.
	network stage.Network // Network mode for commands.
}

// Returns the host directory backing the environment.
func (d *Dir) Root() string {
	return d.root
}

// Maps an environment path to a host path inside the root.
func (d *Dir) resolve(p string) (string, error) {
	return securejoin.SecureJoin(d.root, path.Clean("/"+p))
}

// Like resolve, but leaves the last element unresolved, so a symlink is
// addressed as itself rather than as its target.
func (d *Dir) resolveLeaf(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return d.root, nil
	}
	parent, err := d.resolve(path.Dir(clean))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, path.Base(clean)), nil
}

// Runs "shell -c command" on the host in the mapped working directory.
//
// The host environment is inherited so the toolchain can be found; env
// entries override it. A non-zero exit code is reported in the result.
func (d *Dir) Exec(ctx context.Context, shell, command string, env []string, workdir string) (*stage.ExecResult, error) {
	dir := d.root
	if workdir != "" {
		var err error
		if dir, err = d.resolve(workdir); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSandbox, err)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if d.network == stage.NetworkNone {
		isolateNetwork(cmd)
	}

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
	default:
		return nil, fmt.Errorf("%w: %w", ErrSandbox, err)
	}

	return &stage.ExecResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Creates a directory inside the environment, including parents.
func (d *Dir) MkdirAll(ctx context.Context, p string) error {
	host, err := d.resolve(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	if err := os.MkdirAll(host, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	return nil
}

// Removes a path inside the environment. The root itself cannot be removed.
func (d *Dir) RemoveAll(ctx context.Context, p string) error {
	host, err := d.resolveLeaf(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	if host == d.root {
		return fmt.Errorf("%w: refusing to remove the environment root", ErrSandbox)
	}
	if err := os.RemoveAll(host); err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	return nil
}

// Extracts a tar stream into destDir. Entries cannot escape the environment.
func (d *Dir) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	base := path.Clean("/" + destDir)
	err := archive.Extract(r, func(name string) (string, error) {
		return d.resolve(path.Join(base, name))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	return nil
}

// Writes p as a tar stream, with entry names relative to the parent of p. A
// symlink at p is written as a link.
func (d *Dir) CopyFrom(ctx context.Context, w io.Writer, p string) error {
	host, err := d.resolveLeaf(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}

	info, err := os.Lstat(host)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}

	tw := tar.NewWriter(w)
	name := filepath.Base(host)
	if info.IsDir() {
		err = archive.WriteDir(tw, host, name, nil)
	} else {
		err = archive.WriteFile(tw, host, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSandbox, err)
	}
	return nil
}

// Removes the environment directory.
func (d *Dir) Destroy(ctx context.Context) {
	if err := os.RemoveAll(d.root); err != nil {
		slog.Warn("failed to remove sandbox", "dir", d.root, "error", err)
	}
}

