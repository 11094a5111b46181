package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Creates a directory inside the container, including parents.
func (c *Container) MkdirAll(ctx context.Context, p string) error {
	return c.mustRun(ctx, nil, nil, "mkdir", "-p", p)
}

// Removes a path inside the container. The filesystem root is refused.
func (c *Container) RemoveAll(ctx context.Context, p string) error {
	if path.Clean("/"+p) == "/" {
		return fmt.Errorf("%w: refusing to remove the container root", ErrRuntime)
	}
	return c.mustRun(ctx, nil, nil, "rm", "-rf", p)
}

// Unpacks the tar stream r into destDir with the container's own tar.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.mustRun(ctx, r, nil, "tar", "-x", "-f", "-", "-C", destDir)
}

// Streams p out of the container as a tar archive whose single top-level
// entry is the base name of p. Symlinks are archived as links.
func (c *Container) CopyFrom(ctx context.Context, w io.Writer, p string) error {
	clean := path.Clean("/" + p)
	return c.mustRun(ctx, nil, w, "tar", "-c", "-f", "-", "-C", path.Dir(clean), path.Base(clean))
}

// Runs args and turns a non-zero exit into an error carrying stderr.
func (c *Container) mustRun(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	var stderr bytes.Buffer
	code, err := c.run(ctx, execRequest{
		args:   args,
		stdin:  stdin,
		stdout: stdout,
		stderr: &stderr,
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited with code %d: %s", ErrRuntime, args[0], code, strings.TrimSpace(stderr.String()))
	}
	return nil
}
