package build

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/gobwas/glob"

	"github.com/cruciblehq/kiln/internal/archive"
	"github.com/cruciblehq/kiln/internal/image"
	"github.com/cruciblehq/kiln/internal/stage"
)

// Copies the host source tree into workdir inside the environment.
//
// Paths matching any exclude pattern are skipped; a matching directory is
// skipped with everything below it.
func copySource(ctx context.Context, env stage.Environment, src, workdir string, exclude []string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: source tree: %w", ErrFileSystemOperation, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: source tree %s is not a directory", ErrFileSystemOperation, src)
	}

	skip, err := excludeFilter(exclude)
	if err != nil {
		return err
	}

	slog.Debug("copy source", "src", src, "dest", workdir, "exclude", exclude)

	pr, pw := io.Pipe()
	defer pr.Close()

	go func() {
		tw := tar.NewWriter(pw)
		writeErr := archive.WriteDir(tw, src, ".", skip)
		if closeErr := tw.Close(); writeErr == nil {
			writeErr = closeErr
		}
		pw.CloseWithError(writeErr)
	}()

	return env.CopyTo(ctx, pr, workdir)
}

// Streams src out of one environment and unpacks it into destDir of another.
func relay(ctx context.Context, from, to stage.Environment, src, destDir string) error {
	slog.Debug("relay", "src", src, "dest", destDir)

	pr, pw := io.Pipe()
	defer pr.Close()

	errc := make(chan error, 1)
	go func() {
		err := from.CopyFrom(ctx, pw, src)
		pw.CloseWithError(err)
		errc <- err
	}()

	if err := to.CopyTo(ctx, pr, destDir); err != nil {
		pr.CloseWithError(err)
		<-errc
		return err
	}

	io.Copy(io.Discard, pr)
	return <-errc
}

// Compiles exclude patterns into an [archive.Filter].
//
// Patterns use "/" as the separator, so "*" stays within one path segment
// and "**" crosses segments. A directory is also matched with a trailing
// slash, which lets "target/**" exclude the target directory itself.
func excludeFilter(patterns []string) (archive.Filter, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: exclude pattern %q: %w", ErrBuild, p, err)
		}
		globs = append(globs, g)
	}

	return func(rel string, d os.DirEntry) bool {
		for _, g := range globs {
			if g.Match(rel) || (d.IsDir() && g.Match(rel+"/")) {
				return true
			}
		}
		return false
	}, nil
}

// Streams the artifact at src out of the environment and captures it in
// scratch.
//
// The stream must hold exactly one entry: a regular file with at least one
// execute bit. Anything else fails with [ErrTransfer].
func transfer(ctx context.Context, env stage.Environment, src, scratch string) (*image.Artifact, error) {
	slog.Debug("transfer", "src", src)

	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		err := env.CopyFrom(ctx, pw, src)
		pw.CloseWithError(err)
		errc <- err
	}()

	artifact, err := captureSingle(pr, scratch)
	if err != nil {
		pr.CloseWithError(err)
		<-errc
		return nil, fmt.Errorf("%w: %s: %w", ErrTransfer, src, err)
	}

	// Drain trailing record padding so the writer can finish cleanly.
	io.Copy(io.Discard, pr)

	if err := <-errc; err != nil {
		artifact.Remove()
		return nil, fmt.Errorf("%w: %s: %w", ErrTransfer, src, err)
	}

	slog.Info("artifact transferred", "src", src, "size", artifact.Size, "digest", artifact.Digest)
	return artifact, nil
}

// Reads a tar stream holding exactly one executable regular file and
// captures the file.
func captureSingle(r io.Reader, scratch string) (*image.Artifact, error) {
	tr := tar.NewReader(r)

	hdr, err := tr.Next()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no file produced")
	}
	if err != nil {
		return nil, err
	}

	if hdr.Typeflag != tar.TypeReg {
		return nil, fmt.Errorf("%s is not a regular file", hdr.Name)
	}

	mode := hdr.FileInfo().Mode()
	if mode.Perm()&0111 == 0 {
		return nil, fmt.Errorf("%s is not executable (mode %v)", hdr.Name, mode.Perm())
	}

	artifact, err := image.Capture(tr, scratch, path.Base(hdr.Name), mode)
	if err != nil {
		return nil, err
	}

	if _, err := tr.Next(); !errors.Is(err, io.EOF) {
		artifact.Remove()
		return nil, errors.New("more than one file at the artifact path")
	}

	return artifact, nil
}
