package image

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/opencontainers/go-digest"
)

// Writes img to an image archive at file, tagged as tag.
//
// The file is written to a temporary name and renamed into place, so an
// interrupted write never leaves a truncated archive at file.
func Write(file, tag string, img v1.Image) error {
	t, err := name.NewTag(tag)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImage, err)
	}

	tmp := file + ".partial"
	if err := tarball.WriteToFile(tmp, t, img); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrImage, err)
	}

	if err := os.Rename(tmp, file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrImage, err)
	}
	return nil
}

// Reads the single image stored in an image archive.
func Read(file string) (v1.Image, error) {
	img, err := tarball.ImageFromPath(file, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	return img, nil
}

// Returns the entry point of img. Images without one are rejected, since the
// launch contract has no fallback command.
func Entrypoint(img v1.Image) ([]string, error) {
	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	if len(cf.Config.Entrypoint) == 0 || cf.Config.Entrypoint[0] == "" {
		return nil, ErrNoEntrypoint
	}
	return cf.Config.Entrypoint, nil
}

// Copies the regular file at file from the flattened image filesystem to w
// and returns its mode.
func ExtractFile(img v1.Image, file string, w io.Writer) (os.FileMode, error) {
	rc := mutate.Extract(img)
	defer rc.Close()

	want := strings.TrimPrefix(path.Clean("/"+file), "/")
	tr := tar.NewReader(rc)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrImage, err)
		}

		if strings.TrimPrefix(path.Clean("/"+hdr.Name), "/") != want {
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			return 0, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, file)
		}
		if _, err := io.Copy(w, tr); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrImage, err)
		}
		return hdr.FileInfo().Mode(), nil
	}
}

// Checks that the file at dest inside img has the digest want.
func Verify(img v1.Image, dest string, want digest.Digest) error {
	digester := want.Algorithm().Digester()
	if _, err := ExtractFile(img, dest, digester.Hash()); err != nil {
		return err
	}
	if got := digester.Digest(); got != want {
		return fmt.Errorf("%w: %s has digest %s, want %s", ErrModified, dest, got, want)
	}
	return nil
}
