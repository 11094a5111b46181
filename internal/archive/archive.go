// Package archive reads and writes the tar streams exchanged with build
// environments.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Reports whether a path relative to the archived root should be skipped.
// Skipping a directory skips everything below it.
type Filter func(rel string, d os.DirEntry) bool

// Writes a single file or symbolic link to a tar writer with the given
// archive name. Links are not followed.
func WriteFile(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Lstat(hostPath)
	if err != nil {
		return err
	}
	return writeEntry(tw, hostPath, name, fs.FileInfoToDirEntry(info))
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
//
// Entries for which skip returns true are left out. A nil filter keeps
// everything. Symbolic links are archived as links, not followed.
func WriteDir(tw *tar.Writer, hostDir, prefix string, skip Filter) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		if relPath != "." && skip != nil && skip(filepath.ToSlash(relPath), d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeEntry(tw, path, archivePath, d)
	})
}

// Writes a single file, directory or symlink entry to a tar writer.
func writeEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(hostPath); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = archivePath
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}

// Maps an archive entry name to a host path. Implementations must keep the
// result inside the extraction root.
type Resolver func(name string) (string, error)

// Extracts a tar stream, placing each entry at the path returned by resolve.
//
// Regular files, directories and symbolic links are supported; other entry
// types are rejected. Permission bits are preserved.
func Extract(r io.Reader, resolve Resolver) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(filepath.Clean("/"+hdr.Name), "/")
		if name == "" {
			continue
		}

		target, err := resolve(name)
		if err != nil {
			return err
		}

		if err := extractEntry(tr, hdr, target); err != nil {
			return err
		}
	}
}

// Creates a single extracted entry at target.
func extractEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0755); err != nil {
			return err
		}
		return os.Chmod(target, mode)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		return os.Chmod(target, mode)

	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)

	default:
		return fmt.Errorf("unsupported tar entry %q (type %c)", hdr.Name, hdr.Typeflag)
	}
}
