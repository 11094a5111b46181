package image

import (
	"io"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
)

// A captured build artifact on the host filesystem.
type Artifact struct {
	Path   string        // Host path of the captured file.
	Name   string        // Base name of the artifact in the build stage.
	Size   int64         // Size in bytes.
	Mode   os.FileMode   // Permission bits recorded in the build stage.
	Digest digest.Digest // Content digest, fixed at capture time.
}

// Writes r to a new file in dir and records its size and digest.
//
// The file is created with mode 0700 so that only the current user can read
// or execute it before it is packaged.
func Capture(r io.Reader, dir, name string, mode os.FileMode) (*Artifact, error) {
	f, err := os.CreateTemp(dir, "artifact-*")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Chmod(0700); err != nil {
		return nil, err
	}

	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(f, digester.Hash()), r)
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}

	return &Artifact{
		Path:   f.Name(),
		Name:   name,
		Size:   n,
		Mode:   mode.Perm(),
		Digest: digester.Digest(),
	}, nil
}

// Removes the captured file and any layer archive derived from it.
func (a *Artifact) Remove() error {
	os.Remove(a.Path + ".layer.tar")
	return os.Remove(a.Path)
}

// Fixed modification time used for layer entries, so repeated packaging of
// the same artifact produces the same layer.
var layerEpoch = time.Unix(0, 0).UTC()
