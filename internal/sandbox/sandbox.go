package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cruciblehq/kiln/internal/stage"
)

// Starts directory-backed build environments under a work root.
type Sandbox struct {
	root string // Directory under which environment directories are created.
}

// Creates a sandbox provider rooted at root. The directory is created on
// first use.
func New(root string) *Sandbox {
	return &Sandbox{root: root}
}

// Creates a fresh, empty environment directory.
//
// The requested image is ignored: the host toolchain is used. Each call yields a
// new directory, so nothing from an earlier build is ever visible.
func (s *Sandbox) Start(ctx context.Context, spec stage.Spec) (stage.Environment, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSandbox, err)
	}

	dir, err := os.MkdirTemp(s.root, sanitize(spec.ID)+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSandbox, err)
	}

	if spec.Network == stage.NetworkNone && !networkIsolationSupported {
		os.RemoveAll(dir)
		return nil, ErrNetworkUnsupported
	}

	slog.Debug("sandbox started", "id", spec.ID, "dir", dir)

	return &Dir{
		root:    dir,
		network: spec.Network,
	}, nil
}

// Replaces characters that are awkward in directory names.
func sanitize(id string) string {
	if id == "" {
		return "env"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator || r == ' ' {
			return '-'
		}
		return r
	}, id)
}
