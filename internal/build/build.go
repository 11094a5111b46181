package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/kiln/internal/paths"
	"github.com/cruciblehq/kiln/internal/pipeline"
	"github.com/cruciblehq/kiln/internal/stage"
	"github.com/opencontainers/go-digest"
)

// File name of the image archive written to the output directory.
const ImageFilename = "image.tar"

// Controls pipeline execution.
type Options struct {
	Descriptor *pipeline.Descriptor // Pipeline to execute.
	Output     string               // Directory for the image archive.
	Platform   string               // Target platform; overrides the descriptor. Empty means the host.
	Version    string               // Version annotation for the image; optional.
	Scratch    string               // Host directory for the captured artifact; empty means the OS temp dir.
}

// Returned after successful pipeline execution.
type Result struct {
	Image    string        // Path of the image archive.
	Tag      string        // Tag recorded in the archive.
	Artifact digest.Digest // Digest of the packaged artifact.
	Size     int64         // Artifact size in bytes.
}

// Executes the pipeline described by opts.Descriptor.
//
// The build stage must complete successfully before the runtime stage is
// constructed. Any previous image archive in the output directory is removed
// first, so a failed run never leaves an older image looking current.
func Run(ctx context.Context, provider stage.Provider, opts Options) (*Result, error) {
	d := opts.Descriptor
	if err := d.Validate(); err != nil {
		return nil, err
	}

	platform := opts.Platform
	if platform == "" {
		platform = d.Runtime.Platform
	}

	slog.Info("executing pipeline",
		"name", d.Name,
		"source", d.Source,
		"output", opts.Output,
		"platform", platformLabel(platform),
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	archive := filepath.Join(opts.Output, ImageFilename)
	if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	p := &pipelineRun{
		provider: provider,
		desc:     d,
		platform: platform,
		scratch:  opts.Scratch,
		version:  opts.Version,
	}

	artifact, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	defer artifact.Remove()

	if err := p.pack(ctx, artifact, archive); err != nil {
		return nil, err
	}

	slog.Info("pipeline complete", "image", archive, "artifact", artifact.Digest)

	return &Result{
		Image:    archive,
		Tag:      d.Tag(),
		Artifact: artifact.Digest,
		Size:     artifact.Size,
	}, nil
}

// Returns a log label for a possibly empty platform.
func platformLabel(platform string) string {
	if platform == "" {
		return "host"
	}
	return platform
}
