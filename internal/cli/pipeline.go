package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cruciblehq/kiln/internal/build"
	"github.com/cruciblehq/kiln/internal/paths"
	"github.com/cruciblehq/kiln/internal/pipeline"
	"github.com/cruciblehq/kiln/internal/sandbox"
	"github.com/cruciblehq/kiln/internal/stage"
)

// Loads the descriptor selected by --file, falling back to ./kiln.toml, the
// user descriptor and finally the built-in pipeline rooted at the working
// directory. A non-empty source overrides the descriptor's source tree.
func loadDescriptor(source string) (*pipeline.Descriptor, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", build.ErrFileSystemOperation, err)
	}

	file := RootCmd.File
	if file == "" {
		file = paths.Descriptor(cwd)
	}

	d, err := pipeline.Resolve(file, cwd)
	if err != nil {
		return nil, err
	}

	if source != "" {
		d.Source = source
	}
	return d, nil
}

// Returns the output directory for d, defaulting to the per-pipeline images
// directory.
func outputDir(d *pipeline.Descriptor, output string) string {
	if output != "" {
		return output
	}
	return paths.Images(d.Name)
}

// Returns the default image archive path for d.
func defaultImage(d *pipeline.Descriptor) string {
	return filepath.Join(paths.Images(d.Name), build.ImageFilename)
}

// Returns the build provider selected by the global flags and a function
// releasing it.
func openProvider() (stage.Provider, func(), error) {
	if RootCmd.Local {
		return sandbox.New(paths.Work()), func() {}, nil
	}

	rt, err := openRuntime()
	if err != nil {
		return nil, nil, err
	}
	return rt, func() { rt.Close() }, nil
}
