package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/kiln/internal"
	"github.com/cruciblehq/kiln/internal/build"
)

// Represents the 'kiln build' command.
type BuildCmd struct {
	Source   string `type:"path" help:"Source tree. Overrides the descriptor." placeholder:"DIR"`
	Output   string `short:"o" type:"path" help:"Directory for the image archive." placeholder:"DIR"`
	Platform string `help:"Target platform (e.g., linux/arm64). Overrides the descriptor." placeholder:"PLATFORM"`
}

// Executes the build command.
//
// Prints the path of the image archive on success.
func (c *BuildCmd) Run(ctx context.Context) error {
	res, err := c.build(ctx)
	if err != nil {
		return err
	}
	fmt.Println(res.Image)
	return nil
}

// Runs the pipeline with the command's flags.
func (c *BuildCmd) build(ctx context.Context) (*build.Result, error) {
	d, err := loadDescriptor(c.Source)
	if err != nil {
		return nil, err
	}

	provider, release, err := openProvider()
	if err != nil {
		return nil, err
	}
	defer release()

	return build.Run(ctx, provider, build.Options{
		Descriptor: d,
		Output:     outputDir(d, c.Output),
		Platform:   c.Platform,
		Version:    imageVersion(),
	})
}

// Returns the version recorded on built images; local builds record none.
func imageVersion() string {
	if internal.IsLocal() {
		return ""
	}
	return internal.Version()
}
