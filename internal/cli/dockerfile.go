package cli

import (
	"context"
	"fmt"
)

// Represents the 'kiln dockerfile' command.
type DockerfileCmd struct {
	Ignore bool `help:"Print the matching .dockerignore instead."`
}

// Executes the dockerfile command.
func (c *DockerfileCmd) Run(ctx context.Context) error {
	d, err := loadDescriptor("")
	if err != nil {
		return err
	}

	if c.Ignore {
		fmt.Print(d.Dockerignore())
		return nil
	}
	fmt.Print(d.Dockerfile())
	return nil
}
