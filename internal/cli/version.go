package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/kiln/internal"
)

// Represents the 'kiln version' command.
type VersionCmd struct {
	Short bool `help:"Print only the version number."`
}

// Prints "kiln <version string>", or the bare version with --short.
func (c *VersionCmd) Run(ctx context.Context) error {
	if c.Short {
		fmt.Println(internal.Version())
		return nil
	}
	fmt.Println(internal.Name, internal.VersionString())
	return nil
}
