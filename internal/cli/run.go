package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/containerd/platforms"
	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/cruciblehq/kiln/internal/image"
	"github.com/cruciblehq/kiln/internal/launch"
	"github.com/cruciblehq/kiln/internal/paths"
	"github.com/cruciblehq/kiln/internal/stage"
)

// Represents the 'kiln run' command.
type RunCmd struct {
	Image    string `arg:"" optional:"" type:"path" help:"Image archive. Defaults to the last image built for the descriptor." placeholder:"IMAGE"`
	Platform string `help:"Platform to run (e.g., linux/arm64). Empty means the host." placeholder:"PLATFORM"`
	Network  bool   `help:"Share the host network with the program."`
}

// Executes the run command.
//
// The program runs with no arguments and the caller's standard streams. A
// non-zero exit is returned as [ExitError].
func (c *RunCmd) Run(ctx context.Context) error {
	file := c.Image
	if file == "" {
		d, err := loadDescriptor("")
		if err != nil {
			return err
		}
		file = defaultImage(d)
	}

	code, err := runImage(ctx, file, c.Platform, c.Network)
	if err != nil {
		return err
	}
	return exitResult(code)
}

// Represents the 'kiln launch' command.
type LaunchCmd struct {
	BuildCmd `embed:""`
	Network bool `help:"Share the host network with the program."`
}

// Executes the launch command: build, then run the new image.
func (c *LaunchCmd) Run(ctx context.Context) error {
	res, err := c.build(ctx)
	if err != nil {
		return err
	}

	code, err := runImage(ctx, res.Image, c.Platform, c.Network)
	if err != nil {
		return err
	}
	return exitResult(code)
}

// Runs the image archive at file with the backend selected by the global
// flags.
func runImage(ctx context.Context, file, platform string, hostNetwork bool) (launch.ExitCode, error) {
	slog.Info("launching image", "image", file)

	if RootCmd.Local {
		if err := checkHostPlatform(platform); err != nil {
			return 0, err
		}
		prog, cleanup, err := localProgram(file, os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return 0, err
		}
		defer cleanup()
		return prog.Run(ctx)
	}

	rt, err := openRuntime()
	if err != nil {
		return 0, err
	}
	defer rt.Close()

	prog, err := rt.Program(ctx, file, "kiln-run-"+fmt.Sprint(os.Getpid()), platform)
	if err != nil {
		return 0, err
	}
	defer prog.Close(ctx)

	prog.Stdin, prog.Stdout, prog.Stderr = os.Stdin, os.Stdout, os.Stderr
	if hostNetwork {
		prog.Network = stage.NetworkHost
	}
	return prog.Run(ctx)
}

// Rejects a platform the host cannot run natively. Local launches execute the
// artifact directly, with no emulation.
func checkHostPlatform(platform string) error {
	if platform == "" {
		return nil
	}
	p, err := platforms.Parse(platform)
	if err != nil {
		return fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}
	if host := platforms.DefaultSpec(); !platforms.Only(host).Match(p) {
		return fmt.Errorf("%w: platform %s cannot run locally on %s", launch.ErrLaunch, platforms.Format(p), platforms.Format(host))
	}
	return nil
}

// Extracts the entry point of the image archive at file into a private
// temporary directory and returns a host process for it, along with a
// function removing the directory.
//
// Only images whose launch contract is a single executable with no arguments
// are accepted. The process environment is the image's.
func localProgram(file string, stdin io.Reader, stdout, stderr io.Writer) (*launch.Process, func(), error) {
	img, err := image.Read(file)
	if err != nil {
		return nil, nil, err
	}

	ep, err := image.Entrypoint(img)
	if err != nil {
		return nil, nil, err
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", image.ErrImage, err)
	}
	if len(ep) > 1 || len(cf.Config.Cmd) > 0 {
		return nil, nil, fmt.Errorf("%w: image passes arguments to %s", launch.ErrLaunch, ep[0])
	}

	dir, err := os.MkdirTemp("", "kiln-run-")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	dst := filepath.Join(dir, path.Base(ep[0]))
	if err := extractExecutable(img, ep[0], dst); err != nil {
		cleanup()
		return nil, nil, err
	}

	return &launch.Process{
		Path:   dst,
		Env:    cf.Config.Env,
		Dir:    dir,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, cleanup, nil
}

// Copies file out of img to dst, preserving its permission bits.
func extractExecutable(img v1.Image, file, dst string) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, paths.DefaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}

	mode, err := image.ExtractFile(img, file, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", launch.ErrLaunch, cerr)
	}
	if err != nil {
		return err
	}

	if err := os.Chmod(dst, mode.Perm()); err != nil {
		return fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}
	return nil
}
