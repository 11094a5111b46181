package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"

	"github.com/cruciblehq/kiln/internal/launch"
	"github.com/cruciblehq/kiln/internal/stage"
)

// A runtime image launched as a containerd container.
//
// The container process is taken from the image config alone, so the image
// entrypoint runs with no arguments beyond those the image declares.
type Program struct {
	rt       *Runtime
	id       string // Container ID.
	tag      string // Store name of the imported image.
	platform string // OCI platform (e.g., "linux/amd64").

	Network stage.Network // Network mode; defaults to an isolated namespace.
	Stdin   io.Reader     // Standard input; nil means no input.
	Stdout  io.Writer     // Standard output; nil discards output.
	Stderr  io.Writer     // Standard error; nil discards output.
}

var _ launch.Program = (*Program)(nil)

// Imports the image archive at path and prepares it to run as container id.
//
// An empty platform selects the host platform. The imported image stays in
// the store until [Program.Close].
func (rt *Runtime) Program(ctx context.Context, path, id, platform string) (*Program, error) {
	if platform == "" {
		platform = defaultPlatform()
	}

	tag := imageTag(path)
	if err := rt.importAs(ctx, path, tag, platform); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return &Program{
		rt:       rt,
		id:       id,
		tag:      tag,
		platform: platform,
		Network:  stage.NetworkNone,
	}, nil
}

// Runs the container to completion and returns the exit status of its
// process.
//
// Failing to start the process is reported as [launch.ErrLaunch]. Cancelling
// ctx sends SIGTERM to the process and waits for it to exit. The container is
// deleted on return.
func (p *Program) Run(ctx context.Context) (launch.ExitCode, error) {
	image, err := p.rt.resolveImage(ctx, p.tag, p.platform)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := removeContainer(ctx, p.rt.client, p.id); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	ctr, err := newContainer(ctx, p.rt.client, p.id, image,
		oci.WithDefaultSpecForPlatform(p.platform),
		oci.WithImageConfig(image),
		withNetwork(p.Network),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer removeContainer(context.WithoutCancel(ctx), p.rt.client, p.id)

	in := attachStdin(p.Stdin)
	task, err := ctr.NewTask(ctx, cio.NewCreator(
		cio.WithStreams(in.reader, orDiscard(p.Stdout), orDiscard(p.Stderr)),
	))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}

	// The wait outlives ctx so a cancelled run still reports the real status.
	statusC, err := task.Wait(context.WithoutCancel(ctx))
	if err != nil {
		task.Delete(ctx)
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return 0, fmt.Errorf("%w: %w", launch.ErrLaunch, err)
	}

	slog.Debug("program started", "id", p.id, "pid", task.Pid())

	in.closeOnEOF(ctx, task)

	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		slog.Debug("terminating program", "id", p.id)
		task.Kill(context.WithoutCancel(ctx), syscall.SIGTERM)
		status = <-statusC
	}

	code, _, err := status.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	exitCode := launch.ExitCode(code)
	if err := exitCode.Validate(); err != nil {
		return 0, err
	}
	return exitCode, nil
}

// Removes the imported image from the store.
func (p *Program) Close(ctx context.Context) {
	p.rt.removeImage(context.WithoutCancel(ctx), p.tag)
}
