package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/cruciblehq/kiln/internal/image"
	"github.com/cruciblehq/kiln/internal/pipeline"
	"github.com/cruciblehq/kiln/internal/stage"
)

// Number of trailing stderr lines included in a build failure.
const stderrTailLines = 20

// Holds shared state for one pipeline execution.
type pipelineRun struct {
	provider stage.Provider       // Source of build environments.
	desc     *pipeline.Descriptor // Pipeline being executed.
	platform string               // Target platform; empty means the host.
	scratch  string               // Host directory for the captured artifact.
	version  string               // Version annotation.
}

// Runs the build stage and transfers the artifact out of it.
//
// The build environment is destroyed before returning, whether or not the
// build succeeded.
func (p *pipelineRun) build(ctx context.Context) (*image.Artifact, error) {
	b := p.desc.Build
	slog.Info("building", "image", b.Image, "command", b.Command, "network", b.Network)

	env, err := p.start(ctx, "build", stage.Network(b.Network))
	if err != nil {
		return nil, err
	}
	defer env.Destroy(ctx)

	if err := p.prepare(ctx, env); err != nil {
		if !errors.Is(err, ErrBuild) {
			err = fmt.Errorf("%w: %w", ErrBuild, err)
		}
		return nil, err
	}

	if err := p.exec(ctx, env, "build", b.Command); err != nil {
		return nil, err
	}

	return transfer(ctx, env, p.desc.Artifact.SourceIn(b.Workdir), p.scratch)
}

// Starts an environment for the named step.
func (p *pipelineRun) start(ctx context.Context, step string, network stage.Network) (stage.Environment, error) {
	env, err := p.provider.Start(ctx, stage.Spec{
		ID:       p.desc.Name + "-" + step,
		Image:    p.desc.Build.Image,
		Platform: p.platform,
		Network:  network,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	return env, nil
}

// Recreates the working directory empty, fills it, and removes anything
// already present at the artifact path.
//
// Without a fetch step the working area receives the source tree. With one,
// it receives the working area of the fetch environment instead.
func (p *pipelineRun) prepare(ctx context.Context, env stage.Environment) error {
	fill := p.populate
	if p.desc.Build.Fetch != "" {
		fill = p.fetchInto
	}
	if err := fill(ctx, env); err != nil {
		return err
	}
	return env.RemoveAll(ctx, p.desc.Artifact.SourceIn(p.desc.Build.Workdir))
}

// Recreates the working directory empty and copies the source tree into it.
func (p *pipelineRun) populate(ctx context.Context, env stage.Environment) error {
	workdir := p.desc.Build.Workdir

	if err := env.RemoveAll(ctx, workdir); err != nil {
		return err
	}
	if err := env.MkdirAll(ctx, workdir); err != nil {
		return err
	}

	return copySource(ctx, env, p.desc.Source, workdir, p.desc.Build.Exclude)
}

// Runs the fetch command in a separate environment with the host network and
// relays the resulting working area into env in place of the source tree.
//
// Only downloads happen with the network available; env itself keeps its own
// network mode for the build command.
func (p *pipelineRun) fetchInto(ctx context.Context, env stage.Environment) error {
	b := p.desc.Build
	slog.Info("fetching dependencies", "command", b.Fetch)

	fetchEnv, err := p.start(ctx, "fetch", stage.NetworkHost)
	if err != nil {
		return err
	}
	defer fetchEnv.Destroy(ctx)

	if err := p.populate(ctx, fetchEnv); err != nil {
		return err
	}
	if err := p.exec(ctx, fetchEnv, "fetch", b.Fetch); err != nil {
		return err
	}

	if err := env.RemoveAll(ctx, b.Workdir); err != nil {
		return err
	}
	if err := env.MkdirAll(ctx, path.Dir(b.Workdir)); err != nil {
		return err
	}
	return relay(ctx, fetchEnv, env, b.Workdir, path.Dir(b.Workdir))
}

// Runs command as the named step and fails on a non-zero exit code.
func (p *pipelineRun) exec(ctx context.Context, env stage.Environment, step, command string) error {
	state := newStepState(p.desc.Build)

	slog.Debug("run", "step", step, "command", command, "shell", state.shell, "workdir", state.workdir)

	result, err := env.Exec(ctx, state.shell, command, state.environ(), state.workdir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuild, step, err)
	}

	if result.Stdout != "" {
		slog.Debug("step output", "step", step, "stdout", result.Stdout)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s: exit code %d: %s", ErrBuild, step, result.ExitCode, tail(result.Stderr, stderrTailLines))
	}
	return nil
}

// Builds the runtime image from the artifact and writes it to archive.
func (p *pipelineRun) pack(ctx context.Context, artifact *image.Artifact, archive string) error {
	rt := p.desc.Runtime
	dest := p.desc.Artifact.Destination

	slog.Info("packaging", "base", rt.Image, "destination", dest)

	base, err := image.Base(ctx, rt.Image, p.platform)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPackage, err)
	}

	img, err := image.Assemble(base, artifact, dest, image.Options{
		Name:     p.desc.Name,
		Version:  p.version,
		Platform: p.platform,
		Labels:   rt.Labels,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPackage, err)
	}

	if err := image.Verify(img, dest, artifact.Digest); err != nil {
		return fmt.Errorf("%w: %w", ErrPackage, err)
	}

	ep, err := image.Entrypoint(img)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPackage, err)
	}
	if want := p.desc.Entrypoint(); !slices.Equal(ep, want) {
		return fmt.Errorf("%w: entry point is %q, want %q", ErrPackage, ep, want)
	}

	if err := image.Write(archive, p.desc.Tag(), img); err != nil {
		return fmt.Errorf("%w: %w", ErrPackage, err)
	}
	return nil
}

// Returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
