package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/kiln/internal/stage"
)

// Last exec process number handed out by nextExecID.
var execSeq atomic.Uint64

// Returns a process ID unique within this kiln process.
func nextExecID() string {
	return "exec-" + strconv.FormatUint(execSeq.Add(1), 10)
}

// One process to run inside the build container's task.
type execRequest struct {
	args    []string  // Process argv.
	env     []string  // Overrides merged onto the container environment.
	workdir string    // Working directory; empty keeps the container's.
	stdin   io.Reader // Nil means no stdin.
	stdout  io.Writer // Nil discards.
	stderr  io.Writer // Nil discards.
}

// Runs "shell -c command" inside the container.
//
// env and workdir apply to this process only. A non-zero exit code is
// reported in the result, not as an error.
func (c *Container) Exec(ctx context.Context, shell, command string, env []string, workdir string) (*stage.ExecResult, error) {
	var stdout, stderr bytes.Buffer
	code, err := c.run(ctx, execRequest{
		args:    []string{shell, "-c", command},
		env:     env,
		workdir: workdir,
		stdout:  &stdout,
		stderr:  &stderr,
	})
	if err != nil {
		return nil, err
	}

	return &stage.ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Runs req as an additional process of the container's task and returns its
// exit code.
func (c *Container) run(ctx context.Context, req execRequest) (int, error) {
	task, pspec, err := c.prepareExec(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	in := attachStdin(req.stdin)
	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(
		cio.WithStreams(in.reader, orDiscard(req.stdout), orDiscard(req.stderr)),
	))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer process.Delete(context.WithoutCancel(ctx))

	statusC, err := process.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	if err := process.Start(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	in.closeOnEOF(ctx, process)

	code, _, err := (<-statusC).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return int(code), nil
}

// Loads the running task and derives the process spec for req from the
// container's own spec.
func (c *Container) prepareExec(ctx context.Context, req execRequest) (containerd.Task, *specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, nil, err
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = req.args
	if len(req.env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, req.env)
	}
	if req.workdir != "" {
		pspec.Cwd = req.workdir
	}

	return task, &pspec, nil
}

// Layers overrides onto base and returns the result sorted by key. Entries
// without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	vars := make(map[string]string, len(base)+len(overrides))
	for _, list := range [][]string{base, overrides} {
		for _, entry := range list {
			if k, v, ok := strings.Cut(entry, "="); ok {
				vars[k] = v
			}
		}
	}

	env := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, k+"="+vars[k])
	}
	return env
}

// Returns w, or a writer discarding everything when w is nil.
func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// Stdin of a containerd process.
//
// The shim keeps both ends of the stdin FIFO open, so the process never sees
// EOF on its own; the IO has to be closed once the caller's reader is
// drained.
type stdinAttachment struct {
	reader io.Reader       // Reader handed to cio; nil when there is no stdin.
	done   <-chan struct{} // Closed when reader reaches EOF.
}

func attachStdin(r io.Reader) stdinAttachment {
	if r == nil {
		return stdinAttachment{}
	}
	dr := newDoneReader(r)
	return stdinAttachment{reader: dr, done: dr.done}
}

// Closes the process stdin after the reader reaches EOF. No-op without stdin.
func (s stdinAttachment) closeOnEOF(ctx context.Context, p containerd.Process) {
	if s.done == nil {
		return
	}
	go func() {
		select {
		case <-s.done:
			p.CloseIO(ctx, containerd.WithStdinCloser)
		case <-ctx.Done():
		}
	}()
}
