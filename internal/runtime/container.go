package runtime

import (
	"context"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/kiln/internal/stage"
)

// A build environment backed by a containerd container.
//
// The container's task idles while the pipeline attaches processes to it;
// the filesystem lives in the container's own snapshot.
type Container struct {
	client   *containerd.Client
	id       string
	platform string        // OCI platform (e.g., "linux/amd64").
	network  stage.Network // Network mode of the container.
}

// Kills the container's task and deletes the container with its snapshot,
// taking every intermediate build product with it.
func (c *Container) Destroy(ctx context.Context) {
	if err := removeContainer(context.WithoutCancel(ctx), c.client, c.id); err != nil {
		slog.Warn("failed to destroy build container", "id", c.id, "error", err)
	}
}

// Creates the build container. Its process only sleeps; work arrives
// through execs.
func (c *Container) create(ctx context.Context, image containerd.Image) (containerd.Container, error) {
	return newContainer(ctx, c.client, c.id, image,
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithProcessArgs("sleep", "infinity"),
		withNetwork(c.network),
	)
}

// Starts the idle task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Creates container id on a fresh snapshot of image.
func newContainer(ctx context.Context, client *containerd.Client, id string, image containerd.Image, opts ...oci.SpecOpts) (containerd.Container, error) {
	return client.NewContainer(ctx, id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(opts...),
	)
}

// Returns the spec option for network. Host mode joins the host network
// namespace and copies its resolver configuration; any other mode leaves the
// container in the fresh namespace of the default spec, which has only
// loopback.
func withNetwork(network stage.Network) oci.SpecOpts {
	if network != stage.NetworkHost {
		return func(context.Context, oci.Client, *containers.Container, *oci.Spec) error { return nil }
	}
	return oci.Compose(
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
	)
}

// Kills the task of container id, if any, and deletes the container with its
// snapshot. A missing container is not an error.
func removeContainer(ctx context.Context, client *containerd.Client, id string) error {
	ctr, err := client.LoadContainer(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}
