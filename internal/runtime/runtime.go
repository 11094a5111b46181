package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/distribution/reference"

	"github.com/cruciblehq/kiln/internal/stage"
)

const (

	// Snapshotter used for container filesystems. fuse-overlayfs provides
	// overlay semantics without mount(2), so kiln can run as a regular user.
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"

	// Default containerd socket address.
	DefaultAddress = "/run/containerd/containerd.sock"

	// Default containerd namespace for images and containers.
	DefaultNamespace = "kiln"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client *containerd.Client
}

// Creates a runtime connected to the containerd socket at address.
//
// The namespace scopes all containerd operations. The runtime must be closed
// when no longer needed.
func New(address, namespace string) (*Runtime, error) {
	if address == "" {
		address = DefaultAddress
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return &Runtime{client: client}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Starts a build container for spec.
//
// spec.Image is pulled from its registry, or imported when it is a path to an
// image archive, then unpacked for the target platform. A stale container
// with the same ID is removed first. The container runs "sleep infinity" so
// that exec requests have a running task to attach to. Building for a
// platform other than the host requires QEMU / binfmt_misc support.
func (rt *Runtime) Start(ctx context.Context, spec stage.Spec) (stage.Environment, error) {
	platform := spec.Platform
	if platform == "" {
		platform = defaultPlatform()
	}

	tag, err := rt.ensureImage(ctx, spec.Image, platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	c := &Container{
		client:   rt.client,
		id:       spec.ID,
		platform: platform,
		network:  spec.Network,
	}

	if err := removeContainer(ctx, rt.client, spec.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	ctr, err := c.create(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("container started", "id", spec.ID, "image", tag, "network", spec.Network)

	return c, nil
}

// Makes ref available in the image store, unpacked for platform, and returns
// the name it is stored under.
func (rt *Runtime) ensureImage(ctx context.Context, ref, platform string) (string, error) {
	if isArchive(ref) {
		tag := imageTag(ref)
		if err := rt.importAs(ctx, ref, tag, platform); err != nil {
			return "", err
		}
		return tag, nil
	}

	name, err := normalizeRef(ref)
	if err != nil {
		return "", err
	}

	slog.Info("pulling image", "ref", name, "platform", platform)

	_, err = rt.client.Pull(ctx, name,
		containerd.WithPlatform(platform),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(snapshotter),
	)
	if err != nil {
		return "", err
	}
	return name, nil
}

// Imports an image archive, tags it, and unpacks it for platform.
func (rt *Runtime) importAs(ctx context.Context, path, tag, platform string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return err
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return err
	}

	return rt.unpackImage(ctx, tag, platform)
}

// Imports an image archive into the content store.
//
// The archive must contain exactly one image. Multi-platform archives are
// supported (single index with per-platform manifests).
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	switch len(imported) {
	case 0:
		return images.Image{}, ErrEmptyArchive
	case 1:
		return imported[0], nil
	default:
		return images.Image{}, ErrMultipleImages
	}
}

// Tags an imported image under a deterministic name, replacing an existing
// tag. The source record is removed when its name differs from the tag.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Unpacks the image layers for the target platform into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, tag, platform string) error {
	image, err := rt.resolveImage(ctx, tag, platform)
	if err != nil {
		return err
	}

	return image.Unpack(ctx, snapshotter)
}

// Looks up a stored image and selects the manifest for platform.
func (rt *Runtime) resolveImage(ctx context.Context, tag, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Removes a stored image. Missing images are not an error.
func (rt *Runtime) removeImage(ctx context.Context, tag string) {
	if err := rt.client.ImageService().Delete(ctx, tag); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to remove image", "tag", tag, "error", err)
	}
}

// Reports whether ref names an image archive on the host.
func isArchive(ref string) bool {
	return strings.HasSuffix(ref, ".tar")
}

// Expands a short reference such as "rust:1" to its fully qualified form
// ("docker.io/library/rust:1"), as containerd requires.
func normalizeRef(ref string) (string, error) {
	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return "", err
	}
	return named.String(), nil
}

// Produces a store name for an archive path.
//
// The path is hashed so the name is a valid reference whatever characters the
// path contains.
func imageTag(path string) string {
	h := sha256.Sum256([]byte(path))
	return fmt.Sprintf("import/%s:latest", hex.EncodeToString(h[:]))
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
