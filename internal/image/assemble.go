package image

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/kiln/internal/paths"
)

// Base reference meaning an empty filesystem.
const scratch = "scratch"

// Metadata applied to an assembled image.
type Options struct {
	Name     string            // Image title annotation.
	Version  string            // Version annotation; omitted when empty.
	Platform string            // Platform for a scratch base; empty means the host.
	Labels   map[string]string // Labels merged into the image config.
	Created  time.Time         // Creation time; zero means now.
}

// Resolves the base image of the runtime stage.
//
// ref is "scratch" for an empty filesystem, a path ending in ".tar" for an
// image archive, or a registry reference pulled for platform using the
// default keychain.
func Base(ctx context.Context, ref, platform string) (v1.Image, error) {
	switch {
	case ref == scratch:
		return empty.Image, nil

	case strings.HasSuffix(ref, ".tar"):
		img, err := tarball.ImageFromPath(ref, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImage, err)
		}
		return img, nil
	}

	r, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}

	p, err := parsePlatform(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}

	img, err := remote.Image(r,
		remote.WithContext(ctx),
		remote.WithPlatform(*p),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pull %s: %w", ErrImage, ref, err)
	}
	return img, nil
}

// Appends the artifact to base at dest and sets dest as the entry point.
//
// The artifact is written into one new layer with [paths.ExecutableMode],
// together with its parent directories. Cmd is cleared so the entry point
// receives no arguments, and any entry point inherited from the base is
// replaced.
//
// The OCI title, version and created annotations are set on the manifest and
// repeated as config labels, since docker-style image archives keep only the
// config.
func Assemble(base v1.Image, a *Artifact, dest string, opts Options) (v1.Image, error) {
	layer, err := artifactLayer(a, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}

	img, err := mutate.Append(base, mutate.Addendum{
		Layer: layer,
		History: v1.History{
			CreatedBy: fmt.Sprintf("COPY %s %s", a.Name, dest),
			Comment:   "kiln artifact " + a.Digest.String(),
			Created:   v1.Time{Time: layerEpoch},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	cf = cf.DeepCopy()

	created := opts.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}

	cf.Created = v1.Time{Time: created}
	cf.Config.Entrypoint = []string{dest}
	cf.Config.Cmd = nil
	if cf.Config.Labels == nil {
		cf.Config.Labels = map[string]string{}
	}
	annotations := map[string]string{
		ocispec.AnnotationTitle:   opts.Name,
		ocispec.AnnotationCreated: created.Format(time.RFC3339),
	}
	if opts.Version != "" {
		annotations[ocispec.AnnotationVersion] = opts.Version
	}
	maps.Copy(cf.Config.Labels, opts.Labels)
	maps.Copy(cf.Config.Labels, annotations)

	if cf.OS == "" || cf.Architecture == "" {
		p, err := parsePlatform(opts.Platform)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImage, err)
		}
		cf.OS, cf.Architecture, cf.Variant = p.OS, p.Architecture, p.Variant
	}

	img, err = mutate.ConfigFile(img, cf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}

	return mutate.Annotations(img, annotations).(v1.Image), nil
}

// Writes a layer archive holding the artifact at dest next to the captured
// file and returns it as a layer.
func artifactLayer(a *Artifact, dest string) (v1.Layer, error) {
	layerPath := a.Path + ".layer.tar"

	f, err := os.Create(layerPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	if err := writeParents(tw, dest); err != nil {
		return nil, err
	}
	if err := writeArtifact(tw, a, dest); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	return tarball.LayerFromFile(layerPath)
}

// Writes directory entries for every parent of dest, outermost first.
func writeParents(tw *tar.Writer, dest string) error {
	var dirs []string
	for dir := path.Dir(dest); dir != "/" && dir != "."; dir = path.Dir(dir) {
		dirs = append([]string{dir}, dirs...)
	}

	for _, dir := range dirs {
		err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     strings.TrimPrefix(dir, "/") + "/",
			Mode:     int64(paths.DefaultDirMode),
			ModTime:  layerEpoch,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Writes the artifact file entry.
func writeArtifact(tw *tar.Writer, a *Artifact, dest string) error {
	src, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	err = tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     strings.TrimPrefix(dest, "/"),
		Mode:     int64(paths.ExecutableMode),
		Size:     a.Size,
		ModTime:  layerEpoch,
	})
	if err != nil {
		return err
	}

	_, err = io.Copy(tw, src)
	return err
}

// Parses an OCI platform string, defaulting to the host.
func parsePlatform(s string) (*v1.Platform, error) {
	if s == "" {
		s = runtime.GOOS + "/" + runtime.GOARCH
	}
	return v1.ParsePlatform(s)
}
