// Package image assembles and reads runtime images.
//
// The runtime stage never runs a container: a minimal base image is resolved
// (a registry reference, an image archive, or an empty "scratch" filesystem),
// a single layer holding the artifact is appended, and the config entry point
// is set to the artifact with no arguments. The result is written as an image
// archive that docker, podman, and containerd can load.
//
// Example usage:
//
//	base, err := image.Base(ctx, "docker.io/library/debian:bookworm-slim", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//
//	img, err := image.Assemble(base, artifact, "/usr/local/bin/app", image.Options{Name: "app"})
//	if err != nil {
//	    return err
//	}
//
//	if err := image.Write("dist/image.tar", "app:latest", img); err != nil {
//	    return err
//	}
package image
