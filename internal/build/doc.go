// Package build executes a two-stage pipeline: build, transfer, package.
//
// The build stage starts an environment from the toolchain image, recreates
// the working directory empty, copies the source tree into it (minus the
// descriptor's exclude patterns), removes any stale artifact, and runs the
// single build command. A non-zero exit aborts the pipeline.
//
// The transfer streams exactly one regular, executable file out of the build
// environment and captures it on the host. The build environment is then
// destroyed; intermediate build products never leave it.
//
// The runtime stage appends the captured artifact to the minimal base image
// at the fixed destination, sets it as the argument-less entry point,
// verifies the packaged bytes against the captured digest, and writes the
// image archive. Any failure before that point leaves no image behind.
//
// Environments are obtained from a [stage.Provider], so the same pipeline
// runs against containerd or a host sandbox.
//
// Example usage:
//
//	result, err := build.Run(ctx, provider, build.Options{
//	    Descriptor: desc,
//	    Output:     "dist",
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Image)
package build
