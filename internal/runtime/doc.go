// Package runtime runs build environments and launches images on containerd.
//
// A [Runtime] connects to a containerd daemon. As a build provider it pulls
// (or imports from an archive) the toolchain image, unpacks it for the target
// platform, and starts a [Container] whose long-running task accepts exec
// requests: shell commands, directory operations, and tar streams copied in
// and out. Build containers get the host network unless isolation is
// requested, in which case they run in a fresh network namespace.
//
// As a launcher, [Runtime.Program] imports a runtime image archive and
// returns a [Program] that runs the image's entry point as the container's
// only process, with the caller's stdio attached, and reports its exit code.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "kiln")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	prog, err := rt.Program(ctx, "dist/image.tar", "app-run", "")
//	if err != nil {
//	    return err
//	}
//	defer prog.Close(ctx)
//
//	code, err := prog.Run(ctx)
package runtime
