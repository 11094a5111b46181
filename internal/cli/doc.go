// Parses flags, configures logging and runs kiln commands.
//
// Global flags:
//
//	-q, --quiet        Suppress informational output.
//	-v, --verbose      Enable verbose output.
//	-d, --debug        Enable debug output.
//	-f, --file         Pipeline descriptor (TOML).
//	    --local        Run the build stage on the host instead of containerd.
//	    --containerd   containerd socket address.
//	    --namespace    containerd namespace.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity
// before the command runs.
//
// Commands that launch a program report its exit status through [ExitError],
// so the process can exit with the same code.
package cli
