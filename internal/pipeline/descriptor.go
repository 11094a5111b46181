package pipeline

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Network mode of the build stage.
type Network string

const (
	NetworkHost Network = "host" // Build command shares the host network.
	NetworkNone Network = "none" // Build command runs in an empty network namespace.
)

// Special runtime base meaning an empty filesystem.
const Scratch = "scratch"

// Valid pipeline names double as image repository names.
var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

// Describes a complete build → isolate → run pipeline.
type Descriptor struct {
	Name     string   `toml:"name"`     // Pipeline name; also the image repository name.
	Source   string   `toml:"source"`   // Source tree on the host, relative to the descriptor.
	Build    Build    `toml:"build"`    // Build stage.
	Artifact Transfer `toml:"artifact"` // The single file crossing the stage boundary.
	Runtime  Runtime  `toml:"runtime"`  // Runtime stage.
}

// Describes the build stage.
type Build struct {
	Image   string            `toml:"image"`   // Toolchain image reference or OCI archive path.
	Workdir string            `toml:"workdir"` // Absolute path of the empty working area.
	Fetch   string            `toml:"fetch"`   // Dependency download command; runs with the host network before Command.
	Command string            `toml:"command"` // Release build command, passed to the shell.
	Shell   string            `toml:"shell"`   // Shell used to run Command.
	Env     map[string]string `toml:"env"`     // Environment for Command.
	Network Network           `toml:"network"` // Network mode of Command.
	Exclude []string          `toml:"exclude"` // Glob patterns never copied into the working area.
}

// Describes the runtime stage.
type Runtime struct {
	Image    string            `toml:"image"`    // Minimal base image, archive path, or "scratch".
	Platform string            `toml:"platform"` // Target platform; empty means the host platform.
	Labels   map[string]string `toml:"labels"`   // Extra labels for the image config.
}

// The fixed artifact path pair shared by both stages.
//
// Source is relative to the build workdir unless absolute. Destination is
// always absolute and is the runtime entry point.
type Transfer struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
}

// Returns the absolute artifact path inside the build stage.
func (t Transfer) SourceIn(workdir string) string {
	if path.IsAbs(t.Source) {
		return path.Clean(t.Source)
	}
	return path.Join(workdir, t.Source)
}

// Returns the process arguments of the runtime entry point.
//
// The artifact is executed directly with an empty argument list.
func (d *Descriptor) Entrypoint() []string {
	return []string{d.Artifact.Destination}
}

// Returns the image tag for the runtime image.
func (d *Descriptor) Tag() string {
	return d.Name + ":latest"
}

// Checks the descriptor for structural errors.
//
// All problems are reported together.
func (d *Descriptor) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !namePattern.MatchString(d.Name) {
		add("name %q must be lowercase alphanumerics separated by '.', '_' or '-'", d.Name)
	}
	if strings.TrimSpace(d.Build.Image) == "" {
		add("build.image is required")
	}
	if !path.IsAbs(d.Build.Workdir) {
		add("build.workdir %q must be absolute", d.Build.Workdir)
	} else if path.Clean(d.Build.Workdir) == "/" {
		add("build.workdir must not be the filesystem root")
	}
	if strings.TrimSpace(d.Build.Command) == "" {
		add("build.command is required")
	}
	if strings.TrimSpace(d.Build.Shell) == "" {
		add("build.shell is required")
	}
	switch d.Build.Network {
	case NetworkHost, NetworkNone:
	default:
		add("build.network %q must be %q or %q", d.Build.Network, NetworkHost, NetworkNone)
	}
	if d.Artifact.Source == "" || strings.HasSuffix(d.Artifact.Source, "/") {
		add("artifact.source %q must name a file", d.Artifact.Source)
	}
	if !path.IsAbs(d.Artifact.Destination) || strings.HasSuffix(d.Artifact.Destination, "/") {
		add("artifact.destination %q must be an absolute file path", d.Artifact.Destination)
	}
	if strings.TrimSpace(d.Runtime.Image) == "" {
		add("runtime.image is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDescriptor, strings.Join(problems, "; "))
	}
	return nil
}
