package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Name of the build stage in the rendered Dockerfile.
const buildStageName = "build"

// Renders the descriptor as an equivalent multi-stage Dockerfile.
//
// The output mirrors what kiln executes: a build stage compiling the source
// tree in an empty workdir, and a runtime stage receiving only the artifact
// with an exec-form entry point and no default arguments.
func (d *Descriptor) Dockerfile() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s: generated by kiln\n\n", d.Name)

	fmt.Fprintf(&sb, "FROM %s AS %s\n", d.Build.Image, buildStageName)
	fmt.Fprintf(&sb, "WORKDIR %s\n", d.Build.Workdir)
	for _, k := range slices.Sorted(maps.Keys(d.Build.Env)) {
		fmt.Fprintf(&sb, "ENV %s=%s\n", k, quote(d.Build.Env[k]))
	}
	sb.WriteString("COPY . .\n")
	if d.Build.Fetch != "" {
		fmt.Fprintf(&sb, "RUN %s\n", d.Build.Fetch)
	}
	if d.Build.Network == NetworkNone {
		fmt.Fprintf(&sb, "RUN --network=none %s\n\n", d.Build.Command)
	} else {
		fmt.Fprintf(&sb, "RUN %s\n\n", d.Build.Command)
	}

	if d.Runtime.Platform != "" {
		fmt.Fprintf(&sb, "FROM --platform=%s %s\n", d.Runtime.Platform, d.Runtime.Image)
	} else {
		fmt.Fprintf(&sb, "FROM %s\n", d.Runtime.Image)
	}
	for _, k := range slices.Sorted(maps.Keys(d.Runtime.Labels)) {
		fmt.Fprintf(&sb, "LABEL %s=%s\n", k, quote(d.Runtime.Labels[k]))
	}
	fmt.Fprintf(&sb, "COPY --from=%s %s %s\n", buildStageName, d.Artifact.SourceIn(d.Build.Workdir), d.Artifact.Destination)
	fmt.Fprintf(&sb, "ENTRYPOINT [%s]\n", quote(d.Artifact.Destination))

	return sb.String()
}

// Double-quotes s, escaping only backslashes and double quotes, which is all
// Dockerfile ENV and LABEL values and JSON-form arrays need.
func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Renders the patterns of a .dockerignore matching the build excludes.
func (d *Descriptor) Dockerignore() string {
	if len(d.Build.Exclude) == 0 {
		return ""
	}
	return strings.Join(d.Build.Exclude, "\n") + "\n"
}
