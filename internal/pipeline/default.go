package pipeline

import "maps"

// Returns the built-in pipeline for the pnps-utils binary.
//
// Crates are fetched into the working area with the network available, then
// the Rust toolchain compiles the crate in release mode offline, in an empty
// network namespace. Only the resulting executable is placed into a slim
// Debian base.
func Default() *Descriptor {
	return &Descriptor{
		Name:   "pnps-utils",
		Source: ".",
		Build: Build{
			Image:   "docker.io/library/rust:1",
			Workdir: "/usr/src/pnps-utils",
			Fetch:   "cargo fetch",
			Command: "cargo build --release --offline",
			Shell:   "/bin/sh",
			Env:     map[string]string{"CARGO_HOME": "/usr/src/pnps-utils/.cargo"},
			Network: NetworkNone,
			Exclude: []string{"target/**", ".git/**"},
		},
		Artifact: Transfer{
			Source:      "target/release/pnps-utils",
			Destination: "/usr/local/bin/pnps-utils",
		},
		Runtime: Runtime{
			Image:  "docker.io/library/debian:bookworm-slim",
			Labels: map[string]string{},
		},
	}
}

// Fills empty fields of d from base. Maps are merged with d taking priority.
func (d *Descriptor) inherit(base *Descriptor) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}

	fill(&d.Name, base.Name)
	fill(&d.Source, base.Source)
	fill(&d.Build.Image, base.Build.Image)
	fill(&d.Build.Workdir, base.Build.Workdir)
	// The fetch step belongs to the default command; a custom command does
	// not inherit it.
	if d.Build.Command == "" {
		d.Build.Command = base.Build.Command
		fill(&d.Build.Fetch, base.Build.Fetch)
	}
	fill(&d.Build.Shell, base.Build.Shell)
	fill(&d.Artifact.Source, base.Artifact.Source)
	fill(&d.Artifact.Destination, base.Artifact.Destination)
	fill(&d.Runtime.Image, base.Runtime.Image)
	fill(&d.Runtime.Platform, base.Runtime.Platform)

	if d.Build.Network == "" {
		d.Build.Network = base.Build.Network
	}
	if d.Build.Exclude == nil {
		d.Build.Exclude = append([]string(nil), base.Build.Exclude...)
	}

	d.Build.Env = overlay(base.Build.Env, d.Build.Env)
	d.Runtime.Labels = overlay(base.Runtime.Labels, d.Runtime.Labels)
}

// Returns a new map with top copied over base.
func overlay(base, top map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(top))
	maps.Copy(out, base)
	maps.Copy(out, top)
	return out
}
