// Package pipeline describes a two-stage build → isolate → run pipeline.
//
// A [Descriptor] names a build stage (toolchain image, workdir, a single
// release build command), the [Transfer] of exactly one artifact across the
// stage boundary, and a runtime stage (minimal base image). The transfer
// paths are fixed constants of the descriptor, never discovered at runtime,
// and the runtime entry point is always the transfer destination with no
// arguments.
//
// Descriptors are read from TOML:
//
//	name = "pnps-utils"
//
//	[build]
//	image   = "docker.io/library/rust:1"
//	workdir = "/usr/src/pnps-utils"
//	command = "cargo build --release"
//	exclude = ["target/**", ".git/**"]
//
//	[artifact]
//	source      = "target/release/pnps-utils"
//	destination = "/usr/local/bin/pnps-utils"
//
//	[runtime]
//	image = "docker.io/library/debian:bookworm-slim"
//
// Omitted fields take their values from [Default].
package pipeline
