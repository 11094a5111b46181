// Package launch runs the packaged artifact under the launch contract.
//
// The artifact is an opaque program: it is started directly, with an empty
// argument list and no shell in between, and the only thing observed is its
// termination status. A [Program] is anything that can do that, such as a
// host process ([Process]) or a containerized task. Run returns the program's
// exit code unchanged; an error is returned only when the program could not
// be started or waited for.
package launch
