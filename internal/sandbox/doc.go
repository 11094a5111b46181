// Package sandbox runs build environments in private host directories.
//
// Each environment is a fresh directory under the work root that stands in
// for a container's root filesystem: environment paths such as
// "/usr/src/app" map to "<dir>/usr/src/app", and every mapping is confined to
// the directory, so tar entries and paths cannot escape it. Commands run on
// the host toolchain with the mapped working directory. On Linux, a build
// with network "none" runs in new user and network namespaces.
//
// The sandbox needs no daemon, which makes it the backend for hosts without
// containerd and for tests.
package sandbox
