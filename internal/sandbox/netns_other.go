//go:build !linux

package sandbox

import "os/exec"

const networkIsolationSupported = false

func isolateNetwork(cmd *exec.Cmd) {}
