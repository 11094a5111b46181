package build

import (
	"maps"
	"slices"

	"github.com/cruciblehq/kiln/internal/pipeline"
)

// Default shell used for the build command when none is configured.
const defaultShell = "/bin/sh"

// Execution settings for the build command.
type stepState struct {
	shell   string
	workdir string
	env     map[string]string
}

// Creates a [stepState] from the build stage settings.
func newStepState(b pipeline.Build) *stepState {
	s := &stepState{
		shell:   b.Shell,
		workdir: b.Workdir,
		env:     make(map[string]string, len(b.Env)),
	}
	if s.shell == "" {
		s.shell = defaultShell
	}
	maps.Copy(s.env, b.Env)
	return s
}

// Formats the environment as sorted "key=value" strings, so repeated builds
// see the same environment order.
func (s *stepState) environ() []string {
	env := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		env = append(env, k+"="+s.env[k])
	}
	return env
}
