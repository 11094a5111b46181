package build

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cruciblehq/kiln/internal/pipeline"
)

func TestNewStepStateDefaults(t *testing.T) {
	s := newStepState(pipeline.Build{Workdir: "/src"})
	if s.shell != defaultShell {
		t.Fatalf("shell = %q, want %q", s.shell, defaultShell)
	}
	if s.workdir != "/src" {
		t.Fatalf("workdir = %q, want /src", s.workdir)
	}
	if len(s.environ()) != 0 {
		t.Fatalf("environ = %v, want empty", s.environ())
	}
}

func TestNewStepStateCopiesEnv(t *testing.T) {
	env := map[string]string{"A": "1"}
	s := newStepState(pipeline.Build{Shell: "/bin/bash", Env: env})
	env["A"] = "mutated"

	if s.shell != "/bin/bash" {
		t.Fatalf("shell = %q, want /bin/bash", s.shell)
	}
	if s.env["A"] != "1" {
		t.Fatalf("env[A] = %q, want 1 (isolated from caller)", s.env["A"])
	}
}

func TestEnvironSorted(t *testing.T) {
	s := newStepState(pipeline.Build{Env: map[string]string{
		"PATH":          "/usr/bin",
		"CARGO_HOME":    "/cargo",
		"RUSTFLAGS":     "-C target-cpu=native",
		"CARGO_PROFILE": "release",
	}})

	want := []string{
		"CARGO_HOME=/cargo",
		"CARGO_PROFILE=release",
		"PATH=/usr/bin",
		"RUSTFLAGS=-C target-cpu=native",
	}
	for range 3 {
		if diff := cmp.Diff(want, s.environ()); diff != "" {
			t.Fatalf("environ mismatch (-want +got):\n%s", diff)
		}
	}
}
