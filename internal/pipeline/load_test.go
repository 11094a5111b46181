package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "kiln.toml")
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLoadInheritsDefaults(t *testing.T) {
	file := writeDescriptor(t, `
name = "hello"

[build]
command = "make release"

[build.env]
CGO_ENABLED = "0"

[artifact]
source      = "out/hello"
destination = "/usr/bin/hello"
`)

	d, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	def := Default()
	if d.Build.Image != def.Build.Image {
		t.Errorf("build.image = %q, want default %q", d.Build.Image, def.Build.Image)
	}
	if d.Build.Command != "make release" {
		t.Errorf("build.command = %q, want make release", d.Build.Command)
	}
	if d.Build.Env["CGO_ENABLED"] != "0" {
		t.Errorf("build.env = %v, want CGO_ENABLED=0", d.Build.Env)
	}
	if diff := cmp.Diff(def.Build.Exclude, d.Build.Exclude); diff != "" {
		t.Errorf("build.exclude mismatch (-want +got):\n%s", diff)
	}
	if d.Source != filepath.Dir(file) {
		t.Errorf("source = %q, want %q", d.Source, filepath.Dir(file))
	}
	if diff := cmp.Diff([]string{"/usr/bin/hello"}, d.Entrypoint()); diff != "" {
		t.Errorf("entrypoint mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	file := writeDescriptor(t, `
[artifact]
sourse = "target/release/app"
`)

	_, err := Load(file)
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Load() = %v, want ErrLoad", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	file := writeDescriptor(t, `
[artifact]
destination = "relative/path"
`)

	_, err := Load(file)
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("Load() = %v, want ErrInvalidDescriptor", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Load() = %v, want ErrLoad", err)
	}
}

func TestResolveDefault(t *testing.T) {
	dir := t.TempDir()
	d, err := Resolve("", dir)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if d.Source != dir {
		t.Fatalf("source = %q, want %q", d.Source, dir)
	}
	if d.Name != "pnps-utils" {
		t.Fatalf("name = %q, want pnps-utils", d.Name)
	}
}

func TestLoadFetchFollowsCommand(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantFetch string
		wantNet   Network
	}{
		{"default command keeps fetch", "name = \"a\"\n", Default().Build.Fetch, NetworkNone},
		{"custom command drops fetch", "name = \"a\"\n[build]\ncommand = \"make\"\n", "", NetworkNone},
		{"custom command with own fetch", "name = \"a\"\n[build]\ncommand = \"make\"\nfetch = \"make deps\"\n", "make deps", NetworkNone},
		{"host network opt-in", "name = \"a\"\n[build]\nnetwork = \"host\"\n", Default().Build.Fetch, NetworkHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Load(writeDescriptor(t, tt.content))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if d.Build.Fetch != tt.wantFetch {
				t.Errorf("build.fetch = %q, want %q", d.Build.Fetch, tt.wantFetch)
			}
			if d.Build.Network != tt.wantNet {
				t.Errorf("build.network = %q, want %q", d.Build.Network, tt.wantNet)
			}
		})
	}
}
