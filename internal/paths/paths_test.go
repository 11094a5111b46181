package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDescriptorPrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, DescriptorFile)
	if err := os.WriteFile(want, []byte("name = \"x\"\n"), DefaultFileMode); err != nil {
		t.Fatal(err)
	}

	if got := Descriptor(dir); got != want {
		t.Fatalf("Descriptor = %q, want %q", got, want)
	}
}

func TestDescriptorIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, DescriptorFile), DefaultDirMode); err != nil {
		t.Fatal(err)
	}

	if got := Descriptor(dir); got == filepath.Join(dir, DescriptorFile) {
		t.Fatalf("Descriptor returned a directory: %q", got)
	}
}

func TestImagesScopedByName(t *testing.T) {
	a := Images("pnps-utils")
	if filepath.Base(a) != "pnps-utils" {
		t.Fatalf("Images = %q, want pnps-utils leaf", a)
	}
	if !strings.Contains(a, appName) {
		t.Fatalf("Images = %q, want %q component", a, appName)
	}
}
