package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func listTar(t *testing.T, b []byte) []string {
	t.Helper()
	var names []string
	tr := tar.NewReader(bytes.NewReader(b))
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []string{"Cargo.toml", "src/main.rs", "target/release/app", ".git/HEAD"} {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestWriteDirFilter(t *testing.T) {
	dir := makeTree(t)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	skip := func(rel string, d os.DirEntry) bool {
		return rel == "target" || rel == ".git"
	}
	if err := WriteDir(tw, dir, "src-root", skip); err != nil {
		t.Fatalf("WriteDir() error: %v", err)
	}
	tw.Close()

	want := []string{
		"src-root/",
		"src-root/Cargo.toml",
		"src-root/src/",
		"src-root/src/main.rs",
	}
	if diff := cmp.Diff(want, listTar(t, buf.Bytes())); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	dir := makeTree(t)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := WriteFile(tw, filepath.Join(dir, "Cargo.toml"), "renamed"); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	tw.Close()

	if diff := cmp.Diff([]string{"renamed"}, listTar(t, buf.Bytes())); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRoundTrip(t *testing.T) {
	src := makeTree(t)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := WriteDir(tw, src, "tree", nil); err != nil {
		t.Fatal(err)
	}
	tw.Close()

	dest := t.TempDir()
	err := Extract(&buf, func(name string) (string, error) {
		return filepath.Join(dest, name), nil
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "tree", "src", "main.rs"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "src/main.rs" {
		t.Fatalf("content = %q, want src/main.rs", got)
	}
}

func TestExtractRejectsDevices(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	tw.WriteHeader(&tar.Header{Name: "dev/null", Typeflag: tar.TypeChar, Mode: 0666})
	tw.Close()

	dest := t.TempDir()
	err := Extract(&buf, func(name string) (string, error) {
		return filepath.Join(dest, name), nil
	})
	if err == nil {
		t.Fatal("expected error for device entry, got nil")
	}
}
