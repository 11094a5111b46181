package build

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

type fakeEntry struct{ dir bool }

func (e fakeEntry) Name() string               { return "" }
func (e fakeEntry) IsDir() bool                { return e.dir }
func (e fakeEntry) Type() os.FileMode          { return 0 }
func (e fakeEntry) Info() (os.FileInfo, error) { return nil, nil }

func TestExcludeFilter(t *testing.T) {
	skip, err := excludeFilter([]string{"target/**", ".git/**", "*.log"})
	if err != nil {
		t.Fatalf("excludeFilter() error: %v", err)
	}

	tests := []struct {
		rel  string
		dir  bool
		want bool
	}{
		{rel: "target", dir: true, want: true},
		{rel: "target/release/app", want: true},
		{rel: ".git", dir: true, want: true},
		{rel: "build.log", want: true},
		{rel: "logs/build.log", want: false},
		{rel: "src", dir: true, want: false},
		{rel: "src/target.rs", want: false},
		{rel: "Cargo.toml", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := skip(tt.rel, fakeEntry{dir: tt.dir}); got != tt.want {
				t.Fatalf("skip(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestExcludeFilterInvalidPattern(t *testing.T) {
	if _, err := excludeFilter([]string{"[unterminated"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func tarOf(t *testing.T, headers ...*tar.Header) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, h := range headers {
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if h.Size > 0 {
			tw.Write(bytes.Repeat([]byte("x"), int(h.Size)))
		}
	}
	tw.Close()
	return &buf
}

func TestCaptureSingle(t *testing.T) {
	r := tarOf(t, &tar.Header{Name: "app", Typeflag: tar.TypeReg, Mode: 0755, Size: 4})

	a, err := captureSingle(r, t.TempDir())
	if err != nil {
		t.Fatalf("captureSingle() error: %v", err)
	}
	defer a.Remove()

	if a.Name != "app" || a.Size != 4 {
		t.Fatalf("artifact = %+v, want name app size 4", a)
	}
	got, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "xxxx" {
		t.Fatalf("content = %q, want xxxx", got)
	}
}

func TestCaptureSingleRejects(t *testing.T) {
	tests := []struct {
		name    string
		headers []*tar.Header
	}{
		{
			name: "empty stream",
		},
		{
			name:    "directory",
			headers: []*tar.Header{{Name: "app/", Typeflag: tar.TypeDir, Mode: 0755}},
		},
		{
			name:    "symlink",
			headers: []*tar.Header{{Name: "app", Typeflag: tar.TypeSymlink, Linkname: "real", Mode: 0777}},
		},
		{
			name:    "not executable",
			headers: []*tar.Header{{Name: "app", Typeflag: tar.TypeReg, Mode: 0644, Size: 1}},
		},
		{
			name: "two files",
			headers: []*tar.Header{
				{Name: "app", Typeflag: tar.TypeReg, Mode: 0755, Size: 1},
				{Name: "extra", Typeflag: tar.TypeReg, Mode: 0755, Size: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratch := t.TempDir()
			if _, err := captureSingle(tarOf(t, tt.headers...), scratch); err == nil {
				t.Fatal("expected error, got nil")
			}

			leftovers, _ := filepath.Glob(filepath.Join(scratch, "*"))
			if len(leftovers) != 0 {
				t.Fatalf("scratch not cleaned up: %v", leftovers)
			}
		})
	}
}

func TestTail(t *testing.T) {
	if got := tail("a\nb\nc\n", 2); got != "b\nc" {
		t.Fatalf("tail = %q, want %q", got, "b\nc")
	}
	if got := tail("only", 5); got != "only" {
		t.Fatalf("tail = %q, want only", got)
	}
}
