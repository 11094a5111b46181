package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cruciblehq/kiln/internal/stage"
)

func start(t *testing.T) *Dir {
	t.Helper()
	env, err := New(t.TempDir()).Start(context.Background(), stage.Spec{ID: "app/build", Network: stage.NetworkHost})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { env.Destroy(context.Background()) })
	return env.(*Dir)
}

func TestStartIsEmptyAndUnique(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	a, err := s.Start(ctx, stage.Spec{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy(ctx)
	b, err := s.Start(ctx, stage.Spec{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy(ctx)

	if a.(*Dir).Root() == b.(*Dir).Root() {
		t.Fatal("two environments share a root")
	}
	entries, err := os.ReadDir(a.(*Dir).Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("new environment has %d entries, want 0", len(entries))
	}
}

func TestExec(t *testing.T) {
	d := start(t)
	ctx := context.Background()

	if err := d.MkdirAll(ctx, "/work"); err != nil {
		t.Fatal(err)
	}

	res, err := d.Exec(ctx, "/bin/sh", `echo "$GREETING" > out.txt; echo oops >&2; exit 3`, []string{"GREETING=hi"}, "/work")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("Stderr = %q, want oops", res.Stderr)
	}

	got, err := os.ReadFile(filepath.Join(d.Root(), "work", "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(got)) != "hi" {
		t.Fatalf("out.txt = %q, want hi", got)
	}
}

func TestExecMissingShell(t *testing.T) {
	d := start(t)
	_, err := d.Exec(context.Background(), "/nonexistent/sh", "true", nil, "")
	if !errors.Is(err, ErrSandbox) {
		t.Fatalf("Exec() = %v, want ErrSandbox", err)
	}
}

func TestCopyRoundTrip(t *testing.T) {
	d := start(t)
	ctx := context.Background()

	var in bytes.Buffer
	tw := tar.NewWriter(&in)
	tw.WriteHeader(&tar.Header{Name: "bin/app", Typeflag: tar.TypeReg, Mode: 0755, Size: 5})
	tw.Write([]byte("hello"))
	tw.Close()

	if err := d.CopyTo(ctx, &in, "/opt"); err != nil {
		t.Fatalf("CopyTo() error: %v", err)
	}

	var out bytes.Buffer
	if err := d.CopyFrom(ctx, &out, "/opt/bin/app"); err != nil {
		t.Fatalf("CopyFrom() error: %v", err)
	}

	tr := tar.NewReader(&out)
	hdr, err := tr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Name != "app" {
		t.Fatalf("entry name = %q, want app", hdr.Name)
	}
	if mode := hdr.FileInfo().Mode().Perm(); mode != 0755 {
		t.Fatalf("entry mode = %v, want 0755", mode)
	}
}

func TestCopyToCannotEscape(t *testing.T) {
	d := start(t)
	outside := filepath.Dir(d.Root())

	var in bytes.Buffer
	tw := tar.NewWriter(&in)
	tw.WriteHeader(&tar.Header{Name: "../../escaped", Typeflag: tar.TypeReg, Mode: 0644, Size: 1})
	tw.Write([]byte("x"))
	tw.Close()

	if err := d.CopyTo(context.Background(), &in, "/"); err != nil {
		t.Fatalf("CopyTo() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "escaped")); err == nil {
		t.Fatal("tar entry escaped the environment root")
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "escaped")); err != nil {
		t.Fatalf("entry not confined to root: %v", err)
	}
}

func TestCopyFromMissing(t *testing.T) {
	d := start(t)
	err := d.CopyFrom(context.Background(), &bytes.Buffer{}, "/absent")
	if !errors.Is(err, ErrSandbox) {
		t.Fatalf("CopyFrom() = %v, want ErrSandbox", err)
	}
}

func TestRemoveAll(t *testing.T) {
	d := start(t)
	ctx := context.Background()

	if err := d.MkdirAll(ctx, "/src/nested"); err != nil {
		t.Fatal(err)
	}
	if err := d.RemoveAll(ctx, "/src"); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "src")); !os.IsNotExist(err) {
		t.Fatalf("src still exists: %v", err)
	}
	if err := d.RemoveAll(ctx, "/"); !errors.Is(err, ErrSandbox) {
		t.Fatalf("RemoveAll(/) = %v, want ErrSandbox", err)
	}
}

func TestDestroy(t *testing.T) {
	env, err := New(t.TempDir()).Start(context.Background(), stage.Spec{ID: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	root := env.(*Dir).Root()
	env.Destroy(context.Background())
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("root still exists after Destroy: %v", err)
	}
}

func TestSymlinkAddressedAsItself(t *testing.T) {
	d := start(t)
	ctx := context.Background()

	target := filepath.Join(d.Root(), "real")
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real", filepath.Join(d.Root(), "link")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := d.CopyFrom(ctx, &buf, "/link"); err != nil {
		t.Fatalf("CopyFrom() error: %v", err)
	}
	hdr, err := tar.NewReader(&buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Typeflag != tar.TypeSymlink || hdr.Linkname != "real" {
		t.Fatalf("entry = %q type %c -> %q, want symlink to real", hdr.Name, hdr.Typeflag, hdr.Linkname)
	}

	if err := d.RemoveAll(ctx, "/link"); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(d.Root(), "link")); !os.IsNotExist(err) {
		t.Fatalf("link still exists: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "keep")); err != nil {
		t.Fatalf("link target was removed: %v", err)
	}
}

func TestStartNetworkNone(t *testing.T) {
	env, err := New(t.TempDir()).Start(context.Background(), stage.Spec{ID: "offline", Network: stage.NetworkNone})
	if !networkIsolationSupported {
		if !errors.Is(err, ErrNetworkUnsupported) {
			t.Fatalf("Start() = %v, want ErrNetworkUnsupported", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer env.Destroy(context.Background())

	res, err := env.Exec(context.Background(), "/bin/sh", "sed -n '3,$p' /proc/net/dev | cut -d: -f1 | tr -d ' '", nil, "/")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr %q", res.ExitCode, res.Stderr)
	}
	if got := strings.Fields(res.Stdout); len(got) != 1 || got[0] != "lo" {
		t.Fatalf("interfaces = %v, want [lo]", got)
	}
}
