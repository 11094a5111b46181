package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestImageTag(t *testing.T) {
	tag := imageTag("/some/archive.tar")

	if !strings.HasPrefix(tag, "import/") {
		t.Fatalf("tag %q missing import/ prefix", tag)
	}
	if !strings.HasSuffix(tag, ":latest") {
		t.Fatalf("tag %q missing :latest suffix", tag)
	}

	if imageTag("/some/archive.tar") != tag {
		t.Fatal("imageTag is not deterministic")
	}

	if imageTag("/other/archive.tar") == tag {
		t.Fatal("different paths produced the same tag")
	}
}

func TestDefaultPlatform(t *testing.T) {
	p := defaultPlatform()
	if !strings.HasPrefix(p, "linux/") {
		t.Fatalf("defaultPlatform = %q, want linux/<arch>", p)
	}
	parts := strings.Split(p, "/")
	if len(parts) != 2 || parts[1] == "" {
		t.Fatalf("defaultPlatform = %q, want linux/<arch>", p)
	}
}

func TestIsArchive(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"rust:1", false},
		{"debian:bookworm-slim", false},
		{"./base.tar", true},
		{"/var/lib/kiln/base.tar", true},
		{"registry.example.com/tar", false},
	}

	for _, tt := range tests {
		if got := isArchive(tt.ref); got != tt.want {
			t.Errorf("isArchive(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"rust:1", "docker.io/library/rust:1"},
		{"debian:bookworm-slim", "docker.io/library/debian:bookworm-slim"},
		{"alpine", "docker.io/library/alpine:latest"},
		{"ghcr.io/acme/builder:2", "ghcr.io/acme/builder:2"},
	}

	for _, tt := range tests {
		got, err := normalizeRef(tt.ref)
		if err != nil {
			t.Fatalf("normalizeRef(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("normalizeRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestNormalizeRefInvalid(t *testing.T) {
	if _, err := normalizeRef("UPPER/Case:tag"); err == nil {
		t.Fatal("expected error for invalid reference")
	}
}

func TestRemoveAllRefusesRoot(t *testing.T) {
	c := &Container{id: "test"}
	for _, p := range []string{"/", "", "/./"} {
		if err := c.RemoveAll(context.Background(), p); !errors.Is(err, ErrRuntime) {
			t.Errorf("RemoveAll(%q) error = %v, want ErrRuntime", p, err)
		}
	}
}
