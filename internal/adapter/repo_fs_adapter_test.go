package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

func TestAtomicWrite(t *testing.T) {
	fs := NewLocalRepoFSAdapter()

	t.Run("writes content with requested permissions", func(t *testing.T) {
		dir := t.TempDir()
		path := m.Path(filepath.Join(dir, "out.txt"))

		if err := fs.AtomicWrite(path, []byte("hello"), 0o600); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		content, err := os.ReadFile(string(path))
		if err != nil {
			t.Fatalf("read back failed: %v", err)
		}

		if string(content) != "hello" {
			t.Errorf("content = %q, want %q", content, "hello")
		}

		info, err := os.Stat(string(path))
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}

		if info.Mode().Perm() != 0o600 {
			t.Errorf("perm = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		dir := t.TempDir()
		path := m.Path(filepath.Join(dir, "a", "b", "out.txt"))

		if err := fs.AtomicWrite(path, []byte("nested"), 0o644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		if _, err := os.Stat(string(path)); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		path := m.Path(filepath.Join(dir, "out.txt"))

		if err := fs.AtomicWrite(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("readdir failed: %v", err)
		}

		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".ctxprobe-tmp-") {
				t.Errorf("temp file left behind: %s", entry.Name())
			}
		}
	})

	t.Run("interrupted write leaves the target untouched", func(t *testing.T) {
		dir := t.TempDir()
		path := m.Path(filepath.Join(dir, "out.txt"))

		if err := fs.AtomicWrite(path, []byte("pristine"), 0o644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		// A process dying between the temp-file write and the rename leaves
		// only the temp file behind; the target must still read pristine.
		stray := filepath.Join(dir, ".ctxprobe-tmp-123")
		if err := os.WriteFile(stray, []byte("half-written"), 0o644); err != nil {
			t.Fatalf("write stray temp: %v", err)
		}

		content, err := os.ReadFile(string(path))
		if err != nil {
			t.Fatalf("read back failed: %v", err)
		}

		if string(content) != "pristine" {
			t.Errorf("content = %q, want %q", content, "pristine")
		}

		if err := fs.AtomicWrite(path, []byte("next"), 0o644); err != nil {
			t.Errorf("write after interruption failed: %v", err)
		}
	})

	t.Run("replaces existing content", func(t *testing.T) {
		dir := t.TempDir()
		path := m.Path(filepath.Join(dir, "out.txt"))

		if err := fs.AtomicWrite(path, []byte("first"), 0o644); err != nil {
			t.Fatalf("first write failed: %v", err)
		}

		if err := fs.AtomicWrite(path, []byte("second"), 0o644); err != nil {
			t.Fatalf("second write failed: %v", err)
		}

		content, _ := os.ReadFile(string(path))
		if string(content) != "second" {
			t.Errorf("content = %q, want %q", content, "second")
		}
	})
}

func TestWalk(t *testing.T) {
	fs := NewLocalRepoFSAdapter()
	ctx := context.Background()

	t.Run("visits regular files and prunes skip dirs", func(t *testing.T) {
		dir := t.TempDir()
		mustWrite(t, filepath.Join(dir, "README.md"), "docs")
		mustWrite(t, filepath.Join(dir, "node_modules", "dep.js"), "skip me")
		mustWrite(t, filepath.Join(dir, "src", "main.js"), "code")

		var seen []string

		err := fs.Walk(ctx, m.Path(dir), map[string]struct{}{"node_modules": {}}, func(path m.Path, info os.FileInfo, symlink bool) error {
			rel, _ := fs.RelPath(m.Path(dir), path)
			seen = append(seen, string(rel))

			return nil
		})
		if err != nil {
			t.Fatalf("Walk failed: %v", err)
		}

		if len(seen) != 2 {
			t.Fatalf("expected 2 files, got %v", seen)
		}

		for _, rel := range seen {
			if strings.HasPrefix(rel, "node_modules") {
				t.Errorf("skip dir was not pruned: %s", rel)
			}
		}
	})

	t.Run("flags symlinked files", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "real.txt")
		mustWrite(t, target, "real")

		if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		symlinks := map[string]bool{}

		err := fs.Walk(ctx, m.Path(dir), nil, func(path m.Path, info os.FileInfo, symlink bool) error {
			rel, _ := fs.RelPath(m.Path(dir), path)
			symlinks[string(rel)] = symlink

			return nil
		})
		if err != nil {
			t.Fatalf("Walk failed: %v", err)
		}

		if symlinks["real.txt"] {
			t.Error("regular file flagged as symlink")
		}

		if !symlinks["link.txt"] {
			t.Error("symlink not flagged")
		}
	})
}

func TestRelPath(t *testing.T) {
	fs := NewLocalRepoFSAdapter()

	rel, err := fs.RelPath(m.Path(filepath.Join("repo")), m.Path(filepath.Join("repo", "docs", "guide.md")))
	if err != nil {
		t.Fatalf("RelPath failed: %v", err)
	}

	if rel != "docs/guide.md" {
		t.Errorf("rel = %q, want docs/guide.md", rel)
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("content"))
	b := HashBytes([]byte("content"))
	c := HashBytes([]byte("different"))

	if a != b {
		t.Error("identical content should hash identically")
	}

	if a == c {
		t.Error("different content should hash differently")
	}

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
