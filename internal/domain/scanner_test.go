package domain

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newTestRepo(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeRepoFile(t, root, "CLAUDE.md", "You are a careful engineer. Always verify your work.\n")
	writeRepoFile(t, root, "README.md", "# Demo\n\n## Getting started\n")
	writeRepoFile(t, root, "package.json", "{\n  \"scripts\": {\"test\": \"jest\"}\n}\n")
	writeRepoFile(t, root, "Dockerfile", "FROM alpine\n")
	writeRepoFile(t, root, ".github/workflows/ci.yml", "jobs:\n  test:\n    steps: []\n")
	writeRepoFile(t, root, "docs/guide.md", "# Guide\n")
	writeRepoFile(t, root, "src/auth.js", "// auth module\n")

	return root
}

func scanRepo(t *testing.T, root string, opts ScanOptions) m.ScanResult {
	t.Helper()

	scanner := NewLayerScanner(adapter.NewLocalRepoFSAdapter())

	result, err := scanner.Scan(context.Background(), m.Path(root), opts)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	return result
}

func layerPaths(result m.ScanResult, layer m.Layer) []string {
	var paths []string
	for _, entry := range result.FilesFor(layer) {
		paths = append(paths, string(entry.RelPath))
	}

	return paths
}

func TestScanClassification(t *testing.T) {
	root := newTestRepo(t)
	result := scanRepo(t, root, ScanOptions{})

	t.Run("classifies agent instruction files", func(t *testing.T) {
		paths := layerPaths(result, m.LayerAIInstructions)
		if !reflect.DeepEqual(paths, []string{"CLAUDE.md"}) {
			t.Errorf("ai_instructions = %v", paths)
		}
	})

	t.Run("classifies documentation", func(t *testing.T) {
		paths := layerPaths(result, m.LayerDocumentation)
		if !reflect.DeepEqual(paths, []string{"README.md", "docs/guide.md"}) {
			t.Errorf("documentation = %v", paths)
		}
	})

	t.Run("classifies configuration and infrastructure", func(t *testing.T) {
		config := layerPaths(result, m.LayerConfiguration)
		if !reflect.DeepEqual(config, []string{"Dockerfile", "package.json"}) {
			t.Errorf("configuration = %v", config)
		}

		infra := layerPaths(result, m.LayerInfrastructure)
		if !reflect.DeepEqual(infra, []string{"Dockerfile"}) {
			t.Errorf("infrastructure = %v", infra)
		}
	})

	t.Run("classifies tooling", func(t *testing.T) {
		paths := layerPaths(result, m.LayerTooling)
		if !reflect.DeepEqual(paths, []string{".github/workflows/ci.yml"}) {
			t.Errorf("tooling = %v", paths)
		}
	})

	t.Run("classifies code metadata", func(t *testing.T) {
		paths := layerPaths(result, m.LayerCodeMetadata)
		if !reflect.DeepEqual(paths, []string{"src/auth.js"}) {
			t.Errorf("code_metadata = %v", paths)
		}
	})

	t.Run("content markers raise confidence", func(t *testing.T) {
		entries := result.FilesFor(m.LayerAIInstructions)
		if len(entries) != 1 {
			t.Fatalf("expected one instruction file")
		}

		// CLAUDE.md contains "you are", a marker for the layer.
		if got := entries[0].ConfidenceFor(m.LayerAIInstructions); got != 0.95 {
			t.Errorf("confidence = %v, want 0.95", got)
		}
	})
}

func TestScanDeterminism(t *testing.T) {
	root := newTestRepo(t)

	first := scanRepo(t, root, ScanOptions{})
	second := scanRepo(t, root, ScanOptions{})

	if !reflect.DeepEqual(first.Layers, second.Layers) {
		t.Error("identical repo state should yield identical layer maps")
	}
}

func TestScanExclusions(t *testing.T) {
	t.Run("binary files classify by path only", func(t *testing.T) {
		root := t.TempDir()

		if err := os.WriteFile(filepath.Join(root, "blob.js"), []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
			t.Fatalf("write binary: %v", err)
		}

		result := scanRepo(t, root, ScanOptions{})

		entries := result.FilesFor(m.LayerCodeMetadata)
		if len(entries) != 1 {
			t.Fatalf("expected one code file, got %d", len(entries))
		}

		if got := entries[0].ConfidenceFor(m.LayerCodeMetadata); got != 0.7 {
			t.Errorf("confidence = %v, want path-only 0.7", got)
		}
	})

	t.Run("symlinks are excluded", func(t *testing.T) {
		root := t.TempDir()
		writeRepoFile(t, root, "README.md", "# Demo\n")

		if err := os.Symlink(filepath.Join(root, "README.md"), filepath.Join(root, "LINKED.md")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		result := scanRepo(t, root, ScanOptions{})
		for _, entry := range result.FilesFor(m.LayerDocumentation) {
			if entry.RelPath == "LINKED.md" {
				t.Error("symlink should not be classified")
			}
		}
	})

	t.Run("run state directory is ignored", func(t *testing.T) {
		root := t.TempDir()
		writeRepoFile(t, root, adapter.StateDirName+"/runs/x/backup/README.md", "# old\n")

		result := scanRepo(t, root, ScanOptions{})
		if result.TotalFiles() != 0 {
			t.Errorf("state dir content should be ignored, got %d files", result.TotalFiles())
		}
	})

	t.Run("exclude globs filter files", func(t *testing.T) {
		root := newTestRepo(t)
		result := scanRepo(t, root, ScanOptions{Exclude: []string{"docs/**"}})

		paths := layerPaths(result, m.LayerDocumentation)
		if !reflect.DeepEqual(paths, []string{"README.md"}) {
			t.Errorf("documentation = %v, want only README.md", paths)
		}
	})

	t.Run("include globs restrict the scan", func(t *testing.T) {
		root := newTestRepo(t)
		result := scanRepo(t, root, ScanOptions{Include: []string{"*.md", "docs/**"}})

		if len(result.FilesFor(m.LayerConfiguration)) != 0 {
			t.Error("configuration files should be filtered out by include globs")
		}

		if len(result.FilesFor(m.LayerDocumentation)) == 0 {
			t.Error("markdown files should survive the include filter")
		}
	})

	t.Run("unreadable files become issues", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("permission bits do not bind as root")
		}

		root := t.TempDir()
		writeRepoFile(t, root, "README.md", "# Demo\n")

		if err := os.Chmod(filepath.Join(root, "README.md"), 0o000); err != nil {
			t.Fatalf("chmod: %v", err)
		}

		result := scanRepo(t, root, ScanOptions{})
		if len(result.Issues) != 1 {
			t.Fatalf("expected one issue, got %v", result.Issues)
		}

		if result.TotalFiles() != 0 {
			t.Error("unreadable file should be excluded from layers")
		}
	})
}
