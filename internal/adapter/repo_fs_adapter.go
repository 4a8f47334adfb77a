// Package adapter contains filesystem and storage adapters for ctxprobe.
package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// RepoFSAdapter abstracts filesystem operations against a scanned repository
// so domain logic can be tested without touching the disk. Symlinks are never
// followed by any method.
type RepoFSAdapter interface {
	// Walk traverses the tree below root, invoking fn for every regular
	// file. Directories named in skipDirs are pruned. Symlinked files and
	// directories are reported to fn with a symlink flag and never entered.
	Walk(ctx context.Context, root m.Path, skipDirs map[string]struct{}, fn FileWalkFunc) error

	// ReadFile loads file contents from disk.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// Stat returns metadata without following symlinks.
	Stat(path m.Path) (os.FileInfo, error)

	// AtomicWrite writes data to path via temp file + fsync + rename, so a
	// crash mid-write never leaves a half-written file.
	AtomicWrite(path m.Path, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory tree.
	MkdirAll(path m.Path, perm os.FileMode) error

	// RelPath returns the slash-separated relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// FileWalkFunc receives each regular file (or symlink, flagged) found by Walk.
// Returning an error aborts the walk.
type FileWalkFunc func(path m.Path, info os.FileInfo, symlink bool) error

// HashBytes returns the hex SHA-256 fingerprint of content. Checksums pin
// backup integrity, so every producer and consumer shares this one function.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// LocalRepoFSAdapter is the os-backed RepoFSAdapter implementation.
type LocalRepoFSAdapter struct{}

// NewLocalRepoFSAdapter constructs a LocalRepoFSAdapter ready to be wired
// into the scanner and executor.
func NewLocalRepoFSAdapter() *LocalRepoFSAdapter {
	return &LocalRepoFSAdapter{}
}

// Walk iterates regular files under root without following symlinks.
func (a *LocalRepoFSAdapter) Walk(ctx context.Context, root m.Path, skipDirs map[string]struct{}, fn FileWalkFunc) error {
	return filepath.WalkDir(string(root), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if entry.IsDir() {
			if _, skip := skipDirs[entry.Name()]; skip && path != string(root) {
				return filepath.SkipDir
			}

			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return fn(m.Path(path), nil, false)
		}

		// WalkDir does not follow directory symlinks; file symlinks are
		// surfaced flagged so the scanner can exclude them.
		symlink := info.Mode()&os.ModeSymlink != 0

		if !symlink && !info.Mode().IsRegular() {
			return nil
		}

		return fn(m.Path(path), info, symlink)
	})
}

// ReadFile loads file contents from disk.
func (a *LocalRepoFSAdapter) ReadFile(ctx context.Context, path m.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.ReadFile(string(path))
}

// Stat returns metadata for path without following symlinks.
func (a *LocalRepoFSAdapter) Stat(path m.Path) (os.FileInfo, error) {
	return os.Lstat(string(path))
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (a *LocalRepoFSAdapter) AtomicWrite(path m.Path, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".ctxprobe-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, string(path)); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	tmpFile = nil

	return nil
}

// MkdirAll creates a directory tree.
func (a *LocalRepoFSAdapter) MkdirAll(path m.Path, perm os.FileMode) error {
	return os.MkdirAll(string(path), perm)
}

// RelPath returns the slash-separated relative path from base to target.
func (a *LocalRepoFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(filepath.ToSlash(rel)), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalRepoFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
