package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
	"ctxprobe.dev/pkg/ctxprobe/pkg"
)

// StateDirName is the per-repo directory holding run state. The scanner
// must never classify files below it.
const StateDirName = ".ctxprobe"

// RunStore persists run manifests and pristine file backups. The on-disk
// layout, <repo>/.ctxprobe/runs/<run-id>/{manifest.json, backup/<rel-path>},
// is the outbound contract consumed by the agent simulation, the analyzer
// and the standalone reverser.
type RunStore interface {
	// SaveManifest durably writes the manifest JSON via atomic rename.
	SaveManifest(ctx context.Context, manifest *m.RunManifest) error

	// LoadManifest reads a previously saved manifest.
	LoadManifest(ctx context.Context, repoPath m.Path, runID string) (*m.RunManifest, error)

	// SaveBackup stores the pristine content of one file, keyed by its
	// repo-relative path.
	SaveBackup(ctx context.Context, repoPath m.Path, runID string, relPath m.Path, content []byte) error

	// LoadBackup retrieves a pristine snapshot.
	LoadBackup(ctx context.Context, repoPath m.Path, runID string, relPath m.Path) ([]byte, error)

	// ListRuns enumerates recorded run ids with their manifest summaries,
	// newest first.
	ListRuns(ctx context.Context, repoPath m.Path) ([]RunSummary, error)

	// EventLog opens the append-only mutation event journal of one run.
	// Events are durable per append, so an interrupted run still leaves a
	// readable record between the two manifest snapshots.
	EventLog(repoPath m.Path, runID string) (pkg.Journal[m.Mutation], error)
}

// RunSummary is the lightweight listing view of one recorded run.
type RunSummary struct {
	RunID     string
	Status    m.RunStatus
	Strategy  m.StrategyKind
	Intensity m.Intensity
	Applied   int
	Skipped   int
	Failed    int
}

// LocalRunStore is the disk-backed RunStore.
type LocalRunStore struct {
	fs RepoFSAdapter
}

// NewLocalRunStore constructs a LocalRunStore on top of the given filesystem
// adapter.
func NewLocalRunStore(fs RepoFSAdapter) *LocalRunStore {
	return &LocalRunStore{fs: fs}
}

func (s *LocalRunStore) runDir(repoPath m.Path, runID string) m.Path {
	return s.fs.JoinPath(string(repoPath), StateDirName, "runs", runID)
}

func (s *LocalRunStore) manifestPath(repoPath m.Path, runID string) m.Path {
	return s.fs.JoinPath(string(s.runDir(repoPath, runID)), "manifest.json")
}

func (s *LocalRunStore) backupPath(repoPath m.Path, runID string, relPath m.Path) m.Path {
	return s.fs.JoinPath(string(s.runDir(repoPath, runID)), "backup", filepath.FromSlash(string(relPath)))
}

// SaveManifest durably writes the manifest JSON via atomic rename.
func (s *LocalRunStore) SaveManifest(ctx context.Context, manifest *m.RunManifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := s.manifestPath(manifest.RepoPath, manifest.RunID)
	if err := s.fs.AtomicWrite(path, payload, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}

	return nil
}

// LoadManifest reads a previously saved manifest.
func (s *LocalRunStore) LoadManifest(ctx context.Context, repoPath m.Path, runID string) (*m.RunManifest, error) {
	raw, err := s.fs.ReadFile(ctx, s.manifestPath(repoPath, runID))
	if err != nil {
		return nil, fmt.Errorf("read manifest for run %s: %w", runID, err)
	}

	var manifest m.RunManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest for run %s: %w", runID, err)
	}

	return &manifest, nil
}

// SaveBackup stores the pristine content of one file.
func (s *LocalRunStore) SaveBackup(ctx context.Context, repoPath m.Path, runID string, relPath m.Path, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.backupPath(repoPath, runID, relPath)
	if err := s.fs.AtomicWrite(path, content, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", relPath, err)
	}

	return nil
}

// LoadBackup retrieves a pristine snapshot.
func (s *LocalRunStore) LoadBackup(ctx context.Context, repoPath m.Path, runID string, relPath m.Path) ([]byte, error) {
	content, err := s.fs.ReadFile(ctx, s.backupPath(repoPath, runID, relPath))
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", relPath, err)
	}

	return content, nil
}

// EventLog opens the append-only mutation event journal of one run.
func (s *LocalRunStore) EventLog(repoPath m.Path, runID string) (pkg.Journal[m.Mutation], error) {
	dir := s.runDir(repoPath, runID)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	return pkg.OpenJournal[m.Mutation](string(s.fs.JoinPath(string(dir), "events.gob")))
}

// ListRuns enumerates recorded runs, newest first by run directory name.
func (s *LocalRunStore) ListRuns(ctx context.Context, repoPath m.Path) ([]RunSummary, error) {
	runsDir := s.fs.JoinPath(string(repoPath), StateDirName, "runs")

	entries, err := os.ReadDir(string(runsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read runs directory: %w", err)
	}

	summaries := make([]RunSummary, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifest, loadErr := s.LoadManifest(ctx, repoPath, entry.Name())
		if loadErr != nil {
			// A run directory without a readable manifest is listed as-is
			// rather than hidden.
			summaries = append(summaries, RunSummary{RunID: entry.Name()})
			continue
		}

		summaries = append(summaries, RunSummary{
			RunID:     manifest.RunID,
			Status:    manifest.Status,
			Strategy:  manifest.Strategy,
			Intensity: manifest.Intensity,
			Applied:   manifest.AppliedCount(),
			Skipped:   manifest.SkippedCount(),
			Failed:    manifest.FailedCount(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RunID > summaries[j].RunID
	})

	return summaries, nil
}
